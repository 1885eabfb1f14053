package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	PropagationSync  = "sync"
	PropagationAsync = "async"

	ProviderEstimate = "estimate"
	ProviderZero     = "zero"
)

type Config struct {
	Port          string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	RedisPassword string
	JWTSecret     []byte
	LogLevel      string

	PropagationMode  string
	NeighborScope    string
	DurationProvider string
	DurationTimeout  time.Duration
	DurationCacheTTL time.Duration
}

// Load reads .env if present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Port:             get("PORT", ":8080"),
		MongoURI:         get("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    get("MONGO_DB", "eventdb"),
		RedisAddr:        get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getenv("REDIS_PASSWORD"),
		JWTSecret:        []byte(getenv("JWT_SECRET")),
		LogLevel:         get("LOG_LEVEL", "info"),
		PropagationMode:  get("PROPAGATION_MODE", PropagationAsync),
		NeighborScope:    get("NEIGHBOR_SCOPE", "day"),
		DurationProvider: get("DURATION_PROVIDER", ProviderEstimate),
	}
	if cfg.Port[0] != ':' {
		cfg.Port = ":" + cfg.Port
	}

	var err error
	if cfg.DurationTimeout, err = time.ParseDuration(get("DURATION_TIMEOUT", "2s")); err != nil {
		return Config{}, fmt.Errorf("DURATION_TIMEOUT: %w", err)
	}
	if cfg.DurationCacheTTL, err = time.ParseDuration(get("DURATION_CACHE_TTL", "24h")); err != nil {
		return Config{}, fmt.Errorf("DURATION_CACHE_TTL: %w", err)
	}

	switch cfg.PropagationMode {
	case PropagationSync, PropagationAsync:
	default:
		return Config{}, fmt.Errorf("PROPAGATION_MODE must be %q or %q, got %q", PropagationSync, PropagationAsync, cfg.PropagationMode)
	}
	switch cfg.DurationProvider {
	case ProviderEstimate, ProviderZero:
	default:
		return Config{}, fmt.Errorf("DURATION_PROVIDER must be %q or %q, got %q", ProviderEstimate, ProviderZero, cfg.DurationProvider)
	}
	if len(cfg.JWTSecret) == 0 {
		return Config{}, errors.New("JWT_SECRET required")
	}

	return cfg, nil
}
