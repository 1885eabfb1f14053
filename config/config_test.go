package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{"JWT_SECRET": "s3cret"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "eventdb", cfg.MongoDatabase)
	assert.Equal(t, PropagationAsync, cfg.PropagationMode)
	assert.Equal(t, "day", cfg.NeighborScope)
	assert.Equal(t, ProviderEstimate, cfg.DurationProvider)
	assert.Equal(t, 2*time.Second, cfg.DurationTimeout)
	assert.Equal(t, 24*time.Hour, cfg.DurationCacheTTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":        "s3cret",
		"PORT":              "9090",
		"PROPAGATION_MODE":  "sync",
		"DURATION_PROVIDER": "zero",
		"DURATION_TIMEOUT":  "500ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, PropagationSync, cfg.PropagationMode)
	assert.Equal(t, ProviderZero, cfg.DurationProvider)
	assert.Equal(t, 500*time.Millisecond, cfg.DurationTimeout)
}

func TestFromEnv_Invalid(t *testing.T) {
	_, err := FromEnv(env(map[string]string{}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "PROPAGATION_MODE": "later"}))
	assert.ErrorContains(t, err, "PROPAGATION_MODE")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "DURATION_PROVIDER": "google"}))
	assert.ErrorContains(t, err, "DURATION_PROVIDER")

	_, err = FromEnv(env(map[string]string{"JWT_SECRET": "x", "DURATION_CACHE_TTL": "forever"}))
	assert.ErrorContains(t, err, "DURATION_CACHE_TTL")
}
