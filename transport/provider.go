// Package transport computes travel durations between places. Everything
// here is a convenience for itinerary display: callers treat failures as
// "unknown" rather than as scheduling errors.
package transport

import (
	"context"
	"errors"
	"strings"

	"itinera/models"
)

var (
	ErrUnsupportedMode    = errors.New("unsupported transport mode")
	ErrMissingCoordinates = errors.New("place has no coordinates")
)

// Provider returns the travel time in seconds between two points.
type Provider interface {
	Duration(ctx context.Context, from, to models.Coordinates, mode string) (int, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, from, to models.Coordinates, mode string) (int, error)

func (f ProviderFunc) Duration(ctx context.Context, from, to models.Coordinates, mode string) (int, error) {
	return f(ctx, from, to, mode)
}

// ZeroProvider always reports zero seconds.
type ZeroProvider struct{}

func (ZeroProvider) Duration(context.Context, models.Coordinates, models.Coordinates, string) (int, error) {
	return 0, nil
}

const (
	ModeDriving = "driving"
	ModeWalking = "walking"
	ModeCycling = "cycling"
	ModeTransit = "transit"
	ModeFlight  = "flight"
)

var modeAliases = map[string]string{
	"car":              ModeDriving,
	"drive":            ModeDriving,
	"taxi":             ModeDriving,
	"walk":             ModeWalking,
	"foot":             ModeWalking,
	"bike":             ModeCycling,
	"bicycle":          ModeCycling,
	"bicycling":        ModeCycling,
	"bus":              ModeTransit,
	"train":            ModeTransit,
	"metro":            ModeTransit,
	"public_transport": ModeTransit,
	"plane":            ModeFlight,
	"fly":              ModeFlight,
}

// NormalizeMode lower-cases mode, resolves common aliases and defaults to driving.
func NormalizeMode(mode string) string {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m == "" {
		return models.DefaultTransportMethod
	}
	if alias, ok := modeAliases[m]; ok {
		return alias
	}
	return m
}

// SupportedMode reports whether mode (after normalization) is one of the
// known transport modes.
func SupportedMode(mode string) bool {
	switch NormalizeMode(mode) {
	case ModeDriving, ModeWalking, ModeCycling, ModeTransit, ModeFlight:
		return true
	}
	return false
}
