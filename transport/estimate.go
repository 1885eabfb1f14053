package transport

import (
	"context"
	"fmt"
	"math"

	"itinera/models"
)

const earthRadiusMeters = 6371000.0

type modeProfile struct {
	speed    float64 // meters per second
	detour   float64 // road/path length over great-circle distance
	overhead float64 // fixed seconds (waiting, boarding)
}

var profiles = map[string]modeProfile{
	ModeDriving: {speed: 40 / 3.6, detour: 1.3},
	ModeWalking: {speed: 5 / 3.6, detour: 1.2},
	ModeCycling: {speed: 15 / 3.6, detour: 1.25},
	ModeTransit: {speed: 25 / 3.6, detour: 1.4, overhead: 300},
	ModeFlight:  {speed: 800 / 3.6, detour: 1.0, overhead: 5400},
}

// EstimateProvider derives durations from great-circle distance and a
// per-mode average speed. It needs no network access.
type EstimateProvider struct{}

func (EstimateProvider) Duration(ctx context.Context, from, to models.Coordinates, mode string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p, ok := profiles[NormalizeMode(mode)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
	if from.IsZero() || to.IsZero() {
		return 0, ErrMissingCoordinates
	}
	if from == to {
		return 0, nil
	}

	dist := Haversine(from, to) * p.detour
	return int(math.Round(p.overhead + dist/p.speed)), nil
}

// Haversine returns the great-circle distance in meters.
func Haversine(a, b models.Coordinates) float64 {
	lat1, lat2 := rad(a.Latitude), rad(b.Latitude)
	dLat := lat2 - lat1
	dLng := rad(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }
