package transport

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"itinera/logging"
	"itinera/metrics"
	"itinera/models"
)

type BreakerConfig struct {
	Name                string
	Timeout             time.Duration // per call
	OpenFor             time.Duration // how long the breaker stays open
	ConsecutiveFailures uint32
	HalfOpenRequests    uint32
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "duration",
		Timeout:             2 * time.Second,
		OpenFor:             30 * time.Second,
		ConsecutiveFailures: 5,
		HalfOpenRequests:    1,
	}
}

// BreakerProvider guards an inner Provider with a per-call timeout and a
// circuit breaker, so a dead routing backend fails fast instead of stalling
// every itinerary mutation.
type BreakerProvider struct {
	inner   Provider
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
	name    string
}

func NewBreakerProvider(inner Provider, cfg BreakerConfig, logger *zap.Logger) *BreakerProvider {
	logger = logging.OrNop(logger)
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// bad input is the caller's problem, not the backend's
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnsupportedMode) || errors.Is(err, ErrMissingCoordinates)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("duration provider breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &BreakerProvider{
		inner:   inner,
		cb:      gobreaker.NewCircuitBreaker(settings),
		timeout: cfg.Timeout,
		name:    cfg.Name,
	}
}

func (b *BreakerProvider) Duration(ctx context.Context, from, to models.Coordinates, mode string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.DurationLookupSeconds.WithLabelValues(b.name).Observe(time.Since(start).Seconds())
	}()

	res, err := b.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if b.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.timeout)
			defer cancel()
		}
		return b.call(callCtx, from, to, mode)
	})
	if err != nil {
		return 0, err
	}
	return res.(int), nil
}

type lookupResult struct {
	seconds int
	err     error
}

// call returns as soon as ctx is done even if the inner provider ignores it.
func (b *BreakerProvider) call(ctx context.Context, from, to models.Coordinates, mode string) (int, error) {
	done := make(chan lookupResult, 1)
	go func() {
		s, err := b.inner.Duration(ctx, from, to, mode)
		done <- lookupResult{s, err}
	}()

	select {
	case r := <-done:
		return r.seconds, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// State exposes the breaker state for health reporting.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}
