package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/metrics"
)

// GuardConfig tunes the breaker and limiter around one adapter.
type GuardConfig struct {
	Timeout          time.Duration
	RateLimit        float64 // requests per second, <= 0 disables limiting
	Burst            int
	MaxRequests      uint32 // allowed in half-open state
	Interval         time.Duration
	BreakerTimeout   time.Duration // open -> half-open
	FailureThreshold uint32        // consecutive failures that open the breaker
}

func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:          10 * time.Second,
		RateLimit:        4,
		Burst:            4,
		MaxRequests:      1,
		Interval:         time.Minute,
		BreakerTimeout:   30 * time.Second,
		FailureThreshold: 5,
	}
}

// Guarded wraps an Adapter with a circuit breaker, a rate limiter, a per
// call timeout and metrics. Not-found answers count as successes.
type Guarded struct {
	inner   Adapter
	cb      *gobreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	timeout time.Duration
	logger  zerolog.Logger
}

// Guard wraps a in a Guarded adapter.
func Guard(a Adapter, cfg GuardConfig, logger zerolog.Logger) *Guarded {
	def := DefaultGuardConfig()
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	name := string(a.Name())
	g := &Guarded{
		inner:   a,
		timeout: cfg.Timeout,
		logger:  logger.With().Str("component", "provider").Str("provider", name).Logger(),
	}
	if cfg.RateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	metrics.SetBreakerState(name, 0)
	threshold := cfg.FailureThreshold
	g.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.SetBreakerState(name, stateValue(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
		},
	})
	return g
}

func (g *Guarded) Name() media.Provider { return g.inner.Name() }

// State reports the breaker state.
func (g *Guarded) State() gobreaker.State { return g.cb.State() }

func (g *Guarded) SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return call(ctx, g, "search_movies", func(ctx context.Context) ([]media.Record, error) {
		return g.inner.SearchMovies(ctx, title, year, limit)
	})
}

func (g *Guarded) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return call(ctx, g, "search_series", func(ctx context.Context) ([]media.Record, error) {
		return g.inner.SearchSeries(ctx, title, year, limit)
	})
}

func (g *Guarded) GetDetails(ctx context.Context, id string, kind media.Kind) (*media.Record, error) {
	return call(ctx, g, "details", func(ctx context.Context) (*media.Record, error) {
		return g.inner.GetDetails(ctx, id, kind)
	})
}

// LookupID forwards to the wrapped adapter when it supports id lookups.
func (g *Guarded) LookupID(ctx context.Context, id string) (*media.Record, error) {
	l, ok := g.inner.(IDLookup)
	if !ok {
		return nil, fmt.Errorf("%s lookup: %w", g.inner.Name(), ErrNotFound)
	}
	return call(ctx, g, "lookup", func(ctx context.Context) (*media.Record, error) {
		return l.LookupID(ctx, id)
	})
}

// SupportsLookup reports whether LookupID reaches a real implementation.
func (g *Guarded) SupportsLookup() bool {
	_, ok := g.inner.(IDLookup)
	return ok
}

func call[T any](ctx context.Context, g *Guarded, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	name := string(g.inner.Name())
	start := time.Now()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			metrics.RecordProviderCall(name, op, "rate_limited", time.Since(start))
			return zero, fmt.Errorf("%s %s: %w", name, op, err)
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	res, err := g.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordProviderCall(name, op, "rejected", time.Since(start))
		return zero, fmt.Errorf("%s %s: %v: %w", name, op, err, ErrUnavailable)
	case errors.Is(err, ErrNotFound):
		metrics.RecordProviderCall(name, op, "not_found", time.Since(start))
		return zero, err
	case err != nil:
		metrics.RecordProviderCall(name, op, "error", time.Since(start))
		return zero, err
	}
	metrics.RecordProviderCall(name, op, "ok", time.Since(start))

	typed, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%s %s: unexpected result type %T", name, op, res)
	}
	return typed, nil
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
