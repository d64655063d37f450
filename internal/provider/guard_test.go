package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/media"
)

type stubAdapter struct {
	name  media.Provider
	err   error
	calls int
	recs  []media.Record
}

func (s *stubAdapter) Name() media.Provider { return s.name }

func (s *stubAdapter) SearchMovies(_ context.Context, _ string, _, _ int) ([]media.Record, error) {
	s.calls++
	return s.recs, s.err
}

func (s *stubAdapter) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return s.SearchMovies(ctx, title, year, limit)
}

func (s *stubAdapter) GetDetails(_ context.Context, id string, kind media.Kind) (*media.Record, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &media.Record{ExternalID: id, Kind: kind, Title: "X"}, nil
}

func testGuardConfig() GuardConfig {
	return GuardConfig{FailureThreshold: 3, BreakerTimeout: time.Hour, MaxRequests: 1}
}

func TestGuard_PassesResults(t *testing.T) {
	stub := &stubAdapter{name: "stub", recs: []media.Record{{Title: "Heat"}}}
	g := Guard(stub, testGuardConfig(), zerolog.Nop())

	recs, err := g.SearchMovies(context.Background(), "heat", 0, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Heat", recs[0].Title)

	rec, err := g.GetDetails(context.Background(), "42", media.KindMovie)
	require.NoError(t, err)
	assert.Equal(t, "42", rec.ExternalID)
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubAdapter{name: "flaky", err: fmt.Errorf("boom: %w", ErrUnavailable)}
	g := Guard(stub, testGuardConfig(), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := g.SearchMovies(ctx, "x", 0, 1)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.SearchMovies(ctx, "x", 0, 1)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 3, stub.calls, "open breaker must not reach the adapter")
}

func TestGuard_NotFoundDoesNotTrip(t *testing.T) {
	stub := &stubAdapter{name: "empty", err: fmt.Errorf("empty: %w", ErrNotFound)}
	g := Guard(stub, testGuardConfig(), zerolog.Nop())

	for i := 0; i < 10; i++ {
		_, err := g.SearchMovies(context.Background(), "x", 0, 1)
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
	assert.Equal(t, 10, stub.calls)
}

func TestGuard_LookupUnsupported(t *testing.T) {
	g := Guard(&stubAdapter{name: "plain"}, testGuardConfig(), zerolog.Nop())
	assert.False(t, g.SupportsLookup())

	_, err := g.LookupID(context.Background(), "tt0113277")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGuard_RateLimitHonoursContext(t *testing.T) {
	cfg := testGuardConfig()
	cfg.RateLimit = 0.001
	cfg.Burst = 1
	g := Guard(&stubAdapter{name: "slow"}, cfg, zerolog.Nop())

	_, err := g.SearchMovies(context.Background(), "x", 0, 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.SearchMovies(ctx, "x", 0, 1)
	assert.Error(t, err)
}

func TestTiers(t *testing.T) {
	a := &stubAdapter{name: "a"}
	b := &stubAdapter{name: "b"}
	tiers := Tiers{Primary: []Adapter{a}, Secondary: []Adapter{b}}

	assert.False(t, tiers.Empty())
	all := tiers.All()
	require.Len(t, all, 2)
	assert.Equal(t, media.Provider("a"), all[0].Name())
	assert.True(t, Tiers{}.Empty())
}
