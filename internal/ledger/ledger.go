// Package ledger decides whether a movie or a series season has already
// been posted. A bounded in-memory cache absorbs bursts within a cooldown;
// the durable store remembers series seasons forever and movies for the
// cooldown window across restarts.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/metrics"
	"mposter-tg-bot/internal/title"
)

// ErrCommit wraps durable write failures. Checks never return it; they fail open.
var ErrCommit = errors.New("ledger commit failed")

type Config struct {
	MovieCooldown  time.Duration
	SeriesCooldown time.Duration
	MaxEntries     int
	BatchSize      int
}

func DefaultConfig() Config {
	return Config{
		MovieCooldown:  time.Hour,
		SeriesCooldown: time.Hour,
		MaxEntries:     1000,
		BatchSize:      100,
	}
}

// Scope selects which markers Reset clears.
type Scope string

const (
	ScopeMovies Scope = "movies"
	ScopeSeries Scope = "series"
)

type Ledger struct {
	store  Store
	cfg    Config
	clock  Clock
	logger zerolog.Logger

	movies *Cache
	series *Cache
	locks  keyLocks
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Ledger) { l.logger = logger.With().Str("component", "ledger").Logger() }
}

func New(store Store, cfg Config, opts ...Option) *Ledger {
	def := DefaultConfig()
	if cfg.MovieCooldown <= 0 {
		cfg.MovieCooldown = def.MovieCooldown
	}
	if cfg.SeriesCooldown <= 0 {
		cfg.SeriesCooldown = def.SeriesCooldown
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	l := &Ledger{
		store:  store,
		cfg:    cfg,
		clock:  SystemClock(),
		logger: zerolog.Nop(),
		movies: NewCache(cfg.MaxEntries, cfg.BatchSize),
		series: NewCache(cfg.MaxEntries, cfg.BatchSize),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// MovieKey is the store key for a movie title.
func MovieKey(name string) string {
	return KindMovie + ":" + title.Normalize(name)
}

// SeriesKey is the store key for a series season.
func SeriesKey(name string, season int) string {
	return fmt.Sprintf("%s:%s:s%d", KindSeries, title.Normalize(name), season)
}

// ShouldProcessMovie reports whether the movie may be posted now and, if so,
// marks it as recently seen. Store failures fail open.
func (l *Ledger) ShouldProcessMovie(ctx context.Context, name string) bool {
	if title.Normalize(name) == "" {
		return true
	}
	key := MovieKey(name)
	unlock := l.locks.lock(key)
	defer unlock()

	now := l.clock.Now()
	if l.movies.Seen(key, now, l.cfg.MovieCooldown) {
		metrics.RecordLedgerDecision(KindMovie, "duplicate")
		l.logger.Debug().Str("key", key).Msg("Movie in cooldown")
		return false
	}

	m, err := l.get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordLedgerDecision(KindMovie, "fail_open")
		l.logger.Warn().Err(err).Str("key", key).Msg("Marker lookup failed, processing anyway")
	case m != nil && now.Sub(m.ProcessedAt) < l.cfg.MovieCooldown:
		l.mark(l.movies, key, m.ProcessedAt)
		metrics.RecordLedgerDecision(KindMovie, "duplicate")
		l.logger.Debug().Str("key", key).Time("processedAt", m.ProcessedAt).Msg("Movie posted recently")
		return false
	default:
		metrics.RecordLedgerDecision(KindMovie, "process")
	}

	l.mark(l.movies, key, now)
	return true
}

// ShouldProcessSeries reports whether a season poster may be generated.
// A committed season is blocked permanently. Store failures fail open.
func (l *Ledger) ShouldProcessSeries(ctx context.Context, name string, season int) bool {
	if title.Normalize(name) == "" {
		return true
	}
	key := SeriesKey(name, season)
	unlock := l.locks.lock(key)
	defer unlock()

	exists, err := l.exists(ctx, key)
	if err != nil {
		metrics.RecordLedgerDecision(KindSeries, "fail_open")
		l.logger.Warn().Err(err).Str("key", key).Msg("Marker lookup failed, processing anyway")
	} else if exists {
		metrics.RecordLedgerDecision(KindSeries, "duplicate")
		l.logger.Debug().Str("key", key).Msg("Season already processed")
		return false
	}

	now := l.clock.Now()
	if l.series.Seen(key, now, l.cfg.SeriesCooldown) {
		metrics.RecordLedgerDecision(KindSeries, "duplicate")
		l.logger.Debug().Str("key", key).Msg("Season in cooldown")
		return false
	}
	if err == nil {
		metrics.RecordLedgerDecision(KindSeries, "process")
	}
	l.mark(l.series, key, now)
	return true
}

// CommitMovieProcessed records the movie as posted. Safe to repeat.
func (l *Ledger) CommitMovieProcessed(ctx context.Context, name string) error {
	key := MovieKey(name)
	unlock := l.locks.lock(key)
	defer unlock()

	now := l.clock.Now()
	err := l.store.Put(ctx, key, Marker{Key: key, Kind: KindMovie, Name: strings.TrimSpace(name), ProcessedAt: now})
	metrics.RecordLedgerCommit(KindMovie, err)
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("Failed to persist movie marker")
		return fmt.Errorf("%w: %s: %w", ErrCommit, key, err)
	}
	l.mark(l.movies, key, now)
	return nil
}

// CommitSeriesProcessed writes the permanent season marker. Existing markers are left untouched.
func (l *Ledger) CommitSeriesProcessed(ctx context.Context, name string, season int) error {
	key := SeriesKey(name, season)
	unlock := l.locks.lock(key)
	defer unlock()

	if exists, err := l.exists(ctx, key); err == nil && exists {
		return nil
	}
	now := l.clock.Now()
	err := l.store.Put(ctx, key, Marker{Key: key, Kind: KindSeries, Name: strings.TrimSpace(name), Season: season, ProcessedAt: now})
	metrics.RecordLedgerCommit(KindSeries, err)
	if err != nil {
		l.logger.Error().Err(err).Str("key", key).Msg("Failed to persist season marker")
		return fmt.Errorf("%w: %s: %w", ErrCommit, key, err)
	}
	l.mark(l.series, key, now)
	return nil
}

// Sweep drops short-term entries whose cooldown has passed.
func (l *Ledger) Sweep() int {
	now := l.clock.Now()
	n := l.movies.Sweep(now, l.cfg.MovieCooldown) + l.series.Sweep(now, l.cfg.SeriesCooldown)
	metrics.RecordEviction("expired", n)
	return n
}

// Reset clears the short-term cache and durable markers of one scope.
func (l *Ledger) Reset(ctx context.Context, scope Scope) (int64, error) {
	prefix := KindMovie + ":"
	cache := l.movies
	if scope == ScopeSeries {
		prefix = KindSeries + ":"
		cache = l.series
	}
	cache.Reset()
	n, err := l.store.DeleteAll(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("delete %s markers: %w", scope, err)
	}
	l.logger.Info().Str("scope", string(scope)).Int64("deleted", n).Msg("Ledger reset")
	return n, nil
}

// Len reports short-term cache sizes.
func (l *Ledger) Len() (movies, series int) {
	return l.movies.Len(), l.series.Len()
}

func (l *Ledger) mark(c *Cache, key string, at time.Time) {
	metrics.RecordEviction("capacity", c.Mark(key, at))
}

// get and exists turn store panics into errors so checks can fail open.
func (l *Ledger) get(ctx context.Context, key string) (m *Marker, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return l.store.Get(ctx, key)
}

func (l *Ledger) exists(ctx context.Context, key string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return l.store.Exists(ctx, key)
}
