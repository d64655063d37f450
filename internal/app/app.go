// Package app wires configuration into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/bot"
	"mposter-tg-bot/internal/config"
	"mposter-tg-bot/internal/ledger"
	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/poster"
	"mposter-tg-bot/internal/provider"
	"mposter-tg-bot/internal/provider/imdb"
	"mposter-tg-bot/internal/provider/neomovies"
	"mposter-tg-bot/internal/provider/omdb"
	"mposter-tg-bot/internal/provider/tmdb"
	"mposter-tg-bot/internal/resolve"
	"mposter-tg-bot/internal/scheduler"
	"mposter-tg-bot/internal/storage"
	"mposter-tg-bot/internal/tg"
)

// store is what both storage backends provide.
type store interface {
	ledger.Store
	bot.History
}

type App struct {
	Config    *config.Config
	Bot       *bot.Bot
	Telegram  *tg.Client
	Scheduler *scheduler.Scheduler

	ledger   *ledger.Ledger
	composer *poster.Composer
	mongo    *storage.Mongo
	logger   zerolog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger.With().Str("component", "app").Logger()}

	st := a.openStore(ctx)
	a.ledger = ledger.New(st, ledger.Config{
		MovieCooldown:  cfg.Ledger.MovieCooldown,
		SeriesCooldown: cfg.Ledger.SeriesCooldown,
		MaxEntries:     cfg.Ledger.MaxEntries,
		BatchSize:      cfg.Ledger.BatchSize,
	}, ledger.WithLogger(logger))

	tiers, err := BuildTiers(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	orch := resolve.New(tiers, resolve.Options{MinResults: cfg.Resolve.MinResults}, logger)

	a.composer, err = poster.NewComposer(cfg.Poster.TempDir, logger)
	if err != nil {
		return nil, err
	}

	a.Telegram = tg.NewClientWithBase(cfg.Telegram.APIBase, cfg.Telegram.BotToken)
	a.Bot = bot.New(bot.Config{
		Destination:      cfg.Telegram.Destination(),
		FallbackChatID:   cfg.Telegram.DatabaseChannelID,
		SourceChannels:   cfg.Telegram.SourceChannels(),
		Admins:           cfg.Telegram.Admins(),
		DownloadLink:     cfg.Telegram.DownloadBotLink,
		Watermark:        cfg.Telegram.WatermarkHandle,
		PageSize:         cfg.Bot.PageSize,
		SessionTTL:       cfg.Bot.SessionTTL,
		InteractiveLimit: cfg.Resolve.InteractiveLimit,
	}, orch, a.ledger, a.composer, a.Telegram, st, logger)

	a.Scheduler, err = scheduler.New(logger)
	if err != nil {
		return nil, err
	}
	if err := a.registerTasks(); err != nil {
		_ = a.Scheduler.Stop()
		return nil, err
	}
	return a, nil
}

// openStore connects to MongoDB, or keeps markers in memory when no URI is
// configured or the database is unreachable.
func (a *App) openStore(ctx context.Context) store {
	if a.Config.Database.URI == "" {
		a.logger.Warn().Msg("MONGODB_URI not set, markers are kept in memory only")
		return storage.NewMemory()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	m, err := storage.NewMongo(ctx, a.Config.Database.URI, a.Config.Database.Name)
	if err != nil {
		a.logger.Error().Err(err).Msg("MongoDB unavailable, falling back to memory store")
		return storage.NewMemory()
	}
	a.mongo = m
	a.logger.Info().Str("database", a.Config.Database.Name).Msg("Connected to MongoDB")
	return m
}

func (a *App) registerTasks() error {
	tasks := []scheduler.Task{
		{
			Name:  "ledger-sweep",
			Every: a.Config.Ledger.SweepInterval,
			Func: func(context.Context) error {
				a.ledger.Sweep()
				return nil
			},
		},
		{
			Name:  "session-purge",
			Every: a.Config.Bot.SessionTTL,
			Func: func(context.Context) error {
				a.Bot.PurgeSessions()
				return nil
			},
		},
		{
			Name:       "poster-cleanup",
			Every:      a.Config.Poster.MaxAge,
			RunOnStart: true,
			Func: func(context.Context) error {
				_, err := a.composer.Cleanup(a.Config.Poster.MaxAge)
				return err
			},
		},
	}
	for _, t := range tasks {
		if err := a.Scheduler.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Start() {
	a.Scheduler.Start()
}

func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Scheduler.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if a.mongo != nil {
		if err := a.mongo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close mongo: %w", err))
		}
	}
	return errors.Join(errs...)
}

// BuildTiers constructs the configured adapters in order, each behind a
// breaker and rate limiter. Adapters without credentials are skipped.
func BuildTiers(cfg config.ProvidersConfig, logger zerolog.Logger) (provider.Tiers, error) {
	guard := provider.GuardConfig{
		Timeout:          cfg.Timeout,
		RateLimit:        cfg.RateLimit,
		Burst:            cfg.Burst,
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		BreakerTimeout:   cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}
	build := func(names []string) []provider.Adapter {
		out := make([]provider.Adapter, 0, len(names))
		for _, name := range names {
			a, err := newAdapter(name, cfg)
			if err != nil {
				logger.Warn().Err(err).Str("provider", name).Msg("Provider disabled")
				continue
			}
			out = append(out, provider.Guard(a, guard, logger))
		}
		return out
	}
	tiers := provider.Tiers{Primary: build(cfg.Primary), Secondary: build(cfg.Secondary)}
	if tiers.Empty() {
		return tiers, errors.New("no metadata providers are available")
	}
	return tiers, nil
}

func newAdapter(name string, cfg config.ProvidersConfig) (provider.Adapter, error) {
	switch media.Provider(name) {
	case media.ProviderTMDB:
		c, err := tmdb.New(tmdb.Config{
			APIKey:       cfg.TMDB.APIKey,
			BaseURL:      cfg.TMDB.BaseURL,
			ImageBaseURL: cfg.TMDB.ImageBaseURL,
			Language:     cfg.TMDB.Language,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case media.ProviderOMDB:
		c, err := omdb.New(omdb.Config{APIKey: cfg.OMDB.APIKey, BaseURL: cfg.OMDB.BaseURL})
		if err != nil {
			return nil, err
		}
		return c, nil
	case media.ProviderIMDB:
		return imdb.New(imdb.Config{BaseURL: cfg.IMDB.BaseURL, UserAgent: cfg.IMDB.UserAgent}), nil
	case media.ProviderNeoMovies:
		return neomovies.NewClient(cfg.NeoMovies.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
