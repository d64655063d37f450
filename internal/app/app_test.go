package app

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/config"
	"mposter-tg-bot/internal/media"
)

func TestBuildTiers_SkipsMissingCredentials(t *testing.T) {
	cfg := config.ProvidersConfig{
		Primary:   []string{"tmdb", "imdb"},
		Secondary: []string{"omdb", "neomovies", "bogus"},
	}
	tiers, err := BuildTiers(cfg, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, tiers.Primary, 1)
	assert.Equal(t, media.ProviderIMDB, tiers.Primary[0].Name())
	require.Len(t, tiers.Secondary, 1)
	assert.Equal(t, media.ProviderNeoMovies, tiers.Secondary[0].Name())
}

func TestBuildTiers_WithKeys(t *testing.T) {
	cfg := config.ProvidersConfig{
		Primary:   []string{"tmdb"},
		Secondary: []string{"omdb"},
		TMDB:      config.TMDBConfig{APIKey: "k"},
		OMDB:      config.OMDBConfig{APIKey: "k"},
	}
	tiers, err := BuildTiers(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, media.ProviderTMDB, tiers.Primary[0].Name())
	assert.Equal(t, media.ProviderOMDB, tiers.Secondary[0].Name())
}

func TestBuildTiers_NoneAvailable(t *testing.T) {
	_, err := BuildTiers(config.ProvidersConfig{Primary: []string{"tmdb"}}, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_MemoryStore(t *testing.T) {
	cfg := &config.Config{
		Telegram: config.TelegramConfig{BotToken: "t", PostToChannel: true, MovieChannelID: -100},
		Providers: config.ProvidersConfig{
			Primary: []string{"imdb"},
		},
		Ledger: config.LedgerConfig{SweepInterval: time.Minute},
		Poster: config.PosterConfig{TempDir: t.TempDir(), MaxAge: time.Hour},
		Bot:    config.BotConfig{SessionTTL: time.Minute},
	}
	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a.Bot)
	assert.Nil(t, a.mongo)

	a.Start()
	assert.Eventually(t, func() bool { return a.Scheduler.Runs("poster-cleanup") == 1 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, a.Close(context.Background()))
}
