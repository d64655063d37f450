package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Resolve   ResolveConfig   `mapstructure:"resolve"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Poster    PosterConfig    `mapstructure:"poster"`
	Bot       BotConfig       `mapstructure:"bot"`
}

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	PublicURL string `mapstructure:"public_url"`
}

type TelegramConfig struct {
	BotToken          string `mapstructure:"bot_token"`
	APIBase           string `mapstructure:"api_base"`
	MovieChannelID    int64  `mapstructure:"movie_channel_id"`
	DatabaseChannelID int64  `mapstructure:"database_channel_id"`
	PrivateUserID     int64  `mapstructure:"private_user_id"`
	PostToChannel     bool   `mapstructure:"post_to_channel"`
	// Comma separated chat ids whose posts are processed automatically.
	SourceChannelIDs string `mapstructure:"source_channel_ids"`
	// Comma separated user ids allowed to run admin commands.
	AdminUserIDs    string `mapstructure:"admin_user_ids"`
	DownloadBotLink string `mapstructure:"download_bot_link"`
	WatermarkHandle string `mapstructure:"watermark_handle"`
	WebhookSecret   string `mapstructure:"webhook_secret"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

type ProvidersConfig struct {
	Primary   []string        `mapstructure:"primary"`
	Secondary []string        `mapstructure:"secondary"`
	Timeout   time.Duration   `mapstructure:"timeout"`
	RateLimit float64         `mapstructure:"rate_limit"`
	Burst     int             `mapstructure:"burst"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	TMDB      TMDBConfig      `mapstructure:"tmdb"`
	OMDB      OMDBConfig      `mapstructure:"omdb"`
	IMDB      IMDBConfig      `mapstructure:"imdb"`
	NeoMovies NeoMoviesConfig `mapstructure:"neomovies"`
}

type BreakerConfig struct {
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

type TMDBConfig struct {
	APIKey       string `mapstructure:"api_key"`
	BaseURL      string `mapstructure:"base_url"`
	ImageBaseURL string `mapstructure:"image_base_url"`
	Language     string `mapstructure:"language"`
}

type OMDBConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

type IMDBConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`
}

type NeoMoviesConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type ResolveConfig struct {
	MinResults       int `mapstructure:"min_results"`
	InteractiveLimit int `mapstructure:"interactive_limit"`
}

type LedgerConfig struct {
	MovieCooldown  time.Duration `mapstructure:"movie_cooldown"`
	SeriesCooldown time.Duration `mapstructure:"series_cooldown"`
	MaxEntries     int           `mapstructure:"max_entries"`
	BatchSize      int           `mapstructure:"batch_size"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type PosterConfig struct {
	TempDir string        `mapstructure:"temp_dir"`
	MaxAge  time.Duration `mapstructure:"max_age"`
}

type BotConfig struct {
	PageSize   int           `mapstructure:"page_size"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// legacyEnv maps config keys to the bare variable names used by existing deployments.
var legacyEnv = map[string]string{
	"server.port":                  "PORT",
	"telegram.bot_token":           "BOT_TOKEN",
	"telegram.movie_channel_id":    "MOVIE_CHANNEL_ID",
	"telegram.database_channel_id": "DATABASE_CHANNEL_ID",
	"telegram.private_user_id":     "PRIVATE_SEND_USER_ID",
	"telegram.post_to_channel":     "POST_TO_CHANNEL",
	"telegram.admin_user_ids":      "ADMIN_USER_IDS",
	"database.uri":                 "MONGODB_URI",
	"logging.level":                "LOG_LEVEL",
	"providers.tmdb.api_key":       "TMDB_API_KEY",
	"providers.omdb.api_key":       "OMDB_API_KEY",
	"poster.temp_dir":              "TEMP_FOLDER",
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix("MPOSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = v.BindEnv(key, "MPOSTER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")

	v.SetDefault("telegram.api_base", "https://api.telegram.org")
	v.SetDefault("telegram.post_to_channel", true)
	v.SetDefault("telegram.source_channel_ids", "")
	v.SetDefault("telegram.admin_user_ids", "")
	v.SetDefault("telegram.webhook_secret", "")

	v.SetDefault("database.uri", "")
	v.SetDefault("database.name", "MPoster_bot")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	v.SetDefault("providers.primary", []string{"tmdb", "imdb"})
	v.SetDefault("providers.secondary", []string{"omdb", "neomovies"})
	v.SetDefault("providers.timeout", 10*time.Second)
	v.SetDefault("providers.rate_limit", 4.0)
	v.SetDefault("providers.burst", 4)
	v.SetDefault("providers.breaker.max_requests", 1)
	v.SetDefault("providers.breaker.interval", time.Minute)
	v.SetDefault("providers.breaker.timeout", 30*time.Second)
	v.SetDefault("providers.breaker.failure_threshold", 5)
	v.SetDefault("providers.tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("providers.tmdb.image_base_url", "https://image.tmdb.org/t/p/w500")
	v.SetDefault("providers.tmdb.language", "en-US")
	v.SetDefault("providers.omdb.base_url", "https://www.omdbapi.com/")
	v.SetDefault("providers.imdb.base_url", "https://www.imdb.com")
	v.SetDefault("providers.imdb.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("providers.neomovies.base_url", "https://api.neomovies.ru")

	v.SetDefault("resolve.min_results", 10)
	v.SetDefault("resolve.interactive_limit", 50)

	v.SetDefault("ledger.movie_cooldown", time.Hour)
	v.SetDefault("ledger.series_cooldown", time.Hour)
	v.SetDefault("ledger.max_entries", 1000)
	v.SetDefault("ledger.batch_size", 100)
	v.SetDefault("ledger.sweep_interval", 10*time.Minute)

	v.SetDefault("poster.temp_dir", "temp_posters")
	v.SetDefault("poster.max_age", time.Hour)

	v.SetDefault("bot.page_size", 5)
	v.SetDefault("bot.session_ttl", 15*time.Minute)
	v.SetDefault("bot.timeout", 2*time.Minute)
}

// Validate reports settings the bot cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.BotToken) == "" {
		return errors.New("telegram.bot_token (BOT_TOKEN) is required")
	}
	if c.Telegram.PostToChannel && c.Telegram.MovieChannelID == 0 {
		return errors.New("telegram.movie_channel_id is required when post_to_channel is set")
	}
	if !c.Telegram.PostToChannel && c.Telegram.PrivateUserID == 0 {
		return errors.New("telegram.private_user_id is required when post_to_channel is off")
	}
	return nil
}

// Destination returns the chat posters are published to.
func (c *TelegramConfig) Destination() int64 {
	if c.PostToChannel {
		return c.MovieChannelID
	}
	return c.PrivateUserID
}

func (c *TelegramConfig) SourceChannels() []int64 { return parseIDs(c.SourceChannelIDs) }

func (c *TelegramConfig) Admins() []int64 { return parseIDs(c.AdminUserIDs) }

func parseIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}
