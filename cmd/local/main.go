package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"net/http/httptest"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	handler "mposter-tg-bot/api"
	"mposter-tg-bot/internal/app"
	"mposter-tg-bot/internal/config"
	"mposter-tg-bot/internal/logger"
	"mposter-tg-bot/internal/tg"
)

// Local runner: loads .env, drops any webhook and long-polls updates,
// replaying each through the webhook handler.
func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Variables already set in the environment win over .env.
	_ = godotenv.Load(*envFile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.Config{}).Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: "console", Path: cfg.Logging.Path})
	defer log.Close()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer func() { _ = a.Close(context.Background()) }()

	webhook := handler.New(a.Bot, "", cfg.Bot.Timeout, log.Logger)
	mux := http.NewServeMux()
	mux.Handle("/api/webhook", webhook)
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Server.Port), Handler: mux, ReadTimeout: 10 * time.Second}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	a.Start()
	poll(ctx, a.Telegram, webhook, log.WithComponent("polling"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func poll(ctx context.Context, client *tg.Client, h http.Handler, log zerolog.Logger) {
	if err := client.DeleteWebhook(ctx); err != nil {
		log.Warn().Err(err).Msg("deleteWebhook failed")
	}
	log.Info().Msg("Polling started")

	offset := 0
	for ctx.Err() == nil {
		updates, err := client.GetUpdates(ctx, offset, 30*time.Second, tg.AllowedUpdates)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Msg("Polling error")
			select {
			case <-ctx.Done():
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if len(updates) > 0 {
			log.Debug().Int("count", len(updates)).Msg("Polling received updates")
		}
		for _, raw := range updates {
			var upd struct {
				UpdateID int `json:"update_id"`
			}
			_ = json.Unmarshal(raw, &upd)
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}

			r := httptest.NewRequest(http.MethodPost, "http://localhost/api/webhook", bytes.NewReader(raw))
			r.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			if w.Code != http.StatusOK {
				log.Warn().Int("status", w.Code).Int("update_id", upd.UpdateID).Msg("Handler rejected update")
			}
		}
	}
	log.Info().Msg("Polling stopped")
}
