package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	handler "mposter-tg-bot/api"
	"mposter-tg-bot/internal/app"
	"mposter-tg-bot/internal/config"
	"mposter-tg-bot/internal/logger"
	"mposter-tg-bot/internal/tg"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New(logger.Config{}).Fatal().Err(err).Msg("Failed to load config")
	}
	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Path: cfg.Logging.Path})
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

	mux := http.NewServeMux()
	mux.Handle("/api/webhook", handler.New(a.Bot, cfg.Telegram.WebhookSecret, cfg.Bot.Timeout, log.Logger))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Bot.Timeout + 10*time.Second,
	}

	if public := strings.TrimRight(cfg.Server.PublicURL, "/"); public != "" {
		hook := public + "/api/webhook"
		if err := a.Telegram.SetWebhook(ctx, hook, cfg.Telegram.WebhookSecret, tg.AllowedUpdates); err != nil {
			log.Error().Err(err).Str("url", hook).Msg("Failed to register webhook")
		} else {
			log.Info().Str("url", hook).Msg("Webhook registered")
		}
	}

	a.Start()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Cleanup failed")
	}
	log.Info().Msg("Server stopped")
}
