package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/tg"
)

// UpdateHandler processes one decoded Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tg.Update)
}

type Webhook struct {
	bot     UpdateHandler
	secret  string
	timeout time.Duration
	logger  zerolog.Logger
}

// New returns the webhook endpoint. When secret is set, requests must carry
// it in the X-Telegram-Bot-Api-Secret-Token header.
func New(bot UpdateHandler, secret string, timeout time.Duration, logger zerolog.Logger) *Webhook {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Webhook{
		bot:     bot,
		secret:  secret,
		timeout: timeout,
		logger:  logger.With().Str("component", "webhook").Logger(),
	}
}

func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h.secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var upd tg.Update
	if err := json.Unmarshal(body, &upd); err != nil {
		h.logger.Warn().Err(err).Msg("Invalid update payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Telegram may drop the connection before a slow render finishes; the
	// update is still processed to completion.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()
	h.bot.HandleUpdate(ctx, upd)
	w.WriteHeader(http.StatusOK)
}
