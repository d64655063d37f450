package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/tg"
)

type recorder struct {
	mu      sync.Mutex
	updates []tg.Update
	ctxErr  error
}

func (r *recorder) HandleUpdate(ctx context.Context, upd tg.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, upd)
	r.ctxErr = ctx.Err()
}

func post(t *testing.T, h http.Handler, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatches(t *testing.T) {
	rec := &recorder{}
	h := New(rec, "", time.Second, zerolog.Nop())

	w := post(t, h, `{"update_id":5,"message":{"message_id":1,"chat":{"id":7,"type":"private"},"text":"Heat"}}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, rec.updates, 1)
	assert.Equal(t, 5, rec.updates[0].UpdateID)
	assert.Equal(t, "Heat", rec.updates[0].Message.Text)
	assert.NoError(t, rec.ctxErr)
}

func TestWebhookRejects(t *testing.T) {
	rec := &recorder{}
	h := New(rec, "s3cret", time.Second, zerolog.Nop())

	w := post(t, h, `{"update_id":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(t, h, `not json`, map[string]string{"X-Telegram-Bot-Api-Secret-Token": "s3cret"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/webhook", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	assert.Empty(t, rec.updates)
}
