package tg

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithBase(srv.URL, "TOKEN")
}

func TestSendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(42), body["chat_id"])
		assert.Equal(t, "hi", body["text"])
		assert.NotContains(t, body, "reply_markup")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	require.NoError(t, c.SendMessage(context.Background(), SendMessageRequest{ChatID: 42, Text: "hi"}))
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := c.SendMessage(context.Background(), SendMessageRequest{ChatID: 1, Text: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Bad Request: chat not found", apiErr.Description)
}

func TestSendPhotoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpegbytes"), 0o644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendPhoto", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "-100", r.FormValue("chat_id"))
		assert.Equal(t, "<b>Heat</b>", r.FormValue("caption"))
		assert.Equal(t, "HTML", r.FormValue("parse_mode"))
		assert.Contains(t, r.FormValue("reply_markup"), "https://t.me/dl")

		f, hdr, err := r.FormFile("photo")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "p.jpg", hdr.Filename)
		assert.Equal(t, "jpegbytes", string(data))
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":77}}`))
	})

	markup := NewInlineKeyboardMarkup([][]InlineKeyboardButton{{{Text: "Download", URL: "https://t.me/dl"}}})
	id, err := c.SendPhotoFile(context.Background(), SendPhotoRequest{ChatID: -100, Photo: path, Caption: "<b>Heat</b>", ParseMode: "HTML", ReplyMarkup: &markup})
	require.NoError(t, err)
	assert.Equal(t, 77, id)
}

func TestSendPhotoFile_MissingFile(t *testing.T) {
	c := NewClientWithBase("http://unused", "T")
	_, err := c.SendPhotoFile(context.Background(), SendPhotoRequest{ChatID: 1, Photo: "/does/not/exist.jpg"})
	assert.Error(t, err)
}

func TestGetUpdates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/getUpdates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("offset"))
		assert.Equal(t, `["message","channel_post"]`, r.URL.Query().Get("allowed_updates"))
		_, _ = w.Write([]byte(`{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"chat":{"id":9,"type":"private"},"text":"Heat"}}]}`))
	})

	ups, err := c.GetUpdates(context.Background(), 5, time.Second, []string{"message", "channel_post"})
	require.NoError(t, err)
	require.Len(t, ups, 1)

	var u Update
	require.NoError(t, json.Unmarshal(ups[0], &u))
	assert.Equal(t, 5, u.UpdateID)
	require.NotNil(t, u.Message)
	assert.True(t, u.Message.IsPrivate())
	assert.Equal(t, "Heat", u.Message.Text)
	assert.Zero(t, u.Message.SenderID())
	assert.Nil(t, u.Message.File())
}

func TestMessageFile(t *testing.T) {
	m := Message{Video: &Document{FileName: "Heat.1995.mkv"}}
	require.NotNil(t, m.File())
	assert.Equal(t, "Heat.1995.mkv", m.File().FileName)

	m.Document = &Document{FileName: "doc.mkv"}
	assert.Equal(t, "doc.mkv", m.File().FileName)
}

func TestSetWebhook(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/setWebhook", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://bot.example.com/api/webhook", body["url"])
		assert.Equal(t, "s3cret", body["secret_token"])
		assert.Equal(t, []any{"message", "channel_post", "callback_query"}, body["allowed_updates"])
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	})

	require.NoError(t, c.SetWebhook(context.Background(), "https://bot.example.com/api/webhook", "s3cret", AllowedUpdates))
}
