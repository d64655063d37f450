package tg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

type Client struct {
	baseURL string
	hc      *http.Client
}

func NewClient(token string) *Client {
	return NewClientWithBase(defaultAPIBase, token)
}

// NewClientWithBase targets a custom Bot API server, such as a local one.
func NewClientWithBase(apiBase, token string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		baseURL: fmt.Sprintf("%s/bot%s", strings.TrimRight(apiBase, "/"), token),
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

type InlineKeyboardButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

func NewInlineKeyboardMarkup(rows [][]InlineKeyboardButton) InlineKeyboardMarkup {
	return InlineKeyboardMarkup{InlineKeyboard: rows}
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error {
	payload := map[string]any{"callback_query_id": callbackQueryID}
	if text != "" {
		payload["text"] = text
	}
	return c.post(ctx, "/answerCallbackQuery", payload)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.post(ctx, "/deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID})
}

type SendMessageRequest struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
	ReplyToMessageID      int                   `json:"reply_to_message_id,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) error {
	return c.post(ctx, "/sendMessage", req)
}

type SendPhotoRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Photo       string                `json:"photo"`
	Caption     string                `json:"caption,omitempty"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendPhoto sends a photo by URL or file_id.
func (c *Client) SendPhoto(ctx context.Context, req SendPhotoRequest) error {
	return c.post(ctx, "/sendPhoto", req)
}

// SendPhotoFile uploads a local image; req.Photo is the file path.
func (c *Client) SendPhotoFile(ctx context.Context, req SendPhotoRequest) (int, error) {
	f, err := os.Open(req.Photo)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("chat_id", strconv.FormatInt(req.ChatID, 10))
	if req.Caption != "" {
		_ = mw.WriteField("caption", req.Caption)
	}
	if req.ParseMode != "" {
		_ = mw.WriteField("parse_mode", req.ParseMode)
	}
	if req.ReplyMarkup != nil {
		markup, _ := json.Marshal(req.ReplyMarkup)
		_ = mw.WriteField("reply_markup", string(markup))
	}
	part, err := mw.CreateFormFile("photo", filepath.Base(req.Photo))
	if err != nil {
		return 0, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return 0, err
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}

	raw, err := c.do(ctx, "/sendPhoto", mw.FormDataContentType(), &buf)
	if err != nil {
		return 0, err
	}
	var msg struct {
		MessageID int `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

type EditMessageTextRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	return c.post(ctx, "/editMessageText", req)
}

type EditMessageReplyMarkupRequest struct {
	ChatID      int64                 `json:"chat_id,omitempty"`
	MessageID   int                   `json:"message_id,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) EditMessageReplyMarkup(ctx context.Context, req EditMessageReplyMarkupRequest) error {
	return c.post(ctx, "/editMessageReplyMarkup", req)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int, timeout time.Duration, allowed []string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(int(timeout.Seconds())))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if len(allowed) > 0 {
		b, _ := json.Marshal(allowed)
		q.Set("allowed_updates", string(b))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/getUpdates?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	hc := *c.hc
	hc.Timeout = timeout + 10*time.Second
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := decode("/getUpdates", resp)
	if err != nil {
		return nil, err
	}
	var updates []json.RawMessage
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// AllowedUpdates are the update types the bot subscribes to.
var AllowedUpdates = []string{"message", "channel_post", "callback_query"}

func (c *Client) SetWebhook(ctx context.Context, hookURL, secret string, allowed []string) error {
	payload := map[string]any{"url": hookURL}
	if secret != "" {
		payload["secret_token"] = secret
	}
	if len(allowed) > 0 {
		payload["allowed_updates"] = allowed
	}
	return c.post(ctx, "/setWebhook", payload)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.post(ctx, "/deleteWebhook", map[string]any{"drop_pending_updates": false})
}

func (c *Client) post(ctx context.Context, method string, payload any) error {
	_, err := c.postWithResult(ctx, method, payload)
	return err
}

func (c *Client) postWithResult(ctx context.Context, method string, payload any) ([]byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, method, "application/json", bytes.NewReader(b))
}

func (c *Client) do(ctx context.Context, method, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+method, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decode(method, resp)
}

// APIError is a non-ok Bot API answer.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api %s status %d: %s", e.Method, e.StatusCode, e.Description)
}

func decode(method string, resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		desc := string(body)
		var e struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(body, &e) == nil && e.Description != "" {
			desc = e.Description
		}
		return nil, &APIError{Method: method, StatusCode: resp.StatusCode, Description: desc}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Ok     bool            `json:"ok"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Ok {
		return wrapper.Result, nil
	}
	return body, nil
}
