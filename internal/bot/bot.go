// Package bot routes Telegram updates through extraction, resolution,
// deduplication, rendering and publishing.
package bot

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/ledger"
	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/metrics"
	"mposter-tg-bot/internal/storage"
	"mposter-tg-bot/internal/tg"
	"mposter-tg-bot/internal/title"
)

type Resolver interface {
	ResolveBestMatch(ctx context.Context, c title.Candidate) (*media.Record, error)
	ResolveCandidates(ctx context.Context, c title.Candidate, limit int) []media.Record
	Details(ctx context.Context, rec media.Record) (*media.Record, error)
	LookupID(ctx context.Context, id string) (*media.Record, error)
}

type Ledger interface {
	ShouldProcessMovie(ctx context.Context, name string) bool
	ShouldProcessSeries(ctx context.Context, name string, season int) bool
	CommitMovieProcessed(ctx context.Context, name string) error
	CommitSeriesProcessed(ctx context.Context, name string, season int) error
	Reset(ctx context.Context, scope ledger.Scope) (int64, error)
}

type Renderer interface {
	Render(ctx context.Context, rec media.Record) (string, error)
}

// Messenger is the subset of the Bot API the bot talks to.
type Messenger interface {
	SendMessage(ctx context.Context, req tg.SendMessageRequest) error
	SendPhotoFile(ctx context.Context, req tg.SendPhotoRequest) (int, error)
	EditMessageText(ctx context.Context, req tg.EditMessageTextRequest) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}

// History keeps processed markers and the request log.
type History interface {
	ListMarkersSince(ctx context.Context, kind string, since time.Time) ([]ledger.Marker, error)
	LogRequest(ctx context.Context, r storage.Request) error
	MarkRequestsProcessed(ctx context.Context, movieTitle string) (int64, error)
	RecentRequests(ctx context.Context, window time.Duration) ([]storage.Request, error)
}

type Config struct {
	Destination      int64
	FallbackChatID   int64
	SourceChannels   []int64
	Admins           []int64
	DownloadLink     string
	Watermark        string
	PageSize         int
	SessionTTL       time.Duration
	InteractiveLimit int
}

type Bot struct {
	cfg      Config
	resolver Resolver
	ledger   Ledger
	renderer Renderer
	tg       Messenger
	history  History
	sessions *sessions
	logger   zerolog.Logger
}

func New(cfg Config, resolver Resolver, l Ledger, renderer Renderer, messenger Messenger, history History, logger zerolog.Logger) *Bot {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.InteractiveLimit <= 0 {
		cfg.InteractiveLimit = 50
	}
	return &Bot{
		cfg:      cfg,
		resolver: resolver,
		ledger:   l,
		renderer: renderer,
		tg:       messenger,
		history:  history,
		sessions: newSessions(cfg.SessionTTL, time.Now),
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// HandleUpdate processes one update to completion. Failures are reported to
// the user or logged; nothing is returned to the transport.
func (b *Bot) HandleUpdate(ctx context.Context, upd tg.Update) {
	log := b.logger.With().Str("request_id", uuid.NewString()).Int("update_id", upd.UpdateID).Logger()
	ctx = log.WithContext(ctx)

	switch {
	case upd.CallbackQuery != nil:
		metrics.RecordUpdate("callback")
		b.handleCallback(ctx, upd.CallbackQuery)
	case upd.ChannelPost != nil:
		metrics.RecordUpdate("channel_post")
		b.handleChannelPost(ctx, upd.ChannelPost)
	case upd.Message != nil:
		metrics.RecordUpdate("message")
		b.handleMessage(ctx, upd.Message)
	default:
		metrics.RecordUpdate("ignored")
	}
}

// PurgeSessions drops interactive sessions older than the configured TTL.
func (b *Bot) PurgeSessions() int {
	n := b.sessions.purge()
	if n > 0 {
		b.logger.Debug().Int("purged", n).Msg("Expired sessions removed")
	}
	return n
}

func (b *Bot) handleChannelPost(ctx context.Context, msg *tg.Message) {
	if !slices.Contains(b.cfg.SourceChannels, msg.Chat.ID) {
		return
	}
	b.autoPost(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tg.Message) {
	if slices.Contains(b.cfg.SourceChannels, msg.Chat.ID) {
		b.autoPost(ctx, msg)
		return
	}
	if !msg.IsPrivate() {
		return
	}
	if msg.File() != nil {
		b.autoPost(ctx, msg)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text)
		return
	}
	b.startSearch(ctx, msg, text)
}

func (b *Bot) isAdmin(userID int64) bool {
	return userID != 0 && slices.Contains(b.cfg.Admins, userID)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	err := b.tg.SendMessage(ctx, tg.SendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML", DisableWebPagePreview: true})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("Reply failed")
	}
}
