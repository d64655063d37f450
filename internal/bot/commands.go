package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/ledger"
	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/resolve"
	"mposter-tg-bot/internal/storage"
	"mposter-tg-bot/internal/tg"
	"mposter-tg-bot/internal/title"
)

const (
	listWindow    = 24 * time.Hour
	listChunkSize = 30
)

const helpText = `<b>🎬 Movie Poster Bot</b>

Send a movie or series name and pick the right match to post it.
Forward a video or document and the poster is posted automatically.

<b>Commands</b>
/id &lt;tt1234567|12345|kp123&gt; - look up a title by id
/list - movies posted in the last 24 hours and pending requests
/reset movies|series - clear the dedup ledger (admins)
/help - this message`

func (b *Bot) handleCommand(ctx context.Context, msg *tg.Message, text string) {
	fields := strings.Fields(text)
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch cmd {
	case "/start":
		name := "there"
		if msg.From != nil && msg.From.FirstName != "" {
			name = msg.From.FirstName
		}
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("👋 Hi %s!\n\n%s", html.EscapeString(name), helpText))
	case "/help":
		b.reply(ctx, msg.Chat.ID, helpText)
	case "/id":
		b.cmdID(ctx, msg, args)
	case "/list":
		b.cmdList(ctx, msg)
	case "/reset":
		b.cmdReset(ctx, msg, args)
	default:
		b.reply(ctx, msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) cmdID(ctx context.Context, msg *tg.Message, args []string) {
	if len(args) != 1 {
		b.reply(ctx, msg.Chat.ID, "❌ <b>Usage:</b> <code>/id tt1234567</code> (IMDb), <code>/id 12345</code> (TMDB) or <code>/id kp123</code>")
		return
	}
	id := strings.TrimSpace(args[0])
	rec, err := b.resolver.LookupID(ctx, id)
	if err != nil {
		if !errors.Is(err, resolve.ErrNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("id", id).Msg("ID lookup failed")
		}
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("❌ Nothing found for <code>%s</code>.", html.EscapeString(id)))
		return
	}

	sess := b.sessions.add(msg.Chat.ID, msg.SenderID(), id, []media.Record{*rec})
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{
		{
			{Text: "📤 Send to Channel", CallbackData: fmt.Sprintf("pick:%s:0", sess.id)},
			{Text: "🤖 Send to Me", CallbackData: "send:" + sess.id},
		},
		{{Text: "❌ Cancel", CallbackData: "cancel:" + sess.id}},
	})
	kind := "Movie"
	if rec.Kind == media.KindTV {
		kind = "Series"
	}
	text := fmt.Sprintf("✅ <b>Found</b>\n\n🎬 <b>Title:</b> %s\n📅 <b>Year:</b> %s\n🎭 <b>Type:</b> %s\n\n<i>Where should I send the poster?</i>",
		html.EscapeString(rec.Title), rec.Year(), kind)
	if err := b.tg.SendMessage(ctx, tg.SendMessageRequest{ChatID: msg.Chat.ID, Text: text, ParseMode: "HTML", ReplyMarkup: &kb}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to send lookup result")
		b.sessions.remove(sess.id)
	}
}

func (b *Bot) cmdList(ctx context.Context, msg *tg.Message) {
	if b.history == nil {
		b.reply(ctx, msg.Chat.ID, "History is not available.")
		return
	}
	markers, err := b.history.ListMarkersSince(ctx, ledger.KindMovie, time.Now().Add(-listWindow))
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list markers")
		b.reply(ctx, msg.Chat.ID, "❌ Could not load the list.")
		return
	}
	names := make([]string, 0, len(markers))
	for _, m := range markers {
		names = append(names, m.Name)
	}
	for _, chunk := range ListMessages(names) {
		b.reply(ctx, msg.Chat.ID, chunk)
	}

	reqs, err := b.history.RecentRequests(ctx, listWindow)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to load recent requests")
		return
	}
	if text := pendingSummary(reqs); text != "" {
		b.reply(ctx, msg.Chat.ID, text)
	}
}

// pendingSummary lists requested titles that were never posted, newest first.
func pendingSummary(reqs []storage.Request) string {
	var titles []string
	seen := map[string]bool{}
	for _, r := range reqs {
		if r.Processed {
			continue
		}
		key := title.Normalize(r.MovieTitle)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		titles = append(titles, "• "+html.EscapeString(r.MovieTitle))
	}
	if len(titles) == 0 {
		return ""
	}
	if len(titles) > listChunkSize {
		titles = append(titles[:listChunkSize], "…")
	}
	return fmt.Sprintf("⏳ <b>Still pending (%d)</b>\n%s", len(seen), strings.Join(titles, "\n"))
}

// ListMessages groups names by first letter after dropping normalized
// duplicates, and splits the listing into messages of at most 30 lines.
func ListMessages(names []string) []string {
	seen := make(map[string]bool, len(names))
	groups := make(map[string][]string)
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := title.Normalize(n)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		groups[groupKey(n)] = append(groups[groupKey(n)], n)
	}
	if len(seen) == 0 {
		return []string{"No movies were posted in the last 24 hours."}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if (keys[i] == "#") != (keys[j] == "#") {
			return keys[j] == "#"
		}
		return keys[i] < keys[j]
	})

	lines := []string{fmt.Sprintf("🎬 <b>Posted in the last 24 hours</b> (%d)", len(seen))}
	for _, k := range keys {
		entries := groups[k]
		sort.Slice(entries, func(i, j int) bool { return strings.ToLower(entries[i]) < strings.ToLower(entries[j]) })
		lines = append(lines, "", "<b>"+k+"</b>")
		for _, e := range entries {
			lines = append(lines, "• "+html.EscapeString(e))
		}
	}

	var out []string
	for start := 0; start < len(lines); start += listChunkSize {
		end := min(start+listChunkSize, len(lines))
		chunk := strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func groupKey(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsLetter(r) {
		return string(unicode.ToUpper(r))
	}
	return "#"
}

func (b *Bot) cmdReset(ctx context.Context, msg *tg.Message, args []string) {
	if !b.isAdmin(msg.SenderID()) {
		b.reply(ctx, msg.Chat.ID, "⛔ Admins only.")
		return
	}
	var scope ledger.Scope
	switch {
	case len(args) == 1 && strings.EqualFold(args[0], "movies"):
		scope = ledger.ScopeMovies
	case len(args) == 1 && strings.EqualFold(args[0], "series"):
		scope = ledger.ScopeSeries
	default:
		b.reply(ctx, msg.Chat.ID, "Usage: <code>/reset movies</code> or <code>/reset series</code>")
		return
	}
	n, err := b.ledger.Reset(ctx, scope)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("scope", string(scope)).Msg("Ledger reset failed")
		b.reply(ctx, msg.Chat.ID, "❌ Reset failed.")
		return
	}
	zerolog.Ctx(ctx).Info().Str("scope", string(scope)).Int64("removed", n).Int64("admin", msg.SenderID()).Msg("Ledger reset")
	b.reply(ctx, msg.Chat.ID, fmt.Sprintf("✅ Cleared %d %s markers.", n, scope))
}
