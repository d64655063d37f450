package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/poster"
	"mposter-tg-bot/internal/tg"
	"mposter-tg-bot/internal/title"
)

func (b *Bot) startSearch(ctx context.Context, msg *tg.Message, text string) {
	c, ok := title.Extract(title.Input{Text: text, Origin: title.OriginText})
	if !ok {
		b.reply(ctx, msg.Chat.ID, "Send me a movie or series name, for example <code>Inception 2010</code>.")
		return
	}
	b.logRequest(ctx, msg, c)

	results := b.resolver.ResolveCandidates(ctx, c, b.cfg.InteractiveLimit)
	if len(results) == 0 {
		b.reply(ctx, msg.Chat.ID, fmt.Sprintf("❌ No results found for <b>%s</b>.", html.EscapeString(c.SearchTitle())))
		return
	}

	sess := b.sessions.add(msg.Chat.ID, msg.SenderID(), c.SearchTitle(), results)
	kb, page, pages := sess.Keyboard(1, b.cfg.PageSize)
	err := b.tg.SendMessage(ctx, tg.SendMessageRequest{
		ChatID:      msg.Chat.ID,
		Text:        pickerText(sess, page, pages),
		ParseMode:   "HTML",
		ReplyMarkup: kb,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to send results")
		b.sessions.remove(sess.id)
	}
}

func pickerText(sess *session, page, pages int) string {
	return fmt.Sprintf("🔎 <b>%d</b> results for <b>%s</b> (page %d/%d).\nPick one to post:", len(sess.results), html.EscapeString(sess.query), page, pages)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tg.CallbackQuery) {
	data := strings.TrimSpace(cq.Data)
	action, rest, _ := strings.Cut(data, ":")
	var answer string

	switch action {
	case "page":
		answer = b.onPage(ctx, cq, rest)
	case "pick":
		answer = b.onPick(ctx, cq, rest)
	case "send":
		answer = b.onSendToMe(ctx, cq, rest)
	case "cancel":
		b.sessions.remove(rest)
		if cq.Message != nil {
			_ = b.tg.DeleteMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
		}
		answer = "Cancelled"
	}
	if err := b.tg.AnswerCallbackQuery(ctx, cq.ID, answer); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("Answer callback failed")
	}
}

func (b *Bot) ownSession(cq *tg.CallbackQuery, id string) (*session, bool) {
	sess, ok := b.sessions.get(id)
	if !ok || (sess.userID != 0 && sess.userID != cq.From.ID) {
		return nil, false
	}
	return sess, true
}

func (b *Bot) onPage(ctx context.Context, cq *tg.CallbackQuery, rest string) string {
	parts := strings.Split(rest, ":")
	if len(parts) != 2 || cq.Message == nil {
		return ""
	}
	sess, ok := b.ownSession(cq, parts[0])
	if !ok {
		return "This search has expired."
	}
	n, _ := strconv.Atoi(parts[1])
	kb, page, pages := sess.Keyboard(n, b.cfg.PageSize)
	err := b.tg.EditMessageText(ctx, tg.EditMessageTextRequest{
		ChatID:      cq.Message.Chat.ID,
		MessageID:   cq.Message.MessageID,
		Text:        pickerText(sess, page, pages),
		ParseMode:   "HTML",
		ReplyMarkup: kb,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to switch page")
	}
	return ""
}

// onPick posts the selected record to the destination.
func (b *Bot) onPick(ctx context.Context, cq *tg.CallbackQuery, rest string) string {
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return ""
	}
	own, ok := b.ownSession(cq, parts[0])
	if !ok {
		return "This search has expired."
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil || idx < 0 || idx >= len(own.results) {
		return "Unknown selection."
	}
	sess, ok := b.sessions.take(parts[0])
	if !ok {
		return "This search has expired."
	}
	chatID := sess.chatID
	if cq.Message != nil {
		_ = b.tg.DeleteMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
	}

	log := zerolog.Ctx(ctx)
	rec, err := b.resolver.Details(ctx, sess.results[idx])
	if err != nil {
		log.Warn().Err(err).Str("title", sess.results[idx].Title).Msg("Selection is not postable")
		b.reply(ctx, chatID, fmt.Sprintf("❌ <b>%s</b> has no poster.", html.EscapeString(sess.results[idx].Title)))
		return ""
	}
	c := title.Candidate{Title: rec.Title, Kind: rec.Kind}
	if !b.ledger.ShouldProcessMovie(ctx, c.Title) {
		b.reply(ctx, chatID, fmt.Sprintf("⏭ <b>%s</b> was posted recently.", html.EscapeString(rec.Title)))
		return ""
	}
	if err := b.deliver(ctx, *rec, c); err != nil {
		log.Error().Err(err).Str("title", rec.Title).Msg("Delivery failed")
		b.reply(ctx, chatID, fmt.Sprintf("❌ Could not post <b>%s</b>.", html.EscapeString(rec.Title)))
		return ""
	}
	log.Info().Str("title", rec.Title).Msg("Selection published")
	b.reply(ctx, chatID, fmt.Sprintf("✅ Posted <b>%s (%s)</b>.", html.EscapeString(rec.Title), rec.Year()))
	return "Posted"
}

// onSendToMe renders a preview for the requester only; the ledger is not touched.
func (b *Bot) onSendToMe(ctx context.Context, cq *tg.CallbackQuery, id string) string {
	if _, ok := b.ownSession(cq, id); !ok {
		return "This search has expired."
	}
	sess, ok := b.sessions.take(id)
	if !ok || len(sess.results) == 0 {
		return "This search has expired."
	}
	if cq.Message != nil {
		_ = b.tg.DeleteMessage(ctx, cq.Message.Chat.ID, cq.Message.MessageID)
	}
	if err := b.preview(ctx, sess.chatID, sess.results[0]); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Preview failed")
		b.reply(ctx, sess.chatID, "❌ Could not render the poster.")
		return ""
	}
	return "Sent"
}

func (b *Bot) preview(ctx context.Context, chatID int64, rec media.Record) error {
	path, err := b.renderer.Render(ctx, rec)
	if err != nil {
		return err
	}
	defer poster.Remove(path)
	_, err = b.tg.SendPhotoFile(ctx, tg.SendPhotoRequest{
		ChatID:      chatID,
		Photo:       path,
		Caption:     Caption(rec, 0, 0, b.cfg.Watermark),
		ParseMode:   "HTML",
		ReplyMarkup: b.downloadButton(),
	})
	return err
}
