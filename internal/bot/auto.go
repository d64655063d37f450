package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/metrics"
	"mposter-tg-bot/internal/poster"
	"mposter-tg-bot/internal/resolve"
	"mposter-tg-bot/internal/storage"
	"mposter-tg-bot/internal/tg"
	"mposter-tg-bot/internal/title"
)

func inputsFrom(msg *tg.Message) []title.Input {
	var inputs []title.Input
	if f := msg.File(); f != nil && f.FileName != "" {
		inputs = append(inputs, title.Input{Text: f.FileName, Origin: title.OriginFilename})
	}
	if msg.Caption != "" {
		inputs = append(inputs, title.Input{Text: msg.Caption, Origin: title.OriginCaption})
	}
	if msg.Text != "" {
		inputs = append(inputs, title.Input{Text: msg.Text, Origin: title.OriginText})
	}
	return inputs
}

// autoPost handles a file or channel post end to end: extract, check the
// ledger, resolve, render, publish and commit.
func (b *Bot) autoPost(ctx context.Context, msg *tg.Message) {
	log := zerolog.Ctx(ctx).With().Int64("chat_id", msg.Chat.ID).Int("message_id", msg.MessageID).Logger()
	private := msg.IsPrivate()
	notify := func(text string) {
		if private {
			b.reply(ctx, msg.Chat.ID, text)
		}
	}

	c, ok := title.ExtractFirst(inputsFrom(msg)...)
	if !ok {
		log.Debug().Msg("No title found in message")
		notify("❌ Could not find a movie or series title in this message.")
		return
	}
	log = log.With().Str("title", c.SearchTitle()).Bool("series", c.IsSeries).Logger()
	b.logRequest(ctx, msg, c)

	if !b.shouldProcess(ctx, c) {
		log.Info().Msg("Skipped, processed recently")
		notify(fmt.Sprintf("⏭ <b>%s</b> was posted recently.", html.EscapeString(c.SearchTitle())))
		return
	}

	rec, err := b.resolver.ResolveBestMatch(ctx, c)
	if err != nil {
		switch {
		case errors.Is(err, resolve.ErrNotFound):
			log.Warn().Msg("No provider match")
			notify(fmt.Sprintf("❌ No results found for <b>%s</b>.", html.EscapeString(c.SearchTitle())))
		case errors.Is(err, media.ErrIncompleteRecord):
			log.Warn().Err(err).Msg("Match is missing required fields")
			notify(fmt.Sprintf("❌ Found <b>%s</b> but it has no poster.", html.EscapeString(c.SearchTitle())))
		default:
			log.Error().Err(err).Msg("Resolution failed")
			notify("❌ Something went wrong, try again later.")
		}
		return
	}

	if err := b.deliver(ctx, *rec, c); err != nil {
		log.Error().Err(err).Msg("Delivery failed")
		notify(fmt.Sprintf("❌ Could not post <b>%s</b>.", html.EscapeString(rec.Title)))
		return
	}
	log.Info().Str("matched", rec.Title).Str("provider", string(rec.Provider)).Msg("Poster published")
	notify(fmt.Sprintf("✅ Posted <b>%s (%s)</b>.", html.EscapeString(rec.Title), rec.Year()))
}

func (b *Bot) shouldProcess(ctx context.Context, c title.Candidate) bool {
	if c.IsSeries {
		return b.ledger.ShouldProcessSeries(ctx, c.SeriesName, c.Season)
	}
	return b.ledger.ShouldProcessMovie(ctx, c.Title)
}

// deliver renders, publishes and commits. The ledger is written only after a
// successful publish.
func (b *Bot) deliver(ctx context.Context, rec media.Record, c title.Candidate) error {
	path, err := b.renderer.Render(ctx, rec)
	if err != nil {
		return err
	}
	defer poster.Remove(path)

	season, episode := 0, 0
	if c.IsSeries {
		season, episode = c.Season, c.Episode
	}
	if err := b.publish(ctx, path, Caption(rec, season, episode, b.cfg.Watermark)); err != nil {
		return err
	}

	log := zerolog.Ctx(ctx)
	if c.IsSeries {
		err = b.ledger.CommitSeriesProcessed(ctx, c.SeriesName, c.Season)
	} else {
		err = b.ledger.CommitMovieProcessed(ctx, c.Title)
	}
	if err != nil {
		log.Error().Err(err).Msg("Published but ledger commit failed")
	}
	if b.history != nil {
		if _, err := b.history.MarkRequestsProcessed(ctx, c.SearchTitle()); err != nil {
			log.Warn().Err(err).Msg("Failed to mark requests processed")
		}
	}
	return nil
}

// publish sends the poster to the destination and retries once to the
// fallback chat.
func (b *Bot) publish(ctx context.Context, path, caption string) error {
	req := tg.SendPhotoRequest{
		ChatID:      b.cfg.Destination,
		Photo:       path,
		Caption:     caption,
		ParseMode:   "HTML",
		ReplyMarkup: b.downloadButton(),
	}
	_, err := b.tg.SendPhotoFile(ctx, req)
	metrics.RecordPublish("primary", err)
	if err == nil {
		return nil
	}
	if b.cfg.FallbackChatID == 0 || b.cfg.FallbackChatID == b.cfg.Destination {
		return fmt.Errorf("publish to %d: %w", req.ChatID, err)
	}

	zerolog.Ctx(ctx).Warn().Err(err).Int64("fallback", b.cfg.FallbackChatID).Msg("Primary destination failed, using fallback")
	req.ChatID = b.cfg.FallbackChatID
	_, ferr := b.tg.SendPhotoFile(ctx, req)
	metrics.RecordPublish("fallback", ferr)
	if ferr != nil {
		return fmt.Errorf("publish: %w", errors.Join(err, ferr))
	}
	return nil
}

func (b *Bot) logRequest(ctx context.Context, msg *tg.Message, c title.Candidate) {
	if b.history == nil {
		return
	}
	r := storage.Request{MovieTitle: strings.TrimSpace(c.SearchTitle()), UserID: msg.SenderID()}
	if f := msg.File(); f != nil {
		r.FileSize = f.FileSize
	}
	if err := b.history.LogRequest(ctx, r); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to log request")
	}
}
