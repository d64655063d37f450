package bot

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/tg"
)

const (
	maxHashtags = 3
	maxOverview = 200
)

// Caption builds the HTML caption posted under a poster. Season and episode
// are added for series posts when known.
func Caption(rec media.Record, season, episode int, watermark string) string {
	var b strings.Builder

	name := html.EscapeString(strings.TrimSpace(rec.Title))
	if y := rec.Year(); y != media.UnknownYear {
		fmt.Fprintf(&b, "<b>🍿 Name: %s (%s)</b>\n", name, y)
	} else {
		fmt.Fprintf(&b, "<b>🍿 Name: %s</b>\n", name)
	}
	if season > 0 {
		if episode > 0 {
			fmt.Fprintf(&b, "<b>📺 Season %d · Episode %d</b>\n", season, episode)
		} else {
			fmt.Fprintf(&b, "<b>📺 Season %d</b>\n", season)
		}
	}
	b.WriteString("\n")

	if tags := hashtags(rec.Genres, maxHashtags); tags != "" {
		fmt.Fprintf(&b, "<b>🎭 Genre</b>: %s\n", tags)
	}
	if rec.Rating > 0 {
		fmt.Fprintf(&b, "<b>⭐️ Rating</b>: %.1f / 10\n", rec.Rating)
	}
	fmt.Fprintf(&b, "<b>🗣️ Language</b>: #%s\n", languageName(rec.OriginalLanguage))

	if overview := strings.TrimSpace(rec.Overview); overview != "" {
		fmt.Fprintf(&b, "\n<b>💬 Storyline</b>:\n<blockquote>%s</blockquote>\n", html.EscapeString(truncateRunes(overview, maxOverview)))
	}

	if handle := strings.TrimSpace(watermark); handle != "" {
		fmt.Fprintf(&b, "\n▬▬▬▬「 ᴘᴏᴡᴇʀᴇᴅ ʙʏ 」▬▬▬▬\n              •%s•", html.EscapeString(handle))
	}
	return strings.TrimRight(b.String(), "\n")
}

func hashtags(genres []string, n int) string {
	tags := make([]string, 0, n)
	for _, g := range genres {
		tag := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, g)
		if tag == "" {
			continue
		}
		tags = append(tags, "#"+tag)
		if len(tags) == n {
			break
		}
	}
	return strings.Join(tags, " ")
}

// languageName turns an ISO 639 code into a hashtag-safe English name.
func languageName(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return "English"
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "English"
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return "English"
	}
	return strings.ReplaceAll(name, " ", "")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}

func (b *Bot) downloadButton() *tg.InlineKeyboardMarkup {
	if strings.TrimSpace(b.cfg.DownloadLink) == "" {
		return nil
	}
	kb := tg.NewInlineKeyboardMarkup([][]tg.InlineKeyboardButton{{{Text: "📥 Download", URL: b.cfg.DownloadLink}}})
	return &kb
}
