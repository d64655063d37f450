package imdb

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mposter-tg-bot/internal/media"
)

// ldMovie is the schema.org block embedded in title pages.
type ldMovie struct {
	Type            string          `json:"@type"`
	Name            string          `json:"name"`
	AlternateName   string          `json:"alternateName"`
	Image           string          `json:"image"`
	Description     string          `json:"description"`
	DatePublished   string          `json:"datePublished"`
	Duration        string          `json:"duration"`
	Genre           json.RawMessage `json:"genre"`
	InLanguage      json.RawMessage `json:"inLanguage"`
	AggregateRating struct {
		RatingValue json.Number `json:"ratingValue"`
		RatingCount json.Number `json:"ratingCount"`
	} `json:"aggregateRating"`
}

var (
	nonGenreRe = regexp.MustCompile(`[^A-Za-z\s-]`)
	votesRe    = regexp.MustCompile(`([\d.,]+)\s*([KM]?)`)
)

func parseTitlePage(doc *goquery.Document, id string, kind media.Kind) *media.Record {
	rec := &media.Record{
		ExternalID: id,
		Provider:   name,
		IMDbID:     id,
		Kind:       kind,
	}

	var ld ldMovie
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		return json.Unmarshal([]byte(s.Text()), &ld) != nil || ld.Name == ""
	})

	rec.Title = firstNonEmpty(ld.Name, collapse(doc.Find(`h1[data-testid="hero__pageTitle"], h1`).First().Text()))
	rec.PosterURL = firstNonEmpty(ld.Image, posterFromDOM(doc))
	rec.Overview = firstNonEmpty(ld.Description, collapse(doc.Find(`span[data-testid="plot-l"], span[data-testid="plot-xl"]`).First().Text()))
	rec.ReleaseYear = media.YearFromDate(ld.DatePublished)
	if rec.ReleaseYear == "" {
		rec.ReleaseYear = yearRe.FindString(doc.Find(`a[href*="releaseinfo"]`).First().Text())
	}

	rec.Rating, _ = ld.AggregateRating.RatingValue.Float64()
	if n, err := ld.AggregateRating.RatingCount.Int64(); err == nil {
		rec.VoteCount = int(n)
	}
	if rec.Rating == 0 {
		rec.Rating, rec.VoteCount = ratingFromDOM(doc)
	}

	rec.Genres = stringOrList(ld.Genre)
	if len(rec.Genres) == 0 {
		rec.Genres = genresFromDOM(doc)
	}
	if langs := stringOrList(ld.InLanguage); len(langs) > 0 {
		rec.OriginalLanguage = langs[0]
	}

	mins := minutesFromDuration(ld.Duration)
	if mins == 0 {
		mins = minutesFromDuration(doc.Find(`li[data-testid="title-techspec_runtime"]`).Text())
	}
	if mins > 0 {
		rec.Runtime = fmt.Sprintf("%d min", mins)
	}

	if rec.Kind == media.KindUnknown {
		rec.Kind = kindFromPage(ld.Type, doc)
	}
	rec.Normalize()
	return rec
}

func kindFromPage(ldType string, doc *goquery.Document) media.Kind {
	switch strings.ToLower(ldType) {
	case "tvseries", "tvminiseries", "tvepisode":
		return media.KindTV
	case "movie":
		return media.KindMovie
	}
	if doc.Find(`a[href*="title_type=tv_series"]`).Length() > 0 {
		return media.KindTV
	}
	if tvMarkerRe.MatchString(doc.Find(`ul[data-testid="hero-title-block__metadata"], h1`).Parent().Text()) {
		return media.KindTV
	}
	return media.KindMovie
}

func posterFromDOM(doc *goquery.Document) string {
	src, _ := doc.Find(`div[data-testid="hero-media__poster"] img.ipc-image, img.ipc-image`).First().Attr("src")
	return fullSizePoster(src)
}

func genresFromDOM(doc *goquery.Document) []string {
	var out []string
	add := func(_ int, s *goquery.Selection) {
		g := strings.TrimSpace(nonGenreRe.ReplaceAllString(s.Text(), ""))
		if len(g) > 1 && !strings.EqualFold(g, "genres") {
			out = append(out, g)
		}
	}
	doc.Find(`div[data-testid="genres"] .ipc-chip__text, div[data-testid="interests"] .ipc-chip__text`).Each(add)
	if len(out) == 0 {
		doc.Find(`a[href*="/search/title?genres="], a[href*="/search/title/?genres="]`).Each(add)
	}
	return out
}

func ratingFromDOM(doc *goquery.Document) (float64, int) {
	block := doc.Find(`div[data-testid="hero-rating-bar__aggregate-rating"]`).First()
	if block.Length() == 0 {
		return 0, 0
	}
	score := collapse(block.Find(`span`).First().Text())
	rating, _ := strconv.ParseFloat(strings.Split(score, "/")[0], 64)

	var votes int
	if m := votesRe.FindStringSubmatch(collapse(block.Find(`div`).Last().Text())); m != nil {
		n, _ := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		switch m[2] {
		case "K":
			n *= 1e3
		case "M":
			n *= 1e6
		}
		votes = int(n)
	}
	return rating, votes
}

// stringOrList decodes a JSON-LD value that is either "a" or ["a","b"].
func stringOrList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil && one != "" {
		return strings.Split(one, ",")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
