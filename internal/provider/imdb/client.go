// Package imdb scrapes imdb.com search and title pages.
package imdb

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/provider"
)

const name = media.ProviderIMDB

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

type Config struct {
	BaseURL   string
	UserAgent string
}

type Client struct {
	baseURL   string
	userAgent string
	hc        *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.imdb.com"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		hc:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Name() media.Provider { return name }

var (
	titleHrefRe = regexp.MustCompile(`/title/(tt\d+)`)
	yearRe      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	tvMarkerRe  = regexp.MustCompile(`(?i)\b(tv series|tv mini series|tv episode)\b`)
)

func (c *Client) SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, "ft", media.KindMovie, year, limit)
}

func (c *Client) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, "tv", media.KindTV, year, limit)
}

func (c *Client) search(ctx context.Context, title, ttype string, kind media.Kind, year, limit int) ([]media.Record, error) {
	q := url.Values{"q": {title}, "s": {"tt"}, "ttype": {ttype}}
	if year > 0 {
		q.Set("q", fmt.Sprintf("%s %d", title, year))
	}
	doc, err := c.fetch(ctx, "/find/?"+q.Encode())
	if err != nil {
		return nil, err
	}
	recs := parseFindPage(doc, kind, limit)
	if len(recs) == 0 {
		return nil, fmt.Errorf("imdb search %q: %w", title, provider.ErrNotFound)
	}
	return recs, nil
}

// parseFindPage walks result rows; each row holds one /title/tt link.
func parseFindPage(doc *goquery.Document, kind media.Kind, limit int) []media.Record {
	var out []media.Record
	seen := map[string]bool{}
	doc.Find(`li.find-result-item, li.ipc-metadata-list-summary-item, tr.findResult`).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		link := row.Find(`a[href*="/title/tt"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.TrimSpace(s.Text()) != ""
		}).First()
		href, _ := link.Attr("href")
		m := titleHrefRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			return true
		}
		seen[m[1]] = true

		rec := media.Record{
			ExternalID: m[1],
			Provider:   name,
			Title:      collapse(link.Text()),
			Kind:       kind,
			IMDbID:     m[1],
		}
		rowMeta := rowMetadata(row)
		if y := yearRe.FindString(rowMeta); y != "" {
			rec.ReleaseYear = y
		}
		if kind != media.KindTV && tvMarkerRe.MatchString(rowMeta) {
			rec.Kind = media.KindTV
		}
		if src, ok := row.Find("img").First().Attr("src"); ok {
			rec.PosterURL = fullSizePoster(src)
		}
		rec.Normalize()
		out = append(out, rec)
		return limit <= 0 || len(out) < limit
	})
	return out
}

// rowMetadata joins the leaf texts of a result row other than title links
// with spaces; adjacent metadata items carry no whitespace between them.
func rowMetadata(row *goquery.Selection) string {
	parts := row.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Children().Length() == 0 && s.Closest(`a[href*="/title/tt"]`).Length() == 0
	}).Map(func(_ int, s *goquery.Selection) string {
		return collapse(s.Text())
	})
	return collapse(strings.Join(parts, " "))
}

func (c *Client) GetDetails(ctx context.Context, id string, kind media.Kind) (*media.Record, error) {
	if !strings.HasPrefix(id, "tt") {
		return nil, fmt.Errorf("imdb details %q: %w", id, provider.ErrNotFound)
	}
	doc, err := c.fetch(ctx, "/title/"+url.PathEscape(id)+"/")
	if err != nil {
		return nil, err
	}
	rec := parseTitlePage(doc, id, kind)
	if rec.Title == "" {
		return nil, fmt.Errorf("imdb details %s: no title on page: %w", id, provider.ErrNotFound)
	}
	return rec, nil
}

// LookupID resolves an IMDb tt-id straight from its title page.
func (c *Client) LookupID(ctx context.Context, id string) (*media.Record, error) {
	return c.GetDetails(ctx, strings.TrimSpace(id), media.KindUnknown)
}

func (c *Client) fetch(ctx context.Context, path string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, provider.Unavailable(name, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(name, path, resp)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, provider.Unavailable(name, path, err)
	}
	return doc, nil
}

// fullSizePoster strips the resize suffix of an Amazon image URL
// ("..._V1_QL75_UX50_.jpg" -> "..._V1_.jpg").
func fullSizePoster(src string) string {
	i := strings.Index(src, "._V1_")
	if i < 0 {
		return src
	}
	ext := src[strings.LastIndex(src, "."):]
	return src[:i] + "._V1_" + ext
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var durationRe = regexp.MustCompile(`PT(?:(\d+)H)?(?:(\d+)M)?`)

// minutesFromDuration converts ISO-8601 "PT2H28M" to 148.
func minutesFromDuration(d string) int {
	m := durationRe.FindStringSubmatch(d)
	if m == nil {
		return 0
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return h*60 + mins
}
