// Package omdb adapts the OMDb API.
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/provider"
)

const name = media.ProviderOMDB

type Config struct {
	APIKey  string
	BaseURL string
}

type Client struct {
	apiKey  string
	apiBase string
	hc      *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("omdb: %w", provider.ErrAPIKeyMissing)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.omdbapi.com/"
	}
	return &Client{
		apiKey:  cfg.APIKey,
		apiBase: cfg.BaseURL,
		hc:      &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) Name() media.Provider { return name }

type searchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	IMDbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

type searchResponse struct {
	Search   []searchItem `json:"Search"`
	Response string       `json:"Response"`
	Error    string       `json:"Error"`
}

type detailsResponse struct {
	Title      string `json:"Title"`
	Year       string `json:"Year"`
	Released   string `json:"Released"`
	Runtime    string `json:"Runtime"`
	Genre      string `json:"Genre"`
	Plot       string `json:"Plot"`
	Language   string `json:"Language"`
	Poster     string `json:"Poster"`
	IMDbRating string `json:"imdbRating"`
	IMDbVotes  string `json:"imdbVotes"`
	IMDbID     string `json:"imdbID"`
	Type       string `json:"Type"`
	Response   string `json:"Response"`
	Error      string `json:"Error"`
}

func (c *Client) SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, "movie", year, limit)
}

func (c *Client) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, "series", year, limit)
}

func (c *Client) search(ctx context.Context, title, typ string, year, limit int) ([]media.Record, error) {
	q := url.Values{"s": {title}, "type": {typ}}
	if year > 0 {
		q.Set("y", strconv.Itoa(year))
	}
	var resp searchResponse
	if err := c.get(ctx, q, &resp); err != nil {
		return nil, err
	}
	if !strings.EqualFold(resp.Response, "True") {
		// "Movie not found!" is reported inside a 200 response.
		return nil, fmt.Errorf("omdb search %q: %s: %w", title, resp.Error, provider.ErrNotFound)
	}
	out := make([]media.Record, 0, len(resp.Search))
	for _, it := range resp.Search {
		rec := media.Record{
			ExternalID:  it.IMDbID,
			Provider:    name,
			Title:       it.Title,
			ReleaseYear: media.YearFromDate(it.Year),
			Kind:        kindOf(it.Type),
			PosterURL:   na(it.Poster),
			IMDbID:      it.IMDbID,
		}
		rec.Normalize()
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Client) GetDetails(ctx context.Context, id string, _ media.Kind) (*media.Record, error) {
	var d detailsResponse
	if err := c.get(ctx, url.Values{"i": {id}, "plot": {"full"}}, &d); err != nil {
		return nil, err
	}
	if !strings.EqualFold(d.Response, "True") {
		return nil, fmt.Errorf("omdb details %s: %s: %w", id, d.Error, provider.ErrNotFound)
	}
	rec := media.Record{
		ExternalID:       firstNonEmpty(d.IMDbID, id),
		Provider:         name,
		Title:            d.Title,
		ReleaseYear:      firstNonEmpty(media.YearFromDate(yearOfReleased(na(d.Released))), media.YearFromDate(d.Year)),
		Kind:             kindOf(d.Type),
		PosterURL:        na(d.Poster),
		Overview:         na(d.Plot),
		OriginalLanguage: languageCode(na(d.Language)),
		IMDbID:           firstNonEmpty(d.IMDbID, id),
		Runtime:          na(d.Runtime),
	}
	rec.Rating, _ = strconv.ParseFloat(na(d.IMDbRating), 64)
	rec.VoteCount, _ = strconv.Atoi(strings.ReplaceAll(na(d.IMDbVotes), ",", ""))
	if g := na(d.Genre); g != "" {
		rec.Genres = strings.Split(g, ",")
	}
	rec.Normalize()
	return &rec, nil
}

// LookupID resolves an IMDb tt-id directly.
func (c *Client) LookupID(ctx context.Context, id string) (*media.Record, error) {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, "tt") {
		return nil, fmt.Errorf("omdb lookup %q: %w", id, provider.ErrNotFound)
	}
	return c.GetDetails(ctx, id, media.KindUnknown)
}

func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	q.Set("apikey", c.apiKey)
	u, err := url.Parse(c.apiBase)
	if err != nil {
		return err
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return provider.Unavailable(name, "request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return provider.StatusError(name, "request", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.Unavailable(name, "decode", err)
	}
	return nil
}

func kindOf(t string) media.Kind {
	switch strings.ToLower(t) {
	case "series", "episode":
		return media.KindTV
	default:
		return media.KindMovie
	}
}

// na maps OMDb's "N/A" placeholder to an empty string.
func na(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "N/A") {
		return ""
	}
	return s
}

// yearOfReleased turns "16 Jul 2010" into "2010".
func yearOfReleased(released string) string {
	if released == "" {
		return ""
	}
	if t, err := time.Parse("02 Jan 2006", released); err == nil {
		return strconv.Itoa(t.Year())
	}
	return ""
}

var languageCodes = map[string]string{
	"english":  "en",
	"french":   "fr",
	"german":   "de",
	"spanish":  "es",
	"italian":  "it",
	"japanese": "ja",
	"korean":   "ko",
	"hindi":    "hi",
	"russian":  "ru",
	"chinese":  "zh",
	"mandarin": "zh",
}

func languageCode(lang string) string {
	first := strings.TrimSpace(strings.Split(lang, ",")[0])
	if code, ok := languageCodes[strings.ToLower(first)]; ok {
		return code
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
