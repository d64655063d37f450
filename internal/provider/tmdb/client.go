// Package tmdb adapts The Movie Database v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/provider"
)

const name = media.ProviderTMDB

type Config struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
}

type Client struct {
	apiKey   string
	apiBase  string
	imgBase  string
	language string
	hc       *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("tmdb: %w", provider.ErrAPIKeyMissing)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.themoviedb.org/3"
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = "https://image.tmdb.org/t/p/w500"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &Client{
		apiKey:   cfg.APIKey,
		apiBase:  strings.TrimRight(cfg.BaseURL, "/"),
		imgBase:  strings.TrimRight(cfg.ImageBaseURL, "/"),
		language: cfg.Language,
		hc:       &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (c *Client) Name() media.Provider { return name }

type searchItem struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	PosterPath       string  `json:"poster_path"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	GenreIDs         []int   `json:"genre_ids"`
	Overview         string  `json:"overview"`
	OriginalLanguage string  `json:"original_language"`
}

type searchResponse struct {
	Results []searchItem `json:"results"`
}

type details struct {
	searchItem
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
	IMDbID         string `json:"imdb_id"`
	Runtime        int    `json:"runtime"`
	EpisodeRunTime []int  `json:"episode_run_time"`
	ExternalIDs    struct {
		IMDbID string `json:"imdb_id"`
	} `json:"external_ids"`
}

func (c *Client) SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	q := url.Values{"query": {title}}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	return c.search(ctx, "search/movie", q, media.KindMovie, limit)
}

func (c *Client) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	q := url.Values{"query": {title}}
	if year > 0 {
		q.Set("first_air_date_year", strconv.Itoa(year))
	}
	return c.search(ctx, "search/tv", q, media.KindTV, limit)
}

func (c *Client) search(ctx context.Context, path string, q url.Values, kind media.Kind, limit int) ([]media.Record, error) {
	var resp searchResponse
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	out := make([]media.Record, 0, len(resp.Results))
	for _, it := range resp.Results {
		rec := c.record(it, kind)
		rec.Genres = genreNames(it.GenreIDs, kind)
		rec.Normalize()
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Client) GetDetails(ctx context.Context, id string, kind media.Kind) (*media.Record, error) {
	path := "movie/" + url.PathEscape(id)
	if kind == media.KindTV {
		path = "tv/" + url.PathEscape(id)
	}
	var d details
	if err := c.get(ctx, path, url.Values{"append_to_response": {"external_ids"}}, &d); err != nil {
		return nil, err
	}
	if kind != media.KindTV {
		kind = media.KindMovie
	}
	rec := c.record(d.searchItem, kind)
	for _, g := range d.Genres {
		rec.Genres = append(rec.Genres, g.Name)
	}
	rec.IMDbID = firstNonEmpty(d.IMDbID, d.ExternalIDs.IMDbID)
	switch {
	case d.Runtime > 0:
		rec.Runtime = fmt.Sprintf("%d min", d.Runtime)
	case len(d.EpisodeRunTime) > 0 && d.EpisodeRunTime[0] > 0:
		rec.Runtime = fmt.Sprintf("%d min", d.EpisodeRunTime[0])
	}
	rec.Normalize()
	return &rec, nil
}

// LookupID resolves an IMDb tt-id through the find endpoint, or a bare
// numeric TMDB id as a movie and then as a series.
func (c *Client) LookupID(ctx context.Context, id string) (*media.Record, error) {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil && n > 0 {
		rec, err := c.GetDetails(ctx, id, media.KindMovie)
		if errors.Is(err, provider.ErrNotFound) {
			return c.GetDetails(ctx, id, media.KindTV)
		}
		return rec, err
	}
	if !strings.HasPrefix(id, "tt") {
		return nil, fmt.Errorf("tmdb lookup %q: %w", id, provider.ErrNotFound)
	}
	var resp struct {
		MovieResults []searchItem `json:"movie_results"`
		TVResults    []searchItem `json:"tv_results"`
	}
	if err := c.get(ctx, "find/"+url.PathEscape(id), url.Values{"external_source": {"imdb_id"}}, &resp); err != nil {
		return nil, err
	}
	switch {
	case len(resp.MovieResults) > 0:
		return c.GetDetails(ctx, strconv.Itoa(resp.MovieResults[0].ID), media.KindMovie)
	case len(resp.TVResults) > 0:
		return c.GetDetails(ctx, strconv.Itoa(resp.TVResults[0].ID), media.KindTV)
	}
	return nil, fmt.Errorf("tmdb lookup %s: %w", id, provider.ErrNotFound)
}

func (c *Client) record(it searchItem, kind media.Kind) media.Record {
	rec := media.Record{
		ExternalID:       strconv.Itoa(it.ID),
		Provider:         name,
		Title:            firstNonEmpty(it.Title, it.Name),
		ReleaseYear:      media.YearFromDate(firstNonEmpty(it.ReleaseDate, it.FirstAirDate)),
		Kind:             kind,
		Rating:           it.VoteAverage,
		VoteCount:        it.VoteCount,
		Overview:         it.Overview,
		OriginalLanguage: it.OriginalLanguage,
	}
	if it.PosterPath != "" {
		rec.PosterURL = c.imgBase + "/" + strings.TrimLeft(it.PosterPath, "/")
	}
	return rec
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	u := c.apiBase + "/" + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return provider.Unavailable(name, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return provider.StatusError(name, path, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.Unavailable(name, path, err)
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
