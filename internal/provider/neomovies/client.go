// Package neomovies adapts the NeoMovies API, which proxies Kinopoisk and
// TMDB data under several alternative field names.
package neomovies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/provider"
)

const name = media.ProviderNeoMovies

type Client struct {
	apiBase string
	hc      *http.Client
}

func NewClient(apiBase string) *Client {
	if apiBase == "" {
		apiBase = "https://api.neomovies.ru"
	}
	return &Client{
		apiBase: strings.TrimRight(apiBase, "/"),
		hc:      &http.Client{Timeout: 9 * time.Second},
	}
}

func (c *Client) Name() media.Provider { return name }

type searchResponse struct {
	Page        int     `json:"page"`
	Results     []Movie `json:"results"`
	TotalPages  int     `json:"total_pages"`
	TotalResult int     `json:"total_results"`
}

type Movie struct {
	ID               any    `json:"id"`
	Title            string `json:"title"`
	Name             string `json:"name"`
	NameRu           string `json:"nameRu"`
	NameEn           string `json:"nameEn"`
	NameOriginal     string `json:"nameOriginal"`
	Overview         string `json:"overview"`
	Description      string `json:"description"`
	ShortDescription string `json:"shortDescription"`
	PosterPath       string `json:"poster_path"`
	PosterURL        string `json:"posterUrl"`
	PosterURLPreview string `json:"posterUrlPreview"`
	ReleaseDate      string `json:"release_date"`
	FirstAirDate     string `json:"first_air_date"`
	Year             any    `json:"year"`
	Type             string `json:"type"`
	Genres           []struct {
		ID    int    `json:"id"`
		Name  string `json:"name"`
		Genre string `json:"genre"`
	} `json:"genres"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Rating           float64 `json:"rating"`
	RatingKinopoisk  float64 `json:"ratingKinopoisk"`
	RatingImdb       float64 `json:"ratingImdb"`
	OriginalLanguage string  `json:"original_language"`
	FilmLength       int     `json:"filmLength"`
	KinopoiskID      int     `json:"kinopoisk_id"`
	ImdbID           string  `json:"imdbId"`
	ExternalIDs      struct {
		KP   int    `json:"kp"`
		IMDB string `json:"imdb"`
	} `json:"externalIds"`
}

func (c *Client) SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, media.KindMovie, year, limit)
}

func (c *Client) SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error) {
	return c.search(ctx, title, media.KindTV, year, limit)
}

// search has no server-side kind or year filter; both are applied to the
// results so a wrong-kind hit never masks a better provider.
func (c *Client) search(ctx context.Context, title string, kind media.Kind, year, limit int) ([]media.Record, error) {
	u, _ := url.Parse(c.apiBase + "/api/v1/movies/search")
	q := u.Query()
	q.Set("query", title)
	q.Set("page", "1")
	q.Set("lang", "en")
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String(), "search")
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Success bool           `json:"success"`
		Data    searchResponse `json:"data"`
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &wrapper); err == nil && (wrapper.Data.Results != nil || wrapper.Data.TotalPages != 0) {
		resp = wrapper.Data
	} else if err := json.Unmarshal(body, &resp); err != nil {
		return nil, provider.Unavailable(name, "search", err)
	}

	out := make([]media.Record, 0, len(resp.Results))
	for _, m := range resp.Results {
		rec := c.record(m)
		if rec.Kind != kind {
			continue
		}
		if year > 0 && rec.ReleaseYear != strconv.Itoa(year) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("neomovies search %q: %w", title, provider.ErrNotFound)
	}
	return out, nil
}

// GetDetails accepts a Kinopoisk id, with or without the "kp_" prefix.
func (c *Client) GetDetails(ctx context.Context, id string, _ media.Kind) (*media.Record, error) {
	kpID, err := strconv.Atoi(strings.TrimPrefix(id, "kp_"))
	if err != nil || kpID <= 0 {
		return nil, fmt.Errorf("neomovies details %q: invalid kp id: %w", id, provider.ErrNotFound)
	}
	m, err := c.GetMovieByKPID(ctx, kpID)
	if err != nil {
		return nil, err
	}
	rec := c.record(*m)
	return &rec, nil
}

// LookupID accepts "kp_<id>" or "kp<id>".
func (c *Client) LookupID(ctx context.Context, id string) (*media.Record, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if !strings.HasPrefix(id, "kp") {
		return nil, fmt.Errorf("neomovies lookup %q: %w", id, provider.ErrNotFound)
	}
	return c.GetDetails(ctx, strings.TrimLeft(strings.TrimPrefix(id, "kp"), "_"), media.KindUnknown)
}

func (c *Client) GetMovieByKPID(ctx context.Context, kpID int) (*Movie, error) {
	body, err := c.get(ctx, fmt.Sprintf("%s/api/v1/movie/kp_%d", c.apiBase, kpID), "details")
	if err != nil {
		return nil, err
	}
	var wrapper struct {
		Success bool  `json:"success"`
		Data    Movie `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && (wrapper.Data.KinopoiskID != 0 || wrapper.Data.ExternalIDs.KP != 0) {
		return &wrapper.Data, nil
	}
	var direct Movie
	if err := json.Unmarshal(body, &direct); err != nil {
		return nil, provider.Unavailable(name, "details", err)
	}
	return &direct, nil
}

func (c *Client) get(ctx context.Context, u, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, provider.Unavailable(name, op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, provider.StatusError(name, op, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, provider.Unavailable(name, op, err)
	}
	return body, nil
}

func (c *Client) record(m Movie) media.Record {
	kpID := m.KinopoiskID
	if kpID == 0 {
		kpID = m.ExternalIDs.KP
	}
	if kpID == 0 {
		kpID = anyInt(m.ID)
	}
	kind := media.KindMovie
	switch strings.ToLower(m.Type) {
	case "tv", "tv_series", "mini_series", "tv_show", "series":
		kind = media.KindTV
	}
	rec := media.Record{
		ExternalID:       strconv.Itoa(kpID),
		Provider:         name,
		Title:            firstNonEmpty(m.Title, m.NameEn, m.NameOriginal, m.Name, m.NameRu),
		ReleaseYear:      firstNonEmpty(anyString(m.Year), media.YearFromDate(m.ReleaseDate), media.YearFromDate(m.FirstAirDate)),
		Kind:             kind,
		PosterURL:        c.ImageURL(firstNonEmpty(m.PosterURL, m.PosterPath, m.PosterURLPreview), "kp", kpID),
		Overview:         firstNonEmpty(m.Overview, m.Description, m.ShortDescription),
		OriginalLanguage: m.OriginalLanguage,
		IMDbID:           firstNonEmpty(m.ImdbID, m.ExternalIDs.IMDB),
		VoteCount:        m.VoteCount,
	}
	for _, r := range []float64{m.VoteAverage, m.RatingImdb, m.RatingKinopoisk, m.Rating} {
		if r > 0 {
			rec.Rating = r
			break
		}
	}
	for _, g := range m.Genres {
		rec.Genres = append(rec.Genres, firstNonEmpty(g.Name, g.Genre))
	}
	if m.FilmLength > 0 {
		rec.Runtime = fmt.Sprintf("%d min", m.FilmLength)
	}
	rec.Normalize()
	return rec
}

var kpPosterRe = regexp.MustCompile(`kinopoiskapiunofficial\.tech/images/posters/(kp|kp_small|kp_big)/(\d+)\.jpg`)

// ImageURL routes Kinopoisk poster links through the API's image proxy.
func (c *Client) ImageURL(path string, kpType string, kpID int) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		m := kpPosterRe.FindStringSubmatch(path)
		if len(m) == 3 {
			return fmt.Sprintf("%s/api/v1/images/%s/%s?fallback=true", c.apiBase, m[1], m[2])
		}
		return path
	}
	if kpID > 0 {
		return fmt.Sprintf("%s/api/v1/images/%s/%d?fallback=true", c.apiBase, kpType, kpID)
	}
	return path
}

func anyInt(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimPrefix(x, "kp_"))
		return n
	}
	return 0
}

func anyString(v any) string {
	switch x := v.(type) {
	case float64:
		if x > 0 {
			return strconv.Itoa(int(x))
		}
	case string:
		return media.YearFromDate(x)
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
