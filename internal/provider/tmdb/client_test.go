package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/provider"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{APIKey: "k", BaseURL: srv.URL, ImageBaseURL: "https://img.test/w500"})
	require.NoError(t, err)
	return c
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, provider.ErrAPIKeyMissing))
}

func TestSearchMovies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "Inception", r.URL.Query().Get("query"))
		assert.Equal(t, "2010", r.URL.Query().Get("year"))
		assert.Equal(t, "k", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"results":[
			{"id":27205,"title":"Inception","release_date":"2010-07-15","poster_path":"/p.jpg","vote_average":8.4,"vote_count":35000,"genre_ids":[28,878,12,53],"original_language":"en"},
			{"id":1,"title":"Inception: Jump","release_date":"","poster_path":""}
		]}`))
	})

	recs, err := c.SearchMovies(context.Background(), "Inception", 2010, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "27205", first.ExternalID)
	assert.Equal(t, media.ProviderTMDB, first.Provider)
	assert.Equal(t, "2010", first.ReleaseYear)
	assert.Equal(t, media.KindMovie, first.Kind)
	assert.Equal(t, "https://img.test/w500/p.jpg", first.PosterURL)
	assert.Equal(t, []string{"Action", "Science Fiction", "Adventure"}, first.Genres)

	assert.Equal(t, media.UnknownYear, recs[1].ReleaseYear)
	assert.Empty(t, recs[1].PosterURL)
}

func TestSearchSeries_Limit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		assert.Equal(t, "2008", r.URL.Query().Get("first_air_date_year"))
		_, _ = w.Write([]byte(`{"results":[
			{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","genre_ids":[18,80]},
			{"id":2,"name":"Other"}
		]}`))
	})

	recs, err := c.SearchSeries(context.Background(), "Breaking Bad", 2008, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Breaking Bad", recs[0].Title)
	assert.Equal(t, media.KindTV, recs[0].Kind)
	assert.Equal(t, []string{"Drama", "Crime"}, recs[0].Genres)
}

func TestGetDetails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/1396", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":1396,"name":"Breaking Bad","first_air_date":"2008-01-20","poster_path":"/bb.jpg",
			"genres":[{"id":18,"name":"Drama"},{"id":80,"name":"Crime"}],"episode_run_time":[47],
			"external_ids":{"imdb_id":"tt0903747"},"overview":" A chemist. "}`))
	})

	rec, err := c.GetDetails(context.Background(), "1396", media.KindTV)
	require.NoError(t, err)
	assert.Equal(t, "tt0903747", rec.IMDbID)
	assert.Equal(t, "47 min", rec.Runtime)
	assert.Equal(t, "A chemist.", rec.Overview)
	assert.Equal(t, "en", rec.OriginalLanguage)
	assert.NoError(t, rec.Validate())
}

func TestGetDetails_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status_code":34}`, http.StatusNotFound)
	})
	_, err := c.GetDetails(context.Background(), "0", media.KindMovie)
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}

func TestSearch_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.SearchMovies(context.Background(), "x", 0, 5)
	assert.True(t, errors.Is(err, provider.ErrUnavailable))
}

func TestLookupID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/find/tt1375666":
			assert.Equal(t, "imdb_id", r.URL.Query().Get("external_source"))
			_, _ = w.Write([]byte(`{"movie_results":[{"id":27205}],"tv_results":[]}`))
		case "/movie/27205":
			_, _ = w.Write([]byte(`{"id":27205,"title":"Inception","release_date":"2010-07-15","poster_path":"/p.jpg","imdb_id":"tt1375666","runtime":148}`))
		default:
			http.NotFound(w, r)
		}
	})

	rec, err := c.LookupID(context.Background(), "tt1375666")
	require.NoError(t, err)
	assert.Equal(t, "Inception", rec.Title)
	assert.Equal(t, "148 min", rec.Runtime)

	_, err = c.LookupID(context.Background(), "12345")
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}
