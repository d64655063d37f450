package neomovies

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

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL), srv.URL
}

func TestSearch_WrappedResponse(t *testing.T) {
	c, base := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/movies/search", r.URL.Path)
		assert.Equal(t, "Heat", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"page":1,"total_pages":1,"results":[
			{"id":"kp_409","nameRu":"Схватка","nameOriginal":"Heat","year":1995,"type":"FILM",
			 "posterUrl":"https://kinopoiskapiunofficial.tech/images/posters/kp/409.jpg","ratingKinopoisk":8.5,
			 "genres":[{"genre":"crime"},{"genre":"drama"}]},
			{"id":1,"nameOriginal":"Heat","year":1995,"type":"TV_SERIES"}
		]}}`))
	})

	recs, err := c.SearchMovies(context.Background(), "Heat", 1995, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	rec := recs[0]
	assert.Equal(t, "409", rec.ExternalID)
	assert.Equal(t, "Heat", rec.Title)
	assert.Equal(t, "1995", rec.ReleaseYear)
	assert.Equal(t, base+"/api/v1/images/kp/409?fallback=true", rec.PosterURL)
	assert.Equal(t, 8.5, rec.Rating)
	assert.Equal(t, []string{"crime", "drama"}, rec.Genres)
}

func TestSearch_DirectResponseAndKindFilter(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page":1,"results":[
			{"id":77044,"name":"Dark","first_air_date":"2017-12-01","type":"tv","poster_path":"https://img.test/dark.jpg","vote_average":8.4}
		]}`))
	})

	recs, err := c.SearchSeries(context.Background(), "Dark", 0, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, media.KindTV, recs[0].Kind)
	assert.Equal(t, "2017", recs[0].ReleaseYear)
	assert.Equal(t, "https://img.test/dark.jpg", recs[0].PosterURL)

	_, err = c.SearchMovies(context.Background(), "Dark", 0, 5)
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}

func TestGetDetails(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/movie/kp_409", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"kinopoisk_id":409,"nameOriginal":"Heat","year":"1995",
			"description":"Cops and robbers.","filmLength":170,"externalIds":{"kp":409,"imdb":"tt0113277"},
			"posterUrlPreview":"https://img.test/heat.jpg"}}`))
	})

	rec, err := c.GetDetails(context.Background(), "kp_409", media.KindMovie)
	require.NoError(t, err)
	assert.Equal(t, "Heat", rec.Title)
	assert.Equal(t, "tt0113277", rec.IMDbID)
	assert.Equal(t, "170 min", rec.Runtime)
	assert.Equal(t, "Cops and robbers.", rec.Overview)
}

func TestGetDetails_BadID(t *testing.T) {
	c := NewClient("http://unused")
	_, err := c.GetDetails(context.Background(), "tt0113277", media.KindMovie)
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}

func TestGetDetails_ServerError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.GetDetails(context.Background(), "409", media.KindMovie)
	assert.True(t, errors.Is(err, provider.ErrUnavailable))
}

func TestImageURL(t *testing.T) {
	c := NewClient("https://api.test/")
	assert.Equal(t, "https://api.test/api/v1/images/kp_big/5?fallback=true",
		c.ImageURL("https://kinopoiskapiunofficial.tech/images/posters/kp_big/5.jpg", "kp", 0))
	assert.Equal(t, "https://api.test/api/v1/images/kp/7?fallback=true", c.ImageURL("/relative.jpg", "kp", 7))
	assert.Equal(t, "", c.ImageURL(" ", "kp", 7))
}

func TestLookupID(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/movie/kp_409", r.URL.Path)
		_, _ = w.Write([]byte(`{"kinopoisk_id":409,"nameOriginal":"Heat","year":1995}`))
	})

	rec, err := c.LookupID(context.Background(), "KP_409")
	require.NoError(t, err)
	assert.Equal(t, "Heat", rec.Title)

	_, err = c.LookupID(context.Background(), "tt0113277")
	assert.True(t, errors.Is(err, provider.ErrNotFound))
}
