package poster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mposter-tg-bot/internal/media"
)

func pngArt(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRender(t *testing.T) {
	art := pngArt(t, 100, 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(art)
	}))
	defer srv.Close()

	c, err := NewComposer(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	rec := media.Record{Title: "Inception", ReleaseYear: "2010", PosterURL: srv.URL + "/p.png", Rating: 8.4, Genres: []string{"Action", "Sci-Fi"}}
	path, err := c.Render(context.Background(), rec)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := jpeg.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, width, img.Bounds().Dx())
	assert.Equal(t, 750+bandHeight, img.Bounds().Dy())
}

func TestRender_Incomplete(t *testing.T) {
	c, err := NewComposer(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	_, err = c.Render(context.Background(), media.Record{Title: "No Poster"})
	assert.True(t, errors.Is(err, ErrRender))
	assert.True(t, errors.Is(err, media.ErrIncompleteRecord))
}

func TestRender_DownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, err := NewComposer(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	_, err = c.Render(context.Background(), media.Record{Title: "X", PosterURL: srv.URL})
	assert.True(t, errors.Is(err, ErrRender))
}

func TestCleanup(t *testing.T) {
	dir := t.TempDir()
	c, err := NewComposer(dir, zerolog.Nop())
	require.NoError(t, err)

	old := filepath.Join(dir, "old.jpg")
	fresh := filepath.Join(dir, "fresh.jpg")
	other := filepath.Join(dir, "keep.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := c.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)
}

func TestFit(t *testing.T) {
	assert.Equal(t, "short", fit("short", 10))
	assert.Equal(t, "abcdefg...", fit("abcdefghijklmnop", 10))
}
