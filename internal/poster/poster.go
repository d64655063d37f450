// Package poster downloads artwork and composes the image that is posted
// alongside the caption.
package poster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"

	"mposter-tg-bot/internal/media"
)

// ErrRender wraps every failure to produce a poster file.
var ErrRender = errors.New("poster render failed")

// Renderer turns a record into a local image file and returns its path.
type Renderer interface {
	Render(ctx context.Context, rec media.Record) (string, error)
}

const (
	width       = 500
	bandHeight  = 64
	maxDownload = 10 << 20
	lineHeight  = 18
	margin      = 12
)

type Composer struct {
	dir    string
	hc     *http.Client
	logger zerolog.Logger
}

func NewComposer(dir string, logger zerolog.Logger) (*Composer, error) {
	if dir == "" {
		dir = "temp_posters"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create poster dir: %w", err)
	}
	return &Composer{
		dir:    dir,
		hc:     &http.Client{Timeout: 20 * time.Second},
		logger: logger.With().Str("component", "poster").Logger(),
	}, nil
}

func (c *Composer) Render(ctx context.Context, rec media.Record) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	art, err := c.download(ctx, rec.PosterURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrRender, rec.PosterURL, err)
	}

	canvas := compose(art, rec)
	path := filepath.Join(c.dir, uuid.NewString()+".jpg")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	if err := jpeg.Encode(f, canvas, &jpeg.Options{Quality: 90}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: encode: %w", ErrRender, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}
	c.logger.Debug().Str("title", rec.Title).Str("path", path).Msg("Poster rendered")
	return path, nil
}

func (c *Composer) download(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// compose scales the artwork to a fixed width and adds a dark band with
// the title, year and rating underneath.
func compose(art image.Image, rec media.Record) *image.RGBA {
	b := art.Bounds()
	h := width * 3 / 2
	if b.Dx() > 0 {
		h = b.Dy() * width / b.Dx()
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, h+bandHeight))
	xdraw.CatmullRom.Scale(canvas, image.Rect(0, 0, width, h), art, b, xdraw.Src, nil)
	xdraw.Draw(canvas, image.Rect(0, h, width, h+bandHeight), image.NewUniform(color.RGBA{R: 18, G: 18, B: 22, A: 255}), image.Point{}, xdraw.Src)

	d := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	maxRunes := (width - 2*margin) / 7
	y := h + margin + 13
	d.Dot = fixed.P(margin, y)
	d.DrawString(fit(fmt.Sprintf("%s (%s)", rec.Title, rec.Year()), maxRunes))

	d.Src = image.NewUniform(color.RGBA{R: 200, G: 200, B: 200, A: 255})
	d.Dot = fixed.P(margin, y+lineHeight)
	d.DrawString(fit(subtitle(rec), maxRunes))
	return canvas
}

func subtitle(rec media.Record) string {
	var parts []string
	if rec.Rating > 0 {
		parts = append(parts, fmt.Sprintf("Rating %.1f/10", rec.Rating))
	}
	if len(rec.Genres) > 0 {
		parts = append(parts, strings.Join(rec.Genres, ", "))
	}
	if rec.Runtime != "" {
		parts = append(parts, rec.Runtime)
	}
	return strings.Join(parts, " | ")
}

func fit(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}

// Cleanup removes rendered posters older than maxAge and reports how many
// files were deleted.
func (c *Composer) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		c.logger.Info().Int("removed", removed).Msg("Cleaned old posters")
	}
	return removed, nil
}

// Remove deletes one rendered poster; missing files are ignored.
func Remove(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}
