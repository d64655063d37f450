package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteRecord marks a record that must not be rendered.
var ErrIncompleteRecord = errors.New("incomplete media record")

type Kind string

const (
	KindUnknown Kind = ""
	KindMovie   Kind = "movie"
	KindTV      Kind = "tv"
)

func (k Kind) String() string {
	if k == KindUnknown {
		return "unknown"
	}
	return string(k)
}

// Provider tags where a record came from.
type Provider string

const (
	ProviderTMDB      Provider = "tmdb"
	ProviderOMDB      Provider = "omdb"
	ProviderIMDB      Provider = "imdb"
	ProviderNeoMovies Provider = "neomovies"
)

const UnknownYear = "Unknown"

const maxGenres = 3

// Record is a normalized movie or series description returned by a provider.
type Record struct {
	ExternalID       string
	Provider         Provider
	Title            string
	ReleaseYear      string
	Kind             Kind
	PosterURL        string
	Rating           float64
	VoteCount        int
	Genres           []string
	Overview         string
	OriginalLanguage string
	IMDbID           string
	Runtime          string
}

// DedupKey is the cross-provider merge key: lower-cased title plus release year.
func (r Record) DedupKey() string {
	return strings.ToLower(strings.TrimSpace(r.Title)) + "_" + r.Year()
}

// Year returns ReleaseYear or UnknownYear.
func (r Record) Year() string {
	y := strings.TrimSpace(r.ReleaseYear)
	if y == "" {
		return UnknownYear
	}
	return y
}

// Validate reports ErrIncompleteRecord when the title or poster is missing.
func (r Record) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.PosterURL) == "" {
		missing = append(missing, "poster")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteRecord, strings.Join(missing, ", "))
	}
	return nil
}

// Normalize fills defaults and trims provider noise in place.
func (r *Record) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.ReleaseYear = r.Year()
	r.Overview = strings.TrimSpace(r.Overview)
	r.Genres = CleanGenres(r.Genres)
	if r.OriginalLanguage == "" {
		r.OriginalLanguage = "en"
	}
}

// YearFromDate extracts the leading four digit year of a date like "2010-07-16" or "2008–2013".
func YearFromDate(date string) string {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return ""
	}
	y := date[:4]
	for _, c := range y {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return y
}

var genreNoise = map[string]bool{
	"back to top": true,
	"see more":    true,
	"n/a":         true,
}

// CleanGenres trims, drops duplicates and noise, and keeps the first three.
func CleanGenres(in []string) []string {
	out := make([]string, 0, maxGenres)
	seen := map[string]bool{}
	for _, g := range in {
		g = strings.TrimSpace(g)
		key := strings.ToLower(g)
		if g == "" || genreNoise[key] || seen[key] || len(g) > 30 {
			continue
		}
		seen[key] = true
		out = append(out, g)
		if len(out) == maxGenres {
			break
		}
	}
	return out
}
