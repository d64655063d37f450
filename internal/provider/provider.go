// Package provider defines the metadata adapter contract shared by the
// scraping and structured-API backends, and the guard that protects each
// backend with a circuit breaker and a rate limiter.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"mposter-tg-bot/internal/media"
)

var (
	// ErrNotFound means the backend answered but had nothing for the query.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the backend could not be reached or answered badly.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrAPIKeyMissing is returned at construction for credentialed backends.
	ErrAPIKeyMissing = errors.New("api key missing")
)

// Adapter is one metadata backend.
type Adapter interface {
	Name() media.Provider
	SearchMovies(ctx context.Context, title string, year, limit int) ([]media.Record, error)
	SearchSeries(ctx context.Context, title string, year, limit int) ([]media.Record, error)
	GetDetails(ctx context.Context, id string, kind media.Kind) (*media.Record, error)
}

// IDLookup is implemented by adapters that can resolve an external id
// such as an IMDb tt-id.
type IDLookup interface {
	LookupID(ctx context.Context, id string) (*media.Record, error)
}

// AsLookup returns a's id lookup when it has a real one.
func AsLookup(a Adapter) (IDLookup, bool) {
	if g, ok := a.(*Guarded); ok && !g.SupportsLookup() {
		return nil, false
	}
	l, ok := a.(IDLookup)
	return l, ok
}

// Tiers orders adapters for the orchestrator. Primary adapters are always
// consulted; secondary ones only fill gaps.
type Tiers struct {
	Primary   []Adapter
	Secondary []Adapter
}

// All returns primary then secondary adapters.
func (t Tiers) All() []Adapter {
	out := make([]Adapter, 0, len(t.Primary)+len(t.Secondary))
	out = append(out, t.Primary...)
	return append(out, t.Secondary...)
}

func (t Tiers) Empty() bool {
	return len(t.Primary) == 0 && len(t.Secondary) == 0
}

// Search dispatches to SearchSeries for tv and SearchMovies otherwise.
func Search(ctx context.Context, a Adapter, kind media.Kind, title string, year, limit int) ([]media.Record, error) {
	if kind == media.KindTV {
		return a.SearchSeries(ctx, title, year, limit)
	}
	return a.SearchMovies(ctx, title, year, limit)
}

// StatusError maps a non-2xx response to a wrapped sentinel. It reads a
// short body excerpt for the message.
func StatusError(name media.Provider, op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", name, op, ErrNotFound)
	}
	return fmt.Errorf("%s %s status %d: %s: %w", name, op, resp.StatusCode, string(body), ErrUnavailable)
}

// Unavailable wraps a transport or decode error.
func Unavailable(name media.Provider, op string, err error) error {
	return fmt.Errorf("%s %s: %v: %w", name, op, err, ErrUnavailable)
}
