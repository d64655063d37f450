// Package resolve runs the search-with-fallback protocol over the provider
// tiers: primary adapters first, secondary adapters as fallback or top-up.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/metrics"
	"mposter-tg-bot/internal/provider"
	"mposter-tg-bot/internal/title"
)

// ErrNotFound means no adapter in any tier produced a usable match.
var ErrNotFound = errors.New("no matching title found")

type Options struct {
	// MinResults is the interactive top-up threshold.
	MinResults int
	// SearchLimit bounds each adapter call in the best-match flow.
	SearchLimit int
}

func DefaultOptions() Options {
	return Options{MinResults: 10, SearchLimit: 10}
}

type Orchestrator struct {
	tiers  provider.Tiers
	opts   Options
	logger zerolog.Logger
}

func New(tiers provider.Tiers, opts Options, logger zerolog.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.MinResults <= 0 {
		opts.MinResults = def.MinResults
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = def.SearchLimit
	}
	return &Orchestrator{
		tiers:  tiers,
		opts:   opts,
		logger: logger.With().Str("component", "resolve").Logger(),
	}
}

type query struct {
	title string
	year  int
}

// ResolveBestMatch picks a single enriched record for the auto flow.
// It returns ErrNotFound when nothing matched and media.ErrIncompleteRecord
// when the best match cannot be rendered.
func (o *Orchestrator) ResolveBestMatch(ctx context.Context, c title.Candidate) (*media.Record, error) {
	strict := c.IsSeries || c.Kind != media.KindUnknown
	for _, kind := range searchKinds(c) {
		for _, q := range queriesFor(c, kind) {
			recs := o.searchWithFallback(ctx, kind, q)
			if len(recs) == 0 {
				continue
			}
			if strict && recs[0].Kind != kind {
				recs = o.requery(ctx, kind, q, recs)
				if len(recs) == 0 {
					continue
				}
			}
			best := pick(recs, c.Year)
			rec, err := o.Details(ctx, best)
			if err != nil {
				metrics.RecordResolution("best_match", "incomplete")
				return nil, err
			}
			metrics.RecordResolution("best_match", "found")
			o.logger.Info().
				Str("query", q.title).
				Str("provider", string(rec.Provider)).
				Str("title", rec.Title).
				Str("year", rec.Year()).
				Msg("Resolved best match")
			return rec, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.RecordResolution("best_match", "not_found")
	return nil, fmt.Errorf("%q: %w", c.SearchTitle(), ErrNotFound)
}

// searchWithFallback queries the primary tier and falls back to the
// secondary tier only when the primary one is empty.
func (o *Orchestrator) searchWithFallback(ctx context.Context, kind media.Kind, q query) []media.Record {
	recs := o.searchTier(ctx, o.tiers.Primary, kind, q, o.opts.SearchLimit)
	if len(recs) > 0 {
		return recs
	}
	return o.searchTier(ctx, o.tiers.Secondary, kind, q, o.opts.SearchLimit)
}

// requery keeps only records of the wanted kind, asking every tier again
// when the first pass had none.
func (o *Orchestrator) requery(ctx context.Context, kind media.Kind, q query, recs []media.Record) []media.Record {
	if same := filterKind(recs, kind); len(same) > 0 {
		return same
	}
	o.logger.Debug().Str("query", q.title).Str("want", kind.String()).Str("got", recs[0].Kind.String()).Msg("Kind mismatch, re-querying")
	return filterKind(o.searchTier(ctx, o.tiers.All(), kind, q, o.opts.SearchLimit), kind)
}

// ResolveCandidates returns a merged, de-duplicated list for interactive
// selection: primary results first, secondary ones only as a top-up when
// the primary tier produced fewer than MinResults.
func (o *Orchestrator) ResolveCandidates(ctx context.Context, c title.Candidate, limit int) []media.Record {
	if limit <= 0 {
		limit = o.opts.MinResults
	}
	q := query{title: c.SearchTitle(), year: c.Year}
	kinds := searchKinds(c)

	var merged []media.Record
	for _, kind := range kinds {
		merged = append(merged, o.searchTier(ctx, o.tiers.Primary, kind, q, limit)...)
	}
	merged = Merge(merged)
	if len(merged) < o.opts.MinResults {
		for _, kind := range kinds {
			merged = append(merged, o.searchTier(ctx, o.tiers.Secondary, kind, q, limit)...)
		}
		merged = Merge(merged)
	}
	if len(merged) == 0 && q.year > 0 {
		c.Year = 0
		return o.ResolveCandidates(ctx, c, limit)
	}
	if len(merged) > limit {
		merged = merged[:limit]
	}

	outcome := "found"
	if len(merged) == 0 {
		outcome = "not_found"
	}
	metrics.RecordResolution("candidates", outcome)
	return merged
}

// Details enriches a selected record through the adapter that produced it.
// A details failure falls back to the record itself; the result must
// still pass validation.
func (o *Orchestrator) Details(ctx context.Context, rec media.Record) (*media.Record, error) {
	out := rec
	if a := o.adapter(rec.Provider); a != nil && rec.ExternalID != "" {
		detailed, err := a.GetDetails(ctx, rec.ExternalID, rec.Kind)
		switch {
		case err != nil:
			o.logger.Warn().Err(err).Str("provider", string(rec.Provider)).Str("id", rec.ExternalID).Msg("Details failed, using search record")
		case detailed != nil:
			out = fillFrom(*detailed, rec)
		}
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%s %s: %w", rec.Provider, rec.ExternalID, err)
	}
	return &out, nil
}

// LookupID resolves an external id (IMDb tt-id, TMDB id, kp id) through
// the first adapter that recognises it.
func (o *Orchestrator) LookupID(ctx context.Context, id string) (*media.Record, error) {
	for _, a := range o.tiers.All() {
		l, ok := provider.AsLookup(a)
		if !ok {
			continue
		}
		rec, err := l.LookupID(ctx, id)
		if err != nil {
			if !errors.Is(err, provider.ErrNotFound) {
				o.logger.Warn().Err(err).Str("provider", string(a.Name())).Str("id", id).Msg("Lookup failed")
			}
			continue
		}
		if rec == nil {
			continue
		}
		if err := rec.Validate(); err != nil {
			o.logger.Debug().Err(err).Str("provider", string(a.Name())).Msg("Lookup result incomplete")
			continue
		}
		metrics.RecordResolution("lookup", "found")
		return rec, nil
	}
	metrics.RecordResolution("lookup", "not_found")
	return nil, fmt.Errorf("id %q: %w", id, ErrNotFound)
}

// searchTier queries adapters concurrently and concatenates their results
// in adapter order. Adapter errors count as empty results.
func (o *Orchestrator) searchTier(ctx context.Context, adapters []provider.Adapter, kind media.Kind, q query, limit int) []media.Record {
	if len(adapters) == 0 || q.title == "" {
		return nil
	}
	results := make([][]media.Record, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			recs, err := provider.Search(ctx, a, kind, q.title, q.year, limit)
			if err != nil {
				ev := o.logger.Warn()
				if errors.Is(err, provider.ErrNotFound) {
					ev = o.logger.Debug()
				}
				ev.Err(err).Str("provider", string(a.Name())).Str("query", q.title).Int("year", q.year).Msg("Search failed")
				return nil
			}
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	var out []media.Record
	for _, recs := range results {
		out = append(out, recs...)
	}
	return out
}

func (o *Orchestrator) adapter(p media.Provider) provider.Adapter {
	for _, a := range o.tiers.All() {
		if a.Name() == p {
			return a
		}
	}
	return nil
}

// Merge drops records whose DedupKey was already seen; first occurrence wins.
func Merge(recs []media.Record) []media.Record {
	seen := make(map[string]bool, len(recs))
	out := make([]media.Record, 0, len(recs))
	for _, r := range recs {
		k := r.DedupKey()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// searchKinds lists kinds to try: tv for series, the hint when given,
// otherwise movie then tv.
func searchKinds(c title.Candidate) []media.Kind {
	switch {
	case c.IsSeries || c.Kind == media.KindTV:
		return []media.Kind{media.KindTV}
	case c.Kind == media.KindMovie:
		return []media.Kind{media.KindMovie}
	default:
		return []media.Kind{media.KindMovie, media.KindTV}
	}
}

func queriesFor(c title.Candidate, kind media.Kind) []query {
	if c.IsSeries {
		var out []query
		for _, s := range title.SeriesQueries(c.SeriesName) {
			out = append(out, query{title: s, year: c.Year})
		}
		return out
	}
	name := c.SearchTitle()
	if kind == media.KindTV {
		if alias := title.Alias(name); alias != "" {
			name = alias
		}
	}
	if c.Year > 0 {
		return []query{{title: name, year: c.Year}, {title: name}}
	}
	return []query{{title: name}}
}

// pick promotes the first record whose year matches; otherwise the first.
func pick(recs []media.Record, year int) media.Record {
	if year > 0 {
		want := strconv.Itoa(year)
		for _, r := range recs {
			if r.ReleaseYear == want {
				return r
			}
		}
	}
	return recs[0]
}

func filterKind(recs []media.Record, kind media.Kind) []media.Record {
	var out []media.Record
	for _, r := range recs {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// fillFrom copies fields the detailed record lacks from the search record.
func fillFrom(detailed, search media.Record) media.Record {
	if detailed.Title == "" {
		detailed.Title = search.Title
	}
	if detailed.PosterURL == "" {
		detailed.PosterURL = search.PosterURL
	}
	if detailed.ReleaseYear == "" || detailed.ReleaseYear == media.UnknownYear {
		detailed.ReleaseYear = search.Year()
	}
	if len(detailed.Genres) == 0 {
		detailed.Genres = search.Genres
	}
	if detailed.Rating == 0 {
		detailed.Rating, detailed.VoteCount = search.Rating, search.VoteCount
	}
	if detailed.Kind == media.KindUnknown {
		detailed.Kind = search.Kind
	}
	if detailed.Provider == "" {
		detailed.Provider, detailed.ExternalID = search.Provider, search.ExternalID
	}
	return detailed
}
