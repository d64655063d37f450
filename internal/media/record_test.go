package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupKey(t *testing.T) {
	a := Record{Title: "Inception", ReleaseYear: "2010"}
	b := Record{Title: " INCEPTION ", ReleaseYear: "2010", Provider: ProviderOMDB}
	c := Record{Title: "Inception"}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.Equal(t, "inception_Unknown", c.DedupKey())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Record{Title: "X", PosterURL: "http://p"}.Validate())

	err := Record{Title: "X"}.Validate()
	assert.True(t, errors.Is(err, ErrIncompleteRecord))
	assert.Contains(t, err.Error(), "poster")

	err = Record{}.Validate()
	assert.Contains(t, err.Error(), "title, poster")
}

func TestNormalize(t *testing.T) {
	r := Record{Title: "  Heat ", Genres: []string{"Crime", "crime", "", "Drama", "See more", "Thriller", "Action"}}
	r.Normalize()

	assert.Equal(t, "Heat", r.Title)
	assert.Equal(t, UnknownYear, r.ReleaseYear)
	assert.Equal(t, []string{"Crime", "Drama", "Thriller"}, r.Genres)
	assert.Equal(t, "en", r.OriginalLanguage)
}

func TestYearFromDate(t *testing.T) {
	assert.Equal(t, "2010", YearFromDate("2010-07-16"))
	assert.Equal(t, "2008", YearFromDate("2008–2013"))
	assert.Equal(t, "", YearFromDate("N/A"))
	assert.Equal(t, "", YearFromDate(""))
}
