package title

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_GroupsVariants(t *testing.T) {
	want := "inception 2010"
	for _, s := range []string{
		"Inception (2010)",
		"Inception.2010.1080p.BluRay",
		"INCEPTION 2010",
		"inception [2010] x264",
	} {
		assert.Equal(t, want, Normalize(s), "input %q", s)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"  Breaking   Bad ":            "breaking bad",
		"The Dark Knight [1080p] x265": "the dark knight",
		"Spider-Man: No Way Home":      "spider man no way home",
		"Show_Name (Extended)":         "show name",
		"Брат":                         "брат",
		"":                             "",
		"2012":                         "2012",
		"Game.of.Thrones.HDTV.AMZN":    "game of thrones",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, s := range []string{"Inception (2010)", "Show.Name.1080p", "Spider-Man: No Way Home"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "The Walking Dead", TitleCase("the WALKING dead"))
}

func TestSeriesQueries(t *testing.T) {
	assert.Equal(t, []string{"game of thrones", "got", "Got", "got series"}, SeriesQueries("got"))
	assert.Equal(t, []string{"Dark", "Dark series"}, SeriesQueries("Dark"))

	q := SeriesQueries("the lord and the rings of power")
	assert.Equal(t, "the lord and the rings of power", q[0])
	assert.Contains(t, q, "The Lord And The Rings Of Power")
	assert.Contains(t, q, "the lord & the rings of power")
	assert.Contains(t, q, "the lord and the rings of power series")
	assert.Contains(t, q, "lord rings power")
	assert.Contains(t, q, "the lord and")

	assert.Nil(t, SeriesQueries("  "))
}

func TestAlias(t *testing.T) {
	assert.Equal(t, "the big bang theory", Alias(" TBBT "))
	assert.Equal(t, "", Alias("dark"))
}
