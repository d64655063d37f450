package title

import "strings"

// seriesAliases expands abbreviations commonly used in channel posts.
var seriesAliases = map[string]string{
	"got":          "game of thrones",
	"tbbt":         "the big bang theory",
	"twd":          "the walking dead",
	"himym":        "how i met your mother",
	"tas":          "the animated series",
	"batman t a s": "batman the animated series",
	"bbc":          "bbc documentaries",
	"baywatch hdr": "baywatch",
}

var commonWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "as": true, "is": true, "from": true, "into": true,
}

// Alias returns the expanded series name for a known abbreviation, or "".
func Alias(name string) string {
	return seriesAliases[strings.Join(strings.Fields(strings.ToLower(name)), " ")]
}

// SeriesQueries lists search strings to try for a series name, most faithful first.
func SeriesQueries(name string) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	// Dedup is case sensitive so the title-cased form survives.
	add := func(q string) {
		q = strings.Join(strings.Fields(q), " ")
		if q == "" || seen[q] {
			return
		}
		seen[q] = true
		out = append(out, q)
	}

	if a := Alias(name); a != "" {
		add(a)
	}
	add(name)
	add(TitleCase(name))
	if strings.Contains(strings.ToLower(name), " and ") {
		add(replaceWord(name, "and", "&"))
	}
	add(name + " series")

	words := strings.Fields(name)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !commonWords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	if len(kept) > 0 && len(kept) < len(words) {
		add(strings.Join(kept, " "))
	}
	if len(words) > 3 {
		add(strings.Join(words[:3], " "))
	}
	return out
}

func replaceWord(s, from, to string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if strings.EqualFold(w, from) {
			words[i] = to
		}
	}
	return strings.Join(words, " ")
}
