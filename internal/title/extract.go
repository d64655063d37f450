// Package title turns noisy filenames, captions and message text into a
// searchable title with optional year and season/episode markers.
package title

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"mposter-tg-bot/internal/media"
)

// MaxLength caps extracted titles.
const MaxLength = 100

// Origin is where a piece of input text came from.
type Origin int

const (
	OriginFilename Origin = iota
	OriginCaption
	OriginText
)

func (o Origin) String() string {
	switch o {
	case OriginFilename:
		return "filename"
	case OriginCaption:
		return "caption"
	default:
		return "text"
	}
}

// Input is one raw signal taken from a message.
type Input struct {
	Text   string
	Origin Origin
	Kind   media.Kind
}

// Candidate is the structured result of extraction.
type Candidate struct {
	Title      string
	Year       int
	IsSeries   bool
	SeriesName string
	Season     int
	Episode    int
	Kind       media.Kind
}

// SearchTitle is the name to query providers with.
func (c Candidate) SearchTitle() string {
	if c.IsSeries {
		return c.SeriesName
	}
	return c.Title
}

// ExtractFirst tries inputs in origin priority order (filename, caption,
// text) and returns the first usable candidate.
func ExtractFirst(inputs ...Input) (Candidate, bool) {
	ordered := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if strings.TrimSpace(in.Text) != "" {
			ordered = append(ordered, in)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Origin < ordered[j].Origin })
	for _, in := range ordered {
		if c, ok := Extract(in); ok {
			return c, true
		}
	}
	return Candidate{}, false
}

// Extract parses a single input. The boolean is false when no usable title
// could be found; that is a normal outcome, not an error.
func Extract(in Input) (Candidate, bool) {
	s := prepare(in)
	if s == "" {
		return Candidate{}, false
	}
	release := in.Origin == OriginFilename || looksLikeRelease(s)
	if release {
		s = separatorRe.ReplaceAllString(s, " ")
	}
	s = collapse(s)

	if c, ok := extractSeries(s, release); ok {
		c.Kind = media.KindTV
		return c, true
	}

	t, year := cleanTitle(s, release)
	if !usable(t) {
		return Candidate{}, false
	}
	return Candidate{Title: t, Year: year, Kind: in.Kind}, true
}

func prepare(in Input) string {
	s := strings.TrimSpace(in.Text)
	if in.Origin != OriginFilename {
		s = firstMeaningfulLine(s)
	}
	s = urlRe.ReplaceAllString(s, " ")
	s = handleRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = extensionRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func firstMeaningfulLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.IndexFunc(line, isAlnum) >= 0 {
			return line
		}
	}
	return ""
}

// looksLikeRelease reports dotted scene-style names such as "Movie.2010.1080p".
func looksLikeRelease(s string) bool {
	dots := strings.Count(s, ".") + strings.Count(s, "_")
	spaces := strings.Count(s, " ")
	return dots >= 2 && dots > spaces
}

func extractSeries(s string, release bool) (Candidate, bool) {
	for _, p := range episodePatterns {
		loc := p.Re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		season := group(s, loc, p.SeasonGroup)
		episode := group(s, loc, p.EpisodeGroup)
		if season <= 0 {
			season = 1
		}

		name, year := cleanTitle(s[:loc[0]], release)
		if !usable(name) {
			name, year = cleanTitle(s[loc[1]:], release)
		}
		if !usable(name) {
			return Candidate{}, false
		}
		return Candidate{
			Title:      name,
			Year:       year,
			IsSeries:   true,
			SeriesName: name,
			Season:     season,
			Episode:    episode,
		}, true
	}
	return Candidate{}, false
}

func group(s string, loc []int, idx int) int {
	if idx <= 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return 0
	}
	n, err := strconv.Atoi(s[loc[2*idx]:loc[2*idx+1]])
	if err != nil {
		return 0
	}
	return n
}

// cleanTitle strips noise, captures the first year and removes brackets.
func cleanTitle(s string, release bool) (string, int) {
	s = removeNoise(s, release)
	s = collapse(s)

	year := 0
	for _, p := range yearPatterns {
		if p.ReleaseOnly && !release {
			continue
		}
		loc := p.Re.FindStringSubmatchIndex(s)
		if loc == nil {
			continue
		}
		year = group(s, loc, p.YearGroup)
		s = s[:loc[0]] + " " + s[loc[1]:]
		break
	}

	s = removeBrackets(s)
	s = stripResidual(s)
	s = trimEdges(collapse(s))
	s = truncate(s, MaxLength)
	return s, year
}

func removeNoise(s string, release bool) string {
	for _, p := range noisePatterns {
		if p.ReleaseOnly && !release {
			continue
		}
		s = p.Re.ReplaceAllString(s, " ")
	}
	return s
}

func removeBrackets(s string) string {
	for _, p := range bracketPatterns {
		s = p.Re.ReplaceAllString(s, " ")
	}
	return strayRe.ReplaceAllString(s, " ")
}

// stripResidual removes leftover year and marker shapes until none remain,
// so extracting from an extracted title finds nothing new.
func stripResidual(s string) string {
	for i := 0; i < 8; i++ {
		before := s
		for _, p := range episodePatterns {
			s = p.Re.ReplaceAllString(s, " ")
		}
		s = collapse(s)
		for _, p := range yearPatterns {
			if p.ReleaseOnly {
				continue
			}
			s = p.Re.ReplaceAllString(s, " ")
		}
		s = trimEdges(collapse(s))
		if s == before {
			break
		}
	}
	return s
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func trimEdges(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '!' && r != '?' && r != '\'' && r != '&'
	})
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}

func usable(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	return strings.IndexFunc(s, isAlnum) >= 0
}

func isAlnum(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }
