package title

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize builds the deduplication key for a title: case folded, brackets
// and release noise removed, punctuation collapsed, and a detected year moved
// to the end so "Movie (2010)" and "Movie.2010.1080p" group together.
func Normalize(s string) string {
	s = cases.Fold().String(s)
	s = urlRe.ReplaceAllString(s, " ")
	s = separatorRe.ReplaceAllString(s, " ")

	year := ""
	if loc := anyYearRe.FindStringSubmatchIndex(s); loc != nil {
		year = s[loc[2]:loc[3]]
		s = s[:loc[0]] + " " + s[loc[1]:]
	}

	s = removeBrackets(s)
	s = removeNoise(s, false)
	s = nonWordRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	if year != "" {
		if s == "" {
			return year
		}
		return s + " " + year
	}
	return s
}

// TitleCase renders a name in English title case.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}
