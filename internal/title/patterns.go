package title

import "regexp"

// Category groups entries of the pattern table.
type Category int

const (
	CategoryEpisode Category = iota
	CategoryYear
	CategoryNoise
	CategoryBracket
)

// Action tells whether a pattern captures data or only deletes text.
type Action int

const (
	ActionExtract Action = iota
	ActionRemove
)

// Pattern is one row of the extraction/normalization vocabulary.
type Pattern struct {
	Category Category
	Name     string
	Re       *regexp.Regexp
	Action   Action
	// Capture group indexes, 0 when the pattern does not capture the field.
	SeasonGroup  int
	EpisodeGroup int
	YearGroup    int
	// ReleaseOnly patterns apply to dotted release names and filenames only.
	ReleaseOnly bool
}

// Table is the ordered vocabulary. Within a category, earlier rows win.
var Table = []Pattern{
	// Series markers, most specific first.
	{Category: CategoryEpisode, Name: "sxxexx", Re: regexp.MustCompile(`(?i)\bs(\d{1,2}) ?e(\d{1,3})`), Action: ActionExtract, SeasonGroup: 1, EpisodeGroup: 2},
	{Category: CategoryEpisode, Name: "nxnn", Re: regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`), Action: ActionExtract, SeasonGroup: 1, EpisodeGroup: 2},
	{Category: CategoryEpisode, Name: "season-episode", Re: regexp.MustCompile(`(?i)\bseason ?(\d{1,2}) ?-? ?episode ?(\d{1,3})\b`), Action: ActionExtract, SeasonGroup: 1, EpisodeGroup: 2},
	{Category: CategoryEpisode, Name: "sxx", Re: regexp.MustCompile(`(?i)\bs(\d{1,2})\b`), Action: ActionExtract, SeasonGroup: 1},
	{Category: CategoryEpisode, Name: "season", Re: regexp.MustCompile(`(?i)\bseason ?(\d{1,2})\b`), Action: ActionExtract, SeasonGroup: 1},

	// Years, first match wins.
	{Category: CategoryYear, Name: "paren", Re: regexp.MustCompile(`\(((?:19|20)\d{2})\)`), Action: ActionExtract, YearGroup: 1},
	{Category: CategoryYear, Name: "bracket", Re: regexp.MustCompile(`\[((?:19|20)\d{2})\]`), Action: ActionExtract, YearGroup: 1},
	{Category: CategoryYear, Name: "trailing", Re: regexp.MustCompile(`\s((?:19|20)\d{2})\s*$`), Action: ActionExtract, YearGroup: 1},
	{Category: CategoryYear, Name: "leading", Re: regexp.MustCompile(`^((?:19|20)\d{2})\s+`), Action: ActionExtract, YearGroup: 1},
	{Category: CategoryYear, Name: "release", Re: regexp.MustCompile(`\s((?:19|20)\d{2})\s.*$`), Action: ActionExtract, YearGroup: 1, ReleaseOnly: true},

	// Release noise, word bounded. A bare episode number is noise, not a series marker.
	{Category: CategoryNoise, Name: "episode", Re: regexp.MustCompile(`(?i)\b(?:episode|ep) ?(\d{1,3})\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "resolution", Re: regexp.MustCompile(`(?i)\b(?:2160|1440|1080|720|576|480|360)[pi]\b|\b(?:4k|8k|uhd|fhd|hd|sd)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "source", Re: regexp.MustCompile(`(?i)\b(?:blu ?-?ray|bd ?rip|br ?rip|bdremux|remux|bd|web ?-?dl|web ?-?rip|hd ?rip|dvd ?rip|dvd ?scr|dvd|tv ?rip|hdtv|pdtv|hdcam|cam ?rip|hdts|ppv|scr)\b`), Action: ActionRemove},
	// Plain English words that are noise only inside release names.
	{Category: CategoryNoise, Name: "release-words", Re: regexp.MustCompile(`(?i)\b(?:extended|proper|sample|rip|opus|atmos|stereo|surround)\b`), Action: ActionRemove, ReleaseOnly: true},
	{Category: CategoryNoise, Name: "codec", Re: regexp.MustCompile(`(?i)\b(?:x ?26[45]|h ?26[45]|hevc|avc|av1|xvid|divx|10 ?bit|8 ?bit)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "audio", Re: regexp.MustCompile(`(?i)\b(?:e?ac3|aac|ddp?|dts(?: ?-?hd)?|truehd|mp3|flac)(?: ?[257] ?[01])?\b|\b(?:2ch|6ch)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "hdr", Re: regexp.MustCompile(`(?i)\b(?:hdr(?:10)?(?:plus)?|dolby ?vision|sdr)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "edition", Re: regexp.MustCompile(`(?i)\b(?:remastered|unrated|uncut|directors ?cut|repack|imax)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "group", Re: regexp.MustCompile(`(?i)\b(?:rarbg|yts(?: ?mx)?|yify|amzn|nf|netflix|dsnp|hmax|atvp|hulu|eztv|ettv|tgx|galaxyrg|psa|pahe|heydl|youthtrendx|mkvcinemas)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "language", Re: regexp.MustCompile(`(?i)\b(?:dubbed|dual ?audio|multi ?audio|subbed|esubs?|hindi|tamil|telugu)\b`), Action: ActionRemove},
	{Category: CategoryNoise, Name: "file", Re: regexp.MustCompile(`(?i)\b(?:mkv|mp4|avi|m4v|wmv|flv|webm)\b|\b\d+(?: \d+)? ?(?:gb|mb)\b`), Action: ActionRemove},

	{Category: CategoryBracket, Name: "square", Re: regexp.MustCompile(`\[[^\]]*\]`), Action: ActionRemove},
	{Category: CategoryBracket, Name: "round", Re: regexp.MustCompile(`\([^)]*\)`), Action: ActionRemove},
	{Category: CategoryBracket, Name: "curly", Re: regexp.MustCompile(`\{[^}]*\}`), Action: ActionRemove},
}

var (
	urlRe       = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+|\bt\.me/\S+|\b[a-z0-9-]+\.(?:com|org|net|xyz)\b`)
	handleRe    = regexp.MustCompile(`@\w+`)
	extensionRe = regexp.MustCompile(`(?i)\.(?:mkv|mp4|avi|mov|wmv|flv|webm|m4v|mpe?g|m2ts|ts|srt|zip|rar)$`)
	strayRe     = regexp.MustCompile(`[\[\](){}]`)
	spaceRe     = regexp.MustCompile(`\s+`)
	separatorRe = regexp.MustCompile(`[._]+`)
	anyYearRe   = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	nonWordRe   = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

func patterns(c Category) []Pattern {
	out := make([]Pattern, 0, len(Table))
	for _, p := range Table {
		if p.Category == c {
			out = append(out, p)
		}
	}
	return out
}

var (
	episodePatterns = patterns(CategoryEpisode)
	yearPatterns    = patterns(CategoryYear)
	noisePatterns   = patterns(CategoryNoise)
	bracketPatterns = patterns(CategoryBracket)
)
