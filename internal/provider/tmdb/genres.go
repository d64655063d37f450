package tmdb

import "mposter-tg-bot/internal/media"

// Search results carry genre ids only; these are TMDB's stable ids.
var movieGenres = map[int]string{
	28:    "Action",
	12:    "Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	14:    "Fantasy",
	36:    "History",
	27:    "Horror",
	10402: "Music",
	9648:  "Mystery",
	10749: "Romance",
	878:   "Science Fiction",
	10770: "TV Movie",
	53:    "Thriller",
	10752: "War",
	37:    "Western",
}

var tvGenres = map[int]string{
	10759: "Action & Adventure",
	16:    "Animation",
	35:    "Comedy",
	80:    "Crime",
	99:    "Documentary",
	18:    "Drama",
	10751: "Family",
	10762: "Kids",
	9648:  "Mystery",
	10763: "News",
	10764: "Reality",
	10765: "Sci-Fi & Fantasy",
	10766: "Soap",
	10767: "Talk",
	10768: "War & Politics",
	37:    "Western",
}

func genreNames(ids []int, kind media.Kind) []string {
	table := movieGenres
	if kind == media.KindTV {
		table = tvGenres
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if g, ok := table[id]; ok {
			out = append(out, g)
		}
	}
	return out
}
