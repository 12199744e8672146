// Package ranking orders resolved variants by a caller preference
package ranking

import (
	"sort"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/subtitles"
)

// QualityLadder lists the known quality tags from best to worst
var QualityLadder = []string{"2160p", "1440p", "1080p", "720p", "480p", "360p", "240p", "144p"}

var ladderIndex = func() map[string]int {
	m := make(map[string]int, len(QualityLadder))
	for i, q := range QualityLadder {
		m[q] = len(QualityLadder) - i
	}
	return m
}()

// LadderRank returns the position of a quality tag in the ladder; higher is
// better and unknown tags rank 0
func LadderRank(tag string) int {
	return ladderIndex[strings.ToLower(strings.TrimSpace(tag))]
}

type sortKey struct {
	server   bool
	language bool
	quality  bool
	ladder   int
}

func (k sortKey) less(o sortKey) bool {
	if k.server != o.server {
		return k.server
	}
	if k.language != o.language {
		return k.language
	}
	if k.quality != o.quality {
		return k.quality
	}
	return k.ladder > o.ladder
}

// Rank returns a new slice ordered by server match, language match, exact
// quality match and ladder position. Ties keep their input order.
func Rank(variants []models.VideoVariant, pref models.Preference) []models.VideoVariant {
	out := make([]models.VideoVariant, len(variants))
	copy(out, variants)

	keys := make([]sortKey, len(out))
	for i, v := range out {
		keys[i] = keyFor(v, pref)
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return keys[idx[a]].less(keys[idx[b]])
	})

	ranked := make([]models.VideoVariant, len(out))
	for i, j := range idx {
		ranked[i] = out[j]
	}
	return ranked
}

func keyFor(v models.VideoVariant, pref models.Preference) sortKey {
	return sortKey{
		server:   pref.Server != "" && strings.EqualFold(strings.TrimSpace(v.SourceServer), strings.TrimSpace(pref.Server)),
		language: pref.Language != "" && MatchesLanguage(v, pref.Language),
		quality:  pref.Quality != "" && strings.EqualFold(strings.TrimSpace(v.QualityTag), strings.TrimSpace(pref.Quality)),
		ladder:   LadderRank(v.QualityTag),
	}
}

// MatchesLanguage reports whether lang names the variant's track kind
// (sub, dub, softsub) or the language of one of its subtitle tracks
func MatchesLanguage(v models.VideoVariant, lang string) bool {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return false
	}
	if kind := models.ParseTrackKind(lang); kind != models.TrackUnknown {
		return v.TrackKind == kind
	}

	want := strings.ToLower(subtitles.NormalizeLanguage(lang))
	for _, s := range v.Subtitles {
		if subtitles.SameLanguage(lang, s.Language) {
			return true
		}
		// labels such as "English [SDH]" still name the language
		if strings.HasPrefix(strings.ToLower(s.Language), want+" ") {
			return true
		}
	}
	return false
}

// Dedupe drops later variants whose StreamURL was already seen
func Dedupe(variants []models.VideoVariant) []models.VideoVariant {
	seen := make(map[string]struct{}, len(variants))
	out := make([]models.VideoVariant, 0, len(variants))
	for _, v := range variants {
		if _, ok := seen[v.StreamURL]; ok {
			continue
		}
		seen[v.StreamURL] = struct{}{}
		out = append(out, v)
	}
	return out
}
