package models

// SubtitleTrack is one subtitle file attached to a variant
type SubtitleTrack struct {
	URL             string `json:"url"`
	Language        string `json:"language"`
	HearingImpaired bool   `json:"isHearingImpaired"`
}

// SubtitleSourceKind tells the aggregator how to obtain tracks from a source
type SubtitleSourceKind int

const (
	SubtitleInline SubtitleSourceKind = iota
	SubtitleTrackList
	SubtitleSearch
)

// SubtitleQuery identifies the media item for an external subtitle search
type SubtitleQuery struct {
	MediaID string
	Season  int
	Episode int
}

// SubtitleSource is one place subtitle tracks can come from
type SubtitleSource struct {
	Kind    SubtitleSourceKind
	Tracks  []SubtitleTrack
	URL     string
	Headers map[string]string
	Query   SubtitleQuery
}

// InlineSubtitles wraps already-known tracks as a source
func InlineSubtitles(tracks ...SubtitleTrack) SubtitleSource {
	return SubtitleSource{Kind: SubtitleInline, Tracks: tracks}
}
