package models

import "maps"

// MediaKind is the shape of a raw media reference
type MediaKind int

const (
	DirectFile MediaKind = iota
	HlsPlaylist
	DashManifest
)

// String returns a short name for the media kind
func (k MediaKind) String() string {
	switch k {
	case HlsPlaylist:
		return "hls"
	case DashManifest:
		return "dash"
	default:
		return "file"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k MediaKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names map to DirectFile.
func (k *MediaKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "hls":
		*k = HlsPlaylist
	case "dash":
		*k = DashManifest
	default:
		*k = DirectFile
	}
	return nil
}

// RawMediaReference is what a resolver extracts from a server before any
// manifest has been parsed
type RawMediaReference struct {
	Kind      MediaKind
	URL       string
	Headers   map[string]string
	Subtitles []SubtitleSource
}

// VideoVariant is one playable resolution/bitrate option of a stream
type VideoVariant struct {
	DisplayLabel string            `json:"displayLabel"`
	QualityTag   string            `json:"qualityTag"`
	StreamURL    string            `json:"streamUrl"`
	Headers      map[string]string `json:"headers,omitempty"`
	Subtitles    []SubtitleTrack   `json:"subtitles,omitempty"`
	SourceServer string            `json:"sourceServer"`
	TrackKind    TrackKind         `json:"trackKind"`
	Kind         MediaKind         `json:"kind"`
	Bandwidth    int               `json:"bandwidth,omitempty"`
}

// WithSubtitles returns a copy of the variant carrying its own copy of tracks
func (v VideoVariant) WithSubtitles(tracks []SubtitleTrack) VideoVariant {
	v.Subtitles = append([]SubtitleTrack(nil), tracks...)
	v.Headers = CloneHeaders(v.Headers)
	return v
}

// CloneHeaders returns a copy of the header map, or nil for an empty map
func CloneHeaders(h map[string]string) map[string]string {
	if len(h) == 0 {
		return nil
	}
	return maps.Clone(h)
}
