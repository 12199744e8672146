package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrackKind(t *testing.T) {
	t.Parallel()

	tests := map[string]TrackKind{
		"sub":     TrackSub,
		" Dubbed": TrackDub,
		"SOFTSUB": TrackSoftSub,
		"hardsub": TrackSub,
		"raw":     TrackUnknown,
		"":        TrackUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseTrackKind(in), in)
	}
}

func TestServerFamilyKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "vidcloud", ServerDescriptor{Name: "VidCloud"}.FamilyKey())
	assert.Equal(t, "oracle", ServerDescriptor{Name: "VidCloud", Family: " Oracle "}.FamilyKey())
}

func TestGetDisplayName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "m1", MediaHandle{ID: "m1"}.GetDisplayName())
	assert.Equal(t, "Show S01E03", MediaHandle{ID: "m1", Title: "Show", Season: 1, Episode: 3}.GetDisplayName())
}

func TestVariantJSON(t *testing.T) {
	t.Parallel()

	in := VideoVariant{
		DisplayLabel: "A - 720p",
		QualityTag:   "720p",
		StreamURL:    "https://cdn.example/a.m3u8",
		SourceServer: "A",
		TrackKind:    TrackDub,
		Kind:         HlsPlaylist,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"hls"`)
	assert.Contains(t, string(data), `"trackKind":"dub"`)

	var out VideoVariant
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestWithSubtitlesCopies(t *testing.T) {
	t.Parallel()

	tracks := []SubtitleTrack{{URL: "https://x/en.vtt", Language: "English"}}
	base := VideoVariant{Headers: map[string]string{"Referer": "https://x/"}}

	v := base.WithSubtitles(tracks)
	tracks[0].Language = "French"
	v.Headers["Referer"] = "changed"

	assert.Equal(t, "English", v.Subtitles[0].Language)
	assert.Equal(t, "https://x/", base.Headers["Referer"])
	assert.Nil(t, CloneHeaders(map[string]string{}))
}
