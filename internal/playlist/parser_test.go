package playlist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/Gostream/internal/models"
)

func TestDirectQualityTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want string
	}{
		{"https://cdn.example/movie_720p.mp4", "720p"},
		{"https://cdn.example/1080p/movie.mkv", "1080p"},
		{"https://cdn.example/movie.MP4?token=1", "mp4"},
		{"https://cdn.example/stream", "Default"},
		{"https://cdn.example/1080.mp4", "mp4"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, directQualityTag(tt.url))
		})
	}
}

func TestParseDispatch(t *testing.T) {
	t.Parallel()

	srv := manifestServer(t, map[string]string{
		"/m.m3u8": "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=1,RESOLUTION=1x480\nlow.m3u8\n",
		"/m.mpd":  sampleMPD,
	})
	p := New(WithHTTPClient(srv.Client()))

	variants, err := p.Parse(context.Background(), models.RawMediaReference{Kind: models.DirectFile, URL: "https://cdn.example/v_480p.mp4"}, "F")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "480p", variants[0].QualityTag)
	assert.Equal(t, models.DirectFile, variants[0].Kind)

	variants, err = p.Parse(context.Background(), models.RawMediaReference{Kind: models.HlsPlaylist, URL: srv.URL + "/m.m3u8"}, "H")
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "480p", variants[0].QualityTag)

	variants, err = p.Parse(context.Background(), models.RawMediaReference{Kind: models.DashManifest, URL: srv.URL + "/m.mpd"}, "D")
	require.NoError(t, err)
	assert.Len(t, variants, 3)
}
