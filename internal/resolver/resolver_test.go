package resolver

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/Gostream/internal/decrypt"
	"github.com/alvarorichard/Gostream/internal/models"
)

// mockDecrypter implements Decrypter with testify/mock
type mockDecrypter struct {
	mock.Mock
}

func (m *mockDecrypter) Decrypt(ctx context.Context, token string, extra map[string]string) (decrypt.Payload, error) {
	args := m.Called(ctx, token, extra)
	return args.Get(0).(decrypt.Payload), args.Error(1)
}

func (m *mockDecrypter) Encrypt(ctx context.Context, text string, extra map[string]string) (decrypt.Payload, error) {
	args := m.Called(ctx, text, extra)
	return args.Get(0).(decrypt.Payload), args.Error(1)
}

func TestClassifyURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want models.MediaKind
	}{
		{"https://cdn.example/master.m3u8", models.HlsPlaylist},
		{"https://cdn.example/master.M3U8?token=abc", models.HlsPlaylist},
		{"https://cdn.example/manifest.mpd", models.DashManifest},
		{"https://cdn.example/manifest.mpd#t=10", models.DashManifest},
		{"https://cdn.example/video.mp4", models.DirectFile},
		{"https://cdn.example/stream?format=m3u8", models.DirectFile},
		{"https://cdn.example/", models.DirectFile},
		{"not a url", models.DirectFile},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ClassifyURL(tt.url))
		})
	}
}

func TestStatusErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusNotFound, NotFound},
		{http.StatusGone, NotFound},
		{http.StatusForbidden, UpstreamRejected},
		{http.StatusTooManyRequests, UpstreamRejected},
		{http.StatusBadGateway, UpstreamRejected},
	}
	for _, tt := range tests {
		tt := tt
		err := statusError("s", tt.status, "https://x")
		assert.True(t, IsKind(err, tt.want), "status %d", tt.status)
	}
}

func TestDecryptionErrorIsReachable(t *testing.T) {
	t.Parallel()

	inner := &decrypt.Error{Kind: decrypt.BadStatus, Status: 500}
	err := decryptionFailed("Vidcloud", inner)

	var re *Error
	require.True(t, errors.As(err, &re))
	assert.Equal(t, DecryptionFailed, re.Kind)
	assert.Equal(t, "Vidcloud", re.Server)

	var de *decrypt.Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 500, de.Status)
	assert.True(t, decrypt.IsOracleDown(err))
}

func TestResolveReference(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cdn.example/hls/720/index.m3u8", resolveReference("https://cdn.example/hls/master.m3u8", "720/index.m3u8"))
	assert.Equal(t, "https://cdn.example/abs.m3u8", resolveReference("https://cdn.example/hls/master.m3u8", "/abs.m3u8"))
	assert.Equal(t, "https://other.example/x.mp4", resolveReference("https://cdn.example/e/1", "//other.example/x.mp4"))
	assert.Equal(t, "https://full.example/a", resolveReference("https://cdn.example/", "https://full.example/a"))
}

func TestRegistryDispatch(t *testing.T) {
	t.Parallel()

	called := ""
	named := func(name string) Resolver {
		return Func(func(_ context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
			called = name
			return models.RawMediaReference{URL: s.Locator}, nil
		})
	}

	reg := NewRegistry()
	reg.Register("VidCloud", named("vidcloud"))
	reg.Register("direct", named("direct"))

	_, err := reg.Resolve(context.Background(), models.ServerDescriptor{Name: "Server A", Family: "VIDCLOUD", Locator: "x"})
	require.NoError(t, err)
	assert.Equal(t, "vidcloud", called)

	_, err = reg.Resolve(context.Background(), models.ServerDescriptor{Name: "Direct", Locator: "y"})
	require.NoError(t, err)
	assert.Equal(t, "direct", called)

	_, err = reg.Resolve(context.Background(), models.ServerDescriptor{Name: "Mystery", Locator: "z"})
	require.Error(t, err)
	assert.True(t, IsKind(err, NotFound))

	reg.SetFallback(named("fallback"))
	_, err = reg.Resolve(context.Background(), models.ServerDescriptor{Name: "Mystery", Locator: "z"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", called)

	assert.Equal(t, []string{"direct", "vidcloud"}, reg.Families())
}

func TestDirectResolve(t *testing.T) {
	t.Parallel()

	d := Direct{Referer: "https://site.example/", UserAgent: "ua"}

	ref, err := d.Resolve(context.Background(), models.ServerDescriptor{Name: "A", Locator: "https://cdn.example/movie_720p.mp4"})
	require.NoError(t, err)
	assert.Equal(t, models.DirectFile, ref.Kind)
	assert.Equal(t, "https://cdn.example/movie_720p.mp4", ref.URL)
	assert.Equal(t, map[string]string{"Referer": "https://site.example/", "User-Agent": "ua"}, ref.Headers)

	ref, err = d.Resolve(context.Background(), models.ServerDescriptor{Name: "A", Locator: "https://cdn.example/master.m3u8"})
	require.NoError(t, err)
	assert.Equal(t, models.HlsPlaylist, ref.Kind)

	for _, bad := range []string{"", "   ", "ftp://x/y.mp4", "relative/path.mp4"} {
		_, err := d.Resolve(context.Background(), models.ServerDescriptor{Name: "A", Locator: bad})
		assert.True(t, IsKind(err, NotFound), "locator %q", bad)
	}
}
