package gostream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/Gostream/internal/config"
	"github.com/alvarorichard/Gostream/pkg/gostream"
	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080
hi/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
mid/index.m3u8
`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/ajax/episode/sources/ep-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"link": "token-abc"})
	})
	mux.HandleFunc("/decrypt", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["text"] != "token-abc" {
			http.Error(w, "bad token", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"result": srv.URL + "/master.m3u8"})
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, masterPlaylist)
	})
	return srv
}

func testConfig(upstream string) gostream.Config {
	cfg := gostream.DefaultConfig()
	cfg.Oracles = map[string]config.Oracle{
		"main": {DecryptURL: upstream + "/decrypt"},
	}
	cfg.Hosters = map[string]config.Hoster{
		"direct":   {Kind: config.KindDirect},
		"vidcloud": {Kind: config.KindOracle, Oracle: "main", BaseURL: upstream},
	}
	return cfg
}

func TestResolveRanksAcrossServers(t *testing.T) {
	t.Parallel()

	upstream := newUpstream(t)
	client, err := gostream.NewClient(testConfig(upstream.URL), gostream.WithHTTPClient(upstream.Client()))
	require.NoError(t, err)
	defer client.Close()

	servers := []types.Server{
		{Name: "Mirror", Family: "direct", Locator: upstream.URL + "/movie-480p.mp4", TrackKind: types.TrackSub},
		{Name: "Vidcloud", Locator: "ep-1", TrackKind: types.TrackDub},
	}

	variants, err := client.Resolve(context.Background(), types.MediaHandle{ID: "m1"}, servers, types.Preference{})
	require.NoError(t, err)
	require.Len(t, variants, 3)
	assert.Equal(t, "1080p", variants[0].QualityTag)
	assert.Equal(t, "720p", variants[1].QualityTag)
	assert.Equal(t, "480p", variants[2].QualityTag)
	assert.Equal(t, "Vidcloud", variants[0].SourceServer)
	assert.Equal(t, types.TrackDub, variants[0].TrackKind)
	assert.Equal(t, upstream.URL+"/hi/index.m3u8", variants[0].StreamURL)

	preferred, err := client.Resolve(context.Background(), types.MediaHandle{ID: "m1"}, servers, types.Preference{Server: "mirror"})
	require.NoError(t, err)
	require.Len(t, preferred, 3)
	assert.Equal(t, "Mirror", preferred[0].SourceServer)
	assert.Equal(t, "1080p", preferred[1].QualityTag)
}

func TestResolveDedupe(t *testing.T) {
	t.Parallel()

	servers := []types.Server{
		{Name: "A", Family: "direct", Locator: "https://cdn.example/a-720p.mp4"},
		{Name: "B", Family: "direct", Locator: "https://cdn.example/a-720p.mp4"},
	}

	cfg := gostream.DefaultConfig()
	client, err := gostream.NewClient(cfg)
	require.NoError(t, err)

	variants, err := client.Resolve(context.Background(), types.MediaHandle{ID: "x"}, servers, types.Preference{Server: "B"})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "B", variants[0].SourceServer, "the preferred copy survives")

	cfg.Pipeline.Dedupe = false
	client, err = gostream.NewClient(cfg)
	require.NoError(t, err)

	variants, err = client.Resolve(context.Background(), types.MediaHandle{ID: "x"}, servers, types.Preference{})
	require.NoError(t, err)
	assert.Len(t, variants, 2)
}

func TestResolveNoPlayableSources(t *testing.T) {
	t.Parallel()

	client, err := gostream.NewClient(gostream.DefaultConfig())
	require.NoError(t, err)

	servers := []types.Server{{Name: "Unknown", Locator: "https://cdn.example/a.mp4"}}
	report, err := client.ResolveDetailed(context.Background(), types.MediaHandle{ID: "x"}, servers, types.Preference{})
	require.ErrorIs(t, err, gostream.ErrNoPlayableSources)
	assert.Equal(t, "no playable sources found", err.Error())
	assert.NotEmpty(t, report.RunID)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "Unknown", report.Failures[0].Server)

	_, err = client.Resolve(context.Background(), types.MediaHandle{ID: "x"}, nil, types.Preference{})
	assert.ErrorIs(t, err, gostream.ErrNoPlayableSources)
}

func TestResolveFallback(t *testing.T) {
	t.Parallel()

	cfg := gostream.DefaultConfig()
	cfg.Fallback = "direct"
	client, err := gostream.NewClient(cfg)
	require.NoError(t, err)

	servers := []types.Server{{Name: "Unknown", Locator: "https://cdn.example/a.mp4"}}
	variants, err := client.Resolve(context.Background(), types.MediaHandle{ID: "x"}, servers, types.Preference{})
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "mp4", variants[0].QualityTag)
}

func TestSources(t *testing.T) {
	t.Parallel()

	cfg := testConfig("https://upstream.example")
	cfg.Fallback = "direct"
	client, err := gostream.NewClient(cfg)
	require.NoError(t, err)

	assert.Equal(t, []types.Source{
		{Name: "direct", Kind: config.KindDirect, Fallback: true},
		{Name: "vidcloud", Kind: config.KindOracle},
	}, client.Sources())
}

func TestNewClientRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := gostream.DefaultConfig()
	cfg.Hosters["broken"] = config.Hoster{Kind: config.KindOracle, Oracle: "missing"}

	_, err := gostream.NewClient(cfg)
	assert.Error(t, err)
}
