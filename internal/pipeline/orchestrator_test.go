package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alvarorichard/Gostream/internal/decrypt"
	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/playlist"
	"github.com/alvarorichard/Gostream/internal/ranking"
	"github.com/alvarorichard/Gostream/internal/resolver"
	"github.com/alvarorichard/Gostream/internal/subtitles"
	"github.com/alvarorichard/Gostream/internal/util"
)

type parserFunc func(ctx context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error)

func (f parserFunc) Parse(ctx context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error) {
	return f(ctx, ref, server)
}

// directParser returns one variant per reference without network access
var directParser = parserFunc(func(_ context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error) {
	return playlist.Direct(ref, server), nil
})

func locatorResolver() resolver.Resolver {
	return resolver.Func(func(_ context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
		return models.RawMediaReference{Kind: models.DirectFile, URL: s.Locator}, nil
	})
}

func TestRunEmptyServerList(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	res := resolver.Func(func(context.Context, models.ServerDescriptor) (models.RawMediaReference, error) {
		calls.Add(1)
		return models.RawMediaReference{}, nil
	})

	result := New(res, directParser, nil, Options{}).Run(context.Background(), models.MediaHandle{ID: "x"}, nil)
	assert.NotNil(t, result.Variants)
	assert.Empty(t, result.Variants)
	assert.Empty(t, result.Failures)
	assert.NotEmpty(t, result.RunID)
	assert.Zero(t, calls.Load())
}

func TestRunAllFail(t *testing.T) {
	t.Parallel()

	res := resolver.Func(func(_ context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
		return models.RawMediaReference{}, &resolver.Error{Kind: resolver.NotFound, Server: s.Name}
	})
	servers := []models.ServerDescriptor{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	result := New(res, directParser, nil, Options{}).Run(context.Background(), models.MediaHandle{}, servers)
	assert.Empty(t, result.Variants)
	require.Len(t, result.Failures, 3)
	for i, f := range result.Failures {
		assert.Equal(t, servers[i].Name, f.Server)
		assert.Equal(t, StageResolve, f.Stage)
		assert.True(t, resolver.IsKind(f.Err, resolver.NotFound))
	}
}

func TestRunIsolatesPanics(t *testing.T) {
	t.Parallel()

	parser := parserFunc(func(ctx context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error) {
		if server == "Boom" {
			panic("parser exploded")
		}
		return directParser(ctx, ref, server)
	})
	servers := []models.ServerDescriptor{
		{Name: "Good", Locator: "https://cdn.example/good_720p.mp4"},
		{Name: "Boom", Locator: "https://cdn.example/boom.mp4"},
	}

	result := New(locatorResolver(), parser, nil, Options{}).Run(context.Background(), models.MediaHandle{}, servers)
	require.Len(t, result.Variants, 1)
	assert.Equal(t, "Good", result.Variants[0].SourceServer)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Boom", result.Failures[0].Server)
	assert.Equal(t, StageParse, result.Failures[0].Stage)
	assert.Contains(t, result.Failures[0].Err.Error(), "parser exploded")
}

func TestRunDeadline(t *testing.T) {
	t.Parallel()

	res := resolver.Func(func(ctx context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
		if s.Name == "Slow" {
			select {
			case <-ctx.Done():
				return models.RawMediaReference{}, ctx.Err()
			case <-time.After(10 * time.Second):
			}
		}
		return models.RawMediaReference{Kind: models.DirectFile, URL: s.Locator}, nil
	})
	servers := []models.ServerDescriptor{
		{Name: "Slow", Locator: "https://cdn.example/slow.mp4"},
		{Name: "Fast", Locator: "https://cdn.example/fast.mp4"},
	}

	start := time.Now()
	result := New(res, directParser, nil, Options{Deadline: 100 * time.Millisecond}).Run(context.Background(), models.MediaHandle{}, servers)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, result.Variants, 1)
	assert.Equal(t, "Fast", result.Variants[0].SourceServer)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Slow", result.Failures[0].Server)
	assert.ErrorIs(t, result.Failures[0].Err, ErrOrchestrationTimeout)
}

func TestRunRespectsConcurrencyBound(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	res := resolver.Func(func(_ context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return models.RawMediaReference{Kind: models.DirectFile, URL: s.Locator}, nil
	})

	var servers []models.ServerDescriptor
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		servers = append(servers, models.ServerDescriptor{Name: name, Locator: "https://cdn.example/" + name + ".mp4"})
	}

	result := New(res, directParser, nil, Options{MaxConcurrency: 2}).Run(context.Background(), models.MediaHandle{}, servers)
	assert.Len(t, result.Variants, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunKeepsServerOrderAndStampsVariants(t *testing.T) {
	t.Parallel()

	res := resolver.Func(func(_ context.Context, s models.ServerDescriptor) (models.RawMediaReference, error) {
		if s.Name == "first" {
			time.Sleep(30 * time.Millisecond)
		}
		return models.RawMediaReference{
			Kind:      models.DirectFile,
			URL:       s.Locator,
			Subtitles: []models.SubtitleSource{models.InlineSubtitles(models.SubtitleTrack{URL: "https://s/" + s.Name + ".vtt", Language: "en"})},
		}, nil
	})
	servers := []models.ServerDescriptor{
		{Name: "first", Locator: "https://cdn.example/1.mp4", TrackKind: models.TrackDub},
		{Name: "second", Locator: "https://cdn.example/2.mp4", TrackKind: models.TrackSub},
	}

	result := New(res, directParser, subtitles.NewAggregator(), Options{}).Run(context.Background(), models.MediaHandle{}, servers)
	require.Len(t, result.Variants, 2)
	assert.Equal(t, "first", result.Variants[0].SourceServer)
	assert.Equal(t, models.TrackDub, result.Variants[0].TrackKind)
	assert.Equal(t, "second", result.Variants[1].SourceServer)
	assert.Equal(t, models.TrackSub, result.Variants[1].TrackKind)

	require.Len(t, result.Variants[0].Subtitles, 1)
	assert.Equal(t, "English", result.Variants[0].Subtitles[0].Language)
	assert.Equal(t, "https://s/first.vtt", result.Variants[0].Subtitles[0].URL)
}

type recordingAggregator struct {
	mu      sync.Mutex
	sources [][]models.SubtitleSource
}

func (r *recordingAggregator) Aggregate(_ context.Context, sources []models.SubtitleSource) []models.SubtitleTrack {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, sources)
	return []models.SubtitleTrack{{URL: "https://s/x.vtt", Language: "English"}}
}

func TestRunAddsSearchSource(t *testing.T) {
	t.Parallel()

	agg := &recordingAggregator{}
	servers := []models.ServerDescriptor{{Name: "A", Locator: "https://cdn.example/a.mp4"}}
	handle := models.MediaHandle{ID: "tt42", Season: 1, Episode: 2}

	New(locatorResolver(), directParser, agg, Options{SubtitleSearch: true}).Run(context.Background(), handle, servers)

	require.Len(t, agg.sources, 1)
	require.Len(t, agg.sources[0], 1)
	assert.Equal(t, models.SubtitleSearch, agg.sources[0][0].Kind)
	assert.Equal(t, models.SubtitleQuery{MediaID: "tt42", Season: 1, Episode: 2}, agg.sources[0][0].Query)
}

func TestRunEmptyManifestIsNotAFailure(t *testing.T) {
	t.Parallel()

	parser := parserFunc(func(context.Context, models.RawMediaReference, string) ([]models.VideoVariant, error) {
		return []models.VideoVariant{}, nil
	})
	result := New(locatorResolver(), parser, nil, Options{}).Run(context.Background(), models.MediaHandle{},
		[]models.ServerDescriptor{{Name: "A", Locator: "https://cdn.example/a.m3u8"}})
	assert.Empty(t, result.Variants)
	assert.Empty(t, result.Failures)
}

// TestScenarioMixedServers wires real components: A serves an HLS master
// with two variants, B's oracle answers 500 and C is a direct file.
func TestScenarioMixedServers(t *testing.T) {
	t.Parallel()

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a/master.m3u8":
			_, _ = w.Write([]byte("#EXTM3U\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720\n720.m3u8\n" +
				"#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080\n1080.m3u8\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(cdn.Close)

	var oracleCalls atomic.Int32
	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		oracleCalls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(oracle.Close)

	reg := resolver.NewRegistry()
	reg.Register("direct", resolver.Direct{})
	reg.Register("oracle", resolver.NewOracle(resolver.OracleConfig{},
		decrypt.New(decrypt.Endpoint{DecryptURL: oracle.URL}, decrypt.WithHTTPClient(oracle.Client()))))

	servers := []models.ServerDescriptor{
		{Name: "A", Family: "direct", Locator: cdn.URL + "/a/master.m3u8"},
		{Name: "B", Family: "oracle", Locator: "https://embed.example/e/b"},
		{Name: "C", Family: "direct", Locator: "https://files.example/c_480p.mp4"},
	}

	orch := New(reg, playlist.New(playlist.WithHTTPClient(cdn.Client())), subtitles.NewAggregator(), Options{})
	result := orch.Run(context.Background(), models.MediaHandle{ID: "m1"}, servers)

	require.Len(t, result.Variants, 3)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "B", result.Failures[0].Server)
	assert.Equal(t, StageResolve, result.Failures[0].Stage)
	assert.True(t, decrypt.IsKind(result.Failures[0].Err, decrypt.BadStatus))
	assert.Equal(t, int32(1), oracleCalls.Load())

	for _, v := range result.Variants {
		assert.Contains(t, []string{"A", "C"}, v.SourceServer)
	}

	ranked := ranking.Rank(result.Variants, models.Preference{Server: "C"})
	assert.Equal(t, "C", ranked[0].SourceServer)
	assert.Equal(t, "480p", ranked[0].QualityTag)
	assert.Equal(t, "1080p", ranked[1].QualityTag)
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// logLine returns the first captured log line containing msg, without colours
func logLine(t *testing.T, out, msg string) string {
	t.Helper()
	for _, line := range strings.Split(ansiEscape.ReplaceAllString(out, ""), "\n") {
		if strings.Contains(line, msg) {
			return line
		}
	}
	t.Fatalf("no log line containing %q in:\n%s", msg, out)
	return ""
}

// Swaps the package logger, so it must not run in parallel.
func TestOracleOutageLoggedApartFromParseFailure(t *testing.T) {
	saved := util.Logger
	t.Cleanup(func() { util.Logger = saved })

	var buf bytes.Buffer
	util.InitLoggerWithWriter(&buf)

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("this is not a playlist"))
	}))
	t.Cleanup(cdn.Close)

	oracle := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(oracle.Close)

	reg := resolver.NewRegistry()
	reg.Register("direct", resolver.Direct{})
	reg.Register("oracle", resolver.NewOracle(resolver.OracleConfig{},
		decrypt.New(decrypt.Endpoint{DecryptURL: oracle.URL}, decrypt.WithHTTPClient(oracle.Client()))))

	servers := []models.ServerDescriptor{
		{Name: "Broken", Family: "direct", Locator: cdn.URL + "/master.m3u8"},
		{Name: "Locked", Family: "oracle", Locator: "https://embed.example/e/locked"},
	}
	orch := New(reg, playlist.New(playlist.WithHTTPClient(cdn.Client())), nil, Options{})
	result := orch.Run(context.Background(), models.MediaHandle{ID: "m1"}, servers)

	assert.Empty(t, result.Variants)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "Locked", result.Failures[0].Server)

	out := buf.String()
	outage := logLine(t, out, "Decryption oracle unavailable")
	assert.Contains(t, outage, "ERRO")
	assert.Contains(t, outage, "Locked")

	parse := logLine(t, out, "Manifest could not be parsed")
	assert.Contains(t, parse, "WARN")
	assert.Contains(t, parse, "Broken")
	assert.NotContains(t, parse, "ERRO")
}

func TestResolveAll(t *testing.T) {
	t.Parallel()

	variants := ResolveAll(context.Background(),
		[]models.ServerDescriptor{{Name: "A", Locator: "https://cdn.example/a_1080p.mp4"}},
		locatorResolver(), directParser, nil, DefaultOptions())
	require.Len(t, variants, 1)
	assert.Equal(t, "1080p", variants[0].QualityTag)
}

func TestFailureError(t *testing.T) {
	t.Parallel()

	f := Failure{Server: "S", Stage: StageParse, Err: errors.New("boom")}
	assert.Equal(t, "S failed at parse: boom", f.Error())
}
