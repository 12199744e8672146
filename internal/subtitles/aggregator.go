// Package subtitles gathers subtitle tracks from inline descriptors, track
// list endpoints and an external search API into one deduplicated list.
package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/iter"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

const maxTrackListSize = 2 << 20

// Aggregator merges subtitle sources. It never fails: a source that cannot
// be read contributes no tracks.
type Aggregator struct {
	client *http.Client
	search *SearchClient
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithHTTPClient overrides the pooled fast client used for track lists
func WithHTTPClient(hc *http.Client) Option {
	return func(a *Aggregator) {
		if hc != nil {
			a.client = hc
		}
	}
}

// WithSearch enables SubtitleSearch sources
func WithSearch(sc *SearchClient) Option {
	return func(a *Aggregator) {
		a.search = sc
	}
}

// NewAggregator creates an aggregator
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{client: util.GetFastClient()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HasSearch reports whether search sources will be honoured
func (a *Aggregator) HasSearch() bool {
	return a.search != nil
}

// Aggregate collects the tracks of every source, normalizes their language
// labels and keeps the first track per label in source order
func (a *Aggregator) Aggregate(ctx context.Context, sources []models.SubtitleSource) []models.SubtitleTrack {
	if len(sources) == 0 {
		return []models.SubtitleTrack{}
	}

	perSource := iter.Map(sources, func(src *models.SubtitleSource) []models.SubtitleTrack {
		return a.collect(ctx, *src)
	})

	var all []models.SubtitleTrack
	for _, tracks := range perSource {
		for _, t := range tracks {
			all = append(all, normalizeTrack(t))
		}
	}
	return Dedupe(all)
}

// Dedupe keeps the first track for each language label
func Dedupe(tracks []models.SubtitleTrack) []models.SubtitleTrack {
	if len(tracks) == 0 {
		return []models.SubtitleTrack{}
	}
	return lo.UniqBy(tracks, func(t models.SubtitleTrack) string {
		return strings.ToLower(t.Language)
	})
}

func normalizeTrack(t models.SubtitleTrack) models.SubtitleTrack {
	t.HearingImpaired = t.HearingImpaired || IsHearingImpairedLabel(t.Language)
	t.Language = NormalizeLanguage(t.Language)
	return t
}

func (a *Aggregator) collect(ctx context.Context, src models.SubtitleSource) []models.SubtitleTrack {
	switch src.Kind {
	case models.SubtitleInline:
		return src.Tracks
	case models.SubtitleTrackList:
		tracks, err := a.fetchTrackList(ctx, src)
		if err != nil {
			util.Warn("Subtitle track list unavailable", "url", src.URL, "error", err)
			return nil
		}
		return tracks
	case models.SubtitleSearch:
		if a.search == nil {
			util.Debug("Subtitle search requested but no search endpoint is configured")
			return nil
		}
		tracks, err := a.search.Search(ctx, src.Query)
		if err != nil {
			util.Warn("Subtitle search failed", "media", src.Query.MediaID, "error", err)
			return nil
		}
		return tracks
	default:
		return nil
	}
}

// trackListEntry accepts the field spellings used by common players
type trackListEntry struct {
	File            string `json:"file"`
	URL             string `json:"url"`
	Label           string `json:"label"`
	Language        string `json:"language"`
	Lang            string `json:"lang"`
	Kind            string `json:"kind"`
	HearingImpaired bool   `json:"isHearingImpaired"`
}

func (e trackListEntry) toTrack() (models.SubtitleTrack, bool) {
	kind := strings.ToLower(e.Kind)
	if kind != "" && kind != "captions" && kind != "subtitles" {
		return models.SubtitleTrack{}, false
	}
	u := lo.CoalesceOrEmpty(e.File, e.URL)
	if u == "" {
		return models.SubtitleTrack{}, false
	}
	return models.SubtitleTrack{
		URL:             u,
		Language:        lo.CoalesceOrEmpty(e.Label, e.Language, e.Lang),
		HearingImpaired: e.HearingImpaired,
	}, true
}

func (a *Aggregator) fetchTrackList(ctx context.Context, src models.SubtitleSource) ([]models.SubtitleTrack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", util.DefaultUserAgent)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackListSize))
	if err != nil {
		return nil, err
	}

	entries, err := decodeTrackList(data)
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(entries, func(e trackListEntry, _ int) (models.SubtitleTrack, bool) {
		return e.toTrack()
	}), nil
}

// decodeTrackList accepts a bare array or an object wrapping it in
// "tracks" or "subtitles"
func decodeTrackList(data []byte) ([]trackListEntry, error) {
	var entries []trackListEntry
	if err := json.Unmarshal(data, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Tracks    []trackListEntry `json:"tracks"`
		Subtitles []trackListEntry `json:"subtitles"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decode track list: %w", err)
	}
	return append(wrapped.Tracks, wrapped.Subtitles...), nil
}
