package subtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// SearchClient queries an external subtitle search API:
//
//	GET <endpoint>?id=<media id>[&season=<n>&episode=<n>]
//	-> [{"url": ..., "language": ..., "isHearingImpaired": ...}]
//
// Successful responses are cached per query.
type SearchClient struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
	cache    *util.ResponseCache
}

// SearchOption configures a SearchClient
type SearchOption func(*SearchClient)

// WithSearchHTTPClient overrides the pooled fast client
func WithSearchHTTPClient(hc *http.Client) SearchOption {
	return func(s *SearchClient) {
		if hc != nil {
			s.client = hc
		}
	}
}

// WithSearchHeaders adds headers (API keys and the like) to every query
func WithSearchHeaders(h map[string]string) SearchOption {
	return func(s *SearchClient) {
		s.headers = models.CloneHeaders(h)
	}
}

// WithCache sets the cache lifetime and size. A zero maxAge disables caching.
func WithCache(maxAge time.Duration, maxSize int) SearchOption {
	return func(s *SearchClient) {
		if s.cache != nil {
			s.cache.Close()
			s.cache = nil
		}
		if maxAge > 0 && maxSize > 0 {
			s.cache = util.NewResponseCache(maxAge, maxSize)
		}
	}
}

// NewSearchClient creates a search client for endpoint
func NewSearchClient(endpoint string, opts ...SearchOption) *SearchClient {
	s := &SearchClient{
		endpoint: endpoint,
		client:   util.GetFastClient(),
		cache:    util.NewResponseCache(10*time.Minute, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the cache
func (s *SearchClient) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// QueryURL builds the request URL for q
func (s *SearchClient) QueryURL(q models.SubtitleQuery) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid subtitle search endpoint: %w", err)
	}
	values := u.Query()
	values.Set("id", q.MediaID)
	if q.Season > 0 || q.Episode > 0 {
		values.Set("season", strconv.Itoa(q.Season))
		values.Set("episode", strconv.Itoa(q.Episode))
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

// Search returns the tracks the API knows for q
func (s *SearchClient) Search(ctx context.Context, q models.SubtitleQuery) ([]models.SubtitleTrack, error) {
	if strings.TrimSpace(q.MediaID) == "" {
		return nil, fmt.Errorf("subtitle search needs a media id")
	}
	target, err := s.QueryURL(q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(target); ok {
			util.PerfCount("subtitles.search.cache_hit")
			return decodeSearchResults(data)
		}
	}

	data, err := s.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	tracks, err := decodeSearchResults(data)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(target, data)
	}
	return tracks, nil
}

func (s *SearchClient) fetch(ctx context.Context, target string) ([]byte, error) {
	timer := util.StartTimer("subtitles.search")
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", util.DefaultUserAgent)
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subtitle search request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("subtitle search: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxTrackListSize))
}

func decodeSearchResults(data []byte) ([]models.SubtitleTrack, error) {
	var results []models.SubtitleTrack
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode subtitle search response: %w", err)
	}
	return results, nil
}
