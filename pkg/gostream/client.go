// Package gostream provides a public API for resolving playable video
// variants from a list of candidate servers.
// This package can be used as a library in other Go projects.
package gostream

import (
	"context"
	"errors"
	"net/http"

	"github.com/alvarorichard/Gostream/internal/config"
	"github.com/alvarorichard/Gostream/internal/pipeline"
	"github.com/alvarorichard/Gostream/internal/playlist"
	"github.com/alvarorichard/Gostream/internal/ranking"
	"github.com/alvarorichard/Gostream/internal/resolver"
	"github.com/alvarorichard/Gostream/internal/subtitles"
	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

// ErrNoPlayableSources is returned when no server produced a variant
var ErrNoPlayableSources = errors.New("no playable sources found")

// Config is the client configuration
type Config = config.Config

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return config.Default()
}

// Failure describes one server that produced nothing
type Failure = pipeline.Failure

// Report is the detailed outcome of a resolution run
type Report struct {
	RunID    string          `json:"runId"`
	Variants []types.Variant `json:"variants"`
	Failures []Failure       `json:"-"`
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
}

// WithHTTPClient makes every component use hc
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// Client is the main client for resolving streams
type Client struct {
	cfg          Config
	registry     *resolver.Registry
	orchestrator *pipeline.Orchestrator
	search       *subtitles.SearchClient
}

// NewClient creates a client with a resolver registered for every
// configured hoster family
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	registry, err := buildRegistry(cfg, o.httpClient)
	if err != nil {
		return nil, err
	}

	var parserOpts []playlist.Option
	var aggOpts []subtitles.Option
	if o.httpClient != nil {
		parserOpts = append(parserOpts, playlist.WithHTTPClient(o.httpClient))
		aggOpts = append(aggOpts, subtitles.WithHTTPClient(o.httpClient))
	}

	c := &Client{cfg: cfg, registry: registry}
	if cfg.Subtitles.SearchURL != "" {
		searchOpts := []subtitles.SearchOption{
			subtitles.WithCache(cfg.Subtitles.CacheTTL, cfg.Subtitles.CacheSize),
		}
		if len(cfg.Subtitles.SearchHeaders) > 0 {
			searchOpts = append(searchOpts, subtitles.WithSearchHeaders(cfg.Subtitles.SearchHeaders))
		}
		if o.httpClient != nil {
			searchOpts = append(searchOpts, subtitles.WithSearchHTTPClient(o.httpClient))
		}
		c.search = subtitles.NewSearchClient(cfg.Subtitles.SearchURL, searchOpts...)
		aggOpts = append(aggOpts, subtitles.WithSearch(c.search))
	}

	c.orchestrator = pipeline.New(
		registry,
		playlist.New(parserOpts...),
		subtitles.NewAggregator(aggOpts...),
		pipeline.Options{
			MaxConcurrency: cfg.Pipeline.MaxConcurrency,
			Deadline:       cfg.Pipeline.Deadline,
			SubtitleSearch: c.search != nil,
		},
	)
	return c, nil
}

// Resolve runs every server, ranks the variants by pref and returns them.
// Returns ErrNoPlayableSources when nothing survived.
func (c *Client) Resolve(ctx context.Context, handle types.MediaHandle, servers []types.Server, pref types.Preference) ([]types.Variant, error) {
	report, err := c.ResolveDetailed(ctx, handle, servers, pref)
	if err != nil {
		return nil, err
	}
	return report.Variants, nil
}

// ResolveDetailed is Resolve plus the run id and the per-server failures.
// The report is returned alongside ErrNoPlayableSources so callers can
// show why every server failed.
func (c *Client) ResolveDetailed(ctx context.Context, handle types.MediaHandle, servers []types.Server, pref types.Preference) (Report, error) {
	result := c.orchestrator.Run(ctx, handle, servers)

	variants := ranking.Rank(result.Variants, pref)
	if c.cfg.Pipeline.Dedupe {
		variants = ranking.Dedupe(variants)
	}

	report := Report{
		RunID:    result.RunID,
		Variants: variants,
		Failures: result.Failures,
	}
	if len(variants) == 0 {
		return report, ErrNoPlayableSources
	}
	return report, nil
}

// Sources returns the configured hoster families in sorted order
func (c *Client) Sources() []types.Source {
	names := c.cfg.HosterNames()
	sources := make([]types.Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, types.Source{
			Name:     name,
			Kind:     c.cfg.Hosters[name].Kind,
			Fallback: name == c.cfg.Fallback,
		})
	}
	return sources
}

// Close releases the subtitle search cache
func (c *Client) Close() {
	if c.search != nil {
		c.search.Close()
	}
}
