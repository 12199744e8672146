// Package playlist expands a raw media reference into its playable variants.
//
// HLS master playlists and DASH manifests are fetched and parsed; direct
// files become a single variant. A manifest that cannot be parsed degrades
// to an empty variant list, while a manifest that cannot be fetched is an
// error for the server that produced it.
package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// maxManifestSize caps how much of a manifest is read
const maxManifestSize = 4 << 20

// ParseError describes a manifest that was fetched but could not be parsed
type ParseError struct {
	URL  string
	Kind models.MediaKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s manifest %s: %v", e.Kind, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// FetchError describes a manifest that could not be downloaded
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch manifest %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch manifest %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Parser fetches and parses manifests. It is safe for concurrent use.
type Parser struct {
	client *http.Client
}

// Option configures a Parser
type Option func(*Parser)

// WithHTTPClient overrides the pooled shared client
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Parser) {
		if hc != nil {
			p.client = hc
		}
	}
}

// New creates a parser
func New(opts ...Option) *Parser {
	p := &Parser{client: util.GetSharedClient()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse dispatches on the reference kind
func (p *Parser) Parse(ctx context.Context, ref models.RawMediaReference, server string) ([]models.VideoVariant, error) {
	switch ref.Kind {
	case models.HlsPlaylist:
		return p.ParseHLS(ctx, ref.URL, ref.Headers, server)
	case models.DashManifest:
		return p.ParseDASH(ctx, ref.URL, ref.Headers, server)
	default:
		return Direct(ref, server), nil
	}
}

// fetch downloads a manifest with the reference headers
func (p *Parser) fetch(ctx context.Context, target string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", util.DefaultUserAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize))
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	return data, nil
}

// degrade logs a parse failure and yields no variants
func degrade(server string, err *ParseError) []models.VideoVariant {
	util.Warn("Manifest could not be parsed", "server", server, "url", err.URL, "error", err.Err)
	return []models.VideoVariant{}
}

// resolveURL resolves ref against base, keeping ref untouched if either is invalid
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func displayLabel(server, quality string) string {
	if server == "" {
		return quality
	}
	return server + " - " + quality
}
