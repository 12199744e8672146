// Package resolver turns a server descriptor into a raw media reference.
//
// Every hoster family (direct links, oracle-backed embeds, scraped embed
// pages, obfuscated link documents) has its own Resolver. A Registry picks
// the right one for each descriptor.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// maxBodySize caps how much of a hoster response is read
const maxBodySize = 8 << 20

// Resolver extracts the media reference of one server
type Resolver interface {
	Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error)
}

// Func adapts a plain function to the Resolver interface
type Func func(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error)

// Resolve calls f
func (f Func) Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	return f(ctx, server)
}

// ErrorKind classifies resolver failures
type ErrorKind int

const (
	// NotFound means the server has no media for this item
	NotFound ErrorKind = iota
	// UpstreamRejected means the hoster refused or challenged the request
	UpstreamRejected
	// DecryptionFailed means the oracle round trip failed
	DecryptionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case UpstreamRejected:
		return "upstream rejected"
	case DecryptionFailed:
		return "decryption failed"
	default:
		return "unknown"
	}
}

// Error is the error type returned by all resolvers
type Error struct {
	Kind   ErrorKind
	Server string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("resolve %q: %s", e.Server, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a resolver error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

func notFound(server string, format string, args ...any) error {
	return &Error{Kind: NotFound, Server: server, Err: fmt.Errorf(format, args...)}
}

func decryptionFailed(server string, err error) error {
	return &Error{Kind: DecryptionFailed, Server: server, Err: err}
}

// statusError maps a non-2xx hoster response to a resolver error
func statusError(server string, status int, target string) error {
	err := fmt.Errorf("HTTP %d from %s", status, target)
	if status == http.StatusNotFound || status == http.StatusGone {
		return &Error{Kind: NotFound, Server: server, Err: err}
	}
	return &Error{Kind: UpstreamRejected, Server: server, Err: err}
}

// ClassifyURL infers the media kind from the URL path suffix
func ClassifyURL(rawURL string) models.MediaKind {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	} else if idx := strings.IndexAny(p, "?#"); idx >= 0 {
		p = p[:idx]
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".m3u8":
		return models.HlsPlaylist
	case ".mpd":
		return models.DashManifest
	default:
		return models.DirectFile
	}
}

// resolveReference resolves ref against base. Unparseable input is returned as-is.
func resolveReference(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "//") {
		if b, err := url.Parse(base); err == nil && b.Scheme != "" {
			return b.Scheme + ":" + ref
		}
		return "https:" + ref
	}
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

// streamHeaders builds the headers a player needs to fetch the stream
func streamHeaders(referer, userAgent string, extra map[string]string) map[string]string {
	h := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		h[k] = v
	}
	if referer != "" {
		h["Referer"] = referer
	}
	if userAgent != "" {
		h["User-Agent"] = userAgent
	}
	return models.CloneHeaders(h)
}

// Option configures the HTTP side of a resolver
type Option func(*options)

type options struct {
	client *http.Client
}

// WithHTTPClient overrides the pooled shared client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.client = hc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{client: util.GetSharedClient()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// httpGet fetches target and maps failures onto resolver errors
func httpGet(ctx context.Context, client *http.Client, server, target string, decorate func(*http.Request)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, notFound(server, "invalid url %q: %w", target, err)
	}
	if decorate != nil {
		decorate(req)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{Kind: UpstreamRejected, Server: server, Err: fmt.Errorf("request %s: %w", target, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(server, resp.StatusCode, target)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &Error{Kind: UpstreamRejected, Server: server, Err: fmt.Errorf("read %s: %w", target, err)}
	}
	return body, nil
}
