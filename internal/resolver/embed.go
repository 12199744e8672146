package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/avast/retry-go/v4"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// fileLiteralPattern matches player setups such as `file: "https://..."`
var fileLiteralPattern = regexp.MustCompile(`file\s*:\s*["']([^"']+)["']`)

// EmbedConfig describes a hoster family that serves an HTML embed page
type EmbedConfig struct {
	// Referer is sent when fetching the page and attached to the stream.
	// Empty means the embed page URL itself is used for the stream.
	Referer    string
	UserAgent  string
	Headers    map[string]string
	Attempts   uint
	RetryDelay time.Duration
}

// EmbedPage scrapes embed pages for the media element or player config
type EmbedPage struct {
	cfg    EmbedConfig
	oracle Decrypter
	client *http.Client
}

// NewEmbedPage creates an embed page resolver. oracle may be nil when the
// family never serves encrypted tokens.
func NewEmbedPage(cfg EmbedConfig, oracle Decrypter, opts ...Option) *EmbedPage {
	o := buildOptions(opts)
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &EmbedPage{cfg: cfg, oracle: oracle, client: o.client}
}

// transientError marks failures worth another attempt
type transientError struct {
	err error
}

func (t transientError) Error() string { return t.err.Error() }
func (t transientError) Unwrap() error { return t.err }

// Resolve implements Resolver
func (e *EmbedPage) Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	pageURL := strings.TrimSpace(server.Locator)
	if pageURL == "" {
		return models.RawMediaReference{}, notFound(server.Name, "empty locator")
	}

	doc, err := e.fetchPage(ctx, server.Name, pageURL)
	if err != nil {
		return models.RawMediaReference{}, err
	}

	if isChallengePage(doc) {
		return models.RawMediaReference{}, &Error{Kind: UpstreamRejected, Server: server.Name, Err: errors.New("challenge page returned")}
	}

	referer := e.cfg.Referer
	if referer == "" {
		referer = pageURL
	}
	headers := streamHeaders(referer, e.cfg.UserAgent, e.cfg.Headers)

	var ref models.RawMediaReference
	if src := extractMediaURL(doc); src != "" {
		src = resolveReference(pageURL, src)
		ref = models.RawMediaReference{Kind: ClassifyURL(src), URL: src, Headers: headers}
	} else if token, ok := doc.Find("[data-token]").First().Attr("data-token"); ok && strings.TrimSpace(token) != "" {
		if e.oracle == nil {
			return models.RawMediaReference{}, decryptionFailed(server.Name, errors.New("page carries a token but no oracle is configured"))
		}
		payload, err := e.oracle.Decrypt(ctx, token, map[string]string{"referer": pageURL})
		if err != nil {
			return models.RawMediaReference{}, decryptionFailed(server.Name, err)
		}
		ref, err = referenceFromPayload(server.Name, payload, headers)
		if err != nil {
			return models.RawMediaReference{}, err
		}
	} else {
		return models.RawMediaReference{}, notFound(server.Name, "no media element in embed page")
	}

	if tracks := extractTracks(doc, pageURL); len(tracks) > 0 {
		ref.Subtitles = append(ref.Subtitles, models.InlineSubtitles(tracks...))
	}
	return ref, nil
}

// fetchPage downloads and parses the embed page, retrying transport errors and 5xx
func (e *EmbedPage) fetchPage(ctx context.Context, server, pageURL string) (*goquery.Document, error) {
	var body []byte
	err := retry.Do(
		func() error {
			b, err := e.get(ctx, server, pageURL)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(e.cfg.Attempts),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var te transientError
			return errors.As(err, &te)
		}),
		retry.OnRetry(func(n uint, err error) {
			util.Debug("Retrying embed page", "server", server, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		var re *Error
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &Error{Kind: UpstreamRejected, Server: server, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: UpstreamRejected, Server: server, Err: fmt.Errorf("parse embed page: %w", err)}
	}
	return doc, nil
}

func (e *EmbedPage) get(ctx context.Context, server, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, notFound(server, "invalid url %q: %w", pageURL, err)
	}
	e.decorateRequest(req)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, transientError{&Error{Kind: UpstreamRejected, Server: server, Err: err}}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		return nil, transientError{statusError(server, resp.StatusCode, pageURL)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(server, resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, transientError{&Error{Kind: UpstreamRejected, Server: server, Err: err}}
	}
	return body, nil
}

func (e *EmbedPage) decorateRequest(req *http.Request) {
	ua := e.cfg.UserAgent
	if ua == "" {
		ua = util.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if e.cfg.Referer != "" {
		req.Header.Set("Referer", e.cfg.Referer)
	}
}

// extractMediaURL looks for the stream in the usual places, most specific first
func extractMediaURL(doc *goquery.Document) string {
	for _, sel := range []struct{ query, attr string }{
		{"video[src]", "src"},
		{"video source[src]", "src"},
		{"source[src]", "src"},
		{"[data-video-src]", "data-video-src"},
	} {
		if v, ok := doc.Find(sel.query).First().Attr(sel.attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	var found string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := fileLiteralPattern.FindStringSubmatch(s.Text()); len(m) == 2 {
			found = strings.ReplaceAll(m[1], `\/`, "/")
			return false
		}
		return true
	})
	return found
}

// extractTracks turns <track> elements into subtitle tracks
func extractTracks(doc *goquery.Document, pageURL string) []models.SubtitleTrack {
	var tracks []models.SubtitleTrack
	doc.Find("track[src]").Each(func(_ int, s *goquery.Selection) {
		kind := strings.ToLower(s.AttrOr("kind", "subtitles"))
		if kind != "subtitles" && kind != "captions" {
			return
		}
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" {
			return
		}
		lang := strings.TrimSpace(s.AttrOr("label", ""))
		if lang == "" {
			lang = strings.TrimSpace(s.AttrOr("srclang", ""))
		}
		tracks = append(tracks, models.SubtitleTrack{
			URL:             resolveReference(pageURL, src),
			Language:        lang,
			HearingImpaired: kind == "captions",
		})
	})
	return tracks
}

func isChallengePage(doc *goquery.Document) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if strings.Contains(title, "just a moment") || strings.Contains(title, "attention required") {
		return true
	}

	if doc.Find("#cf-wrapper").Length() > 0 || doc.Find("#challenge-form").Length() > 0 {
		return true
	}

	body := strings.ToLower(doc.Find("body").Text())
	return strings.Contains(body, "cf-error") || strings.Contains(body, "checking your browser")
}
