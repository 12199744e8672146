// Package decrypt talks to remote token-decryption oracles.
//
// An oracle is an opaque HTTP service: it receives an obfuscated token as
// JSON and answers with {"result": ...}. Nothing in this package knows how
// the tokens are built.
package decrypt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/alvarorichard/Gostream/internal/util"
)

// maxResponseSize caps how much of an oracle response is read
const maxResponseSize = 4 << 20

// Endpoint is the configuration of one oracle
type Endpoint struct {
	DecryptURL string
	// EncryptURL is optional; Encrypt fails with InvalidInput without it
	EncryptURL string
	UserAgent  string
	Headers    map[string]string
}

// Client calls a single oracle endpoint. It holds no mutable state and is
// safe for concurrent use.
type Client struct {
	endpoint Endpoint
	client   *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the pooled fast client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// New creates a client for the given endpoint
func New(endpoint Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		client:   util.GetFastClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Payload is the "result" member of an oracle response, kept as raw JSON
type Payload struct {
	raw json.RawMessage
}

// NewPayload wraps raw JSON. It is mostly useful in tests.
func NewPayload(raw []byte) Payload {
	return Payload{raw: append(json.RawMessage(nil), raw...)}
}

// IsObject reports whether the result is a JSON object
func (p Payload) IsObject() bool {
	trimmed := bytes.TrimSpace(p.raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// String returns the result as text. JSON strings are unquoted, anything
// else is returned as its raw JSON.
func (p Payload) String() string {
	var s string
	if err := json.Unmarshal(p.raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(p.raw))
}

// Decode unmarshals the result into v. A string result that itself holds
// JSON is decoded too, since several oracles double-encode their answer.
func (p Payload) Decode(v any) error {
	if !p.IsObject() {
		s := strings.TrimSpace(p.String())
		if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
			return json.Unmarshal([]byte(s), v)
		}
	}
	return json.Unmarshal(p.raw, v)
}

// Decrypt sends token to the oracle and returns its result.
// extra is merged into the request body; extra["agent"] overrides the
// configured user agent.
func (c *Client) Decrypt(ctx context.Context, token string, extra map[string]string) (Payload, error) {
	return c.call(ctx, c.endpoint.DecryptURL, token, extra)
}

// Encrypt is the inverse call used by hosters that expect an encrypted
// locator before they reveal the embed.
func (c *Client) Encrypt(ctx context.Context, text string, extra map[string]string) (Payload, error) {
	if c.endpoint.EncryptURL == "" {
		return Payload{}, &Error{Kind: InvalidInput, Err: errors.New("no encrypt endpoint configured")}
	}
	return c.call(ctx, c.endpoint.EncryptURL, text, extra)
}

func (c *Client) call(ctx context.Context, endpoint, text string, extra map[string]string) (Payload, error) {
	if strings.TrimSpace(text) == "" {
		return Payload{}, &Error{Kind: InvalidInput, Endpoint: endpoint, Err: errors.New("empty token")}
	}
	if endpoint == "" {
		return Payload{}, &Error{Kind: InvalidInput, Err: errors.New("no oracle endpoint configured")}
	}

	body, err := json.Marshal(c.requestBody(text, extra))
	if err != nil {
		return Payload{}, &Error{Kind: InvalidInput, Endpoint: endpoint, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Payload{}, &Error{Kind: InvalidInput, Endpoint: endpoint, Err: err}
	}
	c.decorateRequest(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Payload{}, &Error{Kind: Network, Endpoint: endpoint, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
		return Payload{}, &Error{Kind: BadStatus, Endpoint: endpoint, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Payload{}, &Error{Kind: Network, Endpoint: endpoint, Err: err}
	}

	var result struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return Payload{}, &Error{Kind: ParseFailure, Endpoint: endpoint, Err: err}
	}
	raw := bytes.TrimSpace(result.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Payload{}, &Error{Kind: ParseFailure, Endpoint: endpoint, Err: errors.New("response has no result")}
	}

	util.Debug("oracle call succeeded", "endpoint", endpoint, "bytes", len(data))
	return Payload{raw: raw}, nil
}

func (c *Client) requestBody(text string, extra map[string]string) map[string]string {
	body := make(map[string]string, len(extra)+2)
	for k, v := range extra {
		body[k] = v
	}
	body["text"] = text
	if body["agent"] == "" {
		delete(body, "agent")
		if c.endpoint.UserAgent != "" {
			body["agent"] = c.endpoint.UserAgent
		}
	}
	return body
}

func (c *Client) decorateRequest(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	ua := c.endpoint.UserAgent
	if ua == "" {
		ua = util.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	for k, v := range c.endpoint.Headers {
		req.Header.Set(k, v)
	}
}
