package resolver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// obfuscationKey is XORed with every decoded byte of a "--" locator
const obfuscationKey = 56

// ObfuscatedConfig describes an AllAnime-style hoster family
type ObfuscatedConfig struct {
	// BaseURL is prepended to decoded locators that are bare paths
	BaseURL   string
	Referer   string
	UserAgent string
	Headers   map[string]string
}

// Obfuscated resolves servers whose locator is hex-obfuscated and usually
// points at a JSON links document
type Obfuscated struct {
	cfg    ObfuscatedConfig
	client *http.Client
}

// NewObfuscated creates an obfuscated-locator resolver
func NewObfuscated(cfg ObfuscatedConfig, opts ...Option) *Obfuscated {
	o := buildOptions(opts)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Obfuscated{cfg: cfg, client: o.client}
}

type linksDocument struct {
	Links []linkEntry `json:"links"`
}

type linkEntry struct {
	Link          string `json:"link"`
	ResolutionStr string `json:"resolutionStr"`
	HLS           bool   `json:"hls"`
	Subtitles     []struct {
		Lang  string `json:"lang"`
		Label string `json:"label"`
		Src   string `json:"src"`
	} `json:"subtitles"`
}

// DecodeLocator decodes a "--" prefixed locator. Other locators are returned unchanged.
func DecodeLocator(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "--") {
		return encoded, nil
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(encoded, "--"))
	if err != nil {
		return "", fmt.Errorf("decode locator: %w", err)
	}
	for i := range raw {
		raw[i] ^= obfuscationKey
	}
	return string(raw), nil
}

// Resolve implements Resolver
func (o *Obfuscated) Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	locator := strings.TrimSpace(server.Locator)
	if locator == "" {
		return models.RawMediaReference{}, notFound(server.Name, "empty locator")
	}

	decoded, err := DecodeLocator(locator)
	if err != nil {
		return models.RawMediaReference{}, notFound(server.Name, "%w", err)
	}
	sourceURL := o.sourceURL(decoded)

	headers := streamHeaders(o.referer(), o.cfg.UserAgent, o.cfg.Headers)
	if !isLinksDocument(sourceURL) {
		return models.RawMediaReference{Kind: ClassifyURL(sourceURL), URL: sourceURL, Headers: headers}, nil
	}

	body, err := httpGet(ctx, o.client, server.Name, sourceURL, o.decorateRequest)
	if err != nil {
		return models.RawMediaReference{}, err
	}

	var doc linksDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.RawMediaReference{}, &Error{Kind: UpstreamRejected, Server: server.Name, Err: fmt.Errorf("decode links document: %w", err)}
	}

	entry, ok := selectLink(doc.Links)
	if !ok {
		return models.RawMediaReference{}, notFound(server.Name, "links document has no playable link")
	}

	link := strings.ReplaceAll(entry.Link, `\`, "")
	ref := models.RawMediaReference{Kind: ClassifyURL(link), URL: link, Headers: headers}
	if entry.HLS {
		ref.Kind = models.HlsPlaylist
	}

	var tracks []models.SubtitleTrack
	for _, sub := range entry.Subtitles {
		if sub.Src == "" {
			continue
		}
		lang := sub.Label
		if lang == "" {
			lang = sub.Lang
		}
		tracks = append(tracks, models.SubtitleTrack{URL: sub.Src, Language: lang})
	}
	if len(tracks) > 0 {
		ref.Subtitles = []models.SubtitleSource{models.InlineSubtitles(tracks...)}
	}

	util.Debug("Links document resolved", "server", server.Name, "link", link, "hls", entry.HLS)
	return ref, nil
}

// sourceURL applies the clock endpoint rewrite and anchors bare paths on BaseURL
func (o *Obfuscated) sourceURL(decoded string) string {
	result := decoded
	if strings.Contains(result, "/clock") && !strings.Contains(result, "/clock.json") {
		result = strings.Replace(result, "/clock", "/clock.json", 1)
	}
	if strings.HasPrefix(result, "/") && o.cfg.BaseURL != "" {
		result = o.cfg.BaseURL + result
	}
	return result
}

func isLinksDocument(sourceURL string) bool {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		p = u.Path
	}
	return strings.EqualFold(path.Ext(p), ".json")
}

// selectLink prefers the HLS entry, otherwise the highest resolution
func selectLink(links []linkEntry) (linkEntry, bool) {
	best := -1
	bestRes := -1
	for i, l := range links {
		if l.Link == "" {
			continue
		}
		if l.HLS {
			return l, true
		}
		if res := resolutionValue(l.ResolutionStr); res > bestRes {
			best, bestRes = i, res
		}
	}
	if best < 0 {
		return linkEntry{}, false
	}
	return links[best], true
}

// resolutionValue extracts the numeric part of tags like "1080p"
func resolutionValue(s string) int {
	digits := strings.TrimFunc(strings.ToLower(strings.TrimSpace(s)), func(r rune) bool {
		return r < '0' || r > '9'
	})
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

func (o *Obfuscated) referer() string {
	if o.cfg.Referer != "" {
		return o.cfg.Referer
	}
	return o.cfg.BaseURL
}

func (o *Obfuscated) decorateRequest(req *http.Request) {
	ua := o.cfg.UserAgent
	if ua == "" {
		ua = util.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	if ref := o.referer(); ref != "" {
		req.Header.Set("Referer", ref)
	}
}
