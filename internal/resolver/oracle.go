package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alvarorichard/Gostream/internal/decrypt"
	"github.com/alvarorichard/Gostream/internal/models"
	"github.com/alvarorichard/Gostream/internal/util"
)

// Decrypter is the part of decrypt.Client the resolvers depend on
type Decrypter interface {
	Decrypt(ctx context.Context, token string, extra map[string]string) (decrypt.Payload, error)
	Encrypt(ctx context.Context, text string, extra map[string]string) (decrypt.Payload, error)
}

// OracleConfig describes an oracle-backed hoster family
type OracleConfig struct {
	// BaseURL, when set, is queried at /ajax/episode/sources/{locator} for
	// the embed link. Otherwise the locator is the embed link itself.
	BaseURL string
	// EncryptLocator sends the locator through the oracle's encrypt call
	// before it is used.
	EncryptLocator bool
	Referer        string
	UserAgent      string
	Headers        map[string]string
}

// Oracle resolves FlixHQ-style servers whose embed must be decrypted by a
// remote oracle
type Oracle struct {
	cfg    OracleConfig
	oracle Decrypter
	client *http.Client
}

// NewOracle creates an oracle-backed resolver
func NewOracle(cfg OracleConfig, oracle Decrypter, opts ...Option) *Oracle {
	o := buildOptions(opts)
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Oracle{cfg: cfg, oracle: oracle, client: o.client}
}

// oraclePayload is the object form of a decrypted embed
type oraclePayload struct {
	File    string `json:"file"`
	Sources []struct {
		File    string `json:"file"`
		Type    string `json:"type"`
		Quality string `json:"quality"`
	} `json:"sources"`
	Tracks []struct {
		File    string `json:"file"`
		Label   string `json:"label"`
		Kind    string `json:"kind"`
		Default bool   `json:"default"`
	} `json:"tracks"`
}

// Resolve implements Resolver
func (o *Oracle) Resolve(ctx context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	locator := strings.TrimSpace(server.Locator)
	if locator == "" {
		return models.RawMediaReference{}, notFound(server.Name, "empty locator")
	}
	if o.oracle == nil {
		return models.RawMediaReference{}, decryptionFailed(server.Name, fmt.Errorf("no oracle configured"))
	}

	if o.cfg.EncryptLocator {
		payload, err := o.oracle.Encrypt(ctx, locator, nil)
		if err != nil {
			return models.RawMediaReference{}, decryptionFailed(server.Name, err)
		}
		locator = payload.String()
	}

	embed := locator
	if o.cfg.BaseURL != "" {
		link, err := o.getEmbedLink(ctx, server.Name, locator)
		if err != nil {
			return models.RawMediaReference{}, err
		}
		embed = link
	}

	payload, err := o.oracle.Decrypt(ctx, embed, nil)
	if err != nil {
		return models.RawMediaReference{}, decryptionFailed(server.Name, err)
	}

	return referenceFromPayload(server.Name, payload, o.streamHeaders())
}

// getEmbedLink gets the embed link for streaming
func (o *Oracle) getEmbedLink(ctx context.Context, server, locator string) (string, error) {
	sourcesURL := fmt.Sprintf("%s/ajax/episode/sources/%s", o.cfg.BaseURL, url.PathEscape(locator))

	body, err := httpGet(ctx, o.client, server, sourcesURL, o.decorateRequest)
	if err != nil {
		return "", err
	}

	var result struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Kind: UpstreamRejected, Server: server, Err: fmt.Errorf("decode sources response: %w", err)}
	}
	if result.Link == "" {
		return "", notFound(server, "no embed link found")
	}
	return result.Link, nil
}

// referenceFromPayload reads the video URL and subtitles from a decrypted
// payload, which is either a bare URL or a sources/tracks object
func referenceFromPayload(server string, payload decrypt.Payload, headers map[string]string) (models.RawMediaReference, error) {
	text := strings.TrimSpace(payload.String())
	if !payload.IsObject() && !strings.HasPrefix(text, "{") {
		if !strings.HasPrefix(text, "http") {
			return models.RawMediaReference{}, decryptionFailed(server, fmt.Errorf("decrypted payload is not a url"))
		}
		return models.RawMediaReference{
			Kind:    ClassifyURL(text),
			URL:     text,
			Headers: headers,
		}, nil
	}

	var result oraclePayload
	if err := payload.Decode(&result); err != nil {
		return models.RawMediaReference{}, decryptionFailed(server, fmt.Errorf("decode payload: %w", err))
	}

	ref := models.RawMediaReference{Headers: headers}
	if result.File != "" {
		ref.URL = result.File
		ref.Kind = ClassifyURL(result.File)
	} else {
		for _, source := range result.Sources {
			if source.File == "" {
				continue
			}
			ref.URL = source.File
			ref.Kind = ClassifyURL(source.File)
			if strings.EqualFold(source.Type, "hls") {
				ref.Kind = models.HlsPlaylist
			}
			break
		}
	}
	if ref.URL == "" {
		return models.RawMediaReference{}, notFound(server, "no video URL found")
	}

	var tracks []models.SubtitleTrack
	for _, track := range result.Tracks {
		if track.File == "" {
			continue
		}
		kind := strings.ToLower(track.Kind)
		if kind == "captions" || kind == "subtitles" {
			tracks = append(tracks, models.SubtitleTrack{
				URL:             track.File,
				Language:        track.Label,
				HearingImpaired: kind == "captions",
			})
		}
	}
	if len(tracks) > 0 {
		ref.Subtitles = []models.SubtitleSource{models.InlineSubtitles(tracks...)}
	}

	util.Debug("Oracle payload decoded", "server", server, "kind", ref.Kind, "subtitles", len(tracks))
	return ref, nil
}

func (o *Oracle) streamHeaders() map[string]string {
	referer := o.cfg.Referer
	if referer == "" && o.cfg.BaseURL != "" {
		referer = o.cfg.BaseURL + "/"
	}
	return streamHeaders(referer, o.cfg.UserAgent, o.cfg.Headers)
}

func (o *Oracle) decorateRequest(req *http.Request) {
	ua := o.cfg.UserAgent
	if ua == "" {
		ua = util.DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", o.cfg.BaseURL+"/")
}
