package playlist

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
)

type mpdDocument struct {
	XMLName xml.Name    `xml:"MPD"`
	BaseURL string      `xml:"BaseURL"`
	Periods []mpdPeriod `xml:"Period"`
}

type mpdPeriod struct {
	BaseURL        string             `xml:"BaseURL"`
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	MimeType        string              `xml:"mimeType,attr"`
	ContentType     string              `xml:"contentType,attr"`
	Lang            string              `xml:"lang,attr"`
	Label           string              `xml:"Label"`
	BaseURL         string              `xml:"BaseURL"`
	Roles           []mpdDescriptor     `xml:"Role"`
	Accessibility   []mpdDescriptor     `xml:"Accessibility"`
	Representations []mpdRepresentation `xml:"Representation"`
}

type mpdDescriptor struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	Value       string `xml:"value,attr"`
}

type mpdRepresentation struct {
	ID        string `xml:"id,attr"`
	MimeType  string `xml:"mimeType,attr"`
	Codecs    string `xml:"codecs,attr"`
	Bandwidth int    `xml:"bandwidth,attr"`
	Width     int    `xml:"width,attr"`
	Height    int    `xml:"height,attr"`
	BaseURL   string `xml:"BaseURL"`
}

// ParseDASH fetches an MPD and returns one variant per video representation
func (p *Parser) ParseDASH(ctx context.Context, manifestURL string, headers map[string]string, server string) ([]models.VideoVariant, error) {
	data, err := p.fetch(ctx, manifestURL, headers)
	if err != nil {
		return nil, err
	}

	variants, perr := parseMPD(data, manifestURL, headers, server)
	if perr != nil {
		return degrade(server, &ParseError{URL: manifestURL, Kind: models.DashManifest, Err: perr}), nil
	}
	return variants, nil
}

func parseMPD(data []byte, manifestURL string, headers map[string]string, server string) ([]models.VideoVariant, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty manifest")
	}

	var doc mpdDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	type pendingVariant struct {
		rep    mpdRepresentation
		stream string
		kind   models.MediaKind
	}

	var pending []pendingVariant
	var tracks []models.SubtitleTrack
	docBase := joinBase(manifestURL, doc.BaseURL)

	for _, period := range doc.Periods {
		periodBase := joinBase(docBase, period.BaseURL)
		for _, set := range period.AdaptationSets {
			setBase := joinBase(periodBase, set.BaseURL)

			if set.isText() {
				tracks = append(tracks, set.subtitleTracks(setBase)...)
				continue
			}
			if !set.isVideo() {
				continue
			}

			for _, rep := range set.Representations {
				stream, kind := manifestURL, models.DashManifest
				if rep.BaseURL != "" {
					stream, kind = resolveURL(setBase, rep.BaseURL), models.DirectFile
				}
				pending = append(pending, pendingVariant{rep: rep, stream: stream, kind: kind})
			}
		}
	}

	variants := make([]models.VideoVariant, 0, len(pending))
	for _, pv := range pending {
		tag := qualityTag(pv.rep.Height, pv.rep.Bandwidth)
		variants = append(variants, models.VideoVariant{
			DisplayLabel: displayLabel(server, tag),
			QualityTag:   tag,
			StreamURL:    pv.stream,
			Headers:      models.CloneHeaders(headers),
			Subtitles:    append([]models.SubtitleTrack(nil), tracks...),
			SourceServer: server,
			Kind:         pv.kind,
			Bandwidth:    pv.rep.Bandwidth,
		})
	}
	return variants, nil
}

func joinBase(base, ref string) string {
	if strings.TrimSpace(ref) == "" {
		return base
	}
	return resolveURL(base, ref)
}

func (a mpdAdaptationSet) isVideo() bool {
	if strings.HasPrefix(a.MimeType, "video/") || a.ContentType == "video" {
		return true
	}
	for _, rep := range a.Representations {
		if strings.HasPrefix(rep.MimeType, "video/") || rep.Height > 0 {
			return true
		}
	}
	return false
}

func (a mpdAdaptationSet) isText() bool {
	if a.ContentType == "text" || isTextMime(a.MimeType) {
		return true
	}
	for _, rep := range a.Representations {
		if isTextMime(rep.MimeType) || rep.Codecs == "wvtt" || rep.Codecs == "stpp" {
			return true
		}
	}
	return false
}

func isTextMime(mime string) bool {
	return strings.HasPrefix(mime, "text/") || mime == "application/ttml+xml"
}

// subtitleTracks returns one track per text representation with a BaseURL,
// or the set's own BaseURL when the representations carry none
func (a mpdAdaptationSet) subtitleTracks(setBase string) []models.SubtitleTrack {
	lang := a.Label
	if lang == "" {
		lang = a.Lang
	}
	hi := hasCaptionRole(a.Roles) || hasCaptionRole(a.Accessibility)

	var tracks []models.SubtitleTrack
	for _, rep := range a.Representations {
		if rep.BaseURL == "" {
			continue
		}
		tracks = append(tracks, models.SubtitleTrack{URL: resolveURL(setBase, rep.BaseURL), Language: lang, HearingImpaired: hi})
	}
	if len(tracks) == 0 && a.BaseURL != "" {
		tracks = append(tracks, models.SubtitleTrack{URL: setBase, Language: lang, HearingImpaired: hi})
	}
	return tracks
}

func hasCaptionRole(descriptors []mpdDescriptor) bool {
	for _, d := range descriptors {
		if d.Value == "caption" {
			return true
		}
	}
	return false
}
