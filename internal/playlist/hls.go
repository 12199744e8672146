package playlist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
)

type hlsStream struct {
	uri       string
	bandwidth int
	height    int
}

// ParseHLS fetches a master playlist and returns one variant per
// #EXT-X-STREAM-INF entry, in file order
func (p *Parser) ParseHLS(ctx context.Context, playlistURL string, headers map[string]string, server string) ([]models.VideoVariant, error) {
	data, err := p.fetch(ctx, playlistURL, headers)
	if err != nil {
		return nil, err
	}

	streams, tracks, isMaster, perr := parseMasterPlaylist(data, playlistURL)
	if perr != nil {
		return degrade(server, &ParseError{URL: playlistURL, Kind: models.HlsPlaylist, Err: perr}), nil
	}

	if !isMaster {
		// A media playlist plays as-is
		return []models.VideoVariant{{
			DisplayLabel: displayLabel(server, "Default"),
			QualityTag:   "Default",
			StreamURL:    playlistURL,
			Headers:      models.CloneHeaders(headers),
			Subtitles:    tracks,
			SourceServer: server,
			Kind:         models.HlsPlaylist,
		}}, nil
	}

	variants := make([]models.VideoVariant, 0, len(streams))
	for _, s := range streams {
		tag := qualityTag(s.height, s.bandwidth)
		variants = append(variants, models.VideoVariant{
			DisplayLabel: displayLabel(server, tag),
			QualityTag:   tag,
			StreamURL:    s.uri,
			Headers:      models.CloneHeaders(headers),
			Subtitles:    append([]models.SubtitleTrack(nil), tracks...),
			SourceServer: server,
			Kind:         models.HlsPlaylist,
			Bandwidth:    s.bandwidth,
		})
	}
	return variants, nil
}

// parseMasterPlaylist scans playlist lines. isMaster is false for media
// playlists, which carry no #EXT-X-STREAM-INF.
func parseMasterPlaylist(data []byte, playlistURL string) (streams []hlsStream, tracks []models.SubtitleTrack, isMaster bool, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxManifestSize)

	sawHeader := false
	var pending *hlsStream
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}

		if !sawHeader {
			if line != "#EXTM3U" {
				return nil, nil, false, errors.New("missing #EXTM3U header")
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF:"):
			isMaster = true
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))
			s := hlsStream{}
			s.bandwidth, _ = strconv.Atoi(attrs["BANDWIDTH"])
			s.height = resolutionHeight(attrs["RESOLUTION"])
			pending = &s
		case strings.HasPrefix(line, "#EXT-X-MEDIA:"):
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-MEDIA:"))
			if attrs["TYPE"] != "SUBTITLES" || attrs["URI"] == "" {
				continue
			}
			lang := attrs["NAME"]
			if lang == "" {
				lang = attrs["LANGUAGE"]
			}
			tracks = append(tracks, models.SubtitleTrack{
				URL:             resolveURL(playlistURL, attrs["URI"]),
				Language:        lang,
				HearingImpaired: strings.Contains(attrs["CHARACTERISTICS"], "public.accessibility.describes-music-and-sound"),
			})
		case strings.HasPrefix(line, "#"):
			// other tags and comments
		default:
			if pending != nil {
				pending.uri = resolveURL(playlistURL, line)
				streams = append(streams, *pending)
				pending = nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("scan playlist: %w", err)
	}
	if !sawHeader {
		return nil, nil, false, errors.New("empty playlist")
	}
	return streams, tracks, isMaster, nil
}

// qualityTag prefers the vertical resolution, then the bandwidth
func qualityTag(height, bandwidth int) string {
	switch {
	case height > 0:
		return fmt.Sprintf("%dp", height)
	case bandwidth > 0:
		return fmt.Sprintf("%dkbps", bandwidth/1000)
	default:
		return "Default"
	}
}

// resolutionHeight reads the height of a WIDTHxHEIGHT value
func resolutionHeight(res string) int {
	_, h, ok := strings.Cut(strings.ToLower(res), "x")
	if !ok {
		return 0
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil {
		return 0
	}
	return height
}

// parseAttributes parses an HLS attribute list, honouring quoted commas
func parseAttributes(list string) map[string]string {
	attrs := make(map[string]string)
	for len(list) > 0 {
		key, rest, ok := strings.Cut(list, "=")
		if !ok {
			break
		}
		key = strings.TrimSpace(key)

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := strings.Index(rest[1:], `"`)
			if end < 0 {
				value, list = rest[1:], ""
			} else {
				value = rest[1 : end+1]
				list = strings.TrimPrefix(rest[end+2:], ",")
			}
		} else {
			value, list, _ = strings.Cut(rest, ",")
		}
		attrs[strings.ToUpper(key)] = strings.TrimSpace(value)
	}
	return attrs
}
