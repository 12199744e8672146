package playlist

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
)

var qualityTokenPattern = regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{3,4})p(?:[^a-z0-9]|$)`)

// Direct wraps a direct file reference in exactly one variant
func Direct(ref models.RawMediaReference, server string) []models.VideoVariant {
	tag := directQualityTag(ref.URL)
	return []models.VideoVariant{{
		DisplayLabel: displayLabel(server, tag),
		QualityTag:   tag,
		StreamURL:    ref.URL,
		Headers:      models.CloneHeaders(ref.Headers),
		SourceServer: server,
		Kind:         models.DirectFile,
	}}
}

// directQualityTag reads a NNNp token from the URL, else the file extension
func directQualityTag(rawURL string) string {
	if m := qualityTokenPattern.FindStringSubmatch(rawURL); len(m) == 2 {
		return m[1] + "p"
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		return strings.ToLower(ext)
	}
	return "Default"
}
