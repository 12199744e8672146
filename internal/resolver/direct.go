package resolver

import (
	"context"
	"net/url"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
)

// Direct handles servers whose locator already is the media URL
type Direct struct {
	Referer   string
	UserAgent string
	Headers   map[string]string
}

// Resolve implements Resolver
func (d Direct) Resolve(_ context.Context, server models.ServerDescriptor) (models.RawMediaReference, error) {
	locator := strings.TrimSpace(server.Locator)
	if locator == "" {
		return models.RawMediaReference{}, notFound(server.Name, "empty locator")
	}
	u, err := url.Parse(locator)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return models.RawMediaReference{}, notFound(server.Name, "locator %q is not an http(s) url", locator)
	}

	return models.RawMediaReference{
		Kind:    ClassifyURL(locator),
		URL:     locator,
		Headers: streamHeaders(d.Referer, d.UserAgent, d.Headers),
	}, nil
}
