// Package types exposes the data types of the resolution pipeline to
// library users.
package types

import (
	"fmt"
	"strings"

	"github.com/alvarorichard/Gostream/internal/models"
)

type (
	// MediaHandle identifies the item being resolved
	MediaHandle = models.MediaHandle
	// Server is one candidate hoster
	Server = models.ServerDescriptor
	// Preference orders the results
	Preference = models.Preference
	// Variant is one playable option
	Variant = models.VideoVariant
	// Subtitle is one subtitle track of a variant
	Subtitle = models.SubtitleTrack
	// TrackKind is the sub/dub flavour of a server
	TrackKind = models.TrackKind
)

const (
	TrackUnknown = models.TrackUnknown
	TrackSub     = models.TrackSub
	TrackDub     = models.TrackDub
	TrackSoftSub = models.TrackSoftSub
)

// Source describes a configured hoster family
type Source struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Fallback bool   `json:"fallback,omitempty"`
}

// String returns the string representation of the source
func (s Source) String() string {
	if s.Fallback {
		return fmt.Sprintf("%s (%s, fallback)", s.Name, s.Kind)
	}
	return fmt.Sprintf("%s (%s)", s.Name, s.Kind)
}

// ParseServer parses "name=locator" or "name:family=locator" into a Server.
// A trailing "@sub", "@dub" or "@softsub" on the name sets the track kind.
func ParseServer(s string) (Server, error) {
	head, locator, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(head) == "" || strings.TrimSpace(locator) == "" {
		return Server{}, fmt.Errorf("invalid server %q, expected name[:family][@kind]=locator", s)
	}

	var kind models.TrackKind
	if name, k, found := strings.Cut(head, "@"); found {
		head = name
		kind = models.ParseTrackKind(k)
	}
	name, family, _ := strings.Cut(head, ":")

	return Server{
		Name:      strings.TrimSpace(name),
		Family:    strings.TrimSpace(family),
		Locator:   strings.TrimSpace(locator),
		TrackKind: kind,
	}, nil
}
