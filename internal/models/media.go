// Package models contains data structures shared by the resolution pipeline
package models

import (
	"fmt"
	"strings"
)

// MediaHandle identifies the item whose servers are being resolved.
// It is created by the catalog layer and never modified by the pipeline.
type MediaHandle struct {
	ID      string `json:"id"`
	Title   string `json:"title,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`
}

// IsEpisode returns true if the handle points at a single episode of a series
func (h MediaHandle) IsEpisode() bool {
	return h.Season > 0 || h.Episode > 0
}

// GetDisplayName returns a formatted display name with season/episode markers
func (h MediaHandle) GetDisplayName() string {
	name := h.Title
	if name == "" {
		name = h.ID
	}
	if h.IsEpisode() {
		name += fmt.Sprintf(" S%02dE%02d", h.Season, h.Episode)
	}
	return name
}

// TrackKind describes the audio/subtitle flavour a server declares
type TrackKind int

const (
	TrackUnknown TrackKind = iota
	TrackSub
	TrackDub
	TrackSoftSub
)

// String returns the lowercase name used in configuration and preferences
func (k TrackKind) String() string {
	switch k {
	case TrackSub:
		return "sub"
	case TrackDub:
		return "dub"
	case TrackSoftSub:
		return "softsub"
	default:
		return "unknown"
	}
}

// ParseTrackKind parses a track kind name. Unrecognized input yields TrackUnknown.
func ParseTrackKind(s string) TrackKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sub", "subbed", "hardsub":
		return TrackSub
	case "dub", "dubbed":
		return TrackDub
	case "softsub", "soft-sub", "soft_sub":
		return TrackSoftSub
	default:
		return TrackUnknown
	}
}

// MarshalText implements encoding.TextMarshaler
func (k TrackKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *TrackKind) UnmarshalText(text []byte) error {
	*k = ParseTrackKind(string(text))
	return nil
}

// ServerDescriptor is one candidate hoster for a media item
type ServerDescriptor struct {
	Name      string    `json:"name"`
	Locator   string    `json:"locator"`
	TrackKind TrackKind `json:"trackKind"`
	// Family selects the resolver implementation. Empty means Name is used.
	Family string `json:"family,omitempty"`
}

// FamilyKey returns the normalized key used to look up the hoster family
func (s ServerDescriptor) FamilyKey() string {
	if f := strings.TrimSpace(s.Family); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(strings.TrimSpace(s.Name))
}

// Preference is the ordered ranking criteria supplied by the caller
type Preference struct {
	Server   string `json:"server,omitempty"`
	Language string `json:"language,omitempty"`
	Quality  string `json:"quality,omitempty"`
}

