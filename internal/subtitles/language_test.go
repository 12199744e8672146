package subtitles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"en", "English"},
		{"EN", "English"},
		{"eng", "English"},
		{"fre", "French"},
		{"fra", "French"},
		{"english", "English"},
		{"  ja  ", "Japanese"},
		{"pt-BR", "Brazilian Portuguese"},
		{"xx", "xx"},
		{"English [SDH]", "English [SDH]"},
		{"Castellano", "Castellano"},
		{"", UnknownLanguage},
		{"und", UnknownLanguage},
		{"sdh", "sdh"},
		{"cc", "cc"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeLanguage(tt.in))
		})
	}
}

func TestIsHearingImpairedLabel(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHearingImpairedLabel("English SDH"))
	assert.True(t, IsHearingImpairedLabel("English [CC]"))
	assert.True(t, IsHearingImpairedLabel("cc"))
	assert.False(t, IsHearingImpairedLabel("English"))
	assert.False(t, IsHearingImpairedLabel("Accent"))
}

func TestSameLanguage(t *testing.T) {
	t.Parallel()

	assert.True(t, SameLanguage("en", "English"))
	assert.True(t, SameLanguage("eng", "english"))
	assert.True(t, SameLanguage("Castellano", "castellano"))
	assert.False(t, SameLanguage("en", "French"))
	assert.Equal(t, "fr", ISO2("French"))
	assert.Empty(t, ISO2("Klingon"))
}
