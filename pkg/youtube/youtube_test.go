package youtube

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVideoID(t *testing.T) {
	cases := map[string]string{
		"dQw4w9WgXcQ":                                     "dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1": "dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ":                    "dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ":       "dQw4w9WgXcQ",
		"https://m.youtube.com/shorts/dQw4w9WgXcQ":        "dQw4w9WgXcQ",
		"https://www.youtube-nocookie.com/embed/dQw4w9WgXcQ": "dQw4w9WgXcQ",
	}
	for in, want := range cases {
		got, err := ExtractVideoID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "short", "https://vimeo.com/12345", "https://youtube.com/watch?v=bad"} {
		_, err := ExtractVideoID(bad)
		assert.ErrorIs(t, err, ErrInvalidVideoID, bad)
	}
}

func TestParseISODuration(t *testing.T) {
	cases := map[string]int{
		"PT45S":    45,
		"PT1H2M3S": 3723,
		"PT10M":    600,
		"P1DT1S":   86401,
		"P1W":      604800,
		"PT1M30S":  90,
		"PT0S":     0,
	}
	for in, want := range cases {
		got, err := ParseISODuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "P", "PT", "1H", "-PT5S", "PT5", "PTXS", "P1H"} {
		_, err := ParseISODuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestEmbedURLCarriesToken(t *testing.T) {
	u := EmbedURL("dQw4w9WgXcQ", "abc.def")
	assert.True(t, strings.HasPrefix(u, "https://www.youtube.com/embed/dQw4w9WgXcQ?"))
	assert.Contains(t, u, "token=abc.def")
}

func TestNewClientWithoutKey(t *testing.T) {
	_, err := NewClient(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	var c *Client
	_, err = c.Fetch(context.Background(), "dQw4w9WgXcQ")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
