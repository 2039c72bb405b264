package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		base     string
		ref      string
		expected string
	}{
		{
			name:     "relative against root",
			base:     "http://example.org/",
			ref:      "sitemap.xml",
			expected: "http://example.org/sitemap.xml",
		},
		{
			name:     "relative against base without trailing slash",
			base:     "http://example.org",
			ref:      "sitemap_index.xml.gz",
			expected: "http://example.org/sitemap_index.xml.gz",
		},
		{
			name:     "absolute ref wins",
			base:     "http://example.org/",
			ref:      "http://other.org/sitemap.xml",
			expected: "http://other.org/sitemap.xml",
		},
		{
			name:     "empty ref keeps base",
			base:     "http://example.org/docs/",
			ref:      "",
			expected: "http://example.org/docs/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.base, tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestIsHTTPURL(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHTTPURL("http://example.org/"))
	assert.True(t, IsHTTPURL("https://example.org/"))
	assert.False(t, IsHTTPURL("ftp://example.org/"))
	assert.False(t, IsHTTPURL("/relative/path"))
}
