package utils

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestIsGzipped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		url         string
		expected    bool
	}{
		{
			name:        "gzip content type",
			contentType: "application/x-gzip",
			url:         "http://example.org/sitemap.xml",
			expected:    true,
		},
		{
			name:        "gzip content type with parameters",
			contentType: "application/x-gzip; charset=binary",
			url:         "http://example.org/sitemap.xml",
			expected:    true,
		},
		{
			name:        "gz suffix wins over html content type",
			contentType: "text/html",
			url:         "http://example.org/sitemap.xml.gz",
			expected:    true,
		},
		{
			name:        "plain xml",
			contentType: "application/xml",
			url:         "http://example.org/sitemap.xml",
			expected:    false,
		},
		{
			name:        "gz only in query string does not count",
			contentType: "application/xml",
			url:         "http://example.org/sitemap.xml?name=foo.gz",
			expected:    false,
		},
		{
			name:        "unparseable url falls back to raw suffix",
			contentType: "text/plain",
			url:         "http://example.org/%zz.gz",
			expected:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsGzipped(tt.contentType, tt.url))
		})
	}
}

func TestGunzip(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		payload := []byte("<urlset><url><loc>http://example.org/</loc></url></urlset>")
		decoded, err := Gunzip(gzipBytes(t, payload))
		require.NoError(t, err)
		assert.Equal(t, payload, decoded)
	})

	t.Run("rejects non-gzip data", func(t *testing.T) {
		_, err := Gunzip([]byte("plainly not gzip"))
		assert.Error(t, err)
	})

	t.Run("rejects truncated stream", func(t *testing.T) {
		full := gzipBytes(t, bytes.Repeat([]byte("abcdefgh"), 100))
		_, err := Gunzip(full[:len(full)/2])
		assert.Error(t, err)
	})
}
