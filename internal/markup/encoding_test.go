package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		content     []byte
		contentType string
		expected    string
	}{
		{
			name:        "charset from content type",
			content:     []byte("<html></html>"),
			contentType: "text/html; charset=iso-8859-1",
			expected:    "windows-1252",
		},
		{
			name:        "charset from meta tag",
			content:     []byte(`<html><head><meta charset="koi8-r"></head></html>`),
			contentType: "text/html",
			expected:    "koi8-r",
		},
		{
			name:        "utf-8 byte order mark",
			content:     append([]byte{0xEF, 0xBB, 0xBF}, []byte("<html></html>")...),
			contentType: "",
			expected:    "utf-8",
		},
		{
			name:        "undeclared valid utf-8 falls back to utf-8",
			content:     []byte("<html><body>héllo é</body></html>"),
			contentType: "text/html",
			expected:    "utf-8",
		},
		{
			name:        "undeclared non-utf-8 falls back to latin-1",
			content:     []byte{'<', 'p', '>', 0xE9, '<', '/', 'p', '>'},
			contentType: "text/html",
			expected:    "iso-8859-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectEncoding(tt.content, tt.contentType))
		})
	}
}

func TestDecodeBytes(t *testing.T) {
	t.Parallel()

	t.Run("latin-1 bytes decode to utf-8", func(t *testing.T) {
		content := []byte{'<', 'p', '>', 0xE9, '<', '/', 'p', '>'}
		decoded, err := DecodeBytes(content, "text/html")
		require.NoError(t, err)
		assert.Equal(t, "<p>é</p>", string(decoded))
	})

	t.Run("declared charset decodes", func(t *testing.T) {
		content := []byte{'c', 'a', 'f', 0xE9}
		decoded, err := DecodeBytes(content, "text/html; charset=iso-8859-1")
		require.NoError(t, err)
		assert.Equal(t, "café", string(decoded))
	})

	t.Run("utf-8 passes through unchanged", func(t *testing.T) {
		content := []byte("<p>héllo</p>")
		decoded, err := DecodeBytes(content, "text/html")
		require.NoError(t, err)
		assert.Equal(t, content, decoded)
	})
}

func TestGetEncoder(t *testing.T) {
	t.Parallel()

	enc, err := GetEncoder("iso-8859-1")
	require.NoError(t, err)
	assert.NotNil(t, enc)

	_, err = GetEncoder("definitely-not-a-charset")
	assert.Error(t, err)
}
