package utils

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// gzipContentType is the MIME type sitemap servers use for gzipped payloads.
const gzipContentType = "application/x-gzip"

// IsGzipped reports whether a response body needs gunzipping before use:
// either the Content-Type says so or the URL path carries a .gz suffix.
// Transport-level gzip is already transparent at the HTTP client.
func IsGzipped(contentType, rawURL string) bool {
	if GetContentType(contentType) == gzipContentType {
		return true
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return strings.HasSuffix(path, ".gz")
}

// Gunzip decodes a gzip-compressed byte slice.
func Gunzip(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer reader.Close()

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip stream: %w", err)
	}
	return decoded, nil
}
