package utils

import "strings"

// NormalizeWhitespace collapses every run of whitespace into a single space
// and trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GetContentType strips any parameters (charset and friends) from a
// Content-Type header value, returning just the MIME type.
func GetContentType(header string) string {
	mime, _, found := strings.Cut(header, ";")
	if !found {
		return strings.TrimSpace(header)
	}
	return strings.TrimSpace(mime)
}
