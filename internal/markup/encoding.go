package markup

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// fallbackEncoding is what charset.DetermineEncoding names when it has no
// signal at all; we replace that guess with our own heuristic.
const fallbackEncoding = "windows-1252"

// DetectEncoding detects the character encoding of a markup document. The
// declared encoding wins (byte order mark, Content-Type charset, meta tag);
// without a declaration the heuristic decides between utf-8 and latin-1.
func DetectEncoding(content []byte, contentType string) string {
	_, name, certain := charset.DetermineEncoding(content, contentType)
	if certain || name != fallbackEncoding {
		return name
	}

	if utf8.Valid(content) {
		return "utf-8"
	}
	return "iso-8859-1"
}

// DecodeBytes converts markup content to UTF-8 using the detected encoding.
// Content that is already UTF-8, or whose encoding is unknown to the HTML
// index, is returned unchanged.
func DecodeBytes(content []byte, contentType string) ([]byte, error) {
	enc := DetectEncoding(content, contentType)

	if enc == "utf-8" || enc == "utf8" {
		return content, nil
	}

	e, err := htmlindex.Get(enc)
	if err != nil {
		// Unknown encoding, return as-is
		return content, nil
	}

	reader := transform.NewReader(bytes.NewReader(content), e.NewDecoder())
	return io.ReadAll(reader)
}

// GetEncoder returns the encoding for a charset name
func GetEncoder(charsetName string) (encoding.Encoding, error) {
	return htmlindex.Get(charsetName)
}
