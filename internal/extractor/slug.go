package extractor

import (
	"net/url"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugFromURL derives a slug from the basename of the URL path. A URL
// without a usable basename (site root, trailing slash only) slugs to
// "index-html".
func slugFromURL(rawURL string) string {
	slug := slugify(urlBasename(rawURL))
	if slug == "" {
		return "index-html"
	}
	return slug
}

// urlBasename returns the last path segment, URL-decoded, ignoring any
// trailing slash.
func urlBasename(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	return base
}

// slugify folds a string to a lowercase ASCII slug: accents stripped, runs
// of anything non-alphanumeric collapsed to single dashes.
func slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dashed := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dashed = false
		default:
			if !dashed {
				b.WriteByte('-')
				dashed = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
