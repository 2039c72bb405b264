package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// Element names are unqualified so documents in any sitemap namespace (or
// none) parse alike.

type xmlURL struct {
	Loc        string `xml:"loc"`
	Lastmod    string `xml:"lastmod"`
	Changefreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
	Target     string `xml:"target"`
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlSitemapRef struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name        `xml:"sitemapindex"`
	Sitemaps []xmlSitemapRef `xml:"sitemap"`
}

// ParseSitemap parses a <urlset> document. Entries without a <loc> are
// dropped; surrounding whitespace in text values is trimmed.
func ParseSitemap(data []byte, url string) (*domain.Sitemap, error) {
	var set xmlURLSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("failed to parse sitemap %s: %w", url, err)
	}

	sm := &domain.Sitemap{URL: url}
	for _, entry := range set.URLs {
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		sm.URLs = append(sm.URLs, domain.URLInfo{
			Loc:        loc,
			Lastmod:    strings.TrimSpace(entry.Lastmod),
			Changefreq: strings.TrimSpace(entry.Changefreq),
			Priority:   strings.TrimSpace(entry.Priority),
			Target:     strings.TrimSpace(entry.Target),
		})
	}
	return sm, nil
}

// parseIndexRefs parses a <sitemapindex> document into its member sitemap
// references. Unmarshal fails when the root element is anything else, which
// is how discovery tells the two document kinds apart.
func parseIndexRefs(data []byte, url string) ([]xmlSitemapRef, error) {
	var idx xmlSitemapIndex
	if err := xml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("not a sitemap index at %s: %w", url, err)
	}

	refs := make([]xmlSitemapRef, 0, len(idx.Sitemaps))
	for _, ref := range idx.Sitemaps {
		ref.Loc = strings.TrimSpace(ref.Loc)
		if ref.Loc == "" {
			continue
		}
		ref.Lastmod = strings.TrimSpace(ref.Lastmod)
		refs = append(refs, ref)
	}
	return refs, nil
}

// maybeGunzip decompresses the payload when the content type or the URL
// suffix says it is gzipped.
func maybeGunzip(body []byte, contentType, url string) ([]byte, error) {
	if utils.IsGzipped(contentType, url) {
		return utils.Gunzip(body)
	}
	return body, nil
}
