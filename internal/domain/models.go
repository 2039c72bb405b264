package domain

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultSleeptime is the initial politeness delay between requests to a
// site, in seconds.
const DefaultSleeptime = 0.1

// Site represents one crawl target: a base URL, an attribute bag exposed to
// extractors, and an adaptive politeness delay that grows on rate limiting.
type Site struct {
	URL        string
	Attributes map[string]string

	mu          sync.Mutex
	sleeptime   float64
	nextRequest time.Time
}

// NewSite creates a Site. A non-positive sleeptime falls back to the
// default.
func NewSite(url string, attributes map[string]string, sleeptime float64) *Site {
	if sleeptime <= 0 {
		sleeptime = DefaultSleeptime
	}
	return &Site{
		URL:        url,
		Attributes: attributes,
		sleeptime:  sleeptime,
	}
}

// Sleeptime returns the current politeness delay in seconds.
func (s *Site) Sleeptime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sleeptime
}

// SleepDuration returns the current politeness delay as a duration.
func (s *Site) SleepDuration() time.Duration {
	return time.Duration(s.Sleeptime() * float64(time.Second))
}

// Backoff doubles the politeness delay and returns the delay that was in
// effect before doubling. The delay never decreases within a run.
func (s *Site) Backoff() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.sleeptime
	s.sleeptime *= 2
	return current
}

// Throttle blocks until the politeness delay since the previous request to
// this site has elapsed. The first request goes through immediately; request
// starts are spaced at least one sleeptime apart afterwards.
func (s *Site) Throttle(ctx context.Context) error {
	s.mu.Lock()
	now := time.Now()
	wait := s.nextRequest.Sub(now)
	if wait < 0 {
		wait = 0
	}
	s.nextRequest = now.Add(wait + time.Duration(s.sleeptime*float64(time.Second)))
	s.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Attribute returns a site attribute value and whether it was set.
func (s *Site) Attribute(key string) (string, bool) {
	value, ok := s.Attributes[key]
	return value, ok
}

// Contains reports whether a URL falls under the site's base URL.
func (s *Site) Contains(url string) bool {
	return strings.HasPrefix(url, s.URL)
}

// URLInfo is one parsed <url> entry from a sitemap.
type URLInfo struct {
	Loc        string
	Lastmod    string
	Changefreq string
	Priority   string
	Target     string
}

// lastmodFormats are the timestamp shapes seen in sitemap lastmod fields.
var lastmodFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// LastmodTime parses the lastmod value into a UTC time. The second return
// is false when lastmod is absent or unparseable.
func (u URLInfo) LastmodTime() (time.Time, bool) {
	if u.Lastmod == "" {
		return time.Time{}, false
	}
	for _, format := range lastmodFormats {
		if t, err := time.Parse(format, u.Lastmod); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Sitemap is an ordered sequence of URL infos from one sitemap document.
type Sitemap struct {
	URL  string
	URLs []URLInfo
}

// Contains tests sitemap membership, case-insensitively on loc.
func (s *Sitemap) Contains(url string) bool {
	for _, info := range s.URLs {
		if strings.EqualFold(info.Loc, url) {
			return true
		}
	}
	return false
}

// SitemapIndex is an ordered sequence of sitemaps. When a site advertises no
// real index document, discovery wraps its single sitemap in a virtual index
// so callers always see the same shape.
type SitemapIndex struct {
	URL      string
	Sitemaps []*Sitemap
	Virtual  bool
}

// NewVirtualSitemapIndex wraps a single discovered sitemap.
func NewVirtualSitemapIndex(sm *Sitemap) *SitemapIndex {
	return &SitemapIndex{
		Sitemaps: []*Sitemap{sm},
		Virtual:  true,
	}
}

// Contains reports whether any contained sitemap lists the URL.
func (idx *SitemapIndex) Contains(url string) bool {
	for _, sm := range idx.Sitemaps {
		if sm.Contains(url) {
			return true
		}
	}
	return false
}

// TotalURLs returns the number of URL entries across all sitemaps.
func (idx *SitemapIndex) TotalURLs() int {
	total := 0
	for _, sm := range idx.Sitemaps {
		total += len(sm.URLs)
	}
	return total
}

// ResourceInfo is the per-URL crawl record flowing through the pipeline. It
// is created by the orchestrator and filled progressively by the fetcher and
// the converter.
type ResourceInfo struct {
	Site        *Site
	URLInfo     URLInfo
	LastIndexed *time.Time
	Filename    string
	ContentType string
	Headers     http.Header
	Metadata    map[string]string
	Text        string
}

// Header returns a response header value; lookup is case-insensitive.
func (r *ResourceInfo) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Open opens the downloaded body for reading.
func (r *ResourceInfo) Open() (io.ReadCloser, error) {
	return os.Open(r.Filename)
}

// Cleanup unlinks the downloaded temp file. Safe to call when no file was
// written or when it is already gone.
func (r *ResourceInfo) Cleanup() error {
	if r.Filename == "" {
		return nil
	}
	err := os.Remove(r.Filename)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Record is the name to value map submitted to the index for one document.
// Timestamp values are carried as utils.Timestamp so they serialize in the
// ISO-8601 microsecond wire format.
type Record map[string]any

// Response represents an HTTP response
type Response struct {
	StatusCode  int
	Body        []byte
	Headers     http.Header
	ContentType string
	URL         string
	FromCache   bool
}

// Header returns a response header value; lookup is case-insensitive.
func (r *Response) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}
