package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/extractor"
	"github.com/sitedex/sitedex/internal/testutil"
	"github.com/sitedex/sitedex/internal/utils"
)

// fakeSitemaps implements SitemapSource from canned indexes keyed by site
// URL, recording which sites were asked for.
type fakeSitemaps struct {
	indexes map[string]*domain.SitemapIndex
	errs    map[string]error

	mu      sync.Mutex
	fetched []string
}

func (f *fakeSitemaps) Fetch(ctx context.Context, site *domain.Site) (*domain.SitemapIndex, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, site.URL)
	f.mu.Unlock()

	if err := f.errs[site.URL]; err != nil {
		return nil, err
	}
	idx, ok := f.indexes[site.URL]
	if !ok {
		return nil, fmt.Errorf("no sitemap index scripted for %s", site.URL)
	}
	return idx, nil
}

func testConfig(sites ...*domain.Site) *config.Config {
	return &config.Config{
		Sites: sites,
		Fields: []*config.Field{
			{Name: "UID", Type: config.TypeText, Required: true, Extractor: config.ExtractorSpec{Use: "uid"}},
			{Name: "path_string", Type: config.TypeText, Required: true, Extractor: config.ExtractorSpec{Use: "url"}},
			{Name: "Title", Type: config.TypeText, Extractor: config.ExtractorSpec{Use: "title"}},
			{Name: "SearchableText", Type: config.TypeText, Extractor: config.ExtractorSpec{Use: "plain_text"}},
			{Name: "modified", Type: config.TypeTimestamp, Required: true, Extractor: config.ExtractorSpec{Use: "last_modified"}},
		},
		UniqueField:       "UID",
		URLField:          "path_string",
		LastModifiedField: "modified",
		Tika:              "http://tika.example",
		Solr:              "http://solr.example/solr/sitedex",
	}
}

// fixture bundles the orchestrator's collaborators as fakes, with a real
// extraction engine running over a fake converter.
type fixture struct {
	cfg       *config.Config
	sitemaps  *fakeSitemaps
	fetcher   *testutil.FakeFetcher
	index     *testutil.FakeIndex
	notifier  *testutil.FakeNotifier
	converter *testutil.FakeConverter

	scratchDirs []string
}

func newFixture(cfg *config.Config) *fixture {
	return &fixture{
		cfg: cfg,
		sitemaps: &fakeSitemaps{
			indexes: map[string]*domain.SitemapIndex{},
			errs:    map[string]error{},
		},
		fetcher:  &testutil.FakeFetcher{Errs: map[string]error{}},
		index:    &testutil.FakeIndex{},
		notifier: &testutil.FakeNotifier{},
		converter: &testutil.FakeConverter{
			Metadata: map[string]string{"title": "Quality Assurance"},
			Text:     "Body text.",
		},
	}
}

func (f *fixture) orchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	opts.NoProgress = true

	log := utils.NewDefaultLogger()
	set, err := extractor.NewSet(f.cfg, log)
	require.NoError(t, err)

	o, err := NewOrchestrator(f.cfg, Dependencies{
		Sitemaps: f.sitemaps,
		NewFetcher: func(tempDir string) domain.Fetcher {
			f.scratchDirs = append(f.scratchDirs, tempDir)
			return f.fetcher
		},
		Index:    f.index,
		Engine:   extractor.NewEngine(f.converter, set, log),
		Notifier: f.notifier,
		Log:      log,
	}, opts)
	require.NoError(t, err)
	return o
}

func singleSitemap(site string, urls ...domain.URLInfo) *domain.SitemapIndex {
	return &domain.SitemapIndex{
		URL: site + "sitemap_index.xml",
		Sitemaps: []*domain.Sitemap{
			{URL: site + "sitemap.xml", URLs: urls},
		},
	}
}

func TestRunIndexesEverySitemapURL(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo", Lastmod: "2014-12-31T15:45:30+00:00"},
		domain.URLInfo{Loc: "http://example.org/bar", Lastmod: "2015-01-01"},
	)

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"http://example.org/foo", "http://example.org/bar"}, f.fetcher.Fetched)
	require.Len(t, f.index.Indexed, 2)

	assert.Equal(t, domain.Record{
		"UID":            "89ca3f72-a6ed-f44e-4b62-6ae54c71cdf7",
		"path_string":    "http://example.org/foo",
		"Title":          "Quality Assurance",
		"SearchableText": "Body text.",
		"modified":       utils.NewTimestamp(time.Date(2014, 12, 31, 15, 45, 30, 0, time.UTC)),
	}, f.index.Indexed[0])
	assert.Equal(t, "http://example.org/bar", f.index.Indexed[1]["path_string"])
	assert.Equal(t, utils.NewTimestamp(time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)),
		f.index.Indexed[1]["modified"])
}

func TestRunSkipsUnmodifiedAndRedirectedURLs(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
		domain.URLInfo{Loc: "http://example.org/baz"},
	)
	f.fetcher.Errs["http://example.org/foo"] = domain.ErrNotModified
	f.fetcher.Errs["http://example.org/bar"] = &domain.RedirectError{
		URL: "http://example.org/bar", StatusCode: 301, Location: "http://example.org/baz",
	}

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	assert.Len(t, f.fetcher.Fetched, 3)
	require.Len(t, f.index.Indexed, 1)
	assert.Equal(t, "http://example.org/baz", f.index.Indexed[0]["path_string"])
}

func TestRunContinuesAfterFetchFailure(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
	)
	f.fetcher.Errs["http://example.org/foo"] = domain.NewFetchError("http://example.org/foo", 500, nil)

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, f.index.Indexed, 1)
	assert.Equal(t, "http://example.org/bar", f.index.Indexed[0]["path_string"])
	assert.Empty(t, f.notifier.Messages)
}

func TestRunPurgesDocumentsGoneFromSitemaps(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
	)
	f.index.Docs = []map[string]any{
		{"UID": "keep", "path_string": "http://example.org/foo"},
		{"UID": "stale", "path_string": "http://example.org/gone"},
		{"UID": "elsewhere", "path_string": "http://other.example/x"},
	}

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"stale"}, f.index.Deleted)
	// Purging always precedes writes for the site.
	assert.Equal(t, []string{"search", "delete", "index", "index"}, f.index.Ops)
}

func TestRunHonorsURLFilter(t *testing.T) {
	one := domain.NewSite("http://example.org/", nil, 0)
	other := domain.NewSite("http://other.example/", nil, 0)
	f := newFixture(testConfig(one, other))
	f.sitemaps.indexes[one.URL] = singleSitemap(one.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
	)
	f.sitemaps.indexes[other.URL] = singleSitemap(other.URL,
		domain.URLInfo{Loc: "http://other.example/x"},
	)

	o := f.orchestrator(t, Options{FilterURL: "http://example.org/bar"})
	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, []string{"http://example.org/"}, f.sitemaps.fetched)
	assert.Equal(t, []string{"http://example.org/bar"}, f.fetcher.Fetched)
	require.Len(t, f.index.Indexed, 1)
	assert.Equal(t, "http://example.org/bar", f.index.Indexed[0]["path_string"])
}

func TestRunContinuesAfterSiteFailure(t *testing.T) {
	one := domain.NewSite("http://one.example/", nil, 0)
	two := domain.NewSite("http://two.example/", nil, 0)
	f := newFixture(testConfig(one, two))
	f.sitemaps.errs[one.URL] = errors.New("connection refused")
	f.sitemaps.indexes[two.URL] = singleSitemap(two.URL,
		domain.URLInfo{Loc: "http://two.example/page"},
	)

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, f.index.Indexed, 1)
	assert.Equal(t, "http://two.example/page", f.index.Indexed[0]["path_string"])

	require.Len(t, f.notifier.Messages, 2)
	assert.Contains(t, f.notifier.Messages[0], "crawl of http://one.example/ failed")
	assert.Contains(t, f.notifier.Messages[0], "connection refused")
	assert.Contains(t, f.notifier.Messages[1], "1 failed site(s)")
	assert.Contains(t, f.notifier.Messages[1], "http://one.example/")
}

func TestRunAbortsOnConfigurationError(t *testing.T) {
	one := domain.NewSite("http://one.example/", nil, 0)
	two := domain.NewSite("http://two.example/", nil, 0)
	f := newFixture(testConfig(one, two))
	f.sitemaps.errs[one.URL] = domain.NewConfigError("sitemap URL is not under the site", nil)

	o := f.orchestrator(t, Options{})
	err := o.Run(context.Background())

	require.Error(t, err)
	assert.True(t, domain.IsConfigError(err))
	assert.Equal(t, []string{"http://one.example/"}, f.sitemaps.fetched)
	assert.Empty(t, f.notifier.Messages)
}

func TestRunAbortsWhenContextCancelled(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := f.orchestrator(t, Options{})
	err := o.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.fetcher.Fetched)
	assert.Empty(t, f.index.Indexed)
}

func TestRunRemovesScratchDirectory(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
	)

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, f.scratchDirs, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(f.scratchDirs[0]), "sitedex-"))
	_, err := os.Stat(f.scratchDirs[0])
	assert.True(t, os.IsNotExist(err))
}

func TestRunUnlinksDownloadsEvenWhenIndexingFails(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
	)
	f.index.IndexErr = errors.New("update refused")

	// Downloads land outside the scratch directory so their removal can
	// only come from the per-URL cleanup.
	downloads := t.TempDir()
	f.fetcher.Fill = func(ri *domain.ResourceInfo) {
		path := filepath.Join(downloads, filepath.Base(ri.URLInfo.Loc))
		if err := os.WriteFile(path, []byte("<html><body>hi</body></html>"), 0o644); err != nil {
			panic(err)
		}
		ri.Filename = path
		ri.ContentType = "text/html"
	}

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	assert.Empty(t, f.index.Indexed)
	entries, err := os.ReadDir(downloads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunPassesStoredLastModifiedToFetcher(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
		domain.URLInfo{Loc: "http://example.org/bar"},
	)
	f.index.Docs = []map[string]any{
		{"UID": "u1", "path_string": "http://example.org/foo", "modified": "2014-12-31T15:45:30.000000Z"},
	}

	var mu sync.Mutex
	lastIndexed := map[string]*time.Time{}
	f.fetcher.Fill = func(ri *domain.ResourceInfo) {
		mu.Lock()
		lastIndexed[ri.URLInfo.Loc] = ri.LastIndexed
		mu.Unlock()
	}

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	require.NotNil(t, lastIndexed["http://example.org/foo"])
	assert.Equal(t, time.Date(2014, 12, 31, 15, 45, 30, 0, time.UTC),
		*lastIndexed["http://example.org/foo"])
	assert.Nil(t, lastIndexed["http://example.org/bar"])
}

func TestRunEscapesSiteURLInStoredDocQuery(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	f.sitemaps.indexes[site.URL] = singleSitemap(site.URL)

	o := f.orchestrator(t, Options{})
	require.NoError(t, o.Run(context.Background()))

	require.Len(t, f.index.Searches, 1)
	assert.Equal(t, `path_string:http\:\/\/example.org\/*`, f.index.Searches[0])
}

func TestNewOrchestratorValidatesArguments(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	f := newFixture(testConfig(site))
	deps := Dependencies{
		Sitemaps:   f.sitemaps,
		NewFetcher: func(string) domain.Fetcher { return f.fetcher },
		Index:      f.index,
		Engine:     &stubEngine{},
	}

	t.Run("nil config", func(t *testing.T) {
		_, err := NewOrchestrator(nil, deps, Options{})
		require.Error(t, err)
		assert.True(t, domain.IsConfigError(err))
	})

	t.Run("missing collaborator", func(t *testing.T) {
		incomplete := deps
		incomplete.Index = nil
		_, err := NewOrchestrator(f.cfg, incomplete, Options{})
		require.Error(t, err)
	})

	t.Run("notifier defaults to no-op", func(t *testing.T) {
		o, err := NewOrchestrator(f.cfg, deps, Options{})
		require.NoError(t, err)
		assert.NotNil(t, o.deps.Notifier)
	})
}

type stubEngine struct{}

func (e *stubEngine) BuildRecord(ctx context.Context, ri *domain.ResourceInfo) (domain.Record, error) {
	return domain.Record{}, nil
}

func TestStaleDocs(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	cfg := testConfig(site)
	smIndex := singleSitemap(site.URL,
		domain.URLInfo{Loc: "http://example.org/foo"},
	)

	docs := []map[string]any{
		{"UID": "listed", "path_string": "http://example.org/foo"},
		{"UID": "gone", "path_string": "http://example.org/removed"},
		{"UID": "foreign", "path_string": "http://other.example/page"},
		{"UID": "no-url"},
		{"path_string": "http://example.org/no-uid"},
		{"UID": 7, "path_string": "http://example.org/bad-types"},
	}

	stale := staleDocs(cfg, site, smIndex, docs)
	require.Len(t, stale, 1)
	assert.Equal(t, staleDoc{UID: "gone", URL: "http://example.org/removed"}, stale[0])
}

func TestLastIndexedTime(t *testing.T) {
	site := domain.NewSite("http://example.org/", nil, 0)
	cfg := testConfig(site)
	log := utils.NewDefaultLogger()
	docs := []map[string]any{
		{"UID": "u1", "path_string": "http://example.org/foo", "modified": "2014-12-31T15:45:30.000000Z"},
		{"UID": "u2", "path_string": "http://example.org/bar", "modified": "not a timestamp"},
	}

	t.Run("stored document", func(t *testing.T) {
		got := lastIndexedTime(cfg, docs, "http://example.org/foo", log)
		require.NotNil(t, got)
		assert.Equal(t, time.Date(2014, 12, 31, 15, 45, 30, 0, time.UTC), *got)
	})

	t.Run("never indexed", func(t *testing.T) {
		assert.Nil(t, lastIndexedTime(cfg, docs, "http://example.org/new", log))
	})

	t.Run("unreadable stored value", func(t *testing.T) {
		assert.Nil(t, lastIndexedTime(cfg, docs, "http://example.org/bar", log))
	})
}
