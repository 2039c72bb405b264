// Package app drives the crawl: per site, fetch the sitemap index, purge
// index records whose URLs dropped out of the sitemaps, then walk every
// listed URL through fetch, extraction and indexing.
package app

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/index"
	"github.com/sitedex/sitedex/internal/notify"
	"github.com/sitedex/sitedex/internal/utils"
)

// SitemapSource fetches the sitemap index, real or virtual, for a site.
type SitemapSource interface {
	Fetch(ctx context.Context, site *domain.Site) (*domain.SitemapIndex, error)
}

// RecordBuilder turns a fetched resource into an index record.
type RecordBuilder interface {
	BuildRecord(ctx context.Context, ri *domain.ResourceInfo) (domain.Record, error)
}

// Dependencies are the collaborators the orchestrator drives. NewFetcher is
// a factory because a fetcher is bound to the scratch directory, which only
// exists while Run is active.
type Dependencies struct {
	Sitemaps   SitemapSource
	NewFetcher func(tempDir string) domain.Fetcher
	Index      domain.Index
	Engine     RecordBuilder
	Notifier   domain.Notifier
	Log        *utils.Logger
}

// Options are the per-invocation knobs.
type Options struct {
	// FilterURL restricts the crawl to a single URL; sites it does not fall
	// under are skipped entirely.
	FilterURL string
	// NoProgress suppresses the progress bar.
	NoProgress bool
}

// Orchestrator coordinates one crawl over all configured sites.
type Orchestrator struct {
	cfg  *config.Config
	deps Dependencies
	opts Options
	log  *utils.Logger
}

// NewOrchestrator wires an orchestrator. A missing notifier falls back to
// the no-op one; everything else is required.
func NewOrchestrator(cfg *config.Config, deps Dependencies, opts Options) (*Orchestrator, error) {
	if cfg == nil {
		return nil, domain.NewConfigError("config is required", nil)
	}
	if deps.Sitemaps == nil || deps.NewFetcher == nil || deps.Index == nil || deps.Engine == nil {
		return nil, fmt.Errorf("orchestrator dependencies incomplete")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	log := deps.Log
	if log == nil {
		log = utils.NewDefaultLogger()
	}
	return &Orchestrator{
		cfg:  cfg,
		deps: deps,
		opts: opts,
		log:  log.WithComponent("crawler"),
	}, nil
}

// Run crawls every configured site in order. Per-site failures are logged
// and notified and the crawl moves on; configuration errors and
// cancellation abort. The scratch directory holding downloads is removed on
// every exit path.
func (o *Orchestrator) Run(ctx context.Context) error {
	tempDir, err := os.MkdirTemp("", "sitedex-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tempDir)
	o.log.Debug().Str("dir", tempDir).Msg("using scratch directory")

	fetch := o.deps.NewFetcher(tempDir)

	var failed []string
	for _, site := range o.cfg.Sites {
		if o.opts.FilterURL != "" && !site.Contains(o.opts.FilterURL) {
			continue
		}
		if err := o.crawlSite(ctx, site, fetch); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if domain.IsConfigError(err) {
				return err
			}
			o.log.Error().Err(err).Str("site", site.URL).Msg("site crawl failed")
			o.notify(ctx, fmt.Sprintf("sitedex: crawl of %s failed: %v", site.URL, err))
			failed = append(failed, site.URL)
		}
	}

	if len(failed) > 0 {
		o.notify(ctx, fmt.Sprintf("sitedex: crawl finished with %d failed site(s): %s",
			len(failed), strings.Join(failed, ", ")))
	}
	return ctx.Err()
}

// crawlSite runs the full pipeline for one site: sitemap index, stored-doc
// lookup, purge of removed documents, then the URL walk. Deletes always
// happen before any write for the site.
func (o *Orchestrator) crawlSite(ctx context.Context, site *domain.Site, fetch domain.Fetcher) error {
	log := o.log.WithSite(site.URL)

	smIndex, err := o.deps.Sitemaps.Fetch(ctx, site)
	if err != nil {
		return err
	}
	log.Info().Int("sitemaps", len(smIndex.Sitemaps)).Int("urls", smIndex.TotalURLs()).
		Msg("crawling site")

	fields := []string{o.cfg.UniqueField, o.cfg.URLField, o.cfg.LastModifiedField}
	docs, err := o.deps.Index.Search(ctx, o.siteQuery(site), fields)
	if err != nil {
		return err
	}

	o.purgeStale(ctx, log, site, smIndex, docs)

	for _, sm := range smIndex.Sitemaps {
		o.crawlSitemap(ctx, log, site, sm, docs, fetch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// siteQuery matches every stored document under the site's base URL.
func (o *Orchestrator) siteQuery(site *domain.Site) string {
	return fmt.Sprintf("%s:%s*", o.cfg.URLField, index.Escape(site.URL))
}

// purgeStale deletes stored records whose URLs are gone from the site's
// sitemaps. Delete failures are logged and skipped; the affected records
// get another chance on the next run.
func (o *Orchestrator) purgeStale(ctx context.Context, log *utils.Logger, site *domain.Site, smIndex *domain.SitemapIndex, docs []map[string]any) {
	stale := staleDocs(o.cfg, site, smIndex, docs)
	if len(stale) == 0 {
		return
	}

	log.Info().Int("documents", len(stale)).Msg("purging removed documents from index")
	for _, doc := range stale {
		log.Info().Str("uid", doc.UID).Str("url", doc.URL).Msg("purging document")
		if err := o.deps.Index.Delete(ctx, doc.UID); err != nil {
			log.Error().Err(err).Str("uid", doc.UID).Str("url", doc.URL).
				Msg("failed to purge document")
		}
	}
}

// crawlSitemap walks one sitemap's URLs in listed order.
func (o *Orchestrator) crawlSitemap(ctx context.Context, log *utils.Logger, site *domain.Site, sm *domain.Sitemap, docs []map[string]any, fetch domain.Fetcher) {
	total := len(sm.URLs)
	log.Info().Str("sitemap", sm.URL).Int("urls", total).Msg("crawling sitemap")

	bar := o.newBar(total)
	for n, info := range sm.URLs {
		if ctx.Err() != nil {
			return
		}
		if o.opts.FilterURL == "" || info.Loc == o.opts.FilterURL {
			o.crawlURL(ctx, log, site, info, docs, fetch, fmt.Sprintf("[%d/%d]", n+1, total))
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}
}

// crawlURL runs fetch → extract → index → unlink for one URL. Every failure
// is local to the URL.
func (o *Orchestrator) crawlURL(ctx context.Context, log *utils.Logger, site *domain.Site, info domain.URLInfo, docs []map[string]any, fetch domain.Fetcher, progress string) {
	url := info.Loc
	ri := &domain.ResourceInfo{
		Site:        site,
		URLInfo:     info,
		LastIndexed: lastIndexedTime(o.cfg, docs, url, log),
	}

	err := fetch.Fetch(ctx, ri)
	switch {
	case err == nil:
	case domain.IsNotModified(err):
		log.Info().Str("progress", progress).Str("url", url).Msg("skipped, not modified")
		return
	case domain.IsAttemptedRedirect(err):
		log.Info().Str("progress", progress).Str("url", url).Msg("skipped, attempted redirect")
		return
	default:
		if ctx.Err() != nil {
			return
		}
		log.Error().Err(err).Str("progress", progress).Str("url", url).Msg("fetch failed")
		return
	}

	defer func() {
		if err := ri.Cleanup(); err != nil {
			log.Debug().Err(err).Str("file", ri.Filename).Msg("failed to remove temp file")
		}
	}()

	record, err := o.deps.Engine.BuildRecord(ctx, ri)
	if err != nil {
		log.Error().Err(err).Str("progress", progress).Str("url", url).Msg("extraction failed")
		return
	}
	o.displayFields(record)

	if err := o.deps.Index.Index(ctx, record); err != nil {
		log.Error().Err(err).Str("progress", progress).Str("url", url).Msg("indexing failed")
		return
	}
	log.Info().Str("progress", progress).Str("url", url).Msg("indexed")
}

// displayFields dumps the extracted record at debug level, with long values
// flattened and truncated so text bodies do not swamp the output.
func (o *Orchestrator) displayFields(record domain.Record) {
	if o.log.GetLevel() > zerolog.DebugLevel {
		return
	}

	names := make([]string, 0, len(record))
	for name := range record {
		names = append(names, name)
	}
	sort.Strings(names)

	event := o.log.Debug()
	for _, name := range names {
		event = event.Str(name, truncateValue(record[name]))
	}
	event.Msg("extracted field values")
}

func truncateValue(value any) string {
	s := fmt.Sprint(value)
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	if runes := []rune(s); len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return s
}

func (o *Orchestrator) newBar(total int) *progressbar.ProgressBar {
	if o.opts.NoProgress || total == 0 {
		return nil
	}
	return utils.NewProgressBar(total, "Indexing")
}

func (o *Orchestrator) notify(ctx context.Context, message string) {
	if err := o.deps.Notifier.Notify(ctx, message); err != nil {
		o.log.Warn().Err(err).Msg("failed to deliver notification")
	}
}
