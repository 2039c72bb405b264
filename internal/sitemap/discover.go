package sitemap

import (
	"context"
	"net/http"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// Candidate document names probed during discovery, resolved against the
// site base URL. The empty name is the base URL itself, for sites whose
// root serves the sitemap directly.
var (
	indexNames   = []string{"", "sitemap_index.xml", "sitemap_index.xml.gz"}
	sitemapNames = []string{"", "sitemap.xml", "sitemap.xml.gz"}
)

// IndexFetcher discovers and downloads the sitemap index of a site.
type IndexFetcher struct {
	gatherer domain.Gatherer
	sitemaps *SitemapFetcher
	log      *utils.Logger
}

func NewIndexFetcher(gatherer domain.Gatherer, log *utils.Logger) *IndexFetcher {
	return &IndexFetcher{
		gatherer: gatherer,
		sitemaps: NewSitemapFetcher(gatherer, log),
		log:      log.WithComponent("sitemap"),
	}
}

// Fetch probes the index candidates in order; the first <sitemapindex>
// found wins and its member sitemaps are downloaded eagerly. When no index
// exists the site's single sitemap is discovered instead and wrapped in a
// virtual index, so callers always deal with an index.
func (f *IndexFetcher) Fetch(ctx context.Context, site *domain.Site) (*domain.SitemapIndex, error) {
	f.log.Info().Str("site", site.URL).Msg("looking for sitemap index")

	for _, name := range indexNames {
		candidate, err := utils.ResolveURL(site.URL, name)
		if err != nil {
			continue
		}
		resp, err := f.gatherer.Get(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			continue
		}
		body, err := maybeGunzip(resp.Body, resp.ContentType, candidate)
		if err != nil {
			f.log.Debug().Err(err).Str("url", candidate).Msg("unreadable gzip payload, skipping candidate")
			continue
		}
		refs, err := parseIndexRefs(body, candidate)
		if err != nil {
			// some other document lives here
			continue
		}
		f.log.Debug().Str("url", candidate).Int("sitemaps", len(refs)).Msg("found sitemap index")
		return f.fetchMembers(ctx, site, candidate, refs)
	}

	sm, err := f.sitemaps.Fetch(ctx, site, "")
	if err != nil {
		return nil, err
	}
	return domain.NewVirtualSitemapIndex(sm), nil
}

func (f *IndexFetcher) fetchMembers(ctx context.Context, site *domain.Site, url string, refs []xmlSitemapRef) (*domain.SitemapIndex, error) {
	index := &domain.SitemapIndex{URL: url}
	for _, ref := range refs {
		sm, err := f.sitemaps.Fetch(ctx, site, ref.Loc)
		if err != nil {
			return nil, err
		}
		index.Sitemaps = append(index.Sitemaps, sm)
	}
	return index, nil
}

// SitemapFetcher downloads a single sitemap, either from an explicit URL or
// by probing the sitemap candidates of a site.
type SitemapFetcher struct {
	gatherer domain.Gatherer
	log      *utils.Logger
}

func NewSitemapFetcher(gatherer domain.Gatherer, log *utils.Logger) *SitemapFetcher {
	return &SitemapFetcher{
		gatherer: gatherer,
		log:      log.WithComponent("sitemap"),
	}
}

// Fetch retrieves a sitemap. A non-empty url is fetched as-is and must
// answer with a parseable <urlset>; an empty url triggers discovery against
// the site's candidates, returning a NoSitemapError when none of them has
// one.
func (f *SitemapFetcher) Fetch(ctx context.Context, site *domain.Site, url string) (*domain.Sitemap, error) {
	if url != "" {
		f.log.Info().Str("url", url).Msg("fetching sitemap")

		resp, err := f.gatherer.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, domain.NewFetchError(url, resp.StatusCode, nil)
		}
		body, err := maybeGunzip(resp.Body, resp.ContentType, url)
		if err != nil {
			return nil, err
		}
		return ParseSitemap(body, url)
	}

	f.log.Info().Str("site", site.URL).Msg("looking for sitemap")

	tried := make([]string, 0, len(sitemapNames))
	for _, name := range sitemapNames {
		candidate, err := utils.ResolveURL(site.URL, name)
		if err != nil {
			continue
		}
		tried = append(tried, candidate)

		resp, err := f.gatherer.Get(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			continue
		}
		body, err := maybeGunzip(resp.Body, resp.ContentType, candidate)
		if err != nil {
			f.log.Debug().Err(err).Str("url", candidate).Msg("unreadable gzip payload, skipping candidate")
			continue
		}
		sm, err := ParseSitemap(body, candidate)
		if err != nil {
			continue
		}
		f.log.Debug().Str("url", candidate).Int("urls", len(sm.URLs)).Msg("found sitemap")
		return sm, nil
	}

	return nil, &domain.NoSitemapError{Site: site.URL, Tried: tried}
}
