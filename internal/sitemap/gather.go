package sitemap

import (
	"context"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// Gatherer performs the sitemap layer's HTTP retrievals. Responses are
// cached in memory for the run so repeated discovery probes reuse the first
// answer instead of hitting the site again. Redirects are not followed; the
// status code travels back to the caller as data.
type Gatherer struct {
	src   domain.Gatherer
	cache *responseCache
	log   *utils.Logger
}

// NewGatherer wraps the crawl's HTTP client with the probe cache.
func NewGatherer(src domain.Gatherer, log *utils.Logger) (*Gatherer, error) {
	cache, err := newResponseCache()
	if err != nil {
		return nil, err
	}
	return &Gatherer{
		src:   src,
		cache: cache,
		log:   log.WithComponent("sitemap"),
	}, nil
}

// Get retrieves a URL, serving repeats from the cache.
func (g *Gatherer) Get(ctx context.Context, url string) (*domain.Response, error) {
	if resp, ok := g.cache.get(url); ok {
		g.log.Debug().Str("url", url).Msg("probe served from cache")
		return resp, nil
	}

	resp, err := g.src.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := g.cache.set(url, resp); err != nil {
		g.log.Debug().Err(err).Str("url", url).Msg("failed to cache response")
	}
	return resp, nil
}

// Close releases the probe cache.
func (g *Gatherer) Close() error {
	return g.cache.close()
}
