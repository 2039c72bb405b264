package app

import (
	"time"

	"github.com/sitedex/sitedex/internal/config"
	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// staleDoc is one stored record scheduled for purging.
type staleDoc struct {
	UID string
	URL string
}

// staleDocs returns the stored records to purge for a site: every document
// whose URL falls under the site's base URL but is no longer listed in any
// of its sitemaps. Documents missing the unique or URL field are left
// alone.
func staleDocs(cfg *config.Config, site *domain.Site, smIndex *domain.SitemapIndex, docs []map[string]any) []staleDoc {
	var stale []staleDoc
	for _, doc := range docs {
		url, _ := doc[cfg.URLField].(string)
		uid, _ := doc[cfg.UniqueField].(string)
		if url == "" || uid == "" {
			continue
		}
		if site.Contains(url) && !smIndex.Contains(url) {
			stale = append(stale, staleDoc{UID: uid, URL: url})
		}
	}
	return stale
}

// lastIndexedTime looks up when a URL was last indexed: the stored
// last-modified value of the first matching document, parsed from the
// index's ISO timestamp format. Nil when the URL was never indexed or the
// stored value is unreadable, both of which make the fetcher treat the URL
// as modified.
func lastIndexedTime(cfg *config.Config, docs []map[string]any, url string, log *utils.Logger) *time.Time {
	for _, doc := range docs {
		stored, _ := doc[cfg.URLField].(string)
		if stored != url {
			continue
		}
		raw, _ := doc[cfg.LastModifiedField].(string)
		t, err := utils.FromISODatetime(raw)
		if err != nil {
			log.Debug().Str("url", url).Str("value", raw).
				Msg("stored last-modified value is unreadable, treating as never indexed")
			return nil
		}
		return &t
	}
	return nil
}
