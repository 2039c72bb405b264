package sitemap

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"github.com/sitedex/sitedex/internal/domain"
)

// responseCache remembers gatherer responses for the lifetime of one crawl.
// Discovery probes revisit the same URLs (the site base URL in particular,
// first as an index candidate and again as a sitemap candidate), and the
// cache keeps each probe to a single request. Backed by an in-memory badger
// store so nothing persists beyond the run.
type responseCache struct {
	db *badger.DB
}

func newResponseCache() (*responseCache, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &responseCache{db: db}, nil
}

// get returns the cached response for url, marked as a cache hit. Every
// status code is cached, so a 404 probe is answered from here on repeats
// just like a 200.
func (c *responseCache) get(url string) (*domain.Response, bool) {
	var data []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(url))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, false
	}

	var resp domain.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, false
	}
	resp.FromCache = true
	return &resp, true
}

func (c *responseCache) set(url string, resp *domain.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(url), data)
	})
}

func (c *responseCache) close() error {
	return c.db.Close()
}
