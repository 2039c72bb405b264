package domain

import "context"

// Converter bridges to the external service that turns a fetched document
// into structured metadata and plain text.
type Converter interface {
	// ExtractMetadata sends the downloaded body and returns the normalized
	// metadata mapping
	ExtractMetadata(ctx context.Context, ri *ResourceInfo) (map[string]string, error)
	// ExtractText sends the downloaded body and returns its plain text
	ExtractText(ctx context.Context, ri *ResourceInfo) (string, error)
	// ExtractAll runs both extractions and fills ri.Metadata and ri.Text
	ExtractAll(ctx context.Context, ri *ResourceInfo) error
}

// Index is the external search index the crawl writes into. Write failures
// are logged by implementations and not returned; read failures surface as
// IndexError.
type Index interface {
	// Index submits one record
	Index(ctx context.Context, record Record) error
	// Delete removes the record with the given unique id
	Delete(ctx context.Context, id string) error
	// Search runs a query and returns the matching stored documents,
	// optionally restricted to the named fields
	Search(ctx context.Context, query string, fields []string) ([]map[string]any, error)
}

// Gatherer performs the sitemap layer's HTTP retrievals. Redirects are not
// followed.
type Gatherer interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// Fetcher runs the freshness check and conditional download for one URL,
// populating the resource info on success.
type Fetcher interface {
	Fetch(ctx context.Context, ri *ResourceInfo) error
}

// Notifier delivers crawl failure notices to an external channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
