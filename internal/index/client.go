package index

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// specialTokens are the Solr/Lucene reserved characters and operators:
// + - && || ! ( ) { } [ ] ^ " ~ * ? : \ /
var specialTokens = []string{
	"+", "-", "&&", "||", "!", "(", ")", "{", "}", "[", "]",
	"^", "\"", "~", "*", "?", ":", "/",
}

// Escape escapes a value for use in a query. Backslashes are escaped first
// so the escapes added for the other tokens are not doubled up.
func Escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	for _, token := range specialTokens {
		value = strings.ReplaceAll(value, token, `\`+token)
	}
	return value
}

// Client implements domain.Index against a Solr core.
type Client struct {
	httpClient *http.Client
	updateURL  string
	searchURL  string
	log        *utils.Logger
}

// NewClient creates an index client for the given core base URL,
// e.g. http://localhost:8983/solr/sitedex.
func NewClient(baseURL string, httpClient *http.Client, log *utils.Logger) *Client {
	base := strings.TrimSuffix(baseURL, "/")
	return &Client{
		httpClient: httpClient,
		updateURL:  base + "/update?commit=true",
		searchURL:  base + "/select",
		log:        log.WithComponent("index"),
	}
}

// Index submits one record to the update handler.
func (c *Client) Index(ctx context.Context, record domain.Record) error {
	return c.update(ctx, []domain.Record{record})
}

// Delete removes the record with the given unique id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.update(ctx, map[string]any{"delete": map[string]string{"id": id}})
}

// update posts a JSON document to the update handler with an immediate
// commit. A rejection from the index is logged and swallowed so one bad
// document cannot take down the crawl; only transport failures are
// returned.
func (c *Client) update(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.IndexError{Op: "update", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.updateURL, bytes.NewReader(body))
	if err != nil {
		return &domain.IndexError{Op: "update", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.IndexError{Op: "update", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("response", string(text)).
			Msg("error from index")
	}
	return nil
}

type searchResponse struct {
	Response struct {
		NumFound int              `json:"numFound"`
		Docs     []map[string]any `json:"docs"`
	} `json:"response"`
}

// Search runs a query against the select handler and returns the matching
// stored documents, optionally restricted to the named fields.
func (c *Client) Search(ctx context.Context, query string, fields []string) ([]map[string]any, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("wt", "json")
	if len(fields) > 0 {
		params.Set("fl", strings.Join(fields, ","))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &domain.IndexError{Op: "search", Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.IndexError{Op: "search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.IndexError{Op: "search", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Error().
			Int("status", resp.StatusCode).
			Str("response", string(body)).
			Msg("error from index")
		return nil, &domain.IndexError{Op: "search", StatusCode: resp.StatusCode}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &domain.IndexError{Op: "search", Err: err}
	}
	return parsed.Response.Docs, nil
}
