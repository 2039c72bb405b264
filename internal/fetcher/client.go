package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/pkg/version"
)

// Client is the site-facing HTTP client. One instance, with its connection
// pool and cookie jar, is shared for the lifetime of a crawl. Redirects are
// never followed; callers decide what a 3xx means. Responses are returned
// for every status code; transport failures are the only errors, and those
// are retried with exponential backoff.
type Client struct {
	tlsClient tls_client.HttpClient
	userAgent string
	retrier   *Retrier
}

// ClientOptions contains options for creating a Client
type ClientOptions struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	ProxyURL   string
}

// DefaultClientOptions returns default client options
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// NewClient creates a new HTTP client
func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "sitedex/" + version.Short()
	}

	tlsOpts := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(int(opts.Timeout.Seconds())),
		tls_client.WithClientProfile(profiles.Chrome_131),
		tls_client.WithNotFollowRedirects(),
	}

	if opts.ProxyURL != "" {
		tlsOpts = append(tlsOpts, tls_client.WithProxyUrl(opts.ProxyURL))
	}

	tlsClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), tlsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tls client: %w", err)
	}

	retrier := NewRetrier(RetrierOptions{
		MaxRetries:      opts.MaxRetries,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	})

	return &Client{
		tlsClient: tlsClient,
		userAgent: opts.UserAgent,
		retrier:   retrier,
	}, nil
}

// Get fetches a URL without following redirects.
func (c *Client) Get(ctx context.Context, url string) (*domain.Response, error) {
	return c.do(ctx, fhttp.MethodGet, url)
}

// Head issues a HEAD request without following redirects.
func (c *Client) Head(ctx context.Context, url string) (*domain.Response, error) {
	return c.do(ctx, fhttp.MethodHead, url)
}

func (c *Client) do(ctx context.Context, method, url string) (*domain.Response, error) {
	var resp *domain.Response
	err := c.retrier.Retry(ctx, func() error {
		var err error
		resp, err = c.roundTrip(ctx, method, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// roundTrip performs one HTTP exchange. Transport failures come back as
// RetryableError so the retrier backs off and tries again; status codes are
// never judged here.
func (c *Client) roundTrip(ctx context.Context, method, targetURL string) (*domain.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.tlsClient.Do(req)
	if err != nil {
		return nil, &domain.RetryableError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RetryableError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	// Convert fhttp.Header to http.Header
	headers := make(http.Header, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = v
	}

	return &domain.Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		Headers:     headers,
		ContentType: headers.Get("Content-Type"),
		URL:         targetURL,
	}, nil
}

// UserAgent returns the agent string sent with every request.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Close releases client resources.
func (c *Client) Close() error {
	c.tlsClient.CloseIdleConnections()
	return nil
}
