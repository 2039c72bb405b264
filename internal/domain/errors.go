package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors
var (
	// ErrNotModified indicates the freshness check decided no work is needed
	ErrNotModified = errors.New("not modified")

	// ErrAttemptedRedirect indicates the server answered with a redirect,
	// which the crawler refuses to follow
	ErrAttemptedRedirect = errors.New("attempted redirect")

	// ErrNoSitemapFound indicates sitemap discovery exhausted all candidates
	ErrNoSitemapFound = errors.New("no sitemap found")

	// ErrNoValueExtracted is signaled by an extractor that has no value for
	// this resource; the engine handles it locally
	ErrNoValueExtracted = errors.New("no value extracted")

	// ErrSiteNotFound indicates a configured-site lookup by URL failed
	ErrSiteNotFound = errors.New("site not found")

	// ErrNoSuchField indicates a field name lookup failed
	ErrNoSuchField = errors.New("no such field")

	// ErrTimeout indicates a timeout occurred
	ErrTimeout = errors.New("timeout")
)

// ConfigError reports a configuration-time problem. Config errors are fatal.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(reason string, err error) *ConfigError {
	return &ConfigError{Reason: reason, Err: err}
}

// IsConfigError checks whether an error is configuration-time and therefore
// fatal for the run
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// FetchError represents a terminal error during fetching
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode > 0 && e.Err != nil:
		return fmt.Sprintf("fetch error for %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	case e.StatusCode > 0:
		return fmt.Sprintf("fetch error for %s: status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new FetchError
func NewFetchError(url string, statusCode int, err error) *FetchError {
	return &FetchError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// RedirectError is raised when a GET answers 3xx; the URL is skipped for
// this run
type RedirectError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *RedirectError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("attempted redirect for %s: status %d to %s", e.URL, e.StatusCode, e.Location)
	}
	return fmt.Sprintf("attempted redirect for %s: status %d", e.URL, e.StatusCode)
}

func (e *RedirectError) Unwrap() error {
	return ErrAttemptedRedirect
}

// NoSitemapError reports that discovery found no sitemap at any candidate
// location for a site
type NoSitemapError struct {
	Site  string
	Tried []string
}

func (e *NoSitemapError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("no sitemap found for %s", e.Site)
	}
	return fmt.Sprintf("no sitemap found for %s (tried %s)", e.Site, strings.Join(e.Tried, ", "))
}

func (e *NoSitemapError) Unwrap() error {
	return ErrNoSitemapFound
}

// ConverterError represents a failed call to the external converter service
type ConverterError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *ConverterError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("converter error at %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("converter error at %s: %v", e.Endpoint, e.Err)
}

func (e *ConverterError) Unwrap() error {
	return e.Err
}

// IndexError represents a failed read against the search index
type IndexError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *IndexError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("index %s failed: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("index %s failed: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}

// ExtractionError reports an unrecognized extractor variant or a value that
// failed type validation; the record for the URL is dropped
type ExtractionError struct {
	Field string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for field %q: %v", e.Field, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// NewExtractionError creates a new ExtractionError
func NewExtractionError(field string, err error) *ExtractionError {
	return &ExtractionError{Field: field, Err: err}
}

// RetryableError indicates a transport-level error that can be retried
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable checks if an error should be retried at the transport level.
// HTTP statuses never retry here; 429 is handled by the politeness loop.
func IsRetryable(err error) bool {
	var retryable *RetryableError
	if errors.As(err, &retryable) {
		return true
	}
	return errors.Is(err, ErrTimeout)
}

// IsNotModified checks for the freshness skip signal
func IsNotModified(err error) bool {
	return errors.Is(err, ErrNotModified)
}

// IsAttemptedRedirect checks for the redirect refusal signal
func IsAttemptedRedirect(err error) bool {
	return errors.Is(err, ErrAttemptedRedirect)
}
