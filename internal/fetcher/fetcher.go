package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// Fetcher runs the freshness check and the conditional download for one URL.
// Successful downloads land in a temp file under the orchestrator's scratch
// directory; the resource info is populated with the filename, the
// charset-free content type, and the response headers.
type Fetcher struct {
	client  *Client
	tempDir string
	force   bool
	log     *utils.Logger
}

// New creates a Fetcher writing downloads into tempDir. With force set the
// freshness check is skipped and every URL is re-fetched.
func New(client *Client, tempDir string, force bool, log *utils.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		tempDir: tempDir,
		force:   force,
		log:     log.WithComponent("fetcher"),
	}
}

// IsModified decides whether the URL changed since it was last indexed:
// never indexed counts as modified; a sitemap lastmod is compared when
// present; else a HEAD request's Last-Modified header; else modified, the
// conservative default.
func (f *Fetcher) IsModified(ctx context.Context, ri *domain.ResourceInfo) (bool, error) {
	if ri.LastIndexed == nil {
		return true, nil
	}

	if lastmod, ok := ri.URLInfo.LastmodTime(); ok {
		return lastmod.After(*ri.LastIndexed), nil
	}

	if err := ri.Site.Throttle(ctx); err != nil {
		return false, err
	}
	resp, err := f.client.Head(ctx, ri.URLInfo.Loc)
	if err != nil {
		return false, domain.NewFetchError(ri.URLInfo.Loc, 0, err)
	}
	if value := resp.Header("Last-Modified"); value != "" {
		if lastModified, err := utils.FromHTTPDatetime(value); err == nil {
			return lastModified.After(*ri.LastIndexed), nil
		}
		f.log.Debug().Str("url", ri.URLInfo.Loc).Str("last_modified", value).
			Msg("unparseable Last-Modified header, assuming modified")
	}
	return true, nil
}

// Fetch downloads the resource. Unmodified URLs return ErrNotModified,
// redirects are refused with a RedirectError (with redirects it is unclear
// which URL is canonical), and 429 answers are retried after sleeping the
// site's sleeptime, doubling it each time.
func (f *Fetcher) Fetch(ctx context.Context, ri *domain.ResourceInfo) error {
	url := ri.URLInfo.Loc

	if !f.force {
		modified, err := f.IsModified(ctx, ri)
		if err != nil {
			return err
		}
		if !modified {
			return domain.ErrNotModified
		}
	}

	if err := ri.Site.Throttle(ctx); err != nil {
		return err
	}
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		return domain.NewFetchError(url, 0, err)
	}

	if isRedirect(resp) {
		f.log.Warn().Str("url", url).Int("status", resp.StatusCode).
			Str("location", resp.Header("Location")).Msg("URL attempted a redirect, skipped")
		return &domain.RedirectError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Location:   resp.Header("Location"),
		}
	}

	for resp.StatusCode == http.StatusTooManyRequests {
		delay := ri.Site.Backoff()
		f.log.Warn().Str("url", url).Float64("sleep_seconds", delay).
			Msg("429 Too Many Requests, backing off")
		if err := sleep(ctx, time.Duration(delay*float64(time.Second))); err != nil {
			return err
		}
		resp, err = f.client.Get(ctx, url)
		if err != nil {
			return domain.NewFetchError(url, 0, err)
		}
	}

	if resp.StatusCode != http.StatusOK {
		return domain.NewFetchError(url, resp.StatusCode, nil)
	}

	file, err := os.CreateTemp(f.tempDir, "sitedex-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := file.Write(resp.Body); err != nil {
		file.Close()
		os.Remove(file.Name())
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	ri.Filename = file.Name()
	ri.ContentType = utils.GetContentType(resp.ContentType)
	ri.Headers = resp.Headers

	f.log.Debug().Str("url", url).Str("file", ri.Filename).Msg("resource saved")
	return nil
}

// isRedirect reports whether the response is a redirect: a 3xx status
// carrying a Location header.
func isRedirect(resp *domain.Response) bool {
	return resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header("Location") != ""
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
