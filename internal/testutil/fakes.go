// Package testutil provides hand-written fakes for the external services
// the crawl talks to. They record calls and return canned answers.
package testutil

import (
	"context"
	"sync"

	"github.com/sitedex/sitedex/internal/domain"
)

// FakeConverter implements domain.Converter from canned values.
type FakeConverter struct {
	Metadata map[string]string
	Text     string

	MetadataErr error
	TextErr     error

	mu            sync.Mutex
	MetadataCalls int
	TextCalls     int
}

func (f *FakeConverter) ExtractMetadata(ctx context.Context, ri *domain.ResourceInfo) (map[string]string, error) {
	f.mu.Lock()
	f.MetadataCalls++
	f.mu.Unlock()

	if f.MetadataErr != nil {
		return nil, f.MetadataErr
	}
	if f.Metadata == nil {
		return map[string]string{}, nil
	}
	return f.Metadata, nil
}

func (f *FakeConverter) ExtractText(ctx context.Context, ri *domain.ResourceInfo) (string, error) {
	f.mu.Lock()
	f.TextCalls++
	f.mu.Unlock()

	if f.TextErr != nil {
		return "", f.TextErr
	}
	return f.Text, nil
}

func (f *FakeConverter) ExtractAll(ctx context.Context, ri *domain.ResourceInfo) error {
	metadata, err := f.ExtractMetadata(ctx, ri)
	if err != nil {
		return err
	}
	text, err := f.ExtractText(ctx, ri)
	if err != nil {
		return err
	}
	ri.Metadata = metadata
	ri.Text = text
	return nil
}

// FakeIndex implements domain.Index, recording writes and serving canned
// search results. Ops keeps the call order across operations.
type FakeIndex struct {
	Docs      []map[string]any
	SearchErr error
	IndexErr  error
	DeleteErr error

	mu       sync.Mutex
	Indexed  []domain.Record
	Deleted  []string
	Searches []string
	Ops      []string
}

func (f *FakeIndex) Index(ctx context.Context, record domain.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "index")
	if f.IndexErr != nil {
		return f.IndexErr
	}
	f.Indexed = append(f.Indexed, record)
	return nil
}

func (f *FakeIndex) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ops = append(f.Ops, "delete")
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.Deleted = append(f.Deleted, id)
	return nil
}

func (f *FakeIndex) Search(ctx context.Context, query string, fields []string) ([]map[string]any, error) {
	f.mu.Lock()
	f.Ops = append(f.Ops, "search")
	f.Searches = append(f.Searches, query)
	f.mu.Unlock()

	if f.SearchErr != nil {
		return nil, f.SearchErr
	}
	return f.Docs, nil
}

// FakeNotifier implements domain.Notifier, collecting messages.
type FakeNotifier struct {
	Err error

	mu       sync.Mutex
	Messages []string
}

func (f *FakeNotifier) Notify(ctx context.Context, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = append(f.Messages, message)
	return f.Err
}

// FakeFetcher implements domain.Fetcher with a scripted answer per URL.
// URLs without a script entry succeed without touching the resource.
type FakeFetcher struct {
	Errs map[string]error
	Fill func(ri *domain.ResourceInfo)

	mu      sync.Mutex
	Fetched []string
}

func (f *FakeFetcher) Fetch(ctx context.Context, ri *domain.ResourceInfo) error {
	f.mu.Lock()
	f.Fetched = append(f.Fetched, ri.URLInfo.Loc)
	f.mu.Unlock()

	if err, ok := f.Errs[ri.URLInfo.Loc]; ok && err != nil {
		return err
	}
	if f.Fill != nil {
		f.Fill(ri)
	}
	return nil
}
