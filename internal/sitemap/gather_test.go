package sitemap

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedex/sitedex/internal/domain"
	"github.com/sitedex/sitedex/internal/utils"
)

// flakySource fails a configured number of times before answering.
type flakySource struct {
	failures int
	calls    int
}

func (s *flakySource) Get(ctx context.Context, url string) (*domain.Response, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection reset")
	}
	return &domain.Response{
		URL:        url,
		StatusCode: http.StatusOK,
		Body:       []byte("<urlset></urlset>"),
	}, nil
}

func TestGathererDoesNotCacheErrors(t *testing.T) {
	src := &flakySource{failures: 1}
	g, err := NewGatherer(src, utils.NewDefaultLogger())
	require.NoError(t, err)
	defer g.Close()

	ctx := context.Background()

	_, err = g.Get(ctx, "http://example.org/sitemap.xml")
	require.Error(t, err)

	// The failure was not cached, so the retry reaches the source.
	resp, err := g.Get(ctx, "http://example.org/sitemap.xml")
	require.NoError(t, err)
	assert.False(t, resp.FromCache)
	assert.Equal(t, 2, src.calls)

	resp, err = g.Get(ctx, "http://example.org/sitemap.xml")
	require.NoError(t, err)
	assert.True(t, resp.FromCache)
	assert.Equal(t, 2, src.calls, "the successful answer is cached")
}
