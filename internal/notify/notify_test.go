package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedex/sitedex/internal/utils"
)

func TestWebhookPostsTextPayload(t *testing.T) {
	var (
		gotBody        []byte
		gotContentType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
	}))
	defer server.Close()

	n := NewWebhook(server.URL, server.Client(), utils.NewDefaultLogger())
	require.NoError(t, n.Notify(context.Background(), "crawl of http://example.org failed"))

	assert.Equal(t, "application/json", gotContentType)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, map[string]string{"text": "crawl of http://example.org failed"}, payload)
}

func TestWebhookReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewWebhook(server.URL, server.Client(), utils.NewDefaultLogger())
	assert.Error(t, n.Notify(context.Background(), "boom"))
}

func TestWebhookReportsTransportError(t *testing.T) {
	n := NewWebhook("http://127.0.0.1:1", &http.Client{}, utils.NewDefaultLogger())
	assert.Error(t, n.Notify(context.Background(), "boom"))
}

func TestNewFallsBackToNop(t *testing.T) {
	n := New("", &http.Client{}, utils.NewDefaultLogger())
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}
