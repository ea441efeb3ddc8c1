package gateclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The default Transport must stop at the first redirect rather than
// follow it: redirect-following is the admission controller's job (§6).
func TestDefaultTransport_DoesNotFollowRedirects(t *testing.T) {
	var finalHit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/final", http.StatusFound)
			return
		}
		finalHit = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newDefaultTransport(nil, 5*time.Second, 0)
	resp, err := tr.Do(context.Background(), outboundRequest{Method: http.MethodGet, URL: srv.URL + "/start"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status())
	assert.False(t, finalHit, "transport must not itself follow the redirect")
}

func TestDefaultTransport_AppliesFallbackTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newDefaultTransport(nil, 10*time.Millisecond, 0)
	_, err := tr.Do(context.Background(), outboundRequest{Method: http.MethodGet, URL: srv.URL})
	assert.Error(t, err)
}

func TestDefaultTransport_HonorsExistingDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tr := newDefaultTransport(nil, 5*time.Second, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := tr.Do(ctx, outboundRequest{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status())
}

func TestDefaultTransport_ContextAlreadyCancelled(t *testing.T) {
	tr := newDefaultTransport(nil, 5*time.Second, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Do(ctx, outboundRequest{Method: http.MethodGet, URL: "https://example.com"})
	assert.Error(t, err)
}
