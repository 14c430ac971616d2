package artwork

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/media-grabber/internal/config"
)

// TestNewClient tests the NewClient function.
func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(&config.Config{CoverCacheSize: 4})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient(&config.Config{CoverCacheSize: 0})
	require.Error(t, err)
}

// TestNewClient_Settings tests that the configured User-Agent reaches the thumbnail server.
func TestNewClient_Settings(t *testing.T) {
	t.Parallel()

	var (
		userAgents = make(chan string, 1)
		thumbnail  = encodePNG(t, newStripedImage(40, 40))
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgents <- r.Header.Get("User-Agent")

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(thumbnail)
	}))
	defer server.Close()

	client, err := NewClient(&config.Config{
		CoverCacheSize:       4,
		UserAgent:            "media-grabber-test/1.0",
		ParsedArtworkTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	_, err = client.FetchCover(context.Background(), server.URL+"/thumb.png")
	require.NoError(t, err)

	assert.Equal(t, "media-grabber-test/1.0", <-userAgents)
}

// TestClient_FetchCover tests fetching and caching of covers.
func TestClient_FetchCover(t *testing.T) {
	t.Parallel()

	var (
		requests  atomic.Int32
		thumbnail = encodePNG(t, newStripedImage(160, 90))
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		if r.URL.Path != "/thumb.png" {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(thumbnail)
	}))
	defer server.Close()

	client, err := newClient(server.Client(), 2)
	require.NoError(t, err)

	ctx := context.Background()

	cover, err := client.FetchCover(ctx, server.URL+"/thumb.png")
	require.NoError(t, err)

	decoded, format, err := image.DecodeConfig(bytes.NewReader(cover))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 90, decoded.Width)
	assert.Equal(t, 90, decoded.Height)

	cached, err := client.FetchCover(ctx, server.URL+"/thumb.png")
	require.NoError(t, err)
	assert.Equal(t, cover, cached)
	assert.Equal(t, int32(1), requests.Load())

	_, err = client.FetchCover(ctx, server.URL+"/missing.png")
	require.ErrorIs(t, err, ErrUnexpectedHTTPStatus)

	_, err = client.FetchCover(ctx, "  ")
	require.ErrorIs(t, err, ErrEmptyURL)
}

// TestClient_FetchCover_NotAnImage tests that undecodable bodies are not cached.
func TestClient_FetchCover_NotAnImage(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)

		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer server.Close()

	client, err := newClient(server.Client(), 2)
	require.NoError(t, err)

	for range 2 {
		_, err = client.FetchCover(context.Background(), server.URL)
		require.ErrorIs(t, err, ErrUnsupportedImage)
	}

	assert.Equal(t, int32(2), requests.Load())
}
