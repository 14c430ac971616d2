package artwork

//go:generate $MOCKGEN -source=client.go -destination=mocks/client_mock.go

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	http_transport "github.com/oshokin/media-grabber/internal/transport/http"
)

// Client defines the interface for fetching cover art.
type Client interface {
	// FetchCover downloads the thumbnail at url and returns it as a square JPEG.
	FetchCover(ctx context.Context, url string) ([]byte, error)
}

// ClientImpl fetches thumbnails over HTTP and caches the converted covers.
type ClientImpl struct {
	// httpClient is the HTTP client for making requests.
	httpClient *http.Client
	// coversCache keeps converted covers by thumbnail URL, since playlist entries often share artwork.
	coversCache *lru.Cache[string, []byte]
}

// maxThumbnailSize is the largest accepted thumbnail body in bytes.
const maxThumbnailSize = 16 * 1024 * 1024

// Static error definitions for better error handling.
var (
	// ErrEmptyURL indicates that no thumbnail URL was given.
	ErrEmptyURL = errors.New("thumbnail URL is empty")
	// ErrUnexpectedHTTPStatus indicates an unexpected HTTP status code was received.
	ErrUnexpectedHTTPStatus = errors.New("unexpected HTTP status")
	// ErrThumbnailTooLarge indicates that the thumbnail exceeds maxThumbnailSize.
	ErrThumbnailTooLarge = errors.New("thumbnail is too large")
	// ErrUnsupportedImage indicates that the thumbnail could not be decoded.
	ErrUnsupportedImage = errors.New("unsupported thumbnail image")
)

// NewClient creates a cover art client using the configured cache size, User-Agent and timeout.
func NewClient(cfg *config.Config) (Client, error) {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = http_transport.DefaultUserAgent
	}

	timeout := cfg.ParsedArtworkTimeout
	if timeout <= 0 {
		timeout = http_transport.DefaultTimeout
	}

	return newClient(http_transport.NewClient(userAgent, timeout), int(cfg.CoverCacheSize))
}

func newClient(httpClient *http.Client, cacheSize int) (*ClientImpl, error) {
	coversCache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create covers cache: %w", err)
	}

	return &ClientImpl{
		httpClient:  httpClient,
		coversCache: coversCache,
	}, nil
}

// FetchCover downloads the thumbnail at url and returns it as a square JPEG.
func (c *ClientImpl) FetchCover(ctx context.Context, url string) ([]byte, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrEmptyURL
	}

	if cover, ok := c.coversCache.Get(url); ok {
		logger.Debugf(ctx, "Using cached cover for %s", url)

		return cover, nil
	}

	data, err := c.download(ctx, url)
	if err != nil {
		return nil, err
	}

	cover, err := ConvertToCover(data)
	if err != nil {
		return nil, err
	}

	c.coversCache.Add(url, cover)

	return cover, nil
}

func (c *ClientImpl) download(ctx context.Context, url string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}

	defer response.Body.Close() //nolint:errcheck // Error on close is not critical here.

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedHTTPStatus, response.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxThumbnailSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}

	if len(data) > maxThumbnailSize {
		return nil, ErrThumbnailTooLarge
	}

	return data, nil
}
