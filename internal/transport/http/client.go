package http

import (
	"net/http"
	"time"

	"github.com/oshokin/media-grabber/internal/utils"
)

// NewClient creates an HTTP client that injects the given User-Agent and logs traffic at debug level.
// An empty userAgent falls back to DefaultUserAgent, a non-positive timeout to DefaultTimeout.
func NewClient(userAgent string, timeout time.Duration) *http.Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Transport: NewUserAgentInjector(
			NewLogTransport(http.DefaultTransport, 0),
			utils.NewSimpleUserAgentProvider(userAgent)),
		Timeout: timeout,
	}
}
