package engine

import (
	"net/http"
	"time"

	"github.com/okian/gambit/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithRequestTimeout bounds each invocation request.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithLogger sets the logger used by the client.
func WithLogger(log logger.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}
