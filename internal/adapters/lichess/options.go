package lichess

import (
	"context"
	"net/http"
	"time"

	"github.com/okian/gambit/pkg/logger"
)

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL, used by tests.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithRequestTimeout bounds each non-streaming API call.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.api.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the API HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.api = client
		}
	}
}

// WithClientLogger sets the logger used by the client.
func WithClientLogger(log logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// StreamOption applies a configuration option to the Stream.
type StreamOption func(*Stream)

// WithRetryWait sets the fixed wait between reconnect attempts.
func WithRetryWait(wait time.Duration) StreamOption {
	return func(s *Stream) {
		if wait > 0 {
			s.retryWait = wait
		}
	}
}

// WithMaxStreamLife sets the proactive rotation interval.
func WithMaxStreamLife(life time.Duration) StreamOption {
	return func(s *Stream) {
		if life > 0 {
			s.maxLife = life
		}
	}
}

// WithKeepAliveHook registers a callback fired on blank keep-alive lines.
func WithKeepAliveHook(hook func(ctx context.Context)) StreamOption {
	return func(s *Stream) {
		s.onKeepAlive = hook
	}
}

// WithStreamLogger sets the logger used by the stream.
func WithStreamLogger(log logger.Logger) StreamOption {
	return func(s *Stream) {
		s.log = log
	}
}
