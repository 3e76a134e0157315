// Package engine invokes the external move-computation service that plays
// out a game the orchestrator has accepted.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/gambit/internal/domain/model"
	"github.com/okian/gambit/pkg/logger"
)

const defaultRequestTimeout = 10 * time.Second

// invocation is the wire payload of one computation request. The service
// must tolerate re-invocation for the same game at increasing depth.
type invocation struct {
	GameID         string `json:"gameId"`
	RecursionDepth int    `json:"recursionDepth"`
}

// Invoker triggers one bounded move-computation run for a game.
type Invoker interface {
	Invoke(ctx context.Context, task model.Task) error
}

// Client is an HTTP Invoker posting JSON invocation requests.
type Client struct {
	endpoint string
	http     *http.Client
	log      logger.Logger
}

// NewClient creates an engine client for the given invocation endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("engine")
	}
	return c
}

// Invoke posts the invocation request. Any non-2xx response is an error;
// the caller decides whether the game must be aborted.
func (c *Client) Invoke(ctx context.Context, task model.Task) error {
	payload, err := json.Marshal(invocation{
		GameID:         task.GameID,
		RecursionDepth: task.Depth,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvokeFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvokeFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvokeFailed, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Debug(ctx, "failed to close response body", logger.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d for game %s", ErrEngineStatus, resp.StatusCode, task.GameID)
	}
	return nil
}
