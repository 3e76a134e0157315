// Package lichess talks to the game server's REST and streaming APIs on
// behalf of one bot identity.
package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

const (
	defaultBaseURL        = "https://lichess.org"
	defaultRequestTimeout = 10 * time.Second
)

// Client is an authenticated API client. API calls share a bounded-timeout
// HTTP client; the event stream uses a separate client with no timeout so
// long-lived reads are not cut off.
type Client struct {
	baseURL    string
	token      string
	api        *http.Client
	streamHTTP *http.Client
	log        logger.Logger
}

// NewClient creates a client using the given bearer token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      token,
		api:        &http.Client{Timeout: defaultRequestTimeout},
		streamHTTP: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("lichess")
	}
	return c
}

// AcceptChallenge accepts an inbound challenge.
func (c *Client) AcceptChallenge(ctx context.Context, challengeID string) error {
	return c.post(ctx, "/api/challenge/"+challengeID+"/accept", nil)
}

// DeclineChallenge declines an inbound challenge.
func (c *Client) DeclineChallenge(ctx context.Context, challengeID string) error {
	return c.post(ctx, "/api/challenge/"+challengeID+"/decline", nil)
}

// AbortGame aborts a game the bot is playing.
func (c *Client) AbortGame(ctx context.Context, gameID string) error {
	return c.post(ctx, "/api/bot/game/"+gameID+"/abort", nil)
}

// ChallengeParams are the form parameters of an outbound challenge.
type ChallengeParams struct {
	Rated          bool
	ClockLimitSecs int
	ClockIncSecs   int
	Color          string
}

// PostChallenge sends an outbound challenge to another user, returning the
// remote status code and response body.
func (c *Client) PostChallenge(ctx context.Context, user string, params ChallengeParams) (int, string, error) {
	form := url.Values{}
	form.Set("rated", strconv.FormatBool(params.Rated))
	form.Set("clock.limit", strconv.Itoa(params.ClockLimitSecs))
	form.Set("clock.increment", strconv.Itoa(params.ClockIncSecs))
	color := params.Color
	if color == "" {
		color = "random"
	}
	form.Set("color", color)

	req, err := c.newRequest(ctx, http.MethodPost, "/api/challenge/"+user, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.api.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer c.closeBody(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return resp.StatusCode, string(body), nil
}

// UserStatus is one entry from the users status endpoint.
type UserStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

// FetchUserStatus looks up the online status of a single user.
func (c *Client) FetchUserStatus(ctx context.Context, userID string) (UserStatus, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/users/status?ids="+url.QueryEscape(userID), nil)
	if err != nil {
		return UserStatus{}, err
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return UserStatus{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return UserStatus{}, fmt.Errorf("%w: status %d", ErrRemoteStatus, resp.StatusCode)
	}

	var statuses []UserStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return UserStatus{}, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if len(statuses) == 0 {
		return UserStatus{}, fmt.Errorf("%w: no status for %s", ErrRemoteStatus, userID)
	}
	return statuses[0], nil
}

// openEventStream opens the NDJSON event stream. The caller owns the body.
func (c *Client) openEventStream(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stream/event", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.streamHTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.closeBody(resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrRemoteStatus, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) post(ctx context.Context, path string, body io.Reader) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.api.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrRemoteStatus, path, resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

func (c *Client) closeBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, io.LimitReader(body, 1<<16)); err != nil {
		metrics.RecordErrorByComponent("lichess", "drain_body")
	}
	if err := body.Close(); err != nil {
		c.log.Debug(context.Background(), "failed to close response body", logger.Error(err))
	}
}
