package lichess

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

// Stream owns the lifecycle of one bot's event stream connection: connect,
// read lines, reconnect after a fixed wait on any failure, and proactively
// rotate the connection once it has been up for maxLife.
type Stream struct {
	client    *Client
	retryWait time.Duration
	maxLife   time.Duration
	log       logger.Logger

	// onKeepAlive fires on blank keep-alive lines. Optional.
	onKeepAlive func(ctx context.Context)
}

// NewStream creates a stream manager over an API client.
func NewStream(client *Client, opts ...StreamOption) *Stream {
	s := &Stream{
		client:    client,
		retryWait: 30 * time.Second,
		maxLife:   5 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("stream")
	}
	return s
}

// Run connects and forwards every non-blank line to handle, in receipt
// order, until ctx is cancelled. Connection failures and read errors are
// never fatal: the stream waits retryWait and reconnects indefinitely.
func (s *Stream) Run(ctx context.Context, handle func(ctx context.Context, line string)) {
	for {
		if ctx.Err() != nil {
			return
		}

		s.log.Info(ctx, "opening event stream")
		err := s.runSession(ctx, handle)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.log.Warn(ctx, "event stream closed", logger.Error(err))
		}

		s.log.Info(ctx, "waiting before reconnect", logger.Duration("wait", s.retryWait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryWait):
		}
	}
}

// runSession reads one connection until error, rotation, or cancellation.
// A nil return means the session ended by rotation.
func (s *Stream) runSession(ctx context.Context, handle func(ctx context.Context, line string)) error {
	// Bound the connection lifetime at the transport level so a session
	// blocked on a silent read still rotates on schedule.
	sessionCtx, cancel := context.WithTimeout(ctx, s.maxLife)
	defer cancel()

	body, err := s.client.openEventStream(sessionCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := body.Close(); cerr != nil {
			s.log.Debug(ctx, "failed to close stream body", logger.Error(cerr))
		}
	}()

	metrics.RecordStreamConnect()
	defer metrics.RecordStreamDisconnect()

	start := time.Now()
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if time.Since(start) > s.maxLife {
			s.log.Info(ctx, "rotating event stream",
				logger.Duration("connected_for", time.Since(start)))
			metrics.RecordStreamRotation()
			return nil
		}

		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			metrics.RecordStreamKeepAlive()
			if s.onKeepAlive != nil {
				s.onKeepAlive(ctx)
			}
			continue
		}

		metrics.RecordStreamLine()
		handle(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		if sessionCtx.Err() != nil && ctx.Err() == nil {
			// The lifetime deadline tore down the transport.
			metrics.RecordStreamRotation()
			return nil
		}
		return err
	}
	return nil
}
