// Package service wires the stream, admission, and dispatch components
// into one supervised control loop per bot identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/gambit/internal/adapters/engine"
	"github.com/okian/gambit/internal/adapters/ledger"
	"github.com/okian/gambit/internal/adapters/lichess"
	taskqueue "github.com/okian/gambit/internal/adapters/mq/queue"
	workerpool "github.com/okian/gambit/internal/adapters/mq/worker"
	"github.com/okian/gambit/internal/config"
	"github.com/okian/gambit/internal/dispatch"
	"github.com/okian/gambit/internal/domain/admission"
	"github.com/okian/gambit/internal/domain/dedupe"
	"github.com/okian/gambit/internal/domain/model"
	"github.com/okian/gambit/internal/domain/policy"
	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

// Service supervises one botLoop per configured bot identity. Loops share
// the rate-limit ledger and nothing else; one bot's stream failure never
// touches another's.
type Service struct {
	mu sync.RWMutex

	cfg   *config.Config
	store ledger.Store
	loops []*botLoop

	lichessBaseURL string

	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	logger logger.Logger
}

// botLoop is the per-bot failure domain: its own stream, admission
// controller, dispatcher, queue, and worker pool.
type botLoop struct {
	policy     *policy.Policy
	client     *lichess.Client
	stream     *lichess.Stream
	admission  *admission.Controller
	dispatcher *dispatch.Dispatcher
	queue      *taskqueue.InMemoryQueue
	pool       *workerpool.Pool
	log        logger.Logger

	pollMu   sync.Mutex
	lastPoll time.Time
	pollGap  time.Duration
}

// New constructs a Service from loaded configuration.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg: cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start compiles bot policies, opens the ledger, and launches one stream
// loop per bot. Configuration errors here are the only fatal errors.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}

	openedStore := false
	if s.store == nil {
		store, err := ledger.Open(s.cfg.LedgerPath,
			ledger.WithRetentionDays(s.cfg.LedgerRetentionDays),
			ledger.WithSweepInterval(time.Duration(s.cfg.LedgerSweepIntervalMins)*time.Minute),
		)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		s.store = store
		openedStore = true
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	for i := range s.cfg.Bots {
		loop, err := s.buildLoop(&s.cfg.Bots[i])
		if err != nil {
			cancel()
			if openedStore {
				_ = s.store.Close()
				s.store = nil
			}
			s.loops = nil
			return fmt.Errorf("bot %s: %w", s.cfg.Bots[i].BotID, err)
		}
		s.loops = append(s.loops, loop)
	}

	for _, loop := range s.loops {
		loop.pool.Start(runCtx)
		s.wg.Add(1)
		go func(l *botLoop) {
			defer s.wg.Done()
			l.stream.Run(runCtx, l.handleLine)
		}(loop)
	}

	s.started = true
	s.logger.Info(ctx, "orchestrator started",
		logger.Int("bots", len(s.loops)),
		logger.String("ledger_path", s.cfg.LedgerPath),
	)
	return nil
}

// Stop tears down all loops and closes the ledger.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping orchestrator...")

	s.cancel()
	s.wg.Wait()

	for _, loop := range s.loops {
		if err := loop.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete",
				logger.String("bot_id", loop.policy.BotID()),
				logger.Error(err))
		}
		_ = loop.queue.Close()
	}

	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "ledger close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "orchestrator stopped")
}

// buildLoop assembles a bot's components. Must be called with s.mu held.
func (s *Service) buildLoop(bc *config.BotConfig) (*botLoop, error) {
	compiled, err := policy.Compile(*bc)
	if err != nil {
		return nil, err
	}

	log := logger.Named("bot").Named(compiled.BotID())

	clientOpts := []lichess.ClientOption{
		lichess.WithRequestTimeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second),
		lichess.WithClientLogger(log.Named("lichess")),
	}
	if s.lichessBaseURL != "" {
		clientOpts = append(clientOpts, lichess.WithBaseURL(s.lichessBaseURL))
	}
	client := lichess.NewClient(bc.AuthToken, clientOpts...)

	queue := taskqueue.NewInMemoryQueue(
		taskqueue.WithCapacity(s.cfg.QueueSize),
		taskqueue.WithBufferSize(s.cfg.QueueSize),
	)

	invoker := engine.NewClient(bc.MoveServiceURL,
		engine.WithRequestTimeout(compiled.AbortAfter()),
		engine.WithLogger(log.Named("engine")),
	)

	dispatcher := dispatch.NewDispatcher(queue, invoker, client,
		dispatch.WithAbortAfter(compiled.AbortAfter()),
		dispatch.WithMaxRecursionDepth(compiled.MaxRecursionDepth()),
		dispatch.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))),
		dispatch.WithLogger(log.Named("dispatch")),
	)

	loop := &botLoop{
		policy: compiled,
		client: client,
		admission: admission.NewController(compiled, s.store,
			admission.WithLogger(log.Named("admission"))),
		dispatcher: dispatcher,
		queue:      queue,
		pool:       workerpool.NewPool(s.cfg.WorkerCount, queue, dispatcher),
		log:        log,
		pollGap:    compiled.StatusPollGap(),
	}

	loop.stream = lichess.NewStream(client,
		lichess.WithRetryWait(compiled.StreamRetryWait()),
		lichess.WithMaxStreamLife(compiled.MaxStreamLife()),
		lichess.WithKeepAliveHook(loop.onKeepAlive),
		lichess.WithStreamLogger(log.Named("stream")),
	)

	return loop, nil
}

// handleLine routes one parsed event. Every error here is recoverable:
// log and move to the next line.
func (l *botLoop) handleLine(ctx context.Context, line string) {
	event := model.Parse(line)
	metrics.RecordEventReceived(event.EventType())

	switch e := event.(type) {
	case model.GameStart:
		if err := l.dispatcher.OnGameStart(ctx, e.GameID); err != nil {
			l.log.Warn(ctx, "game start dispatch failed",
				logger.String("game_id", e.GameID),
				logger.Error(err))
		}
	case model.Challenge:
		l.handleChallenge(ctx, e)
	case model.Unrecognized:
		metrics.RecordEventUnrecognized()
		l.log.Debug(ctx, "unrecognized event", logger.String("raw", e.Raw))
	}
}

func (l *botLoop) handleChallenge(ctx context.Context, ch model.Challenge) {
	decision, err := l.admission.Decide(ctx, ch)
	if err != nil {
		l.log.Warn(ctx, "admission decision failed",
			logger.String("challenge_id", ch.ChallengeID),
			logger.Error(err))
		return
	}

	switch decision.Verdict {
	case admission.Accept:
		err = l.client.AcceptChallenge(ctx, ch.ChallengeID)
	case admission.Decline:
		err = l.client.DeclineChallenge(ctx, ch.ChallengeID)
	}
	if err != nil {
		l.log.Warn(ctx, "failed to apply challenge decision",
			logger.String("challenge_id", ch.ChallengeID),
			logger.String("verdict", string(decision.Verdict)),
			logger.Error(err))
		return
	}

	l.log.Info(ctx, "challenge decided",
		logger.String("challenge_id", ch.ChallengeID),
		logger.String("challenger_id", ch.ChallengerID),
		logger.String("verdict", string(decision.Verdict)),
		logger.String("reason", decision.Reason))
}

// onKeepAlive polls our own online status at most once per pollGap. Being
// reported offline while streaming means the connection has gone bad on
// the remote side.
func (l *botLoop) onKeepAlive(ctx context.Context) {
	l.pollMu.Lock()
	if time.Since(l.lastPoll) < l.pollGap {
		l.pollMu.Unlock()
		return
	}
	l.lastPoll = time.Now()
	l.pollMu.Unlock()

	status, err := l.client.FetchUserStatus(ctx, l.policy.BotID())
	if err != nil {
		l.log.Debug(ctx, "status poll failed", logger.Error(err))
		return
	}
	if !status.Online {
		metrics.RecordErrorByComponent("stream", "reported_offline")
		l.log.Warn(ctx, "remote reports bot offline while streaming")
	}
}

// Reinvoke routes a move-service callback to the bot holding the game's
// session.
func (s *Service) Reinvoke(ctx context.Context, gameID string) error {
	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	for _, loop := range loops {
		err := loop.dispatcher.Reinvoke(ctx, gameID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dispatch.ErrUnknownGame) {
			return err
		}
	}
	return fmt.Errorf("%w: %s", dispatch.ErrUnknownGame, gameID)
}

// EndGame drops any session held for the game.
func (s *Service) EndGame(ctx context.Context, gameID string) {
	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	for _, loop := range loops {
		loop.dispatcher.EndGame(ctx, gameID)
	}
}

// ForwardChallenge sends an outbound challenge on behalf of a bot.
func (s *Service) ForwardChallenge(ctx context.Context, botID, user string, params lichess.ChallengeParams) (int, string, error) {
	s.mu.RLock()
	loops := s.loops
	s.mu.RUnlock()

	for _, loop := range loops {
		if loop.policy.BotID() == botID {
			return loop.client.PostChallenge(ctx, user, params)
		}
	}
	return 0, "", fmt.Errorf("%w: %s", ErrUnknownBot, botID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started": s.started,
		"bots":    len(s.loops),
	}

	perBot := make(map[string]interface{}, len(s.loops))
	for _, loop := range s.loops {
		perBot[loop.policy.BotID()] = map[string]interface{}{
			"activeSessions": loop.dispatcher.ActiveSessions(),
			"queueLength":    loop.queue.Len(ctx),
		}
	}
	stats["perBot"] = perBot

	return stats
}
