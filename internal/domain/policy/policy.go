// Package policy holds the compiled, immutable per-bot admission policy.
package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/okian/gambit/internal/config"
	"github.com/okian/gambit/internal/domain/model"
)

// matcher is one compiled allow/deny rule.
type matcher struct {
	include bool
	pattern *regexp.Regexp
}

// Policy is the static decision surface for one bot identity. Compiled once
// at startup and never mutated afterwards, so it is safe for concurrent use.
type Policy struct {
	botID    string
	variants map[string]struct{}

	minInitialTime time.Duration
	maxInitialTime time.Duration
	minIncrement   time.Duration
	maxIncrement   time.Duration

	maxDailyChallenges     int
	maxDailyUserChallenges int
	exempt                 map[string]struct{}
	matchers               []matcher

	abortAfter        time.Duration
	maxRecursionDepth int

	streamRetryWait time.Duration
	maxStreamLife   time.Duration
	statusPollGap   time.Duration
}

// Compile validates and compiles a BotConfig into a Policy. Pattern
// compilation failures are fatal configuration errors.
func Compile(cfg config.BotConfig) (*Policy, error) {
	p := &Policy{
		botID:                  strings.ToLower(cfg.BotID),
		variants:               make(map[string]struct{}, len(cfg.VariantKeys)),
		minInitialTime:         time.Duration(cfg.MinInitialTimeSecs) * time.Second,
		maxInitialTime:         time.Duration(cfg.MaxInitialTimeSecs) * time.Second,
		minIncrement:           time.Duration(cfg.MinIncrementSecs) * time.Second,
		maxIncrement:           time.Duration(cfg.MaxIncrementSecs) * time.Second,
		maxDailyChallenges:     cfg.MaxDailyChallenges,
		maxDailyUserChallenges: cfg.MaxDailyUserChallenges,
		exempt:                 make(map[string]struct{}, len(cfg.ExcludedChallengers)),
		abortAfter:             time.Duration(cfg.AbortAfterSecs) * time.Second,
		maxRecursionDepth:      cfg.MaxRecursionDepth,
		streamRetryWait:        time.Duration(cfg.StreamRetryWaitSecs) * time.Second,
		maxStreamLife:          time.Duration(cfg.MaxStreamLifeMins) * time.Minute,
		statusPollGap:          time.Duration(cfg.StatusPollGapSecs) * time.Second,
	}

	for _, key := range cfg.VariantKeys {
		p.variants[key] = struct{}{}
	}
	for _, id := range cfg.ExcludedChallengers {
		p.exempt[strings.ToLower(id)] = struct{}{}
	}
	for i, m := range cfg.UserMatchers {
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: user_matchers[%d] %q: %w", ErrBadPattern, i, m.Pattern, err)
		}
		p.matchers = append(p.matchers, matcher{include: m.Include, pattern: re})
	}

	return p, nil
}

// BotID returns the bot's lowercased user id.
func (p *Policy) BotID() string { return p.botID }

// AllowsUser evaluates the ordered matchers against a challenger id. The
// first matching rule wins; a challenger matching no rule is not allowed.
func (p *Policy) AllowsUser(challengerID string) bool {
	for _, m := range p.matchers {
		if m.pattern.MatchString(challengerID) {
			return m.include
		}
	}
	return false
}

// SupportsChallenge reports whether the variant and time control fall
// inside this bot's playable envelope. Only real-time clock games qualify.
func (p *Policy) SupportsChallenge(c model.Challenge) bool {
	if _, ok := p.variants[c.VariantKey]; !ok {
		return false
	}
	if c.TimeControl.Type != model.TimeControlClock {
		return false
	}
	limit := time.Duration(c.TimeControl.LimitSecs) * time.Second
	increment := time.Duration(c.TimeControl.IncrementSecs) * time.Second
	return limit >= p.minInitialTime && limit <= p.maxInitialTime &&
		increment >= p.minIncrement && increment <= p.maxIncrement
}

// IsExempt reports whether a challenger bypasses rate limiting.
func (p *Policy) IsExempt(challengerID string) bool {
	_, ok := p.exempt[strings.ToLower(challengerID)]
	return ok
}

// MaxDailyChallenges returns the global daily admission cap.
func (p *Policy) MaxDailyChallenges() int { return p.maxDailyChallenges }

// MaxDailyUserChallenges returns the per-challenger daily admission cap.
func (p *Policy) MaxDailyUserChallenges() int { return p.maxDailyUserChallenges }

// AbortAfter bounds one move computation invocation.
func (p *Policy) AbortAfter() time.Duration { return p.abortAfter }

// MaxRecursionDepth bounds re-invocations per game.
func (p *Policy) MaxRecursionDepth() int { return p.maxRecursionDepth }

// StreamRetryWait is the fixed wait between stream reconnect attempts.
func (p *Policy) StreamRetryWait() time.Duration { return p.streamRetryWait }

// MaxStreamLife caps continuous stream connection time before rotation.
func (p *Policy) MaxStreamLife() time.Duration { return p.maxStreamLife }

// StatusPollGap throttles online-status polls triggered by keep-alives.
func (p *Policy) StatusPollGap() time.Duration { return p.statusPollGap }
