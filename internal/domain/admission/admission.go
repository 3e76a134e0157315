// Package admission decides whether inbound challenges are accepted,
// combining the static bot policy with the persisted daily rate limits.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/gambit/internal/adapters/ledger"
	"github.com/okian/gambit/internal/domain/model"
	"github.com/okian/gambit/internal/domain/policy"
	"github.com/okian/gambit/pkg/logger"
	"github.com/okian/gambit/pkg/metrics"
)

// Verdict is the outcome of an admission decision.
type Verdict string

const (
	Accept  Verdict = "accept"
	Decline Verdict = "decline"
)

// Decision reasons, used for logging and metrics labels.
const (
	ReasonMatcherExcluded   = "matcher_excluded"
	ReasonUnsupportedParams = "unsupported_params"
	ReasonExempt            = "exempt"
	ReasonQuotaExceeded     = "quota_exceeded"
	ReasonWithinQuota       = "within_quota"
)

// Decision carries the verdict and the rule that produced it.
type Decision struct {
	Verdict Verdict
	Reason  string
}

// Controller evaluates challenges against one bot's policy and the shared
// rate-limit ledger.
type Controller struct {
	policy *policy.Policy
	store  ledger.Store
	log    logger.Logger
	now    func() time.Time
}

// NewController creates an admission controller for one bot identity.
func NewController(p *policy.Policy, store ledger.Store, opts ...Option) *Controller {
	c := &Controller{
		policy: p,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logger.Named("admission")
	}
	return c
}

// Decide applies the admission rules in order. Policy exclusions and
// unsupported parameters decline without touching the ledger; exempt
// challengers accept without touching it. Every decision that reaches the
// quota check writes exactly one ledger record, accepted or not, so a
// declined challenger retrying all day still consumes quota.
func (c *Controller) Decide(ctx context.Context, ch model.Challenge) (Decision, error) {
	if !c.policy.AllowsUser(ch.ChallengerID) {
		return c.record(Decision{Decline, ReasonMatcherExcluded}), nil
	}

	if !c.policy.SupportsChallenge(ch) {
		return c.record(Decision{Decline, ReasonUnsupportedParams}), nil
	}

	if c.policy.IsExempt(ch.ChallengerID) {
		return c.record(Decision{Accept, ReasonExempt}), nil
	}

	day := ledger.DayBucket(c.now())

	total, err := c.store.CountByDay(ctx, day)
	if err != nil {
		return Decision{}, fmt.Errorf("count daily challenges: %w", err)
	}
	byUser, err := c.store.CountByChallengerAndDay(ctx, ch.ChallengerID, day)
	if err != nil {
		return Decision{}, fmt.Errorf("count challenger challenges: %w", err)
	}

	decision := Decision{Accept, ReasonWithinQuota}
	if total >= c.policy.MaxDailyChallenges() || byUser >= c.policy.MaxDailyUserChallenges() {
		decision = Decision{Decline, ReasonQuotaExceeded}
	}

	rec := ledger.Record{
		ChallengerID: ch.ChallengerID,
		ChallengeID:  ch.ChallengeID,
		ChallengeDay: day,
		Accepted:     decision.Verdict == Accept,
		CreatedAt:    c.now().UTC(),
	}
	if err := c.store.Put(ctx, rec); err != nil {
		// The verdict stands even if the write fails.
		c.log.Warn(ctx, "ledger write failed",
			logger.String("challenge_id", ch.ChallengeID),
			logger.String("challenger_id", ch.ChallengerID),
			logger.Error(err))
	}

	return c.record(decision), nil
}

func (c *Controller) record(d Decision) Decision {
	metrics.RecordAdmissionDecision(string(d.Verdict), d.Reason)
	return d
}
