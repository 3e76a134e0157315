// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New() initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the admin HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// LedgerPath is the filesystem path of the rate-limit ledger database.
	LedgerPath string `koanf:"ledger_path"`

	// LedgerRetentionDays controls how long ledger records live before the
	// sweeper may purge them. The ledger is a rolling window, not history.
	LedgerRetentionDays int `koanf:"ledger_retention_days"`

	// LedgerSweepIntervalMins sets how often expired records are purged.
	LedgerSweepIntervalMins int `koanf:"ledger_sweep_interval_mins"`

	// QueueSize bounds the in-memory dispatch task queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of dispatch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the duplicate game-start cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RequestTimeoutSecs bounds individual calls to the game server API.
	RequestTimeoutSecs int `koanf:"request_timeout_secs"`

	// AuthToken is a fallback bearer credential applied to any bot that
	// does not carry its own. Typically injected via GAMBIT_AUTH_TOKEN.
	AuthToken string `koanf:"auth_token"`

	// Bots lists the bot identities this process runs, one orchestrator each.
	Bots []BotConfig `koanf:"bots"`
}

// BotConfig is the static policy for one bot identity. It is immutable for
// the process lifetime once loaded.
type BotConfig struct {
	// BotID is the bot's user id on the game server.
	BotID string `koanf:"bot_id"`

	// AuthToken is the bearer credential for this bot's stream and API calls.
	AuthToken string `koanf:"auth_token"`

	// VariantKeys lists playable variants. Challenges outside this set are
	// declined without touching the quota ledger.
	VariantKeys []string `koanf:"variant_keys"`

	// Clock bounds for acceptable challenges, in seconds. Challenges with
	// unlimited or correspondence time controls are always declined.
	MinInitialTimeSecs int `koanf:"min_initial_time_secs"`
	MaxInitialTimeSecs int `koanf:"max_initial_time_secs"`
	MinIncrementSecs   int `koanf:"min_increment_secs"`
	MaxIncrementSecs   int `koanf:"max_increment_secs"`

	// MaxDailyChallenges caps admissions across all challengers per day.
	MaxDailyChallenges int `koanf:"max_daily_challenges"`

	// MaxDailyUserChallenges caps admissions per challenger per day.
	MaxDailyUserChallenges int `koanf:"max_daily_user_challenges"`

	// ExcludedChallengers bypass rate limiting entirely, e.g. the
	// operator's own alternate bot identity.
	ExcludedChallengers []string `koanf:"excluded_challengers"`

	// UserMatchers are evaluated in order against the challenger id; the
	// first matching rule wins. A challenger matching no rule is declined.
	UserMatchers []UserMatcher `koanf:"user_matchers"`

	// AbortAfterSecs bounds a single move computation invocation.
	AbortAfterSecs int `koanf:"abort_after_secs"`

	// MaxRecursionDepth bounds how many times move computation may be
	// re-invoked for one game before the game is aborted.
	MaxRecursionDepth int `koanf:"max_recursion_depth"`

	// StreamRetryWaitSecs is the fixed wait between stream reconnects.
	StreamRetryWaitSecs int `koanf:"stream_retry_wait_secs"`

	// MaxStreamLifeMins rotates a healthy stream after this long.
	MaxStreamLifeMins int `koanf:"max_stream_life_mins"`

	// StatusPollGapSecs throttles online-status polls on keep-alives.
	StatusPollGapSecs int `koanf:"status_poll_gap_secs"`

	// MoveServiceURL is the move-computation service invocation endpoint.
	MoveServiceURL string `koanf:"move_service_url"`
}

// UserMatcher is one ordered allow/deny rule over challenger ids.
type UserMatcher struct {
	Include bool   `koanf:"include"`
	Pattern string `koanf:"pattern"`
}

// New creates a Config populated with defaults. Bot entries get their own
// defaults applied at load time via applyBotDefaults.
func New() *Config {
	return &Config{
		LogLevel:                "info",
		Addr:                    ":9080",
		LedgerPath:              "gambit-ledger.db",
		LedgerRetentionDays:     3,
		LedgerSweepIntervalMins: 60,
		QueueSize:               1024,
		WorkerCount:             8,
		DedupeSize:              4096,
		RequestTimeoutSecs:      10,
	}
}

// applyBotDefaults fills zero-valued bot fields with defaults that mirror a
// conservative public-bot posture.
func applyBotDefaults(b *BotConfig) {
	if len(b.VariantKeys) == 0 {
		b.VariantKeys = []string{"standard"}
	}
	if b.MinInitialTimeSecs == 0 {
		b.MinInitialTimeSecs = 60
	}
	if b.MaxInitialTimeSecs == 0 {
		b.MaxInitialTimeSecs = 600
	}
	if b.MaxIncrementSecs == 0 {
		b.MaxIncrementSecs = 5
	}
	if b.MaxDailyChallenges == 0 {
		b.MaxDailyChallenges = 100
	}
	if b.MaxDailyUserChallenges == 0 {
		b.MaxDailyUserChallenges = 10
	}
	if len(b.UserMatchers) == 0 {
		b.UserMatchers = []UserMatcher{{Include: true, Pattern: ".*"}}
	}
	if b.AbortAfterSecs == 0 {
		b.AbortAfterSecs = 30
	}
	if b.MaxRecursionDepth == 0 {
		b.MaxRecursionDepth = 8
	}
	if b.StreamRetryWaitSecs == 0 {
		b.StreamRetryWaitSecs = 30
	}
	if b.MaxStreamLifeMins == 0 {
		b.MaxStreamLifeMins = 300
	}
	if b.StatusPollGapSecs == 0 {
		b.StatusPollGapSecs = 60
	}
	if b.MoveServiceURL == "" {
		b.MoveServiceURL = "http://127.0.0.1:8091/v1/games"
	}
}
