package middleware

import "time"

// RetrySettings configures the produce-path Retry stage.
type RetrySettings struct {
	Enabled         bool          `validate:"-"`
	MaxAttempts     uint64        `validate:"required_if=Enabled true,omitempty,min=1"`
	InitialBackoff  time.Duration `validate:"required_if=Enabled true,omitempty,min=1"`
	MaxBackoff      time.Duration `validate:"required_if=Enabled true,omitempty,min=1"`
}

// IsEnabled implements Enableable.
func (s RetrySettings) IsEnabled() bool { return s.Enabled }

// CircuitBreakerSettings configures the produce-path CircuitBreaker stage.
type CircuitBreakerSettings struct {
	Enabled          bool          `validate:"-"`
	FailureThreshold uint32        `validate:"required_if=Enabled true,omitempty,min=1"`
	OpenDuration     time.Duration `validate:"required_if=Enabled true,omitempty,min=1"`
	HalfOpenProbes   uint32        `validate:"required_if=Enabled true,omitempty,min=1"`
}

// IsEnabled implements Enableable.
func (s CircuitBreakerSettings) IsEnabled() bool { return s.Enabled }

// ThrottleSettings configures the produce-path Throttle stage.
type ThrottleSettings struct {
	Enabled       bool    `validate:"-"`
	RatePerSecond float64 `validate:"required_if=Enabled true,omitempty,gt=0"`
	Burst         int     `validate:"required_if=Enabled true,omitempty,min=1"`
}

// IsEnabled implements Enableable.
func (s ThrottleSettings) IsEnabled() bool { return s.Enabled }

// BatchSettings configures the produce-path Batch stage.
type BatchSettings struct {
	Enabled   bool          `validate:"-"`
	MaxItems  int           `validate:"required_if=Enabled true,omitempty,min=1"`
	MaxLinger time.Duration `validate:"required_if=Enabled true,omitempty,min=1"`
}

// IsEnabled implements Enableable.
func (s BatchSettings) IsEnabled() bool { return s.Enabled }

// ForgetMode names how a direct publish treats the broker's outcome. No
// stage in this module reads a ForgetMode: the descriptions below name each
// mode, and none of them changes how a produce call is published.
type ForgetMode int

const (
	// ForgetModeNone performs no direct publish; BackgroundOnly relies
	// entirely on the outbox worker.
	ForgetModeNone ForgetMode = iota
	// ForgetModeFireAndForget publishes asynchronously without awaiting
	// the broker ack.
	ForgetModeFireAndForget
	// ForgetModeAwait publishes and waits up to a timeout for the ack,
	// discarding the outcome either way.
	ForgetModeAwait
)

// ForgetSettings holds forget-strategy options. Neither the chain builders
// nor ForgetOutboxStage read it (that stage is configured by OutboxSettings
// alone), so Enabled, Mode and Timeout have no effect on publishing.
type ForgetSettings struct {
	Enabled bool          `validate:"-"`
	Mode    ForgetMode    `validate:"-"`
	Timeout time.Duration `validate:"-"`
}

// IsEnabled implements Enableable.
func (s ForgetSettings) IsEnabled() bool { return s.Enabled }

// OutboxStrategy selects how a produce call is persisted/published.
type OutboxStrategy int

const (
	// OutboxStrategyNone performs no outbox write; ForgetOutboxStage passes
	// the envelope straight on to the terminal publish stage.
	OutboxStrategyNone OutboxStrategy = iota
	// OutboxStrategyBackgroundOnly inserts an outbox row and relies
	// exclusively on the outbox worker to publish it.
	OutboxStrategyBackgroundOnly
	// OutboxStrategyImmediateWithFallback inserts an outbox row, commits,
	// then attempts a direct publish; success deletes the row, failure
	// leaves it for the worker.
	OutboxStrategyImmediateWithFallback
)

// OutboxSettings configures the produce-path outbox decision.
type OutboxSettings struct {
	Strategy OutboxStrategy `validate:"-"`
	// PartitionCount, when non-zero, stamps every inserted row's
	// PartitionOwner with hash(aggregateId) mod PartitionCount, so a
	// worker.Partitioned{Count: PartitionCount} poller can claim its share.
	// Zero leaves PartitionOwner unset — only a worker.SingleNode poller
	// will ever claim these rows.
	PartitionCount int `validate:"gte=0"`
}

// HeaderFilterSettings configures the consume-path HeaderFilter stage. All
// configured filters must match (AND) for the message to proceed.
type HeaderFilterSettings struct {
	Enabled bool              `validate:"-"`
	Filters map[string]string `validate:"-"`
}

// IsEnabled implements Enableable.
func (s HeaderFilterSettings) IsEnabled() bool { return s.Enabled }

// InboxSettings configures the consume-path Inbox dedup stage.
type InboxSettings struct {
	Enabled bool          `validate:"-"`
	TTL     time.Duration `validate:"required_if=Enabled true,omitempty,min=1"`
}

// IsEnabled implements Enableable.
func (s InboxSettings) IsEnabled() bool { return s.Enabled }

// BackpressureMode selects how the consumer runtime's bounded channel
// behaves once full.
type BackpressureMode int

const (
	// BackpressureApply pauses the fetch loop until the buffer drains
	// below LowWaterMarkRatio (the default).
	BackpressureApply BackpressureMode = iota
	// BackpressureDropOldest evicts the oldest buffered message to admit
	// a new one rather than pausing the fetch loop.
	BackpressureDropOldest
)

// BackpressureSettings configures the consumer runtime's bounded channel.
type BackpressureSettings struct {
	Mode             BackpressureMode `validate:"-"`
	Buffer           int              `validate:"required,min=1"`
	HighWaterMarkRatio float64        `validate:"gt=0,lte=1"`
	LowWaterMarkRatio  float64        `validate:"gte=0,ltfield=HighWaterMarkRatio"`
}

// DefaultMaxBufferedMessages is the consumer runtime's default bounded
// channel capacity (spec §4.6).
const DefaultMaxBufferedMessages = 1000

// DefaultBackpressureSettings returns the spec's default watermark
// configuration.
func DefaultBackpressureSettings() BackpressureSettings {
	return BackpressureSettings{
		Mode:               BackpressureApply,
		Buffer:             DefaultMaxBufferedMessages,
		HighWaterMarkRatio: 0.9,
		LowWaterMarkRatio:  0.5,
	}
}
