package topic

import (
	"github.com/shandysiswandi/txmq/internal/middleware"
)

// ProducerSettings configures the produce-path wrapping stages for a
// topic. Validation tags mirror the teacher's go-playground/validator
// convention: required/min/max on the fields that drive runtime behavior.
type ProducerSettings struct {
	Retry          middleware.RetrySettings
	CircuitBreaker middleware.CircuitBreakerSettings
	Throttle       middleware.ThrottleSettings
	Batch          middleware.BatchSettings
	Outbox         middleware.OutboxSettings
}

// ConsumerSettings configures the consume-path wrapping stages for a
// topic.
type ConsumerSettings struct {
	HeaderFilter middleware.HeaderFilterSettings
	Inbox        middleware.InboxSettings
	Backpressure middleware.BackpressureSettings `validate:"required"`
}
