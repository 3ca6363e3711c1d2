// Package outbox persists produce calls in the same database transaction as
// the caller's domain writes, and lets the polling worker claim and publish
// them afterward.
package outbox

import (
	"time"

	"github.com/google/uuid"

	"github.com/shandysiswandi/txmq/internal/pkg/valueobject"
)

// Message is a single row of the outbox table: one pending (or claimed)
// produce call.
type Message struct {
	ID             uuid.UUID
	AggregateID    string
	Topic          string
	Type           string
	Payload        []byte
	Headers        valueobject.OrderedHeaders
	CreatedAt      time.Time
	PartitionOwner *int32
}

// NewMessage builds a Message ready for Insert. ID is a UUIDv7 so rows are
// roughly ordered by creation time without a secondary index.
func NewMessage(id uuid.UUID, aggregateID, topic, msgType string, payload []byte, headers valueobject.OrderedHeaders) Message {
	return Message{
		ID:          id,
		AggregateID: aggregateID,
		Topic:       topic,
		Type:        msgType,
		Payload:     payload,
		Headers:     headers,
		CreatedAt:   time.Now(),
	}
}
