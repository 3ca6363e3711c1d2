package uid

import "github.com/google/uuid"

// UUID generates RFC 4122 UUID strings.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (u *UUID) Generate() string {
	return u.GenerateUUID().String()
}

// GenerateUUID returns a new time-ordered UUIDv7 value.
//
// Callers that need the typed value (e.g. an outbox primary key) should use
// this instead of parsing Generate's string form back.
func (u *UUID) GenerateUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New() // fallback: uuidV4
	}
	return id
}
