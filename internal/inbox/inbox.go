// Package inbox filters duplicate deliveries using a persistent fingerprint
// store, with an optional Redis fast-path cache in front of it so most
// duplicates never touch Postgres.
package inbox

import (
	"time"

	"github.com/cespare/xxhash/v2"
)

// Message is a single row of the inbox table: a consumed message's
// fingerprint, kept to reject redelivery. The table carries no columns
// beyond these two (spec §6.2) — the type and dedup value that produced
// HashID are not persisted, only their hash.
type Message struct {
	HashID     uint64
	ConsumedAt time.Time
}

const maxScratch = 512

// Fingerprint computes the dedup hash for a (type, dedupValue) pair. For
// short keys it hashes from a stack-allocated scratch buffer instead of
// building an intermediate string, avoiding a heap allocation per consumed
// message on the hot path.
func Fingerprint(typeName, dedupValue string) uint64 {
	n := len(typeName) + len(dedupValue)
	if n <= maxScratch {
		var scratch [maxScratch]byte
		copy(scratch[:], typeName)
		copy(scratch[len(typeName):], dedupValue)
		return xxhash.Sum64(scratch[:n])
	}

	h := xxhash.New()
	_, _ = h.WriteString(typeName)
	_, _ = h.WriteString(dedupValue)
	return h.Sum64()
}
