package worker

import (
	"github.com/cespare/xxhash/v2"
)

// OwnershipStrategy narrows which outbox rows a Poller instance is allowed
// to claim, so multiple worker instances can run against the same table
// without fighting over the same rows (SELECT ... FOR UPDATE SKIP LOCKED
// already prevents double-claiming within a shared predicate; this narrows
// the predicate itself for static partition assignment).
type OwnershipStrategy interface {
	// Predicate returns a SQL fragment (appended after WHERE, using
	// placeholder $1) and its single positional argument. An empty
	// predicate claims every pending row.
	Predicate() (predicate string, args []any)
}

// SingleNode claims every pending row — the default when only one Poller
// instance runs against a topic's outbox table.
type SingleNode struct{}

func (SingleNode) Predicate() (string, []any) {
	return "", nil
}

// Partitioned claims only rows whose aggregate id hashes to partition
// Index out of Count total partitions, via the same xxhash fingerprint the
// inbox package uses for dedup hashing. Count Poller instances, each with a
// distinct Index, can then run concurrently over one outbox table.
type Partitioned struct {
	Count int
	Index int
}

func (p Partitioned) Predicate() (string, []any) {
	return "partition_owner = $1", []any{p.Index}
}

// PartitionOf hashes aggregateID into [0, count), for callers computing a
// row's PartitionOwner at insert time.
func PartitionOf(aggregateID string, count int) int32 {
	if count <= 0 {
		return 0
	}
	return int32(xxhash.Sum64String(aggregateID) % uint64(count))
}
