// Package nodestore defines the interface of the snapshot store: the
// authoritative, in-memory state of one ensemble evaluation.
//
// # Why Node Store Exists
//
// Workers report progress as partial snapshots over independent
// connections. The node store is the single place those diffs are merged,
// and the only place monitors read from. It owns its own copy of the state
// and never hands out references to it; every read returns a copy.
//
// # Lifecycle and Usage
//
// The node store is:
//  1. **Created** once per evaluation iteration from a full default snapshot
//  2. **Mutated** concurrently by the aggregator as diffs arrive
//  3. **Queried** by monitors (HTTP snapshot endpoint, CLI progress output)
//  4. **Discarded** when the session ends
//
// # Merge Policy
//
// Later diffs win field by field, in arrival order. No sequence numbers are
// kept, so two paths reporting on the same node can overwrite each other out
// of real-time order. Repeating an identical diff is a no-op, which makes
// at-least-once delivery from the resilient client safe.
package nodestore

import (
	"context"

	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/snapshot"
)

// Update describes one change applied to the store, as seen by subscribers.
type Update struct {
	// Iens is the realization the change applied to.
	Iens int
	// Full is true when a whole realization was installed.
	Full bool
	// Partial is the applied diff for partial updates, nil for full ones.
	Partial *snapshot.RealizationDiff
}

// Store is the interface of the snapshot store.
//
// # Thread-Safety Requirements
//
// Implementations MUST accept concurrent writes from many connections.
// Writes to the same realization are serialized; writes to different
// realizations may run in parallel. Reads may run concurrently with writes
// but never observe a partially applied diff. Every diff addresses a single
// realization, so a Snapshot is consistent per realization; realizations
// written concurrently may be seen at different points in time.
//
// # Typical Implementation
//
// See internal/inmemorystore for the reference implementation with one
// lock per realization.
type Store interface {
	// ApplyFull installs or replaces the whole state of realization iens.
	// Nodes the full realization omits keep their default state. Applying
	// the same full realization twice leaves the store unchanged.
	//
	// Returns *snapshot.UnknownAddressError if full names nodes outside the
	// job graph, or if iens is not part of the ensemble.
	ApplyFull(ctx context.Context, iens int, full *snapshot.Realization) error

	// ApplyPartial merges a diff into realization iens.
	//
	// Returns *snapshot.UnknownAddressError, and changes nothing, if the diff
	// references a node outside the job graph. A realization nothing was
	// installed for yet starts from its default state.
	ApplyPartial(ctx context.Context, iens int, diff *snapshot.RealizationDiff) error

	// Query returns a copy of the node or subtree at addr.
	Query(ctx context.Context, addr nodeid.Address) (*snapshot.Node, error)

	// Snapshot returns a copy of the whole state.
	Snapshot(ctx context.Context) *snapshot.Snapshot

	// Subscribe registers for updates. Slow subscribers miss updates rather
	// than blocking writers; they are expected to re-query. The returned
	// function unsubscribes and closes the channel.
	Subscribe(buffer int) (<-chan Update, func())
}
