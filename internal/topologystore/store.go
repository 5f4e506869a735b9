// Package topologystore defines the interface for storing and retrieving the
// fixed shape of an ensemble's job graph.
//
// # Why Topology Store Exists
//
// The topology store isolates the **immutable job graph** (which realizations,
// stages, steps and jobs exist) from the **mutable execution state** (status,
// timestamps, stream offsets) managed by nodestore.
//
// This separation lets the snapshot store reject diffs that address nodes
// outside the graph without consulting the state it is about to change, and
// lets it synthesize default state for a realization it has not heard from.
//
// # Lifecycle and Usage
//
// The topology store is:
//  1. **Created** once per evaluation session
//  2. **Populated** from the built entity.Ensemble before any worker connects
//  3. **Read-only** while workers report (every diff is checked against it)
//  4. **Discarded** when the session ends
package topologystore

import (
	"context"

	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/snapshot"
)

// Store is the interface for the fixed topology of an ensemble.
//
// # Thread-Safety Requirements
//
// Implementations MUST be safe for concurrent use. Population happens before
// workers connect, but lookups run concurrently from every connection.
//
// # Typical Implementation
//
// See internal/inmemorytopology for the reference implementation using
// maps and sync.RWMutex.
type Store interface {
	// AddRealization registers a built realization. Adding the same iens
	// twice is idempotent: the first registration is kept.
	AddRealization(ctx context.Context, r *entity.Realization) error

	// Realization returns the registered realization for iens.
	Realization(ctx context.Context, iens int) (*entity.Realization, bool)

	// Realizations returns every registered realization ordered by iens.
	Realizations(ctx context.Context) []*entity.Realization

	// Default returns a fresh copy of the default state for the realization
	// stored under key, and false if the key is unknown.
	Default(ctx context.Context, key string) (*snapshot.Realization, bool)
}
