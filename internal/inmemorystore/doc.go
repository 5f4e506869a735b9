// Package inmemorystore provides an ephemeral, thread-safe, in-memory
// implementation of the nodestore.Store interface.
//
// # Concurrency Model
//
// Each realization lives in its own entry guarded by its own RWMutex, and
// entries are kept in a sync.Map:
//   - **Independent Keys:** Workers report on their own realization, so
//     writes to different realizations never contend
//   - **Whole Diffs Only:** A diff for one realization is validated and
//     applied under that realization's write lock, so readers see it entirely
//     or not at all
//   - **Stable Key Space:** Every realization is known upfront from the
//     topology; entries are created lazily on first touch
//
// # When to Use
//
// This implementation is suitable for a single aggregator process. State is
// not persisted; a restarted aggregator starts again from the defaults.
package inmemorystore
