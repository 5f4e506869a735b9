// Package snapshot models the live state of an ensemble evaluation.
//
// A Snapshot is the complete, point-in-time state: realizations keyed by
// iens (as strings, the wire form), then stages, steps and jobs keyed by
// their ids. A PartialSnapshot is a sparse diff against it. Applying a diff
// is a field-level overwrite; it never adds or removes nodes because the job
// graph is fixed once the ensemble is built. Later diffs win, in the order
// they are applied. There is no logical clock.
package snapshot
