// Package state defines the fixed status enumeration shared by the entity
// model, the snapshot store and the wire protocol.
//
// Monitors treat the values as opaque tokens, so the string form is part of
// the wire contract and must not change.
package state

import "fmt"

// Status is the execution status of any addressable node (realization,
// stage, step or job).
type Status string

const (
	// Unknown is the status of a node nothing has been reported for yet.
	Unknown Status = "Unknown"
	// Waiting indicates the node is known to the evaluator but not yet submitted.
	Waiting Status = "Waiting"
	// Pending indicates the node was handed to a queue driver and awaits a slot.
	Pending Status = "Pending"
	// Running indicates the node is executing.
	Running Status = "Running"
	// Finished indicates the node completed successfully.
	Finished Status = "Finished"
	// Failed indicates the node terminated unsuccessfully.
	Failed Status = "Failed"
)

// All lists every status in lifecycle order.
var All = []Status{Unknown, Waiting, Pending, Running, Finished, Failed}

// Valid reports whether s is part of the enumeration.
func (s Status) Valid() bool {
	for _, known := range All {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are expected from s.
func (s Status) Terminal() bool {
	return s == Finished || s == Failed
}

// Parse converts a raw token into a Status.
func Parse(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}
