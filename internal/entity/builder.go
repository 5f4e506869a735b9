package entity

import (
	"errors"
	"fmt"
)

// builderState is embedded by every builder. It tracks whether the builder
// was frozen by a successful Build and collects mutate-after-build errors so
// that setters can stay chainable.
type builderState struct {
	kind  string
	built bool
	errs  []error
}

// mutable reports whether field may still be set, recording an
// ImmutableEntityError otherwise.
func (s *builderState) mutable(field string) bool {
	if s.built {
		s.errs = append(s.errs, &ImmutableEntityError{Entity: s.kind, Field: field})
		return false
	}
	return true
}

func (s *builderState) err() error {
	return errors.Join(s.errs...)
}

// Err returns the errors recorded by setters so far, if any.
func (s *builderState) Err() error {
	return s.err()
}

// checkUniqueIDs reports the first duplicated id in ids.
func checkUniqueIDs(path, level string, ids []int) error {
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return &ValidationError{Entity: path, Field: level, Reason: fmt.Sprintf("contains duplicate id %d", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func childPath(parent, level string, i int) string {
	return fmt.Sprintf("%s.%s[%d]", parent, level, i)
}
