// internal/nodeid/address.go
package nodeid

import "strings"

// String serializes the Address into its canonical path string representation.
func (a Address) String() string {
	var sb strings.Builder
	keys := [...]string{a.Real, a.Stage, a.Step, a.Job}
	for i, key := range keys {
		if key == "" {
			break
		}
		if i > 0 {
			sb.WriteRune('.')
		}
		sb.WriteString(Level(i + 1).String())
		sb.WriteRune('.')
		sb.WriteString(key)
	}
	return sb.String()
}

// IsZero reports whether the address points at nothing.
func (a Address) IsZero() bool {
	return a == Address{}
}
