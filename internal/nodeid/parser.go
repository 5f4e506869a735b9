// internal/nodeid/parser.go
package nodeid

import (
	"fmt"
	"regexp"
	"strings"
)

// keyRegex restricts keys to what the builders can produce: non-negative
// integers, or plain identifiers for hand-written addresses.
var keyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Parse creates a new Address by parsing its canonical string representation.
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("address cannot be empty")
	}

	parts := strings.Split(raw, ".")
	if len(parts)%2 != 0 {
		return Address{}, fmt.Errorf("address %q has a dangling segment", raw)
	}
	if len(parts) > 8 {
		return Address{}, fmt.Errorf("address %q is deeper than a job", raw)
	}

	var keys [4]string
	for i := 0; i < len(parts); i += 2 {
		level := Level(i/2 + 1)
		if parts[i] != level.String() {
			return Address{}, fmt.Errorf("address %q: expected segment %q, got %q", raw, level.String(), parts[i])
		}
		key := parts[i+1]
		if !keyRegex.MatchString(key) {
			return Address{}, fmt.Errorf("address %q: invalid %s key %q", raw, level.String(), key)
		}
		keys[i/2] = key
	}

	return Address{Real: keys[0], Stage: keys[1], Step: keys[2], Job: keys[3]}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level constants.
func MustParse(raw string) Address {
	addr, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return addr
}
