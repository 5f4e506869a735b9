package snapshot

import (
	"errors"
	"fmt"

	"github.com/vk/ensembleeval/internal/nodeid"
)

// ErrInvalidStatus is wrapped by errors reporting a status token outside
// the fixed enumeration.
var ErrInvalidStatus = errors.New("invalid status")

// UnknownAddressError reports a diff that references a node outside the
// fixed job graph. It means the sender and the aggregator disagree about the
// ensemble; the diff is dropped, the evaluation goes on.
type UnknownAddressError struct {
	Address nodeid.Address
}

// Error implements the error interface for UnknownAddressError.
func (e *UnknownAddressError) Error() string {
	return fmt.Sprintf("unknown address %s: not part of the job graph", e.Address)
}
