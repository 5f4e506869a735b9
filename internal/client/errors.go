package client

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when sending on a closed Client.
var ErrClosed = errors.New("client is closed")

// DeliveryError is returned once every attempt to deliver a frame has
// failed. Err is the cause of the last failure.
type DeliveryError struct {
	URL      string
	Attempts int
	Err      error
}

// Error implements the error interface for DeliveryError.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

// Unwrap returns the last underlying failure.
func (e *DeliveryError) Unwrap() error {
	return e.Err
}
