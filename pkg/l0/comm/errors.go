package comm

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates the payload doesn't fit in a single frame.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrNoStatus indicates no transmit status received for a request.
	// This happens when a status is received for a latter request, and all
	// previous requests fail with this error.
	ErrNoStatus = errors.New("no transmit status")
	// ErrClosed indicates the connection stopped before a status arrived.
	ErrClosed = errors.New("connection closed")
)

// DeliveryError wraps a failed delivery status.
type DeliveryError struct {
	Status DeliveryStatus
}

// Error implements error.
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed: %s", e.Status)
}
