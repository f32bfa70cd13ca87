package mqtt

import "errors"

// Domain-specific errors for probe connections.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when subscribing on a probe whose connection is gone.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the connect handshake fails
	// (broker unreachable, credentials rejected, handshake timeout).
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrConnectionLost is delivered on Probe.Lost when an established
	// connection drops. Probes never reconnect.
	ErrConnectionLost = errors.New("mqtt: connection lost")

	// ErrSubscribeFailed is returned when the broker rejects or does not
	// acknowledge a subscribe request.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned for an empty topic or one containing wildcards.
	ErrInvalidTopic = errors.New("mqtt: topic must be non-empty and exact")

	// ErrInvalidClientID is returned when Dial is called without a client ID.
	ErrInvalidClientID = errors.New("mqtt: client ID cannot be empty")

	// ErrTimeout is returned when an operation outlives its context.
	ErrTimeout = errors.New("mqtt: operation timed out")
)
