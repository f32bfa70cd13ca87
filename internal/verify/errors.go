package verify

import "errors"

// Domain errors for device verification.
var (
	// ErrInvalidDeviceID is returned when a device ID does not match the
	// configured format. The Verifier itself never validates shape; callers
	// use a Validator before invoking it.
	ErrInvalidDeviceID = errors.New("invalid device ID format")

	// ErrBrokerRequired is returned by New when no Broker is configured.
	ErrBrokerRequired = errors.New("verify: broker is required")

	// ErrHistoryDisabled is returned when history is requested but no
	// history store is configured.
	ErrHistoryDisabled = errors.New("verification history is disabled")

	// ErrCancelled marks an attempt abandoned because the caller's context
	// ended before the verification timeout.
	ErrCancelled = errors.New("verification cancelled")
)
