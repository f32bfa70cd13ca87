package verify

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the tri-state result of a liveness check.
type Kind int

const (
	// KindUnknown means liveness could not be determined.
	KindUnknown Kind = iota

	// KindExists means at least one message was observed.
	KindExists

	// KindNotFound means the timeout elapsed with no message.
	KindNotFound
)

// String returns the stable name used in logs, history, and metrics.
func (k Kind) String() string {
	switch k {
	case KindExists:
		return "exists"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	msgConnectionError = "MQTT connection error"
	msgSubscribeFailed = "MQTT subscribe failed"
	msgSetupFailed     = "MQTT setup failed"
	msgCancelled       = "Verification cancelled"

	// NotFoundHint is attached to every NotFound outcome.
	NotFoundHint = "Check: 1) Is the leading letter (H/P) correct? 2) Is the device powered on and online?"
)

// Outcome is the terminal result of one verification attempt.
//
// Fields that only apply to one Kind are zero for the others:
// DataLength for Exists, Hint for NotFound, Error for Unknown.
type Outcome struct {
	Kind       Kind
	DeviceID   string
	Message    string
	DataLength int
	Hint       string
	Error      string
	CheckedAt  time.Time
	Duration   time.Duration
}

// Exists maps the outcome to the caller-facing tri-state:
// true for Exists, false for NotFound, nil for Unknown.
func (o Outcome) Exists() *bool {
	var v bool
	switch o.Kind {
	case KindExists:
		v = true
	case KindNotFound:
		v = false
	default:
		return nil
	}
	return &v
}

// Result is what Verify returns: an outcome plus whether it came from cache.
type Result struct {
	Outcome
	Cached bool
}

// Normalize returns the canonical form of a device ID.
// Device IDs are case-insensitive; the uppercase form is part of the topic
// contract with device firmware.
func Normalize(deviceID string) string {
	return strings.ToUpper(deviceID)
}

func existsOutcome(deviceID string, dataLength int) Outcome {
	return Outcome{
		Kind:       KindExists,
		DeviceID:   deviceID,
		Message:    fmt.Sprintf("Device %s is active and sending data", deviceID),
		DataLength: dataLength,
	}
}

func notFoundOutcome(deviceID string, timeout time.Duration) Outcome {
	return Outcome{
		Kind:     KindNotFound,
		DeviceID: deviceID,
		Message:  fmt.Sprintf("Device %s sent no MQTT data within %gs", deviceID, timeout.Seconds()),
		Hint:     NotFoundHint,
	}
}

func unknownOutcome(deviceID, message string, err error) Outcome {
	o := Outcome{
		Kind:     KindUnknown,
		DeviceID: deviceID,
		Message:  message,
	}
	if err != nil {
		o.Error = err.Error()
	}
	return o
}
