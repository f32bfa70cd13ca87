package verify

import (
	"fmt"
	"regexp"
)

// DefaultDeviceIDPattern matches a device letter (H or P) followed by nine digits.
const DefaultDeviceIDPattern = `^[HP]\d{9}$`

// Validator checks device ID shape before a verification is started.
// Matching is case-insensitive.
type Validator struct {
	re *regexp.Regexp
}

// NewValidator compiles pattern into a case-insensitive Validator.
// An empty pattern uses DefaultDeviceIDPattern.
func NewValidator(pattern string) (*Validator, error) {
	if pattern == "" {
		pattern = DefaultDeviceIDPattern
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling device ID pattern: %w", err)
	}
	return &Validator{re: re}, nil
}

// Validate returns ErrInvalidDeviceID if deviceID does not match.
func (v *Validator) Validate(deviceID string) error {
	if !v.re.MatchString(deviceID) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceID, deviceID)
	}
	return nil
}
