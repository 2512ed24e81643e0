package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError describes a problem found in the configuration.
type ValidationError struct {
	Section string // server section, empty for monitor settings
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Section == "":
		return fmt.Sprintf("setting '%s' %s", e.Field, e.Reason)
	case e.Field == "":
		return fmt.Sprintf("\"[%s]\" %s", e.Section, e.Reason)
	default:
		return fmt.Sprintf("[%s] '%s' %s", e.Section, e.Field, e.Reason)
	}
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

func fieldError(section, field, reason string) error {
	return &ValidationError{Section: section, Field: field, Reason: reason}
}

func settingError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
