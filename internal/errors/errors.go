// Package errors defines the pipeline error taxonomy.
//
// Fatal errors (DataIntegrityError, ConfigurationError) halt the run at the
// stage boundary where they are detected; no stage may emit partial output
// after one. Recoverable conditions (coverage exclusions, rounding
// adjustments) are not errors: they are recorded as audit/exclusion values and
// the run proceeds with a reduced universe.
package errors

import (
	stderrors "errors"
	"fmt"
)

// DataIntegrityError indicates an invariant breach by an earlier stage that
// reached a later one: an empty benchmark calendar, an empty effective
// universe, non-monotonic dates surviving into the panel. Always fatal.
type DataIntegrityError struct {
	Stage   string
	Message string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation in %s: %s", e.Stage, e.Message)
}

// Integrity creates a DataIntegrityError for the given stage.
func Integrity(stage, format string, args ...any) *DataIntegrityError {
	return &DataIntegrityError{Stage: stage, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError indicates an invalid configuration detected before any
// stage executes: negative costs, an empty universe, non-positive initial
// cash. Always fatal.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// Config creates a ConfigurationError for the given field.
func Config(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsIntegrity reports whether err is (or wraps) a DataIntegrityError.
func IsIntegrity(err error) bool {
	var de *DataIntegrityError
	return stderrors.As(err, &de)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return stderrors.As(err, &ce)
}
