package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig signals a malformed or self-contradictory feature configuration.
	ErrConfig = errors.New("invalid feature configuration")
	// ErrSchema signals that a batch does not carry the columns or types a step needs.
	ErrSchema = errors.New("schema mismatch")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrNoNewData signals that the data-arrival detector found no sources.
	ErrNoNewData = errors.New("no new data")
	// ErrNothingProcessed signals that every detected source failed.
	ErrNothingProcessed = errors.New("no source was processed successfully")
)

// ConfigError wraps ErrConfig with the offending column.
type ConfigError struct {
	Column string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s: %s", ErrConfig.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: column %q: %s", ErrConfig.Error(), e.Column, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// NewConfigError creates a configuration error for column.
func NewConfigError(column, format string, args ...any) error {
	return &ConfigError{Column: column, Reason: fmt.Sprintf(format, args...)}
}

// SchemaError wraps ErrSchema with the step and column that failed.
type SchemaError struct {
	Step   string
	Column string
	Reason string
}

func (e *SchemaError) Error() string {
	msg := ErrSchema.Error()
	if e.Step != "" {
		msg += ": step " + e.Step
	}
	if e.Column != "" {
		msg += fmt.Sprintf(": column %q", e.Column)
	}
	return msg + ": " + e.Reason
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// NewSchemaError creates a schema error raised by step for column.
func NewSchemaError(step, column, format string, args ...any) error {
	return &SchemaError{Step: step, Column: column, Reason: fmt.Sprintf(format, args...)}
}
