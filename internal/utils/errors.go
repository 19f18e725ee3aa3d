package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the pricing pipeline.
type ErrorKind string

const (
	// KindInput is a malformed or unpriceable request. Never retried.
	KindInput ErrorKind = "input_error"
	// KindDataUnavailable means historical data is missing; callers degrade.
	KindDataUnavailable ErrorKind = "data_unavailable"
	// KindProvider is an external rate/distance provider failure.
	KindProvider ErrorKind = "provider_error"
	// KindConfiguration is a missing credential for an optional feature.
	KindConfiguration ErrorKind = "configuration_error"
)

// AnalysisError is the tagged error returned by the analysis pipeline.
type AnalysisError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// NewInputError creates an InputError.
func NewInputError(format string, args ...interface{}) error {
	return &AnalysisError{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

// NewDataUnavailableError creates a DataUnavailable error.
func NewDataUnavailableError(message string, err error) error {
	return &AnalysisError{Kind: KindDataUnavailable, Message: message, Err: err}
}

// NewProviderError wraps a failed provider call.
func NewProviderError(provider string, err error) error {
	return &AnalysisError{Kind: KindProvider, Message: provider, Err: err}
}

// NewConfigurationError reports a missing setting for an optional feature.
func NewConfigurationError(format string, args ...interface{}) error {
	return &AnalysisError{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the ErrorKind of err, or "" when err is not an AnalysisError.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Message returns the bare message of an AnalysisError, or err.Error().
func Message(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
