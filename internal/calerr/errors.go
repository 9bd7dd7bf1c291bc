// Package calerr defines the error kinds surfaced by the calibration engine.
package calerr

import (
	"errors"
	"fmt"
)

// Error is a calibration error with a machine readable code.
//
// Errors are never retried inside the engine. They reflect either a
// programmer error (missing calibration) or a data precondition violation
// (value outside the physical range) and are surfaced to the caller.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Key identifies the affected item (parameter, dataset name, channel).
	Key string
}

// Code categorizes calibration errors.
type Code string

const (
	// CodeDomain indicates a value outside a transformation's domain.
	CodeDomain Code = "DOMAIN"

	// CodeNotFound indicates an absent dataset, index or configuration.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUncalibrated indicates a calibration without fitted data.
	CodeUncalibrated Code = "UNCALIBRATED"

	// CodeConfiguration indicates an unknown backend or unusable options.
	CodeConfiguration Code = "CONFIGURATION"

	// CodeIncompatible indicates stored data that does not match the
	// requested type or schema version.
	CodeIncompatible Code = "INCOMPATIBLE"

	// CodeInvalidArgument indicates malformed input data.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Domain creates a domain error.
func Domain(format string, args ...any) *Error {
	return &Error{Code: CodeDomain, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not-found error for key.
func NotFound(key, format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Key: key}
}

// Uncalibrated creates an uncalibrated error.
func Uncalibrated(format string, args ...any) *Error {
	return &Error{Code: CodeUncalibrated, Message: fmt.Sprintf(format, args...)}
}

// Configuration creates a configuration error for key.
func Configuration(key, format string, args ...any) *Error {
	return &Error{Code: CodeConfiguration, Message: fmt.Sprintf(format, args...), Key: key}
}

// Incompatible creates an incompatible-data error for key.
func Incompatible(key, format string, args ...any) *Error {
	return &Error{Code: CodeIncompatible, Message: fmt.Sprintf(format, args...), Key: key}
}

// InvalidArgument creates an invalid-argument error.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsDomain returns true if err is a domain error.
// Uses errors.As to handle wrapped errors.
func IsDomain(err error) bool { return CodeOf(err) == CodeDomain }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsUncalibrated returns true if err is an uncalibrated error.
func IsUncalibrated(err error) bool { return CodeOf(err) == CodeUncalibrated }

// IsConfiguration returns true if err is a configuration error.
func IsConfiguration(err error) bool { return CodeOf(err) == CodeConfiguration }

// IsIncompatible returns true if err is an incompatible-data error.
func IsIncompatible(err error) bool { return CodeOf(err) == CodeIncompatible }
