// Package cserrors provides the error taxonomy and error logging utilities for cipherswarm-dispatch.
package cserrors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// Severity classifies how serious a reported error is.
type Severity string

// Severity levels for error reporting.
const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
	SeverityFatal    Severity = "fatal"
)

var (
	// ErrEmptyInput is returned when no hashes remain after parsing and deduplication.
	ErrEmptyInput = errors.New("no hashes loaded")
	// ErrExhausted marks the normal end of a keyspace. It is a terminal state, not a failure.
	ErrExhausted = errors.New("keyspace exhausted")
)

// ParseError describes a hash line that did not match the hash-format grammar.
type ParseError struct {
	LineNum int
	Line    string
	Reason  string
}

func (e *ParseError) Error() string {
	if e.LineNum > 0 {
		return fmt.Sprintf("hash line %d %q: %s", e.LineNum, e.Line, e.Reason)
	}

	return fmt.Sprintf("hash %q: %s", e.Line, e.Reason)
}

// DeviceError is a hard failure of one compute device. The owning device is skipped for the rest of the run.
type DeviceError struct {
	DeviceID int
	Category string
	Err      error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device #%d (%s): %v", e.DeviceID, e.Category, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CheckpointIOError reports a failure persisting or reading a checkpoint. The run continues in memory.
type CheckpointIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *CheckpointIOError) Error() string {
	return fmt.Sprintf("checkpoint %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *CheckpointIOError) Unwrap() error { return e.Err }

// FatalConfigError is a configuration problem detected before any device starts.
type FatalConfigError struct {
	Option string
	Reason string
}

func (e *FatalConfigError) Error() string {
	return fmt.Sprintf("invalid configuration (%s): %s", e.Option, e.Reason)
}

// NewFatalConfigError builds a FatalConfigError carrying a user-facing hint.
func NewFatalConfigError(option, reason, hint string) error {
	err := error(&FatalConfigError{Option: option, Reason: reason})
	if hint != "" {
		err = errors.WithHint(err, hint)
	}

	return err
}

// IsFatal reports whether err must abort the session before any state mutation.
func IsFatal(err error) bool {
	var fce *FatalConfigError

	return errors.As(err, &fce) || errors.Is(err, ErrEmptyInput)
}

// Hints returns the user-facing hints attached to err, if any.
func Hints(err error) []string {
	return errors.GetAllHints(err)
}

// LogError logs an error message with its severity through the shared error logger.
// Returns the original error for further handling.
func LogError(message string, err error, severity Severity) error {
	switch severity {
	case SeverityInfo:
		state.ErrorLogger.Info(message, "error", err, "severity", severity)
	case SeverityWarning, SeverityMinor:
		state.ErrorLogger.Warn(message, "error", err, "severity", severity)
	default:
		state.ErrorLogger.Error(message, "error", err, "severity", severity)
	}

	return err
}
