package device

import (
	"regexp"

	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
)

// ErrorCategory represents the classification of a kernel failure.
type ErrorCategory int

const (
	// ErrorCategoryUnknown is for unrecognized failures.
	ErrorCategoryUnknown ErrorCategory = iota
	// ErrorCategoryDevice is for hardware faults.
	ErrorCategoryDevice
	// ErrorCategoryMemory is for allocation failures on the device or host.
	ErrorCategoryMemory
	// ErrorCategoryBackend is for OpenCL/CUDA/HIP/Metal runtime errors.
	ErrorCategoryBackend
	// ErrorCategoryThermal is for hardware monitor aborts.
	ErrorCategoryThermal
	// ErrorCategoryRetryable is for transient failures.
	ErrorCategoryRetryable
)

// String returns the string representation of an ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryUnknown:
		return "unknown"
	case ErrorCategoryDevice:
		return "device"
	case ErrorCategoryMemory:
		return "memory"
	case ErrorCategoryBackend:
		return "backend"
	case ErrorCategoryThermal:
		return "thermal"
	case ErrorCategoryRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// ErrorInfo is the classification of one kernel error.
type ErrorInfo struct {
	Category  ErrorCategory
	Severity  cserrors.Severity
	Retryable bool
	Message   string
}

type errorPattern struct {
	pattern   *regexp.Regexp
	category  ErrorCategory
	severity  cserrors.Severity
	retryable bool
}

// Patterns are matched in order; the first match wins, so specific patterns come first.
//
//nolint:gochecknoglobals // Compiled once
var errorPatterns = []errorPattern{
	{regexp.MustCompile(`CL_OUT_OF_HOST_MEMORY|CL_MEM_OBJECT_ALLOCATION_FAILURE`), ErrorCategoryMemory, cserrors.SeverityFatal, false},
	{regexp.MustCompile(`(?i)out of memory|memory allocation`), ErrorCategoryMemory, cserrors.SeverityFatal, false},
	{regexp.MustCompile(`OpenCL API.*CL_`), ErrorCategoryBackend, cserrors.SeverityCritical, false},
	{regexp.MustCompile(`CUDA_ERROR`), ErrorCategoryBackend, cserrors.SeverityCritical, false},
	{regexp.MustCompile(`HIP_ERROR`), ErrorCategoryBackend, cserrors.SeverityCritical, false},
	{regexp.MustCompile(`(?i)Metal API`), ErrorCategoryBackend, cserrors.SeverityCritical, false},
	{regexp.MustCompile(`(?i)temperature.*(limit|abort)`), ErrorCategoryThermal, cserrors.SeverityMajor, false},
	{regexp.MustCompile(`(?i)timeout|temporarily unavailable|deadline exceeded`), ErrorCategoryRetryable, cserrors.SeverityMinor, true},
	{regexp.MustCompile(`(?i)device #\d+|device lost|hardware`), ErrorCategoryDevice, cserrors.SeverityCritical, false},
}

// ClassifyError classifies a kernel error. A nil error classifies as unknown with info severity.
func ClassifyError(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{Category: ErrorCategoryUnknown, Severity: cserrors.SeverityInfo}
	}

	msg := err.Error()

	for _, p := range errorPatterns {
		if p.pattern.MatchString(msg) {
			return ErrorInfo{
				Category:  p.category,
				Severity:  p.severity,
				Retryable: p.retryable,
				Message:   msg,
			}
		}
	}

	return ErrorInfo{
		Category: ErrorCategoryUnknown,
		Severity: cserrors.SeverityCritical,
		Message:  msg,
	}
}
