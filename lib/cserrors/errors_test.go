package cserrors

import (
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError_Message(t *testing.T) {
	tests := []struct {
		name     string
		err      *ParseError
		expected string
	}{
		{
			name:     "with line number",
			err:      &ParseError{LineNum: 3, Line: "zz", Reason: "invalid hex"},
			expected: `hash line 3 "zz": invalid hex`,
		},
		{
			name:     "without line number",
			err:      &ParseError{Line: "abc", Reason: "token length exception"},
			expected: `hash "abc": token length exception`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDeviceError_Unwrap(t *testing.T) {
	err := error(&DeviceError{DeviceID: 2, Category: "backend", Err: io.ErrUnexpectedEOF})

	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "device #2 (backend)")

	var de *DeviceError
	require.ErrorAs(t, errors.Wrap(err, "kernel submit"), &de)
	assert.Equal(t, 2, de.DeviceID)
}

func TestCheckpointIOError_Unwrap(t *testing.T) {
	err := error(&CheckpointIOError{Op: "write", Path: "/tmp/x.restore", Err: io.ErrShortWrite})

	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, `checkpoint write "/tmp/x.restore": short write`, err.Error())
}

func TestNewFatalConfigError(t *testing.T) {
	err := NewFatalConfigError("skip", "cannot be combined with multiple masks", "split the mask file into separate runs")

	assert.True(t, IsFatal(err))
	assert.Equal(t, []string{"split the mask file into separate runs"}, Hints(err))

	var fce *FatalConfigError
	require.ErrorAs(t, err, &fce)
	assert.Equal(t, "skip", fce.Option)
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"empty input", ErrEmptyInput, true},
		{"wrapped empty input", errors.Wrap(ErrEmptyInput, "load"), true},
		{"fatal config", &FatalConfigError{Option: "limit"}, true},
		{"exhausted", ErrExhausted, false},
		{"parse error", &ParseError{Line: "x"}, false},
		{"device error", &DeviceError{DeviceID: 1, Err: io.EOF}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestLogError_ReturnsOriginal(t *testing.T) {
	for _, sev := range []Severity{SeverityInfo, SeverityWarning, SeverityMinor, SeverityCritical, SeverityFatal} {
		err := LogError("something failed", io.EOF, sev)
		assert.Equal(t, io.EOF, err)
	}
}
