package dispatch

// Status is the run-level state. Values match hashcat's status codes so machine-readable output stays
// compatible with existing tooling.
type Status int

const (
	StatusInit              Status = 0
	StatusAutotune          Status = 1
	StatusRunning           Status = 3
	StatusPaused            Status = 4
	StatusExhausted         Status = 5
	StatusCracked           Status = 6
	StatusAborted           Status = 7
	StatusQuit              Status = 8
	StatusBypass            Status = 9
	StatusAbortedCheckpoint Status = 10
	StatusAbortedRuntime    Status = 11
	StatusError             Status = 13
)

// Process exit codes for terminal statuses.
const (
	ExitCodeCracked      = 0
	ExitCodeExhausted    = 1
	ExitCodeAborted      = 2
	ExitCodeCheckpoint   = 3
	ExitCodeRuntimeLimit = 4
	ExitCodeError        = -1
)

// String returns the human-readable status text.
func (s Status) String() string {
	switch s {
	case StatusInit:
		return "Initializing"
	case StatusAutotune:
		return "Autotuning"
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	case StatusExhausted:
		return "Exhausted"
	case StatusCracked:
		return "Cracked"
	case StatusAborted:
		return "Aborted"
	case StatusQuit:
		return "Quit"
	case StatusBypass:
		return "Bypass"
	case StatusAbortedCheckpoint:
		return "Aborted (Checkpoint)"
	case StatusAbortedRuntime:
		return "Aborted (Runtime)"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the status ends a run.
func (s Status) Terminal() bool {
	switch s {
	case StatusExhausted, StatusCracked, StatusAborted, StatusQuit, StatusBypass,
		StatusAbortedCheckpoint, StatusAbortedRuntime, StatusError:
		return true
	case StatusInit, StatusAutotune, StatusRunning, StatusPaused:
		return false
	default:
		return false
	}
}

// ExitCode maps a terminal status to the process exit code. Non-terminal statuses map to ExitCodeError.
func (s Status) ExitCode() int {
	switch s {
	case StatusCracked:
		return ExitCodeCracked
	case StatusExhausted, StatusBypass:
		return ExitCodeExhausted
	case StatusAborted, StatusQuit:
		return ExitCodeAborted
	case StatusAbortedCheckpoint:
		return ExitCodeCheckpoint
	case StatusAbortedRuntime:
		return ExitCodeRuntimeLimit
	case StatusInit, StatusAutotune, StatusRunning, StatusPaused, StatusError:
		return ExitCodeError
	default:
		return ExitCodeError
	}
}

// IsNormalCompletion reports whether the status is Cracked or Exhausted.
func (s Status) IsNormalCompletion() bool {
	return s == StatusCracked || s == StatusExhausted
}
