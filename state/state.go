// Package state provides the process-wide configuration snapshot and shared loggers used across cipherswarm-dispatch.
package state

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// State holds the resolved configuration of the running process.
var State = runState{} //nolint:gochecknoglobals // Global process state

// runState represents the configuration settings of a dispatch run.
// Plain fields are written once during startup before any goroutine starts and are safe to read afterwards.
// Fields touched by the monitor and worker goroutines are synchronized; use the getter/setter methods for those.
type runState struct {
	DataPath          string        // DataPath is the root directory for all run artifacts.
	FilesPath         string        // FilesPath is where downloaded hash lists and wordlists are stored.
	PotfilePath       string        // PotfilePath is the append-only hash:plaintext log.
	RestorePath       string        // RestorePath is the directory holding checkpoint records.
	AutotuneCachePath string        // AutotuneCachePath is the JSON file caching measured kernel throughput.
	LockPath          string        // LockPath holds the PID of the running instance.
	OutfileWatchPath  string        // OutfileWatchPath is an outfile written by another instance to follow; empty disables.
	Session           string        // Session is the run name used for the restore file.
	Debug             bool          // Debug enables debug logging with caller reporting.
	ExtraDebugging    bool          // ExtraDebugging logs every dispatched work unit.
	StatusTimer       time.Duration // StatusTimer is the interval between status snapshots.
	RestoreTimer      time.Duration // RestoreTimer is the interval between checkpoint writes.
	Runtime           time.Duration // Runtime is the wall-clock limit of the whole session; zero means unlimited.
	Devices           int           // Devices is the number of CPU compute devices to start.
	KernelPower       uint64        // KernelPower overrides the autotuned per-call capacity when non-zero.
	PwMin             int           // PwMin is the shortest candidate accepted by the host filter.
	PwMax             int           // PwMax is the longest candidate accepted by the host filter.
	KeepAllHashes     bool          // KeepAllHashes keeps duplicate (salt, digest) records instead of dropping them.
	PotfileDisable    bool          // PotfileDisable turns off potfile reads and writes.
	StatusJSON        bool          // StatusJSON prints machine-readable status lines.
	ProgressBar       bool          // ProgressBar renders a terminal progress bar.
	MetricsAddr       string        // MetricsAddr serves prometheus metrics when non-empty.
	StatusPushURL     string        // StatusPushURL receives POSTed status snapshots when non-empty.
	StatusPushToken   string        // StatusPushToken is sent as a bearer token with status pushes.

	activityMu sync.RWMutex
	activity   Activity
	quitting   atomic.Bool
}

// Activity represents what the process is doing right now.
type Activity string

// Activity constants.
const (
	// ActivityStarting indicates the process is starting up.
	ActivityStarting Activity = "starting"
	// ActivityLoading indicates hashes and potfile entries are being loaded.
	ActivityLoading Activity = "loading"
	// ActivityAutotuning indicates device throughput is being measured.
	ActivityAutotuning Activity = "autotuning"
	// ActivityCracking indicates devices are processing work units.
	ActivityCracking Activity = "cracking"
	// ActivityStopping indicates the process is shutting down.
	ActivityStopping Activity = "stopping"
)

// GetActivity returns the current activity (thread-safe).
func (s *runState) GetActivity() Activity {
	s.activityMu.RLock()
	defer s.activityMu.RUnlock()

	return s.activity
}

// SetActivity sets the current activity (thread-safe).
func (s *runState) SetActivity(a Activity) {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	s.activity = a
}

// GetQuitting reports whether a signal asked the process to quit.
func (s *runState) GetQuitting() bool {
	return s.quitting.Load()
}

// SetQuitting records that a signal asked the process to quit.
func (s *runState) SetQuitting(v bool) {
	s.quitting.Store(v)
}

// Logger is a shared logging instance configured to output logs at InfoLevel with timestamps to os.Stdout.
var Logger = log.NewWithOptions(os.Stdout, log.Options{ //nolint:gochecknoglobals // Global logger instance
	Level:           log.InfoLevel,
	ReportTimestamp: true,
})

// ErrorLogger is a logger instance for logging critical errors with detailed error information.
var ErrorLogger = Logger.With() //nolint:gochecknoglobals // Global error logger instance
