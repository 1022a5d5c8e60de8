package runner

import (
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/convertor"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// ErrAlreadyRunning is returned when the lock file names a live process.
var ErrAlreadyRunning = errors.New("another instance is already running")

// lockHeld reports whether pidFilePath names a running process other than this one. Unreadable lock files
// count as held.
func lockHeld(pidFilePath string) bool {
	if !fileutil.IsExist(pidFilePath) {
		return false
	}

	pidString, err := fileutil.ReadFileToString(pidFilePath)
	if err != nil {
		state.Logger.Error("Error reading PID file", "path", pidFilePath)

		return true
	}

	pidInt64, err := strconv.ParseInt(strutil.Trim(pidString), 10, 32)
	if err != nil {
		state.Logger.Error("Error converting PID to integer, or PID is too large for int32", "pid", pidString,
			"error", err)

		return true
	}

	pidValue := int32(pidInt64)
	if int(pidValue) == os.Getpid() {
		return false
	}

	pidRunning, err := process.PidExists(pidValue)
	if err != nil {
		state.Logger.Error("Error checking if process is running", "pid", pidValue)

		return true
	}

	state.Logger.Warn("Existing lock file found", "path", pidFilePath, "pid", pidValue)

	if !pidRunning {
		state.Logger.Warn("Existing process is not running, cleaning up file", "pid", pidValue)
	}

	return pidRunning
}

// acquireLock writes the current PID to pidFilePath unless a live process already holds it. An empty path
// disables locking.
func acquireLock(pidFilePath string) error {
	if strutil.IsBlank(pidFilePath) {
		return nil
	}

	if lockHeld(pidFilePath) {
		return errors.Wrapf(ErrAlreadyRunning, "lock file %q", pidFilePath)
	}

	if err := fileutil.WriteStringToFile(pidFilePath, convertor.ToString(os.Getpid()), false); err != nil {
		state.Logger.Error("Error writing PID to file", "path", pidFilePath)

		return errors.Wrapf(err, "writing lock file %q", pidFilePath)
	}

	return nil
}

func releaseLock(pidFilePath string) {
	if strutil.IsBlank(pidFilePath) || !fileutil.IsExist(pidFilePath) {
		return
	}

	if err := os.Remove(pidFilePath); err != nil {
		state.Logger.Error("Error removing lock file", "path", pidFilePath, "error", err)
	}
}
