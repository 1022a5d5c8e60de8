// Package testhelpers provides reusable test utilities and helpers for testing cipherswarm-dispatch.
package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const dirPerm os.FileMode = 0o755

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()

	if err := os.MkdirAll(path, dirPerm); err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
}

// SetupTestState initializes state.State with paths under a temporary directory and resets it when the test
// ends. It returns the data directory.
func SetupTestState(t *testing.T) string {
	t.Helper()

	dataDir := filepath.Join(t.TempDir(), "data")

	state.State.DataPath = dataDir
	state.State.FilesPath = filepath.Join(dataDir, "files")
	state.State.RestorePath = filepath.Join(dataDir, "restore")
	state.State.PotfilePath = filepath.Join(dataDir, "cipherswarm.potfile")
	state.State.AutotuneCachePath = filepath.Join(dataDir, "autotune.json")
	state.State.LockPath = filepath.Join(dataDir, "lock.pid")
	state.State.Session = "test"
	state.State.StatusTimer = time.Hour
	state.State.RestoreTimer = time.Hour
	state.State.Devices = 2
	state.State.KernelPower = 100
	state.State.PwMax = 256

	mustMkdirAll(t, state.State.DataPath)
	mustMkdirAll(t, state.State.FilesPath)
	mustMkdirAll(t, state.State.RestorePath)

	t.Cleanup(func() {
		state.State.DataPath = ""
		state.State.FilesPath = ""
		state.State.RestorePath = ""
		state.State.PotfilePath = ""
		state.State.AutotuneCachePath = ""
		state.State.LockPath = ""
		state.State.OutfileWatchPath = ""
		state.State.Session = ""
		state.State.StatusTimer = 0
		state.State.RestoreTimer = 0
		state.State.Runtime = 0
		state.State.Devices = 0
		state.State.KernelPower = 0
		state.State.PwMin = 0
		state.State.PwMax = 0
		state.State.KeepAllHashes = false
		state.State.PotfileDisable = false
		state.State.StatusJSON = false
		state.State.ProgressBar = false
		state.State.MetricsAddr = ""
		state.State.StatusPushURL = ""
		state.State.StatusPushToken = ""
		state.State.SetActivity(state.ActivityStarting)
		state.State.SetQuitting(false)
	})

	return dataDir
}
