// Package display provides the human and machine-readable output of a dispatch run.
package display

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/progress"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// MinStatusFields is the minimum number of elements in a snapshot's Progress and RecoveredHashes slices
// (current value and total).
const MinStatusFields = 2

// Startup logs the start of the process.
func Startup() {
	state.Logger.Info("Starting CipherSwarm dispatch")
}

// ShuttingDown logs the shutdown of the process.
func ShuttingDown() {
	state.Logger.Info("Shutting down CipherSwarm dispatch")
}

// HashesLoaded summarizes the loaded hash list.
func HashesLoaded(path string, reg *hashlist.Registry) {
	state.Logger.Info("Hashes loaded", "path", path, "type", reg.Format().Name,
		"digests", humanize.Comma(int64(reg.DigestsCnt())), "salts", humanize.Comma(int64(reg.SaltsCnt())),
		"duplicates", reg.Duplicates(), "rejected_lines", reg.ParseErrors())
}

// PotfileLoaded logs how many digests the potfile removed before work started.
func PotfileLoaded(path string, marked int) {
	if marked == 0 {
		state.Logger.Debug("No potfile matches", "path", path)

		return
	}

	state.Logger.Info("Hashes already cracked in potfile", "path", path, "count", marked)
}

// DeviceReady logs a device's capacity figures.
func DeviceReady(id int, name string, kernelPower uint64, autotuned bool) {
	state.Logger.Info("Device ready", "device_id", id, "name", name,
		"kernel_power", humanize.Comma(int64(kernelPower)), "autotuned", autotuned) //nolint:gosec // small
}

// SegmentStarting logs the start of one wordlist or mask segment.
func SegmentStarting(pos, count int, describe string, keyspace uint64) {
	state.Logger.Info("Starting segment", "segment", fmt.Sprintf("%d/%d", pos+1, count), "source", describe,
		"keyspace", humanize.Comma(int64(keyspace))) //nolint:gosec // keyspace fits for display
}

// Restoring logs the position a session resumes from.
func Restoring(session string, wordsCur uint64, percent float64) {
	state.Logger.Info("Restoring session", "session", session, "words_cur", wordsCur,
		"restore_percent", fmt.Sprintf("%.2f%%", percent))
}

// CheckpointWritten logs a persisted checkpoint at debug level.
func CheckpointWritten(path string, wordsCur uint64) {
	state.Logger.Debug("Checkpoint written", "path", path, "words_cur", wordsCur)
}

// Event logs one dispatcher event.
func Event(ev dispatch.Event) {
	switch ev.Kind {
	case dispatch.EventCracked:
		state.Logger.Info("Hash cracked", "hash", ev.Hash, "user", ev.User, "device_id", ev.DeviceID)
		state.Logger.Debug("Plaintext", "hash", ev.Hash, "plain", string(ev.Plain))
	case dispatch.EventDeviceSkipped:
		state.Logger.Warn("Device skipped", "device_id", ev.DeviceID, "error", ev.Err)
	case dispatch.EventCheckpointFailed:
		state.Logger.Error("Checkpoint write failed", "error", ev.Err)
	default:
		state.Logger.Debug("Unhandled dispatcher event", "kind", ev.Kind)
	}
}

// Status logs the human-readable summary of a snapshot.
func Status(snap status.Snapshot) {
	state.Logger.Debug("Status update", "status", snap)

	if len(snap.Progress) < MinStatusFields {
		state.Logger.Warn("Status called with insufficient progress data", "progress_len", len(snap.Progress))

		return
	}

	if len(snap.RecoveredHashes) < MinStatusFields {
		state.Logger.Warn("Status called with insufficient recovered hashes data",
			"recovered_len", len(snap.RecoveredHashes))

		return
	}

	progressText := progress.FormatPercent(snap.Progress[0], snap.Progress[1])
	if snap.Guess.BaseCount > 1 {
		progressText = fmt.Sprintf("%s for segment %d of %d", progressText, snap.Guess.BaseOffset,
			snap.Guess.BaseCount)
	}

	eta := "N/A"
	if snap.ETA > 0 {
		eta = humanize.Time(snap.Time.Add(snap.ETA))
	}

	state.Logger.Info(
		"Progress update",
		"status", snap.StatusText,
		"progress", progressText,
		"speed", status.FormatSpeed(snap.Speed),
		"cracked_hashes", fmt.Sprintf("%d of %d", snap.RecoveredHashes[0], snap.RecoveredHashes[1]),
		"devices", fmt.Sprintf("%d of %d", snap.DevicesActive, len(snap.Devices)),
		"restore_point", fmt.Sprintf("%.2f%%", snap.RestorePercent),
		"eta", eta,
	)
}

// Finished logs the terminal status and exit code of a run.
func Finished(st dispatch.Status, runtime time.Duration) {
	state.Logger.Info("Session finished", "status", st.String(), "exit_code", st.ExitCode(),
		"runtime", runtime.Round(time.Second))
}

// Failed logs a run-level error.
func Failed(err error) {
	state.Logger.Error("Session failed", "error", err)
}
