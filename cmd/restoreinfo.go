package cmd

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/config"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/restore"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/runner"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// ErrNoCheckpoint is returned by restore-info when the session has no checkpoint.
var ErrNoCheckpoint = errors.New("no checkpoint for session")

// restoreInfoCmd prints the checkpoint of a session.
var restoreInfoCmd = &cobra.Command{
	Use:   "restore-info",
	Short: "Show the checkpoint of a session",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		config.SetupSharedState()

		path := runner.RestoreFile(state.State.RestorePath, state.State.Session)

		rec, err := restore.Load(path)
		if err != nil {
			return err
		}

		if rec == nil {
			return errors.Wrapf(ErrNoCheckpoint, "%q (%s)", state.State.Session, path)
		}

		state.Logger.Info("Checkpoint", "path", path, "session", rec.Session, "version", rec.Version,
			"dict_pos", rec.DictPos, "mask_pos", rec.MaskPos, "words_cur", rec.WordsCur,
			"fingerprint", rec.Fingerprint, "cwd", rec.Cwd, "args", strings.Join(rec.Args, " "))

		return nil
	},
}
