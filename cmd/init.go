package cmd

import (
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/spf13/cobra"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/config"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

var initPath string

// initCmd writes a config file holding the defaults.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  "Write a configuration file holding the current defaults. An existing file is never overwritten.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		path := initPath
		if strutil.IsBlank(path) {
			var err error

			path, err = config.DefaultConfigPath()
			if err != nil {
				return err
			}
		}

		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}

		state.Logger.Info("Wrote config file", "path", path)

		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initPath, "path", "", "Where to write the config file")
}
