// Package cmd implements the cipherswarm-dispatch command line.
package cmd

import (
	"context"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/config"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
)

// Version is set at build time.
var Version = "dev" //nolint:gochecknoglobals // overridden by ldflags

var (
	cfgFile     string
	enableDebug bool
	exitCode    int
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "cipherswarm-dispatch",
	Version: Version,
	Short:   "CipherSwarm dispatch",
	Long: "CipherSwarm dispatch splits a password-guessing keyspace across compute devices, " +
		"tracks progress and resumes interrupted sessions.",
	SilenceUsage: true,
}

// Execute runs the root command and returns the process exit code. A run reports its terminal status; any other
// failure exits with the error code.
func Execute() int {
	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(Version)); err != nil {
		if exitCode == 0 {
			return dispatch.ExitCodeError
		}
	}

	return exitCode
}

func init() {
	cobra.OnInitialize(func() { config.InitConfig(cfgFile) })

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is "+config.ConfigName+".yaml in the working or user config directory)")
	rootCmd.PersistentFlags().BoolVar(&enableDebug, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("data-path", "", "Root directory for potfile, checkpoints and downloads")
	rootCmd.PersistentFlags().String("session", config.DefaultSession, "Session name used for the checkpoint file")

	cobra.CheckErr(viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))
	cobra.CheckErr(viper.BindPFlag("data_path", rootCmd.PersistentFlags().Lookup("data-path")))
	cobra.CheckErr(viper.BindPFlag("session", rootCmd.PersistentFlags().Lookup("session")))

	config.SetDefaultConfigValues()

	rootCmd.AddCommand(runCmd, restoreInfoCmd, initCmd)
}
