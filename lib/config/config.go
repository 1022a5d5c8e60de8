// Package config provides configuration management for cipherswarm-dispatch.
package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/strutil"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// Default configuration values.
const (
	DefaultSession      = "cipherswarm"
	DefaultStatusTimer  = 10 * time.Second
	DefaultRestoreTimer = 60 * time.Second
	DefaultPwMax        = 256
	// ConfigName is the config file name without extension.
	ConfigName = "cipherswarmdispatch"
)

var (
	scope = gap.NewScope(gap.User, "CipherSwarm") //nolint:gochecknoglobals // Configuration scope
)

// InitConfig wires viper to the config file search path and the environment, then reads the first config file
// found. A missing file is not an error; `init` writes one.
func InitConfig(cfgFile string) {
	state.ErrorLogger.SetReportCaller(true)

	home, err := os.UserConfigDir()
	cobra.CheckErr(err)

	cwd, err := os.Getwd()
	cobra.CheckErr(err)
	viper.AddConfigPath(cwd)

	configDirs, err := scope.ConfigDirs()
	cobra.CheckErr(err)

	for _, dir := range configDirs {
		viper.AddConfigPath(dir)
	}

	viper.AddConfigPath(home)
	viper.SetConfigType("yaml")
	viper.SetConfigName(ConfigName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		state.Logger.Info("Using config file", "config_file", viper.ConfigFileUsed())
	} else {
		state.Logger.Debug("No config file found, using defaults and flags", "error", err)
	}
}

// DefaultConfigPath is where `init` writes a new config file.
func DefaultConfigPath() (string, error) {
	dirs, err := scope.ConfigDirs()
	if err != nil || len(dirs) == 0 {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return "", errors.Wrap(cwdErr, "resolving config directory")
		}

		return filepath.Join(cwd, ConfigName+".yaml"), nil
	}

	return filepath.Join(dirs[0], ConfigName+".yaml"), nil
}

// WriteDefaultConfig writes the current settings to path, refusing to overwrite an existing file.
func WriteDefaultConfig(path string) error {
	if dir := filepath.Dir(path); !fileutil.IsDir(dir) {
		if err := fileutil.CreateDir(dir); err != nil {
			return errors.Wrapf(err, "creating config directory %q", dir)
		}
	}

	if err := viper.SafeWriteConfigAs(path); err != nil {
		return errors.Wrapf(err, "writing config file %q", path)
	}

	return nil
}

// SetDefaultConfigValues sets default configuration values.
func SetDefaultConfigValues() {
	cwd, err := os.Getwd()
	cobra.CheckErr(err)

	viper.SetDefault("data_path", filepath.Join(cwd, "data"))
	viper.SetDefault("session", DefaultSession)
	viper.SetDefault("status_timer", DefaultStatusTimer)
	viper.SetDefault("restore_timer", DefaultRestoreTimer)
	viper.SetDefault("runtime", time.Duration(0))
	viper.SetDefault("devices", 0)
	viper.SetDefault("kernel_power", 0)
	viper.SetDefault("pw_min", 0)
	viper.SetDefault("pw_max", DefaultPwMax)
	viper.SetDefault("keep_all_hashes", false)
	viper.SetDefault("potfile_disable", false)
	viper.SetDefault("status_json", false)
	viper.SetDefault("progress_bar", false)
	viper.SetDefault("metrics_addr", "")
	viper.SetDefault("status_push_url", "")
	viper.SetDefault("status_push_token", "")
	viper.SetDefault("outfile_watch", "")
	viper.SetDefault("debug", false)
	viper.SetDefault("extra_debugging", false)
}

// derivedPath returns the configured value of key, or dataRoot/name when it is unset.
func derivedPath(key, dataRoot, name string) string {
	if v := viper.GetString(key); strutil.IsNotBlank(v) {
		return v
	}

	return filepath.Join(dataRoot, name)
}

// SetupSharedState copies the resolved configuration into state.State, deriving unset paths from data_path and
// clamping out-of-range values to their defaults.
func SetupSharedState() {
	dataRoot := viper.GetString("data_path")

	state.State.DataPath = dataRoot
	state.State.FilesPath = derivedPath("files_path", dataRoot, "files")
	state.State.PotfilePath = derivedPath("potfile_path", dataRoot, "cipherswarm.potfile")
	state.State.RestorePath = derivedPath("restore_path", dataRoot, "restore")
	state.State.AutotuneCachePath = derivedPath("autotune_cache_path", dataRoot, "autotune.json")
	state.State.LockPath = derivedPath("lock_path", dataRoot, "lock.pid")
	state.State.OutfileWatchPath = viper.GetString("outfile_watch")
	state.State.Session = viper.GetString("session")
	state.State.Debug = viper.GetBool("debug")
	state.State.ExtraDebugging = viper.GetBool("extra_debugging")
	state.State.StatusTimer = viper.GetDuration("status_timer")
	state.State.RestoreTimer = viper.GetDuration("restore_timer")
	state.State.Runtime = viper.GetDuration("runtime")
	state.State.Devices = viper.GetInt("devices")
	state.State.KernelPower = viper.GetUint64("kernel_power")
	state.State.PwMin = viper.GetInt("pw_min")
	state.State.PwMax = viper.GetInt("pw_max")
	state.State.KeepAllHashes = viper.GetBool("keep_all_hashes")
	state.State.PotfileDisable = viper.GetBool("potfile_disable")
	state.State.StatusJSON = viper.GetBool("status_json")
	state.State.ProgressBar = viper.GetBool("progress_bar")
	state.State.MetricsAddr = viper.GetString("metrics_addr")
	state.State.StatusPushURL = viper.GetString("status_push_url")
	state.State.StatusPushToken = viper.GetString("status_push_token")

	if strutil.IsBlank(state.State.Session) {
		state.State.Session = DefaultSession
	}

	if state.State.StatusTimer <= 0 {
		state.State.StatusTimer = DefaultStatusTimer
	}

	if state.State.RestoreTimer <= 0 {
		state.State.RestoreTimer = DefaultRestoreTimer
	}

	if state.State.Runtime < 0 {
		state.State.Runtime = 0
	}

	if state.State.Devices < 1 {
		state.State.Devices = device.LogicalCPUs(context.Background())
	}

	if state.State.PwMin < 0 {
		state.State.PwMin = 0
	}

	if state.State.PwMax < 0 {
		state.State.PwMax = DefaultPwMax
	}

	if state.State.Debug {
		state.Logger.SetLevel(log.DebugLevel)
		state.Logger.SetReportCaller(true)
	}
}

// CreateDataDirs creates the directories the run writes into.
func CreateDataDirs() error {
	dataDirs := []string{
		state.State.DataPath,
		state.State.FilesPath,
		state.State.RestorePath,
		filepath.Dir(state.State.PotfilePath),
		filepath.Dir(state.State.AutotuneCachePath),
	}

	for _, dir := range dataDirs {
		if strutil.IsBlank(dir) {
			state.Logger.Error("Data directory not set")

			continue
		}

		if !fileutil.IsDir(dir) {
			if err := fileutil.CreateDir(dir); err != nil {
				state.Logger.Error("Error creating directory", "path", dir, "error", err)

				return errors.Wrapf(err, "creating %q", dir)
			}

			state.Logger.Info("Created directory", "path", dir)
		}
	}

	return nil
}
