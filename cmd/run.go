package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/duke-git/lancet/v2/strutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/config"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/display"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/downloader"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/runner"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// runFlags holds the attack-specific flags. Everything else is read through viper.
type runFlags struct {
	hashType       string
	attackMode     int
	skip           uint64
	limit          uint64
	username       bool
	hexSalt        bool
	restore        bool
	hashChecksum   string
	customCharsets [4]string
}

var flags runFlags

// runCmd runs an attack.
var runCmd = &cobra.Command{
	Use:   "run HASHFILE [WORDLIST|MASK|MASKFILE ...]",
	Short: "Run an attack against a hash list",
	Long: "Run an attack against a hash list.\n\n" +
		"Attack mode 0 takes one or more wordlists, mode 1 takes a left and a right wordlist and mode 3 takes " +
		"masks or mask files. The hash list and wordlists may be URLs; they are downloaded into the files " +
		"directory first.\n\n" +
		"The first interrupt stops the run at the next checkpoint; a second one aborts immediately.",
	Args: cobra.MinimumNArgs(1),
	RunE: runAttack,
}

func init() {
	f := runCmd.Flags()

	f.StringVarP(&flags.hashType, "hash-type", "m", "md5", "Hash type, by name or hash mode number")
	f.IntVarP(&flags.attackMode, "attack-mode", "a", status.AttackModeDictionary,
		"Attack mode: 0 dictionary, 1 combinator, 3 mask")
	f.Uint64VarP(&flags.skip, "skip", "s", 0, "Skip this many base words")
	f.Uint64VarP(&flags.limit, "limit", "l", 0, "Stop at this base word offset")
	f.BoolVar(&flags.username, "username", false, "Hash lines start with a username")
	f.BoolVar(&flags.hexSalt, "hex-salt", false, "Salts are given in hex")
	f.BoolVar(&flags.restore, "restore", false, "Resume the session from its checkpoint")
	f.StringVar(&flags.hashChecksum, "hash-checksum", "", "Expected md5 of a downloaded hash list")

	for i := range flags.customCharsets {
		n := string(rune('1' + i))
		f.StringVarP(&flags.customCharsets[i], "custom-charset"+n, n, "", "Custom charset ?"+n)
	}

	f.Duration("runtime", 0, "Abort the session after this much running time")
	f.Duration("status-timer", config.DefaultStatusTimer, "Interval between status updates")
	f.Duration("restore-timer", config.DefaultRestoreTimer, "Interval between checkpoint writes")
	f.IntP("devices", "d", 0, "Number of CPU devices (default: logical CPU count)")
	f.Uint64("kernel-power", 0, "Base words per kernel call (default: autotune)")
	f.Int("pw-min", 0, "Reject candidates shorter than this")
	f.Int("pw-max", config.DefaultPwMax, "Reject candidates longer than this")
	f.Bool("keep-all-hashes", false, "Keep duplicate hashes")
	f.Bool("potfile-disable", false, "Do not read or write the potfile")
	f.String("potfile-path", "", "Potfile location")
	f.Bool("status-json", false, "Print machine-readable status lines")
	f.Bool("progress-bar", false, "Show a progress bar")
	f.String("outfile-watch", "", "Follow an outfile written by another instance")
	f.String("metrics-addr", "", "Serve prometheus metrics on this address")
	f.String("status-push-url", "", "POST status snapshots to this URL")

	for _, name := range []string{
		"runtime", "status-timer", "restore-timer", "devices", "kernel-power", "pw-min", "pw-max",
		"keep-all-hashes", "potfile-disable", "potfile-path", "status-json", "progress-bar", "outfile-watch",
		"metrics-addr", "status-push-url",
	} {
		cobra.CheckErr(viper.BindPFlag(strutil.SnakeCase(name), f.Lookup(name)))
	}
}

func runAttack(cmd *cobra.Command, args []string) error {
	config.SetupSharedState()

	if err := config.CreateDataDirs(); err != nil {
		return err
	}

	display.Startup()
	defer display.ShuttingDown()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	attack, err := buildAttack(ctx, args)
	if err != nil {
		return reportFailure(err)
	}

	opts := runner.OptionsFromState()
	opts.Restore = flags.restore

	r := runner.New(attack, opts)

	go handleSignals(ctx, cancel, r)

	st, err := r.Run(ctx)
	exitCode = st.ExitCode()

	if err != nil {
		return reportFailure(err)
	}

	return nil
}

// buildAttack resolves remote references and turns the arguments into an attack.
func buildAttack(ctx context.Context, args []string) (runner.Attack, error) {
	hashFile, err := downloader.Fetch(ctx, args[0], state.State.FilesPath, flags.hashChecksum)
	if err != nil {
		return runner.Attack{}, err
	}

	attack := runner.Attack{
		Mode:     flags.attackMode,
		HashFile: hashFile,
		HashType: flags.hashType,
		Username: flags.username,
		HexSalt:  flags.hexSalt,
		Skip:     flags.skip,
		Limit:    flags.limit,
		PwMin:    state.State.PwMin,
		PwMax:    state.State.PwMax,
	}

	for _, cs := range flags.customCharsets {
		if cs != "" {
			attack.CustomCharsets = append(attack.CustomCharsets, cs)
		}
	}

	rest := args[1:]

	switch flags.attackMode {
	case status.AttackModeMask:
		attack.Masks, err = runner.ExpandMasks(rest)
		if err != nil {
			return attack, err
		}
	case status.AttackModeCombinator:
		if len(rest) != 2 { //nolint:mnd // left and right wordlist
			return attack, cserrors.NewFatalConfigError("wordlist", "combinator attack takes two wordlists",
				"run HASHFILE LEFT RIGHT -a 1")
		}

		lists, err := fetchAll(ctx, rest)
		if err != nil {
			return attack, err
		}

		attack.Wordlists, attack.RightWordlist = lists[:1], lists[1]
	default:
		attack.Wordlists, err = fetchAll(ctx, rest)
		if err != nil {
			return attack, err
		}
	}

	return attack, nil
}

func fetchAll(ctx context.Context, srcs []string) ([]string, error) {
	out := make([]string, 0, len(srcs))

	for _, src := range srcs {
		local, err := downloader.Fetch(ctx, src, state.State.FilesPath, "")
		if err != nil {
			return nil, err
		}

		out = append(out, local)
	}

	return out, nil
}

// handleSignals turns the first interrupt into stop-at-checkpoint and any further signal into an abort.
func handleSignals(ctx context.Context, cancel context.CancelFunc, r *runner.Runner) {
	sigCh := make(chan os.Signal, 2) //nolint:mnd // two interrupts are meaningful
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	armed := false

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			state.Logger.Debug("Received signal", "signal", sig)

			if sig == os.Interrupt && !armed && r.CheckpointQuit() {
				armed = true

				state.Logger.Info("Stopping at the next checkpoint, interrupt again to abort")

				continue
			}

			state.State.SetQuitting(true)
			cancel()

			return
		}
	}
}

func reportFailure(err error) error {
	display.Failed(err)

	for _, hint := range cserrors.Hints(err) {
		state.Logger.Info("Hint", "hint", hint)
	}

	return err
}
