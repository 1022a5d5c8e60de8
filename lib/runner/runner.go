package runner

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/jonboulle/clockwork"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/display"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/potfile"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/restore"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
	"golang.org/x/sync/errgroup"
)

const (
	eventBuffer       = 1024
	snapshotBuffer    = 16
	monitorInterval   = time.Second
	metricsReadHeader = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
	restoreFileExt    = ".restore"
)

// ErrNoDevices is returned when every device has been skipped.
var ErrNoDevices = errors.New("no usable devices left")

// KernelFactory builds the kernel shared by all devices of a run.
type KernelFactory func(reg *hashlist.Registry) (device.Kernel, error)

// Options are the run settings that do not describe the attack itself.
type Options struct {
	Session           string
	RestorePath       string // RestorePath is the directory holding <session>.restore.
	Restore           bool   // Restore resumes from the session's checkpoint when one exists.
	PotfilePath       string
	PotfileDisable    bool
	KeepAllHashes     bool
	LockPath          string // LockPath is the PID file; empty disables locking.
	AutotuneCachePath string
	OutfileWatch      string
	Devices           int
	KernelPower       uint64 // KernelPower skips autotuning when non-zero.
	StatusTimer       time.Duration
	RestoreTimer      time.Duration
	Runtime           time.Duration
	StatusJSON        bool
	ProgressBar       bool
	MetricsAddr       string
	StatusPushURL     string
	StatusPushToken   string
	Out               io.Writer       // Out receives JSON status lines and the progress bar. Defaults to stdout.
	Clock             clockwork.Clock // Clock defaults to the real clock.
	NewKernel         KernelFactory   // NewKernel defaults to the CPU kernel.
	Monitor           *device.Monitor // Monitor defaults to a gopsutil-backed monitor.
}

// OptionsFromState returns the options resolved by the config package.
func OptionsFromState() Options {
	return Options{
		Session:           state.State.Session,
		RestorePath:       state.State.RestorePath,
		PotfilePath:       state.State.PotfilePath,
		PotfileDisable:    state.State.PotfileDisable,
		KeepAllHashes:     state.State.KeepAllHashes,
		LockPath:          state.State.LockPath,
		AutotuneCachePath: state.State.AutotuneCachePath,
		OutfileWatch:      state.State.OutfileWatchPath,
		Devices:           state.State.Devices,
		KernelPower:       state.State.KernelPower,
		StatusTimer:       state.State.StatusTimer,
		RestoreTimer:      state.State.RestoreTimer,
		Runtime:           state.State.Runtime,
		StatusJSON:        state.State.StatusJSON,
		ProgressBar:       state.State.ProgressBar,
		MetricsAddr:       state.State.MetricsAddr,
		StatusPushURL:     state.State.StatusPushURL,
		StatusPushToken:   state.State.StatusPushToken,
	}
}

// RestoreFile returns the checkpoint path of a session.
func RestoreFile(dir, session string) string {
	return filepath.Join(dir, session+restoreFileExt)
}

// Runner executes one attack. A Runner is single-use.
type Runner struct {
	attack Attack
	opts   Options
	clock  clockwork.Clock

	session   atomic.Pointer[dispatch.Session]
	events    chan dispatch.Event
	snapshots chan status.Snapshot
	exporter  *status.Exporter
	pusher    *status.Pusher
}

// New returns a runner for attack.
func New(attack Attack, opts Options) *Runner {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	if opts.Out == nil {
		opts.Out = os.Stdout
	}

	if opts.NewKernel == nil {
		opts.NewKernel = func(reg *hashlist.Registry) (device.Kernel, error) {
			return device.NewCPUKernel(reg)
		}
	}

	if opts.Monitor == nil {
		opts.Monitor = device.NewMonitor()
	}

	if opts.Devices < 1 {
		opts.Devices = 1
	}

	if opts.StatusTimer <= 0 {
		opts.StatusTimer = 10 * time.Second
	}

	if opts.RestoreTimer <= 0 {
		opts.RestoreTimer = 60 * time.Second
	}

	return &Runner{attack: attack, opts: opts, clock: opts.Clock}
}

// RestoreFile returns the checkpoint path of this run.
func (r *Runner) RestoreFile() string {
	return RestoreFile(r.opts.RestorePath, r.opts.Session)
}

// Session returns the running session, or nil before devices start.
func (r *Runner) Session() *dispatch.Session {
	return r.session.Load()
}

func (r *Runner) control() *dispatch.Control {
	if s := r.session.Load(); s != nil {
		return s.Control()
	}

	return nil
}

// Pause pauses every worker after its in-flight unit.
func (r *Runner) Pause() bool {
	if c := r.control(); c != nil {
		return c.Pause()
	}

	return false
}

// Resume releases paused workers.
func (r *Runner) Resume() bool {
	if c := r.control(); c != nil {
		return c.Resume()
	}

	return false
}

// Bypass abandons the current segment and continues with the next one.
func (r *Runner) Bypass() {
	if c := r.control(); c != nil {
		c.Stop(dispatch.StopSegment, dispatch.StatusBypass)
	}
}

// Quit stops the whole run after in-flight units complete.
func (r *Runner) Quit() {
	if c := r.control(); c != nil {
		c.Stop(dispatch.StopSession, dispatch.StatusQuit)
	}
}

// CheckpointQuit toggles stop-at-next-checkpoint and returns whether it is now armed.
func (r *Runner) CheckpointQuit() bool {
	s := r.session.Load()
	if s == nil {
		return false
	}

	return s.Control().ToggleCheckpointQuit(s.RestorePoint())
}

// Run executes the attack and returns its terminal status. Configuration problems are returned as
// *cserrors.FatalConfigError before anything is started.
func (r *Runner) Run(ctx context.Context) (dispatch.Status, error) {
	state.State.SetActivity(state.ActivityStarting)
	defer state.State.SetActivity(state.ActivityStopping)

	if err := r.attack.Validate(); err != nil {
		return dispatch.StatusError, err
	}

	if err := acquireLock(r.opts.LockPath); err != nil {
		return dispatch.StatusError, err
	}
	defer releaseLock(r.opts.LockPath)

	state.State.SetActivity(state.ActivityLoading)

	parser, err := r.attack.Parser()
	if err != nil {
		return dispatch.StatusError, err
	}

	reg, err := r.loadRegistry(parser)
	if err != nil {
		return dispatch.StatusError, err
	}

	display.HashesLoaded(r.attack.HashFile, reg)

	var crackWriter dispatch.CrackWriter

	if !r.opts.PotfileDisable {
		marked, err := potfile.Load(r.opts.PotfilePath, reg, parser)
		if err != nil {
			_ = cserrors.LogError("Failed to read potfile", err, cserrors.SeverityWarning)
		}

		display.PotfileLoaded(r.opts.PotfilePath, marked)

		if reg.AllShown() {
			state.Logger.Info("All hashes found in potfile")

			return dispatch.StatusCracked, nil
		}

		pot, err := potfile.Open(r.opts.PotfilePath)
		if err != nil {
			return dispatch.StatusError, err
		}
		defer func() { _ = pot.Close() }()

		crackWriter = pot
	}

	rec, err := r.loadCheckpoint(reg)
	if err != nil {
		return dispatch.StatusError, err
	}

	kernel, err := r.opts.NewKernel(reg)
	if err != nil {
		return dispatch.StatusError, cserrors.NewFatalConfigError("hash-type", err.Error(), "")
	}

	devices := device.CPUDevices(ctx, r.opts.Devices, r.opts.KernelPower, kernel)

	r.events = make(chan dispatch.Event, eventBuffer)
	r.snapshots = make(chan status.Snapshot, snapshotBuffer)

	sess := dispatch.NewSession(dispatch.Config{
		Registry: reg,
		Devices:  devices,
		Filter:   r.attack.Filter(),
		Clock:    r.clock,
		Potfile:  crackWriter,
		Events:   r.events,
		Session:  r.opts.Session,
	})
	r.session.Store(sess)

	reporter := &status.Reporter{
		Session:  sess,
		Target:   r.attack.HashFile,
		Mode:     r.attack.Mode,
		Mod:      r.attack.mod(),
		Segments: r.attack.Segments(),
		Monitor:  r.opts.Monitor,
	}

	printer := &display.Printer{
		Out:       r.opts.Out,
		JSON:      r.opts.StatusJSON,
		Bar:       r.opts.ProgressBar,
		Events:    r.events,
		Snapshots: r.snapshots,
	}

	printerDone := make(chan struct{})

	go func() {
		defer close(printerDone)

		if err := printer.Run(context.WithoutCancel(ctx)); err != nil {
			_ = cserrors.LogError("Status output failed", err, cserrors.SeverityMinor)
			drain(r.events, r.snapshots)
		}
	}()

	auxCtx, stopAux := context.WithCancel(ctx)

	var aux errgroup.Group

	r.startMetrics(auxCtx, &aux)
	r.startWatcher(auxCtx, &aux, sess, parser)

	sess.Control().SetStatus(dispatch.StatusAutotune)
	r.tune(ctx, reg, devices)

	st, runErr := r.loop(ctx, sess, reporter, rec)

	stopAux()
	_ = aux.Wait()

	r.finishCheckpoint(sess, st)

	r.publish(context.WithoutCancel(ctx), reporter.Snapshot())

	close(r.events)
	close(r.snapshots)
	<-printerDone

	display.Finished(st, sess.Control().Runtime())

	return st, runErr
}

// drain discards everything left on both channels until they are closed.
func drain(events <-chan dispatch.Event, snapshots <-chan status.Snapshot) {
	for events != nil || snapshots != nil {
		select {
		case _, ok := <-events:
			if !ok {
				events = nil
			}
		case _, ok := <-snapshots:
			if !ok {
				snapshots = nil
			}
		}
	}
}

func (r *Runner) loadRegistry(p hashlist.Parser) (*hashlist.Registry, error) {
	f, err := os.Open(r.attack.HashFile)
	if err != nil {
		return nil, errors.Wrapf(err, "opening hash file %q", r.attack.HashFile)
	}
	defer func() { _ = f.Close() }()

	reg, err := hashlist.Load(f, p, hashlist.LoadOptions{KeepAll: r.opts.KeepAllHashes})
	if err != nil {
		return nil, errors.Wrapf(err, "loading %q", r.attack.HashFile)
	}

	return reg, nil
}

// loadCheckpoint returns the record to resume from, or nil for a fresh start. An unreadable record is logged
// and ignored; a record for a different hash list is fatal.
func (r *Runner) loadCheckpoint(reg *hashlist.Registry) (*restore.Record, error) {
	if !r.opts.Restore {
		return nil, nil
	}

	path := r.RestoreFile()

	rec, err := restore.Load(path)
	if err != nil {
		_ = cserrors.LogError("Ignoring unreadable checkpoint", err, cserrors.SeverityWarning)

		return nil, nil
	}

	if rec == nil {
		state.Logger.Info("No checkpoint found, starting from the beginning", "path", path)

		return nil, nil
	}

	if rec.Fingerprint != reg.Fingerprint() {
		return nil, cserrors.NewFatalConfigError("restore", "checkpoint belongs to a different hash list",
			"remove "+path+" or run without --restore")
	}

	if r.attack.startPos(rec.DictPos, rec.MaskPos) >= r.attack.Segments() {
		return nil, cserrors.NewFatalConfigError("restore", "checkpoint segment is beyond the attack's segments", "")
	}

	return rec, nil
}

// tune sets each device's kernel power. Devices that fail to autotune are skipped.
func (r *Runner) tune(ctx context.Context, reg *hashlist.Registry, devices []*device.Device) {
	if r.opts.KernelPower > 0 {
		for _, d := range devices {
			display.DeviceReady(d.ID, d.Name, d.KernelPower, false)
		}

		return
	}

	state.State.SetActivity(state.ActivityAutotuning)

	tuner := device.NewAutotuner(r.opts.AutotuneCachePath, r.clock)

	for _, d := range devices {
		if _, err := tuner.Tune(ctx, d, reg.Format().Mode, reg.SaltsCnt()); err != nil {
			info := device.ClassifyError(err)
			derr := &cserrors.DeviceError{DeviceID: d.ID, Category: info.Category.String(), Err: err}

			d.MarkSkipped(derr.Error())
			_ = cserrors.LogError("Autotune failed, skipping device", derr, info.Severity)

			continue
		}

		display.DeviceReady(d.ID, d.Name, d.KernelPower, true)
	}
}

// loop walks the segments from the restored position until the keyspace is exhausted or the control stops
// the run.
func (r *Runner) loop(ctx context.Context, sess *dispatch.Session, reporter *status.Reporter,
	rec *restore.Record,
) (dispatch.Status, error) {
	ctl := sess.Control()
	segments := r.attack.Segments()

	start := 0
	if rec != nil {
		start = r.attack.startPos(rec.DictPos, rec.MaskPos)
	}

	state.State.SetActivity(state.ActivityCracking)
	ctl.Start()

	for pos := start; pos < segments; pos++ {
		if sess.ActiveDevices() == 0 {
			ctl.Fail(ErrNoDevices)

			break
		}

		seg, err := r.attack.segment(pos)
		if err != nil {
			ctl.Fail(err)

			break
		}

		if err := r.prepare(sess, seg, pos == start, rec); err != nil {
			_ = seg.Source.Close()

			ctl.Fail(err)

			break
		}

		cur := sess.Cursor()
		display.SegmentStarting(pos, segments, cur.Describe, cur.WordsBase)

		err = r.runSegment(ctx, sess, reporter)
		_ = seg.Source.Close()

		if err != nil {
			ctl.Fail(err)

			break
		}

		if sess.ActiveDevices() == 0 && !ctl.Status().Terminal() {
			ctl.Fail(ErrNoDevices)

			break
		}

		if pos+1 < segments && !ctl.NextSegment() {
			break
		}
	}

	return ctl.Finish(dispatch.StatusExhausted), ctl.Err()
}

func (r *Runner) prepare(sess *dispatch.Session, seg dispatch.Segment, first bool, rec *restore.Record) error {
	if err := sess.Reset(seg); err != nil {
		return err
	}

	if !first || rec == nil || rec.WordsCur == 0 {
		return nil
	}

	if err := sess.Restore(rec.WordsCur); err != nil {
		return err
	}

	display.Restoring(sess.Name(), rec.WordsCur, sess.RestorePercent())

	return nil
}

// runSegment runs one worker per active device next to the monitor and waits for all of them.
func (r *Runner) runSegment(ctx context.Context, sess *dispatch.Session, reporter *status.Reporter) error {
	ctl := sess.Control()
	tok := ctl.Token()

	g, gctx := errgroup.WithContext(ctx)

	for _, d := range sess.Devices() {
		if d.Skipped() {
			continue
		}

		g.Go(func() error {
			return sess.RunDevice(gctx, d, tok)
		})
	}

	done := make(chan struct{})
	monitorDone := make(chan struct{})

	go func() {
		defer close(monitorDone)

		r.monitor(ctx, sess, reporter, done)
	}()

	err := g.Wait()

	close(done)
	<-monitorDone

	if ctx.Err() != nil {
		ctl.Stop(dispatch.StopSession, dispatch.StatusAborted)

		return nil
	}

	return err
}

// monitor drives the status timer, the restore timer, the runtime limit and stop-at-checkpoint until done is
// closed.
func (r *Runner) monitor(ctx context.Context, sess *dispatch.Session, reporter *status.Reporter,
	done <-chan struct{},
) {
	ctl := sess.Control()

	statusTicker := r.clock.NewTicker(r.opts.StatusTimer)
	defer statusTicker.Stop()

	restoreTicker := r.clock.NewTicker(r.opts.RestoreTimer)
	defer restoreTicker.Stop()

	ticker := r.clock.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			ctl.Stop(dispatch.StopSession, dispatch.StatusAborted)

			return
		case <-statusTicker.Chan():
			r.opts.Monitor.Sample(ctx)
			r.publish(ctx, reporter.Snapshot())
		case <-restoreTicker.Chan():
			r.saveCheckpoint(sess)
		case <-ticker.Chan():
			if ctl.CheckRuntime(r.opts.Runtime) {
				state.Logger.Info("Runtime limit reached", "runtime", r.opts.Runtime)
			}

			if ctl.CheckpointQuitArmed() && ctl.CheckpointReached(sess.RestorePoint()) {
				state.Logger.Info("Checkpoint reached, stopping")
			}
		}
	}
}

// publish hands a snapshot to the exporter, the pusher and the printer.
func (r *Runner) publish(ctx context.Context, snap status.Snapshot) {
	if r.exporter != nil {
		r.exporter.Update(snap)
	}

	if r.pusher != nil {
		if err := r.pusher.Push(ctx, snap); err != nil {
			_ = cserrors.LogError("Failed to push status", err, cserrors.SeverityMinor)
		}
	}

	r.snapshots <- snap
}

func (r *Runner) saveCheckpoint(sess *dispatch.Session) {
	path := r.RestoreFile()

	if dir := filepath.Dir(path); !fileutil.IsDir(dir) {
		if err := fileutil.CreateDir(dir); err != nil {
			r.events <- dispatch.Event{Kind: dispatch.EventCheckpointFailed, At: r.clock.Now(), Err: err}

			return
		}
	}

	rec := sess.Checkpoint()
	if err := restore.Save(path, &rec); err != nil {
		r.events <- dispatch.Event{Kind: dispatch.EventCheckpointFailed, At: r.clock.Now(), Err: err}

		return
	}

	display.CheckpointWritten(path, rec.WordsCur)
}

// finishCheckpoint removes the checkpoint of a completed run and persists the last restore point otherwise.
func (r *Runner) finishCheckpoint(sess *dispatch.Session, st dispatch.Status) {
	if st.IsNormalCompletion() {
		if err := restore.Remove(r.RestoreFile()); err != nil {
			_ = cserrors.LogError("Failed to remove checkpoint", err, cserrors.SeverityWarning)
		}

		return
	}

	r.saveCheckpoint(sess)
}

// startMetrics serves the prometheus exporter and creates the status pusher when configured.
func (r *Runner) startMetrics(ctx context.Context, g *errgroup.Group) {
	if strutil.IsNotBlank(r.opts.StatusPushURL) {
		r.pusher = status.NewPusher(r.opts.StatusPushURL, r.opts.StatusPushToken)
	}

	if strutil.IsBlank(r.opts.MetricsAddr) {
		return
	}

	r.exporter = status.NewExporter()

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.exporter.Handler())

	srv := &http.Server{Addr: r.opts.MetricsAddr, Handler: mux, ReadHeaderTimeout: metricsReadHeader}

	g.Go(func() error {
		state.Logger.Info("Serving metrics", "addr", r.opts.MetricsAddr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = cserrors.LogError("Metrics server failed", err, cserrors.SeverityMajor)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})
}

// startWatcher follows an outfile written by another instance and marks its hashes cracked here too.
func (r *Runner) startWatcher(ctx context.Context, g *errgroup.Group, sess *dispatch.Session, p hashlist.Parser) {
	if strutil.IsBlank(r.opts.OutfileWatch) {
		return
	}

	w := &potfile.Watcher{
		Path:     r.opts.OutfileWatch,
		Registry: sess.Registry(),
		Parser:   p,
		OnEntry: func(e potfile.Entry) {
			r.events <- dispatch.Event{Kind: dispatch.EventCracked, At: r.clock.Now(), Hash: e.Hash, Plain: e.Plain}
		},
		OnAllShown: func() {
			sess.Control().Stop(dispatch.StopSession, dispatch.StatusCracked)
		},
	}

	g.Go(func() error {
		if err := w.Watch(ctx); err != nil {
			_ = cserrors.LogError("Outfile watcher stopped", err, cserrors.SeverityWarning)
		}

		return nil
	})
}
