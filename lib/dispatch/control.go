package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// StopLevel is how far a stop request unwinds.
type StopLevel int32

const (
	// StopNone means keep running.
	StopNone StopLevel = iota
	// StopSegment ends the current wordlist/mask segment; the next one starts.
	StopSegment
	// StopIteration ends the current hash-mode iteration.
	StopIteration
	// StopSession ends the whole session.
	StopSession
)

// Control is the run-level state machine. Workers never read it directly; they receive a Token.
type Control struct {
	clock clockwork.Clock

	stop atomic.Int32

	mu             sync.Mutex
	status         Status
	resume         chan struct{}
	checkpointQuit bool
	checkpointAt   uint64
	started        time.Time
	pausedAt       time.Time
	pausedTotal    time.Duration
	err            error
}

// NewControl returns a control in StatusInit.
func NewControl(clock clockwork.Clock) *Control {
	return &Control{clock: clock, status: StatusInit}
}

// Token is the cancellation handle passed by value into each worker.
type Token struct {
	c *Control
}

// Token returns a handle for workers.
func (c *Control) Token() Token { return Token{c: c} }

// Stopped reports whether any stop level has been requested.
func (t Token) Stopped() bool { return t.c.Level() != StopNone }

// WaitIfPaused blocks while the run is paused. It returns false when the run was stopped or ctx ended while
// waiting.
func (t Token) WaitIfPaused(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}

		t.c.mu.Lock()
		ch := t.c.resume
		t.c.mu.Unlock()

		if ch == nil {
			return !t.Stopped()
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return false
		}
	}
}

// Start moves the control to Running and starts the runtime clock.
func (c *Control) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = StatusRunning
	c.started = c.clock.Now()
}

// SetStatus sets a non-terminal status such as Autotune.
func (c *Control) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.status.Terminal() {
		c.status = s
	}
}

// Status returns the current status.
func (c *Control) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.status
}

// Level returns the current stop level.
func (c *Control) Level() StopLevel { return StopLevel(c.stop.Load()) }

// Stop requests a cooperative stop. The level only ever rises; the first terminal status wins.
func (c *Control) Stop(level StopLevel, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		cur := c.stop.Load()
		if int32(level) <= cur || c.stop.CompareAndSwap(cur, int32(level)) {
			break
		}
	}

	if !c.status.Terminal() {
		c.status = status
	}

	c.releasePauseLocked()
}

// Fail stops the session with StatusError and records err.
func (c *Control) Fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()

	c.Stop(StopSession, StatusError)
}

// Err returns the error recorded by Fail.
func (c *Control) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

// Pause suspends workers at their next loop boundary. It returns false if not running.
func (c *Control) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusRunning {
		return false
	}

	c.status = StatusPaused
	c.resume = make(chan struct{})
	c.pausedAt = c.clock.Now()

	return true
}

// Resume releases paused workers. It returns false if not paused.
func (c *Control) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != StatusPaused {
		return false
	}

	c.status = StatusRunning
	c.releasePauseLocked()

	return true
}

func (c *Control) releasePauseLocked() {
	if c.resume == nil {
		return
	}

	c.pausedTotal += c.clock.Since(c.pausedAt)
	close(c.resume)
	c.resume = nil
}

// ToggleCheckpointQuit arms or disarms stop-at-checkpoint. When armed, the run stops as soon as the restore
// point moves past restorePoint. It returns the new armed state.
func (c *Control) ToggleCheckpointQuit(restorePoint uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checkpointQuit = !c.checkpointQuit
	c.checkpointAt = restorePoint

	return c.checkpointQuit
}

// CheckpointQuitArmed reports whether stop-at-checkpoint is armed.
func (c *Control) CheckpointQuitArmed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.checkpointQuit
}

// CheckpointReached stops the session when stop-at-checkpoint is armed and restorePoint has advanced past the
// value recorded at arm time.
func (c *Control) CheckpointReached(restorePoint uint64) bool {
	c.mu.Lock()
	armed := c.checkpointQuit && restorePoint > c.checkpointAt
	c.mu.Unlock()

	if armed {
		c.Stop(StopSession, StatusAbortedCheckpoint)
	}

	return armed
}

// Runtime is the time spent running, excluding pauses.
func (c *Control) Runtime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started.IsZero() {
		return 0
	}

	paused := c.pausedTotal
	if c.resume != nil {
		paused += c.clock.Since(c.pausedAt)
	}

	return c.clock.Since(c.started) - paused
}

// Started returns when Start was called.
func (c *Control) Started() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.started
}

// CheckRuntime requests an AbortedRuntime stop once the runtime exceeds limit. A zero limit disables it.
func (c *Control) CheckRuntime(limit time.Duration) bool {
	if limit <= 0 || c.Runtime() < limit {
		return false
	}

	c.Stop(StopSession, StatusAbortedRuntime)

	return true
}

// NextSegment clears a segment-level stop (for example a bypass) so the next segment can run. Higher levels
// and terminal statuses other than Bypass stay in place. A finished segment is a checkpoint, so an armed
// stop-at-checkpoint ends the run here with AbortedCheckpoint. It returns true when the run may continue.
func (c *Control) NextSegment() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop.Load() > int32(StopSegment) {
		return false
	}

	if c.checkpointQuit {
		c.stop.Store(int32(StopSession))

		if c.status == StatusBypass || !c.status.Terminal() {
			c.status = StatusAbortedCheckpoint
		}

		c.releasePauseLocked()

		return false
	}

	c.stop.Store(int32(StopNone))

	if c.status == StatusBypass {
		c.status = StatusRunning
	}

	return !c.status.Terminal()
}

// Finish sets the terminal status when the run ended without an explicit stop.
func (c *Control) Finish(s Status) Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.status.Terminal() {
		c.status = s
	}

	return c.status
}
