// Package dispatch partitions a keyspace across device workers under one shared cursor, accounts their results
// and derives the checkpoint restore point.
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/candidates"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/progress"
)

// ErrSessionStarted is returned by Restore once a worker has begun.
var ErrSessionStarted = errors.New("session already started")

// CrackWriter persists cracked hashes, typically a potfile.
type CrackWriter interface {
	Write(hash string, plain []byte) error
}

// EventKind identifies a display event.
type EventKind int

const (
	// EventCracked reports a newly cracked digest.
	EventCracked EventKind = iota
	// EventDeviceSkipped reports a device excluded after a hard error.
	EventDeviceSkipped
	// EventCheckpointFailed reports a checkpoint that could not be persisted.
	EventCheckpointFailed
)

// Event is a message for the display goroutine.
type Event struct {
	Kind     EventKind
	At       time.Time
	DeviceID int
	Hash     string
	User     string
	Plain    []byte
	Err      error
}

// Config wires a session to its collaborators.
type Config struct {
	Registry *hashlist.Registry
	Devices  []*device.Device
	Filter   candidates.Filter
	Clock    clockwork.Clock
	Potfile  CrackWriter  // Potfile may be nil.
	Events   chan<- Event // Events may be nil; sends happen outside every lock.
	Session  string       // Session is the session name stored in checkpoints.
}

// Segment describes one outer-loop iteration: a candidate source plus its position in the attack.
type Segment struct {
	Source  candidates.Source
	DictPos uint32
	MaskPos uint32
	Skip    uint64 // Skip is the absolute base-word offset to start from.
	Limit   uint64 // Limit is the absolute base-word offset to stop at; zero means the whole keyspace.
}

// Session is the state of one outer-loop iteration shared by all device workers. It is reset, not
// reallocated, between segments.
type Session struct {
	reg     *hashlist.Registry
	devices []*device.Device
	filter  candidates.Filter
	clock   clockwork.Clock
	potfile CrackWriter
	events  chan<- Event
	name    string
	ledger  *progress.Ledger
	cpt     *progress.CrackRate
	control *Control
	started atomic.Bool

	// dispatcher lock: cursor, source and power figures
	mu               sync.Mutex
	source           candidates.Source
	segment          Segment
	wordsBase        uint64
	wordsOff         uint64
	wordsStart       uint64
	amplifier        uint64
	kernelPowerAll   uint64
	hardwarePowerAll uint64
	kernelPowerFinal uint64

	// checkpoint lock
	cpMu           sync.Mutex
	restored       uint64
	lastCheckpoint uint64
}

// NewSession returns a session with no segment loaded.
func NewSession(cfg Config) *Session {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Session{
		reg:     cfg.Registry,
		devices: cfg.Devices,
		filter:  cfg.Filter,
		clock:   clock,
		potfile: cfg.Potfile,
		events:  cfg.Events,
		name:    cfg.Session,
		ledger:  progress.NewLedger(cfg.Registry.SaltsCnt()),
		cpt:     &progress.CrackRate{},
		control: NewControl(clock),
	}
}

// Reset loads a new segment: the cursor moves to seg.Skip, counters are cleared and device figures are
// recomputed. Arrays are reused.
func (s *Session) Reset(seg Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := seg.Source.Keyspace()
	if seg.Limit > 0 && seg.Limit < base {
		base = seg.Limit
	}

	if seg.Skip > base {
		return errors.Newf("skip %d is beyond the keyspace %d", seg.Skip, base)
	}

	if err := seg.Source.Seek(seg.Skip); err != nil {
		return errors.Wrap(err, "positioning candidate source")
	}

	s.source = seg.Source
	s.segment = seg
	s.wordsBase = base
	s.wordsOff = seg.Skip
	s.wordsStart = seg.Skip
	s.amplifier = max(seg.Source.Amplifier(), 1)
	s.kernelPowerFinal = 0
	s.kernelPowerAll = 0
	s.hardwarePowerAll = 0

	for _, d := range s.devices {
		d.Reset(seg.Skip)

		if d.Skipped() {
			continue
		}

		s.kernelPowerAll += d.KernelPower
		s.hardwarePowerAll += d.HardwarePower
	}

	s.ledger.Reset()
	s.ledger.SetRestored(seg.Skip * s.amplifier)

	s.cpMu.Lock()
	s.restored = seg.Skip
	s.lastCheckpoint = seg.Skip
	s.cpMu.Unlock()

	s.started.Store(false)

	return nil
}

// Restore seeds the cursor from a checkpoint taken in the same segment. It must run before any worker starts.
func (s *Session) Restore(wordsCur uint64) error {
	if s.started.Load() {
		return ErrSessionStarted
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.source == nil {
		return errors.New("no segment loaded")
	}

	if wordsCur > s.wordsBase {
		return errors.Newf("restore point %d is beyond the keyspace %d", wordsCur, s.wordsBase)
	}

	if err := s.source.Seek(wordsCur); err != nil {
		return errors.Wrap(err, "positioning candidate source")
	}

	s.wordsOff = wordsCur
	s.wordsStart = wordsCur

	for _, d := range s.devices {
		d.Reset(wordsCur)
	}

	s.ledger.Reset()
	s.ledger.SetRestored(wordsCur * s.amplifier)

	s.cpMu.Lock()
	s.restored = wordsCur
	s.lastCheckpoint = wordsCur
	s.cpMu.Unlock()

	return nil
}

// Control returns the run-level state machine.
func (s *Session) Control() *Control { return s.control }

// Registry returns the hash registry.
func (s *Session) Registry() *hashlist.Registry { return s.reg }

// Devices returns the device descriptors.
func (s *Session) Devices() []*device.Device { return s.devices }

// Ledger returns the progress ledger.
func (s *Session) Ledger() *progress.Ledger { return s.ledger }

// CrackRate returns the cracks-per-time ring.
func (s *Session) CrackRate() *progress.CrackRate { return s.cpt }

// Clock returns the session clock.
func (s *Session) Clock() clockwork.Clock { return s.clock }

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Cursor is a consistent read of the dispatcher state.
type Cursor struct {
	WordsBase        uint64
	WordsOff         uint64
	WordsStart       uint64
	Amplifier        uint64
	KernelPowerAll   uint64
	KernelPowerFinal uint64
	Segment          Segment
	Describe         string
}

// Cursor returns the dispatcher figures under the dispatcher lock.
func (s *Session) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := Cursor{
		WordsBase:        s.wordsBase,
		WordsOff:         s.wordsOff,
		WordsStart:       s.wordsStart,
		Amplifier:        s.amplifier,
		KernelPowerAll:   s.kernelPowerAll,
		KernelPowerFinal: s.kernelPowerFinal,
		Segment:          s.segment,
	}

	if s.source != nil {
		c.Describe = s.source.Describe()
	}

	return c
}

// ActiveDevices counts devices that are not skipped.
func (s *Session) ActiveDevices() int {
	n := 0

	for _, d := range s.devices {
		if !d.Skipped() {
			n++
		}
	}

	return n
}

func (s *Session) emit(ev Event) {
	if s.events == nil {
		return
	}

	s.events <- ev
}
