package display

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/potfile"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
)

const barTemplate pb.ProgressBarTemplate = `{{string . "status"}} {{bar . }} {{percent . }} {{string . "speed"}} {{etime . }}`

// crackLine is the machine-readable form of a cracked hash.
type crackLine struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Hash     string    `json:"hash"`
	User     string    `json:"user,omitempty"`
	Plain    string    `json:"plain"`
	DeviceID int       `json:"device_id"`
}

// statusLine wraps a snapshot for the machine-readable stream.
type statusLine struct {
	Type string `json:"type"`
	status.Snapshot
}

// Printer is the single consumer of dispatcher events and status snapshots. Workers never write to the
// terminal themselves.
type Printer struct {
	Out       io.Writer
	JSON      bool // JSON writes one JSON object per line instead of log records.
	Bar       bool // Bar renders a progress bar on Out. Ignored in JSON mode.
	Events    <-chan dispatch.Event
	Snapshots <-chan status.Snapshot

	mu  sync.Mutex
	enc *json.Encoder
	bar *pb.ProgressBar
}

// Run prints until both channels are closed or ctx is done.
func (p *Printer) Run(ctx context.Context) error {
	events, snapshots := p.Events, p.Snapshots

	defer p.finishBar()

	for events != nil || snapshots != nil {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil

				continue
			}

			if err := p.event(ev); err != nil {
				return err
			}
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil

				continue
			}

			if err := p.snapshot(snap); err != nil {
				return err
			}
		}
	}

	return nil
}

func (p *Printer) encoder() *json.Encoder {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enc == nil {
		p.enc = json.NewEncoder(p.Out)
	}

	return p.enc
}

func (p *Printer) event(ev dispatch.Event) error {
	if !p.JSON {
		Event(ev)

		return nil
	}

	if ev.Kind != dispatch.EventCracked {
		Event(ev)

		return nil
	}

	line := crackLine{
		Type:     "cracked",
		Time:     ev.At,
		Hash:     ev.Hash,
		User:     ev.User,
		Plain:    potfile.EncodePlain(ev.Plain),
		DeviceID: ev.DeviceID,
	}

	return errors.Wrap(p.encoder().Encode(line), "writing crack line")
}

func (p *Printer) snapshot(snap status.Snapshot) error {
	if p.JSON {
		return errors.Wrap(p.encoder().Encode(statusLine{Type: "status", Snapshot: snap}), "writing status line")
	}

	if p.Bar && len(snap.Progress) >= MinStatusFields {
		p.updateBar(snap)

		return nil
	}

	Status(snap)

	return nil
}

func (p *Printer) updateBar(snap status.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = pb.New64(0).SetTemplate(barTemplate).SetWriter(p.Out)
		p.bar.Start()
	}

	p.bar.SetTotal(int64(snap.Progress[1])) //nolint:gosec // display only
	p.bar.SetCurrent(int64(snap.Progress[0])) //nolint:gosec // display only
	p.bar.Set("status", snap.StatusText)
	p.bar.Set("speed", status.FormatSpeed(snap.Speed))
}

func (p *Printer) finishBar() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
