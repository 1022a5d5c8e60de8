package status

import (
	"math"

	"github.com/dustin/go-humanize"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/progress"
)

// Reporter assembles snapshots of one session. It only reads shared state; each figure is taken under the lock
// that owns it.
type Reporter struct {
	Session  *dispatch.Session
	Target   string          // Target names the hash list.
	Mode     int             // Mode is the attack mode.
	Mod      string          // Mod names the right-hand side of a combinator attack.
	Segments int             // Segments is the number of wordlists or masks in the attack.
	Monitor  *device.Monitor // Monitor supplies CPU temperature and utilization. Optional.
}

// Snapshot captures the current state of the session.
func (r *Reporter) Snapshot() Snapshot {
	sess := r.Session
	reg := sess.Registry()
	ctl := sess.Control()
	now := sess.Clock().Now()
	cur := sess.Cursor()

	totals := sess.Ledger().Totals(reg.SaltShown, cur.WordsBase*cur.Amplifier)
	st := ctl.Status()

	snap := Snapshot{
		Time:            now,
		Session:         sess.Name(),
		Status:          int(st),
		StatusText:      st.String(),
		Target:          r.Target,
		Guess:           r.guess(cur),
		Progress:        []uint64{totals.Cur, totals.End},
		ProgressPercent: progress.Percent(totals.Cur, totals.End),
		RestorePoint:    sess.RestorePoint(),
		RestorePercent:  sess.RestorePercent(),
		RecoveredHashes: []int{reg.DigestsDone(), reg.DigestsCnt()},
		RecoveredSalts:  []int{reg.SaltsDone(), reg.SaltsCnt()},
		Rejected:        totals.Rejected,
		Restored:        totals.Restored,
		Runtime:         ctl.Runtime(),
		CPT: CPT{
			Minute: sess.CrackRate().Window(now, progress.CPTMinute),
			Hour:   sess.CrackRate().Window(now, progress.CPTHour),
			Day:    sess.CrackRate().Window(now, progress.CPTDay),
		},
	}

	if started := ctl.Started(); !started.IsZero() {
		snap.TimeStart = started.Unix()
	}

	var reading device.Reading
	if r.Monitor != nil {
		reading = r.Monitor.Last()
	} else {
		reading = device.Reading{TempC: -1, UtilPct: -1}
	}

	for _, d := range sess.Devices() {
		ds := Device{
			DeviceID:   d.ID,
			DeviceName: d.Name,
			DeviceType: d.Type,
			Cracked:    d.Cracked(),
			Util:       -1,
			Temp:       -1,
		}

		speed, ok := d.Speed()
		if !ok {
			ds.Skipped = true
			ds.SpeedText = NotAvailable
			snap.Devices = append(snap.Devices, ds)

			continue
		}

		ds.Speed = speed
		ds.SpeedText = FormatSpeed(speed)
		ds.ExecMs = d.ExecMs()

		if d.Type == device.TypeCPU {
			ds.Util = sensorValue(reading.UtilPct)
			ds.Temp = sensorValue(reading.TempC)
		}

		snap.Speed += speed
		snap.DevicesActive++
		snap.Devices = append(snap.Devices, ds)
	}

	if st == dispatch.StatusRunning {
		snap.ETA = progress.ETA(totals.End-min(totals.Cur, totals.End), snap.Speed)
		if snap.ETA > 0 {
			snap.EstimatedStop = now.Add(snap.ETA).Unix()
		}
	}

	return snap
}

func (r *Reporter) guess(cur dispatch.Cursor) Guess {
	g := Guess{
		Base:      cur.Describe,
		BaseCount: r.Segments,
		Mod:       r.Mod,
		Mode:      r.Mode,
	}

	pos := cur.Segment.DictPos
	if r.Mode == AttackModeMask {
		pos = cur.Segment.MaskPos
	}

	g.BaseOffset = int(pos) + 1
	if g.BaseCount > 0 {
		g.BasePercent = float64(g.BaseOffset) / float64(g.BaseCount) * 100 //nolint:mnd // percent
	}

	return g
}

func sensorValue(v float64) int {
	if v < 0 {
		return -1
	}

	return int(math.Round(v))
}

// FormatSpeed renders hashes per second with an SI suffix, e.g. "1.2 MH/s".
func FormatSpeed(hps float64) string {
	return humanize.SI(hps, "H/s")
}
