package dispatch

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// RunDevice is the worker loop of one device. It returns when the segment is exhausted, a stop is requested,
// every digest is cracked or the device fails. A device failure is absorbed: the device is skipped and nil is
// returned so the other workers continue. Only a candidate source failure is returned as an error.
func (s *Session) RunDevice(ctx context.Context, dev *device.Device, tok Token) error {
	s.started.Store(true)

	for {
		if !tok.WaitIfPaused(ctx) || dev.Skipped() || s.reg.AllShown() {
			return nil
		}

		unit, err := s.NextUnit(dev, NoLimit)
		if err != nil {
			err = errors.Wrapf(err, "device #%d", dev.ID)
			s.control.Fail(err)

			return err
		}

		if unit.Words() == 0 {
			dev.Finish(unit.End)

			return nil
		}

		if err := s.runUnit(ctx, dev, unit); err != nil {
			if ctx.Err() != nil {
				return nil //nolint:nilerr // shutdown, not a device fault
			}

			s.deviceFailed(dev, unit, err)

			return nil
		}
	}
}

// runUnit filters, submits and accounts one unit.
func (s *Session) runUnit(ctx context.Context, dev *device.Device, unit Unit) error {
	kept, rejected := s.filter.Split(unit.Candidates)
	active := s.activeSalts()

	start := s.clock.Now()

	var (
		matches []device.Match
		err     error
	)

	if len(kept) > 0 {
		matches, err = dev.Kernel.Submit(ctx, device.Batch{Candidates: kept})
		if err != nil {
			return err
		}
	}

	elapsed := s.clock.Since(start)

	for _, m := range matches {
		if m.CandidateIndex < 0 || m.CandidateIndex >= len(kept) {
			state.Logger.Warn("Ignoring match with out-of-range candidate", "device_id", dev.ID,
				"candidate_index", m.CandidateIndex)

			continue
		}

		if m.SaltPos < 0 || m.SaltPos >= s.reg.SaltsCnt() {
			state.Logger.Warn("Ignoring match with out-of-range salt", "device_id", dev.ID, "salt_pos", m.SaltPos)

			continue
		}

		s.crack(dev, m, kept[m.CandidateIndex])
	}

	s.ledger.AddBatch(s.saltActive, uint64(len(kept)), rejected)
	dev.RecordUnit(unit.End, unit.Words(), uint64(len(kept))*uint64(active), elapsed) //nolint:gosec // counts

	return nil
}

func (s *Session) saltActive(pos int) bool { return !s.reg.SaltShown(pos) }

func (s *Session) activeSalts() int {
	return s.reg.SaltsCnt() - s.reg.SaltsDone()
}

// deviceFailed marks dev skipped and treats its in-flight unit as completed with zero cracks.
func (s *Session) deviceFailed(dev *device.Device, unit Unit, err error) {
	info := device.ClassifyError(err)
	derr := &cserrors.DeviceError{DeviceID: dev.ID, Category: info.Category.String(), Err: err}

	dev.MarkSkipped(derr.Error())
	_ = cserrors.LogError("Device failed, continuing without it", derr, info.Severity)

	kept, rejected := s.filter.Split(unit.Candidates)
	s.ledger.AddBatch(s.saltActive, uint64(len(kept)), rejected)
	dev.Abandon(unit.End, unit.Words())

	s.emit(Event{Kind: EventDeviceSkipped, At: s.clock.Now(), DeviceID: dev.ID, Err: derr})
}

// crack runs the cracked-hash critical section for one match. The registry's crack lock covers only the
// shown/done mutation; potfile and display output happen after it.
func (s *Session) crack(dev *device.Device, m device.Match, plain []byte) {
	res, ok := s.reg.MarkCracked(m.SaltPos, m.DigestIndex)
	if !ok {
		return
	}

	now := s.clock.Now()
	dev.AddCracked(len(res.Digests))
	s.cpt.Add(now, len(res.Digests))

	for _, idx := range res.Digests {
		d := s.reg.GlobalDigest(idx)

		if s.potfile != nil {
			if err := s.potfile.Write(d.Hash, plain); err != nil {
				_ = cserrors.LogError("Failed to write potfile entry", err, cserrors.SeverityMajor)
			}
		}

		s.emit(Event{
			Kind:     EventCracked,
			At:       now,
			DeviceID: dev.ID,
			Hash:     d.Hash,
			User:     d.User,
			Plain:    append([]byte(nil), plain...),
		})
	}

	if res.AllDone {
		state.Logger.Debug("All hashes cracked", "device_id", dev.ID)
		s.control.Stop(StopSession, StatusCracked)
	}
}
