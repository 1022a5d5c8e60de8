package dispatch

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
)

// Unit is one contiguous slice of the keyspace handed to a device.
type Unit struct {
	Start      uint64   // Start is the first base word, inclusive.
	End        uint64   // End is the last base word, exclusive.
	Candidates [][]byte // Candidates holds (End-Start) base words times the amplifier.
}

// Words returns the number of base words in the unit.
func (u Unit) Words() uint64 { return u.End - u.Start }

// power is the per-call capacity of dev. Once the final kernel power is frozen, the remaining words are shared
// in proportion to hardware power, never below the device's hardware power nor above its kernel power.
// Caller holds s.mu.
func (s *Session) power(dev *device.Device) uint64 {
	if s.kernelPowerFinal == 0 || s.hardwarePowerAll == 0 {
		return dev.KernelPower
	}

	factor := float64(dev.HardwarePower) / float64(s.hardwarePowerAll)
	share := uint64(math.Ceil(float64(s.kernelPowerFinal) * factor))
	work := max(share, dev.HardwarePower)

	return min(work, dev.KernelPower)
}

// getWorkLocked carves the next slice for dev. Caller holds s.mu.
func (s *Session) getWorkLocked(dev *device.Device, limit uint64) uint64 {
	if dev.Skipped() || s.wordsOff >= s.wordsBase {
		return 0
	}

	wordsLeft := s.wordsBase - s.wordsOff

	if wordsLeft < s.kernelPowerAll && s.kernelPowerFinal == 0 {
		s.kernelPowerFinal = wordsLeft
	}

	work := min(wordsLeft, s.power(dev), limit)
	s.wordsOff += work

	return work
}

// GetWork returns how many base words dev should take next and advances the shared cursor by that amount.
// Zero means the segment is exhausted.
func (s *Session) GetWork(dev *device.Device, limit uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getWorkLocked(dev, limit)
}

// NextUnit allocates the next slice for dev and reads its candidates from the shared source under the same
// lock, so the n-th candidate is read exactly once across all devices.
func (s *Session) NextUnit(dev *device.Device, limit uint64) (Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.wordsOff

	work := s.getWorkLocked(dev, limit)
	if work == 0 {
		return Unit{Start: start, End: start}, nil
	}

	batch, err := s.source.NextBatch(work)
	if err != nil {
		return Unit{}, errors.Wrapf(err, "reading %d words at offset %d", work, start)
	}

	if uint64(len(batch)) != work*s.amplifier {
		return Unit{}, errors.Newf("candidate source returned %d candidates for %d words at offset %d",
			len(batch), work, start)
	}

	return Unit{Start: start, End: start + work, Candidates: batch}, nil
}

// NoLimit is the per-call maximum used when the caller imposes no bound.
const NoLimit = math.MaxUint64
