package dispatch

import (
	"os"

	"github.com/unclesp1d3r/cipherswarmdispatch/lib/restore"
)

// RestorePoint is the lowest watermark over non-skipped devices. It never drops below the restored position or
// below any value it returned before within the segment.
func (s *Session) RestorePoint() uint64 {
	var (
		lowest uint64
		found  bool
	)

	for _, d := range s.devices {
		if d.Skipped() {
			continue
		}

		wm := d.Watermark()
		if !found || wm < lowest {
			lowest, found = wm, true
		}
	}

	s.cpMu.Lock()
	defer s.cpMu.Unlock()

	if !found {
		return s.lastCheckpoint
	}

	lowest = max(lowest, s.restored, s.lastCheckpoint)
	s.lastCheckpoint = lowest

	return lowest
}

// RestorePercent is the restore point as a percentage of the segment keyspace.
func (s *Session) RestorePercent() float64 {
	point := s.RestorePoint()

	s.mu.Lock()
	base := s.wordsBase
	s.mu.Unlock()

	if base == 0 {
		return 0
	}

	return float64(point) / float64(base) * 100
}

// Checkpoint builds the durable record for the current restore point.
func (s *Session) Checkpoint() restore.Record {
	point := s.RestorePoint()

	s.mu.Lock()
	seg := s.segment
	s.mu.Unlock()

	rec := restore.Record{
		Version:     restore.Version,
		DictPos:     seg.DictPos,
		MaskPos:     seg.MaskPos,
		WordsCur:    point,
		Fingerprint: s.reg.Fingerprint(),
		Session:     s.name,
		Args:        os.Args,
	}

	if cwd, err := os.Getwd(); err == nil {
		rec.Cwd = cwd
	}

	return rec
}
