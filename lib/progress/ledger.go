package progress

import "sync"

// Totals is a consistent view of the ledger summed over all salts.
type Totals struct {
	Done     uint64 // Done is the number of candidates hashed against each active salt.
	Rejected uint64 // Rejected is the number of candidates filtered before hashing.
	Restored uint64 // Restored is the progress carried in from a checkpoint.
	Cur      uint64 // Cur is done+rejected+restored, with fully cracked salts counted as complete.
	End      uint64 // End is the keyspace times amplifier times salt count.
}

// Ledger keeps the per-salt done/rejected/restored counters. Its lock is independent of the dispatcher lock so
// counter updates never block allocation.
type Ledger struct {
	mu       sync.Mutex
	done     []uint64
	rejected []uint64
	restored []uint64
}

// NewLedger allocates counters for saltsCnt salts.
func NewLedger(saltsCnt int) *Ledger {
	return &Ledger{
		done:     make([]uint64, saltsCnt),
		rejected: make([]uint64, saltsCnt),
		restored: make([]uint64, saltsCnt),
	}
}

// SaltsCnt returns the number of salts tracked.
func (l *Ledger) SaltsCnt() int { return len(l.done) }

// Reset zeroes every counter, keeping the backing arrays.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	clear(l.done)
	clear(l.rejected)
	clear(l.restored)
}

// SetRestored seeds the restored counter of every salt.
func (l *Ledger) SetRestored(perSalt uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.restored {
		l.restored[i] = perSalt
	}
}

// AddBatch accounts one finished work unit against every salt for which active returns true.
func (l *Ledger) AddBatch(active func(saltPos int) bool, done, rejected uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.done {
		if active != nil && !active(i) {
			continue
		}

		l.done[i] += done
		l.rejected[i] += rejected
	}
}

// Salt returns the three counters of one salt.
func (l *Ledger) Salt(pos int) (done, rejected, restored uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.done[pos], l.rejected[pos], l.restored[pos]
}

// Totals sums the counters. perSaltEnd is the keyspace times amplifier of one salt; shown reports fully
// cracked salts, which count as complete.
func (l *Ledger) Totals(shown func(saltPos int) bool, perSaltEnd uint64) Totals {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Totals{End: perSaltEnd * uint64(len(l.done))}

	for i := range l.done {
		t.Done += l.done[i]
		t.Rejected += l.rejected[i]
		t.Restored += l.restored[i]

		cur := l.done[i] + l.rejected[i] + l.restored[i]
		if (shown != nil && shown(i)) || cur > perSaltEnd {
			cur = perSaltEnd
		}

		t.Cur += cur
	}

	return t
}
