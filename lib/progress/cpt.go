package progress

import (
	"sync"
	"time"
)

// CPT windows reported in status snapshots.
const (
	CPTMinute = time.Minute
	CPTHour   = time.Hour
	CPTDay    = 24 * time.Hour
)

const cptCacheSize = 4096

type cptEntry struct {
	at    time.Time
	count int
}

// CrackRate is a fixed-size ring of crack events used for the cracks-per-time figures. When the ring wraps, the
// oldest samples are overwritten.
type CrackRate struct {
	mu      sync.Mutex
	entries [cptCacheSize]cptEntry
	pos     int
	total   int
}

// Add records count cracks at the given time.
func (c *CrackRate) Add(at time.Time, count int) {
	if count <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[c.pos] = cptEntry{at: at, count: count}
	c.pos = (c.pos + 1) % cptCacheSize
	c.total += count
}

// Total returns every crack ever added, including overwritten samples.
func (c *CrackRate) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.total
}

// Window sums the cracks recorded within d before now.
func (c *CrackRate) Window(now time.Time, d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum := 0

	for i := range c.entries {
		e := c.entries[i]
		if e.count == 0 {
			continue
		}

		if age := now.Sub(e.at); age >= 0 && age < d {
			sum += e.count
		}
	}

	return sum
}

// Reset drops every sample.
func (c *CrackRate) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = [cptCacheSize]cptEntry{}
	c.pos = 0
	c.total = 0
}
