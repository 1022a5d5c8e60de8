// Package device describes the compute devices the dispatcher feeds: their capacity, rolling speed figures,
// watermark and failure state, plus the reference CPU kernel, hardware monitoring and autotuning.
package device

import (
	"sync"
	"sync/atomic"
	"time"
)

// SpeedCacheSize is the number of samples kept in each device's speed and exec-time rings.
const SpeedCacheSize = 128

// Device types.
const (
	TypeCPU = "CPU"
	TypeGPU = "GPU"
)

// Device is the dispatcher's view of one compute device.
type Device struct {
	ID            int
	Name          string
	Type          string
	HardwarePower uint64 // HardwarePower is the device's parallelism figure used for final redistribution.
	KernelPower   uint64 // KernelPower is the number of base words one kernel call absorbs.
	Kernel        Kernel

	mu         sync.Mutex
	speedCnt   [SpeedCacheSize]uint64
	speedMs    [SpeedCacheSize]float64
	speedPos   int
	speedFill  int
	execMs     [SpeedCacheSize]float64
	execPos    int
	execFill   int
	watermark  uint64
	wordsDone  uint64
	cracked    uint64
	skipReason string

	skipped atomic.Bool
}

// New returns a device with the given capacity figures.
func New(id int, name, typ string, hardwarePower, kernelPower uint64, k Kernel) *Device {
	return &Device{
		ID:            id,
		Name:          name,
		Type:          typ,
		HardwarePower: hardwarePower,
		KernelPower:   kernelPower,
		Kernel:        k,
	}
}

// Reset clears per-iteration figures and places the watermark at start. The skipped state survives.
func (d *Device) Reset(start uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.speedCnt = [SpeedCacheSize]uint64{}
	d.speedMs = [SpeedCacheSize]float64{}
	d.speedPos, d.speedFill = 0, 0
	d.execMs = [SpeedCacheSize]float64{}
	d.execPos, d.execFill = 0, 0
	d.watermark = start
	d.wordsDone = 0
}

// RecordUnit accounts one completed work unit [start, end). hashed is the number of hash computations the unit
// cost, used for the speed figure.
func (d *Device) RecordUnit(end, words, hashed uint64, elapsed time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if end > d.watermark {
		d.watermark = end
	}

	d.wordsDone += words

	ms := float64(elapsed) / float64(time.Millisecond)

	d.speedCnt[d.speedPos] = hashed
	d.speedMs[d.speedPos] = ms
	d.speedPos = (d.speedPos + 1) % SpeedCacheSize
	d.speedFill = min(d.speedFill+1, SpeedCacheSize)

	d.execMs[d.execPos] = ms
	d.execPos = (d.execPos + 1) % SpeedCacheSize
	d.execFill = min(d.execFill+1, SpeedCacheSize)
}

// Abandon accounts a unit that failed on the device: the watermark and words done advance, the speed rings do
// not.
func (d *Device) Abandon(end, words uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if end > d.watermark {
		d.watermark = end
	}

	d.wordsDone += words
}

// AddCracked counts cracks attributed to this device.
func (d *Device) AddCracked(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cracked += uint64(n) //nolint:gosec // n is a match count
}

// Finish raises the watermark to end when the device has no more work in the current segment.
func (d *Device) Finish(end uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if end > d.watermark {
		d.watermark = end
	}
}

// Watermark is the end offset of the last completed unit.
func (d *Device) Watermark() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.watermark
}

// WordsDone is the cumulative number of base words completed in the current segment.
func (d *Device) WordsDone() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.wordsDone
}

// Cracked is the number of digests cracked by this device.
func (d *Device) Cracked() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cracked
}

// Speed returns hashes per second over the ring. ok is false when the device is skipped.
func (d *Device) Speed() (hps float64, ok bool) {
	if d.Skipped() {
		return 0, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		cnt uint64
		ms  float64
	)

	for i := range d.speedFill {
		cnt += d.speedCnt[i]
		ms += d.speedMs[i]
	}

	if ms <= 0 {
		return 0, true
	}

	return float64(cnt) * 1000 / ms, true
}

// ExecMs is the average kernel execution time in milliseconds over the ring.
func (d *Device) ExecMs() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.execFill == 0 {
		return 0
	}

	var sum float64
	for i := range d.execFill {
		sum += d.execMs[i]
	}

	return sum / float64(d.execFill)
}

// MarkSkipped excludes the device from allocation and status for the rest of the run.
func (d *Device) MarkSkipped(reason string) {
	d.mu.Lock()
	d.skipReason = reason
	d.mu.Unlock()

	d.skipped.Store(true)
}

// Skipped reports whether the device has been excluded.
func (d *Device) Skipped() bool { return d.skipped.Load() }

// SkipReason returns why the device was skipped.
func (d *Device) SkipReason() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.skipReason
}
