package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const (
	cacheFilePermissions = 0o600
	defaultTuneSample    = 4096
	defaultTargetExec    = 100 * time.Millisecond
)

// TuneResult is one cached autotune measurement.
type TuneResult struct {
	HashMode    int       `json:"hash_mode"`
	DeviceType  string    `json:"device_type"`
	DeviceName  string    `json:"device_name"`
	SaltsCnt    int       `json:"salts_cnt"`
	Speed       float64   `json:"speed"`
	KernelPower uint64    `json:"kernel_power"`
	MeasuredAt  time.Time `json:"measured_at"`
}

// Autotuner measures kernel throughput once per (hash mode, device, salt count) and caches the derived kernel power.
type Autotuner struct {
	Path       string          // Path is the JSON cache file; empty disables caching.
	Clock      clockwork.Clock // Clock times the measurement.
	SampleSize int             // SampleSize is the number of candidates in the measurement batch.
	TargetExec time.Duration   // TargetExec is the desired duration of one kernel call.

	mu sync.Mutex
}

// NewAutotuner returns an autotuner with default sample size and target execution time.
func NewAutotuner(path string, clock clockwork.Clock) *Autotuner {
	return &Autotuner{Path: path, Clock: clock, SampleSize: defaultTuneSample, TargetExec: defaultTargetExec}
}

// Tune sets dev.KernelPower from the cache or from a fresh measurement. saltsCnt scales the measured speed,
// since every base word is hashed once per salt.
func (a *Autotuner) Tune(ctx context.Context, dev *Device, hashMode, saltsCnt int) (TuneResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cached, err := a.load()
	if err != nil {
		state.Logger.Warn("Failed to read autotune cache, re-measuring", "error", err)
	}

	saltsCnt = max(saltsCnt, 1)

	for _, r := range cached {
		if r.HashMode == hashMode && r.SaltsCnt == saltsCnt && r.DeviceType == dev.Type && r.DeviceName == dev.Name {
			dev.KernelPower = r.KernelPower
			state.Logger.Debug("Using cached autotune result", "device_id", dev.ID, "kernel_power", r.KernelPower)

			return r, nil
		}
	}

	res, err := a.measure(ctx, dev, hashMode, saltsCnt)
	if err != nil {
		return TuneResult{}, err
	}

	dev.KernelPower = res.KernelPower

	if err := a.save(append(cached, res)); err != nil {
		state.Logger.Warn("Failed to save autotune cache", "error", err)
	}

	return res, nil
}

func (a *Autotuner) measure(ctx context.Context, dev *Device, hashMode, saltsCnt int) (TuneResult, error) {
	n := a.SampleSize
	if n <= 0 {
		n = defaultTuneSample
	}

	batch := Batch{Candidates: make([][]byte, n)}
	for i := range batch.Candidates {
		batch.Candidates[i] = fmt.Appendf(nil, "tune%08d", i)
	}

	start := a.Clock.Now()

	if _, err := dev.Kernel.Submit(ctx, batch); err != nil {
		return TuneResult{}, errors.Wrapf(err, "autotune device #%d", dev.ID)
	}

	elapsed := a.Clock.Since(start)
	res := TuneResult{
		HashMode:    hashMode,
		DeviceType:  dev.Type,
		DeviceName:  dev.Name,
		SaltsCnt:    saltsCnt,
		KernelPower: uint64(n), //nolint:gosec // positive sample size
		MeasuredAt:  a.Clock.Now(),
	}

	if elapsed > 0 {
		res.Speed = float64(n) * float64(saltsCnt) / elapsed.Seconds()

		target := a.TargetExec
		if target <= 0 {
			target = defaultTargetExec
		}

		words := float64(n) * float64(target) / float64(elapsed)
		res.KernelPower = max(uint64(words), 1)
	}

	state.Logger.Info("Autotuned device", "device_id", dev.ID, "speed", res.Speed, "kernel_power", res.KernelPower)

	return res, nil
}

// load returns nil when the cache is unset, missing or corrupt. Corrupt caches are removed.
func (a *Autotuner) load() ([]TuneResult, error) {
	if a.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(a.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, errors.Wrap(err, "failed to read autotune cache")
	}

	var results []TuneResult
	if err := json.Unmarshal(data, &results); err != nil {
		state.Logger.Warn("Autotune cache file is corrupt, removing", "error", err, "path", a.Path)

		if removeErr := os.Remove(a.Path); removeErr != nil && !os.IsNotExist(removeErr) {
			state.Logger.Warn("Failed to remove corrupt autotune cache", "error", removeErr, "path", a.Path)
		}

		return nil, nil
	}

	return results, nil
}

// save writes the cache atomically via a temporary file and rename.
func (a *Autotuner) save(results []TuneResult) error {
	if a.Path == "" {
		return nil
	}

	data, err := json.Marshal(results)
	if err != nil {
		return errors.Wrap(err, "failed to marshal autotune cache")
	}

	tmpPath := a.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, cacheFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write autotune cache")
	}

	if err := os.Rename(tmpPath, a.Path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			state.Logger.Warn("Failed to clean up temp autotune cache", "error", removeErr, "path", tmpPath)
		}

		return errors.Wrap(err, "failed to rename autotune cache")
	}

	state.Logger.Debug("Autotune results cached to disk", "path", a.Path)

	return nil
}

// Clear removes the cache file.
func (a *Autotuner) Clear() {
	if a.Path == "" {
		return
	}

	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		state.Logger.Warn("Failed to remove autotune cache", "error", err, "path", a.Path)
	}
}
