package dispatch

import (
	"context"
	"crypto/md5" //nolint:gosec // test vectors
	"encoding/hex"
	"slices"
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/candidates"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
)

func md5Hex(s string) string {
	h := md5.Sum([]byte(s)) //nolint:gosec // test vector
	return hex.EncodeToString(h[:])
}

func newRegistry(t *testing.T, plains ...string) *hashlist.Registry {
	t.Helper()

	f, err := hashlist.LookupFormat("md5")
	require.NoError(t, err)

	lines := make([]string, 0, len(plains))
	for _, p := range plains {
		lines = append(lines, md5Hex(p))
	}

	reg, err := hashlist.LoadLines(lines, hashlist.NewHexParser(f), hashlist.LoadOptions{})
	require.NoError(t, err)

	return reg
}

func newMask(t *testing.T, mask string) *candidates.Mask {
	t.Helper()

	m, err := candidates.NewMask(mask, nil)
	require.NoError(t, err)

	return m
}

// nopKernel never matches.
func nopKernel() device.Kernel {
	return device.KernelFunc(func(context.Context, device.Batch) ([]device.Match, error) { return nil, nil })
}

func newSession(t *testing.T, reg *hashlist.Registry, devs ...*device.Device) *Session {
	t.Helper()

	return NewSession(Config{
		Registry: reg,
		Devices:  devs,
		Clock:    clockwork.NewFakeClock(),
		Session:  "test",
	})
}

func TestGetWork_FinalPowerRedistribution(t *testing.T) {
	a := device.New(1, "a", device.TypeCPU, 10, 1000, nopKernel())
	b := device.New(2, "b", device.TypeGPU, 30, 3000, nopKernel())
	s := newSession(t, newRegistry(t, "x"), a, b)

	require.NoError(t, s.Reset(Segment{Source: newMask(t, "?d?d?d?d"), Limit: 5000}))

	assert.Equal(t, uint64(1000), s.GetWork(a, NoLimit))
	assert.Equal(t, uint64(3000), s.GetWork(b, NoLimit))
	assert.Zero(t, s.Cursor().KernelPowerFinal)

	assert.Equal(t, uint64(250), s.GetWork(a, NoLimit), "share of the frozen remainder by hardware power")
	assert.Equal(t, uint64(1000), s.Cursor().KernelPowerFinal)

	assert.Equal(t, uint64(750), s.GetWork(b, NoLimit))
	assert.Equal(t, uint64(1000), s.Cursor().KernelPowerFinal, "frozen once")

	assert.Zero(t, s.GetWork(a, NoLimit))
	assert.Equal(t, uint64(5000), s.Cursor().WordsOff)
}

func TestGetWork_RespectsMaxAndSkipped(t *testing.T) {
	a := device.New(1, "a", device.TypeCPU, 1, 1000, nopKernel())
	s := newSession(t, newRegistry(t, "x"), a)

	require.NoError(t, s.Reset(Segment{Source: newMask(t, "?d?d?d")}))

	assert.Equal(t, uint64(100), s.GetWork(a, 100))

	a.MarkSkipped("test")
	assert.Zero(t, s.GetWork(a, NoLimit))
	assert.Equal(t, uint64(100), s.Cursor().WordsOff)
}

func TestGetWork_FreezeSurvivesDeviceSkip(t *testing.T) {
	a := device.New(1, "a", device.TypeCPU, 1, 100, nopKernel())
	b := device.New(2, "b", device.TypeCPU, 3, 100, nopKernel())
	s := newSession(t, newRegistry(t, "x"), a, b)

	require.NoError(t, s.Reset(Segment{Source: newMask(t, "?d?d?d"), Limit: 300}))

	assert.Equal(t, uint64(100), s.GetWork(a, NoLimit))
	assert.Equal(t, uint64(100), s.GetWork(b, NoLimit))
	assert.Equal(t, uint64(25), s.GetWork(a, NoLimit), "final power 100 split by hardware share")

	b.MarkSkipped("gone")

	assert.Equal(t, uint64(25), s.GetWork(a, NoLimit), "redistribution is not re-evaluated")
	assert.Equal(t, uint64(250), s.Cursor().WordsOff)
}

func TestReset_SkipAndLimit(t *testing.T) {
	a := device.New(1, "a", device.TypeCPU, 1, 1000, nopKernel())
	s := newSession(t, newRegistry(t, "x"), a)

	require.NoError(t, s.Reset(Segment{Source: newMask(t, "?d?d?d"), Skip: 100, Limit: 400}))

	unit, err := s.NextUnit(a, NoLimit)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), unit.Start)
	assert.Equal(t, uint64(400), unit.End)
	assert.Equal(t, "100", string(unit.Candidates[0]))
	assert.Equal(t, "399", string(unit.Candidates[len(unit.Candidates)-1]))

	assert.Error(t, s.Reset(Segment{Source: newMask(t, "?d"), Skip: 11}))
}

func TestNextUnit_DisjointAndContiguous(t *testing.T) {
	devs := []*device.Device{
		device.New(1, "a", device.TypeCPU, 1, 7, nopKernel()),
		device.New(2, "b", device.TypeCPU, 2, 13, nopKernel()),
		device.New(3, "c", device.TypeCPU, 4, 29, nopKernel()),
	}
	s := newSession(t, newRegistry(t, "x"), devs...)
	require.NoError(t, s.Reset(Segment{Source: newMask(t, "?d?d?d?d")}))

	var (
		mu    sync.Mutex
		units []Unit
		wg    sync.WaitGroup
	)

	for _, d := range devs {
		wg.Add(1)

		go func(d *device.Device) {
			defer wg.Done()

			for {
				u, err := s.NextUnit(d, NoLimit)
				if err != nil || u.Words() == 0 {
					return
				}

				mu.Lock()
				units = append(units, u)
				mu.Unlock()
			}
		}(d)
	}

	wg.Wait()

	slices.SortFunc(units, func(a, b Unit) int { return int(a.Start) - int(b.Start) }) //nolint:gosec // small offsets

	var next uint64

	for _, u := range units {
		require.Equal(t, next, u.Start, "ranges are contiguous and disjoint")
		require.Len(t, u.Candidates, int(u.Words())) //nolint:gosec // small
		assert.Equal(t, newMask(t, "?d?d?d?d").At(u.Start), u.Candidates[0], "candidate read matches its offset")

		next = u.End
	}

	assert.Equal(t, uint64(10000), next)
}
