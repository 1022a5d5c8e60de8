package status

import (
	"context"
	"crypto/md5" //nolint:gosec // test vectors
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/candidates"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/testhelpers"
)

// runningSession has device a finish one 1000-word unit in one second and device b skipped.
func runningSession(t *testing.T) (*dispatch.Session, *clockwork.FakeClock) {
	t.Helper()

	f, err := hashlist.LookupFormat("md5")
	require.NoError(t, err)

	sum := md5.Sum([]byte("secret")) //nolint:gosec // test vector
	reg, err := hashlist.LoadLines([]string{hex.EncodeToString(sum[:])}, hashlist.NewHexParser(f),
		hashlist.LoadOptions{})
	require.NoError(t, err)

	m, err := candidates.NewMask("?d?d?d?d", nil)
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	a := device.New(1, "cpu0", device.TypeCPU, 1, 1000, testhelpers.NopKernel())
	b := device.New(2, "gpu0", device.TypeGPU, 1, 1000, testhelpers.NopKernel())

	sess := dispatch.NewSession(dispatch.Config{
		Registry: reg,
		Devices:  []*device.Device{a, b},
		Clock:    clock,
		Session:  "status-test",
	})
	require.NoError(t, sess.Reset(dispatch.Segment{Source: m, MaskPos: 1}))
	sess.Control().Start()

	unit, err := sess.NextUnit(a, dispatch.NoLimit)
	require.NoError(t, err)

	sess.Ledger().AddBatch(nil, unit.Words(), 0)
	a.RecordUnit(unit.End, unit.Words(), unit.Words(), time.Second)
	b.MarkSkipped("test")

	clock.Advance(2 * time.Second)

	return sess, clock
}

func TestReporter_Snapshot(t *testing.T) {
	sess, clock := runningSession(t)

	r := &Reporter{Session: sess, Target: "hashes.txt", Mode: AttackModeMask, Segments: 4}
	snap := r.Snapshot()

	assert.Equal(t, "status-test", snap.Session)
	assert.Equal(t, int(dispatch.StatusRunning), snap.Status)
	assert.Equal(t, "Running", snap.StatusText)
	assert.Equal(t, []uint64{1000, 10000}, snap.Progress)
	assert.InDelta(t, 10.0, snap.ProgressPercent, 0.001)
	assert.Equal(t, uint64(1000), snap.RestorePoint)
	assert.InDelta(t, 10.0, snap.RestorePercent, 0.001)
	assert.Equal(t, []int{0, 1}, snap.RecoveredHashes)
	assert.Equal(t, []int{0, 1}, snap.RecoveredSalts)

	assert.Equal(t, 2, snap.Guess.BaseOffset)
	assert.Equal(t, 4, snap.Guess.BaseCount)
	assert.InDelta(t, 50.0, snap.Guess.BasePercent, 0.001)
	assert.Equal(t, "?d?d?d?d", snap.Guess.Base)

	require.Len(t, snap.Devices, 2)
	assert.InDelta(t, 1000.0, snap.Devices[0].Speed, 0.001)
	assert.Equal(t, "1 kH/s", snap.Devices[0].SpeedText)
	assert.True(t, snap.Devices[1].Skipped)
	assert.Equal(t, NotAvailable, snap.Devices[1].SpeedText)
	assert.Equal(t, 1, snap.DevicesActive)
	assert.InDelta(t, 1000.0, snap.Speed, 0.001)

	assert.Equal(t, 9*time.Second, snap.ETA)
	assert.Equal(t, clock.Now().Add(9*time.Second).Unix(), snap.EstimatedStop)
	assert.Equal(t, 2*time.Second, snap.Runtime)
	assert.False(t, snap.Done())

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"speed_text":"N/A"`)
}

func TestReporter_NoETAWhenNotRunning(t *testing.T) {
	sess, _ := runningSession(t)
	sess.Control().Stop(dispatch.StopSession, dispatch.StatusQuit)

	snap := (&Reporter{Session: sess}).Snapshot()
	assert.Zero(t, snap.ETA)
	assert.Zero(t, snap.EstimatedStop)
	assert.Equal(t, "Quit", snap.StatusText)
}

func TestExporter_Update(t *testing.T) {
	sess, _ := runningSession(t)
	snap := (&Reporter{Session: sess}).Snapshot()

	e := NewExporter()
	e.Update(snap)

	assert.InDelta(t, 1000.0, testutil.ToFloat64(e.progress), 0.001)
	assert.InDelta(t, 10000.0, testutil.ToFloat64(e.progressEnd), 0.001)
	assert.InDelta(t, float64(dispatch.StatusRunning), testutil.ToFloat64(e.status), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(e.devicesActive), 0.001)
	assert.Equal(t, 1, testutil.CollectAndCount(e.speed), "skipped devices have no speed series")
	assert.Equal(t, 2, testutil.CollectAndCount(e.cracked))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cipherswarm_dispatch_progress_current 1000")
}

func TestPusher_Push(t *testing.T) {
	client := &http.Client{}
	defer testhelpers.SetupHTTPMockForClient(client)()

	var got Snapshot

	httpmock.RegisterResponder(http.MethodPost, "https://collector.example/status",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer s3cret", req.Header.Get("Authorization"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

			if err := json.NewDecoder(req.Body).Decode(&got); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, err.Error()), nil
			}

			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		})

	p := &Pusher{URL: "https://collector.example/status", Token: "s3cret", Client: client}
	require.NoError(t, p.Push(context.Background(), Snapshot{Session: "s1", Progress: []uint64{1, 2}}))

	assert.Equal(t, "s1", got.Session)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestPusher_Rejected(t *testing.T) {
	client := &http.Client{}
	defer testhelpers.SetupHTTPMockForClient(client)()

	testhelpers.MockStatusPushFailure("https://collector.example/status", http.StatusInternalServerError, "boom\n")

	p := &Pusher{URL: "https://collector.example/status", Client: client}
	err := p.Push(context.Background(), Snapshot{})

	require.ErrorIs(t, err, ErrPushRejected)
	assert.Contains(t, err.Error(), "boom")
}
