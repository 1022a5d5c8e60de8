package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/device"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/restore"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/testhelpers"
)

func testOptions(t *testing.T) Options {
	t.Helper()

	testhelpers.SetupTestState(t)

	opts := OptionsFromState()
	opts.Clock = clockwork.NewFakeClock()
	opts.Out = io.Discard

	return opts
}

func maskAttack(t *testing.T, masks []string, plains ...string) Attack {
	t.Helper()

	return Attack{
		Mode:     status.AttackModeMask,
		HashFile: testhelpers.CreateHashListFile(t, t.TempDir(), plains...),
		HashType: "md5",
		Masks:    masks,
	}
}

func cpuKernelWith(hook func(call int64) error) KernelFactory {
	return func(reg *hashlist.Registry) (device.Kernel, error) {
		k, err := device.NewCPUKernel(reg)
		if err != nil {
			return nil, err
		}

		return testhelpers.HookKernel(k, hook), nil
	}
}

func TestRun_CracksAll(t *testing.T) {
	opts := testOptions(t)

	var out bytes.Buffer
	opts.Out = &out
	opts.StatusJSON = true

	r := New(maskAttack(t, []string{"?d?d?d"}, "042", "777"), opts)

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	assert.Equal(t, 0, st.ExitCode())

	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "042", "777")
	testhelpers.AssertNoFile(t, r.RestoreFile())
	testhelpers.AssertNoFile(t, opts.LockPath)

	assert.Contains(t, out.String(), `"type":"cracked"`)
	assert.Contains(t, out.String(), `"type":"status"`)
}

func TestRun_Exhausted(t *testing.T) {
	opts := testOptions(t)

	r := New(maskAttack(t, []string{"?d?d?d"}, "042", "not-in-keyspace"), opts)

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusExhausted, st)
	assert.Equal(t, 1, st.ExitCode())

	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "042")
	testhelpers.AssertNoFile(t, r.RestoreFile())

	sess := r.Session()
	require.NotNil(t, sess)
	assert.Equal(t, uint64(1000), sess.RestorePoint())
}

func TestRun_PotfilePrefilter(t *testing.T) {
	opts := testOptions(t)

	testhelpers.CreateTestFile(t, filepath.Dir(opts.PotfilePath), filepath.Base(opts.PotfilePath),
		[]byte(testhelpers.MD5Hex("042")+":042\n"+testhelpers.MD5Hex("777")+":777\n"))

	r := New(maskAttack(t, []string{"?d?d?d"}, "042", "777"), opts)

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	assert.Nil(t, r.Session(), "no device starts when the potfile covers every hash")
}

func TestRun_AbortWritesCheckpointAndResumes(t *testing.T) {
	opts := testOptions(t)
	opts.Devices = 1

	attack := maskAttack(t, []string{"?d?d?d"}, "042", "777")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts.NewKernel = cpuKernelWith(func(call int64) error {
		if call == 3 {
			cancel()
		}

		return nil
	})

	first := New(attack, opts)

	st, err := first.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAborted, st)
	assert.Equal(t, 2, st.ExitCode())

	rec, err := restore.Load(first.RestoreFile())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, uint64(300), rec.WordsCur, "the unit in flight at cancellation completes")
	assert.Equal(t, first.Session().Registry().Fingerprint(), rec.Fingerprint)
	assert.Equal(t, "test", rec.Session)

	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "042")

	opts.NewKernel = nil
	opts.Restore = true

	second := New(attack, opts)

	st, err = second.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)

	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "042", "777")
	testhelpers.AssertNoFile(t, second.RestoreFile())

	cur := second.Session().Cursor()
	assert.Equal(t, uint64(300), cur.WordsStart)
}

func TestRun_RestoreFingerprintMismatch(t *testing.T) {
	opts := testOptions(t)
	opts.Restore = true

	r := New(maskAttack(t, []string{"?d?d?d"}, "042"), opts)
	require.NoError(t, restore.Save(r.RestoreFile(), &restore.Record{
		Version: restore.Version, WordsCur: 10, Fingerprint: 1, Session: "test",
	}))

	st, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, cserrors.IsFatal(err))
	assert.Equal(t, dispatch.StatusError, st)
	assert.FileExists(t, r.RestoreFile(), "a rejected checkpoint is left in place")
}

func TestRun_UnreadableCheckpointStartsFresh(t *testing.T) {
	opts := testOptions(t)
	opts.Restore = true

	r := New(maskAttack(t, []string{"?d?d"}, "00"), opts)
	testhelpers.CreateTestFile(t, opts.RestorePath, "test.restore", []byte("garbage"))

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
}

func TestRun_MaskSegments(t *testing.T) {
	opts := testOptions(t)

	r := New(maskAttack(t, []string{"?d", "?d?d", "?d?d?d"}, "42"), opts)

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	assert.Equal(t, uint32(1), r.Session().Cursor().Segment.MaskPos, "the run stops in the segment that cracked")
}

func TestRun_DictionaryWithFilter(t *testing.T) {
	opts := testOptions(t)
	dir := t.TempDir()

	attack := Attack{
		Mode:      status.AttackModeDictionary,
		HashFile:  testhelpers.CreateHashListFile(t, dir, "beta", "hunter2"),
		HashType:  "0",
		Wordlists: []string{testhelpers.CreateLinesFile(t, dir, "words.txt", "alpha", "beta", "gamma", "hunter2")},
		PwMin:     5,
	}

	r := New(attack, opts)

	st, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusExhausted, st, "beta is shorter than pw-min")

	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "hunter2")
	assert.NotContains(t, testhelpers.ReadPotfile(t, opts.PotfilePath), testhelpers.MD5Hex("beta"))
	assert.Equal(t, uint64(1), r.Session().Ledger().Totals(r.Session().Registry().SaltShown, 4).Rejected)
}

func TestRun_Combinator(t *testing.T) {
	opts := testOptions(t)
	dir := t.TempDir()

	attack := Attack{
		Mode:          status.AttackModeCombinator,
		HashFile:      testhelpers.CreateHashListFile(t, dir, "word!"),
		HashType:      "md5",
		Wordlists:     []string{testhelpers.CreateLinesFile(t, dir, "left.txt", "pass", "word")},
		RightWordlist: testhelpers.CreateLinesFile(t, dir, "right.txt", "123", "!"),
	}

	st, err := New(attack, opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	testhelpers.AssertPotfileHas(t, opts.PotfilePath, "word!")
}

func TestRun_AllDevicesFail(t *testing.T) {
	opts := testOptions(t)

	opts.NewKernel = func(*hashlist.Registry) (device.Kernel, error) {
		return testhelpers.FailingKernel(testhelpers.NopKernel(), 1, errors.New("device lost")), nil
	}

	r := New(maskAttack(t, []string{"?d?d?d"}, "042"), opts)

	st, err := r.Run(context.Background())
	require.ErrorIs(t, err, ErrNoDevices)
	assert.Equal(t, dispatch.StatusError, st)
	assert.FileExists(t, r.RestoreFile())
}

func TestRun_PotfileDisabled(t *testing.T) {
	opts := testOptions(t)
	opts.PotfileDisable = true

	st, err := New(maskAttack(t, []string{"?d"}, "7"), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	testhelpers.AssertNoFile(t, opts.PotfilePath)
}

func TestRun_PushesStatus(t *testing.T) {
	defer testhelpers.SetupHTTPMock()()

	const url = "https://collector.example/status"

	testhelpers.MockStatusPushSuccess(url)

	opts := testOptions(t)
	opts.StatusPushURL = url

	st, err := New(maskAttack(t, []string{"?d?d"}, "99"), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusCracked, st)
	assert.GreaterOrEqual(t, httpmock.GetTotalCallCount(), 1, "the final snapshot is pushed")
}

func TestRun_LockHeld(t *testing.T) {
	opts := testOptions(t)
	testhelpers.CreateTestFile(t, filepath.Dir(opts.LockPath), filepath.Base(opts.LockPath),
		[]byte(strconv.Itoa(os.Getppid())))

	st, err := New(maskAttack(t, []string{"?d"}, "1"), opts).Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.Equal(t, dispatch.StatusError, st)
	assert.FileExists(t, opts.LockPath, "a foreign lock is not removed")
}

func TestLock_StalePidIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.pid")
	require.NoError(t, os.WriteFile(path, []byte("2147483646"), 0o600))

	require.NoError(t, acquireLock(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	releaseLock(path)
	testhelpers.AssertNoFile(t, path)
}

func TestLock_GarbageCountsAsHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lock.pid")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0o600))

	require.ErrorIs(t, acquireLock(path), ErrAlreadyRunning)
	require.NoError(t, acquireLock(""), "empty path disables locking")
}

func TestRunner_ControlsBeforeStart(t *testing.T) {
	r := New(Attack{}, Options{})

	assert.Nil(t, r.Session())
	assert.False(t, r.Pause())
	assert.False(t, r.Resume())
	assert.False(t, r.CheckpointQuit())

	r.Bypass()
	r.Quit()
}
