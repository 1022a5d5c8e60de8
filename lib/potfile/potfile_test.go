package potfile

import (
	"context"
	"crypto/md5" //nolint:gosec // test vectors
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
)

func md5Hex(s string) string {
	h := md5.Sum([]byte(s)) //nolint:gosec // test vector
	return hex.EncodeToString(h[:])
}

func md5Registry(t *testing.T, plains ...string) (*hashlist.Registry, hashlist.Parser) {
	t.Helper()

	f, err := hashlist.LookupFormat("md5")
	require.NoError(t, err)

	p := hashlist.NewHexParser(f)

	lines := make([]string, 0, len(plains))
	for _, pl := range plains {
		lines = append(lines, md5Hex(pl))
	}

	reg, err := hashlist.LoadLines(lines, p, hashlist.LoadOptions{})
	require.NoError(t, err)

	return reg, p
}

func TestEncodePlain(t *testing.T) {
	tests := []struct {
		name  string
		plain []byte
		want  string
	}{
		{"printable", []byte("hunter2"), "hunter2"},
		{"empty", []byte{}, ""},
		{"separator", []byte("a:b"), "$HEX[613a62]"},
		{"control byte", []byte{'a', 0x01}, "$HEX[6101]"},
		{"high byte", []byte{0xff}, "$HEX[ff]"},
		{"looks encoded", []byte("$HEX[41]"), "$HEX[244845585b34315d]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EncodePlain(tt.plain)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.plain, DecodePlain(got))
		})
	}

	assert.Equal(t, []byte("$HEX[zz]"), DecodePlain("$HEX[zz]"), "malformed payload kept verbatim")
}

func TestPotfile_WriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dispatch.potfile")

	pot, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, pl := range []string{"password", "a:b", "hello"} {
		wg.Add(1)

		go func(pl string) {
			defer wg.Done()
			assert.NoError(t, pot.Write(md5Hex(pl), []byte(pl)))
		}(pl)
	}

	wg.Wait()
	require.NoError(t, pot.Close())
	require.NoError(t, pot.Close())
	require.Error(t, pot.Write("x", nil), "closed")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)
	assert.Contains(t, string(data), md5Hex("a:b")+":$HEX[613a62]\n")

	reg, p := md5Registry(t, "password", "a:b", "notcracked")

	marked, err := Load(path, reg, p)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	assert.Equal(t, 2, reg.DigestsDone())
	assert.False(t, reg.AllShown())
}

func TestLoad_MissingFile(t *testing.T) {
	reg, p := md5Registry(t, "x")

	marked, err := Load(filepath.Join(t.TempDir(), "absent"), reg, p)
	require.NoError(t, err)
	assert.Zero(t, marked)
}

func TestResolve_SaltedHashWithSeparatorInPlain(t *testing.T) {
	f, err := hashlist.LookupFormat("md5(pass.salt)")
	require.NoError(t, err)

	p := hashlist.NewHexParser(f)
	hash := md5Hex("pwsalt") + ":salt"

	reg, err := hashlist.LoadLines([]string{hash}, p, hashlist.LoadOptions{})
	require.NoError(t, err)

	e, ok := Resolve(reg, p, hash+":pw:with:colons")
	require.True(t, ok)
	assert.Equal(t, hash, e.Hash)
	assert.Equal(t, "pw:with:colons", string(e.Plain))
	assert.True(t, e.Result.AllDone)

	_, ok = Resolve(reg, p, hash+":pw")
	assert.False(t, ok, "already shown")

	_, ok = Resolve(reg, p, "garbage")
	assert.False(t, ok)
}

func TestWatcher_MarksHashesFromOutfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.out")
	require.NoError(t, os.WriteFile(path, []byte(md5Hex("one")+":one\n"), 0o600))

	reg, p := md5Registry(t, "one", "two")

	var (
		mu      sync.Mutex
		entries []string
	)

	allShown := make(chan struct{})
	w := &Watcher{
		Path:     path,
		Registry: reg,
		Parser:   p,
		OnEntry: func(e Entry) {
			mu.Lock()
			entries = append(entries, string(e.Plain))
			mu.Unlock()
		},
		OnAllShown: func() { close(allShown) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)

	go func() { done <- w.Watch(ctx) }()

	require.Eventually(t, func() bool { return reg.DigestsDone() == 1 }, 5*time.Second, 10*time.Millisecond)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("junk line\n" + md5Hex("two") + ":two\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case <-allShown:
	case <-ctx.Done():
		t.Fatal("watcher never saw the appended line")
	}

	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []string{"one", "two"}, entries)
}
