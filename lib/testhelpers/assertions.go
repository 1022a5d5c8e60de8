// Package testhelpers provides reusable test utilities and helpers for testing cipherswarm-dispatch.
package testhelpers

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ReadPotfile returns the hash to plain mapping of an unsalted potfile.
func ReadPotfile(t *testing.T, path string) map[string]string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "reading potfile")

	out := make(map[string]string)

	for line := range strings.SplitSeq(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}

		hash, plain, ok := strings.Cut(line, ":")
		require.True(t, ok, "malformed potfile line %q", line)

		out[hash] = plain
	}

	return out
}

// AssertPotfileHas checks that every plain's md5 is recorded in the potfile with that plain.
func AssertPotfileHas(t *testing.T, path string, plains ...string) {
	t.Helper()

	pot := ReadPotfile(t, path)
	for _, p := range plains {
		assert.Equal(t, p, pot[MD5Hex(p)], "potfile entry for %q", p)
	}
}

// AssertNoFile checks that path does not exist.
func AssertNoFile(t *testing.T, path string) {
	t.Helper()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}
