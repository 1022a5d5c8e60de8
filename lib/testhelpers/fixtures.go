// Package testhelpers provides reusable test utilities and helpers for testing cipherswarm-dispatch.
package testhelpers

import (
	"crypto/md5" //nolint:gosec // fixture hashes
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
)

// MD5Hex returns the hex md5 of plain.
func MD5Hex(plain string) string {
	sum := md5.Sum([]byte(plain)) //nolint:gosec // fixture hashes

	return hex.EncodeToString(sum[:])
}

// MD5Lines returns one md5 hash line per plain.
func MD5Lines(plains ...string) []string {
	lines := make([]string, 0, len(plains))
	for _, p := range plains {
		lines = append(lines, MD5Hex(p))
	}

	return lines
}

// CreateTestFile creates a test file with the specified content in the given directory.
// Returns the full file path.
func CreateTestFile(t *testing.T, dir, filename string, content []byte) string {
	t.Helper()

	filePath := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(filePath, content, 0o600), "creating test file")

	return filePath
}

// CreateLinesFile writes lines, newline terminated, to dir/filename.
func CreateLinesFile(t *testing.T, dir, filename string, lines ...string) string {
	t.Helper()

	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}

	return CreateTestFile(t, dir, filename, []byte(sb.String()))
}

// CreateHashListFile writes the md5 hashes of plains to dir/hashes.txt.
func CreateHashListFile(t *testing.T, dir string, plains ...string) string {
	t.Helper()

	return CreateLinesFile(t, dir, "hashes.txt", MD5Lines(plains...)...)
}

// NewMD5Registry loads the md5 hashes of plains into a registry.
func NewMD5Registry(t *testing.T, plains ...string) (*hashlist.Registry, hashlist.Parser) {
	t.Helper()

	f, err := hashlist.LookupFormat("md5")
	require.NoError(t, err)

	p := hashlist.NewHexParser(f)
	reg, err := hashlist.LoadLines(MD5Lines(plains...), p, hashlist.LoadOptions{})
	require.NoError(t, err)

	return reg, p
}
