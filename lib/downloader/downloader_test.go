package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testContent    = "test content"
	testContentMD5 = "9473fdd0d880a43c21b7778d34872157"
)

func quiet(t *testing.T) {
	t.Helper()

	prev := Tracker
	Tracker = nil

	t.Cleanup(func() { Tracker = prev })
}

func serve(t *testing.T, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, hits
}

// TestFileExistsAndValid tests the FileExistsAndValid function.
func TestFileExistsAndValid(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name           string
		setupFile      func() string
		checksum       string
		expectedResult bool
	}{
		{
			name: "file exists with matching checksum",
			setupFile: func() string {
				filePath := filepath.Join(tempDir, "words1.txt")
				require.NoError(t, os.WriteFile(filePath, []byte(testContent), 0o600))
				return filePath
			},
			checksum:       testContentMD5,
			expectedResult: true,
		},
		{
			name: "file exists with no checksum provided",
			setupFile: func() string {
				filePath := filepath.Join(tempDir, "words2.txt")
				require.NoError(t, os.WriteFile(filePath, []byte(testContent), 0o600))
				return filePath
			},
			expectedResult: true,
		},
		{
			name: "file exists with mismatched checksum",
			setupFile: func() string {
				filePath := filepath.Join(tempDir, "words3.txt")
				require.NoError(t, os.WriteFile(filePath, []byte(testContent), 0o600))
				return filePath
			},
			checksum:       "00000000000000000000000000000000",
			expectedResult: false,
		},
		{
			name: "file does not exist",
			setupFile: func() string {
				return filepath.Join(tempDir, "nonexistent.txt")
			},
			checksum:       testContentMD5,
			expectedResult: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filePath := tt.setupFile()
			assert.Equal(t, tt.expectedResult, FileExistsAndValid(filePath, tt.checksum))
		})
	}

	_, err := os.Stat(filepath.Join(tempDir, "words3.txt"))
	assert.True(t, os.IsNotExist(err), "mismatched file is removed")
}

// TestAppendChecksumToURL tests the appendChecksumToURL function.
func TestAppendChecksumToURL(t *testing.T) {
	tests := []struct {
		name        string
		fileURL     string
		checksum    string
		expectedURL string
		expectError bool
	}{
		{
			name:        "valid URL without query params",
			fileURL:     "https://example.com/rockyou.txt",
			checksum:    "abc123",
			expectedURL: "https://example.com/rockyou.txt?checksum=md5%3Aabc123",
		},
		{
			name:        "valid URL with existing query params",
			fileURL:     "https://example.com/rockyou.txt?param=value",
			checksum:    "def456",
			expectedURL: "https://example.com/rockyou.txt?checksum=md5%3Adef456&param=value",
		},
		{
			name:        "invalid URL",
			fileURL:     "://invalid-url",
			checksum:    "abc123",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := appendChecksumToURL(tt.fileURL, tt.checksum)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedURL, result)
			}
		})
	}
}

func TestFetch_LocalFilePassesThrough(t *testing.T) {
	local := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0o600))

	got, err := Fetch(context.Background(), local, t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, local, got)
	assert.False(t, IsRemote(local))
}

func TestFetch_InvalidReference(t *testing.T) {
	_, err := Fetch(context.Background(), "no/such/file.txt", t.TempDir(), "")
	require.ErrorIs(t, err, ErrInvalidURL)
	assert.False(t, IsRemote("no/such/file.txt"))
}

func TestFetch_DownloadsAndReuses(t *testing.T) {
	quiet(t)

	srv, hits := serve(t, testContent)
	dir := t.TempDir()
	src := srv.URL + "/lists/words.txt"

	assert.True(t, IsRemote(src))

	got, err := Fetch(context.Background(), src, dir, testContentMD5)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "words.txt"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, testContent, string(data))

	before := hits.Load()

	again, err := Fetch(context.Background(), src, dir, testContentMD5)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, before, hits.Load(), "verified file is reused")
}

func TestFetch_ChecksumMismatch(t *testing.T) {
	quiet(t)

	srv, _ := serve(t, testContent)

	_, err := Fetch(context.Background(), srv.URL+"/words.txt", t.TempDir(), "00000000000000000000000000000000")
	require.Error(t, err)
}

func TestFetch_EmptyDownload(t *testing.T) {
	quiet(t)

	srv, _ := serve(t, "")

	_, err := Fetch(context.Background(), srv.URL+"/empty.txt", t.TempDir(), "")
	require.ErrorIs(t, err, ErrEmptyDownload)
}
