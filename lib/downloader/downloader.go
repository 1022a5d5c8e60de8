// Package downloader resolves hash list and wordlist references that point at remote locations into local files.
package downloader

import (
	"context"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/cryptor"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/hashicorp/go-getter"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const (
	defaultUmask = 0o022 // Default umask for file permissions
)

var (
	// ErrInvalidURL is returned for references that are neither a local file nor an absolute URL.
	ErrInvalidURL = errors.New("invalid URL")
	// ErrChecksumMismatch is returned when a downloaded file does not match its expected md5.
	ErrChecksumMismatch = errors.New("downloaded file checksum does not match")
	// ErrEmptyDownload is returned when a download produced a zero-byte file.
	ErrEmptyDownload = errors.New("downloaded file is empty")
)

// Tracker renders download progress. Nil disables progress output.
var Tracker getter.ProgressTracker = DefaultProgressBar //nolint:gochecknoglobals // swapped out by quiet runs and tests

// IsRemote reports whether src should be fetched rather than opened directly.
func IsRemote(src string) bool {
	if fileutil.IsExist(src) {
		return false
	}

	u, err := url.Parse(src)

	return err == nil && u.Scheme != "" && u.Host != ""
}

// Fetch returns a local path for src. Existing local files are returned unchanged; URLs are downloaded into
// dstDir, verified against the md5 checksum when one is given and reused on later calls while they still match.
func Fetch(ctx context.Context, src, dstDir, checksum string) (string, error) {
	if fileutil.IsExist(src) {
		return src, nil
	}

	parsedURL, err := url.Parse(src)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		state.Logger.Error("Invalid URL", "url", src)

		return "", errors.Wrapf(ErrInvalidURL, "%q", src)
	}

	name := path.Base(parsedURL.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}

	dst := filepath.Join(dstDir, name)

	if FileExistsAndValid(dst, checksum) {
		state.Logger.Info("Download already exists", "path", dst)

		return dst, nil
	}

	if err := downloadAndVerifyFile(ctx, src, dst, checksum); err != nil {
		return "", err
	}

	info, err := os.Stat(dst)
	if err != nil {
		return "", errors.Wrap(err, "checking downloaded file")
	}

	if info.Size() == 0 {
		return "", errors.Wrapf(ErrEmptyDownload, "%q", dst)
	}

	return dst, nil
}

// FileExistsAndValid checks if a file exists at the given path and, if a checksum is provided, verifies it.
// A file with a mismatched checksum is removed.
func FileExistsAndValid(filePath, checksum string) bool {
	if !fileutil.IsExist(filePath) {
		return false
	}

	if strutil.IsBlank(checksum) {
		return true
	}

	fileChecksum, err := cryptor.Md5File(filePath)
	if err != nil {
		state.Logger.Error("Error calculating file checksum", "path", filePath, "error", err)

		return false
	}

	if fileChecksum == checksum {
		return true
	}

	state.Logger.Warn("Checksums do not match", "path", filePath, "url_checksum", checksum,
		"file_checksum", fileChecksum)

	if err := os.Remove(filePath); err != nil {
		state.Logger.Error("Error removing file with mismatched checksum", "path", filePath, "error", err)
	}

	return false
}

// downloadAndVerifyFile downloads fileURL to filePath, letting go-getter verify the checksum when one is given.
func downloadAndVerifyFile(ctx context.Context, fileURL, filePath, checksum string) error {
	if strutil.IsNotBlank(checksum) {
		var err error

		fileURL, err = appendChecksumToURL(fileURL, checksum)
		if err != nil {
			return err
		}
	}

	client := &getter.Client{
		Ctx:  ctx,
		Dst:  filePath,
		Src:  fileURL,
		Pwd:  filepath.Dir(filePath),
		Mode: getter.ClientModeFile,
	}

	opts := []getter.ClientOption{getter.WithUmask(os.FileMode(defaultUmask))}
	if Tracker != nil {
		opts = append(opts, getter.WithProgress(Tracker))
	}

	if err := client.Configure(opts...); err != nil {
		return errors.Wrap(err, "configuring downloader")
	}

	if err := client.Get(); err != nil {
		state.Logger.Debug("Error downloading file", "error", err)

		return errors.Wrapf(err, "downloading %q", fileURL)
	}

	if strutil.IsNotBlank(checksum) && !FileExistsAndValid(filePath, checksum) {
		return ErrChecksumMismatch
	}

	return nil
}

// appendChecksumToURL appends a checksum to the URL query string.
func appendChecksumToURL(rawURL, checksum string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, "parsing download URL")
	}

	q := u.Query()
	q.Set("checksum", "md5:"+checksum)
	u.RawQuery = q.Encode()

	return u.String(), nil
}
