package candidates

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/fileutil"
)

const maxWordLen = 64 * 1024

// Wordlist streams the lines of a dictionary file. The keyspace is the line count, counted once on open.
type Wordlist struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	count   uint64
	pos     uint64
}

// NewWordlist opens path and counts its lines.
func NewWordlist(path string) (*Wordlist, error) {
	if !fileutil.IsExist(path) {
		return nil, errors.Newf("wordlist %q does not exist", path)
	}

	w := &Wordlist{path: path}
	if err := w.reopen(); err != nil {
		return nil, err
	}

	for w.scanner.Scan() {
		w.count++
	}

	if err := w.scanner.Err(); err != nil {
		_ = w.file.Close()

		return nil, errors.Wrapf(err, "counting lines of %q", path)
	}

	if err := w.reopen(); err != nil {
		return nil, err
	}

	return w, nil
}

func (w *Wordlist) reopen() error {
	if w.file != nil {
		_ = w.file.Close()
	}

	f, err := os.Open(w.path)
	if err != nil {
		return errors.Wrapf(err, "opening wordlist %q", w.path)
	}

	w.file = f
	w.scanner = bufio.NewScanner(f)
	w.scanner.Buffer(make([]byte, 0, 4096), maxWordLen)
	w.pos = 0

	return nil
}

// Keyspace returns the number of lines.
func (w *Wordlist) Keyspace() uint64 { return w.count }

// Amplifier is 1 for a plain wordlist.
func (w *Wordlist) Amplifier() uint64 { return 1 }

// Seek positions the stream at line offset.
func (w *Wordlist) Seek(offset uint64) error {
	if offset > w.count {
		return errors.Wrapf(ErrSeekOutOfRange, "wordlist offset %d of %d", offset, w.count)
	}

	if offset < w.pos {
		if err := w.reopen(); err != nil {
			return err
		}
	}

	for w.pos < offset {
		if !w.scanner.Scan() {
			return w.scanErr()
		}

		w.pos++
	}

	return nil
}

// NextBatch reads up to n lines. Trailing carriage returns are stripped.
func (w *Wordlist) NextBatch(n uint64) ([][]byte, error) {
	out := make([][]byte, 0, min(n, w.count-w.pos))

	for uint64(len(out)) < n && w.scanner.Scan() {
		line := bytes.TrimSuffix(w.scanner.Bytes(), []byte{'\r'})
		out = append(out, bytes.Clone(line))
		w.pos++
	}

	if err := w.scanner.Err(); err != nil {
		return out, errors.Wrapf(err, "reading wordlist %q", w.path)
	}

	return out, nil
}

func (w *Wordlist) scanErr() error {
	if err := w.scanner.Err(); err != nil {
		return errors.Wrapf(err, "reading wordlist %q", w.path)
	}

	return io.ErrUnexpectedEOF
}

// Close releases the file handle.
func (w *Wordlist) Close() error {
	if w.file == nil {
		return nil
	}

	err := w.file.Close()
	w.file = nil

	return err
}

// Describe returns the wordlist file name.
func (w *Wordlist) Describe() string {
	return filepath.Base(w.path)
}

// ReadLines loads a whole wordlist into memory.
func ReadLines(path string) ([][]byte, error) {
	w, err := NewWordlist(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = w.Close() }()

	return w.NextBatch(w.Keyspace())
}
