// Package restore persists the checkpoint record a session resumes from.
package restore

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

// Version is the current record layout version.
const Version uint32 = 1

const (
	filePermissions = 0o600
	maxStringLen    = 64 * 1024
	maxArgs         = 1024
)

//nolint:gochecknoglobals // file magic
var magic = [4]byte{'C', 'S', 'R', 'S'}

var (
	// ErrBadMagic is returned when the file is not a checkpoint record.
	ErrBadMagic = errors.New("not a checkpoint file")
	// ErrVersion is returned for an unsupported record version.
	ErrVersion = errors.New("unsupported checkpoint version")
)

// Record is the durable resume point of a session.
type Record struct {
	Version     uint32
	DictPos     uint32   // DictPos is the index of the current wordlist segment.
	MaskPos     uint32   // MaskPos is the index of the current mask segment.
	WordsCur    uint64   // WordsCur is the restore point inside the segment, in base words.
	Fingerprint uint64   // Fingerprint identifies the hash set the record belongs to.
	Session     string   // Session is the session name.
	Cwd         string   // Cwd is the working directory of the original run.
	Args        []string // Args is the original command line.
}

// MarshalBinary encodes the record in little-endian layout behind a magic and version header.
func (r *Record) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer

	buf.Write(magic[:])

	fixed := []any{Version, r.DictPos, r.MaskPos, r.WordsCur, r.Fingerprint}
	for _, v := range fixed {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrap(err, "encoding checkpoint")
		}
	}

	writeString(&buf, r.Session)
	writeString(&buf, r.Cwd)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(r.Args))) //nolint:gosec // bounded by maxArgs on read

	for _, a := range r.Args {
		writeString(&buf, a)
	}

	return buf.Bytes(), nil
}

func writeString(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s))) //nolint:gosec // strings are short
	buf.WriteString(s)
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (r *Record) UnmarshalBinary(data []byte) error {
	rd := bytes.NewReader(data)

	var m [4]byte
	if _, err := io.ReadFull(rd, m[:]); err != nil || m != magic {
		return ErrBadMagic
	}

	var version uint32
	if err := binary.Read(rd, binary.LittleEndian, &version); err != nil {
		return errors.Wrap(err, "reading version")
	}

	if version != Version {
		return errors.Wrapf(ErrVersion, "version %d", version)
	}

	out := Record{Version: version}

	for _, v := range []any{&out.DictPos, &out.MaskPos, &out.WordsCur, &out.Fingerprint} {
		if err := binary.Read(rd, binary.LittleEndian, v); err != nil {
			return errors.Wrap(err, "reading checkpoint header")
		}
	}

	var err error

	if out.Session, err = readString(rd); err != nil {
		return err
	}

	if out.Cwd, err = readString(rd); err != nil {
		return err
	}

	var argc uint32
	if err := binary.Read(rd, binary.LittleEndian, &argc); err != nil {
		return errors.Wrap(err, "reading argument count")
	}

	if argc > maxArgs {
		return errors.Newf("checkpoint argument count %d too large", argc)
	}

	for range argc {
		a, err := readString(rd)
		if err != nil {
			return err
		}

		out.Args = append(out.Args, a)
	}

	*r = out

	return nil
}

func readString(rd io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(rd, binary.LittleEndian, &n); err != nil {
		return "", errors.Wrap(err, "reading string length")
	}

	if n > maxStringLen {
		return "", errors.Newf("checkpoint string length %d too large", n)
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(rd, b); err != nil {
		return "", errors.Wrap(err, "reading string")
	}

	return string(b), nil
}

// Save writes the record atomically: a temporary file in the same directory is synced and renamed over path.
func Save(path string, rec *Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return &cserrors.CheckpointIOError{Op: "encode", Path: path, Err: err}
	}

	tmpPath := path + ".new"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return &cserrors.CheckpointIOError{Op: "write", Path: path, Err: err}
	}

	w := bufio.NewWriter(f)
	_, err = w.Write(data)

	if err == nil {
		err = w.Flush()
	}

	if err == nil {
		err = f.Sync()
	}

	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(tmpPath)

		return &cserrors.CheckpointIOError{Op: "write", Path: path, Err: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			state.Logger.Warn("Failed to clean up temp checkpoint file", "error", removeErr, "path", tmpPath)
		}

		return &cserrors.CheckpointIOError{Op: "rename", Path: path, Err: err}
	}

	return nil
}

// Load reads the record at path. It returns (nil, nil) when no checkpoint exists.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, &cserrors.CheckpointIOError{Op: "read", Path: path, Err: err}
	}

	rec := &Record{}
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, &cserrors.CheckpointIOError{Op: "decode", Path: path, Err: err}
	}

	return rec, nil
}

// Remove deletes the checkpoint at path; a missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &cserrors.CheckpointIOError{Op: "remove", Path: path, Err: err}
	}

	return nil
}
