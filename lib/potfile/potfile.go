// Package potfile reads and appends the "hash:plaintext" log of cracked hashes and follows outfiles written by
// other instances.
package potfile

import (
	"bufio"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const (
	separator = ":"
	hexPrefix = "$HEX["
	hexSuffix = "]"
)

// Potfile is an append-only writer of cracked hashes. It is safe for concurrent use.
type Potfile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens path for appending, creating it and its directory when missing.
func Open(path string) (*Potfile, error) {
	if dir := filepath.Dir(path); !fileutil.IsDir(dir) {
		if err := fileutil.CreateDir(dir); err != nil {
			return nil, errors.Wrapf(err, "creating potfile directory %q", dir)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // user-supplied path
	if err != nil {
		return nil, errors.Wrapf(err, "opening potfile %q", path)
	}

	return &Potfile{path: path, f: f}, nil
}

// Path returns the file the potfile appends to.
func (p *Potfile) Path() string { return p.path }

// Write appends one entry.
func (p *Potfile) Write(hash string, plain []byte) error {
	line := hash + separator + EncodePlain(plain) + "\n"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return errors.Newf("potfile %q is closed", p.path)
	}

	if _, err := p.f.WriteString(line); err != nil {
		return errors.Wrapf(err, "appending to potfile %q", p.path)
	}

	return nil
}

// Close closes the underlying file.
func (p *Potfile) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.f == nil {
		return nil
	}

	err := p.f.Close()
	p.f = nil

	return err
}

// EncodePlain returns plain as-is, or as $HEX[...] when it contains the separator, a non-printable byte or
// already looks hex-encoded.
func EncodePlain(plain []byte) string {
	needsHex := strings.HasPrefix(string(plain), hexPrefix)

	for _, b := range plain {
		if b < 0x20 || b > 0x7e || b == separator[0] {
			needsHex = true

			break
		}
	}

	if !needsHex {
		return string(plain)
	}

	return hexPrefix + hex.EncodeToString(plain) + hexSuffix
}

// DecodePlain reverses EncodePlain. Malformed $HEX[] payloads are returned verbatim.
func DecodePlain(s string) []byte {
	if strings.HasPrefix(s, hexPrefix) && strings.HasSuffix(s, hexSuffix) {
		if b, err := hex.DecodeString(s[len(hexPrefix) : len(s)-len(hexSuffix)]); err == nil {
			return b
		}
	}

	return []byte(s)
}

// Entry is one resolved potfile line.
type Entry struct {
	Hash   string
	Plain  []byte
	Result hashlist.CrackResult
}

// Resolve splits line into hash and plaintext at the first separator whose left side names a digest in reg,
// and marks that digest shown. ok is false when no split resolves or the digest was already shown.
func Resolve(reg *hashlist.Registry, p hashlist.Parser, line string) (Entry, bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != separator[0] {
			continue
		}

		hash := line[:i]

		rec, err := p.Parse(hash)
		if err != nil {
			continue
		}

		saltPos, idx, found := reg.FindRecord(rec)
		if !found {
			continue
		}

		res, ok := reg.MarkCracked(saltPos, idx)
		if !ok {
			return Entry{}, false
		}

		return Entry{Hash: hash, Plain: DecodePlain(line[i+1:]), Result: res}, true
	}

	return Entry{}, false
}

// Load pre-filters reg with the entries of the potfile at path. Every entry whose hash resolves marks its
// digest shown. A missing file is not an error. It returns the number of digests marked.
func Load(path string, reg *hashlist.Registry, p hashlist.Parser) (int, error) {
	if !fileutil.IsExist(path) {
		return 0, nil
	}

	f, err := os.Open(path) //nolint:gosec // user-supplied path
	if err != nil {
		return 0, errors.Wrapf(err, "opening potfile %q", path)
	}
	defer f.Close() //nolint:errcheck // read-only

	marked := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		if e, ok := Resolve(reg, p, line); ok {
			marked += len(e.Result.Digests)
		}

		if reg.AllShown() {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return marked, errors.Wrapf(err, "reading potfile %q", path)
	}

	state.Logger.Debug("Potfile loaded", "path", path, "marked", marked)

	return marked, nil
}
