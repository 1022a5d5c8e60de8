package hashlist

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/binary"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/state"
)

const maxLineSize = 1024 * 1024

// LoadOptions controls parsing strictness and the duplicate policy.
type LoadOptions struct {
	KeepAll bool // KeepAll keeps every record even when (salt, digest) repeats.
	Strict  bool // Strict fails on the first ParseError instead of skipping the line.
}

// Digest is one target hash. Its binary value lives in the registry's flat digest buffer.
type Digest struct {
	SaltPos int    // SaltPos is the index of the owning Salt.
	Done    bool   // Done means a plaintext is known; the digest is no longer checked.
	Shown   bool   // Shown means cracked and reported.
	User    string // User is the optional username.
	Hash    string // Hash is the canonical hash text written to the potfile.
	Aux     []byte // Aux carries format-specific extra salt payload.
	valOff  int
}

// Salt owns a contiguous sorted run of Digests.
type Salt struct {
	Iterations    uint32
	DigestsOffset int  // DigestsOffset is the index of the first digest of this salt in the flat digest array.
	DigestsCnt    int  // DigestsCnt is the number of digests under this salt.
	DigestsDone   int  // DigestsDone counts digests already shown.
	Shown         bool // Shown means every digest under this salt is cracked.
	valOff        int
	valLen        int
}

// CrackResult describes the effect of marking a digest as cracked.
type CrackResult struct {
	Digests  []int // Digests are the global indexes newly marked shown (more than one only under KeepAll).
	SaltDone bool  // SaltDone is true when the owning salt became fully cracked.
	AllDone  bool  // AllDone is true when every digest in the registry is now shown.
}

// Registry is the immutable, deduplicated salt/digest table. Only the shown/done bookkeeping changes after
// Load, and only under the registry's crack lock.
type Registry struct {
	format      Format
	digestBuf   []byte
	saltBuf     []byte
	digests     []Digest
	salts       []Salt
	fingerprint uint64
	parseErrors int
	duplicates  int

	mu          sync.RWMutex
	digestsDone int
	saltsDone   int
}

// Load parses every non-empty line of r and builds a Registry.
func Load(r io.Reader, p Parser, opts LoadOptions) (*Registry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var (
		records     []Record
		lineNum     int
		parseErrors int
	)

	for scanner.Scan() {
		lineNum++

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		rec, err := p.Parse(line)
		if err != nil {
			var pe *cserrors.ParseError
			if errors.As(err, &pe) {
				pe.LineNum = lineNum
			}

			if opts.Strict {
				return nil, err
			}

			parseErrors++

			state.Logger.Warn("Skipping invalid hash line", "line", lineNum, "error", err)

			continue
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading hash list")
	}

	reg, err := build(records, p.Format(), opts)
	if err != nil {
		return nil, err
	}

	reg.parseErrors = parseErrors

	return reg, nil
}

// LoadLines is Load over an in-memory slice of lines.
func LoadLines(lines []string, p Parser, opts LoadOptions) (*Registry, error) {
	return Load(strings.NewReader(strings.Join(lines, "\n")), p, opts)
}

func compareSalt(aSalt []byte, aIter uint32, bSalt []byte, bIter uint32) int {
	if c := cmp.Compare(len(aSalt), len(bSalt)); c != 0 {
		return c
	}

	if c := bytes.Compare(aSalt, bSalt); c != 0 {
		return c
	}

	return cmp.Compare(aIter, bIter)
}

func compareRecords(a, b Record) int {
	if c := compareSalt(a.Salt, a.Iterations, b.Salt, b.Iterations); c != 0 {
		return c
	}

	return bytes.Compare(a.Digest, b.Digest)
}

// build sorts the records and merges equal runs into salts with sorted digest sub-arrays.
func build(records []Record, f Format, opts LoadOptions) (*Registry, error) {
	if len(records) == 0 {
		return nil, cserrors.ErrEmptyInput
	}

	slices.SortStableFunc(records, compareRecords)

	saltBytes := 0
	for i := range records {
		saltBytes += len(records[i].Salt)
	}

	reg := &Registry{
		format:    f,
		digestBuf: make([]byte, 0, len(records)*f.DigestSize),
		saltBuf:   make([]byte, 0, saltBytes),
		digests:   make([]Digest, 0, len(records)),
	}

	for i := 0; i < len(records); {
		j := i + 1
		for j < len(records) && compareSalt(records[i].Salt, records[i].Iterations, records[j].Salt, records[j].Iterations) == 0 {
			j++
		}

		salt := Salt{
			Iterations:    records[i].Iterations,
			DigestsOffset: len(reg.digests),
			valOff:        len(reg.saltBuf),
			valLen:        len(records[i].Salt),
		}
		reg.saltBuf = append(reg.saltBuf, records[i].Salt...)
		saltPos := len(reg.salts)

		for k := i; k < j; k++ {
			if !opts.KeepAll && k > i && bytes.Equal(records[k].Digest, records[k-1].Digest) {
				reg.duplicates++
				continue
			}

			reg.digests = append(reg.digests, Digest{
				SaltPos: saltPos,
				User:    records[k].User,
				Hash:    records[k].Hash,
				Aux:     records[k].Aux,
				valOff:  len(reg.digestBuf),
			})
			reg.digestBuf = append(reg.digestBuf, records[k].Digest...)
		}

		salt.DigestsCnt = len(reg.digests) - salt.DigestsOffset
		reg.salts = append(reg.salts, salt)
		i = j
	}

	reg.fingerprint = reg.computeFingerprint()

	if reg.duplicates > 0 {
		state.Logger.Debug("Removed duplicate hashes", "count", reg.duplicates)
	}

	return reg, nil
}

func (r *Registry) computeFingerprint() uint64 {
	h := xxhash.New()

	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(r.format.Mode)) //nolint:gosec // modes are small positive ints
	binary.LittleEndian.PutUint64(hdr[4:12], uint64(len(r.digests)))
	_, _ = h.Write(hdr[:])

	for i := range r.salts {
		var it [4]byte
		binary.LittleEndian.PutUint32(it[:], r.salts[i].Iterations)
		_, _ = h.Write(r.SaltValue(i))
		_, _ = h.Write(it[:])
	}

	_, _ = h.Write(r.digestBuf)

	return h.Sum64()
}

// Format returns the hash format of the registry.
func (r *Registry) Format() Format { return r.format }

// SaltsCnt returns the number of unique salts.
func (r *Registry) SaltsCnt() int { return len(r.salts) }

// DigestsCnt returns the number of digests kept after deduplication.
func (r *Registry) DigestsCnt() int { return len(r.digests) }

// ParseErrors returns how many lines were skipped as malformed.
func (r *Registry) ParseErrors() int { return r.parseErrors }

// Duplicates returns how many records were dropped as duplicates.
func (r *Registry) Duplicates() int { return r.duplicates }

// Fingerprint identifies the exact salt/digest table; checkpoints are only valid for the same fingerprint.
func (r *Registry) Fingerprint() uint64 { return r.fingerprint }

// SaltValue returns the raw salt bytes of the salt at pos. The slice must not be modified.
func (r *Registry) SaltValue(pos int) []byte {
	s := r.salts[pos]

	return r.saltBuf[s.valOff : s.valOff+s.valLen : s.valOff+s.valLen]
}

// Salt returns a copy of the salt at pos.
func (r *Registry) Salt(pos int) Salt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.salts[pos]
}

// Digest returns a copy of the digest at localIdx under salt saltPos.
func (r *Registry) Digest(saltPos, localIdx int) Digest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.digests[r.salts[saltPos].DigestsOffset+localIdx]
}

// DigestBytes returns the binary digest at localIdx under salt saltPos. The slice must not be modified.
func (r *Registry) DigestBytes(saltPos, localIdx int) []byte {
	d := r.digests[r.salts[saltPos].DigestsOffset+localIdx]
	size := r.format.DigestSize

	return r.digestBuf[d.valOff : d.valOff+size : d.valOff+size]
}

// SaltDigests returns the salt's digest run as one contiguous byte slice (DigestSize bytes per digest).
func (r *Registry) SaltDigests(saltPos int) []byte {
	s := r.salts[saltPos]
	if s.DigestsCnt == 0 {
		return nil
	}

	size := r.format.DigestSize
	start := r.digests[s.DigestsOffset].valOff

	return r.digestBuf[start : start+s.DigestsCnt*size : start+s.DigestsCnt*size]
}

// SaltShown reports whether every digest under the salt is cracked.
func (r *Registry) SaltShown(pos int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.salts[pos].Shown
}

// DigestsDone returns how many digests are shown.
func (r *Registry) DigestsDone() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.digestsDone
}

// SaltsDone returns how many salts are fully cracked.
func (r *Registry) SaltsDone() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.saltsDone
}

// AllShown reports whether every digest is cracked.
func (r *Registry) AllShown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.digestsDone == len(r.digests)
}

// Find locates a digest by salt, iteration count and binary value using two binary searches.
func (r *Registry) Find(salt []byte, iterations uint32, digest []byte) (saltPos, localIdx int, ok bool) {
	saltPos, found := slices.BinarySearchFunc(r.salts, 0, func(s Salt, _ int) int {
		return compareSalt(r.saltBuf[s.valOff:s.valOff+s.valLen], s.Iterations, salt, iterations)
	})
	if !found {
		return 0, 0, false
	}

	localIdx, ok = r.findInSalt(saltPos, digest)

	return saltPos, localIdx, ok
}

func (r *Registry) findInSalt(saltPos int, digest []byte) (int, bool) {
	s := r.salts[saltPos]
	run := r.digests[s.DigestsOffset : s.DigestsOffset+s.DigestsCnt]
	size := r.format.DigestSize

	return slices.BinarySearchFunc(run, digest, func(d Digest, target []byte) int {
		return bytes.Compare(r.digestBuf[d.valOff:d.valOff+size], target)
	})
}

// FindInSalt locates a binary digest inside one salt's run.
func (r *Registry) FindInSalt(saltPos int, digest []byte) (int, bool) {
	return r.findInSalt(saltPos, digest)
}

// FindRecord locates the digest a parsed record refers to.
func (r *Registry) FindRecord(rec Record) (saltPos, localIdx int, ok bool) {
	return r.Find(rec.Salt, rec.Iterations, rec.Digest)
}

// MarkCracked marks a digest done and shown inside the single crack critical section. Under KeepAll every adjacent
// digest with the same value is marked too. ok is false when the digest was already done or the position is
// out of range.
func (r *Registry) MarkCracked(saltPos, localIdx int) (res CrackResult, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if saltPos < 0 || saltPos >= len(r.salts) {
		return CrackResult{}, false
	}

	s := &r.salts[saltPos]
	if localIdx < 0 || localIdx >= s.DigestsCnt {
		return CrackResult{}, false
	}

	first := s.DigestsOffset + localIdx
	if r.digests[first].Done {
		return CrackResult{}, false
	}

	value := r.digestValue(first)

	lo := first
	for lo > s.DigestsOffset && bytes.Equal(r.digestValue(lo-1), value) {
		lo--
	}

	hi := first
	for hi+1 < s.DigestsOffset+s.DigestsCnt && bytes.Equal(r.digestValue(hi+1), value) {
		hi++
	}

	for i := lo; i <= hi; i++ {
		if r.digests[i].Done {
			continue
		}

		r.digests[i].Done = true
		r.digests[i].Shown = true
		s.DigestsDone++
		r.digestsDone++
		res.Digests = append(res.Digests, i)
	}

	if s.DigestsDone == s.DigestsCnt && !s.Shown {
		s.Shown = true
		r.saltsDone++
		res.SaltDone = true
	}

	res.AllDone = r.digestsDone == len(r.digests)

	return res, true
}

func (r *Registry) digestValue(global int) []byte {
	off := r.digests[global].valOff

	return r.digestBuf[off : off+r.format.DigestSize]
}

// GlobalDigest returns a copy of the digest at a global index.
func (r *Registry) GlobalDigest(global int) Digest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.digests[global]
}

// MarkShownByLine parses a hash line (as written to a potfile or outfile, without the plaintext) and marks the
// matching digest shown. ok is false when the line does not parse, is not in the registry or was already shown.
func (r *Registry) MarkShownByLine(p Parser, hashText string) (CrackResult, bool) {
	rec, err := p.Parse(hashText)
	if err != nil {
		return CrackResult{}, false
	}

	saltPos, idx, found := r.FindRecord(rec)
	if !found {
		return CrackResult{}, false
	}

	return r.MarkCracked(saltPos, idx)
}
