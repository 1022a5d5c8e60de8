package device

import (
	"context"
	"crypto/md5" //nolint:gosec // target hash algorithm
	"crypto/sha1" //nolint:gosec // target hash algorithm
	"crypto/sha256"
	"hash"
	"unicode/utf16"

	"github.com/cockroachdb/errors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"golang.org/x/crypto/md4" //nolint:staticcheck // NTLM is md4 over UTF-16LE
	"golang.org/x/crypto/sha3"
)

// ErrUnsupportedMode is returned when no CPU implementation exists for a hash mode.
var ErrUnsupportedMode = errors.New("hash mode not supported by the CPU kernel")

// CPUKernel is the reference kernel: it hashes every candidate on the host and looks the result up in the
// registry. Fully cracked salts are skipped.
type CPUKernel struct {
	reg     *hashlist.Registry
	newHash func() hash.Hash
	encode  func(candidate, salt []byte) []byte
}

// NewCPUKernel returns a kernel for the registry's hash format.
func NewCPUKernel(reg *hashlist.Registry) (*CPUKernel, error) {
	k := &CPUKernel{reg: reg, encode: plainEncode}

	switch reg.Format().Mode {
	case hashlist.ModeMD5, hashlist.ModeMD5PassSalt:
		k.newHash = md5.New
	case hashlist.ModeSHA1, hashlist.ModeSHA1PassSalt:
		k.newHash = sha1.New
	case hashlist.ModeSHA256, hashlist.ModeSHA256Salt:
		k.newHash = sha256.New
	case hashlist.ModeSHA3_256:
		k.newHash = sha3.New256
	case hashlist.ModeNTLM:
		k.newHash = md4.New
		k.encode = ntlmEncode
	default:
		return nil, errors.Wrapf(ErrUnsupportedMode, "mode %d", reg.Format().Mode)
	}

	return k, nil
}

func plainEncode(candidate, salt []byte) []byte {
	if len(salt) == 0 {
		return candidate
	}

	out := make([]byte, 0, len(candidate)+len(salt))
	out = append(out, candidate...)

	return append(out, salt...)
}

func ntlmEncode(candidate, _ []byte) []byte {
	units := utf16.Encode([]rune(string(candidate)))
	out := make([]byte, 0, len(units)*2)

	for _, u := range units {
		out = append(out, byte(u), byte(u>>8))
	}

	return out
}

// Digest hashes one candidate with the given salt.
func (k *CPUKernel) Digest(candidate, salt []byte) []byte {
	h := k.newHash()
	_, _ = h.Write(k.encode(candidate, salt))

	return h.Sum(nil)
}

// Submit hashes the batch against every salt that still has uncracked digests. A call always runs to completion
// so that every match it finds is accounted; callers observe cancellation between units.
func (k *CPUKernel) Submit(_ context.Context, b Batch) ([]Match, error) {
	var matches []Match

	for saltPos := range k.reg.SaltsCnt() {
		if k.reg.SaltShown(saltPos) {
			continue
		}

		salt := k.reg.SaltValue(saltPos)

		for ci, c := range b.Candidates {
			idx, ok := k.reg.FindInSalt(saltPos, k.Digest(c, salt))
			if !ok {
				continue
			}

			matches = append(matches, Match{SaltPos: saltPos, DigestIndex: idx, CandidateIndex: ci})
		}
	}

	return matches, nil
}
