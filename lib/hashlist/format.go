// Package hashlist loads target hashes, deduplicates them and groups them by salt into the compact table
// every other component indexes against.
package hashlist

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Hash modes. Numbers follow hashcat's -m values so hash lists and potfiles stay interchangeable.
const (
	ModeMD5          = 0
	ModeMD5PassSalt  = 10
	ModeSHA1         = 100
	ModeSHA1PassSalt = 110
	ModeNTLM         = 1000
	ModeSHA256       = 1400
	ModeSHA256Salt   = 1410
	ModeSHA3_256     = 17400
)

const defaultMaxSaltLen = 256

// ErrUnknownFormat is returned by LookupFormat for an unsupported name or mode.
var ErrUnknownFormat = errors.New("unknown hash type")

// Format describes the fixed layout of one hash type: the binary digest size and whether a salt follows it.
type Format struct {
	Name       string
	Mode       int
	DigestSize int
	Salted     bool
	MaxSaltLen int
}

//nolint:gochecknoglobals // Static format table
var formats = []Format{
	{Name: "md5", Mode: ModeMD5, DigestSize: 16},
	{Name: "md5(pass.salt)", Mode: ModeMD5PassSalt, DigestSize: 16, Salted: true, MaxSaltLen: defaultMaxSaltLen},
	{Name: "sha1", Mode: ModeSHA1, DigestSize: 20},
	{Name: "sha1(pass.salt)", Mode: ModeSHA1PassSalt, DigestSize: 20, Salted: true, MaxSaltLen: defaultMaxSaltLen},
	{Name: "ntlm", Mode: ModeNTLM, DigestSize: 16},
	{Name: "sha256", Mode: ModeSHA256, DigestSize: 32},
	{Name: "sha256(pass.salt)", Mode: ModeSHA256Salt, DigestSize: 32, Salted: true, MaxSaltLen: defaultMaxSaltLen},
	{Name: "sha3-256", Mode: ModeSHA3_256, DigestSize: 32},
}

// Formats returns a copy of the supported format table.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)

	return out
}

// LookupFormat resolves a format by name ("sha1") or by numeric mode ("100").
func LookupFormat(nameOrMode string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrMode))

	if mode, err := strconv.Atoi(key); err == nil {
		for _, f := range formats {
			if f.Mode == mode {
				return f, nil
			}
		}

		return Format{}, errors.Wrapf(ErrUnknownFormat, "mode %d", mode)
	}

	for _, f := range formats {
		if f.Name == key {
			return f, nil
		}
	}

	return Format{}, errors.Wrapf(ErrUnknownFormat, "%q", nameOrMode)
}
