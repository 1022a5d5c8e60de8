package candidates

import (
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
)

// Built-in charsets.
const (
	charsetLower   = "abcdefghijklmnopqrstuvwxyz"
	charsetUpper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigit   = "0123456789"
	charsetSpecial = " !\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	charsetHexLow  = "0123456789abcdef"
	charsetHexUp   = "0123456789ABCDEF"
)

const maxCustomCharsets = 4

// ErrInvalidMask is returned for an unparsable mask or charset.
var ErrInvalidMask = errors.New("invalid mask")

// Mask enumerates every candidate of a mask like "?u?l?l?d?d". Candidate i is decoded directly from its index,
// so Seek is O(1).
type Mask struct {
	mask     string
	charsets [][]byte
	keyspace uint64
	pos      uint64
}

// NewMask parses mask using the given custom charsets for ?1 to ?4.
func NewMask(mask string, custom []string) (*Mask, error) {
	if len(custom) > maxCustomCharsets {
		return nil, errors.Wrapf(ErrInvalidMask, "at most %d custom charsets", maxCustomCharsets)
	}

	resolved := make([][]byte, len(custom))

	for i, cs := range custom {
		set, err := expandCharset(cs, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "custom charset %d", i+1)
		}

		resolved[i] = set
	}

	positions, err := parsePositions(mask, resolved)
	if err != nil {
		return nil, err
	}

	if len(positions) == 0 {
		return nil, errors.Wrap(ErrInvalidMask, "empty mask")
	}

	keyspace := uint64(1)

	for _, p := range positions {
		hi, lo := bits.Mul64(keyspace, uint64(len(p)))
		if hi != 0 {
			return nil, errors.Wrapf(ErrInvalidMask, "keyspace of %q overflows", mask)
		}

		keyspace = lo
	}

	return &Mask{mask: mask, charsets: positions, keyspace: keyspace}, nil
}

func builtinCharset(c byte) (string, bool) {
	switch c {
	case 'l':
		return charsetLower, true
	case 'u':
		return charsetUpper, true
	case 'd':
		return charsetDigit, true
	case 's':
		return charsetSpecial, true
	case 'a':
		return charsetLower + charsetUpper + charsetDigit + charsetSpecial, true
	case 'h':
		return charsetHexLow, true
	case 'H':
		return charsetHexUp, true
	}

	return "", false
}

// expandCharset resolves a charset definition that may reference built-ins or earlier custom charsets.
// Duplicate bytes are removed, first occurrence wins.
func expandCharset(def string, custom [][]byte) ([]byte, error) {
	var (
		out  []byte
		seen [256]bool
	)

	add := func(b byte) {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}

	for i := 0; i < len(def); i++ {
		if def[i] != '?' {
			add(def[i])
			continue
		}

		if i+1 >= len(def) {
			return nil, errors.Wrapf(ErrInvalidMask, "dangling '?' in %q", def)
		}

		i++
		c := def[i]

		switch {
		case c == '?':
			add('?')
		case c == 'b':
			for b := range 256 {
				add(byte(b))
			}
		case c >= '1' && c <= '4':
			idx := int(c - '1')
			if idx >= len(custom) {
				return nil, errors.Wrapf(ErrInvalidMask, "custom charset ?%c is not defined", c)
			}

			for _, b := range custom[idx] {
				add(b)
			}
		default:
			set, ok := builtinCharset(c)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidMask, "unknown charset ?%c", c)
			}

			for j := range len(set) {
				add(set[j])
			}
		}
	}

	if len(out) == 0 {
		return nil, errors.Wrap(ErrInvalidMask, "empty charset")
	}

	return out, nil
}

func parsePositions(mask string, custom [][]byte) ([][]byte, error) {
	var positions [][]byte

	for i := 0; i < len(mask); i++ {
		if mask[i] != '?' {
			positions = append(positions, []byte{mask[i]})
			continue
		}

		if i+1 >= len(mask) {
			return nil, errors.Wrapf(ErrInvalidMask, "dangling '?' in %q", mask)
		}

		set, err := expandCharset(mask[i:i+2], custom)
		if err != nil {
			return nil, err
		}

		positions = append(positions, set)
		i++
	}

	return positions, nil
}

// Keyspace returns the product of all position charset sizes.
func (m *Mask) Keyspace() uint64 { return m.keyspace }

// Amplifier is 1; masks are enumerated directly.
func (m *Mask) Amplifier() uint64 { return 1 }

// Length returns the candidate length.
func (m *Mask) Length() int { return len(m.charsets) }

// Seek moves to candidate index offset.
func (m *Mask) Seek(offset uint64) error {
	if offset > m.keyspace {
		return errors.Wrapf(ErrSeekOutOfRange, "mask offset %d of %d", offset, m.keyspace)
	}

	m.pos = offset

	return nil
}

// At decodes the candidate at index. The rightmost position changes fastest.
func (m *Mask) At(index uint64) []byte {
	out := make([]byte, len(m.charsets))

	for i := len(m.charsets) - 1; i >= 0; i-- {
		n := uint64(len(m.charsets[i]))
		out[i] = m.charsets[i][index%n]
		index /= n
	}

	return out
}

// NextBatch returns up to n candidates from the current position.
func (m *Mask) NextBatch(n uint64) ([][]byte, error) {
	n = min(n, m.keyspace-m.pos)
	out := make([][]byte, 0, n)

	for range n {
		out = append(out, m.At(m.pos))
		m.pos++
	}

	return out, nil
}

// Close is a no-op.
func (m *Mask) Close() error { return nil }

// Describe returns the mask text.
func (m *Mask) Describe() string { return m.mask }

// MaskLine is one entry of a mask file: optional custom charsets followed by the mask.
type MaskLine struct {
	Charsets []string
	Mask     string
}

// ParseMaskLine parses "cs1,cs2,...,mask". A literal comma is written as "\,".
func ParseMaskLine(line string) (MaskLine, error) {
	var (
		fields []string
		cur    strings.Builder
	)

	for i := 0; i < len(line); i++ {
		switch {
		case line[i] == '\\' && i+1 < len(line) && line[i+1] == ',':
			cur.WriteByte(',')
			i++
		case line[i] == ',':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(line[i])
		}
	}

	fields = append(fields, cur.String())

	if len(fields)-1 > maxCustomCharsets {
		return MaskLine{}, errors.Wrapf(ErrInvalidMask, "too many charsets in %q", line)
	}

	ml := MaskLine{Charsets: fields[:len(fields)-1], Mask: fields[len(fields)-1]}
	if ml.Mask == "" {
		return MaskLine{}, errors.Wrapf(ErrInvalidMask, "empty mask in %q", line)
	}

	return ml, nil
}

// ParseMaskFile parses every non-empty, non-comment line of a mask file.
func ParseMaskFile(lines []string) ([]MaskLine, error) {
	out := make([]MaskLine, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ml, err := ParseMaskLine(line)
		if err != nil {
			return nil, err
		}

		out = append(out, ml)
	}

	return out, nil
}
