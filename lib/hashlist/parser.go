package hashlist

import (
	"encoding/hex"
	"strings"

	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
)

const separator = ':'

// Record is one parsed hash line before deduplication.
type Record struct {
	Digest     []byte // Digest is the fixed-size binary digest.
	Salt       []byte // Salt is the raw salt; empty for unsalted formats.
	Iterations uint32 // Iterations is the salt iteration count; zero for single-round formats.
	User       string // User is the optional username prefix.
	Hash       string // Hash is the canonical hash text (the line without the username).
	Aux        []byte // Aux carries format-specific extra salt payload.
}

// Parser turns one hash line into a Record.
type Parser interface {
	Parse(line string) (Record, error)
	Format() Format
}

// HexParser parses the generic "[user:]hexdigest[:salt]" grammar shared by the raw and simple salted formats.
type HexParser struct {
	format       Format
	WithUsername bool // WithUsername expects a "user:" prefix on every line.
	HexSalt      bool // HexSalt decodes the salt field from hex.
}

// NewHexParser returns a parser for the given format.
func NewHexParser(f Format) *HexParser {
	return &HexParser{format: f}
}

// Format returns the format this parser accepts.
func (p *HexParser) Format() Format {
	return p.format
}

// Parse validates and decodes a single hash line.
func (p *HexParser) Parse(line string) (Record, error) {
	rec := Record{}
	rest := line

	if p.WithUsername {
		idx := strings.IndexByte(rest, separator)
		if idx < 0 {
			return Record{}, &cserrors.ParseError{Line: line, Reason: "separator unmatched"}
		}

		rec.User = rest[:idx]
		rest = rest[idx+1:]
	}

	rec.Hash = rest
	hashPart := rest

	if p.format.Salted {
		idx := strings.IndexByte(rest, separator)
		if idx < 0 {
			return Record{}, &cserrors.ParseError{Line: line, Reason: "separator unmatched"}
		}

		hashPart = rest[:idx]
		saltPart := rest[idx+1:]

		salt, err := p.decodeSalt(saltPart)
		if err != nil {
			return Record{}, &cserrors.ParseError{Line: line, Reason: "salt-value exception"}
		}

		if len(salt) > p.format.MaxSaltLen {
			return Record{}, &cserrors.ParseError{Line: line, Reason: "salt-length exception"}
		}

		rec.Salt = salt
	} else if strings.IndexByte(rest, separator) >= 0 {
		return Record{}, &cserrors.ParseError{Line: line, Reason: "token length exception"}
	}

	if len(hashPart) != p.format.DigestSize*2 {
		return Record{}, &cserrors.ParseError{Line: line, Reason: "token length exception"}
	}

	digest, err := hex.DecodeString(hashPart)
	if err != nil {
		return Record{}, &cserrors.ParseError{Line: line, Reason: "token encoding exception"}
	}

	rec.Digest = digest

	return rec, nil
}

func (p *HexParser) decodeSalt(s string) ([]byte, error) {
	if p.HexSalt {
		return hex.DecodeString(s)
	}

	return []byte(s), nil
}
