package hashlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
)

func TestLookupFormat(t *testing.T) {
	tests := []struct {
		input    string
		wantMode int
		wantErr  bool
	}{
		{"md5", ModeMD5, false},
		{"0", ModeMD5, false},
		{"SHA1", ModeSHA1, false},
		{" 1000 ", ModeNTLM, false},
		{"sha3-256", ModeSHA3_256, false},
		{"sha256(pass.salt)", ModeSHA256Salt, false},
		{"99999", 0, true},
		{"bcrypt", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := LookupFormat(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnknownFormat)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, f.Mode)
		})
	}
}

func TestFormats_ReturnsCopy(t *testing.T) {
	fs := Formats()
	fs[0].Name = "changed"

	assert.Equal(t, "md5", Formats()[0].Name)
}

func TestHexParser_Parse(t *testing.T) {
	md5, _ := LookupFormat("md5")
	salted, _ := LookupFormat("md5(pass.salt)")

	tests := []struct {
		name       string
		format     Format
		username   bool
		hexSalt    bool
		line       string
		wantReason string
		wantSalt   string
		wantUser   string
	}{
		{name: "plain", format: md5, line: md5Hello},
		{name: "uppercase hex", format: md5, line: strings.ToUpper(md5Hello)},
		{name: "short", format: md5, line: "abcd", wantReason: "token length exception"},
		{name: "bad hex", format: md5, line: strings.Repeat("zz", 16), wantReason: "token encoding exception"},
		{name: "unexpected salt", format: md5, line: md5Hello + ":x", wantReason: "token length exception"},
		{name: "salted", format: salted, line: md5Hello + ":pepper", wantSalt: "pepper"},
		{name: "salt with colon", format: salted, line: md5Hello + ":a:b", wantSalt: "a:b"},
		{name: "empty salt", format: salted, line: md5Hello + ":"},
		{name: "missing salt", format: salted, line: md5Hello, wantReason: "separator unmatched"},
		{name: "hex salt", format: salted, hexSalt: true, line: md5Hello + ":414243", wantSalt: "ABC"},
		{name: "bad hex salt", format: salted, hexSalt: true, line: md5Hello + ":4g", wantReason: "salt-value exception"},
		{name: "salt too long", format: salted, line: md5Hello + ":" + strings.Repeat("s", 257), wantReason: "salt-length exception"},
		{name: "username", format: md5, username: true, line: "alice:" + md5Hello, wantUser: "alice"},
		{name: "username missing", format: md5, username: true, line: md5Hello, wantReason: "separator unmatched"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewHexParser(tt.format)
			p.WithUsername = tt.username
			p.HexSalt = tt.hexSalt

			rec, err := p.Parse(tt.line)
			if tt.wantReason != "" {
				var pe *cserrors.ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, tt.wantReason, pe.Reason)

				return
			}

			require.NoError(t, err)
			assert.Len(t, rec.Digest, tt.format.DigestSize)
			assert.Equal(t, tt.wantSalt, string(rec.Salt))
			assert.Equal(t, tt.wantUser, rec.User)
		})
	}
}
