// Package runner drives a whole attack: it loads the hash list, walks the wordlist or mask segments and runs
// one worker per device for each of them.
package runner

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/duke-git/lancet/v2/strutil"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/candidates"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/cserrors"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/dispatch"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/hashlist"
	"github.com/unclesp1d3r/cipherswarmdispatch/lib/status"
)

const maxCustomCharsets = 4

// Attack describes what to run: a hash list plus one or more candidate segments.
type Attack struct {
	Mode           int      // Mode is status.AttackModeDictionary, AttackModeCombinator or AttackModeMask.
	HashFile       string   // HashFile is the hash list path.
	HashType       string   // HashType is a format name or hash mode number.
	Username       bool     // Username expects a "user:" prefix on every hash line.
	HexSalt        bool     // HexSalt decodes salts from hex.
	Wordlists      []string // Wordlists are the dictionary segments, or the left side of a combinator attack.
	RightWordlist  string   // RightWordlist is the right side of a combinator attack.
	Masks          []string // Masks are mask segments, each optionally prefixed by "cs1,cs2,...,".
	CustomCharsets []string // CustomCharsets are ?1..?4 for masks that carry none of their own.
	Skip           uint64
	Limit          uint64
	PwMin          int
	PwMax          int
}

// Segments returns the number of outer-loop iterations of the attack.
func (a *Attack) Segments() int {
	if a.Mode == status.AttackModeMask {
		return len(a.Masks)
	}

	return len(a.Wordlists)
}

// Parser returns the hash line parser for the attack's hash type.
func (a *Attack) Parser() (*hashlist.HexParser, error) {
	f, err := hashlist.LookupFormat(a.HashType)
	if err != nil {
		return nil, err
	}

	p := hashlist.NewHexParser(f)
	p.WithUsername = a.Username
	p.HexSalt = a.HexSalt

	return p, nil
}

// Filter returns the host-side length filter.
func (a *Attack) Filter() candidates.Filter {
	return candidates.Filter{PwMin: a.PwMin, PwMax: a.PwMax}
}

// Validate performs the pre-flight checks. Every failure is a *cserrors.FatalConfigError and nothing has been
// started when it is returned.
func (a *Attack) Validate() error {
	if strutil.IsBlank(a.HashFile) {
		return cserrors.NewFatalConfigError("hash-file", "no hash file given", "pass the hash list as first argument")
	}

	if !fileutil.IsExist(a.HashFile) {
		return cserrors.NewFatalConfigError("hash-file", fmt.Sprintf("%q does not exist", a.HashFile), "")
	}

	if _, err := hashlist.LookupFormat(a.HashType); err != nil {
		return cserrors.NewFatalConfigError("hash-type", fmt.Sprintf("unknown hash type %q", a.HashType),
			"use a format name such as md5 or its hash mode number")
	}

	if err := a.validateSegments(); err != nil {
		return err
	}

	if a.PwMin < 0 || (a.PwMax > 0 && a.PwMin > a.PwMax) {
		return cserrors.NewFatalConfigError("pw-min", fmt.Sprintf("pw-min %d exceeds pw-max %d", a.PwMin, a.PwMax),
			"")
	}

	if a.Limit > 0 && a.Limit <= a.Skip {
		return cserrors.NewFatalConfigError("limit", fmt.Sprintf("limit %d must be greater than skip %d",
			a.Limit, a.Skip), "")
	}

	if (a.Skip > 0 || a.Limit > 0) && a.Segments() > 1 {
		return cserrors.NewFatalConfigError("skip", "skip and limit are not supported with multiple wordlists or masks",
			"run each wordlist or mask separately")
	}

	return nil
}

func (a *Attack) validateSegments() error {
	switch a.Mode {
	case status.AttackModeDictionary, status.AttackModeCombinator:
		if len(a.Wordlists) == 0 {
			return cserrors.NewFatalConfigError("wordlist", "no wordlist given", "")
		}

		for _, w := range a.Wordlists {
			if !fileutil.IsExist(w) {
				return cserrors.NewFatalConfigError("wordlist", fmt.Sprintf("%q does not exist", w), "")
			}
		}

		if a.Mode == status.AttackModeCombinator {
			if strutil.IsBlank(a.RightWordlist) || !fileutil.IsExist(a.RightWordlist) {
				return cserrors.NewFatalConfigError("right-wordlist", "combinator attack needs a right wordlist", "")
			}
		}
	case status.AttackModeMask:
		if len(a.Masks) == 0 {
			return cserrors.NewFatalConfigError("mask", "no mask given", "")
		}

		if len(a.CustomCharsets) > maxCustomCharsets {
			return cserrors.NewFatalConfigError("custom-charset",
				fmt.Sprintf("at most %d custom charsets", maxCustomCharsets), "")
		}

		for _, m := range a.Masks {
			if _, err := a.mask(m); err != nil {
				return cserrors.NewFatalConfigError("mask", err.Error(), "")
			}
		}
	default:
		return cserrors.NewFatalConfigError("attack-mode", fmt.Sprintf("unsupported attack mode %d", a.Mode),
			"use 0 (dictionary), 1 (combinator) or 3 (mask)")
	}

	return nil
}

func (a *Attack) mask(line string) (*candidates.Mask, error) {
	ml, err := candidates.ParseMaskLine(line)
	if err != nil {
		return nil, err
	}

	charsets := ml.Charsets
	if len(charsets) == 0 {
		charsets = a.CustomCharsets
	}

	return candidates.NewMask(ml.Mask, charsets)
}

// segment opens the candidate source of segment pos. Skip and limit apply only to single-segment attacks,
// which Validate enforces.
func (a *Attack) segment(pos int) (dispatch.Segment, error) {
	seg := dispatch.Segment{Skip: a.Skip, Limit: a.Limit}

	switch a.Mode {
	case status.AttackModeDictionary:
		w, err := candidates.NewWordlist(a.Wordlists[pos])
		if err != nil {
			return seg, err
		}

		seg.Source = w
		seg.DictPos = uint32(pos) //nolint:gosec // segment counts are small
	case status.AttackModeCombinator:
		right, err := candidates.ReadLines(a.RightWordlist)
		if err != nil {
			return seg, err
		}

		left, err := candidates.NewWordlist(a.Wordlists[pos])
		if err != nil {
			return seg, err
		}

		c, err := candidates.NewCombinator(left, right, filepath.Base(a.RightWordlist))
		if err != nil {
			_ = left.Close()

			return seg, err
		}

		seg.Source = c
		seg.DictPos = uint32(pos) //nolint:gosec // segment counts are small
	case status.AttackModeMask:
		m, err := a.mask(a.Masks[pos])
		if err != nil {
			return seg, err
		}

		seg.Source = m
		seg.MaskPos = uint32(pos) //nolint:gosec // segment counts are small
	default:
		return seg, errors.Newf("unsupported attack mode %d", a.Mode)
	}

	return seg, nil
}

// ExpandMasks replaces every argument naming an existing mask file with the file's non-empty, non-comment
// lines. Other arguments are masks themselves.
func ExpandMasks(args []string) ([]string, error) {
	var masks []string

	for _, arg := range args {
		if !fileutil.IsExist(arg) {
			masks = append(masks, arg)

			continue
		}

		lines, err := fileutil.ReadFileByLine(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "reading mask file %q", arg)
		}

		for _, line := range lines {
			line = strings.TrimRight(line, "\r")
			if strutil.IsBlank(line) || strings.HasPrefix(line, "#") {
				continue
			}

			masks = append(masks, line)
		}
	}

	return masks, nil
}

// startPos returns the segment a checkpoint resumes in.
func (a *Attack) startPos(dictPos, maskPos uint32) int {
	if a.Mode == status.AttackModeMask {
		return int(maskPos)
	}

	return int(dictPos)
}

// mod names the right-hand side of a combinator attack for status output.
func (a *Attack) mod() string {
	if a.Mode == status.AttackModeCombinator {
		return filepath.Base(a.RightWordlist)
	}

	return ""
}
