// Package candidates provides the restartable candidate streams the dispatcher slices into work units:
// wordlists, masks and wordlist combinations.
package candidates

import (
	"github.com/cockroachdb/errors"
)

// ErrSeekOutOfRange is returned when a seek offset lies beyond the keyspace.
var ErrSeekOutOfRange = errors.New("seek offset beyond keyspace")

// Source is an enumerable candidate stream.
//
// Keyspace is the number of base words. Every base word expands into Amplifier candidates, so NextBatch(n)
// returns up to n*Amplifier candidates. Offsets passed to Seek are in base words.
type Source interface {
	Keyspace() uint64
	Amplifier() uint64
	Seek(offset uint64) error
	NextBatch(n uint64) ([][]byte, error)
	Close() error
	Describe() string
}
