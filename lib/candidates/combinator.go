package candidates

import (
	"bytes"

	"github.com/cockroachdb/errors"
)

// Combinator concatenates every word of a left wordlist with every word of a right list. The left list is the
// base keyspace and the right list is the amplifier.
type Combinator struct {
	left      Source
	right     [][]byte
	rightName string
}

// NewCombinator combines left with an in-memory right list named rightName.
func NewCombinator(left Source, right [][]byte, rightName string) (*Combinator, error) {
	if len(right) == 0 {
		return nil, errors.New("combinator right wordlist is empty")
	}

	return &Combinator{left: left, right: right, rightName: rightName}, nil
}

// Keyspace returns the left keyspace.
func (c *Combinator) Keyspace() uint64 { return c.left.Keyspace() }

// Amplifier returns the right list size.
func (c *Combinator) Amplifier() uint64 { return uint64(len(c.right)) }

// Seek positions the left stream.
func (c *Combinator) Seek(offset uint64) error { return c.left.Seek(offset) }

// NextBatch reads n left words and expands each against the whole right list.
func (c *Combinator) NextBatch(n uint64) ([][]byte, error) {
	base, err := c.left.NextBatch(n)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, 0, len(base)*len(c.right))

	for _, l := range base {
		for _, r := range c.right {
			out = append(out, bytes.Join([][]byte{l, r}, nil))
		}
	}

	return out, nil
}

// Close closes the left stream.
func (c *Combinator) Close() error { return c.left.Close() }

// Describe names both sides.
func (c *Combinator) Describe() string { return c.left.Describe() + " + " + c.rightName }
