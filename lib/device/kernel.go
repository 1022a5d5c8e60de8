package device

import "context"

// Batch is one filtered work unit handed to a kernel.
type Batch struct {
	Candidates [][]byte
}

// Match reports one candidate that reproduced a target digest.
type Match struct {
	SaltPos        int // SaltPos is the salt the digest belongs to.
	DigestIndex    int // DigestIndex is the digest's index within the salt.
	CandidateIndex int // CandidateIndex indexes Batch.Candidates.
}

// Kernel hashes a batch against the target set. Submit may block; a returned error is a hard device failure.
type Kernel interface {
	Submit(ctx context.Context, b Batch) ([]Match, error)
}

// KernelFunc adapts a function to the Kernel interface.
type KernelFunc func(ctx context.Context, b Batch) ([]Match, error)

// Submit calls f.
func (f KernelFunc) Submit(ctx context.Context, b Batch) ([]Match, error) { return f(ctx, b) }
