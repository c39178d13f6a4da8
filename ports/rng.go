package ports

import (
	"context"
	"math/rand/v2"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed uint64) (*rand.Rand, error)

	// Stream creates the k-th independent stream derived from a base seed.
	// Streams with the same (seed, k) produce identical sequences.
	Stream(ctx context.Context, seed uint64, k int) (*rand.Rand, error)
}
