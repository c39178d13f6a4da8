package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// DataHash fingerprints the numeric inputs of a fit.
type DataHash Hash

func (h DataHash) String() string { return Hash(h).String() }

// ComputeDataHash hashes labelled float vectors bit-exactly. The label and the
// vector length are mixed in so that ([1], [2,3]) and ([1,2], [3]) differ.
func ComputeDataHash(label string, vectors ...[]float64) DataHash {
	h := sha256.New()
	h.Write([]byte(label))
	var buf [8]byte
	for _, v := range vectors {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(v)))
		h.Write(buf[:])
		for _, x := range v {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
			h.Write(buf[:])
		}
	}
	return DataHash(hex.EncodeToString(h.Sum(nil)))
}
