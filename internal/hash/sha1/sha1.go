// Package sha1 provides SHA-1 hashing utilities.
package sha1

import (
	"crypto/sha1"
	"encoding/hex"
)

// Hasher implements ingest.Hasher using SHA-1. The 160-bit digest is the
// versioned identity function for canonical URLs: deterministic and
// collision-resistant enough for practical feed volumes.
type Hasher struct{}

// New returns a SHA-1 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
