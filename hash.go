package otaextract

import (
	"crypto/sha256"
	"hash"
)

// Hasher accumulates a SHA-256 digest over bytes that may arrive in
// several separate spans, e.g. the blocks of a multi-extent read.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a ready-to-use incremental SHA-256 accumulator.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Update feeds more bytes into the running digest.
func (h *Hasher) Update(p []byte) {
	h.h.Write(p)
}

// Write implements io.Writer so a Hasher can be used directly as an
// io.Copy/io.CopyN destination.
func (h *Hasher) Write(p []byte) (int, error) {
	h.Update(p)
	return len(p), nil
}

// Finalize returns the 32-byte SHA-256 digest of everything written so far.
// The Hasher must not be reused afterwards.
func (h *Hasher) Finalize() [32]byte {
	var sum [32]byte
	copy(sum[:], h.h.Sum(nil))
	return sum
}

// Sum256 is a convenience wrapper for hashing a single byte slice.
func Sum256(p []byte) [32]byte {
	return sha256.Sum256(p)
}
