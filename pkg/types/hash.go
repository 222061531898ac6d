package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the SHA-256 hash of text, hex-encoded.
//
// The hash is taken over the exact UTF-8 bytes submitted to the embedding
// provider, with no normalization. Stability across runs and platforms is
// what keeps the on-disk cache valid, so this function must never change.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
