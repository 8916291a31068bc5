// Package textkey derives stable cache keys from text content.
package textkey

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key hashes parts into a hex digest. Parts are length-prefixed so that
// ("ab", "c") and ("a", "bc") produce different keys.
func Key(parts ...string) string {
	h := sha256.New()
	var prefix [8]byte
	for _, p := range parts {
		n := uint64(len(p))
		for i := range prefix {
			prefix[i] = byte(n >> (8 * i))
		}
		h.Write(prefix[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Short returns the first 16 hex characters of Key, for logs.
func Short(parts ...string) string {
	return Key(parts...)[:16]
}
