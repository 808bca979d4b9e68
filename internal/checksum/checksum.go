// Package checksum fingerprints claims files so unchanged inputs can be
// skipped on re-render.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

const shortLen = 12

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Combine digests several sums into one. Order matters.
func Combine(sums ...string) string {
	h := sha256.New()
	for _, s := range sums {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Short truncates a digest for log lines and UI labels.
func Short(sum string) string {
	if len(sum) <= shortLen {
		return sum
	}
	return sum[:shortLen]
}
