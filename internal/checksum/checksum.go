// Package checksum provides the SHA-256 digests used for document versions and task ids.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short returns the first n hex characters of the SHA-256 digest of data.
// n is clamped to the full digest length.
func Short(data []byte, n int) string {
	full := Sum(data)
	if n <= 0 || n > len(full) {
		return full
	}
	return full[:n]
}
