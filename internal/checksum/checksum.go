// Package checksum fingerprints catalog files and exported notes so that
// unchanged content is not applied or written again.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// shortLen is how many hex digits Short keeps for log lines.
const shortLen = 12

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Short abbreviates a digest for logging.
func Short(sum string) string {
	if len(sum) <= shortLen {
		return sum
	}
	return sum[:shortLen]
}
