package config

import (
	"crypto/sha256"
	"encoding/hex"
)

// digestLength is the number of hex characters kept from the full digest.
// Short enough for a readable filename, long enough that collisions between
// distinct script paths on one machine are not a practical concern.
const digestLength = 16

func truncatedDigest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:digestLength]
}
