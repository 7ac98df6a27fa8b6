package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex sha256 of content.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ETag is the strong entity tag for content.
func ETag(content []byte) string {
	return `"` + HashContent(content) + `"`
}
