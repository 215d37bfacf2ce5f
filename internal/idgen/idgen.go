// Package idgen mints the random identifiers used across the API.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return b
}

// New returns prefix + "_" + 24 hex chars, e.g. New("ord") -> "ord_3f…".
// 12 random bytes keeps collisions out of reach at any realistic volume.
func New(prefix string) string {
	return prefix + "_" + hex.EncodeToString(randomBytes(12))
}

// Hex returns numBytes of randomness hex-encoded.
func Hex(numBytes int) string {
	return hex.EncodeToString(randomBytes(numBytes))
}

// OrderNumber builds a human-quotable order number like
// "MTR-20260301-4F9A2C". The database's unique constraint backstops the
// random suffix.
func OrderNumber(at time.Time) string {
	return "MTR-" + at.UTC().Format("20060102") + "-" + strings.ToUpper(Hex(3))
}
