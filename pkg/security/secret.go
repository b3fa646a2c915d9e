package security

import (
	"crypto/sha256"
	"crypto/subtle"
)

// SecretsEqual compares two shared secrets in constant time regardless of length.
func SecretsEqual(provided, expected string) bool {
	if expected == "" {
		return false
	}
	a := sha256.Sum256([]byte(provided))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
