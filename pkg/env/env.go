// Package env reads process environment variables that live outside the
// typed config, such as platform-injected values.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}

// Lookup reports the trimmed value of key and whether it is non-blank.
func Lookup(key string) (string, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	return val, val != ""
}

// First returns the first non-blank value among keys.
func First(keys ...string) (string, bool) {
	for _, key := range keys {
		if val, ok := Lookup(key); ok {
			return val, true
		}
	}
	return "", false
}
