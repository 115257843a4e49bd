// Package hash derives the short endpoint identities stored on edge records.
package hash

import (
	"crypto/sha256"
	"encoding/base64"
)

const (
	// HostLength is the width of a host identity.
	HostLength = 6
	// URLLength is the width of a URL identity: a path part followed by the host part.
	URLLength = 2 * HostLength
)

// URL returns the identity of a normalized URL. The trailing half is the
// host identity so that edges of one host share a suffix.
func URL(normalized, host string) string {
	return digest(normalized) + Host(host)
}

// Host returns the identity of a hostname.
func Host(host string) string {
	return digest(host)
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:HostLength]
}
