package edge

import "strings"

// Rel flag bits.
const (
	RelMe       = 1 << 0
	RelNofollow = 1 << 1
)

// RelFlags encodes an anchor rel attribute as a bitmask. Only a rel that is
// exactly "me" or exactly "nofollow" (ignoring case and surrounding space)
// sets a bit; multi-token values such as "nofollow ugc" encode to zero.
func RelFlags(rel string) int {
	flags := 0
	switch strings.ToLower(strings.TrimSpace(rel)) {
	case "me":
		flags |= RelMe
	case "nofollow":
		flags |= RelNofollow
	}
	return flags
}
