package edge

import (
	"fmt"
	"unicode/utf16"
)

// IDLength is the width of an edge id: two 12 character endpoint ids and an
// 8 digit hex link hash.
const IDLength = 12 + 12 + 8

// ID returns the deterministic edge id. Identical links on one page collapse
// to the same id.
func ID(sourceID, targetID, name, text, rel string) string {
	return sourceID + targetID + LinkHash(name+text+rel)
}

// LinkHash returns the 31-multiplier string hash over UTF-16 code units as
// zero padded lowercase hex. Stored ids depend on this exact function.
func LinkHash(s string) string {
	var h uint32
	for _, c := range utf16.Encode([]rune(s)) {
		h = 31*h + uint32(c)
	}
	return fmt.Sprintf("%08x", h)
}
