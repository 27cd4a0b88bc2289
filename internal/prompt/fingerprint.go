package prompt

import (
	"strconv"
	"unicode/utf16"
)

// Fingerprint returns a short order-sensitive hash of s used to spot
// duplicate records. Equal inputs always give equal tokens; different inputs
// may collide.
//
// The hash runs h = h*31 + c over UTF-16 code units with int32 wraparound
// and renders |h| in base 36.
func Fingerprint(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = h*31 + int32(c)
	}

	v := int64(h)
	if v < 0 {
		v = -v
	}

	return strconv.FormatInt(v, 36)
}

func recordKey(title, content string) string {
	return Fingerprint(title + content)
}
