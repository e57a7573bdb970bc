package digest

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize canonicalizes line endings and trims surrounding whitespace.
// Case and inner spacing are kept, so differing content never collides.
func Normalize(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.TrimSpace(t)
}

// Of returns the SHA-256 hex digest of the normalized text. It is the
// uniqueness key for stored topics.
func Of(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return fmt.Sprintf("%x", sum)
}
