package text

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize converts s to NFC and folds CRLF line endings, so engines see
// precomposed characters and offsets stay stable across platforms.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if norm.NFC.IsNormalString(s) {
		return s
	}
	return norm.NFC.String(s)
}
