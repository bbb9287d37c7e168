package text

import (
	"regexp"
	"strings"
)

var markRegex = regexp.MustCompile(`<mark\s+name\s*=\s*["']([^"']*)["']\s*/>`)

// Mark is an SSML mark tag found in a text.
type Mark struct {
	Span
	Name string
}

// HasMarks reports whether s contains a mark tag.
func HasMarks(s string) bool {
	return strings.Contains(s, "<mark") && markRegex.MatchString(s)
}

// MaskMarks returns s with every mark tag blanked out by spaces of equal
// length, so byte offsets are preserved, together with the tags found.
func MaskMarks(s string) (string, []Mark) {
	idx := markRegex.FindAllStringSubmatchIndex(s, -1)
	if len(idx) == 0 {
		return s, nil
	}

	masked := []byte(s)
	marks := make([]Mark, 0, len(idx))
	for _, m := range idx {
		for i := m[0]; i < m[1]; i++ {
			masked[i] = ' '
		}
		marks = append(marks, Mark{
			Span: Span{Start: m[0], End: m[1]},
			Name: s[m[2]:m[3]],
		})
	}
	return string(masked), marks
}
