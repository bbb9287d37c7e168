package text

import (
	"strings"
	"unicode"
)

// Span is a byte range of a text.
type Span struct {
	Start int
	End   int
}

// Len returns the span length in bytes.
func (s Span) Len() int { return s.End - s.Start }

// Words returns the byte spans of whitespace separated words in s.
func Words(s string) []Span {
	var spans []Span
	start := -1
	for i, r := range s {
		if unicode.IsSpace(r) {
			if start >= 0 {
				spans = append(spans, Span{Start: start, End: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(s)})
	}
	return spans
}

// Sentences returns the byte spans of sentences in s. Leading whitespace is
// excluded from each span. Text without a sentence end forms one sentence.
func Sentences(s string) []Span {
	runes := make([]rune, 0, len(s))
	offs := make([]int, 0, len(s)+1)
	for i, r := range s {
		runes = append(runes, r)
		offs = append(offs, i)
	}
	offs = append(offs, len(s))

	var bounds []Span
	lastStart := skipSpace(runes, 0)

	for i := lastStart; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		punctEnd := i + 1
		for punctEnd < len(runes) && isTerminal(runes[punctEnd]) {
			punctEnd++
		}
		if punctEnd < len(runes) && isCloser(runes[punctEnd]) {
			punctEnd++
		}
		if !isSentenceEnd(runes, i) {
			continue
		}
		bounds = append(bounds, Span{Start: lastStart, End: punctEnd})
		lastStart = skipSpace(runes, punctEnd)
		i = lastStart - 1
	}

	if lastStart < len(runes) && strings.TrimSpace(string(runes[lastStart:])) != "" {
		bounds = append(bounds, Span{Start: lastStart, End: trimRight(runes, len(runes))})
	}

	// rune positions to byte positions
	for i := range bounds {
		bounds[i].Start = offs[bounds[i].Start]
		bounds[i].End = offs[bounds[i].End]
	}
	return bounds
}

// isSentenceEnd reports whether the terminal punctuation at pos ends a
// sentence rather than an abbreviation, decimal number or ellipsis.
func isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	if punct == '.' {
		start := pos - 1
		for start >= 0 && !unicode.IsSpace(runes[start]) {
			start--
		}
		word := strings.ToLower(string(runes[start+1 : pos]))
		if abbreviations[word] {
			return false
		}
		// multi-part abbreviations such as "Ph.D." or "U.S."
		if strings.Contains(word, ".") {
			return false
		}
		if pos+1 < len(runes) {
			if unicode.IsDigit(runes[pos+1]) && pos > 0 && unicode.IsDigit(runes[pos-1]) {
				return false
			}
			if runes[pos+1] == '.' {
				return false
			}
		}
	}

	next := pos + 1
	for next < len(runes) && (isTerminal(runes[next]) || isCloser(runes[next])) {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[next]) {
		return false
	}
	next = skipSpace(runes, next)
	if next >= len(runes) {
		return true
	}
	if unicode.IsUpper(runes[next]) || unicode.IsDigit(runes[next]) {
		return true
	}
	return punct == '!' || punct == '?'
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool { return r == '"' || r == '\'' || r == ')' || r == ']' }

func skipSpace(runes []rune, i int) int {
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

func trimRight(runes []rune, end int) int {
	for end > 0 && unicode.IsSpace(runes[end-1]) {
		end--
	}
	return end
}

var abbreviations = makeAbbreviationMap()

// makeAbbreviationMap creates a map of common abbreviations.
func makeAbbreviationMap() map[string]bool {
	abbrevs := []string{
		"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st",
		"inc", "ltd", "co", "corp", "llc",
		"etc", "vs", "cf", "al",
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept", "oct", "nov", "dec",
		"mon", "tue", "wed", "thu", "fri", "sat", "sun",
		"rd", "ave", "blvd", "ln", "ct",
		"ft", "lbs", "oz", "kg", "km", "cm", "mm", "mi", "yd",
		"hr", "hrs", "min", "mins", "sec", "secs",
	}

	m := make(map[string]bool, len(abbrevs))
	for _, abbrev := range abbrevs {
		m[abbrev] = true
	}
	return m
}
