// Package text splits caller text into bounded frames for synthesis.
package text

import "unicode/utf8"

// DefaultFrameSize is the maximum frame length in bytes.
const DefaultFrameSize = 128

// Frame is a bounded piece of caller text queued for one synthesis call.
type Frame struct {
	// Offset is the byte offset of Text in the text written to the
	// session since it was opened or last reset.
	Offset int
	Text   string
}

// Len returns the frame length in bytes.
func (f Frame) Len() int { return len(f.Text) }

// End returns the offset just past the frame.
func (f Frame) End() int { return f.Offset + len(f.Text) }

// IsSpace reports whether b is ASCII whitespace.
func IsSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Cut returns the length of the next frame at the start of s.
//
// Whitespace carried over from the previous cut does not count against max,
// so "Hello world" with max 5 yields "Hello" and " world". Otherwise the cut
// is placed on the last whitespace byte inside the window, falling back to the
// last code point boundary at or before the window edge. Cut always returns
// a positive length for non-empty s.
//
// Up to max-1 leading whitespace bytes may precede the max bytes of the
// window, so a frame is never longer than 2*max-1 bytes unless it holds a
// single code point wider than max.
func Cut(s string, max int) int {
	if max < 1 {
		max = 1
	}
	if len(s) <= max {
		return len(s)
	}

	lead := 0
	for lead < max && IsSpace(s[lead]) {
		lead++
	}
	if lead == max {
		return max
	}

	end := lead + max
	if end >= len(s) {
		return len(s)
	}

	for i := end; i > lead; i-- {
		if IsSpace(s[i]) {
			return i
		}
	}

	i := end
	for i > lead && !utf8.RuneStart(s[i]) {
		i--
	}
	if i == lead {
		// a single code point wider than the window
		_, size := utf8.DecodeRuneInString(s[lead:])
		return lead + size
	}
	return i
}

// Frames splits s into frames of at most max bytes, not counting leading
// whitespace. Empty input yields no frames.
func Frames(s string, max int) []Frame {
	var frames []Frame
	off := 0
	for off < len(s) {
		n := Cut(s[off:], max)
		frames = append(frames, Frame{Offset: off, Text: s[off : off+n]})
		off += n
	}
	return frames
}
