package text

// Source is the pending text of a session: a FIFO of unconsumed pieces.
// Text appended later is never chunked ahead of text appended earlier, and
// a frame never spans two appended pieces.
//
// Source is not safe for concurrent use.
type Source struct {
	pieces []piece
	total  int // bytes appended since creation or Reset
	queued int // bytes not yet cut
}

type piece struct {
	text string
	base int // offset of text[0]
	off  int // bytes already cut
}

// Append queues s behind any pending text. Empty text is a no-op.
func (s *Source) Append(t string) {
	if t == "" {
		return
	}
	s.pieces = append(s.pieces, piece{text: t, base: s.total})
	s.total += len(t)
	s.queued += len(t)
}

// Next cuts the next frame of at most max bytes. It returns false when no
// text is pending.
func (s *Source) Next(max int) (Frame, bool) {
	if len(s.pieces) == 0 {
		return Frame{}, false
	}
	p := &s.pieces[0]
	rest := p.text[p.off:]
	n := Cut(rest, max)
	f := Frame{Offset: p.base + p.off, Text: rest[:n]}
	p.off += n
	s.queued -= n
	if p.off == len(p.text) {
		s.pieces[0] = piece{}
		s.pieces = s.pieces[1:]
	}
	return f, true
}

// Empty reports whether no text is pending.
func (s *Source) Empty() bool { return len(s.pieces) == 0 }

// Pending returns the number of bytes not yet cut into frames.
func (s *Source) Pending() int { return s.queued }

// Total returns the number of bytes appended since creation or Reset.
func (s *Source) Total() int { return s.total }

// Reset discards pending text and restarts offsets at zero.
func (s *Source) Reset() {
	s.pieces = nil
	s.total = 0
	s.queued = 0
}
