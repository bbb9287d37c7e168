package spin

import (
	"encoding/binary"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/text"
)

type slotState int

const (
	slotFree slotState = iota
	slotAssigned
	slotSynthesizing
	slotReady
	slotPlaying
)

func (s slotState) String() string {
	switch s {
	case slotFree:
		return "free"
	case slotAssigned:
		return "assigned"
	case slotSynthesizing:
		return "synthesizing"
	case slotReady:
		return "ready"
	case slotPlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// slot holds one frame and its synthesized audio. State changes happen under
// the session mutex. While a slot is synthesizing the worker owns pcm and
// events; from ready onward the consumer does.
type slot struct {
	state slotState
	gen   uint64 // session generation the frame was assigned in
	frame text.Frame

	pcm    []byte
	events []tts.Event // terminated by one EventEnd

	pos  int // read cursor into pcm
	next int // first event not yet passed by pos
}

func (s *slot) assign(f text.Frame, gen uint64) {
	s.state = slotAssigned
	s.gen = gen
	s.frame = f
}

// recycle returns the slot to free, keeping its buffers for reuse.
func (s *slot) recycle() {
	s.state = slotFree
	s.frame = text.Frame{}
	s.pcm = s.pcm[:0]
	s.events = s.events[:0]
	s.pos = 0
	s.next = 0
}

// drained reports whether every byte has been read.
func (s *slot) drained() bool {
	return s.pos >= len(s.pcm)
}

// collect returns an engine callback appending into the slot. frameSize is
// the byte size of one sample.
func (s *slot) collect(frameSize int) engines.Callback {
	ended := false
	return func(samples []int16, events []engines.RawEvent) {
		for _, v := range samples {
			s.pcm = binary.LittleEndian.AppendUint16(s.pcm, uint16(v))
		}
		if ended {
			return
		}
		for _, ev := range events {
			if ev.Type == engines.RawEnd {
				ended = true
				return
			}
			s.events = append(s.events, s.event(ev, frameSize))
		}
	}
}

// event converts an engine event. The name is copied since the engine only
// keeps it valid for the duration of the callback.
func (s *slot) event(ev engines.RawEvent, frameSize int) tts.Event {
	pos := ev.Position - 1
	if pos < 0 {
		pos = 0
	}
	if pos > s.frame.Len() {
		pos = s.frame.Len()
	}
	return tts.Event{
		Type:        ev.Type.EventType(),
		TextOffset:  s.frame.Offset + pos,
		Length:      ev.Length,
		ID:          ev.ID,
		Name:        string(ev.Name),
		AudioOffset: ev.Sample * frameSize,
	}
}

// seal orders audio offsets, clamps them to the audio and appends the end
// sentinel.
func (s *slot) seal() {
	last := 0
	for i := range s.events {
		off := s.events[i].AudioOffset
		if off < last {
			off = last
		}
		if off > len(s.pcm) {
			off = len(s.pcm)
		}
		s.events[i].AudioOffset = off
		last = off
	}
	s.events = append(s.events, tts.Event{
		Type:        tts.EventEnd,
		TextOffset:  s.frame.End(),
		AudioOffset: len(s.pcm),
	})
}

// fail discards partial output, leaving an empty slot with only the end
// sentinel.
func (s *slot) fail() {
	s.pcm = s.pcm[:0]
	s.events = s.events[:0]
	s.seal()
}

// word returns the text an event covers, or "" when it falls outside the
// frame.
func (s *slot) word(ev tts.Event) string {
	start := ev.TextOffset - s.frame.Offset
	end := start + ev.Length
	if start < 0 || end > s.frame.Len() || start > end {
		return ""
	}
	return s.frame.Text[start:end]
}
