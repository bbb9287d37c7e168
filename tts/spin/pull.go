package spin

import (
	"io"
	"time"

	"github.com/dgnsrekt/spin/tts"
)

// Chunk is a span of PCM returned by Pull.
type Chunk struct {
	Data []byte

	// Timestamp is the playback position of Data[0] since the session was
	// opened or last reset.
	Timestamp time.Duration
	Duration  time.Duration
}

// Pull returns up to max bytes of audio, blocking until some is ready. It
// returns io.EOF once the session is closed or nothing remains to be played.
//
// In word, sentence and mark modes a chunk never crosses a tracked event:
// its notification is delivered before the chunk starting at the event is
// returned. Notifications are delivered on the calling goroutine.
func (s *Session) Pull(max int) (Chunk, error) {
	c, notes, err := s.locked(max)

	if s.notifier != nil {
		for _, n := range notes {
			s.notifier.Notify(n)
		}
	}
	return c, err
}

func (s *Session) locked(max int) (Chunk, []tts.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pull(max)
}

// pull is called with s.mu held.
func (s *Session) pull(max int) (Chunk, []tts.Notification, error) {
	frameSize := s.d.format.FrameSize()
	if max < frameSize {
		max = frameSize
	}
	max -= max % frameSize

	var notes []tts.Notification
	for {
		if s.closed {
			return Chunk{}, notes, io.EOF
		}

		sl := s.slots[s.out]
		switch {
		case sl.gen != s.gen || sl.state == slotFree:
			if !s.outstanding() {
				return Chunk{}, notes, io.EOF
			}
			s.cond.Wait()
			continue
		case sl.state == slotAssigned || sl.state == slotSynthesizing:
			s.cond.Wait()
			continue
		case sl.state == slotReady:
			sl.state = slotPlaying
			s.logger.Debug("playing", "slot", s.out)
		}

		track := tts.TrackMode(s.track.Load())
		notes = s.passEvents(sl, track, notes)

		if sl.drained() {
			s.logger.Debug("slot drained", "slot", s.out)
			sl.recycle()
			s.out = (s.out + 1) % len(s.slots)
			s.fill()
			if err := s.kick(); err != nil {
				s.logger.Debug("not rescheduled", "err", err)
			}
			continue
		}

		end := sl.pos + min(max, len(sl.pcm)-sl.pos)
		if track != tts.TrackWhole {
			if b := s.boundary(sl, track); b > sl.pos && b < end {
				end = b
			}
		}

		c := Chunk{
			Data:      append([]byte(nil), sl.pcm[sl.pos:end]...),
			Timestamp: s.d.format.Duration(s.played),
			Duration:  s.d.format.Duration(end - sl.pos),
		}
		s.played += end - sl.pos
		sl.pos = end
		return c, notes, nil
	}
}

// passEvents moves the event cursor past every event at or before the read
// cursor, collecting notifications for the tracked ones.
func (s *Session) passEvents(sl *slot, track tts.TrackMode, notes []tts.Notification) []tts.Notification {
	for sl.next < len(sl.events) && sl.events[sl.next].AudioOffset <= sl.pos {
		ev := sl.events[sl.next]
		sl.next++
		if !track.Tracks(ev.Type) {
			continue
		}
		n := tts.Notification{
			Kind:       ev.Type,
			TextOffset: ev.TextOffset,
			Length:     ev.Length,
			Name:       ev.Name,
			ID:         ev.ID,
		}
		if ev.Type != tts.EventMark {
			n.Text = sl.word(ev)
		}
		notes = append(notes, n)
	}
	return notes
}

// boundary returns the audio offset of the next tracked event, or the end
// of the audio when there is none.
func (s *Session) boundary(sl *slot, track tts.TrackMode) int {
	for i := sl.next; i < len(sl.events); i++ {
		if track.Tracks(sl.events[i].Type) {
			return sl.events[i].AudioOffset
		}
	}
	return len(sl.pcm)
}
