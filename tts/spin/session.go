package spin

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/text"
	"github.com/google/uuid"
)

// Notifier receives boundary notifications during playback.
type Notifier interface {
	Notify(tts.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(tts.Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n tts.Notification) { f(n) }

// Session is one speech request: pending text, a ring of slots and voice
// parameters. Text and parameter setters may be called from any goroutine;
// Pull is meant for a single consumer.
type Session struct {
	id       string
	d        *Dispatcher
	notifier Notifier
	logger   *log.Logger

	// Parameters are read by the worker without the session lock and take
	// effect from the next slot.
	pitch atomic.Int32
	rate  atomic.Int32
	gap   atomic.Int32
	track atomic.Int32
	voice atomic.Pointer[string]

	mu     sync.Mutex
	cond   *sync.Cond
	source text.Source
	slots  []*slot
	in     int // next slot to assign
	work   int // next slot to synthesize
	out    int // slot being played
	gen    uint64
	played int // bytes returned since open or reset
	closed bool
	cancel context.CancelFunc // cancels the running pass, if any

	// queued is guarded by the dispatcher mutex.
	queued bool
}

// Open creates a session with parameters p. n may be nil. Sessions opened on
// a closed dispatcher are closed.
func (d *Dispatcher) Open(p tts.Params, n Notifier) *Session {
	id := uuid.NewString()
	s := &Session{
		id:       id,
		d:        d,
		notifier: n,
		logger:   d.logger.With("session", id[:8]),
		slots:    make([]*slot, d.slots),
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.slots {
		s.slots[i] = &slot{}
	}
	s.SetParams(p)

	if !d.register(s) {
		s.closed = true
	}
	s.logger.Debug("opened", "params", s.Params())
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetText queues t behind any text not yet spoken. Empty text is a no-op.
func (s *Session) SetText(t string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tts.ErrSessionClosed
	}
	if t == "" {
		return nil
	}
	s.source.Append(t)
	s.fill()
	s.logger.Debug("text queued", "bytes", len(t), "pending", s.source.Pending())
	return s.kick()
}

// fill cuts pending text into free slots in ring order. Called with s.mu
// held.
func (s *Session) fill() {
	if s.closed {
		return
	}
	for !s.source.Empty() && s.slots[s.in].state == slotFree {
		f, _ := s.source.Next(s.d.frameSize)
		s.slots[s.in].assign(f, s.gen)
		s.in = (s.in + 1) % len(s.slots)
	}
}

// kick schedules the session when its next slot is waiting for the worker.
// Called with s.mu held.
func (s *Session) kick() error {
	if s.slots[s.work].state != slotAssigned {
		return nil
	}
	return s.d.schedule(s)
}

// SetParams replaces all voice parameters. Values are clamped.
func (s *Session) SetParams(p tts.Params) {
	p = p.Clamp()
	s.pitch.Store(int32(p.Pitch))
	s.rate.Store(int32(p.Rate))
	s.gap.Store(int32(p.Gap))
	s.track.Store(int32(p.Track))
	s.voice.Store(&p.Voice)
}

// SetPitch sets the pitch, clamped to 0-99.
func (s *Session) SetPitch(v int) { s.pitch.Store(int32(tts.ClampPitch(v))) }

// SetRate sets the rate in words per minute, clamped to 80-450.
func (s *Session) SetRate(v int) { s.rate.Store(int32(tts.ClampRate(v))) }

// SetGap sets the pause between words in 10ms units, clamped to 0-1000.
func (s *Session) SetGap(v int) { s.gap.Store(int32(tts.ClampGap(v))) }

// SetVoice sets the voice. An empty name selects the default voice.
func (s *Session) SetVoice(v string) {
	p := tts.Params{Voice: v}.Clamp()
	s.voice.Store(&p.Voice)
}

// SetTrack sets the boundary reporting mode. Unknown modes select
// TrackWhole.
func (s *Session) SetTrack(m tts.TrackMode) {
	if !m.Valid() {
		m = tts.TrackWhole
	}
	s.track.Store(int32(m))
}

// Params returns the current parameters.
func (s *Session) Params() tts.Params {
	return tts.Params{
		Pitch: int(s.pitch.Load()),
		Rate:  int(s.rate.Load()),
		Voice: *s.voice.Load(),
		Gap:   int(s.gap.Load()),
		Track: tts.TrackMode(s.track.Load()),
	}
}

// Reset discards pending text and buffered audio and returns the session to
// idle. A pass already running for the session is canceled and its output
// dropped.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.discard()
	s.logger.Debug("reset")
}

// Close ends the session. Pull returns io.EOF from then on and SetText
// returns ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.discard()
	s.mu.Unlock()

	s.d.unregister(s)
	s.logger.Debug("closed")
}

// discard drops everything outstanding. Called with s.mu held.
func (s *Session) discard() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	for _, sl := range s.slots {
		if sl.state != slotSynthesizing {
			sl.recycle()
		}
	}
	s.in, s.work, s.out = 0, 0, 0
	s.played = 0
	s.source.Reset()
	s.d.unqueue(s)
	s.cond.Broadcast()
}

// outstanding reports whether any text of the current generation is still
// to be played. Called with s.mu held.
func (s *Session) outstanding() bool {
	if !s.source.Empty() {
		return true
	}
	for _, sl := range s.slots {
		if sl.state != slotFree && sl.gen == s.gen {
			return true
		}
	}
	return false
}
