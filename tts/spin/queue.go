// Package spin schedules speech synthesis for many sessions over a single
// engine and plays the result back through a pull interface.
//
// Each session cuts its text into frames and keeps a small ring of slots.
// One worker goroutine owns the engine and synthesizes one slot per pass,
// taking sessions from a FIFO in which each session appears at most once.
// Consumers call Session.Pull to read audio and receive boundary
// notifications as playback reaches them.
package spin

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dustin/go-humanize"
)

// Dispatcher serializes engine calls for all of its sessions.
//
// Lock order: a session mutex may be held while taking the dispatcher
// mutex, never the reverse.
type Dispatcher struct {
	engine engines.Engine
	format tts.Format

	slots     int
	frameSize int
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	queue    []*Session
	busy     bool
	closed   bool
	sessions map[*Session]struct{}
	stats    Stats
}

// Stats holds dispatcher counters.
type Stats struct {
	Sessions  int   // open sessions
	Queued    int   // sessions waiting for a pass
	Passes    int64 // engine calls made
	Failures  int64 // engine calls that failed
	Bytes     int64 // PCM bytes produced
	PeakQueue int
}

// NewDispatcher starts the worker for engine.
func NewDispatcher(engine engines.Engine, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		format:   engine.Format(),
		done:     make(chan struct{}),
		sessions: make(map[*Session]struct{}),
	}
	defaults(d)
	for _, opt := range opts {
		opt(d)
	}
	d.cond = sync.NewCond(&d.mu)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	go d.run()

	d.logger.Debug("dispatcher started", "engine", engine.Name(), "slots", d.slots, "frame", d.frameSize)
	return d
}

// Format returns the audio format of every session.
func (d *Dispatcher) Format() tts.Format { return d.format }

// Sync blocks until no session is queued and no pass is running.
func (d *Dispatcher) Sync() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for (len(d.queue) > 0 || d.busy) && !d.closed {
		d.cond.Wait()
	}
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.Sessions = len(d.sessions)
	stats.Queued = len(d.queue)
	return stats
}

// Close stops the worker after the current pass and closes every session.
// The engine is left open.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cancel()
	d.cond.Broadcast()
	sessions := make([]*Session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	<-d.done

	for _, s := range sessions {
		s.Close()
	}

	stats := d.Stats()
	d.logger.Debug("dispatcher closed", "passes", stats.Passes, "failures", stats.Failures,
		"audio", humanize.IBytes(uint64(stats.Bytes)))
	return nil
}

// schedule queues s unless it already holds a token. Called with s.mu held.
func (d *Dispatcher) schedule(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return tts.ErrDispatcherClosed
	}
	if s.queued {
		return nil
	}
	s.queued = true
	d.push(s)
	return nil
}

// push must be called with d.mu held.
func (d *Dispatcher) push(s *Session) {
	d.queue = append(d.queue, s)
	if len(d.queue) > d.stats.PeakQueue {
		d.stats.PeakQueue = len(d.queue)
	}
	d.cond.Broadcast()
}

// unqueue removes the token of s if it is waiting. A token held by the
// running pass is left for the worker to release. Called with s.mu held.
func (d *Dispatcher) unqueue(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, q := range d.queue {
		if q == s {
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			s.queued = false
			d.cond.Broadcast()
			return
		}
	}
}

func (d *Dispatcher) register(s *Session) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	d.sessions[s] = struct{}{}
	return true
}

func (d *Dispatcher) unregister(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, s)
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		s := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.busy = true
		d.mu.Unlock()

		d.pass(s)

		d.mu.Lock()
		d.busy = false
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

// pass synthesizes the next assigned slot of s and requeues s when the slot
// after it is assigned too.
func (d *Dispatcher) pass(s *Session) {
	s.mu.Lock()
	idx := s.work
	sl := s.slots[idx]
	if s.closed || sl.state != slotAssigned {
		d.release(s, false)
		s.mu.Unlock()
		return
	}
	sl.state = slotSynthesizing
	gen := s.gen
	ctx, cancel := context.WithCancel(d.ctx)
	s.cancel = cancel
	s.mu.Unlock()

	p := s.Params()
	s.logger.Debug("synthesizing", "slot", idx, "offset", sl.frame.Offset, "bytes", sl.frame.Len())

	err := d.engine.Synthesize(ctx, sl.frame.Text, p, sl.collect(d.format.FrameSize()))
	canceled := ctx.Err() != nil
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil

	switch {
	case gen != s.gen:
		s.logger.Debug("discarding stale slot", "slot", idx)
		sl.recycle()
	case err != nil:
		if canceled {
			s.logger.Debug("synthesis canceled", "slot", idx)
		} else {
			s.logger.Warn("synthesis failed", "slot", idx, "offset", sl.frame.Offset, "err", err)
		}
		sl.fail()
		sl.state = slotReady
		s.work = (idx + 1) % len(s.slots)
	default:
		sl.seal()
		sl.state = slotReady
		s.work = (idx + 1) % len(s.slots)
		s.logger.Debug("slot ready", "slot", idx, "audio", humanize.IBytes(uint64(len(sl.pcm))), "events", len(sl.events))
	}

	d.mu.Lock()
	d.stats.Passes++
	if err != nil && !canceled {
		d.stats.Failures++
	}
	d.stats.Bytes += int64(len(sl.pcm))
	d.mu.Unlock()

	s.fill()
	s.cond.Broadcast()

	d.release(s, !s.closed && s.slots[s.work].state == slotAssigned)
}

// release requeues s or clears its token. Called with s.mu held.
func (d *Dispatcher) release(s *Session, again bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if again && !d.closed {
		d.push(s)
		return
	}
	s.queued = false
}
