package spin

import (
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts/text"
)

// DefaultSlots is the number of slots in each session ring.
const DefaultSlots = 2

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used by the dispatcher and its sessions.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSlots sets the ring size of new sessions. One slot disables
// pipelining; values below one are ignored.
func WithSlots(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.slots = n
		}
	}
}

// WithFrameSize sets the maximum frame length in bytes, not counting the
// whitespace carried over from the previous frame. See text.Cut.
func WithFrameSize(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.frameSize = n
		}
	}
}

func defaults(d *Dispatcher) {
	d.slots = DefaultSlots
	d.frameSize = text.DefaultFrameSize
	d.logger = log.Default().WithPrefix("spin")
}
