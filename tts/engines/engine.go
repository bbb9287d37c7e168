// Package engines defines the contract between the synthesis worker and
// speech engines.
package engines

import (
	"context"

	"github.com/dgnsrekt/spin/tts"
)

// RawEventType identifies an event delivered by an engine callback.
type RawEventType int

const (
	// RawEnd terminates an event list.
	RawEnd RawEventType = iota
	RawWord
	RawSentence
	RawMark
)

// EventType maps the raw type to the slot event type.
func (t RawEventType) EventType() tts.EventType {
	switch t {
	case RawWord:
		return tts.EventWord
	case RawSentence:
		return tts.EventSentence
	case RawMark:
		return tts.EventMark
	default:
		return tts.EventEnd
	}
}

// RawEvent is an event as the engine reports it.
type RawEvent struct {
	Type RawEventType

	// Position is the 1-based byte position of the event in the text given
	// to Synthesize.
	Position int
	Length   int
	ID       int

	// Name is the mark name. It is only valid until the callback returns.
	Name []byte

	// Sample is the index of the sample, counted from the start of the
	// Synthesize call, at which the event becomes active.
	Sample int
}

// Callback receives audio and events during a Synthesize call. samples
// holds mono 16-bit audio and is only valid until the callback returns.
// Events after a RawEnd entry are ignored.
type Callback func(samples []int16, events []RawEvent)

// Engine synthesizes speech. Implementations may assume Synthesize is never
// called concurrently; the dispatcher serializes all calls.
type Engine interface {
	// Name returns the engine name.
	Name() string

	// Format returns the format of the samples passed to callbacks.
	Format() tts.Format

	// Synthesize speaks text with the given parameters, calling cb zero or
	// more times in playback order before returning.
	Synthesize(ctx context.Context, text string, p tts.Params, cb Callback) error

	// Voices lists the voices the engine offers.
	Voices(ctx context.Context) ([]tts.Voice, error)

	// Close releases engine resources.
	Close() error
}
