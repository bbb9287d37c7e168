package tts

import (
	"fmt"
	"strings"
)

// Voice parameter limits. Values outside these ranges are clamped.
const (
	MinPitch     = 0
	MaxPitch     = 99
	DefaultPitch = 50

	MinRate     = 80
	MaxRate     = 450
	DefaultRate = 170

	// Gap is the extra pause between words in units of 10ms.
	MinGap     = 0
	MaxGap     = 1000
	DefaultGap = 0

	DefaultVoice = "default"
)

// TrackMode selects which boundaries are reported during playback.
type TrackMode int

const (
	// TrackWhole reports nothing and returns buffers as large as allowed.
	TrackWhole TrackMode = iota
	// TrackWord reports word boundaries.
	TrackWord
	// TrackSentence reports sentence boundaries.
	TrackSentence
	// TrackMark reports named marks embedded in the text.
	TrackMark
)

// String returns the string representation of the track mode.
func (m TrackMode) String() string {
	switch m {
	case TrackWhole:
		return "whole"
	case TrackWord:
		return "word"
	case TrackSentence:
		return "sentence"
	case TrackMark:
		return "mark"
	default:
		return "unknown"
	}
}

// Valid reports whether m is one of the known modes.
func (m TrackMode) Valid() bool {
	return m >= TrackWhole && m <= TrackMark
}

// Tracks reports whether events of type t are boundaries in this mode.
func (m TrackMode) Tracks(t EventType) bool {
	switch m {
	case TrackWord:
		return t == EventWord
	case TrackSentence:
		return t == EventSentence
	case TrackMark:
		return t == EventMark
	default:
		return false
	}
}

// ParseTrackMode parses a track mode name.
func ParseTrackMode(s string) (TrackMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "whole", "none":
		return TrackWhole, nil
	case "word", "words":
		return TrackWord, nil
	case "sentence", "sentences":
		return TrackSentence, nil
	case "mark", "marks":
		return TrackMark, nil
	default:
		return TrackWhole, fmt.Errorf("%w: unknown track mode %q", ErrInvalidConfig, s)
	}
}

// Params holds the voice parameters applied to a synthesis call.
type Params struct {
	Pitch int       // 0-99
	Rate  int       // words per minute, 80-450
	Voice string    // engine voice name
	Gap   int       // pause between words, 10ms units
	Track TrackMode // boundary reporting mode
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		Pitch: DefaultPitch,
		Rate:  DefaultRate,
		Voice: DefaultVoice,
		Gap:   DefaultGap,
		Track: TrackWhole,
	}
}

// Clamp returns a copy of p with every field forced into its valid range.
func (p Params) Clamp() Params {
	p.Pitch = ClampPitch(p.Pitch)
	p.Rate = ClampRate(p.Rate)
	p.Gap = ClampGap(p.Gap)
	p.Voice = strings.TrimSpace(p.Voice)
	if p.Voice == "" {
		p.Voice = DefaultVoice
	}
	if !p.Track.Valid() {
		p.Track = TrackWhole
	}
	return p
}

// ClampPitch forces a pitch value into [MinPitch, MaxPitch].
func ClampPitch(v int) int { return clamp(v, MinPitch, MaxPitch) }

// ClampRate forces a rate value into [MinRate, MaxRate].
func ClampRate(v int) int { return clamp(v, MinRate, MaxRate) }

// ClampGap forces a gap value into [MinGap, MaxGap].
func ClampGap(v int) int { return clamp(v, MinGap, MaxGap) }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
