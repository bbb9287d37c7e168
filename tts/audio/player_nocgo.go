//go:build nocgo
// +build nocgo

package audio

import (
	"context"
	"io"

	"github.com/dgnsrekt/spin/tts"
)

// Player is unavailable in builds without cgo.
type Player struct{}

// NewPlayer always fails in nocgo builds.
func NewPlayer(f tts.Format) (*Player, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}
	return nil, tts.NewTTSError(tts.ErrorCodeAudioDevice, "audio not available in nocgo build", tts.ErrAudioUnavailable)
}

// SetVolume does nothing.
func (p *Player) SetVolume(float64) {}

// Play always fails in nocgo builds.
func (p *Player) Play(context.Context, io.Reader) error {
	return tts.ErrAudioUnavailable
}

// Close does nothing.
func (p *Player) Close() error { return nil }
