//go:build !nocgo
// +build !nocgo

package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so it is created once and shared.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoFormat  tts.Format
	otoErr     error
)

func sharedContext(f tts.Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   100 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = tts.NewTTSError(tts.ErrorCodeAudioDevice, "create audio context",
				fmt.Errorf("%w: %v", tts.ErrAudioUnavailable, err))
			return
		}
		<-ready
		otoContext = ctx
		otoFormat = f
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if f != otoFormat {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "audio context already open with another format", nil).
			WithContext("format", otoFormat)
	}
	return otoContext, nil
}

// Player plays PCM on the default output device.
type Player struct {
	ctx    *oto.Context
	format tts.Format
	volume float64
	logger *log.Logger
}

// NewPlayer opens the output device for f.
func NewPlayer(f tts.Format) (*Player, error) {
	if err := checkFormat(f); err != nil {
		return nil, err
	}
	ctx, err := sharedContext(f)
	if err != nil {
		return nil, err
	}
	return &Player{
		ctx:    ctx,
		format: f,
		volume: 1,
		logger: log.Default().WithPrefix("player"),
	}, nil
}

// SetVolume sets the volume used by later Play calls, from 0 to 1.
func (p *Player) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	p.volume = v
}

// Play plays r until it returns io.EOF and the device has drained, or until
// ctx is done.
func (p *Player) Play(ctx context.Context, r io.Reader) error {
	player := p.ctx.NewPlayer(r)
	defer player.Close()

	player.SetVolume(p.volume)
	player.Play()
	p.logger.Debug("playing")

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if player.IsPlaying() {
				continue
			}
			if err := player.Err(); err != nil && err != io.EOF {
				return tts.NewTTSError(tts.ErrorCodeAudioDevice, "playback", err)
			}
			p.logger.Debug("drained")
			return nil
		}
	}
}

// Close releases the player. The shared device stays open.
func (p *Player) Close() error { return nil }
