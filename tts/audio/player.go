package audio

import (
	"fmt"

	"github.com/dgnsrekt/spin/tts"
)

// checkFormat rejects formats the output device cannot play.
func checkFormat(f tts.Format) error {
	if f.BitDepth != 16 {
		return fmt.Errorf("%w: bit depth must be 16, got %d", tts.ErrInvalidConfig, f.BitDepth)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("%w: channels must be 1 or 2, got %d", tts.ErrInvalidConfig, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be positive, got %d", tts.ErrInvalidConfig, f.SampleRate)
	}
	return nil
}
