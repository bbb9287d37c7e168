package tts

import "time"

// Audio format constants shared by the engines.
const (
	SampleRate     = 22050
	Channels       = 1
	BitDepth       = 16
	BytesPerSample = BitDepth / 8 * Channels
)

// Format describes signed little-endian PCM audio.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns mono 16-bit audio at SampleRate.
func DefaultFormat() Format {
	return Format{
		SampleRate: SampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// FrameSize returns the number of bytes in one sample across all channels.
func (f Format) FrameSize() int {
	return f.BitDepth / 8 * f.Channels
}

// BytesPerSecond returns the byte rate of the format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns the playback duration of n bytes.
func (f Format) Duration(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(bps))
}
