package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dgnsrekt/spin/tts"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavChunk = 16 * 1024

// WriteWAV copies 16-bit PCM from r into a WAV file on w. The header sizes
// are written once r is exhausted, so w must be seekable. It returns the
// number of PCM bytes written.
func WriteWAV(w io.WriteSeeker, r io.Reader, f tts.Format) (int64, error) {
	if err := checkFormat(f); err != nil {
		return 0, err
	}

	enc := wav.NewEncoder(w, f.SampleRate, f.BitDepth, f.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		SourceBitDepth: f.BitDepth,
	}

	frame := f.FrameSize()
	in := make([]byte, wavChunk)
	carry := 0
	var written int64
	for {
		n, err := r.Read(in[carry:])
		n += carry
		whole := n - n%frame
		if whole > 0 {
			buf.Data = buf.Data[:0]
			for i := 0; i+1 < whole; i += 2 {
				buf.Data = append(buf.Data, int(int16(binary.LittleEndian.Uint16(in[i:]))))
			}
			if werr := enc.Write(buf); werr != nil {
				return written, fmt.Errorf("write wav: %w", werr)
			}
			written += int64(whole)
		}
		carry = copy(in, in[whole:n])

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return written, err
		}
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("finish wav: %w", err)
	}
	return written, nil
}
