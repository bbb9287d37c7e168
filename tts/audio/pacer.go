package audio

import (
	"context"
	"io"

	"github.com/dgnsrekt/spin/tts"
	"golang.org/x/time/rate"
)

// Pacer is an io.Writer that passes PCM on no faster than real time, with
// up to a tenth of a second written ahead.
type Pacer struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
	burst   int
}

// NewPacer paces writes to w for audio in format f. Writes fail with the
// context error once ctx is done.
func NewPacer(ctx context.Context, w io.Writer, f tts.Format) *Pacer {
	bps := f.BytesPerSecond()
	burst := bps / 10
	burst -= burst % f.FrameSize()
	if burst < f.FrameSize() {
		burst = f.FrameSize()
	}
	return &Pacer{
		ctx:     ctx,
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bps), burst),
		burst:   burst,
	}
}

// Write blocks until p may be played, then writes it.
func (p *Pacer) Write(b []byte) (int, error) {
	written := 0
	for len(b) > 0 {
		n := len(b)
		if n > p.burst {
			n = p.burst
		}
		if err := p.limiter.WaitN(p.ctx, n); err != nil {
			return written, err
		}
		m, err := p.w.Write(b[:n])
		written += m
		if err != nil {
			return written, err
		}
		b = b[n:]
	}
	return written, nil
}
