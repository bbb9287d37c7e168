// Package audio plays, paces and stores the PCM produced by speech sessions.
package audio

import (
	"io"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/spin/tts/spin"
)

// Source is anything audio can be pulled from, usually a *spin.Session.
type Source interface {
	Pull(max int) (spin.Chunk, error)
}

// Reader adapts a Source to io.Reader. Read blocks while the session is
// synthesizing and returns io.EOF at end of stream.
type Reader struct {
	src  Source
	rest []byte

	read     atomic.Int64
	position atomic.Int64 // timestamp of the last chunk, in nanoseconds
}

// NewReader returns a Reader over src.
func NewReader(src Source) *Reader {
	return &Reader{src: src}
}

// Read pulls at most len(p) bytes.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.rest) == 0 {
		c, err := r.src.Pull(len(p))
		if err != nil {
			return 0, err
		}
		r.rest = c.Data
		r.position.Store(int64(c.Timestamp))
	}

	n := copy(p, r.rest)
	r.rest = r.rest[n:]
	r.read.Add(int64(n))
	return n, nil
}

// BytesRead returns the number of bytes returned so far.
func (r *Reader) BytesRead() int64 { return r.read.Load() }

// Position returns the timestamp of the most recent chunk.
func (r *Reader) Position() time.Duration { return time.Duration(r.position.Load()) }

var _ io.Reader = (*Reader)(nil)
