// Package mock provides a deterministic in-process speech engine for
// testing.
package mock

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/text"
)

// DefaultBatchSize is the number of samples delivered per callback.
const DefaultBatchSize = 512

var errInjected = errors.New("injected failure")

// Engine is a speech engine that renders a tone per byte of text.
//
// Every byte of spoken text produces 6800/rate samples, so the default rate
// of 170 gives 40 samples per byte. Each word is followed by gap*10ms of
// silence. Mark tags of the form <mark name="x"/> produce no audio and are
// reported as mark events.
type Engine struct {
	mu          sync.Mutex
	delay       time.Duration
	failure     error
	failureRate float64
	batchSize   int
	rng         *rand.Rand
	texts       []string

	calls  atomic.Int64
	active atomic.Int32
	peak   atomic.Int32
}

// Option configures the mock engine.
type Option func(*Engine)

// WithDelay sets the simulated processing delay per call.
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithFailureRate makes a fraction of calls fail.
func WithFailureRate(rate float64) Option {
	return func(e *Engine) { e.failureRate = rate }
}

// WithBatchSize sets the number of samples delivered per callback.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithSeed seeds the failure injection.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a new mock engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		batchSize: DefaultBatchSize,
		rng:       rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns "mock".
func (e *Engine) Name() string { return "mock" }

// Format returns mono 16-bit audio at 22050 Hz.
func (e *Engine) Format() tts.Format { return tts.DefaultFormat() }

// SamplesPerByte returns the number of samples rendered per byte of text
// at the given rate.
func SamplesPerByte(rate int) int {
	rate = tts.ClampRate(rate)
	n := 6800 / rate
	if n < 1 {
		n = 1
	}
	return n
}

// GapSamples returns the silence rendered after each word for a gap value.
func GapSamples(gap int) int {
	return tts.ClampGap(gap) * tts.SampleRate / 100
}

// Synthesize renders text and delivers it to cb in batches.
func (e *Engine) Synthesize(ctx context.Context, input string, p tts.Params, cb engines.Callback) error {
	n := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		peak := e.peak.Load()
		if n <= peak || e.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	e.calls.Add(1)

	e.mu.Lock()
	e.texts = append(e.texts, input)
	delay := e.delay
	fail := e.failure
	if fail == nil && e.failureRate > 0 && e.rng.Float64() < e.failureRate {
		fail = errInjected
	}
	batchSize := e.batchSize
	e.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail != nil {
		return fmt.Errorf("%w: %v", tts.ErrSynthesisFailed, fail)
	}

	samples, events, names := render(input, p.Clamp())

	// mark names are handed out in a scratch buffer that is wiped once the
	// call returns, like the storage of a native engine
	scratch := make([]byte, 0, len(input))
	for i := range events {
		if events[i].Type == engines.RawMark {
			off := len(scratch)
			scratch = append(scratch, names[i]...)
			events[i].Name = scratch[off:len(scratch):len(scratch)]
		}
	}
	defer func() {
		for i := range scratch {
			scratch[i] = 0
		}
	}()

	return engines.Deliver(ctx, samples, events, batchSize, cb)
}

// render produces the samples and events for input, plus the mark name of
// each mark event.
func render(input string, p tts.Params) ([]int16, []engines.RawEvent, []string) {
	masked, marks := text.MaskMarks(input)
	inTag := make([]bool, len(input))
	for _, m := range marks {
		for i := m.Start; i < m.End; i++ {
			inTag[i] = true
		}
	}

	words := text.Words(masked)
	sentences := text.Sentences(masked)

	wordEnds := make(map[int]bool, len(words))
	for _, w := range words {
		wordEnds[w.End] = true
	}

	perByte := SamplesPerByte(p.Rate)
	gap := GapSamples(p.Gap)
	half := (20 + tts.MaxPitch - p.Pitch) / 2

	sampleAt := make([]int, len(input)+1)
	var samples []int16
	for i := 0; i <= len(input); i++ {
		if wordEnds[i] && i < len(input) {
			samples = append(samples, make([]int16, gap)...)
		}
		sampleAt[i] = len(samples)
		if i == len(input) {
			break
		}
		if inTag[i] {
			continue
		}
		for j := 0; j < perByte; j++ {
			v := int16(4000)
			if (len(samples)/half)%2 == 1 {
				v = -4000
			}
			samples = append(samples, v)
		}
	}

	type tagged struct {
		ev   engines.RawEvent
		name string
	}
	var all []tagged
	for _, s := range sentences {
		all = append(all, tagged{ev: engines.RawEvent{
			Type:     engines.RawSentence,
			Position: s.Start + 1,
			Length:   s.Len(),
			Sample:   sampleAt[s.Start],
		}})
	}
	for i, w := range words {
		all = append(all, tagged{ev: engines.RawEvent{
			Type:     engines.RawWord,
			Position: w.Start + 1,
			Length:   w.Len(),
			ID:       i + 1,
			Sample:   sampleAt[w.Start],
		}})
	}
	for i, m := range marks {
		all = append(all, tagged{
			ev: engines.RawEvent{
				Type:     engines.RawMark,
				Position: m.Start + 1,
				ID:       i + 1,
				Sample:   sampleAt[m.Start],
			},
			name: m.Name,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ev.Sample != all[j].ev.Sample {
			return all[i].ev.Sample < all[j].ev.Sample
		}
		return all[i].ev.Position < all[j].ev.Position
	})

	events := make([]engines.RawEvent, len(all))
	names := make([]string, len(all))
	for i, t := range all {
		events[i] = t.ev
		names[i] = t.name
	}
	return samples, events, names
}

// Voices returns the mock voices.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{ID: "default", Name: "Mock Voice", Language: "en-us", Gender: "neutral"},
		{ID: "en-gb", Name: "Mock Voice GB", Language: "en-gb", Gender: "female"},
		{ID: "de", Name: "Mock Voice DE", Language: "de", Gender: "male"},
	}, nil
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }

// Test control methods

// SetDelay sets the simulated processing delay.
func (e *Engine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetFailure configures the engine to fail with the given error.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failure = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.SetFailure(nil)
}

// CallCount returns the number of Synthesize calls.
func (e *Engine) CallCount() int {
	return int(e.calls.Load())
}

// PeakConcurrency returns the largest number of Synthesize calls that were
// ever in flight at the same time.
func (e *Engine) PeakConcurrency() int {
	return int(e.peak.Load())
}

// Texts returns the texts passed to Synthesize, in call order.
func (e *Engine) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}

// Render returns the samples the engine produces for input, for tests that
// need to know the expected audio.
func Render(input string, p tts.Params) []int16 {
	samples, _, _ := render(input, p.Clamp())
	return samples
}
