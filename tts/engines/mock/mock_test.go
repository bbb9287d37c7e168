package mock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
)

type capture struct {
	samples []int16
	events  []engines.RawEvent
	names   []string
	calls   int
}

func (c *capture) callback(samples []int16, events []engines.RawEvent) {
	c.calls++
	c.samples = append(c.samples, samples...)
	for _, ev := range events {
		c.events = append(c.events, ev)
		if ev.Type == engines.RawMark {
			c.names = append(c.names, string(ev.Name))
		}
	}
}

func TestSynthesizeWords(t *testing.T) {
	e := New()
	var c capture

	if err := e.Synthesize(context.Background(), "a b", tts.DefaultParams(), c.callback); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	perByte := SamplesPerByte(tts.DefaultRate)
	if len(c.samples) != 3*perByte {
		t.Errorf("got %d samples, want %d", len(c.samples), 3*perByte)
	}

	var words []engines.RawEvent
	for _, ev := range c.events {
		if ev.Type == engines.RawWord {
			words = append(words, ev)
		}
	}
	if len(words) != 2 {
		t.Fatalf("got %d word events, want 2", len(words))
	}
	if words[0].Position != 1 || words[1].Position != 3 {
		t.Errorf("word positions = %d, %d, want 1, 3", words[0].Position, words[1].Position)
	}
	if words[1].Sample != 2*perByte {
		t.Errorf("second word sample = %d, want %d", words[1].Sample, 2*perByte)
	}

	lastEv := c.events[len(c.events)-1]
	if lastEv.Type != engines.RawEnd || lastEv.Sample != len(c.samples) {
		t.Errorf("last event = %+v, want end at %d", lastEv, len(c.samples))
	}
}

func TestSynthesizeEventsOrdered(t *testing.T) {
	e := New(WithBatchSize(64))
	var c capture

	input := `First sentence here. <mark name="m1"/>Second one! Third`
	if err := e.Synthesize(context.Background(), input, tts.DefaultParams(), c.callback); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if c.calls < 2 {
		t.Errorf("expected several callback batches, got %d", c.calls)
	}
	prev := 0
	sentences := 0
	for _, ev := range c.events {
		if ev.Sample < prev {
			t.Fatalf("event %+v goes back in time (prev %d)", ev, prev)
		}
		prev = ev.Sample
		if ev.Type == engines.RawSentence {
			sentences++
		}
	}
	if sentences != 3 {
		t.Errorf("got %d sentence events, want 3", sentences)
	}
	if len(c.names) != 1 || c.names[0] != "m1" {
		t.Errorf("mark names = %q, want [m1]", c.names)
	}
}

func TestMarkNamesAreTransient(t *testing.T) {
	e := New()
	var kept []engines.RawEvent

	err := e.Synthesize(context.Background(), `<mark name="start"/>go`, tts.DefaultParams(),
		func(_ []int16, events []engines.RawEvent) {
			kept = append(kept, events...)
		})
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	for _, ev := range kept {
		if ev.Type == engines.RawMark && string(ev.Name) == "start" {
			t.Error("mark name storage should be wiped after the callback returns")
		}
	}
}

func TestMarksProduceNoAudio(t *testing.T) {
	plain := Render("hi there", tts.DefaultParams())
	tagged := Render(`hi <mark name="x"/>there`, tts.DefaultParams())
	if len(tagged) != len(plain) {
		t.Errorf("tagged len %d, plain len %d: tags should not add audio", len(tagged), len(plain))
	}
}

func TestRateAndGap(t *testing.T) {
	slow := Render("hello world", tts.Params{Rate: tts.MinRate})
	fast := Render("hello world", tts.Params{Rate: tts.MaxRate})
	if len(slow) <= len(fast) {
		t.Errorf("slow rate produced %d samples, fast %d", len(slow), len(fast))
	}

	noGap := Render("a b", tts.Params{Rate: tts.DefaultRate})
	gap := Render("a b", tts.Params{Rate: tts.DefaultRate, Gap: 2})
	if len(gap)-len(noGap) != GapSamples(2) {
		t.Errorf("gap added %d samples, want %d", len(gap)-len(noGap), GapSamples(2))
	}
}

func TestEmptyText(t *testing.T) {
	e := New()
	var c capture
	if err := e.Synthesize(context.Background(), "", tts.DefaultParams(), c.callback); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if len(c.samples) != 0 {
		t.Errorf("got %d samples for empty text", len(c.samples))
	}
	if len(c.events) != 1 || c.events[0].Type != engines.RawEnd {
		t.Errorf("events = %+v, want only the end sentinel", c.events)
	}
}

func TestFailure(t *testing.T) {
	e := New()
	e.SetFailure(errors.New("boom"))

	called := false
	err := e.Synthesize(context.Background(), "text", tts.DefaultParams(), func([]int16, []engines.RawEvent) {
		called = true
	})
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		t.Errorf("error = %v, want ErrSynthesisFailed", err)
	}
	if called {
		t.Error("callback should not run on failure")
	}

	e.ClearFailure()
	if err := e.Synthesize(context.Background(), "text", tts.DefaultParams(), func([]int16, []engines.RawEvent) {}); err != nil {
		t.Errorf("Synthesize after ClearFailure: %v", err)
	}
	if e.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want 2", e.CallCount())
	}
}

func TestFailureRate(t *testing.T) {
	e := New(WithFailureRate(1))
	if err := e.Synthesize(context.Background(), "x", tts.DefaultParams(), func([]int16, []engines.RawEvent) {}); err == nil {
		t.Error("expected injected failure")
	}
}

func TestDelayHonorsContext(t *testing.T) {
	e := New(WithDelay(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- e.Synthesize(ctx, "x", tts.DefaultParams(), func([]int16, []engines.RawEvent) {})
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Synthesize did not return after cancel")
	}
}

func TestPeakConcurrency(t *testing.T) {
	e := New(WithDelay(20 * time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Synthesize(context.Background(), "x", tts.DefaultParams(), func([]int16, []engines.RawEvent) {})
		}()
	}
	wg.Wait()

	if e.PeakConcurrency() < 2 {
		t.Errorf("PeakConcurrency() = %d, want concurrent calls to be observed", e.PeakConcurrency())
	}
	if len(e.Texts()) != 3 {
		t.Errorf("Texts() recorded %d calls, want 3", len(e.Texts()))
	}
}

func TestVoices(t *testing.T) {
	voices, err := New().Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices failed: %v", err)
	}
	if len(voices) == 0 || voices[0].ID != tts.DefaultVoice {
		t.Errorf("Voices() = %+v, want the default voice first", voices)
	}
}
