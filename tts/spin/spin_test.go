package spin

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines/mock"
	"github.com/dgnsrekt/spin/tts/text"
)

const pullSize = 4096

type recorder struct {
	mu    sync.Mutex
	notes []tts.Notification
	at    []int // bytes returned before each notification
	bytes int
}

func (r *recorder) Notify(n tts.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	r.at = append(r.at, r.bytes)
}

func (r *recorder) Notes() []tts.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]tts.Notification(nil), r.notes...)
}

// drain pulls until EOF and returns every chunk.
func drain(t *testing.T, s *Session, max int, r *recorder) []Chunk {
	t.Helper()

	type result struct {
		chunks []Chunk
		err    error
	}
	done := make(chan result, 1)
	go func() {
		var chunks []Chunk
		for {
			c, err := s.Pull(max)
			if err == io.EOF {
				done <- result{chunks: chunks}
				return
			}
			if err != nil {
				done <- result{err: err}
				return
			}
			if r != nil {
				r.mu.Lock()
				r.bytes += len(c.Data)
				r.mu.Unlock()
			}
			chunks = append(chunks, c)
		}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Pull failed: %v", res.err)
		}
		return res.chunks
	case <-time.After(5 * time.Second):
		t.Fatal("Pull did not reach end of stream")
		return nil
	}
}

func total(chunks []Chunk) int {
	n := 0
	for _, c := range chunks {
		n += len(c.Data)
	}
	return n
}

// expectedBytes is the audio the mock engine renders for input cut into
// frames of frameSize.
func expectedBytes(input string, frameSize int, p tts.Params) int {
	n := 0
	for _, f := range text.Frames(input, frameSize) {
		n += len(mock.Render(f.Text, p)) * tts.BytesPerSample
	}
	return n
}

func setText(t *testing.T, s *Session, input string) {
	t.Helper()
	if err := s.SetText(input); err != nil {
		t.Fatalf("SetText(%q) failed: %v", input, err)
	}
}

func newDispatcher(t *testing.T, e *mock.Engine, opts ...Option) *Dispatcher {
	t.Helper()
	d := NewDispatcher(e, opts...)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestHelloWorld(t *testing.T) {
	e := mock.New()
	d := newDispatcher(t, e, WithFrameSize(5))
	s := d.Open(tts.DefaultParams(), nil)

	if err := s.SetText("Hello world"); err != nil {
		t.Fatalf("SetText failed: %v", err)
	}
	chunks := drain(t, s, pullSize, nil)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Data) == 0 {
			t.Errorf("chunk %d is empty", i)
		}
	}

	texts := e.Texts()
	if len(texts) != 2 || texts[0] != "Hello" || texts[1] != " world" {
		t.Errorf("frames = %q, want [Hello  world]", texts)
	}
	if got, want := total(chunks), expectedBytes("Hello world", 5, tts.DefaultParams()); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}
	if chunks[1].Timestamp != chunks[0].Duration {
		t.Errorf("second timestamp = %v, want %v", chunks[1].Timestamp, chunks[0].Duration)
	}
}

func TestSetParamsClamp(t *testing.T) {
	d := newDispatcher(t, mock.New())
	s := d.Open(tts.DefaultParams(), nil)

	s.SetPitch(200)
	s.SetRate(10)
	s.SetGap(-5)
	s.SetVoice("")
	s.SetTrack(tts.TrackMode(42))

	got := s.Params()
	want := tts.Params{Pitch: tts.MaxPitch, Rate: tts.MinRate, Gap: 0, Voice: tts.DefaultVoice, Track: tts.TrackWhole}
	if got != want {
		t.Errorf("Params() = %+v, want %+v", got, want)
	}

	s.SetParams(tts.Params{Pitch: -1, Rate: 1000, Voice: "en-gb", Gap: 5000, Track: tts.TrackWord})
	got = s.Params()
	want = tts.Params{Pitch: 0, Rate: tts.MaxRate, Gap: tts.MaxGap, Voice: "en-gb", Track: tts.TrackWord}
	if got != want {
		t.Errorf("Params() after SetParams = %+v, want %+v", got, want)
	}
}

func TestWordTracking(t *testing.T) {
	d := newDispatcher(t, mock.New())
	r := &recorder{}
	p := tts.DefaultParams()
	p.Track = tts.TrackWord
	s := d.Open(p, r)

	setText(t, s, "a b")
	chunks := drain(t, s, pullSize, r)

	notes := r.Notes()
	if len(notes) != 2 {
		t.Fatalf("got %d notifications, want 2: %+v", len(notes), notes)
	}
	if notes[0].TextOffset != 0 || notes[1].TextOffset != 2 {
		t.Errorf("offsets = %d, %d; want 0, 2", notes[0].TextOffset, notes[1].TextOffset)
	}
	if notes[0].Text != "a" || notes[1].Text != "b" {
		t.Errorf("words = %q, %q", notes[0].Text, notes[1].Text)
	}
	for _, n := range notes {
		if n.Kind != tts.EventWord {
			t.Errorf("kind = %v, want word", n.Kind)
		}
	}

	// "a" and " " render 40 samples each before the second word starts
	perByte := mock.SamplesPerByte(tts.DefaultRate) * tts.BytesPerSample
	if r.at[0] != 0 || r.at[1] != 2*perByte {
		t.Errorf("notified after %v bytes, want [0 %d]", r.at, 2*perByte)
	}
	if len(chunks) != 2 || len(chunks[0].Data) != 2*perByte {
		t.Errorf("chunks not split at the word boundary: %d chunks", len(chunks))
	}
	if got, want := total(chunks), expectedBytes("a b", text.DefaultFrameSize, p); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}
}

func TestWordTrackingUnboundedPull(t *testing.T) {
	d := newDispatcher(t, mock.New())
	r := &recorder{}
	p := tts.DefaultParams()
	p.Track = tts.TrackWord
	s := d.Open(p, r)

	setText(t, s, "a b c")
	chunks := drain(t, s, math.MaxInt, r)

	if n := len(r.Notes()); n != 3 {
		t.Errorf("got %d notifications, want 3", n)
	}
	if len(chunks) != 3 {
		t.Errorf("got %d chunks, want one per word", len(chunks))
	}
	if got, want := total(chunks), expectedBytes("a b c", text.DefaultFrameSize, p); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}

	closed := make(chan struct{})
	go func() { s.Close(); close(closed) }()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close blocked after draining")
	}
}

func TestSentenceTracking(t *testing.T) {
	d := newDispatcher(t, mock.New())
	r := &recorder{}
	p := tts.DefaultParams()
	p.Track = tts.TrackSentence
	s := d.Open(p, r)

	setText(t, s, "One fish. Two fish.")
	drain(t, s, pullSize, r)

	notes := r.Notes()
	if len(notes) != 2 {
		t.Fatalf("got %d notifications, want 2: %+v", len(notes), notes)
	}
	if notes[0].Text != "One fish." || notes[1].Text != "Two fish." || notes[1].TextOffset != 10 {
		t.Errorf("sentences = %+v", notes)
	}
}

func TestMarkTracking(t *testing.T) {
	d := newDispatcher(t, mock.New())
	r := &recorder{}
	p := tts.DefaultParams()
	p.Track = tts.TrackMark
	s := d.Open(p, r)

	setText(t, s, `<mark name="start"/>one <mark name="mid"/>two`)
	drain(t, s, pullSize, r)

	notes := r.Notes()
	if len(notes) != 2 || notes[0].Name != "start" || notes[1].Name != "mid" {
		t.Fatalf("marks = %+v", notes)
	}
	if r.at[0] != 0 {
		t.Errorf("mark at offset 0 reported after %d bytes", r.at[0])
	}
	perByte := mock.SamplesPerByte(tts.DefaultRate) * tts.BytesPerSample
	if r.at[1] != 4*perByte {
		t.Errorf("mid mark reported after %d bytes, want %d", r.at[1], 4*perByte)
	}
	if notes[1].TextOffset != 24 {
		t.Errorf("mid mark offset = %d, want 24", notes[1].TextOffset)
	}
}

func TestWholeModeNoNotifications(t *testing.T) {
	d := newDispatcher(t, mock.New())
	r := &recorder{}
	s := d.Open(tts.DefaultParams(), r)

	setText(t, s, "several words. And sentences.")
	chunks := drain(t, s, pullSize, r)

	if n := len(r.Notes()); n != 0 {
		t.Errorf("whole mode sent %d notifications", n)
	}
	if len(chunks) != 1 {
		t.Errorf("got %d chunks, want 1", len(chunks))
	}
}

func TestPullSizes(t *testing.T) {
	input := strings.Repeat("lorem ipsum dolor ", 30)
	want := expectedBytes(input, 64, tts.DefaultParams())

	for _, max := range []int{1, 2, 3, 100, 1001, 1 << 20} {
		t.Run(fmt.Sprint(max), func(t *testing.T) {
			d := newDispatcher(t, mock.New(), WithFrameSize(64))
			s := d.Open(tts.DefaultParams(), nil)
			setText(t, s, input)

			chunks := drain(t, s, max, nil)
			limit := max - max%tts.BytesPerSample
			if limit < tts.BytesPerSample {
				limit = tts.BytesPerSample
			}
			for _, c := range chunks {
				if len(c.Data) > limit || len(c.Data)%tts.BytesPerSample != 0 {
					t.Fatalf("chunk of %d bytes for max %d", len(c.Data), max)
				}
			}
			if got := total(chunks); got != want {
				t.Errorf("total bytes = %d, want %d", got, want)
			}
		})
	}
}

func TestAudioOrder(t *testing.T) {
	input := "first frame text second frame text third frame text"
	d := newDispatcher(t, mock.New(), WithFrameSize(10))
	s := d.Open(tts.DefaultParams(), nil)
	setText(t, s, input)

	var got []byte
	for _, c := range drain(t, s, 333, nil) {
		got = append(got, c.Data...)
	}

	var want []byte
	for _, f := range text.Frames(input, 10) {
		for _, v := range mock.Render(f.Text, tts.DefaultParams()) {
			want = append(want, byte(uint16(v)), byte(uint16(v)>>8))
		}
	}
	if string(got) != string(want) {
		t.Errorf("audio differs from frame-by-frame rendering (%d vs %d bytes)", len(got), len(want))
	}
}

func TestPendingFIFO(t *testing.T) {
	e := mock.New()
	d := newDispatcher(t, e)
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "ab")
	setText(t, s, "cd")
	setText(t, s, "")
	drain(t, s, pullSize, nil)

	texts := e.Texts()
	if len(texts) != 2 || texts[0] != "ab" || texts[1] != "cd" {
		t.Errorf("frames = %q, want [ab cd]", texts)
	}
}

func TestEmptySession(t *testing.T) {
	e := mock.New()
	d := newDispatcher(t, e)
	s := d.Open(tts.DefaultParams(), nil)

	if err := s.SetText(""); err != nil {
		t.Errorf("SetText(\"\") = %v", err)
	}
	if _, err := s.Pull(pullSize); err != io.EOF {
		t.Errorf("Pull on idle session = %v, want EOF", err)
	}
	if e.CallCount() != 0 {
		t.Errorf("engine called %d times", e.CallCount())
	}
}

func TestEngineFailure(t *testing.T) {
	e := mock.New()
	e.SetFailure(errors.New("boom"))
	d := newDispatcher(t, e)
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "hello")
	if chunks := drain(t, s, pullSize, nil); total(chunks) != 0 {
		t.Errorf("failed frame produced %d bytes", total(chunks))
	}
	if f := d.Stats().Failures; f != 1 {
		t.Errorf("Failures = %d, want 1", f)
	}

	e.ClearFailure()
	setText(t, s, "again")
	if chunks := drain(t, s, pullSize, nil); total(chunks) == 0 {
		t.Error("session not reusable after engine failure")
	}
}

func TestFailureSkipsOnlyThatFrame(t *testing.T) {
	e := mock.New(mock.WithDelay(20 * time.Millisecond))
	d := newDispatcher(t, e, WithFrameSize(4))
	s := d.Open(tts.DefaultParams(), nil)

	e.SetFailure(errors.New("boom"))
	setText(t, s, "aaaa bbbb")
	// the failure is read when the call records its text
	deadline := time.Now().Add(2 * time.Second)
	for len(e.Texts()) < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	e.ClearFailure()

	chunks := drain(t, s, pullSize, nil)
	if got, want := total(chunks), expectedBytes(" bbbb", 4, tts.DefaultParams()); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}
}

func TestResetInFlight(t *testing.T) {
	e := mock.New(mock.WithDelay(300 * time.Millisecond))
	d := newDispatcher(t, e)
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "this will be discarded")
	deadline := time.Now().Add(2 * time.Second)
	for e.CallCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Reset()

	start := time.Now()
	if _, err := s.Pull(pullSize); err != io.EOF {
		t.Fatalf("Pull after Reset = %v, want EOF", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Pull after Reset blocked for %v", elapsed)
	}

	e.SetDelay(0)
	setText(t, s, "kept")
	chunks := drain(t, s, pullSize, nil)
	if got, want := total(chunks), expectedBytes("kept", text.DefaultFrameSize, tts.DefaultParams()); got != want {
		t.Errorf("total bytes after reset = %d, want %d", got, want)
	}
	if chunks[0].Timestamp != 0 {
		t.Errorf("timestamp after reset = %v, want 0", chunks[0].Timestamp)
	}
}

func TestCloseInFlight(t *testing.T) {
	e := mock.New(mock.WithDelay(300 * time.Millisecond))
	d := newDispatcher(t, e)
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "never heard")
	pulled := make(chan error, 1)
	go func() {
		_, err := s.Pull(pullSize)
		pulled <- err
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case err := <-pulled:
		if err != io.EOF {
			t.Errorf("blocked Pull returned %v, want EOF", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not wake the consumer")
	}

	if _, err := s.Pull(pullSize); err != io.EOF {
		t.Errorf("Pull after Close = %v, want EOF", err)
	}
	if err := s.SetText("more"); !errors.Is(err, tts.ErrSessionClosed) {
		t.Errorf("SetText after Close = %v, want ErrSessionClosed", err)
	}
	s.Close()
}

func TestSingleEngineCall(t *testing.T) {
	e := mock.New(mock.WithDelay(2 * time.Millisecond))
	d := newDispatcher(t, e, WithFrameSize(16))

	const sessions = 6
	input := "the quick brown fox jumps over the lazy dog"
	want := expectedBytes(input, 16, tts.DefaultParams())

	var wg sync.WaitGroup
	totals := make([]int, sessions)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := d.Open(tts.DefaultParams(), nil)
			defer s.Close()
			if err := s.SetText(input); err != nil {
				t.Errorf("SetText failed: %v", err)
				return
			}
			for {
				c, err := s.Pull(512)
				if err != nil {
					return
				}
				totals[i] += len(c.Data)
			}
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("sessions did not finish")
	}

	if peak := e.PeakConcurrency(); peak != 1 {
		t.Errorf("peak concurrent engine calls = %d, want 1", peak)
	}
	for i, n := range totals {
		if n != want {
			t.Errorf("session %d got %d bytes, want %d", i, n, want)
		}
	}
	if s := d.Stats(); s.Sessions != 0 || s.Passes != int64(sessions*len(text.Frames(input, 16))) {
		t.Errorf("stats = %+v", s)
	}
}

func TestSyncWaitsForPasses(t *testing.T) {
	e := mock.New(mock.WithDelay(10 * time.Millisecond))
	d := newDispatcher(t, e, WithFrameSize(4))
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "aaaa bbbb cccc")
	d.Sync()

	// two slots fill, the third frame waits for the consumer
	if n := e.CallCount(); n != 2 {
		t.Errorf("engine calls after Sync = %d, want 2", n)
	}
	if st := d.Stats(); st.Queued != 0 {
		t.Errorf("queued after Sync = %d", st.Queued)
	}
}

func TestOneTokenPerSession(t *testing.T) {
	e := mock.New(mock.WithDelay(5 * time.Millisecond))
	d := newDispatcher(t, e, WithFrameSize(4))
	s := d.Open(tts.DefaultParams(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.SetText("word "); err != nil {
				t.Errorf("SetText failed: %v", err)
			}
		}()
	}
	wg.Wait()
	d.Sync()

	if st := d.Stats(); st.PeakQueue != 1 {
		t.Errorf("PeakQueue = %d, want 1", st.PeakQueue)
	}
	if got, want := total(drain(t, s, pullSize, nil)), 50*expectedBytes("word ", 4, tts.DefaultParams()); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}
	if st := d.Stats(); st.PeakQueue != 1 {
		t.Errorf("PeakQueue after drain = %d, want 1", st.PeakQueue)
	}
}

func TestParamsApplyToNextSlot(t *testing.T) {
	e := mock.New()
	d := newDispatcher(t, e, WithFrameSize(4), WithSlots(1))
	s := d.Open(tts.DefaultParams(), nil)

	setText(t, s, "aaaa bbbb")
	d.Sync()
	s.SetRate(340)

	chunks := drain(t, s, pullSize, nil)
	fast := tts.DefaultParams()
	fast.Rate = 340
	want := len(mock.Render("aaaa", tts.DefaultParams()))*2 + len(mock.Render(" bbbb", fast))*2
	if got := total(chunks); got != want {
		t.Errorf("total bytes = %d, want %d", got, want)
	}
}

func TestDispatcherClose(t *testing.T) {
	e := mock.New(mock.WithDelay(50 * time.Millisecond))
	d := NewDispatcher(e)
	s := d.Open(tts.DefaultParams(), nil)
	setText(t, s, "going away")

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := s.Pull(pullSize); err != io.EOF {
		t.Errorf("Pull after dispatcher Close = %v, want EOF", err)
	}

	late := d.Open(tts.DefaultParams(), nil)
	if err := late.SetText("x"); !errors.Is(err, tts.ErrSessionClosed) {
		t.Errorf("SetText on late session = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}
