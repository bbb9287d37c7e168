// Package espeak drives the espeak-ng command line synthesizer.
package espeak

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/text"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"
)

// BatchSize is the number of samples delivered per callback.
const BatchSize = 1024

// Engine runs one espeak-ng process per Synthesize call and decodes the WAV
// stream it writes to stdout.
//
// The command line tool does not report word or sentence timing, so events
// are estimated by spreading the audio over the spoken bytes of the text.
type Engine struct {
	cmd     []string
	timeout time.Duration
	format  tts.Format
	logger  *log.Logger

	// run executes the command; replaced in tests.
	run func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// New creates an engine from the configured command line.
func New(cfg tts.EspeakConfig) (*Engine, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse espeak command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: espeak command empty", tts.ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = tts.DefaultEspeakConfig().Timeout
	}
	return &Engine{
		cmd:     args,
		timeout: timeout,
		format:  tts.DefaultFormat(),
		logger:  log.Default().WithPrefix("espeak"),
		run:     runCommand,
	}, nil
}

// Name returns the command name.
func (e *Engine) Name() string { return e.cmd[0] }

// Format returns mono 16-bit audio at 22050 Hz, the espeak-ng default.
func (e *Engine) Format() tts.Format { return e.format }

// Available reports whether the command can be found.
func (e *Engine) Available() error {
	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		return tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "espeak not found", tts.ErrEngineUnavailable).
			WithContext("command", e.cmd[0])
	}
	return nil
}

// Args returns the command line used to speak with p.
func (e *Engine) Args(p tts.Params, ssml bool) []string {
	p = p.Clamp()
	args := append([]string{}, e.cmd[1:]...)
	args = append(args,
		"--stdout",
		"-p", strconv.Itoa(p.Pitch),
		"-s", strconv.Itoa(p.Rate),
		"-g", strconv.Itoa(p.Gap),
	)
	if p.Voice != tts.DefaultVoice {
		args = append(args, "-v", p.Voice)
	}
	if ssml {
		args = append(args, "-m")
	}
	return append(args, "--stdin")
}

// Synthesize speaks input and delivers the decoded audio to cb.
func (e *Engine) Synthesize(ctx context.Context, input string, p tts.Params, cb engines.Callback) error {
	ssml := text.HasMarks(input)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.run(ctx, e.cmd[0], e.Args(p, ssml), strings.NewReader(input))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tts.NewTTSError(tts.ErrorCodeEngineTimeout, "synthesis timeout", err).
				WithContext("timeout", e.timeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return tts.NewTTSError(tts.ErrorCodeEngineFailure, "espeak failed", fmt.Errorf("%w: %v", tts.ErrSynthesisFailed, err))
	}

	samples, err := e.decode(out)
	if err != nil {
		return err
	}
	e.logger.Debug("synthesized", "bytes", len(input), "samples", len(samples))

	return engines.Deliver(ctx, samples, Estimate(input, len(samples)), BatchSize, cb)
}

// decode reads the WAV stream written by espeak. The header sizes are
// placeholders when espeak writes to a pipe, so the PCM is read until EOF.
func (e *Engine) decode(out []byte) ([]int16, error) {
	dec := wav.NewDecoder(bytes.NewReader(out))
	if !dec.IsValidFile() {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "espeak output is not a WAV stream", nil)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "no PCM data in espeak output", err)
	}
	if int(dec.SampleRate) != e.format.SampleRate || int(dec.NumChans) != e.format.Channels || int(dec.BitDepth) != e.format.BitDepth {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "unexpected espeak audio format", nil).
			WithContext("sample_rate", dec.SampleRate).
			WithContext("channels", dec.NumChans).
			WithContext("bit_depth", dec.BitDepth)
	}

	pcm, err := io.ReadAll(dec.PCMChunk)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, tts.NewTTSError(tts.ErrorCodeAudioFormat, "read espeak PCM", err)
	}

	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples, nil
}

// Estimate places sentence, word and mark events for input over total
// samples, in proportion to the spoken bytes before each event.
func Estimate(input string, total int) []engines.RawEvent {
	masked, marks := text.MaskMarks(input)

	spoken := make([]int, len(input)+1)
	inTag := make([]bool, len(input))
	for _, m := range marks {
		for i := m.Start; i < m.End; i++ {
			inTag[i] = true
		}
	}
	for i := 0; i < len(input); i++ {
		spoken[i+1] = spoken[i]
		if !inTag[i] {
			spoken[i+1]++
		}
	}
	sampleAt := func(off int) int {
		if spoken[len(input)] == 0 {
			return 0
		}
		return int(int64(total) * int64(spoken[off]) / int64(spoken[len(input)]))
	}

	var events []engines.RawEvent
	for _, s := range text.Sentences(masked) {
		events = append(events, engines.RawEvent{
			Type:     engines.RawSentence,
			Position: s.Start + 1,
			Length:   s.Len(),
			Sample:   sampleAt(s.Start),
		})
	}
	for i, w := range text.Words(masked) {
		events = append(events, engines.RawEvent{
			Type:     engines.RawWord,
			Position: w.Start + 1,
			Length:   w.Len(),
			ID:       i + 1,
			Sample:   sampleAt(w.Start),
		})
	}
	for i, m := range marks {
		events = append(events, engines.RawEvent{
			Type:     engines.RawMark,
			Position: m.Start + 1,
			ID:       i + 1,
			Name:     []byte(m.Name),
			Sample:   sampleAt(m.Start),
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Sample != events[j].Sample {
			return events[i].Sample < events[j].Sample
		}
		return events[i].Position < events[j].Position
	})
	return events
}

// Voices lists the voices reported by `espeak-ng --voices`.
func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.cmd[1:]...), "--voices")
	out, err := e.run(ctx, e.cmd[0], args, nil)
	if err != nil {
		return nil, tts.NewTTSError(tts.ErrorCodeEngineFailure, "list voices", err)
	}
	return ParseVoices(bytes.NewReader(out))
}

// ParseVoices parses the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func ParseVoices(r io.Reader) ([]tts.Voice, error) {
	var voices []tts.Voice
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if header {
			header = false
			if len(fields) > 0 && fields[0] == "Pty" {
				continue
			}
		}
		if len(fields) < 5 {
			continue
		}
		gender := ""
		if parts := strings.SplitN(fields[2], "/", 2); len(parts) == 2 {
			switch parts[1] {
			case "M":
				gender = "male"
			case "F":
				gender = "female"
			}
		}
		voices = append(voices, tts.Voice{
			ID:       fields[1],
			Name:     strings.ReplaceAll(fields[3], "_", " "),
			Language: fields[1],
			Gender:   gender,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read voice list: %w", err)
	}
	return voices, nil
}

// Close is a no-op; every call runs its own process.
func (e *Engine) Close() error { return nil }

func runCommand(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w, stderr: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
