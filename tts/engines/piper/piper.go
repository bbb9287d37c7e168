// Package piper drives the piper neural speech synthesizer.
package piper

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/engines/espeak"
	"github.com/dgnsrekt/spin/tts/text"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-shellwords"
)

// BatchSize is the number of samples delivered per callback.
const BatchSize = 1024

// Engine uses a fresh piper process per Synthesize call and reads the raw
// PCM it writes to stdout.
//
// Piper has no pitch control and reports no timing. Rate maps to the
// length scale, gap to the silence after each sentence, and events are
// estimated the same way as for espeak.
type Engine struct {
	cmd     []string
	model   string
	timeout time.Duration
	format  tts.Format
	logger  *log.Logger

	// run executes the command; replaced in tests.
	run func(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, error)
}

// New creates an engine from cfg.
func New(cfg tts.PiperConfig) (*Engine, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = true
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse piper command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: piper command empty", tts.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: piper model not set", tts.ErrInvalidConfig)
	}
	defaults := tts.DefaultPiperConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaults.SampleRate
	}

	f := tts.DefaultFormat()
	f.SampleRate = cfg.SampleRate
	return &Engine{
		cmd:     args,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		format:  f,
		logger:  log.Default().WithPrefix("piper"),
		run:     runCommand,
	}, nil
}

// Name returns the command name.
func (e *Engine) Name() string { return e.cmd[0] }

// Format returns mono 16-bit audio at the model's sample rate.
func (e *Engine) Format() tts.Format { return e.format }

// Available reports whether the command and the model can be found.
func (e *Engine) Available() error {
	if _, err := exec.LookPath(e.cmd[0]); err != nil {
		return tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "piper not found", tts.ErrEngineUnavailable).
			WithContext("command", e.cmd[0])
	}
	if _, err := os.Stat(e.model); err != nil {
		return tts.NewTTSError(tts.ErrorCodeEngineUnavailable, "piper model not found", tts.ErrEngineUnavailable).
			WithContext("model", e.model)
	}
	return nil
}

// Model returns the model file used for voice. The default voice, and any
// voice without a model file next to the configured one, use the configured
// model.
func (e *Engine) Model(voice string) string {
	if voice == "" || voice == tts.DefaultVoice {
		return e.model
	}
	path := filepath.Join(filepath.Dir(e.model), voice+".onnx")
	if _, err := os.Stat(path); err != nil {
		return e.model
	}
	return path
}

// Args returns the command line used to speak with p.
func (e *Engine) Args(p tts.Params) []string {
	p = p.Clamp()
	scale := float64(tts.DefaultRate) / float64(p.Rate)
	args := append([]string{}, e.cmd[1:]...)
	return append(args,
		"--model", e.Model(p.Voice),
		"--output-raw",
		"--length_scale", strconv.FormatFloat(scale, 'f', 3, 64),
		"--sentence_silence", strconv.FormatFloat(float64(p.Gap)/100, 'f', 2, 64),
	)
}

// Synthesize speaks input and delivers the audio to cb.
func (e *Engine) Synthesize(ctx context.Context, input string, p tts.Params, cb engines.Callback) error {
	// piper reads one utterance per line and knows nothing of mark tags
	spoken, _ := text.MaskMarks(input)
	spoken = strings.ReplaceAll(spoken, "\n", " ")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out, err := e.run(ctx, e.cmd[0], e.Args(p), strings.NewReader(spoken+"\n"))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tts.NewTTSError(tts.ErrorCodeEngineTimeout, "synthesis timeout", err).
				WithContext("timeout", e.timeout)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return tts.NewTTSError(tts.ErrorCodeEngineFailure, "piper failed", fmt.Errorf("%w: %v", tts.ErrSynthesisFailed, err))
	}
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[2*i:]))
	}
	e.logger.Debug("synthesized", "bytes", len(input), "audio", humanize.IBytes(uint64(len(out))))

	return engines.Deliver(ctx, samples, espeak.Estimate(input, len(samples)), BatchSize, cb)
}

// Voices lists the models found next to the configured one.
func (e *Engine) Voices(context.Context) ([]tts.Voice, error) {
	paths, err := filepath.Glob(filepath.Join(filepath.Dir(e.model), "*.onnx"))
	if err != nil {
		return nil, fmt.Errorf("list piper models: %w", err)
	}
	sort.Strings(paths)

	voices := make([]tts.Voice, 0, len(paths))
	for _, p := range paths {
		id := strings.TrimSuffix(filepath.Base(p), ".onnx")
		voices = append(voices, tts.Voice{ID: id, Name: id, Language: language(id)})
	}
	return voices, nil
}

// language extracts the locale from model names such as
// en_US-lessac-medium.
func language(id string) string {
	lang, _, _ := strings.Cut(id, "-")
	return strings.ToLower(strings.ReplaceAll(lang, "_", "-"))
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
	if stdout.Len() == 0 {
		return nil, errors.New("no audio generated")
	}
	return stdout.Bytes(), nil
}
