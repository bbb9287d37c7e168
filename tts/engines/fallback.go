package engines

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/tts"
)

// FallbackEngine wraps a primary engine with automatic fallback to a
// secondary engine when the primary fails consistently. Both engines must
// produce the same format.
type FallbackEngine struct {
	primary       Engine
	fallback      Engine
	failures      int
	maxFailures   int
	usingFallback bool
	logger        *log.Logger
	mu            sync.RWMutex
}

// NewFallbackEngine creates a new engine with automatic fallback capability.
func NewFallbackEngine(primary, fallback Engine, maxFailures int) (*FallbackEngine, error) {
	if primary.Format() != fallback.Format() {
		return nil, fmt.Errorf("%w: %s and %s produce different formats",
			tts.ErrInvalidEngine, primary.Name(), fallback.Name())
	}
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
		logger:      log.Default().WithPrefix("fallback"),
	}, nil
}

// Name returns the name of the active engine.
func (f *FallbackEngine) Name() string {
	return f.active().Name()
}

// Format returns the shared format of both engines.
func (f *FallbackEngine) Format() tts.Format {
	return f.primary.Format()
}

// Synthesize speaks text with the active engine. A primary failure that
// happens before any audio was delivered is retried on the fallback once
// the primary has failed maxFailures times in a row.
func (f *FallbackEngine) Synthesize(ctx context.Context, text string, p tts.Params, cb Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.usingFallback {
		return f.fallback.Synthesize(ctx, text, p, cb)
	}

	delivered := false
	err := f.primary.Synthesize(ctx, text, p, func(samples []int16, events []RawEvent) {
		delivered = true
		cb(samples, events)
	})
	if err == nil {
		if f.failures > 0 {
			f.logger.Info("primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	f.failures++
	f.logger.Warn("primary engine failed", "attempt", f.failures, "max", f.maxFailures, "err", err)

	if f.failures < f.maxFailures {
		return err
	}

	f.logger.Warn("switching to fallback engine", "engine", f.fallback.Name())
	f.usingFallback = true
	if delivered {
		return err
	}
	if ferr := f.fallback.Synthesize(ctx, text, p, cb); ferr != nil {
		return fmt.Errorf("both engines failed: %w", ferr)
	}
	return nil
}

// Voices returns voices from the active engine.
func (f *FallbackEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return f.active().Voices(ctx)
}

// Close closes both engines.
func (f *FallbackEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if err := f.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close: %w", err))
	}
	if err := f.fallback.Close(); err != nil {
		errs = append(errs, fmt.Errorf("fallback close: %w", err))
	}
	return errors.Join(errs...)
}

// Reset switches back to the primary engine.
func (f *FallbackEngine) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.failures = 0
	f.usingFallback = false
	f.logger.Info("reset to primary engine")
}

// Status returns the current engine status.
func (f *FallbackEngine) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.usingFallback {
		return fmt.Sprintf("Using fallback engine (primary failed %d times)", f.failures)
	}
	return fmt.Sprintf("Using primary engine (failures: %d/%d)", f.failures, f.maxFailures)
}

func (f *FallbackEngine) active() Engine {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}
