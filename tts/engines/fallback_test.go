package engines_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
	"github.com/dgnsrekt/spin/tts/engines/mock"
)

func discard([]int16, []engines.RawEvent) {}

// TestFallbackEngine tests the fallback mechanism
func TestFallbackEngine(t *testing.T) {
	primary := mock.New()
	primary.SetFailure(errors.New("primary engine failure"))
	secondary := mock.New()

	engine, err := engines.NewFallbackEngine(primary, secondary, 2)
	if err != nil {
		t.Fatalf("NewFallbackEngine failed: %v", err)
	}
	ctx := context.Background()

	// First attempt fails (count = 1)
	if err := engine.Synthesize(ctx, "test 1", tts.DefaultParams(), discard); err == nil {
		t.Error("Expected first attempt to fail")
	}

	// Second attempt switches to the fallback
	var samples int
	err = engine.Synthesize(ctx, "test 2", tts.DefaultParams(), func(s []int16, _ []engines.RawEvent) {
		samples += len(s)
	})
	if err != nil {
		t.Errorf("Expected second attempt to succeed with fallback: %v", err)
	}
	if samples == 0 {
		t.Error("Expected audio to be generated")
	}

	if status := engine.Status(); status != "Using fallback engine (primary failed 2 times)" {
		t.Errorf("Unexpected status: %s", status)
	}

	if err := engine.Synthesize(ctx, "test 3", tts.DefaultParams(), discard); err != nil {
		t.Errorf("Expected subsequent calls to use fallback: %v", err)
	}
	if primary.CallCount() != 2 || secondary.CallCount() != 2 {
		t.Errorf("calls primary=%d secondary=%d, want 2 and 2", primary.CallCount(), secondary.CallCount())
	}

	engine.Reset()
	if status := engine.Status(); status != "Using primary engine (failures: 0/2)" {
		t.Errorf("Unexpected status after reset: %s", status)
	}
}

func TestFallbackEngineRecovery(t *testing.T) {
	primary := mock.New()
	engine, err := engines.NewFallbackEngine(primary, mock.New(), 3)
	if err != nil {
		t.Fatalf("NewFallbackEngine failed: %v", err)
	}

	primary.SetFailure(errors.New("flaky"))
	_ = engine.Synthesize(context.Background(), "x", tts.DefaultParams(), discard)
	primary.ClearFailure()

	if err := engine.Synthesize(context.Background(), "x", tts.DefaultParams(), discard); err != nil {
		t.Fatalf("Synthesize after recovery: %v", err)
	}
	if status := engine.Status(); status != "Using primary engine (failures: 0/3)" {
		t.Errorf("failure count should reset on success, got %s", status)
	}
}
