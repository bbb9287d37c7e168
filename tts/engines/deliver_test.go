package engines

import (
	"context"
	"errors"
	"testing"
)

func TestDeliverBatches(t *testing.T) {
	samples := make([]int16, 10)
	events := []RawEvent{
		{Type: RawWord, Position: 1, Sample: 0},
		{Type: RawWord, Position: 5, Sample: 4},
		{Type: RawMark, Position: 9, Sample: 10},
	}

	var sizes []int
	var got [][]RawEvent
	err := Deliver(context.Background(), samples, events, 4, func(s []int16, evs []RawEvent) {
		sizes = append(sizes, len(s))
		got = append(got, evs)
	})
	if err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}

	if len(sizes) != 3 || sizes[0] != 4 || sizes[1] != 4 || sizes[2] != 2 {
		t.Fatalf("batch sizes = %v, want [4 4 2]", sizes)
	}
	if len(got[0]) != 1 || got[0][0].Position != 1 {
		t.Errorf("batch 0 events = %+v", got[0])
	}
	if len(got[1]) != 1 || got[1][0].Position != 5 {
		t.Errorf("batch 1 events = %+v", got[1])
	}
	last := got[2]
	if len(last) != 2 || last[0].Type != RawMark || last[1].Type != RawEnd || last[1].Sample != 10 {
		t.Errorf("last batch events = %+v, want mark then end at 10", last)
	}
}

func TestDeliverEmpty(t *testing.T) {
	calls := 0
	err := Deliver(context.Background(), nil, nil, 0, func(s []int16, evs []RawEvent) {
		calls++
		if len(s) != 0 || len(evs) != 1 || evs[0].Type != RawEnd {
			t.Errorf("unexpected delivery: %d samples, events %+v", len(s), evs)
		}
	})
	if err != nil || calls != 1 {
		t.Errorf("Deliver() = %v after %d calls, want one call", err, calls)
	}
}

func TestDeliverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Deliver(ctx, make([]int16, 8), nil, 2, func([]int16, []RawEvent) {
		t.Error("callback should not run after cancel")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Deliver() = %v, want context.Canceled", err)
	}
}

func TestRawEventType(t *testing.T) {
	if RawWord.EventType().String() != "word" || RawEnd.EventType().String() != "end" {
		t.Error("raw event types should map onto slot event types")
	}
}
