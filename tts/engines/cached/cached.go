// Package cached wraps an engine with a two-level audio cache so repeated
// text is not synthesized twice.
package cached

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/spin/internal/cache"
	"github.com/dgnsrekt/spin/tts"
	"github.com/dgnsrekt/spin/tts/engines"
)

// BatchSize is the number of samples per callback when replaying a hit.
const BatchSize = 4096

// Store is the cache used by Engine.
type Store interface {
	Get(key string) ([]byte, cache.Level, bool)
	Put(key string, value []byte) error
}

// Engine serves Synthesize calls from a Store and records misses into it.
// Failed or canceled calls are never stored.
type Engine struct {
	engines.Engine
	store  Store
	logger *log.Logger
}

type entry struct {
	Samples []int16
	Events  []event
}

type event struct {
	Type     engines.RawEventType
	Position int
	Length   int
	ID       int
	Name     string
	Sample   int
}

// New wraps e with store.
func New(e engines.Engine, store Store) *Engine {
	return &Engine{
		Engine: e,
		store:  store,
		logger: log.Default().WithPrefix("cached"),
	}
}

// Key returns the cache key for text spoken with p by the wrapped engine.
// The track mode does not change the audio and is not part of the key.
func (e *Engine) Key(text string, p tts.Params) string {
	p = p.Clamp()
	return cache.Key(
		e.Engine.Name(),
		p.Voice,
		strconv.Itoa(p.Pitch),
		strconv.Itoa(p.Rate),
		strconv.Itoa(p.Gap),
		text,
	)
}

// Synthesize replays a cached rendering of text or synthesizes and stores it.
func (e *Engine) Synthesize(ctx context.Context, text string, p tts.Params, cb engines.Callback) error {
	key := e.Key(text, p)

	if data, level, ok := e.store.Get(key); ok {
		ent, err := decode(data)
		if err == nil {
			e.logger.Debug("hit", "level", level, "bytes", len(text))
			return engines.Deliver(ctx, ent.Samples, ent.raw(), BatchSize, cb)
		}
		e.logger.Warn("discarding undecodable entry", "err", err)
	}

	var rec entry
	ended := false
	err := e.Engine.Synthesize(ctx, text, p, func(samples []int16, events []engines.RawEvent) {
		if !ended {
			rec.Samples = append(rec.Samples, samples...)
			for _, ev := range events {
				if ev.Type == engines.RawEnd {
					ended = true
					break
				}
				rec.Events = append(rec.Events, event{
					Type:     ev.Type,
					Position: ev.Position,
					Length:   ev.Length,
					ID:       ev.ID,
					Name:     string(ev.Name),
					Sample:   ev.Sample,
				})
			}
		}
		cb(samples, events)
	})
	if err != nil || !ended {
		return err
	}

	data, err := encode(rec)
	if err != nil {
		e.logger.Warn("encode entry", "err", err)
		return nil
	}
	if err := e.store.Put(key, data); err != nil {
		e.logger.Debug("not cached", "err", err)
	}
	return nil
}

func (ent entry) raw() []engines.RawEvent {
	events := make([]engines.RawEvent, len(ent.Events))
	for i, ev := range ent.Events {
		events[i] = engines.RawEvent{
			Type:     ev.Type,
			Position: ev.Position,
			Length:   ev.Length,
			ID:       ev.ID,
			Sample:   ev.Sample,
		}
		if ev.Name != "" {
			events[i].Name = []byte(ev.Name)
		}
	}
	return events
}

func encode(ent entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(ent); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (entry, error) {
	var ent entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ent); err != nil {
		return entry{}, fmt.Errorf("%w: %v", cache.ErrCacheCorrupted, err)
	}
	return ent, nil
}
