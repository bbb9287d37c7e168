// Package cache provides a two-level byte cache for synthesized audio: an
// in-memory LRU in front of a compressed disk store that persists across
// runs.
package cache
