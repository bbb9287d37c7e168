package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Manager fronts a disk cache with a memory cache. Disk hits are promoted to
// memory. Without a disk path it is memory only.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	config Config
	logger *log.Logger

	stop chan struct{}
	wg   sync.WaitGroup

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates lookups across both levels.
type ManagerStats struct {
	MemoryHits int64
	DiskHits   int64
	Misses     int64
	Promotions int64
	Memory     Stats
	Disk       Stats
}

// NewManager creates a cache from cfg and starts the cleanup loop when a
// cleanup interval is configured.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		config: cfg,
		logger: log.Default().WithPrefix("cache"),
		stop:   make(chan struct{}),
	}

	if cfg.DiskPath != "" {
		disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("open disk cache: %w", err)
		}
		m.disk = disk
	}

	if cfg.TTL > 0 && cfg.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

// Get looks the key up in memory, then on disk.
func (m *Manager) Get(key string) ([]byte, Level, bool) {
	if data, ok := m.memory.Get(key); ok {
		m.count(func(s *ManagerStats) { s.MemoryHits++ })
		return data, LevelMemory, true
	}

	if m.disk != nil {
		if data, ok := m.disk.Get(key); ok {
			promoted := m.memory.Put(key, data) == nil
			m.count(func(s *ManagerStats) {
				s.DiskHits++
				if promoted {
					s.Promotions++
				}
			})
			return data, LevelDisk, true
		}
	}

	m.count(func(s *ManagerStats) { s.Misses++ })
	return nil, LevelMemory, false
}

// Put stores the value in both levels. A value too large for one level is
// still stored in the other.
func (m *Manager) Put(key string, value []byte) error {
	memErr := m.memory.Put(key, value)
	if m.disk == nil {
		return memErr
	}
	if err := m.disk.Put(key, value); err != nil {
		if memErr != nil {
			return errors.Join(memErr, err)
		}
		m.logger.Warn("disk cache write failed", "key", key, "err", err)
	}
	return nil
}

// Delete removes the key from both levels.
func (m *Manager) Delete(key string) {
	m.memory.Delete(key)
	if m.disk != nil {
		m.disk.Delete(key)
	}
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.memory.Clear()
	if m.disk != nil {
		return m.disk.Clear()
	}
	return nil
}

// Stats returns aggregated statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	stats.Memory = m.memory.Stats()
	if m.disk != nil {
		stats.Disk = m.disk.Stats()
	}
	return stats
}

// Prune removes entries older than the configured TTL.
func (m *Manager) Prune() int {
	if m.config.TTL <= 0 {
		return 0
	}
	n := m.memory.Prune(m.config.TTL)
	if m.disk != nil {
		n += m.disk.RemoveOlderThan(time.Now().Add(-m.config.TTL))
	}
	return n
}

// Close stops the cleanup loop and saves the disk index.
func (m *Manager) Close() error {
	select {
	case <-m.stop:
		return nil
	default:
		close(m.stop)
	}
	m.wg.Wait()

	if m.disk != nil {
		return m.disk.Close()
	}
	return nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if n := m.Prune(); n > 0 {
				m.logger.Debug("pruned expired entries", "count", n)
			}
		}
	}
}

func (m *Manager) count(f func(*ManagerStats)) {
	m.mu.Lock()
	f(&m.stats)
	m.mu.Unlock()
}

// Key derives a cache key from its parts. Parts are length prefixed so that
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		fmt.Fprintf(h, "%d:%s;", len(p), p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
