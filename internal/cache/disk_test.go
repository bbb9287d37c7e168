package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDiskCache_Compression(t *testing.T) {
	tests := []struct {
		name       string
		level      int
		size       int
		compressed bool
	}{
		{"small value stays raw", 3, 100, false},
		{"large value compressed", 3, 8192, true},
		{"compression disabled", 0, 8192, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, err := NewDiskCache(t.TempDir(), 1<<20, tt.level)
			if err != nil {
				t.Fatal(err)
			}
			defer dc.Close()

			value := bytes.Repeat([]byte{1, 2, 3, 4}, tt.size/4)
			if err := dc.Put("k", value); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if got := dc.index["k"].Compressed; got != tt.compressed {
				t.Errorf("Compressed = %v, want %v", got, tt.compressed)
			}
			data, ok := dc.Get("k")
			if !ok || !bytes.Equal(data, value) {
				t.Errorf("Get returned %d bytes, ok=%v", len(data), ok)
			}
		})
	}
}

func TestDiskCache_Eviction(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 250, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("a", make([]byte, 100))
	time.Sleep(5 * time.Millisecond)
	dc.Put("b", make([]byte, 100))
	time.Sleep(5 * time.Millisecond)
	dc.Get("a")
	dc.Put("c", make([]byte, 100))

	if _, ok := dc.Get("b"); ok {
		t.Error("least recently used entry b survived")
	}
	if dc.Size() != 200 {
		t.Errorf("Size = %d, want 200", dc.Size())
	}
	if err := dc.Put("huge", make([]byte, 300)); err != ErrItemTooLarge {
		t.Errorf("err = %v, want ErrItemTooLarge", err)
	}
}

func TestDiskCache_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("k", bytes.Repeat([]byte("abc"), 1000))
	if err := os.WriteFile(filepath.Join(dir, "k.bin"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := dc.Get("k"); ok {
		t.Error("corrupt entry returned as a hit")
	}
	if dc.Stats().ItemCount != 0 {
		t.Error("corrupt entry not dropped from index")
	}
}

func TestDiskCache_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, indexFile), []byte("not gob"), 0o644); err != nil {
		t.Fatal(err)
	}
	dc, err := NewDiskCache(dir, 1<<20, 0)
	if err != nil {
		t.Fatalf("corrupt index should not fail open: %v", err)
	}
	defer dc.Close()

	if dc.Stats().ItemCount != 0 {
		t.Error("expected empty index")
	}
}

func TestDiskCache_RemoveOlderThan(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 1<<20, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close()

	dc.Put("old", []byte("1"))
	cutoff := time.Now().Add(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	dc.Put("new", []byte("2"))

	if n := dc.RemoveOlderThan(cutoff); n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
	if _, ok := dc.Get("new"); !ok {
		t.Error("new entry removed")
	}
}
