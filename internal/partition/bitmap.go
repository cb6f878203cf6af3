package partition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CompletionBitmap tracks, per shard index, whether baseline-filtering has
// finished for that shard, so a crash mid-universe resumes without
// re-filtering completed work. Persisted with the same write-temp-then-
// rename discipline used by the state document.
type CompletionBitmap struct {
	mu   sync.Mutex
	path string
	done map[uint32]bool
}

type bitmapDocument struct {
	Completed []uint32 `json:"completed"`
}

// OpenCompletionBitmap loads path, or starts empty if it doesn't exist.
func OpenCompletionBitmap(path string) (*CompletionBitmap, error) {
	b := &CompletionBitmap{path: path, done: make(map[uint32]bool)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading completion bitmap %s: %w", path, err)
	}
	var doc bitmapDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing completion bitmap %s: %w", path, err)
	}
	for _, id := range doc.Completed {
		b.done[id] = true
	}
	return b, nil
}

// IsComplete reports whether shard has already been filtered.
func (b *CompletionBitmap) IsComplete(shard uint32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done[shard]
}

// MarkComplete records shard as filtered and persists immediately.
func (b *CompletionBitmap) MarkComplete(shard uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done[shard] = true
	return b.flushLocked()
}

func (b *CompletionBitmap) flushLocked() error {
	doc := bitmapDocument{Completed: make([]uint32, 0, len(b.done))}
	for id := range b.done {
		doc.Completed = append(doc.Completed, id)
	}

	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".bitmap-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp bitmap file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding completion bitmap: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp bitmap file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp bitmap file: %w", err)
	}
	return os.Rename(tmpPath, b.path)
}
