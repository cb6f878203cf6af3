package partition

import (
	"path/filepath"
	"testing"
)

func TestCompletionBitmapOpenMissingFileStartsEmpty(t *testing.T) {
	b, err := OpenCompletionBitmap(filepath.Join(t.TempDir(), "bitmap.json"))
	if err != nil {
		t.Fatalf("OpenCompletionBitmap: %v", err)
	}
	if b.IsComplete(1) {
		t.Fatalf("IsComplete(1) = true on a fresh bitmap, want false")
	}
}

func TestCompletionBitmapMarkCompletePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bitmap.json")

	b, err := OpenCompletionBitmap(path)
	if err != nil {
		t.Fatalf("OpenCompletionBitmap: %v", err)
	}
	if err := b.MarkComplete(3); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if err := b.MarkComplete(7); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	reopened, err := OpenCompletionBitmap(path)
	if err != nil {
		t.Fatalf("re-OpenCompletionBitmap: %v", err)
	}
	if !reopened.IsComplete(3) || !reopened.IsComplete(7) {
		t.Fatalf("completed shards did not survive reopen")
	}
	if reopened.IsComplete(4) {
		t.Fatalf("IsComplete(4) = true, want false for an untouched shard")
	}
}
