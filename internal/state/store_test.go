package state

import (
	"path/filepath"
	"testing"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestInitIsIdempotent(t *testing.T) {
	s, _ := openTestStore(t)
	order := []string{"dict-rockyou", "mask-d8", "combinator"}

	if err := s.Init(1, 100, order); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Init(1, 999, []string{"different"}); err != nil {
		t.Fatalf("second Init: %v", err)
	}

	b := s.Get(1)
	if b.HashCount != 100 {
		t.Fatalf("second Init overwrote record: hashCount=%d, want 100", b.HashCount)
	}
	if len(b.AttacksRemaining) != 3 {
		t.Fatalf("second Init overwrote attack order: %v", b.AttacksRemaining)
	}
}

func TestCompleteAttackMovesBetweenLists(t *testing.T) {
	s, _ := openTestStore(t)
	order := []string{"dict-rockyou", "mask-d8"}
	if err := s.Init(2, 50, order); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.StartAttack(2, "dict-rockyou", "session-2"); err != nil {
		t.Fatalf("StartAttack: %v", err)
	}
	if err := s.CompleteAttack(2, "dict-rockyou", 10, 12.5); err != nil {
		t.Fatalf("CompleteAttack: %v", err)
	}

	b := s.Get(2)
	if b.Cracked != 10 {
		t.Fatalf("Cracked = %d, want 10", b.Cracked)
	}
	if len(b.AttacksApplied) != 1 || b.AttacksApplied[0] != "dict-rockyou" {
		t.Fatalf("AttacksApplied = %v", b.AttacksApplied)
	}
	if len(b.AttacksRemaining) != 1 || b.AttacksRemaining[0] != "mask-d8" {
		t.Fatalf("AttacksRemaining = %v", b.AttacksRemaining)
	}
	if b.Status != models.StatusInProgress {
		t.Fatalf("Status = %v, want in-progress while attacks remain", b.Status)
	}
}

func TestCompleteAttackIsUnique(t *testing.T) {
	s, _ := openTestStore(t)
	order := []string{"dict-rockyou"}
	if err := s.Init(3, 10, order); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if err := s.CompleteAttack(3, "dict-rockyou", 4, 1.0); err != nil {
		t.Fatalf("first CompleteAttack: %v", err)
	}
	if err := s.CompleteAttack(3, "dict-rockyou", 4, 1.0); err != nil {
		t.Fatalf("duplicate CompleteAttack should be a no-op, got error: %v", err)
	}

	b := s.Get(3)
	if b.Cracked != 4 {
		t.Fatalf("Cracked = %d after duplicate completion, want 4 (no double count)", b.Cracked)
	}
	if len(b.AttacksApplied) != 1 {
		t.Fatalf("AttacksApplied = %v, duplicate completion must not append twice", b.AttacksApplied)
	}
}

func TestBatchCompletesWhenRemainingExhausted(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Init(4, 10, []string{"only-attack"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.CompleteAttack(4, "only-attack", 1, 0.1); err != nil {
		t.Fatalf("CompleteAttack: %v", err)
	}
	b := s.Get(4)
	if b.Status != models.StatusCompleted {
		t.Fatalf("Status = %v, want completed", b.Status)
	}
}

func TestUpdateCrackedRejectsDecrease(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Init(5, 10, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.UpdateCracked(5, 7); err != nil {
		t.Fatalf("UpdateCracked: %v", err)
	}
	if err := s.UpdateCracked(5, 3); err != nil {
		t.Fatalf("UpdateCracked(decrease): %v", err)
	}
	b := s.Get(5)
	if b.Cracked != 7 {
		t.Fatalf("Cracked = %d, want monotonic floor of 7", b.Cracked)
	}
}

func TestOperationsOnUnknownBatchFail(t *testing.T) {
	s, _ := openTestStore(t)
	err := s.CompleteAttack(99, "dict-rockyou", 1, 1.0)
	if err == nil {
		t.Fatal("expected error for unknown batch")
	}
	if !failure.Is(err, failure.StateCorruption) {
		t.Fatalf("expected StateCorruption, got %v", err)
	}
}

func TestReopenResumesFromDisk(t *testing.T) {
	s, path := openTestStore(t)
	if err := s.Init(6, 20, []string{"dict-rockyou", "mask-d8"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.CompleteAttack(6, "dict-rockyou", 5, 3.0); err != nil {
		t.Fatalf("CompleteAttack: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	b := reopened.Get(6)
	if b == nil {
		t.Fatal("batch 6 missing after reopen")
	}
	if b.Cracked != 5 {
		t.Fatalf("Cracked after reopen = %d, want 5", b.Cracked)
	}
	if len(b.AttacksRemaining) != 1 || b.AttacksRemaining[0] != "mask-d8" {
		t.Fatalf("AttacksRemaining after reopen = %v", b.AttacksRemaining)
	}
	if reopened.IsAttackApplied(6, "mask-d8") {
		t.Fatal("mask-d8 should not be applied yet")
	}
	if !reopened.IsAttackApplied(6, "dict-rockyou") {
		t.Fatal("dict-rockyou should be marked applied after reopen")
	}
}

func TestReorderAttacksPreservesSetOrderedByRank(t *testing.T) {
	s, _ := openTestStore(t)
	order := []string{"a", "b", "c"}
	if err := s.Init(7, 10, order); err != nil {
		t.Fatalf("Init: %v", err)
	}

	rank := map[string]float64{"a": 1.0, "b": 9.0, "c": 5.0}
	if err := s.ReorderAttacks(7, func(name string) float64 { return rank[name] }); err != nil {
		t.Fatalf("ReorderAttacks: %v", err)
	}

	b := s.Get(7)
	want := []string{"b", "c", "a"}
	if len(b.AttacksRemaining) != len(want) {
		t.Fatalf("AttacksRemaining = %v, want %v", b.AttacksRemaining, want)
	}
	for i, name := range want {
		if b.AttacksRemaining[i] != name {
			t.Fatalf("AttacksRemaining = %v, want %v", b.AttacksRemaining, want)
		}
	}
}

func TestStatsProviderAggregatesAcrossBatches(t *testing.T) {
	s, _ := openTestStore(t)
	if err := s.Init(10, 10, []string{"dict-rockyou"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Init(11, 10, []string{"dict-rockyou"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.CompleteAttack(10, "dict-rockyou", 3, 2.0); err != nil {
		t.Fatalf("CompleteAttack: %v", err)
	}
	if err := s.CompleteAttack(11, "dict-rockyou", 7, 4.0); err != nil {
		t.Fatalf("CompleteAttack: %v", err)
	}

	stats := s.StatsProvider()
	got, ok := stats["dict-rockyou"]
	if !ok {
		t.Fatal("missing stats for dict-rockyou")
	}
	if got.TotalNewCracks != 10 || got.TimesApplied != 2 {
		t.Fatalf("stats = %+v, want TotalNewCracks=10 TimesApplied=2", got)
	}
}
