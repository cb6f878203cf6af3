package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rawblock/gravelpit/internal/analyzer"
	"github.com/rawblock/gravelpit/internal/distributor"
	"github.com/rawblock/gravelpit/internal/partition"
	"github.com/rawblock/gravelpit/internal/sequencer"
	"github.com/rawblock/gravelpit/internal/state"
	"github.com/rawblock/gravelpit/pkg/models"
)

const (
	hashA = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	hashB = "356a192b7913b04c54574d18c28d46e6395428ab"
)

func newTestDriver(t *testing.T) (*Driver, string) {
	t.Helper()
	dir := t.TempDir()

	st, err := state.Open(filepath.Join(dir, "state.json"))
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	registry := sequencer.NewRegistry(nil, nil)
	cohorts := analyzer.NewCohortRegistry(nil)
	discover := analyzer.NewDiscoveryRegistry(nil)

	cfg := Config{
		WorkDir:               dir,
		CrackedLogPath:        filepath.Join(dir, "cracked.txt"),
		AccumulatedRootsPath:  filepath.Join(dir, "roots.txt"),
		CompositeWordlistPath: filepath.Join(dir, "composite.txt"),
		CohortWordlistDir:     dir,
		RulesPath:             filepath.Join(dir, "rules.txt"),
		MinPatternFrequency:   1,
		TopKSuffixes:          5,
	}
	d := New(cfg, st, registry, sequencer.AssetMap{}, nil, nil, nil, cohorts, discover, nil, nil)
	return d, dir
}

func TestFilterBatchWithoutBaselineKeepsAllHashes(t *testing.T) {
	d, dir := newTestDriver(t)

	gravelPath := filepath.Join(dir, "batch-0001.txt")
	if err := os.WriteFile(gravelPath, []byte(hashA+"\n"+hashB+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	candidate, err := d.filterBatch(1, gravelPath)
	if err != nil {
		t.Fatalf("filterBatch: %v", err)
	}
	if len(candidate.Hashes) != 2 {
		t.Fatalf("got %d hashes, want 2", len(candidate.Hashes))
	}
}

func TestFilterBatchSkipsMalformedLines(t *testing.T) {
	d, dir := newTestDriver(t)

	gravelPath := filepath.Join(dir, "batch-0002.txt")
	if err := os.WriteFile(gravelPath, []byte(hashA+"\nnot-a-hash\n"+hashB+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	candidate, err := d.filterBatch(2, gravelPath)
	if err != nil {
		t.Fatalf("filterBatch: %v", err)
	}
	if len(candidate.Hashes) != 2 {
		t.Fatalf("got %d hashes, want 2 after skipping the malformed line", len(candidate.Hashes))
	}
}

func TestAnalyzeAndFeedbackWithNoFreshCracksIsZeroSummary(t *testing.T) {
	d, _ := newTestDriver(t)

	if err := d.state.Init(7, 10, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.AnalyzeAndFeedback(7); err != nil {
		t.Fatalf("AnalyzeAndFeedback: %v", err)
	}

	batch := d.state.Get(7)
	if batch.Feedback.NewRootsDiscovered != 0 {
		t.Fatalf("NewRootsDiscovered = %d, want 0", batch.Feedback.NewRootsDiscovered)
	}
}

func TestAnalyzeAndFeedbackAcceptsStructuredRootAndGrowsAccumulatedRoots(t *testing.T) {
	d, dir := newTestDriver(t)

	if err := d.state.Init(9, 10, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	d.freshCracks[9] = []models.CrackedRecord{
		{Hash: hashA, Plain: "dragon2024"},
	}

	if err := d.AnalyzeAndFeedback(9); err != nil {
		t.Fatalf("AnalyzeAndFeedback: %v", err)
	}

	batch := d.state.Get(9)
	if batch.Feedback.NewRootsDiscovered != 1 {
		t.Fatalf("NewRootsDiscovered = %d, want 1", batch.Feedback.NewRootsDiscovered)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "roots.txt"))
	if err != nil {
		t.Fatalf("ReadFile roots.txt: %v", err)
	}
	if string(raw) != "dragon\n" {
		t.Fatalf("roots.txt = %q, want %q", raw, "dragon\n")
	}
}

func TestRunConsolidatedAttackSkipsEmptyChunkWithoutDispatching(t *testing.T) {
	d, _ := newTestDriver(t)

	d.sand[1] = nil
	d.sand[2] = nil

	recipe := models.AttackRecipe{Name: "mopup-rules"}
	if err := d.RunConsolidatedAttack(context.Background(), 99, []uint32{1, 2}, recipe); err != nil {
		t.Fatalf("RunConsolidatedAttack on an empty chunk should be a no-op, got: %v", err)
	}
}

func TestFilterBatchResumesFromSandMirrorWhenBitmapMarksShardComplete(t *testing.T) {
	d, dir := newTestDriver(t)

	bitmap, err := partition.OpenCompletionBitmap(filepath.Join(dir, "bitmap.json"))
	if err != nil {
		t.Fatalf("OpenCompletionBitmap: %v", err)
	}
	d.bitmap = bitmap

	// The sand mirror holds only hashA, simulating a prior run that already
	// filtered hashB out before crashing.
	if err := distributor.WriteSandFile(d.localSandPath(3), []models.Hash{hashA}); err != nil {
		t.Fatalf("WriteSandFile: %v", err)
	}
	if err := bitmap.MarkComplete(3); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	gravelPath := filepath.Join(dir, "batch-0003.txt")
	if err := os.WriteFile(gravelPath, []byte(hashA+"\n"+hashB+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	candidate, err := d.filterBatch(3, gravelPath)
	if err != nil {
		t.Fatalf("filterBatch: %v", err)
	}
	if len(candidate.Hashes) != 1 || candidate.Hashes[0] != hashA {
		t.Fatalf("filterBatch did not resume from the sand mirror, got %v", candidate.Hashes)
	}
}

func TestFilterBatchFallsBackToFilteringWhenBitmapMarkedButSandMirrorMissing(t *testing.T) {
	d, dir := newTestDriver(t)

	bitmap, err := partition.OpenCompletionBitmap(filepath.Join(dir, "bitmap.json"))
	if err != nil {
		t.Fatalf("OpenCompletionBitmap: %v", err)
	}
	d.bitmap = bitmap
	if err := bitmap.MarkComplete(4); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}

	gravelPath := filepath.Join(dir, "batch-0004.txt")
	if err := os.WriteFile(gravelPath, []byte(hashA+"\n"+hashB+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	candidate, err := d.filterBatch(4, gravelPath)
	if err != nil {
		t.Fatalf("filterBatch: %v", err)
	}
	if len(candidate.Hashes) != 2 {
		t.Fatalf("got %d hashes, want 2 after falling back to re-filtering", len(candidate.Hashes))
	}
}

func TestAnalyzeAndFeedbackAcceptsRootAfterStrippingDigitNoise(t *testing.T) {
	d, _ := newTestDriver(t)

	if err := d.state.Init(11, 10, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	// Whole-string entropy is high from the digit padding, but the root left
	// after stripping the leading/trailing digit runs is a plain word and
	// must still be accepted.
	d.freshCracks[11] = []models.CrackedRecord{
		{Hash: hashA, Plain: "83910restaurant20384"},
	}

	if err := d.AnalyzeAndFeedback(11); err != nil {
		t.Fatalf("AnalyzeAndFeedback: %v", err)
	}

	batch := d.state.Get(11)
	if batch.Feedback.NewRootsDiscovered != 1 {
		t.Fatalf("NewRootsDiscovered = %d, want 1 for a digit-padded word", batch.Feedback.NewRootsDiscovered)
	}
}

func TestAnalyzeAndFeedbackSkipsHighEntropyRoot(t *testing.T) {
	d, _ := newTestDriver(t)

	if err := d.state.Init(12, 10, nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	d.freshCracks[12] = []models.CrackedRecord{
		{Hash: hashA, Plain: "kdjfoqpzmvwlexbuyth"},
	}

	if err := d.AnalyzeAndFeedback(12); err != nil {
		t.Fatalf("AnalyzeAndFeedback: %v", err)
	}

	batch := d.state.Get(12)
	if batch.Feedback.NewRootsDiscovered != 0 {
		t.Fatalf("NewRootsDiscovered = %d, want 0 for a genuinely random root", batch.Feedback.NewRootsDiscovered)
	}
}
