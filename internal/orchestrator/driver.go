// Package orchestrator drives the full pipeline — partition, filter,
// sequence, distribute, analyze, feedback — as one cooperative,
// single-threaded pass over a hash universe. The only concurrent actor is
// the remote worker process the Executor supervises; the orchestrator
// itself never runs two attacks against the same batch at once, checking
// an abort flag between batches rather than preempting one in progress.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rawblock/gravelpit/internal/analyzer"
	"github.com/rawblock/gravelpit/internal/distributor"
	"github.com/rawblock/gravelpit/internal/forensics"
	"github.com/rawblock/gravelpit/internal/partition"
	"github.com/rawblock/gravelpit/internal/sequencer"
	"github.com/rawblock/gravelpit/internal/state"
	"github.com/rawblock/gravelpit/internal/statusapi"
	"github.com/rawblock/gravelpit/internal/worker"
	"github.com/rawblock/gravelpit/pkg/models"
)

// Config parameterizes one Driver's working paths and tuning knobs, all
// sourced from internal/config environment helpers by the caller (the
// CLI), never read directly from the environment here.
type Config struct {
	WorkDir                string
	RemoteWorkDir          string // remote directory the worker host reads sand files from and writes attack output into
	CrackedLogPath         string
	AccumulatedRootsPath   string
	CompositeWordlistPath  string
	CohortWordlistDir      string
	RulesPath              string
	RecentYears            []int
	MinPatternFrequency    int
	TopKSuffixes           int
	FeedbackAttackPrefixes []string
	PollInterval           time.Duration
	MaxWait                time.Duration
}

// BatchFile names one partitioned batch file awaiting baseline filtering.
type BatchFile struct {
	ID   uint32
	Path string
}

// Driver wires the core packages and the ambient stack into the
// cooperative pipeline described by the resource model: one orchestrator
// process, one state document, one remote worker at a time.
type Driver struct {
	cfg      Config
	state    *state.Store
	registry *sequencer.Registry
	assets   sequencer.AssetMap
	exec     *worker.Executor
	baseline *partition.BaselineIndex
	bitmap   *partition.CompletionBitmap // optional; nil disables crash-resume shortcut
	cohorts  *analyzer.CohortRegistry
	discover *analyzer.DiscoveryRegistry
	hub      *statusapi.Hub   // optional; nil disables event publishing
	forensic *forensics.Store // optional; nil disables the Postgres analytics mirror

	aborted atomic.Bool

	// sand tracks each batch's current surviving candidate hash set in
	// memory; reconcileIncrement mirrors every change to disk.
	sand map[uint32][]models.Hash

	// freshCracks accumulates this run's newly cracked plaintexts per
	// batch, consumed once by AnalyzeAndFeedback at the end of the batch's
	// attack sequence.
	freshCracks map[uint32][]models.CrackedRecord
}

// New constructs a Driver. baseline and bitmap may both be nil if this
// universe has no baseline filtering configured; bitmap may be nil even
// with a non-nil baseline to disable the crash-resume shortcut.
func New(
	cfg Config,
	st *state.Store,
	registry *sequencer.Registry,
	assets sequencer.AssetMap,
	exec *worker.Executor,
	baseline *partition.BaselineIndex,
	bitmap *partition.CompletionBitmap,
	cohorts *analyzer.CohortRegistry,
	discover *analyzer.DiscoveryRegistry,
	hub *statusapi.Hub,
	forensic *forensics.Store,
) *Driver {
	return &Driver{
		cfg: cfg, state: st, registry: registry, assets: assets,
		exec: exec, baseline: baseline, bitmap: bitmap, cohorts: cohorts, discover: discover,
		hub:         hub,
		forensic:    forensic,
		sand:        make(map[uint32][]models.Hash),
		freshCracks: make(map[uint32][]models.CrackedRecord),
	}
}

// RequestAbort flags the driver to stop before starting its next batch.
// Safe to call from a signal handler.
func (d *Driver) RequestAbort() { d.aborted.Store(true) }

func (d *Driver) localSandPath(batchID uint32) string {
	return filepath.Join(d.cfg.WorkDir, fmt.Sprintf("sand-%04d.txt", batchID))
}

// remoteSandPath mirrors localSandPath on the worker host, where the
// uploaded copy a dispatched attack actually reads from lives.
func (d *Driver) remoteSandPath(batchID uint32) string {
	return path.Join(d.cfg.RemoteWorkDir, fmt.Sprintf("sand-%04d.txt", batchID))
}

// remoteLogPath derives the remote path a session's log/output file lives
// at, on the worker host the Executor is connected to — distinct from
// WorkDir, which is local to the orchestrator process.
func (d *Driver) remoteLogPath(sessionName string) string {
	return path.Join(d.cfg.RemoteWorkDir, sessionName+".log")
}

// pushSand uploads the batch's current local sand file to its remote
// mirror, so the next dispatched attack reads the shrunk candidate set
// rather than a stale copy from before the last reconciliation.
func (d *Driver) pushSand(ctx context.Context, batchID uint32) error {
	return d.exec.Upload(ctx, d.localSandPath(batchID), d.remoteSandPath(batchID))
}

// RunUniverse processes every named batch file in ascending batch-id order,
// stopping cleanly (without error) if RequestAbort was called since the
// last batch finished.
func (d *Driver) RunUniverse(ctx context.Context, batches []BatchFile) error {
	ordered := make([]BatchFile, len(batches))
	copy(ordered, batches)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, bf := range ordered {
		if d.aborted.Load() {
			log.Printf("[Orchestrator] abort requested, stopping before batch %04d", bf.ID)
			return nil
		}
		if err := d.RunBatch(ctx, bf.ID, bf.Path); err != nil {
			return fmt.Errorf("batch %04d: %w", bf.ID, err)
		}
	}
	return nil
}

// RunBatch takes one partitioned batch file through baseline filtering,
// attack sequencing, and the feedback pass, in that order.
func (d *Driver) RunBatch(ctx context.Context, batchID uint32, gravelPath string) error {
	candidate, err := d.filterBatch(batchID, gravelPath)
	if err != nil {
		return err
	}

	if err := d.state.Init(batchID, len(candidate.Hashes), d.registry.DefaultOrder()); err != nil {
		return err
	}
	d.sand[batchID] = candidate.Hashes
	if err := distributor.WriteSandFile(d.localSandPath(batchID), candidate.Hashes); err != nil {
		return err
	}
	if err := d.pushSand(ctx, batchID); err != nil {
		return err
	}

	report, err := sequencer.Execute(
		ctx, batchID, d.remoteSandPath(batchID),
		d.state, d.registry, d.exec, d.newReconciler(ctx), d.assets,
		d.remoteLogPath, d.cfg.PollInterval, d.cfg.MaxWait,
	)
	if err != nil {
		return err
	}
	if report.Aborted {
		log.Printf("[Orchestrator] batch %04d aborted: %s", batchID, report.AbortReason)
		return fmt.Errorf("batch %04d aborted: %s", batchID, report.AbortReason)
	}
	for _, name := range report.AttacksRun {
		statusapi.PublishEvent(d.hub, statusapi.Event{Type: "attack-completed", BatchID: batchID, Attack: name, At: now()})
	}
	d.mirrorAttackResults(ctx, batchID, report.AttacksRun)

	return d.AnalyzeAndFeedback(batchID)
}

// filterBatch loads a batch's raw hashes and runs it through the baseline
// filter, unless the completion bitmap already recorded this shard as
// filtered from a prior run — in which case the previously-written sand
// mirror is read back directly and the baseline filter is skipped entirely.
func (d *Driver) filterBatch(batchID uint32, gravelPath string) (models.CandidateBatch, error) {
	if d.bitmap != nil && d.bitmap.IsComplete(batchID) {
		sand, err := distributor.ReadSandFile(d.localSandPath(batchID))
		if err == nil {
			log.Printf("[Orchestrator] batch %04d: baseline filtering already completed, resuming from sand mirror", batchID)
			return models.CandidateBatch{ID: batchID, Hashes: sand}, nil
		}
		log.Printf("[Orchestrator] batch %04d: completion bitmap marked filtered but sand mirror unreadable (%v), re-filtering", batchID, err)
	}

	batch, skipped, err := partition.LoadGravelBatch(gravelPath, batchID)
	if err != nil {
		return models.CandidateBatch{}, err
	}
	if skipped > 0 {
		log.Printf("[Orchestrator] batch %04d: skipped %d malformed lines while loading", batchID, skipped)
	}

	var candidate models.CandidateBatch
	if d.baseline == nil {
		candidate = models.CandidateBatch{ID: batch.ID, Hashes: batch.Hashes}
	} else {
		candidate, err = partition.FilterBatch(batch, d.baseline)
		if err != nil {
			return models.CandidateBatch{}, err
		}
	}

	if d.bitmap != nil {
		if err := d.bitmap.MarkComplete(batchID); err != nil {
			return models.CandidateBatch{}, err
		}
	}
	return candidate, nil
}

// mirrorCracked forwards pearls to the forensics store, tagged with
// source, if one is configured. Failures are logged rather than
// propagated: the state document and cracked log are authoritative, the
// Postgres mirror is a secondary analytics convenience.
func (d *Driver) mirrorCracked(ctx context.Context, batchID uint32, pearls []models.CrackedRecord, source string) {
	if d.forensic == nil || len(pearls) == 0 {
		return
	}
	if err := d.forensic.RecordCracked(ctx, batchID, pearls, source); err != nil {
		log.Printf("[Orchestrator] forensics mirror: failed to record %d cracked records for batch %04d: %v", len(pearls), batchID, err)
	}
}

// mirrorAttackResults forwards every AttackResult named in ran to the
// forensics store, looked up from the state document's authoritative copy.
func (d *Driver) mirrorAttackResults(ctx context.Context, batchID uint32, ran []string) {
	if d.forensic == nil || len(ran) == 0 {
		return
	}
	batch := d.state.Get(batchID)
	if batch == nil {
		return
	}
	wanted := make(map[string]bool, len(ran))
	for _, name := range ran {
		wanted[name] = true
	}
	for _, result := range batch.AttackResults {
		if !wanted[result.Attack] {
			continue
		}
		if err := d.forensic.RecordAttackResult(ctx, batchID, result); err != nil {
			log.Printf("[Orchestrator] forensics mirror: failed to record attack result %q for batch %04d: %v", result.Attack, batchID, err)
		}
	}
}

// now is a thin indirection around time.Now so tests could substitute a
// fixed clock if event timestamps ever needed to be deterministic; today
// it is the only caller.
func now() time.Time { return time.Now() }
