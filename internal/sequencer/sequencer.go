package sequencer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/internal/worker"
	"github.com/rawblock/gravelpit/pkg/models"
)

// Executor is the subset of worker.Executor the sequencer drives. An
// interface here keeps the execution loop testable without a live SSH
// connection.
type Executor interface {
	Run(ctx context.Context, sessionName, command, logPath string, pollInterval, maxWait time.Duration) (worker.Outcome, error)
}

// StateStore is the subset of state.Store the sequencer mutates.
type StateStore interface {
	Get(batchID uint32) *models.BatchState
	IsAttackApplied(batchID uint32, attackName string) bool
	StartAttack(batchID uint32, attackName, externalRef string) error
	CompleteAttack(batchID uint32, attackName string, newCracks int, durationSeconds float64) error
}

// Reconciler computes how many new cracks an attack's produced artifact
// contributed, bridging to the Result Distributor.
type Reconciler interface {
	ReconcileIncrement(batchID uint32, artifactPath string) (int, error)
}

// Report summarizes one Execute call.
type Report struct {
	NoOp        bool
	AttacksRun  []string
	Aborted     bool
	AbortReason string
}

// LogPathFunc derives the remote log file path for a session name.
type LogPathFunc func(sessionName string) string

// Execute runs attacksRemaining(batch) in order, skipping attacks already
// applied, exactly as spec'd: start, run, reconcile, complete, or classify
// and react to failure.
func Execute(
	ctx context.Context,
	batchID uint32,
	hashlistPath string,
	store StateStore,
	registry *Registry,
	exec Executor,
	reconciler Reconciler,
	assets AssetMap,
	logPath LogPathFunc,
	pollInterval, maxWait time.Duration,
) (Report, error) {
	batch := store.Get(batchID)
	if batch == nil {
		return Report{}, fmt.Errorf("no state record for batch %d", batchID)
	}
	if len(batch.AttacksRemaining) == 0 {
		return Report{NoOp: true}, nil
	}

	remaining := make([]string, len(batch.AttacksRemaining))
	copy(remaining, batch.AttacksRemaining)

	report := Report{}
	for _, name := range remaining {
		if store.IsAttackApplied(batchID, name) {
			continue
		}

		recipe, ok := registry.Lookup(name)
		if !ok {
			return report, fmt.Errorf("attack %q in attacksRemaining has no recipe in the sequencer registry", name)
		}

		sessionName := fmt.Sprintf("gravelpit-%04d-%s", batchID, name)
		remoteLog := logPath(sessionName)

		cmd, err := Translate(recipe.CommandTemplate, hashlistPath, remoteLog, recipe.AssetIDs, assets)
		if err != nil {
			return report, fmt.Errorf("translating recipe %q: %w", name, err)
		}

		if err := store.StartAttack(batchID, name, sessionName); err != nil {
			return report, err
		}

		outcome, err := exec.Run(ctx, sessionName, cmd, remoteLog, pollInterval, maxWait)
		if err != nil {
			switch {
			case failure.Is(err, failure.LaunchFailed):
				report.Aborted = true
				report.AbortReason = fmt.Sprintf("attack %s: %v", name, err)
				return report, nil
			default:
				log.Printf("[Sequencer] attack %s on batch %04d failed, recording and continuing: %v", name, batchID, err)
				continue
			}
		}

		newCracks, err := reconciler.ReconcileIncrement(batchID, outcome.ProducedArtifact)
		if err != nil {
			return report, fmt.Errorf("reconciling attack %q on batch %d: %w", name, batchID, err)
		}

		if err := store.CompleteAttack(batchID, name, newCracks, outcome.DurationSeconds); err != nil {
			return report, err
		}
		report.AttacksRun = append(report.AttacksRun, name)
	}

	return report, nil
}
