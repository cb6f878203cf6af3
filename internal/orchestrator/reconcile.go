package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rawblock/gravelpit/internal/distributor"
	"github.com/rawblock/gravelpit/pkg/models"
)

// reconciler implements sequencer.Reconciler, bridging a completed attack's
// produced artifact back through the Result Distributor: downloading the
// remote potfile, splitting the batch's current sand against it, appending
// the new cracks to the cracked log before the sequencer marks the attack
// complete (per the ordering invariant in internal/distributor/crackedlog.go),
// and rewriting the local sand mirror so the next attack in the sequence
// only ever sees hashes still uncracked.
type reconciler struct {
	d       *Driver
	ctx     context.Context
	attempt int
}

func (d *Driver) newReconciler(ctx context.Context) *reconciler {
	return &reconciler{d: d, ctx: ctx}
}

// ReconcileIncrement downloads artifactPath, parses it as a potfile, and
// returns the count of hashes newly cracked against this batch's current
// sand. Implements sequencer.Reconciler.
func (r *reconciler) ReconcileIncrement(batchID uint32, artifactPath string) (int, error) {
	d := r.d
	r.attempt++
	localPot := filepath.Join(d.cfg.WorkDir, fmt.Sprintf("potfile-%04d-%d.txt", batchID, r.attempt))

	if err := d.exec.Download(r.ctx, artifactPath, localPot); err != nil {
		return 0, err
	}
	defer os.Remove(localPot)

	f, err := os.Open(localPot)
	if err != nil {
		return 0, fmt.Errorf("opening downloaded potfile %s: %w", localPot, err)
	}
	potfile, malformed, err := distributor.ParsePotfile(f)
	f.Close()
	if err != nil {
		return 0, err
	}
	if malformed > 0 {
		log.Printf("[Orchestrator] batch %04d: %d malformed potfile lines ignored", batchID, malformed)
	}

	current := d.sand[batchID]
	batch := models.CandidateBatch{ID: batchID, Hashes: current}
	pearls, sand, err := distributor.Distribute(batch, potfile)
	if err != nil {
		return 0, err
	}

	if err := distributor.AppendCracked(d.cfg.CrackedLogPath, pearls); err != nil {
		return 0, err
	}
	if err := distributor.WriteSandFile(d.localSandPath(batchID), sand); err != nil {
		return 0, err
	}
	d.sand[batchID] = sand
	if err := d.pushSand(r.ctx, batchID); err != nil {
		return 0, err
	}
	d.mirrorCracked(r.ctx, batchID, pearls, "attack")

	if len(pearls) > 0 {
		d.freshCracks[batchID] = append(d.freshCracks[batchID], pearls...)
	}
	return len(pearls), nil
}
