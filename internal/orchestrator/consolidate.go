package orchestrator

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/rawblock/gravelpit/internal/distributor"
	"github.com/rawblock/gravelpit/internal/partition"
	"github.com/rawblock/gravelpit/internal/sequencer"
	"github.com/rawblock/gravelpit/pkg/models"
)

// RunConsolidatedAttack groups several batches' current (small) sand sets
// into one chunk via the Chunk Builder and runs a single attack against the
// combined hashlist. This is the efficient path for a final wide mask or
// rule pass once per-batch sequencing has whittled each batch down to a
// handful of stragglers, where per-batch dispatch would waste GPU startup
// overhead on nearly-empty hashlists.
func (d *Driver) RunConsolidatedAttack(ctx context.Context, chunkID uint32, batchIDs []uint32, recipe models.AttackRecipe) error {
	candidates := make([]models.CandidateBatch, 0, len(batchIDs))
	for _, id := range batchIDs {
		candidates = append(candidates, models.CandidateBatch{ID: id, Hashes: d.sand[id]})
	}

	chunkPath := filepath.Join(d.cfg.WorkDir, fmt.Sprintf("chunk-%04d.txt", chunkID))
	chunk, err := partition.BuildChunk(candidates, chunkID, chunkPath)
	if err != nil {
		return err
	}
	if chunk.LineCount == 0 {
		log.Printf("[Orchestrator] consolidated chunk %04d has no remaining hashes, skipping", chunkID)
		return nil
	}

	remoteChunkPath := path.Join(d.cfg.RemoteWorkDir, fmt.Sprintf("chunk-%04d.txt", chunkID))
	if err := d.exec.Upload(ctx, chunkPath, remoteChunkPath); err != nil {
		return err
	}

	sessionName := fmt.Sprintf("gravelpit-chunk-%04d-%s", chunkID, recipe.Name)
	remoteLog := d.remoteLogPath(sessionName)

	cmd, err := sequencer.Translate(recipe.CommandTemplate, remoteChunkPath, remoteLog, recipe.AssetIDs, d.assets)
	if err != nil {
		return err
	}

	outcome, err := d.exec.Run(ctx, sessionName, cmd, remoteLog, d.cfg.PollInterval, d.cfg.MaxWait)
	if err != nil {
		return fmt.Errorf("consolidated attack %q on chunk %04d: %w", recipe.Name, chunkID, err)
	}

	localPot := filepath.Join(d.cfg.WorkDir, fmt.Sprintf("potfile-chunk-%04d.txt", chunkID))
	if err := d.exec.Download(ctx, outcome.ProducedArtifact, localPot); err != nil {
		return err
	}
	defer os.Remove(localPot)

	f, err := os.Open(localPot)
	if err != nil {
		return fmt.Errorf("opening downloaded chunk potfile %s: %w", localPot, err)
	}
	potfile, malformed, err := distributor.ParsePotfile(f)
	f.Close()
	if err != nil {
		return err
	}
	if malformed > 0 {
		log.Printf("[Orchestrator] consolidated chunk %04d: %d malformed potfile lines ignored", chunkID, malformed)
	}

	for _, batch := range candidates {
		pearls, sand, err := distributor.Distribute(batch, potfile)
		if err != nil {
			return err
		}
		if err := distributor.AppendCracked(d.cfg.CrackedLogPath, pearls); err != nil {
			return err
		}
		if err := distributor.WriteSandFile(d.localSandPath(batch.ID), sand); err != nil {
			return err
		}
		d.sand[batch.ID] = sand
		if err := d.pushSand(ctx, batch.ID); err != nil {
			return err
		}
		d.mirrorCracked(ctx, batch.ID, pearls, recipe.Name)
		if len(pearls) > 0 {
			d.freshCracks[batch.ID] = append(d.freshCracks[batch.ID], pearls...)
		}
		if err := d.state.CompleteAttack(batch.ID, recipe.Name, len(pearls), outcome.DurationSeconds); err != nil {
			return err
		}
		d.mirrorAttackResults(ctx, batch.ID, []string{recipe.Name})
		if err := d.AnalyzeAndFeedback(batch.ID); err != nil {
			return err
		}
	}
	return nil
}
