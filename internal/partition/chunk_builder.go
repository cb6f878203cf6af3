package partition

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// BuildChunk concatenates batches in the given order into a single
// hashlist file at outPath, one hash per line, and records the total line
// count. Deterministic given inputs; the caller chooses how many batches
// to group (GRAVELPIT_CHUNK_BATCH_COUNT) so the result stays under the
// worker's hash-count ceiling.
func BuildChunk(batches []models.CandidateBatch, chunkID uint32, outPath string) (models.Chunk, error) {
	f, err := os.Create(outPath)
	if err != nil {
		return models.Chunk{}, failure.New(failure.WriteIO, fmt.Errorf("creating chunk file %s: %w", outPath, err))
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	batchIDs := make([]uint32, 0, len(batches))
	lineCount := 0
	for _, b := range batches {
		batchIDs = append(batchIDs, b.ID)
		for _, h := range b.Hashes {
			if _, err := w.WriteString(string(h)); err != nil {
				return models.Chunk{}, failure.New(failure.WriteIO, fmt.Errorf("writing chunk file %s: %w", outPath, err))
			}
			if err := w.WriteByte('\n'); err != nil {
				return models.Chunk{}, failure.New(failure.WriteIO, fmt.Errorf("writing chunk file %s: %w", outPath, err))
			}
			lineCount++
		}
	}
	if err := w.Flush(); err != nil {
		return models.Chunk{}, failure.New(failure.WriteIO, fmt.Errorf("flushing chunk file %s: %w", outPath, err))
	}
	if err := f.Sync(); err != nil {
		return models.Chunk{}, failure.New(failure.WriteIO, fmt.Errorf("syncing chunk file %s: %w", outPath, err))
	}

	return models.Chunk{
		ID:        chunkID,
		BatchIDs:  batchIDs,
		Path:      outPath,
		LineCount: lineCount,
	}, nil
}
