package partition

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// recordWidth is the on-disk size of one baseline index entry: a raw SHA-1
// digest, 20 bytes, sorted ascending.
const recordWidth = 20

// BaselineIndex wraps a sorted, fixed-width binary file of raw SHA-1
// digests and answers membership queries by binary search, so the whole
// baseline is never resident in memory at once.
type BaselineIndex struct {
	f       *os.File
	records int64
}

// OpenBaselineIndex opens path and validates its length is a whole number
// of 20-byte records.
func OpenBaselineIndex(path string) (*BaselineIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.BaselineIO, fmt.Errorf("opening baseline index %s: %w", path, err))
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, failure.New(failure.BaselineIO, fmt.Errorf("stating baseline index %s: %w", path, err))
	}
	if info.Size()%recordWidth != 0 {
		f.Close()
		return nil, failure.New(failure.BaselineIO, fmt.Errorf("baseline index %s has size %d, not a multiple of %d", path, info.Size(), recordWidth))
	}
	return &BaselineIndex{f: f, records: info.Size() / recordWidth}, nil
}

func (idx *BaselineIndex) Close() error {
	return idx.f.Close()
}

// Contains reports whether h's digest is present in the index via binary
// search over the backing file, reading one record per probe.
func (idx *BaselineIndex) Contains(h models.Hash) (bool, error) {
	target, err := hex.DecodeString(string(h))
	if err != nil || len(target) != recordWidth {
		return false, fmt.Errorf("hash %q is not a valid %d-byte hex digest", h, recordWidth)
	}

	lo, hi := int64(0), idx.records-1
	buf := make([]byte, recordWidth)
	for lo <= hi {
		mid := lo + (hi-lo)/2
		if _, err := idx.f.ReadAt(buf, mid*recordWidth); err != nil && err != io.EOF {
			return false, failure.New(failure.BaselineIO, fmt.Errorf("reading baseline index record %d: %w", mid, err))
		}
		cmp := bytes.Compare(buf, target)
		switch {
		case cmp == 0:
			return true, nil
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return false, nil
}

// FilterBatch streams batch, keeping only hashes absent from idx, and
// returns the surviving candidates in their original order.
func FilterBatch(batch models.GravelBatch, idx *BaselineIndex) (models.CandidateBatch, error) {
	candidates := make([]models.Hash, 0, len(batch.Hashes))
	for _, h := range batch.Hashes {
		present, err := idx.Contains(h)
		if err != nil {
			return models.CandidateBatch{}, failure.WithBatch(failure.BaselineIO, fmt.Sprintf("%04d", batch.ID), err)
		}
		if !present {
			candidates = append(candidates, h)
		}
	}
	return models.CandidateBatch{ID: batch.ID, Hashes: candidates}, nil
}

// LoadGravelBatch reads a batch-NNNN.txt file produced by Partition,
// skipping (and counting) malformed lines rather than failing the batch.
func LoadGravelBatch(path string, id uint32) (models.GravelBatch, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.GravelBatch{}, 0, failure.WithBatch(failure.SourceIO, fmt.Sprintf("%04d", id), err)
	}
	defer f.Close()

	var (
		hashes  []models.Hash
		skipped int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		h, ok := models.ParseHash(scanner.Text())
		if !ok {
			skipped++
			continue
		}
		hashes = append(hashes, h)
	}
	if err := scanner.Err(); err != nil {
		return models.GravelBatch{}, skipped, failure.WithBatch(failure.SourceIO, fmt.Sprintf("%04d", id), err)
	}
	if skipped > 0 {
		log.Printf("[BaselineFilter] batch %04d: skipped %d malformed lines", id, skipped)
	}
	return models.GravelBatch{ID: id, Hashes: hashes}, skipped, nil
}
