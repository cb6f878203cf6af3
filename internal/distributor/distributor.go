package distributor

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// Distribute implements the map-resident strategy: the potfile is already
// loaded in memory, so each batch is partitioned with a single pass and a
// map lookup per hash.
func Distribute(batch models.CandidateBatch, potfile map[models.Hash]string) ([]models.CrackedRecord, []models.Hash, error) {
	pearls := make([]models.CrackedRecord, 0, len(batch.Hashes))
	sand := make([]models.Hash, 0, len(batch.Hashes))

	for _, h := range batch.Hashes {
		if plain, ok := potfile[h]; ok {
			pearls = append(pearls, models.CrackedRecord{Hash: h, Plain: plain})
		} else {
			sand = append(sand, h)
		}
	}

	if err := assertConservation(batch, pearls, sand); err != nil {
		return nil, nil, err
	}
	return pearls, sand, nil
}

// DistributeStreaming loads batch's hash list into a mutable set, then
// obtains the whole potfile as a map from potfileReader and checks each
// remaining hash against it. The potfile is not streamed: memory cost
// includes the full potfile map, as with Distribute. Sand order follows
// map iteration and is not the batch's order.
func DistributeStreaming(batch models.CandidateBatch, potfileReader func() (map[models.Hash]string, int, error)) ([]models.CrackedRecord, []models.Hash, error) {
	remaining := make(map[models.Hash]bool, len(batch.Hashes))
	for _, h := range batch.Hashes {
		remaining[h] = true
	}

	potfile, _, err := potfileReader()
	if err != nil {
		return nil, nil, fmt.Errorf("streaming potfile for batch %04d: %w", batch.ID, err)
	}

	pearls := make([]models.CrackedRecord, 0, len(batch.Hashes))
	for h := range remaining {
		if plain, ok := potfile[h]; ok {
			pearls = append(pearls, models.CrackedRecord{Hash: h, Plain: plain})
			delete(remaining, h)
		}
	}

	sand := make([]models.Hash, 0, len(remaining))
	for h := range remaining {
		sand = append(sand, h)
	}

	if err := assertConservation(batch, pearls, sand); err != nil {
		return nil, nil, err
	}
	return pearls, sand, nil
}

func assertConservation(batch models.CandidateBatch, pearls []models.CrackedRecord, sand []models.Hash) error {
	if len(pearls)+len(sand) != len(batch.Hashes) {
		return failure.WithBatch(failure.ConservationViolation, fmt.Sprintf("%04d", batch.ID),
			fmt.Errorf("pearls(%d) + sand(%d) != batch size(%d)", len(pearls), len(sand), len(batch.Hashes)))
	}
	return nil
}

// WriteSandFile writes sand as one hash per line, transparently gzip
// compressing when path ends in .gz. Written to a temp file and renamed
// into place so a crash never leaves a partial SAND file readable under
// its final name.
func WriteSandFile(path string, sand []models.Hash) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".sand-*.tmp")
	if err != nil {
		return failure.New(failure.WriteIO, fmt.Errorf("creating temp sand file: %w", err))
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	var w *bufio.Writer
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(tmp)
		w = bufio.NewWriter(gz)
	} else {
		w = bufio.NewWriter(tmp)
	}

	for _, h := range sand {
		if _, err := w.WriteString(string(h)); err != nil {
			tmp.Close()
			return failure.New(failure.WriteIO, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			tmp.Close()
			return failure.New(failure.WriteIO, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return failure.New(failure.WriteIO, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			tmp.Close()
			return failure.New(failure.WriteIO, err)
		}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return failure.New(failure.WriteIO, err)
	}
	if err := tmp.Close(); err != nil {
		return failure.New(failure.WriteIO, err)
	}
	return os.Rename(tmpPath, path)
}

// ReadSandFile reads a file written by WriteSandFile back into a hash
// slice, transparently decompressing when path ends in .gz. Used on resume
// to recover a batch's previously-computed candidate set without re-running
// the baseline filter against it.
func ReadSandFile(path string) ([]models.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, failure.New(failure.SourceIO, fmt.Errorf("opening sand file %s: %w", path, err))
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, failure.New(failure.SourceIO, fmt.Errorf("opening gzip sand file %s: %w", path, err))
		}
		defer gz.Close()
		r = gz
	}

	var sand []models.Hash
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sand = append(sand, models.Hash(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, failure.New(failure.SourceIO, fmt.Errorf("reading sand file %s: %w", path, err))
	}
	return sand, nil
}
