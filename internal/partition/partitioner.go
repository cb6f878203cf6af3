// Package partition implements the first stage of the pipeline: splitting
// a raw hash stream into deterministic fixed-size batches, filtering out
// anything already present in a baseline wordlist, and concatenating the
// survivors into GPU-sized chunks.
package partition

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// PartitionReport summarizes one Partition run.
type PartitionReport struct {
	BatchesWritten int
	HashesWritten  int
	LinesRejected  int
}

// Partition reads 40-hex SHA-1 hashes one per line from source, writes them
// in order to batch-%04d.txt files of batchSize lines each under outDir,
// and returns a report of what was written and rejected. Given the same
// source and batchSize, batch indices and contents are stable across runs.
func Partition(source io.Reader, outDir string, batchSize int) (PartitionReport, error) {
	if batchSize <= 0 {
		return PartitionReport{}, fmt.Errorf("batchSize must be positive, got %d", batchSize)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return PartitionReport{}, failure.New(failure.WriteIO, fmt.Errorf("creating output directory: %w", err))
	}

	var (
		report     PartitionReport
		batchIndex uint32
		buf        = make([]models.Hash, 0, batchSize)
		totalLines atomic.Int64
	)

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := writeBatch(outDir, batchIndex, buf); err != nil {
			return failure.New(failure.WriteIO, err)
		}
		report.BatchesWritten++
		report.HashesWritten += len(buf)
		batchIndex++
		buf = buf[:0]
		return nil
	}

	scanner := bufio.NewScanner(source)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		h, ok := models.ParseHash(line)
		if !ok {
			report.LinesRejected++
			continue
		}
		buf = append(buf, h)

		n := totalLines.Add(1)
		if n%100000 == 0 {
			log.Printf("[Partitioner] Progress: %d hashes read, %d batches written, %d rejected",
				n, report.BatchesWritten, report.LinesRejected)
		}

		if len(buf) == batchSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return report, failure.New(failure.SourceIO, fmt.Errorf("reading hash source: %w", err))
	}
	if err := flush(); err != nil {
		return report, err
	}

	log.Printf("[Partitioner] Complete: %d batches, %d hashes written, %d lines rejected",
		report.BatchesWritten, report.HashesWritten, report.LinesRejected)
	return report, nil
}

func writeBatch(outDir string, index uint32, hashes []models.Hash) error {
	path := filepath.Join(outDir, fmt.Sprintf("batch-%04d.txt", index))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating batch file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, h := range hashes {
		if _, err := w.WriteString(string(h)); err != nil {
			return fmt.Errorf("writing batch file %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing batch file %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing batch file %s: %w", path, err)
	}
	return f.Sync()
}
