package partition

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPartitionWritesStableBatches(t *testing.T) {
	source := strings.NewReader(
		"5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8\n" + // "password"
			"NOT-A-HASH\n" +
			"3A7BD3E2360A3D29EEA436FCFB7E44370A6CE9D2\n" + // uppercase, valid
			"\n",
	)
	outDir := t.TempDir()

	report, err := Partition(source, outDir, 2)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if report.HashesWritten != 2 {
		t.Fatalf("HashesWritten = %d, want 2", report.HashesWritten)
	}
	if report.LinesRejected != 2 {
		t.Fatalf("LinesRejected = %d, want 2 (blank line + NOT-A-HASH)", report.LinesRejected)
	}
	if report.BatchesWritten != 1 {
		t.Fatalf("BatchesWritten = %d, want 1", report.BatchesWritten)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "batch-0000.txt"))
	if err != nil {
		t.Fatalf("reading batch file: %v", err)
	}
	want := "5baa61e4c9b93f3f0682250b6cf8331b7ee68fd8\n3a7bd3e2360a3d29eea436fcfb7e44370a6ce9d2\n"
	if string(data) != want {
		t.Fatalf("batch-0000.txt = %q, want %q", data, want)
	}
}

func TestPartitionEmptySourceWritesNoBatches(t *testing.T) {
	outDir := t.TempDir()
	report, err := Partition(strings.NewReader(""), outDir, 10)
	if err != nil {
		t.Fatalf("Partition on empty source should not error: %v", err)
	}
	if report.BatchesWritten != 0 {
		t.Fatalf("BatchesWritten = %d, want 0 for empty source", report.BatchesWritten)
	}
}
