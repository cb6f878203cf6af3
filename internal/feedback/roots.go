// Package feedback implements the Feedback Emitter: persisting accumulated
// knowledge across iterations and deriving new attack assets (wordlists,
// rules) from what the Plaintext Analyzer found this run.
package feedback

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// LoadAccumulatedRoots reads the monotonically-growing roots file, keyed by
// word. A missing file is not an error — the first run starts empty.
func LoadAccumulatedRoots(path string) (map[string]*models.Root, error) {
	roots := make(map[string]*models.Root)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return roots, nil
	}
	if err != nil {
		return nil, failure.New(failure.SourceIO, fmt.Errorf("opening accumulated roots %s: %w", path, err))
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := scanner.Text()
		if word == "" {
			continue
		}
		roots[word] = &models.Root{Word: word, Frequency: 1}
	}
	if err := scanner.Err(); err != nil {
		return nil, failure.New(failure.SourceIO, err)
	}
	return roots, nil
}

// MergeRoots folds newRoots into existing (mutating frequency and examples
// in place), returning the count of genuinely new words this run
// contributed — accumulated-roots never shrinks.
func MergeRoots(existing map[string]*models.Root, newRoots []models.Root) int {
	added := 0
	for _, r := range newRoots {
		cur, ok := existing[r.Word]
		if !ok {
			clone := r
			if len(clone.Examples) > models.MaxRootExamples {
				clone.Examples = clone.Examples[:models.MaxRootExamples]
			}
			existing[r.Word] = &clone
			added++
			continue
		}
		cur.Frequency += r.Frequency
		for _, ex := range r.Examples {
			if len(cur.Examples) >= models.MaxRootExamples {
				break
			}
			if !contains(cur.Examples, ex) {
				cur.Examples = append(cur.Examples, ex)
			}
		}
		for _, cohort := range r.Cohorts {
			if !contains(cur.Cohorts, cohort) {
				cur.Cohorts = append(cur.Cohorts, cohort)
			}
		}
	}
	return added
}

// SaveAccumulatedRoots writes roots back atomically, one word per line in
// sorted order so the file is stable and diffable across runs.
func SaveAccumulatedRoots(path string, roots map[string]*models.Root) error {
	words := make([]string, 0, len(roots))
	for w := range roots {
		words = append(words, w)
	}
	sort.Strings(words)

	return writeAtomicLines(path, words)
}

func writeAtomicLines(path string, lines []string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".feedback-*.tmp")
	if err != nil {
		return failure.New(failure.WriteIO, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
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
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return failure.New(failure.WriteIO, err)
	}
	if err := tmp.Close(); err != nil {
		return failure.New(failure.WriteIO, err)
	}
	return os.Rename(tmpPath, path)
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}
