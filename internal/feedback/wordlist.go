package feedback

import (
	"bufio"
	"os"
	"sort"

	"github.com/rawblock/gravelpit/internal/failure"
	"github.com/rawblock/gravelpit/pkg/models"
)

// CohortDestinations maps a cohort label to the wordlist file it grows.
type CohortDestinations map[string]string

// BuildCompositeWordlist writes the union of every accumulated root with
// every cohort wordlist to path, fresh each run (not append-only, unlike
// the accumulated-roots file itself).
func BuildCompositeWordlist(path string, roots map[string]*models.Root, cohortFiles CohortDestinations) (int, error) {
	set := make(map[string]bool, len(roots))
	for word := range roots {
		set[word] = true
	}

	for _, cohortPath := range cohortFiles {
		words, err := readLines(cohortPath)
		if err != nil {
			return 0, err
		}
		for _, w := range words {
			set[w] = true
		}
	}

	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)

	if err := writeAtomicLines(path, words); err != nil {
		return 0, err
	}
	return len(words), nil
}

// GrowCohortWordlist appends words newly classified into a cohort to its
// destination file, deduplicated against what's already there, persisting
// before returning so "grown" always means durably on disk.
func GrowCohortWordlist(path string, words []string) (grown bool, added int, err error) {
	existing, err := readLines(path)
	if err != nil {
		return false, 0, err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, w := range existing {
		existingSet[w] = true
	}

	var fresh []string
	for _, w := range words {
		if !existingSet[w] {
			fresh = append(fresh, w)
			existingSet[w] = true
		}
	}
	if len(fresh) == 0 {
		return false, 0, nil
	}

	merged := append(existing, fresh...)
	sort.Strings(merged)
	if err := writeAtomicLines(path, merged); err != nil {
		return false, 0, err
	}
	return true, len(fresh), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, failure.New(failure.SourceIO, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if l := scanner.Text(); l != "" {
			lines = append(lines, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, failure.New(failure.SourceIO, err)
	}
	return lines, nil
}
