package feedback

import (
	"path/filepath"
	"testing"

	"github.com/rawblock/gravelpit/pkg/models"
)

func TestGrowCohortWordlistDedupesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turkish.txt")

	grown, added, err := GrowCohortWordlist(path, []string{"furkan", "elif"})
	if err != nil {
		t.Fatalf("GrowCohortWordlist: %v", err)
	}
	if !grown || added != 2 {
		t.Fatalf("grown=%v added=%d, want true/2", grown, added)
	}

	grown, added, err = GrowCohortWordlist(path, []string{"furkan", "mehmet"})
	if err != nil {
		t.Fatalf("second GrowCohortWordlist: %v", err)
	}
	if !grown || added != 1 {
		t.Fatalf("grown=%v added=%d, want true/1 (furkan already present)", grown, added)
	}

	grown, _, err = GrowCohortWordlist(path, []string{"furkan"})
	if err != nil {
		t.Fatalf("third GrowCohortWordlist: %v", err)
	}
	if grown {
		t.Fatal("expected grown=false when nothing new is added")
	}
}

func TestBuildCompositeWordlistUnionsRootsAndCohorts(t *testing.T) {
	dir := t.TempDir()
	cohortPath := filepath.Join(dir, "turkish.txt")
	if _, _, err := GrowCohortWordlist(cohortPath, []string{"furkan", "elif"}); err != nil {
		t.Fatalf("seeding cohort file: %v", err)
	}

	roots := map[string]*models.Root{
		"minecraft": {Word: "minecraft"},
		"furkan":    {Word: "furkan"}, // overlaps with the cohort file
	}

	outPath := filepath.Join(dir, "composite.txt")
	size, err := BuildCompositeWordlist(outPath, roots, CohortDestinations{"turkish": cohortPath})
	if err != nil {
		t.Fatalf("BuildCompositeWordlist: %v", err)
	}
	// union of {minecraft, furkan} and {furkan, elif} = {minecraft, furkan, elif}
	if size != 3 {
		t.Fatalf("composite size = %d, want 3", size)
	}
}
