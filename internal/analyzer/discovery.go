package analyzer

import "github.com/rawblock/gravelpit/pkg/models"

// DiscoveryRegistry holds lower-confidence fingerprints applied only to
// roots the main CohortRegistry left unclassified. A discovery fires when
// its matched-root count exceeds the fingerprint's MinMatches; it never
// auto-applies a label, only reports a candidate.
type DiscoveryRegistry struct {
	fingerprints []models.CohortFingerprint
	matchCounts  map[string]int
	matchedRoots map[string][]string
}

// NewDiscoveryRegistry builds a registry from a static fingerprint table.
func NewDiscoveryRegistry(fingerprints []models.CohortFingerprint) *DiscoveryRegistry {
	return &DiscoveryRegistry{
		fingerprints: fingerprints,
		matchCounts:  make(map[string]int),
		matchedRoots: make(map[string][]string),
	}
}

// Observe feeds one unclassified root through every discovery fingerprint,
// accumulating match counts.
func (d *DiscoveryRegistry) Observe(root string) {
	for _, fp := range d.fingerprints {
		if matchesAny(fp.Patterns, root) {
			d.matchCounts[fp.Label]++
			d.matchedRoots[fp.Label] = append(d.matchedRoots[fp.Label], root)
		}
	}
}

// Candidate is a discovery fingerprint whose observed match count exceeded
// its threshold this run.
type Candidate struct {
	Label       string
	Description string
	MatchCount  int
	SampleRoots []string
}

// Candidates returns every fingerprint whose MinMatches threshold was
// exceeded, for reporting — never auto-applied to the main registry.
func (d *DiscoveryRegistry) Candidates() []Candidate {
	var out []Candidate
	for _, fp := range d.fingerprints {
		count := d.matchCounts[fp.Label]
		if count > fp.MinMatches {
			samples := d.matchedRoots[fp.Label]
			if len(samples) > 5 {
				samples = samples[:5]
			}
			out = append(out, Candidate{
				Label:       fp.Label,
				Description: fp.Description,
				MatchCount:  count,
				SampleRoots: samples,
			})
		}
	}
	return out
}
