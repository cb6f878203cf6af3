package analyzer

import (
	"regexp"

	"github.com/rawblock/gravelpit/pkg/models"
)

// CohortRegistry holds the ordered, immutable set of cohort fingerprints
// used to label accepted roots. A root may match more than one cohort; all
// matches are reported.
type CohortRegistry struct {
	fingerprints []models.CohortFingerprint
}

// NewCohortRegistry builds a registry from a static fingerprint table —
// configuration, not discovered at runtime.
func NewCohortRegistry(fingerprints []models.CohortFingerprint) *CohortRegistry {
	return &CohortRegistry{fingerprints: fingerprints}
}

// Classify returns every cohort label whose patterns match root.
func (c *CohortRegistry) Classify(root string) []string {
	var labels []string
	for _, fp := range c.fingerprints {
		if matchesAny(fp.Patterns, root) {
			labels = append(labels, fp.Label)
		}
	}
	return labels
}

func matchesAny(patterns []*regexp.Regexp, root string) bool {
	for _, p := range patterns {
		if p.MatchString(root) {
			return true
		}
	}
	return false
}
