package analyzer

import (
	"regexp"

	"github.com/rawblock/gravelpit/pkg/models"
)

// DefaultCohortFingerprints is the static table of name/cultural/subject
// groupings applied by a CohortRegistry out of the box: curated at compile
// time, not discovered at runtime.
func DefaultCohortFingerprints() []models.CohortFingerprint {
	return []models.CohortFingerprint{
		{
			Label:       "turkish-names",
			Description: "common Turkish given names used bare as a password root",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^(furkan|mehmet|ahmet|elif|zeynep|mustafa|fatih|emre|burak)$`),
			},
		},
		{
			Label:       "compound-fantasy",
			Description: "dragon/knight/master-style compound roots",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^(dragon|shadow|dark|night)(master|slayer|knight|lord|warrior)$`),
			},
		},
		{
			Label:       "sports-teams",
			Description: "football/basketball club names used bare",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^(arsenal|chelsea|liverpool|barcelona|juventus|lakers|yankees)$`),
			},
		},
		{
			Label:       "keyboard-word",
			Description: "dictionary words built from adjacent-key runs",
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`^(qwerty|asdfgh|zxcvbn)[a-z]*$`),
			},
		},
	}
}

// DefaultDiscoveryFingerprints seeds the DiscoveryRegistry with
// lower-confidence, higher-threshold groupings worth promoting to the main
// CohortRegistry once enough unclassified roots corroborate them.
func DefaultDiscoveryFingerprints() []models.CohortFingerprint {
	return []models.CohortFingerprint{
		{
			Label:       "anime-terms",
			Description: "anime character and series names",
			Patterns:    []*regexp.Regexp{regexp.MustCompile(`naruto|sasuke|goku|luffy|pokemon`)},
			MinMatches:  2,
		},
		{
			Label:       "pet-names",
			Description: "common pet-name roots",
			Patterns:    []*regexp.Regexp{regexp.MustCompile(`^(fluffy|buddy|bella|max|charlie|rex)$`)},
			MinMatches:  2,
		},
	}
}
