package feedback

import (
	"strings"

	"github.com/rawblock/gravelpit/pkg/models"
)

// BatchFeedback summarizes one batch's pass through the emitter, ready to
// be written back into the Batch State Machine's feedback sub-record.
type BatchFeedback struct {
	NewRootsDiscovered   int
	TotalDiscoveredRoots int
	CompositeWordlistSize int
}

// FeedbackAttackCracks sums the cracked count attributable to
// feedback-derived attacks — those whose name carries one of the
// configured prefixes — from a batch's recorded attack results.
func FeedbackAttackCracks(results []models.AttackResult, feedbackPrefixes []string) int {
	total := 0
	for _, r := range results {
		for _, prefix := range feedbackPrefixes {
			if strings.HasPrefix(r.Attack, prefix) {
				total += r.NewCracks
				break
			}
		}
	}
	return total
}

// ToSummary builds the models.FeedbackSummary written back into the state
// document, combining this batch's emitter pass with the feedback-derived
// crack attribution.
func (bf BatchFeedback) ToSummary(feedbackCracks, betaSize, nocapPlusSize int) models.FeedbackSummary {
	return models.FeedbackSummary{
		NewRootsDiscovered:   bf.NewRootsDiscovered,
		TotalDiscoveredRoots: bf.TotalDiscoveredRoots,
		BetaSize:             betaSize,
		NoCapPlusSize:        nocapPlusSize,
		FeedbackCracks:       feedbackCracks,
	}
}
