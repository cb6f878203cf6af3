package orchestrator

import (
	"context"
	"log"

	"github.com/rawblock/gravelpit/internal/analyzer"
	"github.com/rawblock/gravelpit/internal/feedback"
	"github.com/rawblock/gravelpit/pkg/models"
)

// AnalyzeAndFeedback runs the Plaintext Analyzer and Feedback Emitter over
// every plaintext newly cracked for batchID this run, then records the
// resulting summary back into the state document. A batch with no fresh
// cracks still completes the pass cleanly, writing an all-zero summary.
func (d *Driver) AnalyzeAndFeedback(batchID uint32) error {
	fresh := d.freshCracks[batchID]
	delete(d.freshCracks, batchID)

	var newRoots []models.Root
	patternCounts := make(map[string]int)
	suffixCounts := make(map[string]int)

	for _, rec := range fresh {
		ext := analyzer.ExtractRoot(rec.Plain)
		if analyzer.ShannonEntropy(ext.Root) > analyzer.DefaultRandomEntropyThreshold {
			continue
		}
		if !analyzer.IsAcceptedRoot(ext.Root, analyzer.DefaultAcceptanceConfig) {
			continue
		}

		cohorts := d.cohorts.Classify(ext.Root)
		if len(cohorts) == 0 {
			d.discover.Observe(ext.Root)
		}

		newRoots = append(newRoots, models.Root{
			Word:      ext.Root,
			Frequency: 1,
			Examples:  []string{rec.Plain},
			Cohorts:   cohorts,
		})

		for _, key := range feedback.PatternKeys(analyzer.ClassifyPattern(rec.Plain)) {
			patternCounts[key]++
		}
		if suffix := analyzer.SuffixLiteral(rec.Plain); suffix != "" {
			suffixCounts[suffix]++
		}
	}

	existingRoots, err := feedback.LoadAccumulatedRoots(d.cfg.AccumulatedRootsPath)
	if err != nil {
		return err
	}
	added := feedback.MergeRoots(existingRoots, newRoots)
	if err := feedback.SaveAccumulatedRoots(d.cfg.AccumulatedRootsPath, existingRoots); err != nil {
		return err
	}
	if d.forensic != nil {
		for _, root := range newRoots {
			if err := d.forensic.RecordRootCohorts(context.Background(), root); err != nil {
				log.Printf("[Orchestrator] forensics mirror: failed to record cohorts for root %q: %v", root.Word, err)
			}
		}
	}

	cohortDestinations := make(feedback.CohortDestinations)
	for _, root := range newRoots {
		for _, cohort := range root.Cohorts {
			path := d.cfg.CohortWordlistDir + "/" + cohort + ".txt"
			cohortDestinations[cohort] = path
			if _, _, err := feedback.GrowCohortWordlist(path, []string{root.Word}); err != nil {
				return err
			}
		}
	}

	compositeSize, err := feedback.BuildCompositeWordlist(d.cfg.CompositeWordlistPath, existingRoots, cohortDestinations)
	if err != nil {
		return err
	}

	derived, handAuthored, err := feedback.LoadRuleset(d.cfg.RulesPath)
	if err != nil {
		return err
	}
	baseline := make(map[string]bool, len(derived))
	for _, r := range derived {
		baseline[r] = true
	}
	rules := feedback.EmitRules(patternCounts, d.cfg.MinPatternFrequency, suffixCounts, d.cfg.TopKSuffixes, d.cfg.RecentYears, nil)
	if err := feedback.SaveRuleset(d.cfg.RulesPath, rules, handAuthored, "generated by gravelpit feedback pass"); err != nil {
		return err
	}

	batchState := d.state.Get(batchID)
	feedbackCracks := 0
	if batchState != nil {
		feedbackCracks = feedback.FeedbackAttackCracks(batchState.AttackResults, d.cfg.FeedbackAttackPrefixes)
	}
	summary := feedback.BatchFeedback{
		NewRootsDiscovered:    added,
		TotalDiscoveredRoots:  len(existingRoots),
		CompositeWordlistSize: compositeSize,
	}.ToSummary(feedbackCracks, len(existingRoots), compositeSize)

	if err := d.state.RecordFeedback(batchID, summary); err != nil {
		return err
	}

	if discovered := d.discover.Candidates(); len(discovered) > 0 {
		for _, c := range discovered {
			log.Printf("[Orchestrator] candidate cohort %q: %d matches, samples %v", c.Label, c.MatchCount, c.SampleRoots)
		}
	}
	return nil
}
