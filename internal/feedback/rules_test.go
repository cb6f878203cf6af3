package feedback

import (
	"path/filepath"
	"testing"
)

// TestScenarioS7RuleEmission mirrors the documented rule-emission
// scenario's pattern counts and frequency threshold.
func TestScenarioS7RuleEmission(t *testing.T) {
	patternCounts := map[string]int{
		"!":  14,
		"d3": 9,
		"d1": 3,
	}
	rules := EmitRules(patternCounts, 5, nil, 0, nil, nil)

	if !containsRule(rules, "$!") {
		t.Errorf("rules = %v, want $! included (count 14 > 5)", rules)
	}
	if !containsRule(rules, "$0$0$0") {
		t.Errorf("rules = %v, want three-digit-append rule included (count 9 > 5)", rules)
	}
	if containsRule(rules, "$0") {
		t.Errorf("rules = %v, want one-digit-append rule excluded (count 3 <= 5)", rules)
	}
}

func TestEmitRulesFiltersBaseline(t *testing.T) {
	patternCounts := map[string]int{"!": 14}
	baseline := map[string]bool{"$!": true}
	rules := EmitRules(patternCounts, 5, nil, 0, nil, baseline)
	if containsRule(rules, "$!") {
		t.Errorf("rules = %v, $! should be filtered by baseline", rules)
	}
}

func TestEmitRulesIncludesTopKSuffixesAndRecentYears(t *testing.T) {
	suffixCounts := map[string]int{"123": 50, "1": 3, "99": 10}
	rules := EmitRules(nil, 5, suffixCounts, 2, []int{2024}, nil)

	if !containsRule(rules, "$1$2$3") {
		t.Errorf("rules = %v, want top suffix 123 included", rules)
	}
	if !containsRule(rules, "$9$9") {
		t.Errorf("rules = %v, want second suffix 99 included", rules)
	}
	if containsRule(rules, "$1") {
		t.Errorf("rules = %v, want suffix '1' excluded (below top-2)", rules)
	}
	if !containsRule(rules, "$2$0$2$4") {
		t.Errorf("rules = %v, want recent-year rule for 2024", rules)
	}
}

func TestSaveAndLoadRulesetPreservesHandAuthoredBlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.txt")

	if err := SaveRuleset(path, []string{"$!", "$0$0$0"}, []string{"c $1 $2 $3"}, "generated 2026-08-01"); err != nil {
		t.Fatalf("SaveRuleset: %v", err)
	}

	derived, hand, err := LoadRuleset(path)
	if err != nil {
		t.Fatalf("LoadRuleset: %v", err)
	}
	if len(derived) != 2 {
		t.Fatalf("derived = %v, want 2 entries", derived)
	}
	if len(hand) != 1 || hand[0] != "c $1 $2 $3" {
		t.Fatalf("handAuthored = %v, want [c $1 $2 $3]", hand)
	}

	// Rewrite with fresh derived rules but the same hand-authored block,
	// as the emitter would on a second run.
	if err := SaveRuleset(path, []string{"$@"}, hand, "generated 2026-08-02"); err != nil {
		t.Fatalf("second SaveRuleset: %v", err)
	}
	_, hand2, err := LoadRuleset(path)
	if err != nil {
		t.Fatalf("LoadRuleset after rewrite: %v", err)
	}
	if len(hand2) != 1 || hand2[0] != "c $1 $2 $3" {
		t.Fatalf("hand-authored block not preserved verbatim: %v", hand2)
	}
}

func containsRule(rules []string, target string) bool {
	for _, r := range rules {
		if r == target {
			return true
		}
	}
	return false
}
