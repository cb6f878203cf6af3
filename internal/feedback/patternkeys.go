package feedback

import "github.com/rawblock/gravelpit/internal/analyzer"

// PatternKeys maps a single plaintext's transformation-pattern bitmask to
// the rule-synthesis key strings EmitRules groups frequency counts by —
// the bridge between the Analyzer's per-password bitmask and the Emitter's
// per-pattern-class tally.
func PatternKeys(flags analyzer.PatternFlags) []string {
	var keys []string
	switch {
	case flags&analyzer.FlagSuffixBangAt != 0:
		keys = append(keys, "!@")
	case flags&analyzer.FlagSuffixBang != 0:
		keys = append(keys, "!")
	case flags&analyzer.FlagSuffixAt != 0:
		keys = append(keys, "@")
	}
	switch {
	case flags&analyzer.FlagDigitSuffix3Plus != 0:
		keys = append(keys, "d3")
	case flags&analyzer.FlagDigitSuffix2 != 0:
		keys = append(keys, "d2")
	case flags&analyzer.FlagDigitSuffix1 != 0:
		keys = append(keys, "d1")
	}
	return keys
}
