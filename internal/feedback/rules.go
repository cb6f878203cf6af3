package feedback

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rawblock/gravelpit/internal/failure"
)

// Hand-authored rules live between these two marker comments in the
// ruleset file; on rewrite the block is copied verbatim, never
// regenerated.
const (
	handAuthoredBegin = "# BEGIN HAND-AUTHORED"
	handAuthoredEnd   = "# END HAND-AUTHORED"
)

// LoadRuleset splits an existing ruleset file into its prior derived rules
// and its hand-authored block (the lines strictly between the two
// markers, markers excluded). A missing file yields two empty slices.
func LoadRuleset(path string) (derived []string, handAuthored []string, err error) {
	f, openErr := os.Open(path)
	if os.IsNotExist(openErr) {
		return nil, nil, nil
	}
	if openErr != nil {
		return nil, nil, failure.New(failure.SourceIO, openErr)
	}
	defer f.Close()

	inHandBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == handAuthoredBegin:
			inHandBlock = true
		case line == handAuthoredEnd:
			inHandBlock = false
		case inHandBlock:
			handAuthored = append(handAuthored, line)
		case line == "" || strings.HasPrefix(line, "#"):
			// skip blank lines and non-hand-authored comments (e.g. the
			// timestamped header), which are regenerated every run.
		default:
			derived = append(derived, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, failure.New(failure.SourceIO, err)
	}
	return derived, handAuthored, nil
}

// translatePatternRule maps a transformation-pattern key to a hashcat
// append-rule string. Keys that are runs of literal special characters
// (e.g. "!", "!@") translate character-by-character to "$c" append ops.
// Keys of the form "dN" (an N-digit suffix arity, not any specific value)
// translate to a representative N-digit append — the arity is what the
// pattern groups on, not a captured literal value.
func translatePatternRule(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if strings.HasPrefix(key, "d") {
		n, err := strconv.Atoi(key[1:])
		if err == nil && n > 0 {
			return strings.Repeat("$0", n), true
		}
		return "", false
	}
	if isAllSpecialChars(key) {
		var b strings.Builder
		for _, c := range key {
			b.WriteByte('$')
			b.WriteRune(c)
		}
		return b.String(), true
	}
	return "", false
}

func isAllSpecialChars(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune(`!@#$%^&*()_-+=.`, c) {
			return false
		}
	}
	return true
}

// literalAppendRule turns an observed literal suffix (e.g. "123") into a
// hashcat append rule.
func literalAppendRule(suffix string) string {
	var b strings.Builder
	for _, c := range suffix {
		b.WriteByte('$')
		b.WriteRune(c)
	}
	return b.String()
}

// EmitRules derives the union of: transformation-pattern rules whose
// observed count exceeds minFrequency, literal-append rules for the topK
// most-observed literal suffixes, and a fixed set of recent-year append
// rules — minus anything already present in baseline.
func EmitRules(patternCounts map[string]int, minFrequency int, suffixCounts map[string]int, topK int, recentYears []int, baseline map[string]bool) []string {
	seen := make(map[string]bool)
	var rules []string

	add := func(rule string) {
		if rule == "" || seen[rule] || baseline[rule] {
			return
		}
		seen[rule] = true
		rules = append(rules, rule)
	}

	patternKeys := make([]string, 0, len(patternCounts))
	for k := range patternCounts {
		patternKeys = append(patternKeys, k)
	}
	sort.Strings(patternKeys)
	for _, key := range patternKeys {
		if patternCounts[key] <= minFrequency {
			continue
		}
		if rule, ok := translatePatternRule(key); ok {
			add(rule)
		}
	}

	type suffixCount struct {
		suffix string
		count  int
	}
	suffixes := make([]suffixCount, 0, len(suffixCounts))
	for s, c := range suffixCounts {
		suffixes = append(suffixes, suffixCount{s, c})
	}
	sort.Slice(suffixes, func(i, j int) bool {
		if suffixes[i].count != suffixes[j].count {
			return suffixes[i].count > suffixes[j].count
		}
		return suffixes[i].suffix < suffixes[j].suffix
	})
	for i, sc := range suffixes {
		if i >= topK {
			break
		}
		add(literalAppendRule(sc.suffix))
	}

	for _, year := range recentYears {
		add(literalAppendRule(fmt.Sprintf("%d", year)))
	}

	return rules
}

// SaveRuleset writes derived ∪ handAuthored back to path, with the
// hand-authored block preserved verbatim inside its markers, and a fresh
// timestamped header comment.
func SaveRuleset(path string, derived []string, handAuthored []string, header string) error {
	lines := make([]string, 0, len(derived)+len(handAuthored)+4)
	if header != "" {
		lines = append(lines, "# "+header)
	}
	lines = append(lines, derived...)
	lines = append(lines, handAuthoredBegin)
	lines = append(lines, handAuthored...)
	lines = append(lines, handAuthoredEnd)

	return writeAtomicLines(path, lines)
}
