// Package analyzer implements the Plaintext Analyzer: classifying
// recovered plaintexts as structured or random, extracting roots, tagging
// transformation patterns, and grouping roots into cohorts.
package analyzer

import "math"

// ShannonEntropy computes per-character Shannon entropy,
// H = -Σ p_i log2(p_i), over the observed character distribution of s.
// An empty string has zero entropy.
func ShannonEntropy(s string) float64 {
	if len(s) == 0 {
		return 0
	}

	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}

	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// DefaultRandomEntropyThreshold is the whole-string entropy above which a
// plaintext is treated as random rather than structured. It is a package
// constant; the feedback pass compares against it directly.
const DefaultRandomEntropyThreshold = 3.8
