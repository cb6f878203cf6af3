package analyzer

import (
	"regexp"
	"strings"
)

var (
	leadingDigits     = regexp.MustCompile(`^[0-9]+`)
	trailingDigits    = regexp.MustCompile(`[0-9]+$`)
	trailingSpecial   = regexp.MustCompile(`[!@#$%^&*()_\-+=.]+$`)
	letterOnly        = regexp.MustCompile(`^[a-z]+$`)
	vowelPattern      = regexp.MustCompile(`[aeiouy]`)
	rejectedRootNames = regexp.MustCompile(`^(qwer|asdf|zxcv|abcd|pass|word|test|admin|user|login|1234)`)
)

// RootExtraction is the deterministic result of peeling affixes off a
// plaintext: prefix digits, trailing special characters, trailing digits,
// and the lowercase remainder.
type RootExtraction struct {
	Prefix string
	Suffix string
	Root   string
}

// ExtractRoot applies the four-step deterministic extraction: strip a
// leading digit run into prefix, strip a trailing digit run and then a
// trailing special-character run into suffix (digits then specials,
// concatenated), and lowercase the remainder as the candidate root.
func ExtractRoot(plaintext string) RootExtraction {
	rest := plaintext

	prefix := leadingDigits.FindString(rest)
	rest = strings.TrimPrefix(rest, prefix)

	digitSuffix := trailingDigits.FindString(rest)
	rest = strings.TrimSuffix(rest, digitSuffix)

	specialSuffix := trailingSpecial.FindString(rest)
	rest = strings.TrimSuffix(rest, specialSuffix)

	return RootExtraction{
		Prefix: prefix,
		Suffix: digitSuffix + specialSuffix,
		Root:   strings.ToLower(rest),
	}
}

// AcceptanceConfig parameterizes the root-acceptance predicate. The
// specification leaves the entropy/vowel-ratio cutoffs as tunable — they
// are deliberately not package constants.
type AcceptanceConfig struct {
	MinVowelRatioShort float64 // for length-3/4 roots
	MaxEntropyShort    float64 // for length-3/4 roots
}

// DefaultAcceptanceConfig matches the specification's worked example
// thresholds.
var DefaultAcceptanceConfig = AcceptanceConfig{
	MinVowelRatioShort: 0.25,
	MaxEntropyShort:    2.5,
}

// IsAcceptedRoot reports whether root passes every acceptance criterion:
// length >= 3, letters only, at least one vowel, and either length >= 5 or
// (length in {3,4} and sufficiently vowel-rich and low per-character
// entropy) — then checks it isn't on the keyboard/admin-prefix reject list.
func IsAcceptedRoot(root string, cfg AcceptanceConfig) bool {
	if len(root) < 3 {
		return false
	}
	if !letterOnly.MatchString(root) {
		return false
	}
	if !vowelPattern.MatchString(root) {
		return false
	}

	if len(root) < 5 {
		vowels := countVowels(root)
		ratio := float64(vowels) / float64(len(root))
		if ratio < cfg.MinVowelRatioShort {
			return false
		}
		if ShannonEntropy(root) >= cfg.MaxEntropyShort {
			return false
		}
	}

	if rejectedRootNames.MatchString(root) {
		return false
	}
	return true
}

func countVowels(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'y':
			n++
		}
	}
	return n
}
