package analyzer

import (
	"regexp"
	"strings"
)

// PatternFlags is an OR-accumulated bitmask of transformation signatures
// observed in a single plaintext: independent boolean heuristics folded
// into one word.
type PatternFlags uint64

const (
	FlagLenShort PatternFlags = 1 << iota // < 6 chars
	FlagLenMedium                          // 6-10 chars
	FlagLenLong                            // > 10 chars

	FlagAllLower
	FlagAllUpper
	FlagCapitalized // First letter upper, rest lower
	FlagCamelCase   // Mixed case with no simple capitalized pattern

	FlagDigitSuffix1
	FlagDigitSuffix2
	FlagDigitSuffix3Plus

	FlagYearSuffix
	FlagYearSuffixRecent // 2015 or later

	FlagSuffixBang    // trailing "!"
	FlagSuffixAt      // trailing "@"
	FlagSuffixBangAt  // trailing "!@" or "@!"
	FlagSuffixDigits123

	FlagDigitPrefix

	FlagLeetAt     // a -> @
	FlagLeetThree  // e -> 3
	FlagLeetOne    // i -> 1
	FlagLeetZero   // o -> 0
	FlagLeetDollar // s -> $

	FlagKeyboardWalk
	FlagCharRepeat  // same character 3+ times in a row
	FlagBlockRepeat // a multi-char block repeated back to back
)

var (
	yearSuffixPattern   = regexp.MustCompile(`(19|20)\d{2}$`)
	digitSuffixPattern  = regexp.MustCompile(`[0-9]+$`)
	digitPrefixPattern  = regexp.MustCompile(`^[0-9]+`)
	keyboardWalks       = []string{"qwerty", "asdf", "zxcv", "1qaz", "qazwsx", "123456", "098765"}
)

// ClassifyPattern tags a single plaintext with every matching
// transformation flag. Flags are counted across the corpus by the caller;
// this function is pure and per-password.
func ClassifyPattern(plaintext string) PatternFlags {
	var flags PatternFlags

	switch {
	case len(plaintext) < 6:
		flags |= FlagLenShort
	case len(plaintext) <= 10:
		flags |= FlagLenMedium
	default:
		flags |= FlagLenLong
	}

	flags |= classifyCase(plaintext)

	if digits := digitSuffixPattern.FindString(plaintext); digits != "" {
		switch len(digits) {
		case 1:
			flags |= FlagDigitSuffix1
		case 2:
			flags |= FlagDigitSuffix2
		default:
			flags |= FlagDigitSuffix3Plus
		}
		if digits == "123" {
			flags |= FlagSuffixDigits123
		}
	}

	if year := yearSuffixPattern.FindString(plaintext); year != "" {
		flags |= FlagYearSuffix
		if year >= "2015" {
			flags |= FlagYearSuffixRecent
		}
	}

	if digitPrefixPattern.MatchString(plaintext) {
		flags |= FlagDigitPrefix
	}

	flags |= classifySpecialSuffix(plaintext)
	flags |= classifyLeet(plaintext)

	lower := strings.ToLower(plaintext)
	for _, walk := range keyboardWalks {
		if strings.Contains(lower, walk) {
			flags |= FlagKeyboardWalk
			break
		}
	}

	if hasCharRepeat(plaintext) {
		flags |= FlagCharRepeat
	}
	if hasBlockRepeat(plaintext) {
		flags |= FlagBlockRepeat
	}

	return flags
}

func classifyCase(s string) PatternFlags {
	hasLower, hasUpper := false, false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		}
	}
	switch {
	case hasLower && !hasUpper:
		return FlagAllLower
	case hasUpper && !hasLower:
		return FlagAllUpper
	case len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' && strings.ToUpper(s[:1])+strings.ToLower(s[1:]) == s:
		return FlagCapitalized
	case hasLower && hasUpper:
		return FlagCamelCase
	default:
		return 0
	}
}

func classifySpecialSuffix(s string) PatternFlags {
	var flags PatternFlags
	switch {
	case strings.HasSuffix(s, "!@"), strings.HasSuffix(s, "@!"):
		flags |= FlagSuffixBangAt
	case strings.HasSuffix(s, "!"):
		flags |= FlagSuffixBang
	case strings.HasSuffix(s, "@"):
		flags |= FlagSuffixAt
	}
	return flags
}

func classifyLeet(s string) PatternFlags {
	var flags PatternFlags
	if strings.Contains(s, "@") {
		flags |= FlagLeetAt
	}
	if strings.Contains(s, "3") {
		flags |= FlagLeetThree
	}
	if strings.Contains(s, "1") {
		flags |= FlagLeetOne
	}
	if strings.Contains(s, "0") {
		flags |= FlagLeetZero
	}
	if strings.Contains(s, "$") {
		flags |= FlagLeetDollar
	}
	return flags
}

// hasBlockRepeat reports whether s contains a multi-character block
// immediately repeated, e.g. "abab" or "123123".
func hasBlockRepeat(s string) bool {
	for blockLen := 2; blockLen*2 <= len(s); blockLen++ {
		for i := 0; i+blockLen*2 <= len(s); i++ {
			if s[i:i+blockLen] == s[i+blockLen:i+blockLen*2] {
				return true
			}
		}
	}
	return false
}

// hasCharRepeat reports whether s contains the same byte three or more
// times in a row, e.g. "aaa" or "111".
func hasCharRepeat(s string) bool {
	for i := 0; i+2 < len(s); i++ {
		if s[i] == s[i+1] && s[i] == s[i+2] {
			return true
		}
	}
	return false
}

// SuffixLiteral returns the suffix ExtractRoot strips from a plaintext:
// the trailing digit run concatenated with the special-character run that
// precedes it ("dragon2024" yields "2024", "dragon!2024" yields "2024!").
// Digits before a trailing special run are not included, so "dragon2024@"
// yields "@".
// Used by the Feedback Emitter to count observed literal suffixes for rule
// synthesis.
func SuffixLiteral(plaintext string) string {
	ext := ExtractRoot(plaintext)
	return ext.Suffix
}
