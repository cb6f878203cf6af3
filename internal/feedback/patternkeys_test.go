package feedback

import (
	"reflect"
	"testing"

	"github.com/rawblock/gravelpit/internal/analyzer"
)

func TestPatternKeysMapsTrailingDigitArity(t *testing.T) {
	keys := PatternKeys(analyzer.ClassifyPattern("dragon2024"))
	want := []string{"d3"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("PatternKeys = %v, want %v", keys, want)
	}
}

func TestPatternKeysMapsTrailingBangSuffix(t *testing.T) {
	keys := PatternKeys(analyzer.ClassifyPattern("dragon!"))
	want := []string{"!"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("PatternKeys = %v, want %v", keys, want)
	}
}

func TestPatternKeysEmptyWhenNoMatchingFlags(t *testing.T) {
	keys := PatternKeys(analyzer.ClassifyPattern("hello"))
	if len(keys) != 0 {
		t.Fatalf("PatternKeys = %v, want empty", keys)
	}
}
