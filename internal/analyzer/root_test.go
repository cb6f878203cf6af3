package analyzer

import "testing"

// TestScenarioS5RootExtraction mirrors the documented root-extraction
// scenario's accept/reject set.
func TestScenarioS5RootExtraction(t *testing.T) {
	cases := []struct {
		plaintext string
		accepted  bool
		wantRoot  string
	}{
		{"minecraft2024", true, "minecraft"},
		{"Abdullah@456", true, "abdullah"},
		{"!0tUA6", false, ""},
		{"furkan1", true, "furkan"},
		{"qwer12", false, "qwer"},
	}

	for _, c := range cases {
		ext := ExtractRoot(c.plaintext)
		accepted := IsAcceptedRoot(ext.Root, DefaultAcceptanceConfig)
		if accepted != c.accepted {
			t.Errorf("IsAcceptedRoot(%q) [root=%q] = %v, want %v", c.plaintext, ext.Root, accepted, c.accepted)
		}
		if c.accepted && ext.Root != c.wantRoot {
			t.Errorf("ExtractRoot(%q).Root = %q, want %q", c.plaintext, ext.Root, c.wantRoot)
		}
	}
}

func TestExtractRootStripsPrefixAndSuffix(t *testing.T) {
	ext := ExtractRoot("2024furkan!!")
	if ext.Prefix != "2024" {
		t.Errorf("Prefix = %q, want 2024", ext.Prefix)
	}
	if ext.Root != "furkan" {
		t.Errorf("Root = %q, want furkan", ext.Root)
	}
	if ext.Suffix != "!!" {
		t.Errorf("Suffix = %q, want !!", ext.Suffix)
	}
}

func TestShannonEntropyOfUniformStringIsMaximal(t *testing.T) {
	h := ShannonEntropy("abcd")
	if h != 2.0 {
		t.Fatalf("ShannonEntropy(abcd) = %v, want 2.0", h)
	}
}

func TestShannonEntropyOfRepeatedCharIsZero(t *testing.T) {
	if h := ShannonEntropy("aaaa"); h != 0 {
		t.Fatalf("ShannonEntropy(aaaa) = %v, want 0", h)
	}
}
