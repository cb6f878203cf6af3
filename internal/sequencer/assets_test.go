package sequencer

import "testing"

func TestTranslateSubstitutesHashlistOutputAndAssetTokens(t *testing.T) {
	cmd, err := Translate(
		"hashcat -a 0 #HL# rockyou.txt -o #OUT#",
		"/remote/batch-0001.txt",
		"/remote/logs/gravelpit-0001.log",
		[]string{"rockyou.txt"},
		AssetMap{"rockyou.txt": "/remote/wordlists/rockyou.txt"},
	)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	want := "hashcat -a 0 /remote/batch-0001.txt /remote/wordlists/rockyou.txt -o /remote/logs/gravelpit-0001.log"
	if cmd != want {
		t.Fatalf("Translate = %q, want %q", cmd, want)
	}
}

func TestTranslateErrorsOnUnresolvedAsset(t *testing.T) {
	_, err := Translate("hashcat #HL# unknown.txt -o #OUT#", "/b.txt", "/l.log", []string{"unknown.txt"}, AssetMap{})
	if err == nil {
		t.Fatal("expected error for asset with no remote path")
	}
}

func TestTranslateErrorsWhenTemplateMissesAssetToken(t *testing.T) {
	_, err := Translate("hashcat #HL# -o #OUT#", "/b.txt", "/l.log", []string{"rockyou.txt"}, AssetMap{"rockyou.txt": "/x"})
	if err == nil {
		t.Fatal("expected error when template never references the asset token")
	}
}
