package sequencer

import "testing"

func TestDefaultRecipesValidateAgainstDefaultOrder(t *testing.T) {
	registry := NewRegistry(DefaultAttackOrder(), DefaultRecipes())
	if err := registry.Validate(registry.DefaultOrder()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestDefaultRecipesTranslateWithoutError(t *testing.T) {
	assets := AssetMap{
		AssetBaseline:  "/remote/assets/baseline.txt",
		AssetRockyou:   "/remote/assets/rockyou.txt",
		AssetComposite: "/remote/assets/composite.txt",
		AssetBestRules: "/remote/assets/best64.rule",
		AssetMaskDigit: "/remote/assets/digits-append.hcmask",
	}
	for _, recipe := range DefaultRecipes() {
		if _, err := Translate(recipe.CommandTemplate, "/remote/sand-0001.txt", "/remote/logs/x.log", recipe.AssetIDs, assets); err != nil {
			t.Fatalf("Translate(%s): %v", recipe.Name, err)
		}
	}
}
