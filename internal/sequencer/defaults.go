package sequencer

import "github.com/rawblock/gravelpit/pkg/models"

// Asset id literals referenced by DefaultRecipes' command templates. The
// concrete remote paths they resolve to come from the AssetMap the CLI
// builds at startup, not from here.
const (
	AssetBaseline  = "baseline.txt"
	AssetRockyou   = "rockyou.txt"
	AssetComposite = "composite.txt"
	AssetBestRules = "best64.rule"
	AssetMaskDigit = "digits-append.hcmask"
)

// DefaultAttackOrder is the recipe execution order DefaultRecipes expects:
// cheap dictionary passes before expensive mask brute-forcing, so GPU time
// is spent on narrow candidate sets before the wide ones.
func DefaultAttackOrder() []string {
	return []string{
		"baseline-dictionary",
		"rockyou-rules",
		"composite-rules",
		"mask-digit-append",
	}
}

// DefaultRecipes is the static attack recipe table a fresh deployment
// starts with. Operators may override or extend it; nothing here is
// discovered at runtime.
func DefaultRecipes() []models.AttackRecipe {
	return []models.AttackRecipe{
		{
			Name:              "baseline-dictionary",
			Phase:             "feedback",
			CommandTemplate:   "hashcat -m 100 -a 0 " + models.HashlistToken + " " + AssetBaseline + " --potfile-disable -o #OUT#",
			AssetIDs:          []string{AssetBaseline},
			MaxParallelism:    1,
			Priority:          0,
			ExpectedYieldRate: 0.05,
			Description:       "known cracked-password baseline, cheapest possible pass",
		},
		{
			Name:              "rockyou-rules",
			Phase:             "new-wordlists",
			CommandTemplate:   "hashcat -m 100 -a 0 " + models.HashlistToken + " " + AssetRockyou + " -r " + AssetBestRules + " --potfile-disable -o #OUT#",
			AssetIDs:          []string{AssetRockyou, AssetBestRules},
			MaxParallelism:    1,
			Priority:          1,
			ExpectedYieldRate: 0.2,
			Description:       "rockyou wordlist with best64 rule mutations",
		},
		{
			Name:              "composite-rules",
			Phase:             "feedback",
			CommandTemplate:   "hashcat -m 100 -a 0 " + models.HashlistToken + " " + AssetComposite + " -r " + AssetBestRules + " --potfile-disable -o #OUT#",
			AssetIDs:          []string{AssetComposite, AssetBestRules},
			MaxParallelism:    1,
			Priority:          2,
			ExpectedYieldRate: 0.1,
			Description:       "this run's composite accumulated-roots + cohort wordlist",
		},
		{
			Name:              "mask-digit-append",
			Phase:             "brute",
			CommandTemplate:   "hashcat -m 100 -a 6 " + models.HashlistToken + " " + AssetComposite + " " + AssetMaskDigit + " --potfile-disable -o #OUT#",
			AssetIDs:          []string{AssetComposite, AssetMaskDigit},
			MaxParallelism:    1,
			Priority:          3,
			ExpectedYieldRate: 0.02,
			Description:       "composite wordlist with a trailing 2-4 digit mask, the final catch-all pass",
		},
	}
}
