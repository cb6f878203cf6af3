package models

// AttackRecipe is a named, parameterized template describing one cracking
// run against a batch's hashlist. Recipes are configuration and immutable
// at runtime.
type AttackRecipe struct {
	Name              string
	Phase             string // "feedback" | "new-wordlists" | "brute" | "hybrid" | "mask"
	CommandTemplate   string // contains the #HL# and #OUT# tokens
	AssetIDs          []string
	MaxParallelism    int
	Priority          int
	ExpectedYieldRate float64
	Description       string
}

// HashlistToken is the placeholder in CommandTemplate denoting "the
// hashlist path for this batch".
const HashlistToken = "#HL#"

// OutputToken is the placeholder in CommandTemplate denoting "the file
// this attack's cracked output should be written to" — the same file the
// Remote Executor tails for the Status: Exhausted/Cracked terminal marker,
// so a completed attack's artifact is both the liveness log and the
// potfile the Result Distributor reconciles against.
const OutputToken = "#OUT#"
