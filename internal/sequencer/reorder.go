package sequencer

// AttackStats is the minimal per-attack effectiveness summary the reorder
// function needs — deliberately decoupled from state.AttackStats so this
// package doesn't need to import internal/state.
type AttackStats struct {
	TotalNewCracks int
	TotalDuration  float64
}

// StatsProvider supplies observed effectiveness per attack name, the same
// shape as state.Store.StatsProvider's output.
type StatsProvider func() map[string]AttackStats

// CrackRate ranks an attack by cracks produced per second spent, the
// mechanism spec'd for reordering (observed crack rate ÷ duration). An
// attack never yet applied ranks via its recipe's expectedYieldRate so it
// isn't starved to the back of the queue on a cold start.
func CrackRate(stats StatsProvider, registry *Registry) func(name string) float64 {
	observed := stats()
	return func(name string) float64 {
		if s, ok := observed[name]; ok && s.TotalDuration > 0 {
			return float64(s.TotalNewCracks) / s.TotalDuration
		}
		if recipe, ok := registry.Lookup(name); ok {
			return recipe.ExpectedYieldRate
		}
		return 0
	}
}
