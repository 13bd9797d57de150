// Package hint produces player hints and crossing narration: exact lookups in a
// precomputed table first, then a persistent cache, then a text generator with bounded
// backoff, and finally a static fallback.
package hint

import (
	"fmt"

	"github.com/divijg19/lakecross/internal/puzzle"
)

// Table maps a settled state on the optimal path to its next crossing. States off the
// path are not in it and fall through to the cache and generator.
type Table map[puzzle.Fingerprint]string

// optimalPlan is the canonical solution under the default rules, else a shortest solution
// found by search.
func optimalPlan(e *puzzle.Engine) ([]puzzle.Step, error) {
	r, def := e.Rules(), puzzle.DefaultRules()
	if r.Units == def.Units && r.Capacity == def.Capacity {
		return puzzle.CanonicalSolution(), nil
	}
	return e.Solve(e.Start())
}

// BuildTable replays plan from the opening and records each crossing against the state
// it is made from. It stops at the first step the engine rejects.
func BuildTable(e *puzzle.Engine, plan []puzzle.Step) (Table, error) {
	t := Table{}
	s := e.Start()
	for i, st := range plan {
		t[s.Fingerprint()] = st.Describe(s.Boat.Location) + "."
		next, out := e.Apply(s, st)
		if !out.Accepted {
			return t, fmt.Errorf("build hint table: step %d: %s", i+1, out.Message())
		}
		if next.Phase == puzzle.Lost {
			return t, fmt.Errorf("build hint table: step %d loses the game", i+1)
		}
		s = next
	}
	return t, nil
}

// Lookup returns the hint for s. Loaded but uncrossed cargo is settled back on its bank
// first, so a half-loaded boat still matches.
func (t Table) Lookup(s puzzle.State) (string, bool) {
	text, ok := t[puzzle.Settle(s).Fingerprint()]
	return text, ok
}
