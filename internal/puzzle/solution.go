package puzzle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/divijg19/lakecross/internal/core"
)

// ErrUnsolvable is returned by Solve when no safe sequence of crossings reaches the goal.
var ErrUnsolvable = errors.New("puzzle: no solution from this state")

// Step is one crossing: the load carried from the boat's current bank.
type Step struct {
	Load Population `json:"load"`
}

// Describe renders the step as an instruction for a boat docked at from.
func (st Step) Describe(from core.Side) string {
	var parts []string
	if n := st.Load.Priests; n > 0 {
		parts = append(parts, plural(n, "priest"))
	}
	if n := st.Load.Carnivores; n > 0 {
		parts = append(parts, plural(n, "carnivore"))
	}
	return fmt.Sprintf("Move %s from %s to %s", strings.Join(parts, " and "), from, from.Opposite())
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// CanonicalSolution is the shortest solution for the default rules.
func CanonicalSolution() []Step {
	return []Step{
		{Load: Population{Carnivores: 2}},
		{Load: Population{Carnivores: 1}},
		{Load: Population{Carnivores: 2}},
		{Load: Population{Carnivores: 1}},
		{Load: Population{Priests: 2}},
		{Load: Population{Priests: 1, Carnivores: 1}},
		{Load: Population{Priests: 2}},
		{Load: Population{Carnivores: 1}},
		{Load: Population{Carnivores: 2}},
		{Load: Population{Carnivores: 1}},
		{Load: Population{Carnivores: 2}},
	}
}

// Settle returns s with any cargo put back on the bank the boat is docked at. Safety is
// unaffected, since docked cargo already counts toward that bank.
func Settle(s State) State {
	side := s.Boat.Location
	s = s.withShore(side, s.Shore(side).plus(s.Boat.Cargo))
	s.Boat.Cargo = Population{}
	return s
}

// Apply loads the step's units onto the boat and crosses. The boat must be empty.
func (e *Engine) Apply(s State, st Step) (State, Outcome) {
	if s.Boat.Cargo.Total() != 0 {
		return s, rejected(ReasonBoatFull)
	}
	next := s
	var out Outcome
	for _, k := range []core.Kind{core.Priest, core.Carnivore} {
		for i := 0; i < st.Load.Count(k); i++ {
			if next, out = e.TransferToBoat(next, k); !out.Accepted {
				return s, out
			}
		}
	}
	return e.CrossLake(next)
}

type searchNode struct {
	prev Fingerprint
	step Step
	root bool
}

// Solve finds a shortest sequence of crossings from s to the goal by breadth-first search
// over settled states. Crossings that end in a loss are never expanded.
func (e *Engine) Solve(s State) ([]Step, error) {
	switch s.Phase {
	case Lost:
		return nil, ErrUnsolvable
	case Won:
		return nil, nil
	}
	start := Settle(s)
	seen := map[Fingerprint]searchNode{start.Fingerprint(): {root: true}}
	queue := []State{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, st := range e.loads(cur) {
			next, out := e.Apply(cur, st)
			if !out.Accepted || next.Phase == Lost {
				continue
			}
			fp := next.Fingerprint()
			if _, ok := seen[fp]; ok {
				continue
			}
			seen[fp] = searchNode{prev: cur.Fingerprint(), step: st}
			if next.Phase == Won {
				return unwind(seen, fp), nil
			}
			queue = append(queue, next)
		}
	}
	return nil, ErrUnsolvable
}

func unwind(seen map[Fingerprint]searchNode, fp Fingerprint) []Step {
	var steps []Step
	for n := seen[fp]; !n.root; n = seen[fp] {
		steps = append(steps, n.step)
		fp = n.prev
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps
}

// loads enumerates every non-empty load that fits the boat from the docked bank.
func (e *Engine) loads(s State) []Step {
	shore := s.Shore(s.Boat.Location)
	var out []Step
	for p := 0; p <= min(shore.Priests, e.rules.Capacity); p++ {
		for c := 0; c <= min(shore.Carnivores, e.rules.Capacity-p); c++ {
			if p+c == 0 {
				continue
			}
			out = append(out, Step{Load: Population{Priests: p, Carnivores: c}})
		}
	}
	return out
}

// Reachable walks every settled state reachable from the opening without a loss, in
// breadth-first order. Won states are included but not expanded.
func (e *Engine) Reachable() []State {
	start := e.Start()
	seen := map[Fingerprint]bool{start.Fingerprint(): true}
	order := []State{start}
	for i := 0; i < len(order); i++ {
		cur := order[i]
		if cur.Phase.Terminal() {
			continue
		}
		for _, st := range e.loads(cur) {
			next, out := e.Apply(cur, st)
			if !out.Accepted || next.Phase == Lost {
				continue
			}
			if fp := next.Fingerprint(); !seen[fp] {
				seen[fp] = true
				order = append(order, next)
			}
		}
	}
	return order
}
