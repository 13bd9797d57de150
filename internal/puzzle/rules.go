package puzzle

import (
	"fmt"

	"github.com/divijg19/lakecross/internal/core"
)

// Rules parameterize the puzzle. OptimalCrossings is the minimum solution length for
// Units/Capacity and is supplied by configuration rather than derived at runtime.
type Rules struct {
	Units            int `yaml:"units" json:"units"`
	Capacity         int `yaml:"capacity" json:"capacity"`
	OptimalCrossings int `yaml:"optimalCrossings" json:"optimalCrossings"`
}

// DefaultRules is the classic three priests, three carnivores, two-seat boat.
func DefaultRules() Rules {
	return Rules{Units: 3, Capacity: 2, OptimalCrossings: 11}
}

// Validate rejects rule sets the engine cannot play.
func (r Rules) Validate() error {
	if r.Units < 1 {
		return fmt.Errorf("rules: units must be > 0")
	}
	if r.Capacity < 1 {
		return fmt.Errorf("rules: capacity must be > 0")
	}
	if r.OptimalCrossings < 1 {
		return fmt.Errorf("rules: optimal crossings must be > 0")
	}
	return nil
}

// Start returns the opening state: everyone on the left bank, empty boat docked left.
func (r Rules) Start() State {
	return State{
		Left:  Population{Priests: r.Units, Carnivores: r.Units},
		Boat:  Boat{Location: core.Left},
		Phase: InProgress,
	}
}

// CheckInvariants verifies conservation of units and the boat capacity.
func (r Rules) CheckInvariants(s State) error {
	for _, p := range []Population{s.Left, s.Right, s.Boat.Cargo} {
		if p.Priests < 0 || p.Carnivores < 0 {
			return fmt.Errorf("negative population in %+v", s)
		}
	}
	if got := s.Left.Priests + s.Right.Priests + s.Boat.Cargo.Priests; got != r.Units {
		return fmt.Errorf("priests not conserved: %d != %d", got, r.Units)
	}
	if got := s.Left.Carnivores + s.Right.Carnivores + s.Boat.Cargo.Carnivores; got != r.Units {
		return fmt.Errorf("carnivores not conserved: %d != %d", got, r.Units)
	}
	if s.Boat.Cargo.Total() > r.Capacity {
		return fmt.Errorf("cargo %d exceeds capacity %d", s.Boat.Cargo.Total(), r.Capacity)
	}
	return nil
}

func (r Rules) won(s State) bool {
	return s.Left == Population{} &&
		s.Right == Population{Priests: r.Units, Carnivores: r.Units} &&
		s.Boat.Cargo == Population{} &&
		s.Boat.Location == core.Right
}

// unsafe reports whether carnivores outnumber present priests on a bank, counting the
// cargo only when the boat is docked at that bank.
func unsafe(s State, side core.Side) bool {
	p := s.Exposed(side)
	return p.Priests > 0 && p.Carnivores > p.Priests
}

func lost(s State) bool {
	return unsafe(s, core.Left) || unsafe(s, core.Right)
}
