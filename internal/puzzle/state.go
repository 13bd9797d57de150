// Package puzzle implements the river-crossing state machine: two shores, one boat,
// priests who must never be outnumbered by carnivores.
package puzzle

import (
	"fmt"
	"strings"

	"github.com/divijg19/lakecross/internal/core"
)

// Population counts units of each kind in one bucket (a shore or the boat's cargo).
type Population struct {
	Priests    int `json:"priests"`
	Carnivores int `json:"carnivores"`
}

// Total is the number of units in the bucket.
func (p Population) Total() int { return p.Priests + p.Carnivores }

// Count returns the number of units of kind k.
func (p Population) Count(k core.Kind) int {
	if k == core.Priest {
		return p.Priests
	}
	return p.Carnivores
}

func (p Population) plus(o Population) Population {
	return Population{Priests: p.Priests + o.Priests, Carnivores: p.Carnivores + o.Carnivores}
}

func (p Population) shift(k core.Kind, delta int) Population {
	if k == core.Priest {
		p.Priests += delta
	} else {
		p.Carnivores += delta
	}
	return p
}

func (p Population) String() string {
	return fmt.Sprintf("%dp%dc", p.Priests, p.Carnivores)
}

// Boat is the boat's cargo and the bank it is docked at.
type Boat struct {
	Cargo    Population `json:"cargo"`
	Location core.Side  `json:"location"`
}

// Phase classifies a state.
type Phase string

const (
	InProgress Phase = "in_progress"
	Won        Phase = "won"
	Lost       Phase = "lost"
)

// Terminal reports whether the phase is absorbing.
func (p Phase) Terminal() bool { return p == Won || p == Lost }

// State is one immutable snapshot of a game. Operations return a new State.
type State struct {
	Left      Population `json:"left"`
	Right     Population `json:"right"`
	Boat      Boat       `json:"boat"`
	MoveCount int        `json:"moveCount"`
	Phase     Phase      `json:"phase"`
}

// Shore returns the population of the given bank, excluding cargo.
func (s State) Shore(side core.Side) Population {
	if side == core.Left {
		return s.Left
	}
	return s.Right
}

func (s State) withShore(side core.Side, p Population) State {
	if side == core.Left {
		s.Left = p
	} else {
		s.Right = p
	}
	return s
}

// Exposed returns the population a bank must defend: its own units plus the cargo when the
// boat is docked there.
func (s State) Exposed(side core.Side) Population {
	p := s.Shore(side)
	if s.Boat.Location == side {
		p = p.plus(s.Boat.Cargo)
	}
	return p
}

// Describe renders the snapshot passed to text generators.
func (s State) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Left shore: %d priests, %d carnivores\n", s.Left.Priests, s.Left.Carnivores)
	fmt.Fprintf(&b, "Right shore: %d priests, %d carnivores\n", s.Right.Priests, s.Right.Carnivores)
	fmt.Fprintf(&b, "Boat: %d priests, %d carnivores\n", s.Boat.Cargo.Priests, s.Boat.Cargo.Carnivores)
	fmt.Fprintf(&b, "Boat position: %s\n", s.Boat.Location)
	fmt.Fprintf(&b, "Moves: %d", s.MoveCount)
	return b.String()
}

// Fingerprint is the comparable key of a state's populations and boat side. Move count
// and phase are not part of it.
type Fingerprint struct {
	Left  Population
	Right Population
	Cargo Population
	Boat  core.Side
}

// Fingerprint returns the state's key.
func (s State) Fingerprint() Fingerprint {
	return Fingerprint{Left: s.Left, Right: s.Right, Cargo: s.Boat.Cargo, Boat: s.Boat.Location}
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("left:%s right:%s boat:%s[%s]", f.Left, f.Right, f.Boat, f.Cargo)
}
