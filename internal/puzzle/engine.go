package puzzle

import (
	"fmt"

	"github.com/divijg19/lakecross/internal/core"
)

// Reason explains why an operation was rejected.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonGameOver   Reason = "game_over"
	ReasonShoreEmpty Reason = "shore_empty"
	ReasonBoatFull   Reason = "boat_full"
	ReasonNotInBoat  Reason = "not_in_boat"
	ReasonBoatEmpty  Reason = "boat_empty"
)

// Outcome reports whether an operation changed the state.
type Outcome struct {
	Accepted bool
	Reason   Reason
}

var accepted = Outcome{Accepted: true}

func rejected(r Reason) Outcome { return Outcome{Reason: r} }

// Message is short player-facing feedback for a rejected operation.
func (o Outcome) Message() string {
	switch o.Reason {
	case ReasonNone:
		return ""
	case ReasonGameOver:
		return "The game is over. Start a new one to keep playing."
	case ReasonShoreEmpty:
		return "Nobody of that kind is waiting on this shore."
	case ReasonBoatFull:
		return "The boat is full."
	case ReasonNotInBoat:
		return "Nobody of that kind is in the boat."
	case ReasonBoatEmpty:
		return "The boat cannot cross empty."
	default:
		return string(o.Reason)
	}
}

// Engine applies player operations to states under a fixed rule set. It holds no game
// state of its own and is safe to share.
type Engine struct {
	rules Rules
}

// NewEngine validates the rules and returns an engine for them.
func NewEngine(rules Rules) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

// Rules returns the engine's rule set.
func (e *Engine) Rules() Rules { return e.rules }

// Start returns a fresh opening state.
func (e *Engine) Start() State { return e.rules.Start() }

// TransferToBoat moves one unit of kind k from the bank the boat is docked at into the boat.
func (e *Engine) TransferToBoat(s State, k core.Kind) (State, Outcome) {
	if s.Phase.Terminal() {
		return s, rejected(ReasonGameOver)
	}
	side := s.Boat.Location
	shore := s.Shore(side)
	if shore.Count(k) == 0 {
		return s, rejected(ReasonShoreEmpty)
	}
	if s.Boat.Cargo.Total() >= e.rules.Capacity {
		return s, rejected(ReasonBoatFull)
	}
	next := s.withShore(side, shore.shift(k, -1))
	next.Boat.Cargo = next.Boat.Cargo.shift(k, 1)
	e.mustHold(next)
	return next, accepted
}

// TransferToShore moves one unit of kind k out of the boat onto the bank it is docked at.
func (e *Engine) TransferToShore(s State, k core.Kind) (State, Outcome) {
	if s.Phase.Terminal() {
		return s, rejected(ReasonGameOver)
	}
	if s.Boat.Cargo.Count(k) == 0 {
		return s, rejected(ReasonNotInBoat)
	}
	side := s.Boat.Location
	next := s.withShore(side, s.Shore(side).shift(k, 1))
	next.Boat.Cargo = next.Boat.Cargo.shift(k, -1)
	e.mustHold(next)
	return next, accepted
}

// CrossLake commits the cargo to the opposite bank, counts one crossing, and classifies
// the result: Won is checked before Lost.
func (e *Engine) CrossLake(s State) (State, Outcome) {
	if s.Phase.Terminal() {
		return s, rejected(ReasonGameOver)
	}
	if s.Boat.Cargo.Total() == 0 {
		return s, rejected(ReasonBoatEmpty)
	}
	dest := s.Boat.Location.Opposite()
	next := s.withShore(dest, s.Shore(dest).plus(s.Boat.Cargo))
	next.Boat = Boat{Location: dest}
	next.MoveCount++
	next.Phase = e.classify(next)
	e.mustHold(next)
	return next, accepted
}

func (e *Engine) classify(s State) Phase {
	switch {
	case e.rules.won(s):
		return Won
	case lost(s):
		return Lost
	default:
		return InProgress
	}
}

// TrackMistakes lists the mistake tags present in s. It is pure and may flag a losing
// configuration before the crossing that would make it terminal.
func (e *Engine) TrackMistakes(s State) []core.Mistake {
	mistakes := make([]core.Mistake, 0, 2)
	if lost(s) {
		mistakes = append(mistakes, core.MistakeCarnivoresOutnumberPriests)
	}
	if s.Boat.Cargo.Total() > e.rules.Capacity {
		mistakes = append(mistakes, core.MistakeInvalidBoatLoad)
	}
	return mistakes
}

func (e *Engine) mustHold(s State) {
	if err := e.rules.CheckInvariants(s); err != nil {
		panic(fmt.Sprintf("puzzle: invariant violated: %v", err))
	}
}
