package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divijg19/lakecross/internal/core"
)

func TestSolve_FromStartIsOptimal(t *testing.T) {
	e := newEngine(t)
	steps, err := e.Solve(e.Start())
	require.NoError(t, err)
	assert.Len(t, steps, e.Rules().OptimalCrossings)

	s := e.Start()
	for _, st := range steps {
		var out Outcome
		s, out = e.Apply(s, st)
		require.True(t, out.Accepted)
	}
	assert.Equal(t, Won, s.Phase)
}

func TestSolve_MidGame(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	canonical := CanonicalSolution()
	for _, st := range canonical[:5] {
		s, _ = e.Apply(s, st)
	}
	// Cargo loaded but not yet crossed is settled before searching.
	s, _ = e.TransferToBoat(s, core.Priest)

	steps, err := e.Solve(s)
	require.NoError(t, err)
	assert.Len(t, steps, len(canonical)-5)
}

func TestSolve_Terminal(t *testing.T) {
	e := newEngine(t)
	lost := e.Start()
	lost, _ = e.TransferToBoat(lost, core.Priest)
	lost, _ = e.TransferToBoat(lost, core.Priest)
	lost, _ = e.CrossLake(lost)

	_, err := e.Solve(lost)
	assert.ErrorIs(t, err, ErrUnsolvable)

	steps, err := e.Solve(State{Right: Population{Priests: 3, Carnivores: 3}, Boat: Boat{Location: core.Right}, Phase: Won})
	assert.NoError(t, err)
	assert.Empty(t, steps)
}

func TestSolve_UnsolvableRules(t *testing.T) {
	// Four pairs with a two-seat boat have no safe solution.
	e, err := NewEngine(Rules{Units: 4, Capacity: 2, OptimalCrossings: 1})
	require.NoError(t, err)
	_, err = e.Solve(e.Start())
	assert.ErrorIs(t, err, ErrUnsolvable)
}

func TestReachable(t *testing.T) {
	e := newEngine(t)
	states := e.Reachable()
	require.NotEmpty(t, states)
	assert.Equal(t, e.Start(), states[0])

	var won int
	for _, s := range states {
		assert.NotEqual(t, Lost, s.Phase)
		assert.Zero(t, s.Boat.Cargo.Total())
		if s.Phase == Won {
			won++
		}
	}
	assert.Equal(t, 1, won)
}

func TestStep_Describe(t *testing.T) {
	tests := []struct {
		load Population
		from core.Side
		want string
	}{
		{Population{Carnivores: 2}, core.Left, "Move 2 carnivores from left to right"},
		{Population{Priests: 1, Carnivores: 1}, core.Right, "Move 1 priest and 1 carnivore from right to left"},
		{Population{Priests: 2}, core.Left, "Move 2 priests from left to right"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Step{Load: tt.load}.Describe(tt.from))
	}
}

func TestSettle(t *testing.T) {
	s := State{
		Left: Population{Priests: 2, Carnivores: 3},
		Boat: Boat{Cargo: Population{Priests: 1}, Location: core.Left},
	}
	got := Settle(s)
	assert.Equal(t, Population{Priests: 3, Carnivores: 3}, got.Left)
	assert.Zero(t, got.Boat.Cargo.Total())
}
