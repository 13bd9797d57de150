package puzzle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divijg19/lakecross/internal/core"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultRules())
	require.NoError(t, err)
	return e
}

func TestNewEngine_RejectsInvalidRules(t *testing.T) {
	for _, r := range []Rules{
		{Units: 0, Capacity: 2, OptimalCrossings: 11},
		{Units: 3, Capacity: 0, OptimalCrossings: 11},
		{Units: 3, Capacity: 2, OptimalCrossings: 0},
	} {
		_, err := NewEngine(r)
		assert.Error(t, err, "%+v", r)
	}
}

func TestStart(t *testing.T) {
	s := newEngine(t).Start()
	assert.Equal(t, Population{Priests: 3, Carnivores: 3}, s.Left)
	assert.Equal(t, Population{}, s.Right)
	assert.Equal(t, Boat{Location: core.Left}, s.Boat)
	assert.Equal(t, 0, s.MoveCount)
	assert.Equal(t, InProgress, s.Phase)
	assert.Equal(t, "left:3p3c right:0p0c boat:left[0p0c]", s.Fingerprint().String())
}

func TestTransfers_RejectedAreNoOps(t *testing.T) {
	e := newEngine(t)
	s := e.Start()

	// Nothing in the boat yet.
	next, out := e.TransferToShore(s, core.Priest)
	assert.Equal(t, s, next)
	assert.Equal(t, ReasonNotInBoat, out.Reason)
	assert.False(t, out.Accepted)

	// Fill the boat, then try a third passenger.
	s, out = e.TransferToBoat(s, core.Carnivore)
	require.True(t, out.Accepted)
	s, out = e.TransferToBoat(s, core.Carnivore)
	require.True(t, out.Accepted)
	next, out = e.TransferToBoat(s, core.Priest)
	assert.Equal(t, s, next)
	assert.Equal(t, ReasonBoatFull, out.Reason)

	// Cross with both carnivores; the right bank has no priests to load.
	s, out = e.CrossLake(s)
	require.True(t, out.Accepted)
	next, out = e.TransferToBoat(s, core.Priest)
	assert.Equal(t, s, next)
	assert.Equal(t, ReasonShoreEmpty, out.Reason)
	assert.NotEmpty(t, out.Message())
}

func TestTransfer_RoundTrip(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	loaded, out := e.TransferToBoat(s, core.Priest)
	require.True(t, out.Accepted)
	assert.Equal(t, Population{Priests: 2, Carnivores: 3}, loaded.Left)
	assert.Equal(t, Population{Priests: 1}, loaded.Boat.Cargo)
	assert.Equal(t, InProgress, loaded.Phase)

	back, out := e.TransferToShore(loaded, core.Priest)
	require.True(t, out.Accepted)
	assert.Equal(t, s, back)
}

func TestCrossLake_EmptyBoatIsNoOp(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	next, out := e.CrossLake(s)
	assert.Equal(t, s, next)
	assert.Equal(t, ReasonBoatEmpty, out.Reason)
	assert.Equal(t, 0, next.MoveCount)
}

func TestCanonicalSolution_Wins(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	for i, st := range CanonicalSolution() {
		require.Equal(t, InProgress, s.Phase, "step %d", i)
		var out Outcome
		s, out = e.Apply(s, st)
		require.True(t, out.Accepted, "step %d: %s", i, out.Reason)
	}
	assert.Equal(t, Won, s.Phase)
	assert.Equal(t, 11, s.MoveCount)
	assert.Equal(t, Population{Priests: 3, Carnivores: 3}, s.Right)
	assert.Equal(t, Boat{Location: core.Right}, s.Boat)
}

func TestLoss_TwoPriestsLeaveFirst(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	s, _ = e.TransferToBoat(s, core.Priest)
	s, _ = e.TransferToBoat(s, core.Priest)
	s, out := e.CrossLake(s)
	require.True(t, out.Accepted)
	assert.Equal(t, Population{Priests: 1, Carnivores: 3}, s.Left)
	assert.Equal(t, Lost, s.Phase)
	assert.Equal(t, 1, s.MoveCount)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	e := newEngine(t)

	lost := e.Start()
	lost, _ = e.TransferToBoat(lost, core.Priest)
	lost, _ = e.TransferToBoat(lost, core.Priest)
	lost, _ = e.CrossLake(lost)
	require.Equal(t, Lost, lost.Phase)

	won := e.Start()
	for _, st := range CanonicalSolution() {
		won, _ = e.Apply(won, st)
	}
	require.Equal(t, Won, won.Phase)

	for _, s := range []State{lost, won} {
		for _, k := range []core.Kind{core.Priest, core.Carnivore} {
			next, out := e.TransferToBoat(s, k)
			assert.Equal(t, s, next)
			assert.Equal(t, ReasonGameOver, out.Reason)
			next, out = e.TransferToShore(s, k)
			assert.Equal(t, s, next)
			assert.Equal(t, ReasonGameOver, out.Reason)
		}
		next, out := e.CrossLake(s)
		assert.Equal(t, s, next)
		assert.Equal(t, ReasonGameOver, out.Reason)
	}
}

func TestTrackMistakes_EarlyWarning(t *testing.T) {
	e := newEngine(t)
	s := e.Start()
	assert.Empty(t, e.TrackMistakes(s))

	// Two priests aboard still count toward the left bank while docked.
	s, _ = e.TransferToBoat(s, core.Priest)
	s, _ = e.TransferToBoat(s, core.Priest)
	assert.Empty(t, e.TrackMistakes(s))

	// A state built by hand where the left bank is already outnumbered.
	warn := State{
		Left:  Population{Priests: 1, Carnivores: 2},
		Right: Population{Priests: 2, Carnivores: 1},
		Boat:  Boat{Location: core.Right},
		Phase: InProgress,
	}
	assert.Equal(t, []core.Mistake{core.MistakeCarnivoresOutnumberPriests}, e.TrackMistakes(warn))

	overloaded := State{
		Left:  Population{Carnivores: 3},
		Boat:  Boat{Cargo: Population{Priests: 3}, Location: core.Left},
		Phase: InProgress,
	}
	assert.Contains(t, e.TrackMistakes(overloaded), core.MistakeInvalidBoatLoad)
}

func TestTrackMistakes_PriestlessShoreIsSafe(t *testing.T) {
	e := newEngine(t)
	s := State{
		Left:  Population{Carnivores: 3},
		Right: Population{Priests: 3},
		Boat:  Boat{Location: core.Right},
	}
	assert.Empty(t, e.TrackMistakes(s))
}

// Every state reachable through the guarded operations keeps the invariants, and the
// capacity check never fires.
func TestReachableStates_HoldInvariants(t *testing.T) {
	e := newEngine(t)
	rules := e.Rules()
	kinds := []core.Kind{core.Priest, core.Carnivore}

	seen := map[State]bool{}
	queue := []State{e.Start()}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		require.NoError(t, rules.CheckInvariants(s))
		assert.NotContains(t, e.TrackMistakes(s), core.MistakeInvalidBoatLoad)
		if s.MoveCount > 15 {
			continue
		}

		var next []State
		for _, k := range kinds {
			if n, out := e.TransferToBoat(s, k); out.Accepted {
				next = append(next, n)
			}
			if n, out := e.TransferToShore(s, k); out.Accepted {
				next = append(next, n)
			}
		}
		if n, out := e.CrossLake(s); out.Accepted {
			next = append(next, n)
		}
		queue = append(queue, next...)
	}
	assert.Greater(t, len(seen), 50)
}

func TestCheckInvariants(t *testing.T) {
	rules := DefaultRules()
	tests := []struct {
		name string
		s    State
	}{
		{"negative", State{Left: Population{Priests: 4, Carnivores: 3}, Right: Population{Priests: -1}}},
		{"priests lost", State{Left: Population{Priests: 2, Carnivores: 3}}},
		{"carnivores created", State{Left: Population{Priests: 3, Carnivores: 4}}},
		{"overloaded", State{Left: Population{Carnivores: 3}, Boat: Boat{Cargo: Population{Priests: 3}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, rules.CheckInvariants(tt.s))
		})
	}
	assert.NoError(t, rules.CheckInvariants(rules.Start()))
}
