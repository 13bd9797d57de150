package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/hint"
	"github.com/divijg19/lakecross/internal/puzzle"
	"github.com/divijg19/lakecross/internal/storage"
)

type fakeStore struct {
	created   []core.SessionRecord
	moves     []core.MoveEntry
	finalized []core.SessionRecord
	failAfter int // fail every call once this many moves were stored; -1 never
}

func (f *fakeStore) CreateSession(_ context.Context, rec core.SessionRecord) error {
	f.created = append(f.created, rec)
	return nil
}

func (f *fakeStore) AppendMove(_ context.Context, _ string, m core.MoveEntry) error {
	if f.failAfter >= 0 && len(f.moves) >= f.failAfter {
		return errors.New("database is locked")
	}
	f.moves = append(f.moves, m)
	return nil
}

func (f *fakeStore) FinalizeSession(_ context.Context, rec core.SessionRecord) error {
	f.finalized = append(f.finalized, rec)
	return nil
}

type fakeAdvisor struct {
	hints     int
	narration chan puzzle.State
}

func (a *fakeAdvisor) Hint(context.Context, puzzle.State) hint.Result {
	a.hints++
	return hint.Result{Text: "Move 2 carnivores from left to right.", Source: hint.SourceTable}
}

func (a *fakeAdvisor) Narrate(_ context.Context, s puzzle.State) hint.Result {
	if a.narration != nil {
		a.narration <- s
	}
	return hint.Result{Text: "The boat glides.", Source: hint.SourceGenerator}
}

type fakeSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *fakeSpeaker) Say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
}

func (s *fakeSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.lines...)
}

func newEngine(t *testing.T) *puzzle.Engine {
	t.Helper()
	e, err := puzzle.NewEngine(puzzle.DefaultRules())
	require.NoError(t, err)
	return e
}

func fixedClock() func() time.Time {
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

// playCanonical loads and crosses each canonical step one unit at a time.
func playCanonical(ctx context.Context, g *Game) {
	for _, st := range puzzle.CanonicalSolution() {
		for i := 0; i < st.Load.Priests; i++ {
			g.Load(ctx, core.Priest)
		}
		for i := 0; i < st.Load.Carnivores; i++ {
			g.Load(ctx, core.Carnivore)
		}
		g.Cross(ctx)
	}
}

func TestGame_WinIsRecorded(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{failAfter: -1}
	g := New(ctx, newEngine(t), Config{Store: store, Clock: fixedClock()})
	defer g.Close()

	require.Len(t, store.created, 1)
	assert.Equal(t, core.StatusInProgress, store.created[0].Status)

	playCanonical(ctx, g)

	assert.Equal(t, puzzle.Won, g.State().Phase)
	rec := g.Record()
	assert.True(t, rec.Won)
	assert.Equal(t, core.StatusCompleted, rec.Status)
	assert.Equal(t, 11, rec.MoveCount)
	// 18 loads and 11 crossings.
	assert.Len(t, rec.Moves, 29)
	assert.Equal(t, 29, rec.Moves[28].Seq)
	assert.Equal(t, core.OpCross, rec.Moves[28].Op)
	assert.Equal(t, "left:0p0c right:3p3c boat:right[0p0c]", rec.FinalState)
	require.NotNil(t, rec.DurationSeconds)
	assert.InDelta(t, 30.0, *rec.DurationSeconds, 1e-9)
	assert.Empty(t, rec.Mistakes)

	assert.Len(t, store.moves, 29)
	require.Len(t, store.finalized, 1)
	assert.True(t, store.finalized[0].Won)
	assert.False(t, g.Degraded())
}

func TestGame_LossAndMistakes(t *testing.T) {
	ctx := context.Background()
	g := New(ctx, newEngine(t), Config{})
	defer g.Close()

	g.Load(ctx, core.Priest)
	g.Load(ctx, core.Priest)
	ev := g.Cross(ctx)
	assert.True(t, ev.Finished)
	assert.Equal(t, puzzle.Lost, ev.State.Phase)
	assert.Equal(t, []core.Mistake{core.MistakeCarnivoresOutnumberPriests}, ev.Mistakes)

	rec := g.Record()
	assert.False(t, rec.Won)
	assert.Equal(t, core.StatusCompleted, rec.Status)
	assert.Equal(t, []core.Mistake{core.MistakeCarnivoresOutnumberPriests}, rec.Mistakes)

	// Nothing changes after the end.
	ev = g.Load(ctx, core.Carnivore)
	assert.False(t, ev.Outcome.Accepted)
	assert.Equal(t, puzzle.ReasonGameOver, ev.Outcome.Reason)
	assert.Len(t, g.Record().Moves, 3)
}

func TestGame_RejectedMovesAreNotLogged(t *testing.T) {
	ctx := context.Background()
	g := New(ctx, newEngine(t), Config{})
	defer g.Close()

	ev := g.Cross(ctx)
	assert.Equal(t, puzzle.ReasonBoatEmpty, ev.Outcome.Reason)
	ev = g.Unload(ctx, core.Priest)
	assert.Equal(t, puzzle.ReasonNotInBoat, ev.Outcome.Reason)
	assert.Empty(t, g.Record().Moves)
	assert.Equal(t, g.engine.Start(), g.State())
}

func TestGame_DegradesOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	store := &fakeStore{failAfter: 2}
	g := New(ctx, newEngine(t), Config{Store: store, Logger: slog.New(slog.NewTextHandler(&logs, nil))})
	defer g.Close()

	playCanonical(ctx, g)

	assert.Equal(t, puzzle.Won, g.State().Phase)
	assert.True(t, g.Degraded())
	assert.Len(t, store.moves, 2)
	assert.Empty(t, store.finalized)
	assert.Len(t, g.Record().Moves, 29)
	assert.Contains(t, logs.String(), "continuing in memory")
}

func TestGame_NarrationAfterCrossing(t *testing.T) {
	ctx := context.Background()
	advisor := &fakeAdvisor{narration: make(chan puzzle.State, 4)}
	speaker := &fakeSpeaker{}
	var mu sync.Mutex
	var heard []string
	g := New(ctx, newEngine(t), Config{
		Advisor:   advisor,
		Speaker:   speaker,
		Narration: true,
		OnNarration: func(r hint.Result) {
			mu.Lock()
			heard = append(heard, r.Text)
			mu.Unlock()
		},
	})
	defer g.Close()

	g.Load(ctx, core.Carnivore)
	g.Load(ctx, core.Carnivore)
	g.Cross(ctx)
	g.Wait()

	narrated := <-advisor.narration
	assert.Equal(t, 1, narrated.MoveCount)
	assert.Equal(t, []string{"The boat glides."}, heard)
	assert.Equal(t, []string{"The boat glides."}, speaker.said())

	g.SetNarration(false)
	g.Load(ctx, core.Carnivore)
	g.Cross(ctx)
	g.Wait()
	assert.Len(t, advisor.narration, 0)
}

func TestGame_Hint(t *testing.T) {
	ctx := context.Background()
	advisor := &fakeAdvisor{}
	speaker := &fakeSpeaker{}
	g := New(ctx, newEngine(t), Config{Advisor: advisor, Speaker: speaker})
	defer g.Close()

	res := g.Hint(ctx)
	assert.Equal(t, hint.SourceTable, res.Source)
	assert.Equal(t, 1, advisor.hints)
	assert.Empty(t, speaker.said())

	g.SetNarration(true)
	g.Hint(ctx)
	assert.Equal(t, []string{"Move 2 carnivores from left to right."}, speaker.said())

	bare := New(ctx, newEngine(t), Config{})
	defer bare.Close()
	assert.Equal(t, hint.SourceDisabled, bare.Hint(ctx).Source)
}

func TestGame_WithSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "lake.db"))
	require.NoError(t, err)
	defer db.Close()
	st, err := storage.New(db)
	require.NoError(t, err)

	won := New(ctx, newEngine(t), Config{Store: st})
	playCanonical(ctx, won)
	won.Close()

	lost := New(ctx, newEngine(t), Config{Store: st})
	lost.Load(ctx, core.Priest)
	lost.Load(ctx, core.Priest)
	lost.Cross(ctx)
	lost.Close()

	active := New(ctx, newEngine(t), Config{Store: st})
	active.Load(ctx, core.Carnivore)
	active.Close()

	rec, err := st.GetSession(ctx, won.Record().ID)
	require.NoError(t, err)
	assert.Len(t, rec.Moves, 29)
	assert.True(t, rec.Won)

	sum, err := analytics.NewService(st, 11).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TotalGames)
	assert.Equal(t, 1, sum.ActiveGames)
	assert.Equal(t, 2, sum.CompletedGames)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.OptimalSolutionCount)
	assert.InDelta(t, 50.0, sum.SuccessRatePercent, 1e-9)
	assert.Equal(t, 33, sum.TotalMovesMade)
	assert.Equal(t, 1, sum.MistakeFrequency[core.MistakeCarnivoresOutnumberPriests])
}
