// Package session hosts one game: it owns the current state, keeps the move log and
// session record, and talks to the optional store, advisor, and speaker.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/hint"
	"github.com/divijg19/lakecross/internal/metrics"
	"github.com/divijg19/lakecross/internal/puzzle"
)

// Store persists session records. Every method may fail; the game keeps running.
type Store interface {
	CreateSession(ctx context.Context, rec core.SessionRecord) error
	AppendMove(ctx context.Context, sessionID string, m core.MoveEntry) error
	FinalizeSession(ctx context.Context, rec core.SessionRecord) error
}

// Advisor answers hint and narration requests.
type Advisor interface {
	Hint(ctx context.Context, s puzzle.State) hint.Result
	Narrate(ctx context.Context, s puzzle.State) hint.Result
}

// Speaker speaks text without blocking.
type Speaker interface {
	Say(text string)
}

// Config wires a Game's optional collaborators.
type Config struct {
	Store     Store
	Advisor   Advisor
	Speaker   Speaker
	Narration bool
	// OnNarration receives narration produced after a crossing. It runs on a background
	// goroutine.
	OnNarration func(hint.Result)
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Event is the result of one player operation.
type Event struct {
	Outcome  puzzle.Outcome
	State    puzzle.State
	Mistakes []core.Mistake
	Finished bool
}

// Game is one play-through. It is not safe for concurrent use, apart from the background
// narration it starts itself.
type Game struct {
	engine *puzzle.Engine
	state  puzzle.State
	record core.SessionRecord

	store       Store
	degraded    bool
	advisor     Advisor
	speaker     Speaker
	narration   bool
	onNarration func(hint.Result)
	logger      *slog.Logger
	now         func() time.Time

	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// New starts a game and records it in the store when one is configured.
func New(ctx context.Context, engine *puzzle.Engine, cfg Config) *Game {
	g := &Game{
		engine:      engine,
		state:       engine.Start(),
		store:       cfg.Store,
		advisor:     cfg.Advisor,
		speaker:     cfg.Speaker,
		narration:   cfg.Narration,
		onNarration: cfg.OnNarration,
		logger:      cfg.Logger,
		now:         cfg.Clock,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	g.bgCtx, g.bgCancel = context.WithCancel(context.Background())

	g.record = core.SessionRecord{
		ID:        uuid.NewString(),
		StartTime: g.now().UTC(),
		Status:    core.StatusInProgress,
		Mistakes:  []core.Mistake{},
		Moves:     []core.MoveEntry{},
	}
	g.logger = g.logger.With("session", g.record.ID)
	metrics.RecordGameStarted()

	if g.store != nil {
		if err := g.store.CreateSession(ctx, g.record); err != nil {
			g.degrade("create session", err)
		}
	}
	return g
}

// State returns the current state.
func (g *Game) State() puzzle.State { return g.state }

// Record returns a copy of the session record so far.
func (g *Game) Record() core.SessionRecord {
	rec := g.record
	rec.Mistakes = append([]core.Mistake{}, g.record.Mistakes...)
	rec.Moves = append([]core.MoveEntry{}, g.record.Moves...)
	return rec
}

// Degraded reports whether the game stopped writing to the store.
func (g *Game) Degraded() bool { return g.degraded }

// Narration reports whether crossings are narrated.
func (g *Game) Narration() bool { return g.narration }

// SetNarration toggles narration after crossings.
func (g *Game) SetNarration(on bool) { g.narration = on }

// Load moves one unit of kind k into the boat.
func (g *Game) Load(ctx context.Context, k core.Kind) Event {
	next, out := g.engine.TransferToBoat(g.state, k)
	return g.apply(ctx, core.OpLoad, k, next, out)
}

// Unload moves one unit of kind k out of the boat.
func (g *Game) Unload(ctx context.Context, k core.Kind) Event {
	next, out := g.engine.TransferToShore(g.state, k)
	return g.apply(ctx, core.OpUnload, k, next, out)
}

// Cross commits the boat's cargo. Narration, when enabled, is produced in the background.
func (g *Game) Cross(ctx context.Context) Event {
	next, out := g.engine.CrossLake(g.state)
	ev := g.apply(ctx, core.OpCross, "", next, out)
	if out.Accepted && g.narration && g.advisor != nil {
		g.narrate(next)
	}
	return ev
}

// Hint asks the advisor for the next move and speaks it when narration is on.
func (g *Game) Hint(ctx context.Context) hint.Result {
	if g.advisor == nil {
		metrics.RecordHint("hint", string(hint.SourceDisabled))
		return hint.Result{Text: hint.FallbackHint, Source: hint.SourceDisabled}
	}
	res := g.advisor.Hint(ctx, g.state)
	metrics.RecordHint("hint", string(res.Source))
	if g.narration && g.speaker != nil {
		g.speaker.Say(res.Text)
	}
	return res
}

// Close cancels background narration and waits for it to stop.
func (g *Game) Close() {
	g.bgCancel()
	g.bg.Wait()
}

// Wait blocks until background narration has finished.
func (g *Game) Wait() { g.bg.Wait() }

func (g *Game) apply(ctx context.Context, op core.MoveOp, k core.Kind, next puzzle.State, out puzzle.Outcome) Event {
	if !out.Accepted {
		metrics.RecordRejectedMove(string(out.Reason))
		g.logger.Debug("move rejected", "op", op, "kind", k, "reason", out.Reason)
		return Event{Outcome: out, State: g.state, Mistakes: g.engine.TrackMistakes(g.state), Finished: g.state.Phase.Terminal()}
	}

	g.state = next
	mistakes := g.engine.TrackMistakes(next)
	entry := core.MoveEntry{
		Seq:       len(g.record.Moves) + 1,
		Op:        op,
		Kind:      k,
		At:        g.now().UTC(),
		State:     next.Fingerprint().String(),
		MoveCount: next.MoveCount,
		Mistakes:  mistakes,
	}
	g.record.Moves = append(g.record.Moves, entry)
	g.record.Mistakes = append(g.record.Mistakes, mistakes...)
	g.record.MoveCount = next.MoveCount
	metrics.RecordMove(string(op))

	if g.store != nil && !g.degraded {
		if err := g.store.AppendMove(ctx, g.record.ID, entry); err != nil {
			g.degrade("append move", err)
		}
	}

	finished := next.Phase.Terminal()
	if finished {
		g.finalize(ctx)
	}
	return Event{Outcome: out, State: next, Mistakes: mistakes, Finished: finished}
}

func (g *Game) finalize(ctx context.Context) {
	end := g.now().UTC()
	duration := end.Sub(g.record.StartTime).Seconds()
	g.record.EndTime = &end
	g.record.DurationSeconds = &duration
	g.record.Won = g.state.Phase == puzzle.Won
	g.record.Status = core.StatusCompleted
	g.record.FinalState = g.state.Fingerprint().String()
	metrics.RecordGameFinished(g.record.Won)
	g.logger.Info("game finished", "won", g.record.Won, "crossings", g.record.MoveCount, "duration_seconds", duration)

	if g.store != nil && !g.degraded {
		if err := g.store.FinalizeSession(ctx, g.record); err != nil {
			g.degrade("finalize session", err)
		}
	}
}

// degrade switches the game to in-memory mode after the first store failure.
func (g *Game) degrade(step string, err error) {
	g.degraded = true
	g.logger.Warn("session store unavailable, continuing in memory", "step", step, "err", err)
}

func (g *Game) narrate(s puzzle.State) {
	g.bg.Add(1)
	go func() {
		defer g.bg.Done()
		res := g.advisor.Narrate(g.bgCtx, s)
		metrics.RecordHint("narration", string(res.Source))
		if res.Text == "" {
			return
		}
		if g.onNarration != nil {
			g.onNarration(res)
		}
		if g.speaker != nil {
			g.speaker.Say(res.Text)
		}
	}()
}
