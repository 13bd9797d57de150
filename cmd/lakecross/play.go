package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/divijg19/lakecross/internal/config"
	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/hint"
	"github.com/divijg19/lakecross/internal/metrics"
	"github.com/divijg19/lakecross/internal/puzzle"
	"github.com/divijg19/lakecross/internal/session"
	"github.com/divijg19/lakecross/internal/speech"
)

const playHelp = `Commands:
  load p|c      put a priest or carnivore in the boat
  unload p|c    take one out again
  cross         row to the other shore
  hint          suggest the next move
  narrate on|off
  state         show the lake
  new           start over
  quit
`

type verb string

const (
	verbLoad    verb = "load"
	verbUnload  verb = "unload"
	verbCross   verb = "cross"
	verbHint    verb = "hint"
	verbNarrate verb = "narrate"
	verbState   verb = "state"
	verbNew     verb = "new"
	verbQuit    verb = "quit"
	verbHelp    verb = "help"
)

type playCommand struct {
	verb verb
	kind core.Kind
	on   bool
}

// parsePlayCommand reads one line of player input.
func parsePlayCommand(line string) (playCommand, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return playCommand{verb: verbState}, nil
	}

	switch fields[0] {
	case "load", "l", "unload", "u":
		v := verbLoad
		if fields[0] == "unload" || fields[0] == "u" {
			v = verbUnload
		}
		if len(fields) != 2 {
			return playCommand{}, fmt.Errorf("usage: %s p|c", v)
		}
		k, ok := core.ParseKind(fields[1])
		if !ok {
			return playCommand{}, fmt.Errorf("unknown kind %q: use p or c", fields[1])
		}
		return playCommand{verb: v, kind: k}, nil
	case "cross", "c", "x", "go":
		return playCommand{verb: verbCross}, nil
	case "hint", "h":
		return playCommand{verb: verbHint}, nil
	case "narrate":
		if len(fields) != 2 || (fields[1] != "on" && fields[1] != "off") {
			return playCommand{}, errors.New("usage: narrate on|off")
		}
		return playCommand{verb: verbNarrate, on: fields[1] == "on"}, nil
	case "state", "s", "look":
		return playCommand{verb: verbState}, nil
	case "new", "n", "restart":
		return playCommand{verb: verbNew}, nil
	case "quit", "q", "exit":
		return playCommand{verb: verbQuit}, nil
	case "help", "?":
		return playCommand{verb: verbHelp}, nil
	}
	return playCommand{}, fmt.Errorf("unknown command %q (try help)", fields[0])
}

// syncWriter serializes writes from the prompt loop and background narration.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

// sitting runs one interactive sitting, possibly several games.
type sitting struct {
	engine  *puzzle.Engine
	session session.Config
	out     *syncWriter
	game    *session.Game
}

func newSitting(engine *puzzle.Engine, cfg session.Config, out io.Writer) *sitting {
	t := &sitting{engine: engine, session: cfg, out: &syncWriter{w: out}}
	t.session.OnNarration = func(r hint.Result) {
		t.out.Printf("\n%s\n> ", styles.Muted.Render(r.Text))
	}
	return t
}

func (t *sitting) newGame(ctx context.Context) {
	narration := t.session.Narration
	if t.game != nil {
		narration = t.game.Narration()
		t.game.Close()
	}
	cfg := t.session
	cfg.Narration = narration
	t.game = session.New(ctx, t.engine, cfg)
	t.out.Printf("%s\n", renderState(t.game.State(), t.engine.Rules()))
}

func (t *sitting) close() {
	if t.game != nil {
		t.game.Close()
	}
}

func (t *sitting) show(ev session.Event) {
	if !ev.Outcome.Accepted {
		t.out.Printf("%s\n", styles.Warning.Render(ev.Outcome.Message()))
		return
	}
	t.out.Printf("%s\n", renderState(ev.State, t.engine.Rules()))
	if w := renderMistakes(ev.Mistakes); w != "" && !ev.Finished {
		t.out.Printf("%s\n", w)
	}
	if ev.Finished {
		rec := t.game.Record()
		switch {
		case rec.Won && rec.MoveCount <= t.engine.Rules().OptimalCrossings:
			t.out.Printf("%s\n", styles.Success.Render(fmt.Sprintf("Optimal! Solved in %d crossings.", rec.MoveCount)))
		case rec.Won:
			t.out.Printf("Solved in %d crossings. The best possible is %d.\n", rec.MoveCount, t.engine.Rules().OptimalCrossings)
		}
		t.out.Printf("%s\n", styles.Muted.Render("Type new to play again or quit to leave."))
	}
}

// run reads commands from in until quit or end of input.
func (t *sitting) run(ctx context.Context, in io.Reader) error {
	t.out.Printf("%s\n%s", styles.Title.Render("Lakecross"), styles.Muted.Render(playHelp))
	t.newGame(ctx)
	defer t.close()

	reader := bufio.NewReader(in)
	for {
		t.out.Printf("> ")
		line, err := reader.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			if errors.Is(err, io.EOF) {
				t.out.Printf("\n")
				return nil
			}
			return fmt.Errorf("play: read: %w", err)
		}

		cmd, perr := parsePlayCommand(line)
		if perr != nil {
			t.out.Printf("%s\n", styles.Error.Render(perr.Error()))
			continue
		}

		switch cmd.verb {
		case verbLoad:
			t.show(t.game.Load(ctx, cmd.kind))
		case verbUnload:
			t.show(t.game.Unload(ctx, cmd.kind))
		case verbCross:
			t.show(t.game.Cross(ctx))
		case verbHint:
			res := t.game.Hint(ctx)
			t.out.Printf("%s %s\n", styles.Title.Render("Hint:"), res.Text)
		case verbNarrate:
			t.game.SetNarration(cmd.on)
			state := "off"
			if cmd.on {
				state = "on"
			}
			t.out.Printf("Narration %s.\n", state)
		case verbState:
			t.out.Printf("%s\n", renderState(t.game.State(), t.engine.Rules()))
		case verbNew:
			t.newGame(ctx)
		case verbHelp:
			t.out.Printf("%s", playHelp)
		case verbQuit:
			return nil
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func newPlayCmd(a *app) *cobra.Command {
	var narrate bool
	cmd := &cobra.Command{
		Use:     "play",
		Aliases: []string{"p"},
		Short:   "Play the puzzle in the terminal",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := a.engine()
			if err != nil {
				return err
			}

			cfg := session.Config{
				Narration: a.cfg.Narration.Enabled || narrate,
				Logger:    a.logger,
			}

			st, closeDB, err := a.openStore()
			if err != nil {
				a.logger.Warn("session store unavailable, playing without history", "err", err)
			} else {
				defer closeDB()
				cfg.Store = st
			}

			advisor, closeAdvisor, err := a.advisor(engine)
			if err != nil {
				return err
			}
			defer closeAdvisor()
			cfg.Advisor = advisor

			if speaker := a.speaker(); speaker != nil {
				defer speaker.Close()
				cfg.Speaker = speaker
			}

			return newSitting(engine, cfg, cmd.OutOrStdout()).run(ctx, cmd.InOrStdin())
		},
	}
	cmd.Flags().BoolVar(&narrate, "narrate", false, "narrate after every crossing")
	return cmd
}

// advisor wires the hint service. Without an API key only the precomputed table answers;
// a cache that cannot be opened is skipped.
func (a *app) advisor(engine *puzzle.Engine) (*hint.Service, func(), error) {
	opts := hint.Options{
		Retry:             config.Retry(a.cfg),
		NarrationInterval: config.NarrationInterval(a.cfg),
		Logger:            a.logger,
	}
	cleanup := func() {}

	if a.cfg.Hints.APIKey != "" {
		gen, err := hint.NewOpenAIGenerator(a.cfg.Hints.APIKey, a.cfg.Hints.Model, a.cfg.Hints.BaseURL)
		if err != nil {
			return nil, nil, err
		}
		opts.Generator = gen

		dir, err := a.hintCacheDir()
		if err == nil {
			var cache *hint.Cache
			cache, err = hint.OpenCache(hint.CacheConfig{Path: dir, TTL: config.CacheTTL(a.cfg), Logger: a.logger})
			if err == nil {
				opts.Cache = cache
				cleanup = func() { _ = cache.Close() }
			}
		}
		if err != nil {
			a.logger.Warn("hint cache unavailable", "err", err)
		}
	}

	svc, err := hint.NewService(engine, opts)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return svc, cleanup, nil
}

// speaker returns nil unless speech is enabled and fully configured.
func (a *app) speaker() *speech.Speaker {
	sc := a.cfg.Speech
	if !sc.Enabled {
		return nil
	}
	if a.cfg.Hints.APIKey == "" || strings.TrimSpace(sc.Player) == "" {
		a.logger.Warn("speech enabled but api key or player command missing")
		return nil
	}
	synth, err := speech.NewOpenAISynthesizer(a.cfg.Hints.APIKey, sc.Voice, a.cfg.Hints.BaseURL)
	if err != nil {
		a.logger.Warn("speech unavailable", "err", err)
		return nil
	}
	player, err := speech.ParseCommand(sc.Player)
	if err != nil {
		a.logger.Warn("speech unavailable", "err", err)
		return nil
	}
	return speech.NewSpeaker(synth, player,
		speech.WithTimeout(config.SpeechTimeout(a.cfg)),
		speech.WithLogger(a.logger),
		speech.OnFailure(func(error) { metrics.RecordSpeechFailure() }),
	)
}
