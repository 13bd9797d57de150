package hint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/divijg19/lakecross/internal/puzzle"
)

// Static texts used whenever the generator cannot answer.
const (
	FallbackHint      = "Focus on maintaining balance between priests and carnivores on both shores."
	FallbackNarration = "The tension rises as the journey continues..."
)

// Source records where a Result's text came from.
type Source string

const (
	SourceTable     Source = "table"
	SourceCache     Source = "cache"
	SourceGenerator Source = "generator"
	SourceFallback  Source = "fallback"
	SourceDisabled  Source = "disabled"
	SourceThrottled Source = "throttled"
)

// Result is a hint or narration outcome. Err carries the generator failure behind a
// fallback and is informational only.
type Result struct {
	Text     string
	Source   Source
	Attempts int
	Err      error
}

// Options configures a Service. A nil Generator disables generated text; a nil Cache skips
// caching. NarrationInterval throttles narration requests, zero disables the throttle.
type Options struct {
	Generator         Generator
	Cache             *Cache
	Retry             RetryConfig
	NarrationInterval time.Duration
	Logger            *slog.Logger
}

// Service answers hint and narration requests for one rule set.
type Service struct {
	table   Table
	plan    []puzzle.Step
	gen     Generator
	cache   *Cache
	retry   RetryConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewService builds the hint table for the engine's rules and wires the optional
// collaborators.
func NewService(e *puzzle.Engine, opts Options) (*Service, error) {
	if e == nil {
		return nil, fmt.Errorf("new hint service: engine is nil")
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if err := opts.Retry.Validate(); err != nil {
		return nil, fmt.Errorf("new hint service: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	plan, err := optimalPlan(e)
	if err != nil {
		logger.Warn("no optimal plan for rules", "rules", e.Rules(), "err", err)
	}
	table, err := BuildTable(e, plan)
	if err != nil {
		return nil, fmt.Errorf("new hint service: %w", err)
	}

	s := &Service{
		table:  table,
		plan:   plan,
		gen:    opts.Generator,
		cache:  opts.Cache,
		retry:  opts.Retry,
		logger: logger,
	}
	if opts.NarrationInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.NarrationInterval), 1)
	}
	return s, nil
}

// Hint suggests the next move for s.
func (s *Service) Hint(ctx context.Context, st puzzle.State) Result {
	if text, ok := s.table.Lookup(st); ok {
		return Result{Text: text, Source: SourceTable}
	}

	fp := puzzle.Settle(st).Fingerprint()
	if text, ok, err := s.cache.Get(fp); err != nil {
		s.logger.Warn("hint cache read failed", "state", fp.String(), "err", err)
	} else if ok {
		return Result{Text: text, Source: SourceCache}
	}

	if s.gen == nil {
		return Result{Text: FallbackHint, Source: SourceDisabled}
	}
	res := s.generate(ctx, hintPrompt(st, s.plan), FallbackHint)
	if res.Source == SourceGenerator {
		if err := s.cache.Put(fp, res.Text); err != nil {
			s.logger.Warn("hint cache write failed", "state", fp.String(), "err", err)
		}
	}
	return res
}

// Narrate describes the situation after a crossing. Narration is never cached.
func (s *Service) Narrate(ctx context.Context, st puzzle.State) Result {
	if s.gen == nil {
		return Result{Source: SourceDisabled}
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return Result{Source: SourceThrottled}
	}
	return s.generate(ctx, narrationPrompt(st), FallbackNarration)
}

func (s *Service) generate(ctx context.Context, prompt, fallback string) Result {
	var text string
	rr, err := Retry(ctx, s.retry, func(ctx context.Context, attempt int) error {
		out, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			s.logger.Debug("generator attempt failed", "attempt", attempt, "err", err)
			return err
		}
		text = clip(out)
		if text == "" {
			return fmt.Errorf("generator returned empty text")
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("generator unavailable, using fallback", "attempts", rr.Attempts, "err", err)
		return Result{Text: fallback, Source: SourceFallback, Attempts: rr.Attempts, Err: err}
	}
	return Result{Text: text, Source: SourceGenerator, Attempts: rr.Attempts}
}
