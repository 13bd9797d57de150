package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Speaker speaks one utterance at a time in the background. Say never blocks; a newer
// utterance cancels the one in flight.
type Speaker struct {
	synth     Synthesizer
	player    Player
	timeout   time.Duration
	logger    *slog.Logger
	onFailure func(error)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Speaker.
type Option func(*Speaker)

// WithTimeout bounds synthesis plus playback of one utterance.
func WithTimeout(d time.Duration) Option {
	return func(s *Speaker) { s.timeout = d }
}

// WithLogger sets the logger for failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Speaker) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnFailure registers a callback for failed utterances. Cancellations are not failures.
func OnFailure(fn func(error)) Option {
	return func(s *Speaker) { s.onFailure = fn }
}

// NewSpeaker returns a Speaker. A nil synthesizer or player yields a Speaker that drops
// everything, so callers never need to check.
func NewSpeaker(synth Synthesizer, player Player, opts ...Option) *Speaker {
	s := &Speaker{synth: synth, player: player, timeout: 30 * time.Second, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enabled reports whether Say does anything.
func (s *Speaker) Enabled() bool {
	return s != nil && s.synth != nil && s.player != nil
}

// Say starts speaking text and returns immediately.
func (s *Speaker) Say(text string) {
	text = strings.TrimSpace(text)
	if !s.Enabled() || text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		if err := s.speak(ctx, text); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Warn("speech failed", "err", err)
			if s.onFailure != nil {
				s.onFailure(err)
			}
		}
	}()
}

func (s *Speaker) speak(ctx context.Context, text string) error {
	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	return s.player.Play(ctx, audio)
}

// Wait blocks until every started utterance has finished.
func (s *Speaker) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

// Close stops the current utterance, rejects new ones, and waits for the worker to exit.
func (s *Speaker) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
