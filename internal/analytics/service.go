package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/divijg19/lakecross/internal/core"
)

// ErrSourceUnavailable is returned when the record source cannot be read at all.
var ErrSourceUnavailable = errors.New("analytics: session source unavailable")

// Source yields a snapshot of every stored session as a raw JSON document.
type Source interface {
	Documents(ctx context.Context) ([]json.RawMessage, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]json.RawMessage, error)

func (f SourceFunc) Documents(ctx context.Context) ([]json.RawMessage, error) { return f(ctx) }

// Service fetches a snapshot from a Source and aggregates it.
type Service struct {
	source       Source
	optimal      int
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFetchTimeout bounds the source call. Zero means no deadline beyond the caller's.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Service) { s.fetchTimeout = d }
}

// WithLogger sets the logger used for skipped records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService returns a Service over source. A nil source behaves as an empty collection.
func NewService(source Source, optimalCrossings int, opts ...Option) *Service {
	s := &Service{source: source, optimal: optimalCrossings, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Summary fetches every record and reduces it. A failed fetch returns ErrSourceUnavailable
// and no partial summary.
func (s *Service) Summary(ctx context.Context) (core.AnalyticsSummary, error) {
	docs, err := s.fetch(ctx)
	if err != nil {
		return core.AnalyticsSummary{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return Aggregate(s.decodeAll(docs), s.optimal), nil
}

func (s *Service) fetch(ctx context.Context) ([]json.RawMessage, error) {
	if s.source == nil {
		return nil, nil
	}
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}
	return s.source.Documents(ctx)
}

func (s *Service) decodeAll(docs []json.RawMessage) []core.SessionRecord {
	records := make([]core.SessionRecord, 0, len(docs))
	for i, raw := range docs {
		rec, err := Decode(raw)
		if err != nil {
			s.logger.Warn("skipping session record", "index", i, "id", rec.ID, "err", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}
