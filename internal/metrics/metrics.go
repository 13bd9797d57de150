// Package metrics exposes Prometheus counters for play, hints, speech, and analytics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lakecross"

var (
	// gamesStarted counts new games.
	gamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_started_total",
		Help:      "Total games started",
	})

	// gamesFinished counts finished games.
	// Labels: result (won, lost)
	gamesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "games_finished_total",
		Help:      "Total games finished by result",
	}, []string{"result"})

	// moves counts accepted operations.
	// Labels: op (load, unload, cross)
	moves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moves_total",
		Help:      "Total accepted moves by operation",
	}, []string{"op"})

	// rejectedMoves counts rejected operations.
	// Labels: reason (game_over, shore_empty, boat_full, not_in_boat, boat_empty)
	rejectedMoves = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rejected_moves_total",
		Help:      "Total rejected moves by reason",
	}, []string{"reason"})

	// hintRequests counts hint and narration answers.
	// Labels: kind (hint, narration), source (table, cache, generator, fallback, disabled, throttled)
	hintRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hint_requests_total",
		Help:      "Total hint and narration requests by source",
	}, []string{"kind", "source"})

	speechFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "speech_failures_total",
		Help:      "Total failed utterances",
	})

	// analyticsRequests counts summary requests.
	// Labels: status (ok, unavailable)
	analyticsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_requests_total",
		Help:      "Total analytics summary requests by status",
	}, []string{"status"})
)

func RecordGameStarted() { gamesStarted.Inc() }

// RecordGameFinished records a game reaching a terminal phase.
func RecordGameFinished(won bool) {
	result := "lost"
	if won {
		result = "won"
	}
	gamesFinished.WithLabelValues(result).Inc()
}

func RecordMove(op string) { moves.WithLabelValues(op).Inc() }

func RecordRejectedMove(reason string) { rejectedMoves.WithLabelValues(reason).Inc() }

func RecordHint(kind, source string) { hintRequests.WithLabelValues(kind, source).Inc() }

func RecordSpeechFailure() { speechFailures.Inc() }

func RecordAnalyticsRequest(status string) { analyticsRequests.WithLabelValues(status).Inc() }

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
