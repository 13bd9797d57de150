package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(gamesFinished.WithLabelValues("won"))
	RecordGameFinished(true)
	assert.Equal(t, before+1, testutil.ToFloat64(gamesFinished.WithLabelValues("won")))

	before = testutil.ToFloat64(rejectedMoves.WithLabelValues("boat_full"))
	RecordRejectedMove("boat_full")
	assert.Equal(t, before+1, testutil.ToFloat64(rejectedMoves.WithLabelValues("boat_full")))
}

func TestHandler(t *testing.T) {
	RecordGameStarted()
	RecordMove("cross")
	RecordHint("hint", "table")
	RecordSpeechFailure()
	RecordAnalyticsRequest("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"lakecross_games_started_total",
		`lakecross_moves_total{op="cross"}`,
		`lakecross_hint_requests_total{kind="hint",source="table"}`,
		"lakecross_speech_failures_total",
		`lakecross_analytics_requests_total{status="ok"}`,
	} {
		assert.Contains(t, string(body), name)
	}
}
