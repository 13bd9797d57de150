package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divijg19/lakecross/internal/analytics"
	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSessions struct {
	list  []core.SessionRecord
	err   error
	query storage.Query
}

func (f *fakeSessions) QuerySessions(_ context.Context, q storage.Query) ([]core.SessionRecord, error) {
	f.query = q
	return f.list, f.err
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (core.SessionRecord, error) {
	for _, rec := range f.list {
		if rec.ID == id {
			return rec, nil
		}
	}
	return core.SessionRecord{}, storage.ErrNotFound
}

func docs(raw ...string) analytics.Source {
	return analytics.SourceFunc(func(context.Context) ([]json.RawMessage, error) {
		out := make([]json.RawMessage, len(raw))
		for i, r := range raw {
			out[i] = json.RawMessage(r)
		}
		return out, nil
	})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAnalytics_OK(t *testing.T) {
	svc := analytics.NewService(docs(
		`{"status":"completed","moveCount":11,"won":true,"mistakes":[],"durationSeconds":120}`,
		`{"status":"completed","moveCount":7,"won":false,"mistakes":["CarnivoresOutnumberPriests"]}`,
		`{"status":"in_progress","moveCount":3}`,
	), 11)
	router := New(svc, nil, nil)

	rec := get(t, router, "/v1/analytics")
	require.Equal(t, http.StatusOK, rec.Code)

	var sum core.AnalyticsSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, 3, sum.TotalGames)
	assert.Equal(t, 2, sum.CompletedGames)
	assert.Equal(t, 1, sum.ActiveGames)
	assert.Equal(t, 1, sum.Wins)
	assert.Equal(t, 1, sum.OptimalSolutionCount)
	assert.InDelta(t, 50.0, sum.SuccessRatePercent, 1e-9)
	assert.Equal(t, 1, sum.MistakeFrequency[core.MistakeCarnivoresOutnumberPriests])
}

func TestAnalytics_EmptyIsNotAnError(t *testing.T) {
	router := New(analytics.NewService(docs(), 11), nil, nil)
	rec := get(t, router, "/v1/analytics")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 0, body["totalGames"])
	assert.Equal(t, map[string]any{}, body["mistakeFrequency"])
}

func TestAnalytics_SourceUnavailable(t *testing.T) {
	down := analytics.SourceFunc(func(context.Context) ([]json.RawMessage, error) {
		return nil, errors.New("connection refused")
	})
	router := New(analytics.NewService(down, 11), nil, nil)

	rec := get(t, router, "/v1/analytics")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "unavailable")
}

func TestSessions_Query(t *testing.T) {
	sessions := &fakeSessions{list: []core.SessionRecord{{ID: "a", Status: core.StatusCompleted, Won: true, MoveCount: 11}}}
	router := New(analytics.NewService(nil, 11), sessions, nil)

	rec := get(t, router, "/v1/sessions?won=true&order=moves&desc=true&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, sessions.query.Won)
	assert.True(t, *sessions.query.Won)
	assert.Equal(t, storage.OrderByMoves, sessions.query.OrderBy)
	assert.True(t, sessions.query.Descending)
	assert.Equal(t, 5, sessions.query.Limit)

	var body struct {
		Sessions []core.SessionRecord `json:"sessions"`
		Count    int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "a", body.Sessions[0].ID)

	rec = get(t, router, "/v1/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, sessions.query.Won)
	assert.Equal(t, storage.OrderByStartTime, sessions.query.OrderBy)
	assert.Equal(t, defaultListLimit, sessions.query.Limit)

	get(t, router, "/v1/sessions?limit=100000")
	assert.Equal(t, maxListLimit, sessions.query.Limit)
}

func TestSessions_BadQuery(t *testing.T) {
	router := New(analytics.NewService(nil, 11), &fakeSessions{}, nil)
	for _, target := range []string{
		"/v1/sessions?won=maybe",
		"/v1/sessions?order=alphabetical",
		"/v1/sessions?desc=yes-please",
		"/v1/sessions?limit=0",
		"/v1/sessions?offset=-1",
	} {
		t.Run(target, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(t, router, target).Code)
		})
	}
}

func TestSessions_StoreDown(t *testing.T) {
	router := New(analytics.NewService(nil, 11), &fakeSessions{err: errors.New("disk I/O error")}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/v1/sessions").Code)
}

func TestSessions_Get(t *testing.T) {
	sessions := &fakeSessions{list: []core.SessionRecord{{ID: "abc", Status: core.StatusInProgress}}}
	router := New(analytics.NewService(nil, 11), sessions, nil)

	rec := get(t, router, "/v1/sessions/abc")
	require.Equal(t, http.StatusOK, rec.Code)
	var got core.SessionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.ID)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/v1/sessions/missing").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := New(analytics.NewService(nil, 11), nil, nil)
	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)

	get(t, router, "/v1/analytics")
	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lakecross_analytics_requests_total")

	// Sessions routes are not mounted without a reader.
	assert.Equal(t, http.StatusNotFound, get(t, router, "/v1/sessions").Code)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, addr, New(analytics.NewService(nil, 11), nil, nil), nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
