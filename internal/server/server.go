// Package server exposes session analytics over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/divijg19/lakecross/internal/core"
	"github.com/divijg19/lakecross/internal/metrics"
	"github.com/divijg19/lakecross/internal/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	shutdownTimeout  = 5 * time.Second
)

// Summarizer produces the aggregate over every stored session.
type Summarizer interface {
	Summary(ctx context.Context) (core.AnalyticsSummary, error)
}

// SessionReader lists and fetches stored sessions.
type SessionReader interface {
	QuerySessions(ctx context.Context, q storage.Query) ([]core.SessionRecord, error)
	GetSession(ctx context.Context, id string) (core.SessionRecord, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds the router. sessions may be nil, in which case only analytics is served.
func New(summary Summarizer, sessions SessionReader, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/analytics", handleAnalytics(summary, logger))
		if sessions != nil {
			v1.GET("/sessions", handleListSessions(sessions, logger))
			v1.GET("/sessions/:id", handleGetSession(sessions, logger))
		}
	}
	return router
}

func handleAnalytics(summary Summarizer, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := summary.Summary(c.Request.Context())
		if err != nil {
			metrics.RecordAnalyticsRequest("unavailable")
			logger.Error("analytics summary failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
		metrics.RecordAnalyticsRequest("ok")
		c.JSON(http.StatusOK, sum)
	}
}

func handleListSessions(sessions SessionReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := parseQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		list, err := sessions.QuerySessions(c.Request.Context(), q)
		if err != nil {
			logger.Error("list sessions failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "session store unavailable"})
			return
		}
		if list == nil {
			list = []core.SessionRecord{}
		}
		c.JSON(http.StatusOK, gin.H{"sessions": list, "count": len(list)})
	}
}

func handleGetSession(sessions SessionReader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := sessions.GetSession(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, errorResponse{Error: "session not found"})
		case err != nil:
			logger.Error("get session failed", "id", c.Param("id"), "err", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "session store unavailable"})
		default:
			c.JSON(http.StatusOK, rec)
		}
	}
}

var errBadQuery = errors.New("invalid query")

func parseQuery(c *gin.Context) (storage.Query, error) {
	q := storage.Query{Limit: defaultListLimit}

	if raw := strings.TrimSpace(c.Query("won")); raw != "" {
		won, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: won must be true or false", errBadQuery)
		}
		q.Won = &won
	}

	order, ok := storage.ParseOrder(c.Query("order"))
	if !ok {
		return q, fmt.Errorf("%w: order must be moves or time", errBadQuery)
	}
	q.OrderBy = order

	if raw := strings.TrimSpace(c.Query("desc")); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			return q, fmt.Errorf("%w: desc must be true or false", errBadQuery)
		}
		q.Descending = desc
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: limit must be a positive integer", errBadQuery)
		}
		q.Limit = min(n, maxListLimit)
	}
	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("%w: offset must be a non-negative integer", errBadQuery)
		}
		q.Offset = n
	}
	return q, nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
		)
	}
}

// Run serves handler on addr until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("analytics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("analytics server stopping")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
