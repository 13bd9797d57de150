package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/divijg19/lakecross/internal/core"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("storage: not found")

// Store provides SQLite-backed persistence for game sessions and their move logs.
type Store struct {
	db *sql.DB
}

const appStateKeyLastBestScore = "last_best_score"

// Fixed-width timestamps keep TEXT ordering chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

// New returns a Store bound to an existing database handle.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// Order selects the sort column for session queries.
type Order string

const (
	OrderByStartTime Order = "start_time"
	OrderByMoves     Order = "moves"
)

var orderColumns = map[Order]string{
	OrderByStartTime: "start_time",
	OrderByMoves:     "move_count",
}

// ParseOrder accepts "moves" or "time"/"start_time".
func ParseOrder(s string) (Order, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "time", "start_time", "starttime":
		return OrderByStartTime, true
	case "moves", "move_count", "movecount":
		return OrderByMoves, true
	}
	return "", false
}

// Query filters and orders session listings. Won restricts to completed sessions with
// that outcome; a zero Limit means no limit.
type Query struct {
	Won        *bool
	OrderBy    Order
	Descending bool
	Limit      int
	Offset     int
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, rec core.SessionRecord) error {
	if s == nil {
		return fmt.Errorf("create session: store is nil")
	}
	if s.db == nil {
		return fmt.Errorf("create session: db is nil")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("create session: id is empty")
	}
	status := rec.Status
	if status == "" {
		status = core.StatusInProgress
	}
	start := rec.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, start_time, end_time, move_count, won, status, duration_seconds, final_state)
		 VALUES (?, ?, NULL, ?, 0, ?, NULL, NULL)`,
		rec.ID, formatTime(start), rec.MoveCount, string(status),
	)
	if err != nil {
		return fmt.Errorf("create session: insert: %w", err)
	}
	return nil
}

// AppendMove appends one move log entry and refreshes the session's crossing count.
func (s *Store) AppendMove(ctx context.Context, sessionID string, m core.MoveEntry) error {
	if s == nil {
		return fmt.Errorf("append move: store is nil")
	}
	if s.db == nil {
		return fmt.Errorf("append move: db is nil")
	}
	if sessionID == "" {
		return fmt.Errorf("append move: session id is empty")
	}
	if m.Op == "" {
		return fmt.Errorf("append move: op is empty")
	}

	mistakes := m.Mistakes
	if mistakes == nil {
		mistakes = []core.Mistake{}
	}
	mistakesJSON, err := json.Marshal(mistakes)
	if err != nil {
		return fmt.Errorf("append move: encode mistakes: %w", err)
	}
	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	var kindValue any
	if m.Kind != "" {
		kindValue = string(m.Kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append move: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET move_count = ? WHERE id = ? AND status = ?`,
		m.MoveCount, sessionID, string(core.StatusInProgress),
	)
	if err != nil {
		return fmt.Errorf("append move: update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append move: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("append move: session %s: %w", sessionID, ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO moves (session_id, seq, op, kind, at, state, move_count, mistakes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, m.Seq, string(m.Op), kindValue, formatTime(at), m.State, m.MoveCount, string(mistakesJSON),
	)
	if err != nil {
		return fmt.Errorf("append move: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append move: commit: %w", err)
	}
	return nil
}

// FinalizeSession marks a session completed with its outcome.
func (s *Store) FinalizeSession(ctx context.Context, rec core.SessionRecord) error {
	if s == nil {
		return fmt.Errorf("finalize session: store is nil")
	}
	if s.db == nil {
		return fmt.Errorf("finalize session: db is nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("finalize session: id is empty")
	}

	end := time.Now()
	if rec.EndTime != nil {
		end = *rec.EndTime
	}
	var duration any
	if rec.DurationSeconds != nil {
		duration = *rec.DurationSeconds
	}
	var finalState any
	if rec.FinalState != "" {
		finalState = rec.FinalState
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET status = ?,
		     end_time = ?,
		     move_count = ?,
		     won = ?,
		     duration_seconds = ?,
		     final_state = ?
		 WHERE id = ?`,
		string(core.StatusCompleted), formatTime(end), rec.MoveCount, boolToInt(rec.Won), duration, finalState, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize session: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize session: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finalize session: %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

// GetSession returns one session with its ordered move log.
func (s *Store) GetSession(ctx context.Context, id string) (core.SessionRecord, error) {
	if s == nil {
		return core.SessionRecord{}, fmt.Errorf("get session: store is nil")
	}
	if s.db == nil {
		return core.SessionRecord{}, fmt.Errorf("get session: db is nil")
	}
	if id == "" {
		return core.SessionRecord{}, fmt.Errorf("get session: id is empty")
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	rec, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.SessionRecord{}, fmt.Errorf("get session: %s: %w", id, ErrNotFound)
		}
		return core.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}

	moves, err := s.loadMoves(ctx, `WHERE session_id = ?`, id)
	if err != nil {
		return core.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	attachMoves(&rec, moves[id])
	return rec, nil
}

// ListSessions returns a page of sessions, oldest first, without move logs.
func (s *Store) ListSessions(ctx context.Context, limit, offset int) ([]core.SessionRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list sessions: limit must be > 0")
	}
	if offset < 0 {
		return nil, fmt.Errorf("list sessions: offset must be >= 0")
	}
	return s.QuerySessions(ctx, Query{OrderBy: OrderByStartTime, Limit: limit, Offset: offset})
}

// QuerySessions returns sessions matching q without move logs.
func (s *Store) QuerySessions(ctx context.Context, q Query) ([]core.SessionRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("query sessions: store is nil")
	}
	if s.db == nil {
		return nil, fmt.Errorf("query sessions: db is nil")
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, fmt.Errorf("query sessions: limit and offset must be >= 0")
	}
	if q.OrderBy == "" {
		q.OrderBy = OrderByStartTime
	}
	column, ok := orderColumns[q.OrderBy]
	if !ok {
		return nil, fmt.Errorf("query sessions: unknown order %q", q.OrderBy)
	}
	dir := "ASC"
	if q.Descending {
		dir = "DESC"
	}

	var sb strings.Builder
	var args []any
	sb.WriteString(`SELECT ` + sessionColumns + ` FROM sessions`)
	if q.Won != nil {
		sb.WriteString(` WHERE status = ? AND won = ?`)
		args = append(args, string(core.StatusCompleted), boolToInt(*q.Won))
	}
	fmt.Fprintf(&sb, ` ORDER BY %s %s, id %s`, column, dir, dir)
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit == 0 {
			limit = -1
		}
		sb.WriteString(` LIMIT ? OFFSET ?`)
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: query: %w", err)
	}
	defer rows.Close()

	sessions := make([]core.SessionRecord, 0)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("query sessions: %w", err)
		}
		sessions = append(sessions, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query sessions: rows: %w", err)
	}
	return sessions, nil
}

// RecentSessions returns the n most recently started sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, n int) ([]core.SessionRecord, error) {
	if n <= 0 {
		return nil, fmt.Errorf("recent sessions: n must be > 0")
	}
	return s.QuerySessions(ctx, Query{OrderBy: OrderByStartTime, Descending: true, Limit: n})
}

// BestScore returns the fewest crossings among won sessions. ok is false when nobody has won.
func (s *Store) BestScore(ctx context.Context) (score int, ok bool, err error) {
	if s == nil {
		return 0, false, fmt.Errorf("best score: store is nil")
	}
	if s.db == nil {
		return 0, false, fmt.Errorf("best score: db is nil")
	}
	var best sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(move_count) FROM sessions WHERE status = ? AND won = 1`,
		string(core.StatusCompleted),
	).Scan(&best)
	if err != nil {
		return 0, false, fmt.Errorf("best score: query: %w", err)
	}
	if !best.Valid {
		return 0, false, nil
	}
	return int(best.Int64), true, nil
}

// CountActive returns how many sessions are still in progress.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("count active: store is nil")
	}
	if s.db == nil {
		return 0, fmt.Errorf("count active: db is nil")
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE status = ?`,
		string(core.StatusInProgress),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active: query: %w", err)
	}
	return n, nil
}

// AllSessions returns every session with its move log, oldest first.
func (s *Store) AllSessions(ctx context.Context) ([]core.SessionRecord, error) {
	sessions, err := s.QuerySessions(ctx, Query{OrderBy: OrderByStartTime})
	if err != nil {
		return nil, fmt.Errorf("all sessions: %w", err)
	}
	moves, err := s.loadMoves(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("all sessions: %w", err)
	}
	for i := range sessions {
		attachMoves(&sessions[i], moves[sessions[i].ID])
	}
	return sessions, nil
}

// Documents returns a snapshot of every session as a JSON document for aggregation.
func (s *Store) Documents(ctx context.Context) ([]json.RawMessage, error) {
	sessions, err := s.AllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("documents: %w", err)
	}
	docs := make([]json.RawMessage, 0, len(sessions))
	for _, rec := range sessions {
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("documents: encode %s: %w", rec.ID, err)
		}
		docs = append(docs, b)
	}
	return docs, nil
}

// DeleteSession removes a session and its move log.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("delete session: store is nil")
	}
	if s.db == nil {
		return fmt.Errorf("delete session: db is nil")
	}
	if id == "" {
		return fmt.Errorf("delete session: id is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete session: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM moves WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: delete moves: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: delete session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete session: %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete session: commit: %w", err)
	}
	return nil
}

// DidBestScoreChange returns true when score differs from the last persisted best score.
// It updates the persisted value on change.
func (s *Store) DidBestScoreChange(ctx context.Context, score int) bool {
	if s == nil || s.db == nil {
		return false
	}
	if score < 0 {
		return false
	}

	var oldValue string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, appStateKeyLastBestScore).Scan(&oldValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.setAppStateInt(ctx, appStateKeyLastBestScore, score)
			return true
		}
		return false
	}

	oldScore, err := strconv.Atoi(strings.TrimSpace(oldValue))
	if err != nil {
		_ = s.setAppStateInt(ctx, appStateKeyLastBestScore, score)
		return true
	}

	if oldScore == score {
		return false
	}

	_ = s.setAppStateInt(ctx, appStateKeyLastBestScore, score)
	return true
}

func (s *Store) setAppStateInt(ctx context.Context, key string, value int) error {
	if key == "" {
		return fmt.Errorf("set app_state: empty key")
	}
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_state(key, value, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key,
		strconv.Itoa(value),
		now,
	)
	if err != nil {
		return fmt.Errorf("set app_state: upsert: %w", err)
	}
	return nil
}

const sessionColumns = `id, start_time, end_time, move_count, won, status, duration_seconds, final_state`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (core.SessionRecord, error) {
	var rec core.SessionRecord
	var startStr, statusStr string
	var endStr, finalState sql.NullString
	var won int
	var duration sql.NullFloat64

	if err := row.Scan(&rec.ID, &startStr, &endStr, &rec.MoveCount, &won, &statusStr, &duration, &finalState); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("scan session: %w", err)
	}

	var err error
	rec.StartTime, err = parseTime(startStr)
	if err != nil {
		return rec, fmt.Errorf("parse start_time: %w", err)
	}
	if endStr.Valid {
		t, err := parseTime(endStr.String)
		if err != nil {
			return rec, fmt.Errorf("parse end_time: %w", err)
		}
		rec.EndTime = &t
	}
	rec.Won = won != 0
	rec.Status = core.SessionStatus(statusStr)
	if duration.Valid {
		d := duration.Float64
		rec.DurationSeconds = &d
	}
	if finalState.Valid {
		rec.FinalState = finalState.String
	}
	rec.Mistakes = []core.Mistake{}
	rec.Moves = []core.MoveEntry{}
	return rec, nil
}

// loadMoves returns move logs keyed by session ID, each ordered by sequence.
func (s *Store) loadMoves(ctx context.Context, where string, args ...any) (map[string][]core.MoveEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, seq, op, kind, at, state, move_count, mistakes FROM moves `+where+` ORDER BY session_id, seq`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]core.MoveEntry)
	for rows.Next() {
		var sessionID, opStr, atStr, mistakesStr string
		var kind sql.NullString
		var m core.MoveEntry
		if err := rows.Scan(&sessionID, &m.Seq, &opStr, &kind, &atStr, &m.State, &m.MoveCount, &mistakesStr); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.Op = core.MoveOp(opStr)
		if kind.Valid {
			m.Kind = core.Kind(kind.String)
		}
		m.At, err = parseTime(atStr)
		if err != nil {
			return nil, fmt.Errorf("parse move at: %w", err)
		}
		if err := json.Unmarshal([]byte(mistakesStr), &m.Mistakes); err != nil {
			return nil, fmt.Errorf("decode move mistakes: %w", err)
		}
		out[sessionID] = append(out[sessionID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("moves rows: %w", err)
	}
	return out, nil
}

func attachMoves(rec *core.SessionRecord, moves []core.MoveEntry) {
	rec.Moves = make([]core.MoveEntry, 0, len(moves))
	rec.Mistakes = []core.Mistake{}
	for _, m := range moves {
		rec.Moves = append(rec.Moves, m)
		rec.Mistakes = append(rec.Mistakes, m.Mistakes...)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
