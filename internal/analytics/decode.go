// Package analytics reduces recorded game sessions into summary statistics.
package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/divijg19/lakecross/internal/core"
)

// ErrMalformedRecord marks a session document that cannot be counted.
var ErrMalformedRecord = errors.New("analytics: malformed session record")

type document map[string]json.RawMessage

// lookup returns the first present, non-null field among the given spellings.
func (d document) lookup(names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if raw, ok := d[n]; ok && string(raw) != "null" {
			return raw, true
		}
	}
	return nil, false
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedRecord, fmt.Sprintf(format, args...))
}

// Decode turns one stored session document into a SessionRecord. Status is required for
// every record; moveCount only for completed ones. Missing won means false, and a missing
// mistakes list is rebuilt from the per-move log.
func Decode(raw []byte) (core.SessionRecord, error) {
	var rec core.SessionRecord
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return rec, malformed("not a JSON object: %v", err)
	}
	if doc == nil {
		return rec, malformed("null document")
	}

	if v, ok := doc.lookup("id", "_id", "session_id", "sessionId"); ok {
		var id string
		if err := json.Unmarshal(v, &id); err != nil {
			return rec, malformed("id: %v", err)
		}
		rec.ID = id
	}

	v, ok := doc.lookup("status")
	if !ok {
		return rec, malformed("missing status")
	}
	var status string
	if err := json.Unmarshal(v, &status); err != nil {
		return rec, malformed("status: %v", err)
	}
	if rec.Status, ok = core.ParseSessionStatus(status); !ok {
		return rec, malformed("unknown status %q", status)
	}

	if v, ok := doc.lookup("moveCount", "move_count"); ok {
		var n int
		if err := json.Unmarshal(v, &n); err != nil || n < 0 {
			return rec, malformed("moveCount: %s", v)
		}
		rec.MoveCount = n
	} else if rec.Status == core.StatusCompleted {
		return rec, malformed("completed record without moveCount")
	}

	if v, ok := doc.lookup("won", "win"); ok {
		if err := json.Unmarshal(v, &rec.Won); err != nil {
			return rec, malformed("won: %v", err)
		}
	}

	if v, ok := doc.lookup("durationSeconds", "duration_seconds", "duration"); ok {
		var d float64
		if err := json.Unmarshal(v, &d); err != nil || d < 0 {
			return rec, malformed("durationSeconds: %s", v)
		}
		rec.DurationSeconds = &d
	}

	if v, ok := doc.lookup("startTime", "start_time"); ok {
		if err := json.Unmarshal(v, &rec.StartTime); err != nil {
			return rec, malformed("startTime: %v", err)
		}
	}
	if v, ok := doc.lookup("endTime", "end_time"); ok {
		var end time.Time
		if err := json.Unmarshal(v, &end); err != nil {
			return rec, malformed("endTime: %v", err)
		}
		rec.EndTime = &end
	}
	if v, ok := doc.lookup("finalState", "final_state"); ok {
		_ = json.Unmarshal(v, &rec.FinalState)
	}

	if v, ok := doc.lookup("moves"); ok {
		moves, err := decodeMoves(v)
		if err != nil {
			return rec, err
		}
		rec.Moves = moves
	}

	if v, ok := doc.lookup("mistakes"); ok {
		tags, err := decodeMistakes(v)
		if err != nil {
			return rec, err
		}
		rec.Mistakes = tags
	} else {
		for _, m := range rec.Moves {
			rec.Mistakes = append(rec.Mistakes, m.Mistakes...)
		}
	}
	return rec, nil
}

func decodeMistakes(raw json.RawMessage) ([]core.Mistake, error) {
	var tags []string
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil, malformed("mistakes: %v", err)
	}
	out := make([]core.Mistake, 0, len(tags))
	for _, tag := range tags {
		if m, ok := core.ParseMistake(tag); ok {
			out = append(out, m)
		} else {
			out = append(out, core.Mistake(tag))
		}
	}
	return out, nil
}

// decodeMoves accepts any array; entries only need to be objects. Only their count and
// mistake tags feed the summary.
func decodeMoves(raw json.RawMessage) ([]core.MoveEntry, error) {
	var docs []document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, malformed("moves: %v", err)
	}
	moves := make([]core.MoveEntry, 0, len(docs))
	for i, d := range docs {
		m := core.MoveEntry{Seq: i + 1}
		if v, ok := d.lookup("seq"); ok {
			_ = json.Unmarshal(v, &m.Seq)
		}
		if v, ok := d.lookup("op"); ok {
			_ = json.Unmarshal(v, &m.Op)
		}
		if v, ok := d.lookup("kind"); ok {
			_ = json.Unmarshal(v, &m.Kind)
		}
		if v, ok := d.lookup("at"); ok {
			_ = json.Unmarshal(v, &m.At)
		}
		if v, ok := d.lookup("state"); ok {
			_ = json.Unmarshal(v, &m.State)
		}
		if v, ok := d.lookup("moveCount", "move_count"); ok {
			_ = json.Unmarshal(v, &m.MoveCount)
		}
		if v, ok := d.lookup("mistakes"); ok {
			tags, err := decodeMistakes(v)
			if err != nil {
				return nil, fmt.Errorf("move %d: %w", i+1, err)
			}
			m.Mistakes = tags
		}
		moves = append(moves, m)
	}
	return moves, nil
}
