package core

import (
	"strings"
	"time"
)

// Kind identifies one of the two unit populations.
type Kind string

const (
	Priest    Kind = "priest"
	Carnivore Kind = "carnivore"
)

// ParseKind accepts the full name, the plural, or the single-letter shorthand.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p", "priest", "priests":
		return Priest, true
	case "c", "carnivore", "carnivores":
		return Carnivore, true
	}
	return "", false
}

// Side is a bank of the lake.
type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

// Opposite returns the other bank.
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}

// Mistake is a tag for an unsafe or invalid configuration observed during play.
type Mistake string

const (
	MistakeCarnivoresOutnumberPriests Mistake = "CarnivoresOutnumberPriests"
	MistakeInvalidBoatLoad            Mistake = "InvalidBoatLoad"
)

// ParseMistake normalizes a stored tag. Legacy snake_case spellings are accepted.
func ParseMistake(s string) (Mistake, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "carnivoresoutnumberpriests":
		return MistakeCarnivoresOutnumberPriests, true
	case "invalidboatload":
		return MistakeInvalidBoatLoad, true
	}
	return "", false
}

// Label is the human-readable form used in summaries.
func (m Mistake) Label() string {
	switch m {
	case MistakeCarnivoresOutnumberPriests:
		return "Carnivores ate priests"
	case MistakeInvalidBoatLoad:
		return "Too many in boat"
	default:
		return string(m)
	}
}

// SessionStatus is the lifecycle state of a recorded session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
)

// ParseSessionStatus accepts both snake_case and CamelCase spellings.
func ParseSessionStatus(s string) (SessionStatus, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "")) {
	case "inprogress":
		return StatusInProgress, true
	case "completed":
		return StatusCompleted, true
	}
	return "", false
}

// MoveOp names a logged player operation.
type MoveOp string

const (
	OpLoad   MoveOp = "load"
	OpUnload MoveOp = "unload"
	OpCross  MoveOp = "cross"
)

// MoveEntry is one accepted operation in a session's move log.
type MoveEntry struct {
	Seq       int       `json:"seq"`
	Op        MoveOp    `json:"op"`
	Kind      Kind      `json:"kind,omitempty"`
	At        time.Time `json:"at"`
	State     string    `json:"state"`
	MoveCount int       `json:"moveCount"`
	Mistakes  []Mistake `json:"mistakes"`
}

// SessionRecord is the persisted summary of one game.
type SessionRecord struct {
	ID              string        `json:"id"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	MoveCount       int           `json:"moveCount"`
	Won             bool          `json:"won"`
	Status          SessionStatus `json:"status"`
	Mistakes        []Mistake     `json:"mistakes"`
	Moves           []MoveEntry   `json:"moves"`
	DurationSeconds *float64      `json:"durationSeconds,omitempty"`
	FinalState      string        `json:"finalState,omitempty"`
}

// AnalyticsSummary is the reduction of a collection of session records.
type AnalyticsSummary struct {
	TotalGames             int             `json:"totalGames"`
	ActiveGames            int             `json:"activeGames"`
	CompletedGames         int             `json:"completedGames"`
	Wins                   int             `json:"wins"`
	AverageMovesPerWin     float64         `json:"averageMovesPerWin"`
	OptimalSolutionCount   int             `json:"optimalSolutionCount"`
	SuccessRatePercent     float64         `json:"successRatePercent"`
	AverageDurationSeconds float64         `json:"averageDurationSeconds"`
	TotalMovesMade         int             `json:"totalMovesMade"`
	MistakeFrequency       map[Mistake]int `json:"mistakeFrequency"`
}
