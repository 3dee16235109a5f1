package session

import (
	"context"
	"time"

	"github.com/mcdev12/sudoku/go/internal/models"
)

// DefaultGridSize is the side length of a standard puzzle.
const DefaultGridSize = 9

// Clock is what the machine needs from the clock service.
type Clock interface {
	Start(onTick func()) bool
	Stop() bool
	Running() bool
	Now() time.Time
}

// RecordStore is what the machine needs from the record store.
type RecordStore interface {
	Append(ctx context.Context, record models.Record) error
	All() []models.Record
	ByLevel(level models.Difficulty) []models.Record
	Len() int
}

// Config holds the immutable parameters of a session.
type Config struct {
	SessionID string
	GridSize  int
}

// State is a point-in-time copy of the session.
type State struct {
	SessionID       string               `json:"session_id"`
	GridSize        int                  `json:"grid_size"`
	DifficultyLevel models.Difficulty    `json:"difficulty_level"`
	LevelName       string               `json:"level_name"`
	Ready           bool                 `json:"ready"`
	Valid           bool                 `json:"valid"`
	TimeSpent       int                  `json:"time_spent"`
	PuzzleIdentity  *string              `json:"puzzle_identity"`
	TimerRunning    bool                 `json:"timer_running"`
	Status          models.SessionStatus `json:"status"`
}
