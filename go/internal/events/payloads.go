package events

import (
	"time"

	"github.com/mcdev12/sudoku/go/internal/models"
)

// DifficultyChangedPayload is the payload for a DifficultyChanged event
type DifficultyChangedPayload struct {
	Level models.Difficulty `json:"level"`
	Name  string            `json:"name"`
}

// PuzzleReadyPayload is the payload for a PuzzleReady event
type PuzzleReadyPayload struct {
	Ready          bool   `json:"ready"`
	PuzzleIdentity string `json:"puzzle_identity,omitempty"`
}

// TimerPayload is shared by TimerStarted, TimerStopped and TimerTick
type TimerPayload struct {
	TimeSpent int  `json:"time_spent"`
	Running   bool `json:"running"`
}

// PuzzleSolvedPayload is the payload for a PuzzleSolved event
type PuzzleSolvedPayload struct {
	Level          models.Difficulty `json:"level"`
	PuzzleIdentity string            `json:"puzzle_identity"`
	TimeSpent      int               `json:"time_spent"`
}

// RecordSavedPayload is the payload for a RecordSaved event
type RecordSavedPayload struct {
	Record       models.Record `json:"record"`
	TotalRecords int           `json:"total_records"`
}

// SessionResetPayload is the payload for a SessionReset event
type SessionResetPayload struct {
	ResetAt time.Time `json:"reset_at"`
}
