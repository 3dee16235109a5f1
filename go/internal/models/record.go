package models

import "time"

// Record summarises one solved attempt. Records are never mutated after
// creation. The JSON shape is the durable storage format.
type Record struct {
	CompletedAt     time.Time  `json:"completedAt"`
	SecondsSpent    int        `json:"secondsSpent"`
	DifficultyLevel Difficulty `json:"difficultyLevel"`
	PuzzleIdentity  string     `json:"puzzleIdentity"`
}
