package models

import "sort"

// Difficulty is the numeric level a puzzle is generated at. Zero means no
// level has been chosen for the session yet.
type Difficulty int

const (
	DifficultyUnset        Difficulty = 0
	DifficultyBeginner     Difficulty = 1
	DifficultyIntermediate Difficulty = 8
	DifficultyAdvanced     Difficulty = 14
	DifficultyExpert       Difficulty = 20
)

// UnknownLevelName is shown for levels missing from the table.
const UnknownLevelName = "unknown"

var difficultyNames = map[Difficulty]string{
	DifficultyBeginner:     "Beginner",
	DifficultyIntermediate: "Intermediate",
	DifficultyAdvanced:     "Advanced",
	DifficultyExpert:       "Expert",
}

// Level is one row of the difficulty table.
type Level struct {
	Level Difficulty `json:"level"`
	Name  string     `json:"name"`
}

// Levels returns the difficulty table ordered by level.
func Levels() []Level {
	levels := make([]Level, 0, len(difficultyNames))
	for d, name := range difficultyNames {
		levels = append(levels, Level{Level: d, Name: name})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels
}

// IsValidLevel reports whether d may be stored as the session difficulty.
func IsValidLevel(d Difficulty) bool {
	if d == DifficultyUnset {
		return true
	}
	_, ok := difficultyNames[d]
	return ok
}

// LevelName returns the display name of d, or UnknownLevelName.
func LevelName(d Difficulty) string {
	if name, ok := difficultyNames[d]; ok {
		return name
	}
	return UnknownLevelName
}

// String implements fmt.Stringer.
func (d Difficulty) String() string {
	return LevelName(d)
}
