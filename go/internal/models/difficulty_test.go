package models

import "testing"

func TestLevelsOrdered(t *testing.T) {
	levels := Levels()
	want := []Level{
		{Level: 1, Name: "Beginner"},
		{Level: 8, Name: "Intermediate"},
		{Level: 14, Name: "Advanced"},
		{Level: 20, Name: "Expert"},
	}
	if len(levels) != len(want) {
		t.Fatalf("Levels() len = %d, want %d", len(levels), len(want))
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("Levels()[%d] = %+v, want %+v", i, levels[i], want[i])
		}
	}
}

func TestLevelName(t *testing.T) {
	tests := []struct {
		level Difficulty
		want  string
	}{
		{DifficultyBeginner, "Beginner"},
		{DifficultyIntermediate, "Intermediate"},
		{DifficultyAdvanced, "Advanced"},
		{DifficultyExpert, "Expert"},
		{DifficultyUnset, UnknownLevelName},
		{Difficulty(3), UnknownLevelName},
	}
	for _, tt := range tests {
		if got := LevelName(tt.level); got != tt.want {
			t.Errorf("LevelName(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, d := range []Difficulty{0, 1, 8, 14, 20} {
		if !IsValidLevel(d) {
			t.Errorf("IsValidLevel(%d) = false, want true", d)
		}
	}
	for _, d := range []Difficulty{-1, 2, 9, 21} {
		if IsValidLevel(d) {
			t.Errorf("IsValidLevel(%d) = true, want false", d)
		}
	}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(false, false); got != SessionStatusIdle {
		t.Errorf("StatusFor(false,false) = %s", got)
	}
	if got := StatusFor(false, true); got != SessionStatusIdle {
		t.Errorf("StatusFor(false,true) = %s", got)
	}
	if got := StatusFor(true, false); got != SessionStatusInProgress {
		t.Errorf("StatusFor(true,false) = %s", got)
	}
	if got := StatusFor(true, true); got != SessionStatusSolved {
		t.Errorf("StatusFor(true,true) = %s", got)
	}
}
