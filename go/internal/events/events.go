package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for everything a session announces.
type Event struct {
	ID        string          `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Session UUID
	Type      EventType       `json:"type"`       // Event type
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of session event
type EventType string

const (
	EventTypeDifficultyChanged EventType = "DifficultyChanged"
	EventTypePuzzleReady       EventType = "PuzzleReady"
	EventTypeTimerStarted      EventType = "TimerStarted"
	EventTypeTimerStopped      EventType = "TimerStopped"
	EventTypeTimerTick         EventType = "TimerTick"
	EventTypePuzzleSolved      EventType = "PuzzleSolved"
	EventTypeRecordSaved       EventType = "RecordSaved"
	EventTypeSessionReset      EventType = "SessionReset"
	EventTypeStateSync         EventType = "StateSync"
)

// New builds an event with a fresh ID and payload encoded as JSON.
func New(sessionID string, eventType EventType, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// ParsePayload decodes the payload of event into the matching payload struct.
// Unknown event types yield nil.
func ParsePayload(event Event) (any, error) {
	var target any
	switch event.Type {
	case EventTypeDifficultyChanged:
		target = &DifficultyChangedPayload{}
	case EventTypePuzzleReady:
		target = &PuzzleReadyPayload{}
	case EventTypeTimerStarted, EventTypeTimerStopped, EventTypeTimerTick:
		target = &TimerPayload{}
	case EventTypePuzzleSolved:
		target = &PuzzleSolvedPayload{}
	case EventTypeRecordSaved:
		target = &RecordSavedPayload{}
	case EventTypeSessionReset:
		target = &SessionResetPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, target); err != nil {
		return nil, err
	}
	return target, nil
}
