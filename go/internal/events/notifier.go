package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Notifier receives session events after the command that produced them
// has committed. Implementations must not call back into the session.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) { f(ctx, event) }

// Multi fans an event out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, event)
		}
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// NewLogNotifier logs every event with its decoded payload. Timer ticks are
// logged at trace level, everything else at debug.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, event Event) {
		level := zerolog.DebugLevel
		if event.Type == EventTypeTimerTick {
			level = zerolog.TraceLevel
		}

		payload, err := ParsePayload(event)
		if err != nil {
			logger.Warn().Err(err).
				Str("event_id", event.ID).
				Str("event_type", string(event.Type)).
				Msg("undecodable session event payload")
			return
		}

		logger.WithLevel(level).
			Str("session_id", event.SessionID).
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Interface("payload", payload).
			Msg("session event")
	})
}
