package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/sudoku/go/internal/events"
	"github.com/mcdev12/sudoku/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Machine owns all mutable state of one puzzle session. Commands and timer
// ticks are serialized on mu, so a tick lands entirely before or after any
// command. Events are delivered after mu is released, in commit order.
type Machine struct {
	id       string
	gridSize int
	clock    Clock
	records  RecordStore
	notifier events.Notifier

	mu sync.Mutex
	// emitMu is taken before mu is released and held while events are
	// delivered, so deliveries never overtake each other.
	emitMu sync.Mutex

	difficulty     models.Difficulty
	ready          bool
	valid          bool
	timeSpent      int
	puzzleIdentity *string
	// recorded is set once the current attempt has a record.
	recorded bool
	// timerEpoch changes on every stop; ticks from an older epoch are dropped.
	timerEpoch uint64
}

type pendingEvent struct {
	eventType events.EventType
	payload   any
}

// NewMachine creates an idle session.
func NewMachine(cfg Config, clk Clock, store RecordStore, notifier events.Notifier) *Machine {
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if cfg.GridSize <= 0 {
		cfg.GridSize = DefaultGridSize
	}
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Machine{
		id:       cfg.SessionID,
		gridSize: cfg.GridSize,
		clock:    clk,
		records:  store,
		notifier: notifier,
	}
}

// ID returns the session ID.
func (m *Machine) ID() string {
	return m.id
}

// SetDifficulty selects the difficulty tier. Levels missing from the table
// are ignored so the stored level is always a table key or zero.
func (m *Machine) SetDifficulty(ctx context.Context, level models.Difficulty) State {
	m.mu.Lock()
	if !models.IsValidLevel(level) {
		state := m.snapshotLocked()
		m.mu.Unlock()
		log.Warn().
			Str("session_id", m.id).
			Int("level", int(level)).
			Msg("ignoring unknown difficulty level")
		return state
	}

	m.difficulty = level
	state := m.snapshotLocked()

	log.Info().Str("session_id", m.id).Int("level", int(level)).Str("name", models.LevelName(level)).Msg("difficulty set")
	m.unlockAndEmit(ctx, pendingEvent{events.EventTypeDifficultyChanged, events.DifficultyChangedPayload{
		Level: level,
		Name:  models.LevelName(level),
	}})
	return state
}

// SetReady marks whether a puzzle is loaded and records its identity. The
// identity is dropped when ready is false. Loading a different puzzle starts
// a new attempt.
func (m *Machine) SetReady(ctx context.Context, ready bool, puzzleIdentity string) State {
	m.mu.Lock()

	var identity *string
	if ready && puzzleIdentity != "" {
		id := puzzleIdentity
		identity = &id
	}
	if ready && (!m.ready || !sameIdentity(m.puzzleIdentity, identity)) {
		m.recorded = false
	}
	m.ready = ready
	m.puzzleIdentity = identity

	state := m.snapshotLocked()

	log.Debug().Str("session_id", m.id).Bool("ready", ready).Str("puzzle", puzzleIdentity).Msg("ready set")
	m.unlockAndEmit(ctx, pendingEvent{events.EventTypePuzzleReady, events.PuzzleReadyPayload{
		Ready:          ready,
		PuzzleIdentity: derefIdentity(identity),
	}})
	return state
}

// StartTimer starts the clock if it is not already running. Each tick adds
// one second to the time spent.
func (m *Machine) StartTimer(ctx context.Context) State {
	m.mu.Lock()
	started := m.clock.Start(m.tickFunc(m.timerEpoch))
	state := m.snapshotLocked()

	if !started {
		m.mu.Unlock()
		return state
	}
	log.Debug().Str("session_id", m.id).Int("time_spent", state.TimeSpent).Msg("timer started")
	m.unlockAndEmit(ctx, pendingEvent{events.EventTypeTimerStarted, events.TimerPayload{
		TimeSpent: state.TimeSpent,
		Running:   true,
	}})
	return state
}

// StopTimer stops the clock. Stopping an idle clock is a no-op.
func (m *Machine) StopTimer(ctx context.Context) State {
	m.mu.Lock()
	stopped := m.stopTimerLocked()
	state := m.snapshotLocked()

	if !stopped {
		m.mu.Unlock()
		return state
	}
	m.unlockAndEmit(ctx, timerStoppedEvent(state))
	return state
}

// SetValid records whether the grid is a correct solution. Marking it valid
// freezes the timer first and then appends exactly one record for the
// attempt; storage failures are logged and never reach the caller.
func (m *Machine) SetValid(ctx context.Context, valid bool) State {
	m.mu.Lock()
	m.valid = valid

	var pending []pendingEvent
	if valid {
		if m.stopTimerLocked() {
			pending = append(pending, timerStoppedEvent(m.snapshotLocked()))
		}
		pending = append(pending, pendingEvent{events.EventTypePuzzleSolved, events.PuzzleSolvedPayload{
			Level:          m.difficulty,
			PuzzleIdentity: derefIdentity(m.puzzleIdentity),
			TimeSpent:      m.timeSpent,
		}})
		if evt, ok := m.appendRecordLocked(ctx); ok {
			pending = append(pending, evt)
		}
	}

	state := m.snapshotLocked()

	log.Info().Str("session_id", m.id).Bool("valid", valid).Int("time_spent", state.TimeSpent).Msg("validity set")
	m.unlockAndEmit(ctx, pending...)
	return state
}

// SaveRecord is the explicit save trigger for a solved puzzle. It freezes
// the timer and records the current attempt unless it already has a record.
// It does nothing unless a puzzle is loaded and solved, so an early save can
// never take the place of the record written on solve.
func (m *Machine) SaveRecord(ctx context.Context) State {
	m.mu.Lock()
	if !m.ready || !m.valid {
		state := m.snapshotLocked()
		m.mu.Unlock()
		log.Warn().
			Str("session_id", m.id).
			Bool("ready", state.Ready).
			Bool("valid", state.Valid).
			Msg("save requested for an unsolved puzzle - ignoring")
		return state
	}

	var pending []pendingEvent
	if m.stopTimerLocked() {
		pending = append(pending, timerStoppedEvent(m.snapshotLocked()))
	}
	if evt, ok := m.appendRecordLocked(ctx); ok {
		pending = append(pending, evt)
	}

	state := m.snapshotLocked()
	m.unlockAndEmit(ctx, pending...)
	return state
}

// Reset returns the session to idle. The timer is stopped before the time
// spent is zeroed so a late tick cannot bring it back.
func (m *Machine) Reset(ctx context.Context) State {
	m.mu.Lock()
	m.difficulty = models.DifficultyUnset
	stopped := m.stopTimerLocked()
	m.timeSpent = 0
	m.ready = false
	m.valid = false
	m.puzzleIdentity = nil
	m.recorded = false

	state := m.snapshotLocked()

	log.Info().Str("session_id", m.id).Msg("session reset")

	var pending []pendingEvent
	if stopped {
		pending = append(pending, timerStoppedEvent(state))
	}
	pending = append(pending, pendingEvent{events.EventTypeSessionReset, events.SessionResetPayload{
		ResetAt: m.clock.Now().UTC(),
	}})
	m.unlockAndEmit(ctx, pending...)
	return state
}

// State returns a snapshot of the session.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// DifficultyLevel returns the active difficulty.
func (m *Machine) DifficultyLevel() models.Difficulty {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.difficulty
}

// LevelName returns the display name of the active difficulty.
func (m *Machine) LevelName() string {
	return models.LevelName(m.DifficultyLevel())
}

// Levels returns the ordered difficulty table.
func (m *Machine) Levels() []models.Level {
	return models.Levels()
}

// Records returns every completed attempt in insertion order.
func (m *Machine) Records() []models.Record {
	return m.records.All()
}

// RecordsByLevel returns the completed attempts at level.
func (m *Machine) RecordsByLevel(level models.Difficulty) []models.Record {
	return m.records.ByLevel(level)
}

func (m *Machine) tickFunc(epoch uint64) func() {
	return func() {
		m.mu.Lock()
		if epoch != m.timerEpoch {
			m.mu.Unlock()
			return
		}
		m.timeSpent++
		timeSpent := m.timeSpent

		m.unlockAndEmit(context.Background(), pendingEvent{events.EventTypeTimerTick, events.TimerPayload{
			TimeSpent: timeSpent,
			Running:   true,
		}})
	}
}

// stopTimerLocked stops the clock and invalidates outstanding ticks.
func (m *Machine) stopTimerLocked() bool {
	m.timerEpoch++
	return m.clock.Stop()
}

func (m *Machine) appendRecordLocked(ctx context.Context) (pendingEvent, bool) {
	if m.recorded {
		log.Debug().Str("session_id", m.id).Msg("attempt already recorded - skipping save")
		return pendingEvent{}, false
	}
	if m.puzzleIdentity == nil {
		log.Warn().Str("session_id", m.id).Msg("recording attempt without a puzzle identity")
	}

	record := models.Record{
		CompletedAt:     m.clock.Now().UTC(),
		SecondsSpent:    m.timeSpent,
		DifficultyLevel: m.difficulty,
		PuzzleIdentity:  derefIdentity(m.puzzleIdentity),
	}
	m.recorded = true

	if err := m.records.Append(ctx, record); err != nil {
		log.Warn().Err(err).Str("session_id", m.id).Msg("record kept in memory only")
	}

	return pendingEvent{events.EventTypeRecordSaved, events.RecordSavedPayload{
		Record:       record,
		TotalRecords: m.records.Len(),
	}}, true
}

func (m *Machine) snapshotLocked() State {
	var identity *string
	if m.puzzleIdentity != nil {
		id := *m.puzzleIdentity
		identity = &id
	}
	return State{
		SessionID:       m.id,
		GridSize:        m.gridSize,
		DifficultyLevel: m.difficulty,
		LevelName:       models.LevelName(m.difficulty),
		Ready:           m.ready,
		Valid:           m.valid,
		TimeSpent:       m.timeSpent,
		PuzzleIdentity:  identity,
		TimerRunning:    m.clock.Running(),
		Status:          models.StatusFor(m.ready, m.valid),
	}
}

// unlockAndEmit releases mu and delivers pending. Whoever commits first
// delivers first.
func (m *Machine) unlockAndEmit(ctx context.Context, pending ...pendingEvent) {
	m.emitMu.Lock()
	m.mu.Unlock()
	defer m.emitMu.Unlock()
	m.emit(ctx, pending...)
}

func (m *Machine) emit(ctx context.Context, pending ...pendingEvent) {
	for _, p := range pending {
		evt, err := events.New(m.id, p.eventType, m.clock.Now(), p.payload)
		if err != nil {
			log.Error().Err(err).Str("session_id", m.id).Msg("failed to build session event")
			continue
		}
		m.notifier.Notify(ctx, evt)
	}
}

func timerStoppedEvent(state State) pendingEvent {
	return pendingEvent{events.EventTypeTimerStopped, events.TimerPayload{
		TimeSpent: state.TimeSpent,
		Running:   false,
	}}
}

func sameIdentity(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func derefIdentity(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}
