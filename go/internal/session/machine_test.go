package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sudoku/go/internal/clock"
	"github.com/mcdev12/sudoku/go/internal/events"
	"github.com/mcdev12/sudoku/go/internal/models"
	"github.com/mcdev12/sudoku/go/internal/records"
	"github.com/mcdev12/sudoku/go/internal/storage"
)

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Notify(ctx context.Context, e events.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

type failingStore struct {
	*records.Store
}

func (f failingStore) Append(ctx context.Context, r models.Record) error {
	_ = f.Store.Append(ctx, r)
	return errors.New("storage unavailable")
}

type fixture struct {
	fc      *clockwork.FakeClock
	kv      *storage.Memory
	store   *records.Store
	log     *eventLog
	machine *Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fc := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	kv := storage.NewMemory()
	store := records.NewStore(context.Background(), records.NewRepository(kv))
	log := &eventLog{}
	m := NewMachine(Config{SessionID: "session-1"}, clock.NewService(fc), store, log)
	t.Cleanup(func() { m.StopTimer(context.Background()) })
	return &fixture{fc: fc, kv: kv, store: store, log: log, machine: m}
}

// tick advances the fake clock one period and waits for the machine to count it.
func (f *fixture) tick(t *testing.T) {
	t.Helper()
	want := f.machine.State().TimeSpent + 1
	f.fc.Advance(clock.Period)
	waitForTimeSpent(t, f.machine, want)
}

func waitForTimeSpent(t *testing.T, m *Machine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State().TimeSpent == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("TimeSpent = %d, want %d", m.State().TimeSpent, want)
}

func TestMachine_SolveScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	if s := m.State(); s.Status != models.SessionStatusIdle {
		t.Fatalf("initial status = %s, want IDLE", s.Status)
	}

	m.SetDifficulty(ctx, models.DifficultyIntermediate)
	if s := m.SetReady(ctx, true, "abc"); s.Status != models.SessionStatusInProgress {
		t.Fatalf("status after SetReady = %s, want IN_PROGRESS", s.Status)
	}
	m.StartTimer(ctx)
	for i := 0; i < 5; i++ {
		f.tick(t)
	}

	state := m.SetValid(ctx, true)

	if !state.Ready || !state.Valid || state.TimeSpent != 5 || state.Status != models.SessionStatusSolved {
		t.Fatalf("final state = %+v", state)
	}
	if state.TimerRunning {
		t.Fatal("timer still running after SetValid(true)")
	}

	got := m.Records()
	want := []models.Record{{
		CompletedAt:     f.fc.Now().UTC(),
		SecondsSpent:    5,
		DifficultyLevel: models.DifficultyIntermediate,
		PuzzleIdentity:  "abc",
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	// Persisted copy matches the in-memory copy.
	fresh := records.NewStore(ctx, records.NewRepository(f.kv))
	if diff := cmp.Diff(want, fresh.All()); diff != "" {
		t.Fatalf("durable records mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_StartTimerTwiceTicksOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.machine.StartTimer(ctx)
	f.machine.StartTimer(ctx)

	for i := 1; i <= 3; i++ {
		f.fc.Advance(clock.Period)
		waitForTimeSpent(t, f.machine, i)
	}
	time.Sleep(10 * time.Millisecond)
	if got := f.machine.State().TimeSpent; got != 3 {
		t.Fatalf("TimeSpent = %d, want 3", got)
	}

	started := 0
	for _, typ := range f.log.types() {
		if typ == events.EventTypeTimerStarted {
			started++
		}
	}
	if started != 1 {
		t.Fatalf("TimerStarted emitted %d times, want 1", started)
	}
}

func TestMachine_SetValidAppendsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyBeginner)
	m.SetReady(ctx, true, "p-1")
	m.StartTimer(ctx)
	f.tick(t)
	f.tick(t)

	before := m.State().TimeSpent
	state := m.SetValid(ctx, true)
	if state.TimerRunning {
		t.Fatal("timer running after SetValid(true)")
	}
	if f.store.Len() != 1 {
		t.Fatalf("records = %d, want 1", f.store.Len())
	}
	if got := m.Records()[0].SecondsSpent; got != before {
		t.Fatalf("SecondsSpent = %d, want %d", got, before)
	}

	// Repeated triggers for the same attempt do not duplicate the record.
	m.SetValid(ctx, true)
	m.SaveRecord(ctx)
	if f.store.Len() != 1 {
		t.Fatalf("records = %d after repeated saves, want 1", f.store.Len())
	}

	// The timer stays frozen.
	f.fc.Advance(3 * clock.Period)
	time.Sleep(10 * time.Millisecond)
	if got := m.State().TimeSpent; got != before {
		t.Fatalf("TimeSpent moved after solve: %d, want %d", got, before)
	}
}

func TestMachine_SetValidFalseDoesNotRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.machine.SetReady(ctx, true, "p-1")
	f.machine.StartTimer(ctx)
	state := f.machine.SetValid(ctx, false)

	if state.Valid || !state.TimerRunning {
		t.Fatalf("state = %+v, want valid=false and timer running", state)
	}
	if f.store.Len() != 0 {
		t.Fatalf("records = %d, want 0", f.store.Len())
	}
}

func TestMachine_NewAttemptRecordsAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyExpert)
	m.SetReady(ctx, true, "p-1")
	m.SetValid(ctx, true)

	m.Reset(ctx)
	m.SetDifficulty(ctx, models.DifficultyExpert)
	m.SetReady(ctx, true, "p-2")
	m.StartTimer(ctx)
	f.tick(t)
	m.SetValid(ctx, true)

	got := m.Records()
	if len(got) != 2 {
		t.Fatalf("records = %d, want 2", len(got))
	}
	if got[0].PuzzleIdentity != "p-1" || got[1].PuzzleIdentity != "p-2" || got[1].SecondsSpent != 1 {
		t.Fatalf("records = %+v", got)
	}
	if byLevel := m.RecordsByLevel(models.DifficultyExpert); len(byLevel) != 2 {
		t.Fatalf("RecordsByLevel(20) = %d records, want 2", len(byLevel))
	}
}

func TestMachine_SaveRecordIgnoredUntilSolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	// Nothing loaded yet.
	m.SaveRecord(ctx)
	if f.store.Len() != 0 {
		t.Fatalf("records = %d, want 0 with no puzzle loaded", f.store.Len())
	}

	m.SetDifficulty(ctx, models.DifficultyAdvanced)
	m.SetReady(ctx, true, "p-9")
	m.StartTimer(ctx)
	f.tick(t)

	state := m.SaveRecord(ctx)
	if !state.TimerRunning || state.Valid || state.TimeSpent != 1 {
		t.Fatalf("state after unsolved save = %+v, want untouched", state)
	}
	if f.store.Len() != 0 {
		t.Fatalf("records = %d, want 0 for an unsolved puzzle", f.store.Len())
	}
}

func TestMachine_SaveThenResumeThenSolveRecordsSolveTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyIntermediate)
	m.SetReady(ctx, true, "abc")
	m.StartTimer(ctx)
	for i := 0; i < 3; i++ {
		f.tick(t)
	}

	m.SaveRecord(ctx)
	m.StartTimer(ctx)
	for i := 0; i < 2; i++ {
		f.tick(t)
	}

	state := m.SetValid(ctx, true)
	if state.TimeSpent != 5 {
		t.Fatalf("TimeSpent = %d, want 5", state.TimeSpent)
	}

	want := []models.Record{{
		CompletedAt:     f.fc.Now().UTC(),
		SecondsSpent:    5,
		DifficultyLevel: models.DifficultyIntermediate,
		PuzzleIdentity:  "abc",
	}}
	if diff := cmp.Diff(want, m.Records()); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	// Saving the solved attempt again is a no-op.
	m.SaveRecord(ctx)
	if f.store.Len() != 1 {
		t.Fatalf("records = %d after save of solved attempt, want 1", f.store.Len())
	}
}

func TestMachine_SaveRecordAfterSolveRecordsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyExpert)
	m.SetReady(ctx, true, "p-2")
	m.StartTimer(ctx)
	f.tick(t)
	m.SetValid(ctx, true)

	// Timer restarted by the UI after the solve; an explicit save freezes it.
	m.StartTimer(ctx)
	state := m.SaveRecord(ctx)
	if state.TimerRunning {
		t.Fatal("timer running after SaveRecord")
	}
	recs := m.Records()
	if len(recs) != 1 || recs[0].SecondsSpent != 1 {
		t.Fatalf("records = %+v, want one record of 1s", recs)
	}
}

// gatedLog blocks delivery of the first tick until release is closed.
type gatedLog struct {
	eventLog
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedLog) Notify(ctx context.Context, e events.Event) {
	if e.Type == events.EventTypeTimerTick {
		g.once.Do(func() {
			close(g.entered)
			<-g.release
		})
	}
	g.eventLog.Notify(ctx, e)
}

func TestMachine_EventsDeliveredInCommitOrder(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := records.NewStore(ctx, records.NewRepository(storage.NewMemory()))
	gl := &gatedLog{entered: make(chan struct{}), release: make(chan struct{})}
	m := NewMachine(Config{SessionID: "session-1"}, clock.NewService(fc), store, gl)

	go m.tickFunc(0)()
	<-gl.entered

	resetDone := make(chan State, 1)
	go func() { resetDone <- m.Reset(ctx) }()

	select {
	case <-resetDone:
		t.Fatal("Reset delivered its events while an earlier tick was still being delivered")
	case <-time.After(20 * time.Millisecond):
	}

	close(gl.release)
	state := <-resetDone
	if state.TimeSpent != 0 {
		t.Fatalf("TimeSpent after reset = %d, want 0", state.TimeSpent)
	}

	want := []events.EventType{events.EventTypeTimerTick, events.EventTypeSessionReset}
	if diff := cmp.Diff(want, gl.types()); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
}

func TestMachine_ResetAlwaysIdles(t *testing.T) {
	ctx := context.Background()

	setups := map[string]func(t *testing.T, f *fixture){
		"idle": func(t *testing.T, f *fixture) {},
		"in progress with running timer": func(t *testing.T, f *fixture) {
			f.machine.SetDifficulty(ctx, models.DifficultyBeginner)
			f.machine.SetReady(ctx, true, "p")
			f.machine.StartTimer(ctx)
			f.tick(t)
		},
		"solved": func(t *testing.T, f *fixture) {
			f.machine.SetDifficulty(ctx, models.DifficultyExpert)
			f.machine.SetReady(ctx, true, "p")
			f.machine.StartTimer(ctx)
			f.tick(t)
			f.machine.SetValid(ctx, true)
		},
		"valid without ready": func(t *testing.T, f *fixture) {
			f.machine.SetValid(ctx, true)
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			setup(t, f)

			state := f.machine.Reset(ctx)
			if state.DifficultyLevel != 0 || state.Ready || state.Valid || state.TimeSpent != 0 {
				t.Fatalf("state after Reset = %+v", state)
			}
			if state.TimerRunning || state.PuzzleIdentity != nil || state.Status != models.SessionStatusIdle {
				t.Fatalf("state after Reset = %+v", state)
			}
		})
	}
}

func TestMachine_LateTickAfterResetIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetReady(ctx, true, "p")
	m.StartTimer(ctx)
	f.tick(t)

	m.mu.Lock()
	stale := m.tickFunc(m.timerEpoch)
	m.mu.Unlock()

	m.Reset(ctx)
	stale()

	if got := m.State().TimeSpent; got != 0 {
		t.Fatalf("TimeSpent = %d after stale tick, want 0", got)
	}
}

func TestMachine_StopTimerFreezesTime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.machine.StartTimer(ctx)
	f.tick(t)
	f.tick(t)
	state := f.machine.StopTimer(ctx)
	if state.TimerRunning || state.TimeSpent != 2 {
		t.Fatalf("state = %+v", state)
	}

	f.fc.Advance(2 * clock.Period)
	time.Sleep(10 * time.Millisecond)
	if got := f.machine.State().TimeSpent; got != 2 {
		t.Fatalf("TimeSpent = %d after stop, want 2", got)
	}

	// Resuming continues from the frozen value.
	f.machine.StartTimer(ctx)
	f.tick(t)
	if got := f.machine.State().TimeSpent; got != 3 {
		t.Fatalf("TimeSpent = %d after resume, want 3", got)
	}
}

func TestMachine_SetDifficultyIgnoresUnknownLevels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyAdvanced)
	state := m.SetDifficulty(ctx, models.Difficulty(7))

	if state.DifficultyLevel != models.DifficultyAdvanced {
		t.Fatalf("DifficultyLevel = %d, want 14", state.DifficultyLevel)
	}
	if m.LevelName() != "Advanced" {
		t.Fatalf("LevelName() = %q", m.LevelName())
	}

	m.SetDifficulty(ctx, models.DifficultyUnset)
	if m.DifficultyLevel() != 0 || m.LevelName() != models.UnknownLevelName {
		t.Fatalf("level = %d name = %q", m.DifficultyLevel(), m.LevelName())
	}
}

func TestMachine_SetReadyFalseDropsIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	state := f.machine.SetReady(ctx, true, "abc")
	if state.PuzzleIdentity == nil || *state.PuzzleIdentity != "abc" {
		t.Fatalf("PuzzleIdentity = %v, want abc", state.PuzzleIdentity)
	}
	state = f.machine.SetReady(ctx, false, "abc")
	if state.Ready || state.PuzzleIdentity != nil {
		t.Fatalf("state = %+v, want not ready and no identity", state)
	}
}

func TestMachine_StorageFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	fc := clockwork.NewFakeClock()
	store := failingStore{Store: records.NewStore(ctx, records.NewRepository(storage.NewMemory()))}
	m := NewMachine(Config{}, clock.NewService(fc), store, nil)

	m.SetDifficulty(ctx, models.DifficultyBeginner)
	m.SetReady(ctx, true, "p")
	state := m.SetValid(ctx, true)

	if !state.Valid || state.Status != models.SessionStatusSolved {
		t.Fatalf("state = %+v", state)
	}
	if len(m.Records()) != 1 {
		t.Fatalf("in-memory records = %d, want 1", len(m.Records()))
	}
	if m.ID() == "" || state.GridSize != DefaultGridSize {
		t.Fatalf("defaults not applied: id=%q grid=%d", m.ID(), state.GridSize)
	}
}

func TestMachine_EventOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine

	m.SetDifficulty(ctx, models.DifficultyIntermediate)
	m.SetReady(ctx, true, "abc")
	m.StartTimer(ctx)
	f.tick(t)
	m.SetValid(ctx, true)
	m.Reset(ctx)

	want := []events.EventType{
		events.EventTypeDifficultyChanged,
		events.EventTypePuzzleReady,
		events.EventTypeTimerStarted,
		events.EventTypeTimerTick,
		events.EventTypeTimerStopped,
		events.EventTypePuzzleSolved,
		events.EventTypeRecordSaved,
		events.EventTypeSessionReset,
	}
	if diff := cmp.Diff(want, f.log.types()); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
}

// For any command sequence, time spent never decreases except to exactly
// zero on reset.
func TestMachine_TimeSpentMonotonic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.machine
	rng := rand.New(rand.NewSource(42))

	levels := []models.Difficulty{0, 1, 8, 14, 20, 3}
	prev := 0
	for step := 0; step < 200; step++ {
		reset := false
		switch rng.Intn(8) {
		case 0:
			m.SetDifficulty(ctx, levels[rng.Intn(len(levels))])
		case 1:
			m.SetReady(ctx, rng.Intn(2) == 0, "p")
		case 2:
			m.StartTimer(ctx)
		case 3:
			m.StopTimer(ctx)
		case 4:
			m.SetValid(ctx, rng.Intn(2) == 0)
		case 5:
			m.Reset(ctx)
			reset = true
		case 6:
			m.SaveRecord(ctx)
		case 7:
			if m.State().TimerRunning {
				f.tick(t)
			}
		}

		got := m.State().TimeSpent
		if reset {
			if got != 0 {
				t.Fatalf("step %d: TimeSpent = %d after reset, want 0", step, got)
			}
		} else if got < prev {
			t.Fatalf("step %d: TimeSpent decreased from %d to %d", step, prev, got)
		}
		if !models.IsValidLevel(m.DifficultyLevel()) {
			t.Fatalf("step %d: stored invalid level %d", step, m.DifficultyLevel())
		}
		prev = got
	}
}
