package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Period is the interval between ticks.
const Period = time.Second

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Service owns the single repeating ticker of a session. At most one tick
// loop is live at any time.
type Service struct {
	clock Clock

	mu     sync.Mutex
	ticker clockwork.Ticker
	done   chan struct{}
}

// NewService creates a clock service backed by clk. A nil clk uses the real clock.
func NewService(clk Clock) *Service {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Service{clock: clk}
}

// Now returns the current time of the underlying clock.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// Start schedules onTick to run once per Period and returns immediately.
// It reports false when a loop was already running, in which case onTick is
// ignored and the existing loop keeps going.
func (s *Service) Start(onTick func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		log.Debug().Msg("clock already running - skipping start")
		return false
	}

	ticker := s.clock.NewTicker(Period)
	done := make(chan struct{})
	s.ticker = ticker
	s.done = done

	go func(t clockwork.Ticker, done <-chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-t.Chan():
				// Stop may have raced with the tick; a closed done wins.
				select {
				case <-done:
					return
				default:
				}
				onTick()
			}
		}
	}(ticker, done)

	log.Debug().Dur("period", Period).Msg("clock started")
	return true
}

// Stop cancels the running loop. It reports false when nothing was running.
// Stop does not wait for an in-flight onTick to return.
func (s *Service) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return false
	}

	stopAndDrainTicker(s.ticker)
	close(s.done)
	s.ticker = nil
	s.done = nil

	log.Debug().Msg("clock stopped")
	return true
}

// Running reports whether a tick loop is live.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticker != nil
}

// stopAndDrainTicker stops a ticker and drops a pending tick so a stale
// value is never observed by a later reader of the channel.
func stopAndDrainTicker(t clockwork.Ticker) {
	t.Stop()
	select {
	case <-t.Chan():
	default:
	}
}
