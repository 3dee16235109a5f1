package records

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mcdev12/sudoku/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RecordRepository defines what the store needs from durable storage
type RecordRepository interface {
	Load(ctx context.Context) ([]models.Record, error)
	Save(ctx context.Context, records []models.Record) error
}

// Store holds the ordered, append-only sequence of completed attempts and
// mirrors it to durable storage after every append.
type Store struct {
	repo RecordRepository

	mu      sync.RWMutex
	records []models.Record
}

// NewStore creates a store seeded from durable storage. Missing or unreadable
// stored data is treated as an empty history.
func NewStore(ctx context.Context, repo RecordRepository) *Store {
	s := &Store{repo: repo}
	s.records = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) []models.Record {
	records, err := s.repo.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			log.Debug().Msg("no stored records - starting empty")
		} else {
			log.Warn().Err(err).Msg("discarding unreadable stored records")
		}
		return []models.Record{}
	}
	if records == nil {
		records = []models.Record{}
	}

	log.Info().Int("count", len(records)).Msg("loaded stored records")
	return records
}

// Append adds record to the sequence and writes the whole sequence back.
// The in-memory append always happens; a write error is returned so the
// caller can log it, and storage catches up on the next successful append.
func (s *Store) Append(ctx context.Context, record models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record)
	if err := s.repo.Save(ctx, s.records); err != nil {
		return fmt.Errorf("failed to persist records: %w", err)
	}

	log.Debug().
		Int("count", len(s.records)).
		Int("seconds_spent", record.SecondsSpent).
		Int("level", int(record.DifficultyLevel)).
		Msg("record appended")
	return nil
}

// All returns a copy of every record in insertion order.
func (s *Store) All() []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// ByLevel returns the records completed at level, in insertion order.
func (s *Store) ByLevel(level models.Difficulty) []models.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Record{}
	for _, r := range s.records {
		if r.DifficultyLevel == level {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecords(records []models.Record) []models.Record {
	dup := make([]models.Record, len(records))
	copy(dup, records)
	return dup
}
