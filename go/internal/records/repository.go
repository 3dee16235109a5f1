package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/sudoku/go/internal/models"
	"github.com/mcdev12/sudoku/go/internal/storage"
)

// StorageKey is the single durable storage entry holding all records.
const StorageKey = "records"

// ErrNoRecords is returned by Load when nothing has been stored yet.
var ErrNoRecords = errors.New("no stored records")

type Repository struct {
	kv storage.KV
}

func NewRepository(kv storage.KV) *Repository {
	return &Repository{
		kv: kv,
	}
}

// Load reads and decodes the stored records.
func (r *Repository) Load(ctx context.Context) ([]models.Record, error) {
	data, err := r.kv.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return records, nil
}

// Save replaces the stored records with the full sequence.
func (r *Repository) Save(ctx context.Context, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	if err := r.kv.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}
