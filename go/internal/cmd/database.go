package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/sudoku/go/internal/config"
	"github.com/mcdev12/sudoku/go/internal/dbconfig"
	"github.com/mcdev12/sudoku/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// setupStorage builds the key-value backend named by cfg. The returned
// closer releases any connection it opened.
func setupStorage(ctx context.Context, cfg *config.Config, namespace string) (storage.KV, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn().Msg("using in-memory storage, records will not survive a restart")
		return storage.NewMemory(), func() {}, nil

	case config.BackendFile:
		log.Info().Str("dir", cfg.Storage.Dir).Str("namespace", namespace).Msg("using file storage")
		return storage.NewFile(cfg.Storage.Dir, namespace), func() {}, nil

	case config.BackendPostgres:
		dbConfig := dbconfig.NewConfigFromEnv()
		kv, pool, err := storage.OpenPostgres(ctx, dbConfig.DSN(), dbConfig.Table, namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres storage: %w", err)
		}
		log.Info().
			Str("host", dbConfig.Host).
			Int("port", dbConfig.Port).
			Str("database", dbConfig.Database).
			Str("namespace", namespace).
			Msg("connected to database")
		return kv, pool.Close, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}
