package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sudoku/go/internal/clock"
	"github.com/mcdev12/sudoku/go/internal/config"
	"github.com/mcdev12/sudoku/go/internal/events"
	"github.com/mcdev12/sudoku/go/internal/gateway"
	"github.com/mcdev12/sudoku/go/internal/health"
	"github.com/mcdev12/sudoku/go/internal/records"
	"github.com/mcdev12/sudoku/go/internal/session"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Session *session.Machine
	Records *records.Store
	Hub     *gateway.Hub
	Health  *health.Checker

	closers []func()
}

func setupServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// Storage → Repository → Store → Session, with events fanned out to the
	// hub and, when enabled, JetStream.
	sessionID := cfg.Session.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	namespace := cfg.Storage.Namespace
	if namespace == "" {
		namespace = sessionID
	}

	s := &Services{}

	kv, closeStorage, err := setupStorage(ctx, cfg, namespace)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeStorage)

	s.Records = records.NewStore(ctx, records.NewRepository(kv))
	s.Health = health.NewChecker().
		AddProbe("storage", health.StorageProbe(kv, records.StorageKey))

	var machine *session.Machine
	s.Hub = gateway.NewHub(gateway.DefaultConnectionConfig(), stateFunc(func() session.State {
		return machine.State()
	}))

	notifiers := events.Multi{s.Hub, events.NewLogNotifier(log.Logger)}
	if cfg.NATS.Enabled {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = cfg.NATS.URL
		jsConfig.StreamName = cfg.NATS.StreamName
		jsConfig.SubjectPrefix = cfg.NATS.SubjectPrefix

		publisher, err := events.NewJetStreamPublisher(jsConfig)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		s.closers = append(s.closers, func() {
			if err := publisher.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close JetStream publisher")
			}
		})
		notifiers = append(notifiers, publisher)
		s.Health.AddProbe("nats", health.ConnectedProbe(publisher.Connected))
	}

	clk := clock.NewService(clockwork.NewRealClock())
	machine = session.NewMachine(session.Config{
		SessionID: sessionID,
		GridSize:  cfg.Session.GridSize,
	}, clk, s.Records, notifiers)
	s.Session = machine
	s.closers = append(s.closers, func() { clk.Stop() })

	s.Health.
		AddDetail("session_id", func() any { return sessionID }).
		AddDetail("status", func() any { return machine.State().Status }).
		AddDetail("records", func() any { return s.Records.Len() }).
		AddDetail("connections", func() any { return s.Hub.ConnectionCount() })

	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

type stateFunc func() session.State

func (f stateFunc) State() session.State { return f() }
