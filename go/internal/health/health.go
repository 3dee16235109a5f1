package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mcdev12/sudoku/go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Probe reports a problem with one dependency, or nil when it is fine.
type Probe func(ctx context.Context) error

type Status struct {
	Healthy bool              `json:"healthy"`
	Checks  map[string]string `json:"checks"`
	Errors  []string          `json:"errors"`
}

// Checker runs named probes. Details are extra values reported as-is.
type Checker struct {
	probes  map[string]Probe
	details map[string]func() any
	timeout time.Duration
}

func NewChecker() *Checker {
	return &Checker{
		probes:  make(map[string]Probe),
		details: make(map[string]func() any),
		timeout: 5 * time.Second,
	}
}

// AddProbe registers a probe under name.
func (c *Checker) AddProbe(name string, probe Probe) *Checker {
	c.probes[name] = probe
	return c
}

// AddDetail registers a value reported alongside the checks.
func (c *Checker) AddDetail(name string, value func() any) *Checker {
	c.details[name] = value
	return c
}

func (c *Checker) Check(ctx context.Context) Status {
	status := Status{
		Healthy: true,
		Checks:  make(map[string]string, len(c.probes)),
		Errors:  []string{},
	}

	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.probes[name](ctx); err != nil {
			status.Healthy = false
			status.Checks[name] = "down"
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		status.Checks[name] = "ok"
	}
	return status
}

func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()

	status := c.Check(ctx)

	response := map[string]any{
		"healthy": status.Healthy,
		"checks":  status.Checks,
		"errors":  status.Errors,
	}
	for name, value := range c.details {
		response[name] = value()
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to write health response")
	}
}

// StorageProbe reads key from kv. A missing key still counts as reachable.
func StorageProbe(kv storage.KV, key string) Probe {
	return func(ctx context.Context) error {
		if _, err := kv.Get(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return nil
	}
}

// ConnectedProbe fails when connected reports false.
func ConnectedProbe(connected func() bool) Probe {
	return func(ctx context.Context) error {
		if !connected() {
			return errors.New("disconnected")
		}
		return nil
	}
}
