package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mcdev12/sudoku/go/internal/models"
	"github.com/mcdev12/sudoku/go/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionService is the command and query surface of a puzzle session.
type SessionService interface {
	SetDifficulty(ctx context.Context, level models.Difficulty) session.State
	SetReady(ctx context.Context, ready bool, puzzleIdentity string) session.State
	SetValid(ctx context.Context, valid bool) session.State
	StartTimer(ctx context.Context) session.State
	StopTimer(ctx context.Context) session.State
	Reset(ctx context.Context) session.State
	SaveRecord(ctx context.Context) session.State
	State() session.State
	Levels() []models.Level
	Records() []models.Record
	RecordsByLevel(level models.Difficulty) []models.Record
}

// Handler exposes a session over HTTP for the UI host.
type Handler struct {
	session SessionService
	hub     *Hub
}

// NewHandler creates a handler. hub may be nil when no event stream is served.
func NewHandler(svc SessionService, hub *Hub) *Handler {
	return &Handler{
		session: svc,
		hub:     hub,
	}
}

type difficultyRequest struct {
	Level *int `json:"level"`
}

type readyRequest struct {
	Ready          *bool  `json:"ready"`
	PuzzleIdentity string `json:"puzzle_identity"`
}

type validRequest struct {
	Valid *bool `json:"valid"`
}

// RecordsResponse is returned by GET /api/records.
type RecordsResponse struct {
	Records []models.Record `json:"records"`
	Count   int             `json:"count"`
}

// RegisterRoutes registers session routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", h.handleState)
	mux.HandleFunc("GET /api/levels", h.handleLevels)
	mux.HandleFunc("GET /api/records", h.handleRecords)
	mux.HandleFunc("POST /api/difficulty", h.handleSetDifficulty)
	mux.HandleFunc("POST /api/ready", h.handleSetReady)
	mux.HandleFunc("POST /api/valid", h.handleSetValid)
	mux.HandleFunc("POST /api/timer/start", h.handleStartTimer)
	mux.HandleFunc("POST /api/timer/stop", h.handleStopTimer)
	mux.HandleFunc("POST /api/reset", h.handleReset)
	mux.HandleFunc("POST /api/records/save", h.handleSaveRecord)
	if h.hub != nil {
		mux.HandleFunc("GET /ws/session", h.handleWebSocket)
	}
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.State())
}

func (h *Handler) handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Levels())
}

func (h *Handler) handleRecords(w http.ResponseWriter, r *http.Request) {
	var records []models.Record
	if raw := r.URL.Query().Get("level"); raw != "" {
		level, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "level must be an integer")
			return
		}
		records = h.session.RecordsByLevel(models.Difficulty(level))
	} else {
		records = h.session.Records()
	}
	writeJSON(w, http.StatusOK, RecordsResponse{Records: records, Count: len(records)})
}

func (h *Handler) handleSetDifficulty(w http.ResponseWriter, r *http.Request) {
	var req difficultyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Level == nil {
		writeError(w, http.StatusBadRequest, "level is required")
		return
	}
	writeJSON(w, http.StatusOK, h.session.SetDifficulty(commandContext(r), models.Difficulty(*req.Level)))
}

func (h *Handler) handleSetReady(w http.ResponseWriter, r *http.Request) {
	var req readyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Ready == nil {
		writeError(w, http.StatusBadRequest, "ready is required")
		return
	}
	writeJSON(w, http.StatusOK, h.session.SetReady(commandContext(r), *req.Ready, req.PuzzleIdentity))
}

func (h *Handler) handleSetValid(w http.ResponseWriter, r *http.Request) {
	var req validRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Valid == nil {
		writeError(w, http.StatusBadRequest, "valid is required")
		return
	}
	writeJSON(w, http.StatusOK, h.session.SetValid(commandContext(r), *req.Valid))
}

func (h *Handler) handleStartTimer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.StartTimer(commandContext(r)))
}

func (h *Handler) handleStopTimer(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.StopTimer(commandContext(r)))
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Reset(commandContext(r)))
}

func (h *Handler) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.SaveRecord(commandContext(r)))
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade writes its own HTTP error response on failure.
	if err := h.hub.Upgrade(w, r); err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
	}
}

// commandContext keeps request values but drops cancellation, so a client
// that disconnects mid-command cannot abort the durable write.
func commandContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
