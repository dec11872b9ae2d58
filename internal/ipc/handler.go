// Package ipc provides the HTTP API for the Expanse simulation engine.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/guard"
	"github.com/expanse-sim/expanse-engine/internal/sim"
	"github.com/expanse-sim/expanse-engine/internal/store"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Loop    *sim.Loop
	Journal *store.Journal
	Guard   *guard.Guard
}

// ColonizeRequest is the body for POST /api/v1/systems/{id}/colonize.
type ColonizeRequest struct {
	SeedProbes float64 `json:"seed_probes"`
}

// ActiveSystemRequest is the body for PUT /api/v1/active-system.
type ActiveSystemRequest struct {
	SystemID string `json:"system_id"`
}

// InterstellarRequest is the body for POST /api/v1/interstellar.
type InterstellarRequest struct {
	FromSystemID string  `json:"from_system_id"`
	ToSystemID   string  `json:"to_system_id"`
	ProbeCount   float64 `json:"probe_count"`
}

// ZoneCommandRequest is the body of the zone commands: mine, build,
// production and dyson.
type ZoneCommandRequest struct {
	SystemID string  `json:"system_id"`
	Kg       float64 `json:"kg,omitempty"`
	Kind     string  `json:"kind,omitempty"`
	Count    int     `json:"count,omitempty"`
	PerDay   float64 `json:"per_day,omitempty"`
}

// GalaxySummary is the response for GET /api/v1/galaxy.
type GalaxySummary struct {
	Day          float64                       `json:"day"`
	ActiveSystem string                        `json:"active_system"`
	HomeSystem   string                        `json:"home_system"`
	Completion   sim.Completion                `json:"completion"`
	Interstellar []domain.InterstellarTransfer `json:"interstellar"`
}

// SaveResult is the response for POST /api/v1/save.
type SaveResult struct {
	ID       int64   `json:"id"`
	SimDay   float64 `json:"sim_day"`
	Checksum string  `json:"checksum"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ShortfallError is the 422 body of a rejected, unreachable transfer.
type ShortfallError struct {
	APIError
	RequiredKmS     float64 `json:"required_km_s"`
	AvailableKmS    float64 `json:"available_km_s"`
	ShortfallKmS    float64 `json:"shortfall_km_s"`
	EscapeKmS       float64 `json:"escape_km_s"`
	HohmannKmS      float64 `json:"hohmann_km_s"`
	ProbeKmS        float64 `json:"probe_km_s"`
	MassDriverKmS   float64 `json:"mass_driver_km_s"`
	MissingLauncher bool    `json:"missing_launcher"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	var day float64
	h.Loop.Do(func(s *sim.Simulation) error {
		day = s.Now()
		return nil
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "day": day})
}

// GetGalaxy handles GET /api/v1/galaxy.
func (h *Handler) GetGalaxy(w http.ResponseWriter, r *http.Request) {
	var out GalaxySummary
	h.Loop.Do(func(s *sim.Simulation) error {
		out = GalaxySummary{
			Day:          s.Now(),
			ActiveSystem: s.ActiveSystem(),
			HomeSystem:   s.HomeSystem(),
			Completion:   s.Completion(),
			Interstellar: s.Interstellar(),
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

// ListSystems handles GET /api/v1/systems.
func (h *Handler) ListSystems(w http.ResponseWriter, r *http.Request) {
	var out []domain.StarSystemRecord
	h.Loop.Do(func(s *sim.Simulation) error {
		out = s.Systems()
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

// GetSystem handles GET /api/v1/systems/{id}.
func (h *Handler) GetSystem(w http.ResponseWriter, r *http.Request) {
	var out sim.SystemView
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		out, err = s.System(r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ColonizeSystem handles POST /api/v1/systems/{id}/colonize.
func (h *Handler) ColonizeSystem(w http.ResponseWriter, r *http.Request) {
	var req ColonizeRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	var newly bool
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		newly, err = s.ColonizeSystem(r.PathValue("id"), req.SeedProbes)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if newly {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"system_id": r.PathValue("id"), "newly_colonized": newly})
}

// SetActiveSystem handles PUT /api/v1/active-system.
func (h *Handler) SetActiveSystem(w http.ResponseWriter, r *http.Request) {
	var req ActiveSystemRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SystemID == "" {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "system_id is required"})
		return
	}
	if err := h.Loop.Do(func(s *sim.Simulation) error { return s.SetActiveSystem(req.SystemID) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ZoneFigures handles GET /api/v1/zones/{id}/figures?system=ID.
func (h *Handler) ZoneFigures(w http.ResponseWriter, r *http.Request) {
	var out sim.ZoneView
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		out, err = s.ZoneFigures(r.URL.Query().Get("system"), r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ListTransfers handles GET /api/v1/transfers.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	type item struct {
		domain.TransferInstance
		Fraction float64 `json:"fraction"`
	}
	out := []item{}
	h.Loop.Do(func(s *sim.Simulation) error {
		frac := map[string]float64{}
		for _, p := range s.TransferProgress() {
			frac[p.ID] = p.Fraction
		}
		for _, t := range s.Transfers() {
			out = append(out, item{TransferInstance: t, Fraction: frac[t.ID]})
		}
		return nil
	})
	writeJSON(w, http.StatusOK, out)
}

// CreateTransfer handles POST /api/v1/transfers.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var order domain.TransferOrder
	if !decode(w, r, &order) {
		return
	}
	var inst domain.TransferInstance
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		inst, err = s.CreateTransfer(order)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// GetTransfer handles GET /api/v1/transfers/{id}.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	var inst domain.TransferInstance
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		inst, err = s.Transfer(r.PathValue("id"))
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// CancelTransfer handles DELETE /api/v1/transfers/{id}.
func (h *Handler) CancelTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferCommand(w, r, (*sim.Simulation).CancelTransfer)
}

// PauseTransfer handles POST /api/v1/transfers/{id}/pause.
func (h *Handler) PauseTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferCommand(w, r, (*sim.Simulation).PauseTransfer)
}

// ResumeTransfer handles POST /api/v1/transfers/{id}/resume.
func (h *Handler) ResumeTransfer(w http.ResponseWriter, r *http.Request) {
	h.transferCommand(w, r, (*sim.Simulation).ResumeTransfer)
}

func (h *Handler) transferCommand(w http.ResponseWriter, r *http.Request, cmd func(*sim.Simulation, string) error) {
	id := r.PathValue("id")
	if err := h.Loop.Do(func(s *sim.Simulation) error { return cmd(s, id) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LaunchInterstellar handles POST /api/v1/interstellar.
func (h *Handler) LaunchInterstellar(w http.ResponseWriter, r *http.Request) {
	var req InterstellarRequest
	if !decode(w, r, &req) {
		return
	}
	var t domain.InterstellarTransfer
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		t, err = s.LaunchInterstellar(req.FromSystemID, req.ToSystemID, req.ProbeCount)
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// SetSkills handles PUT /api/v1/skills.
func (h *Handler) SetSkills(w http.ResponseWriter, r *http.Request) {
	var skills domain.Skills
	if !decode(w, r, &skills) {
		return
	}
	if err := h.Loop.Do(func(s *sim.Simulation) error { return s.SetSkills(skills) }); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ZoneCommand handles POST /api/v1/zones/{id}/{command} for mine, build,
// production and dyson.
func (h *Handler) ZoneCommand(w http.ResponseWriter, r *http.Request) {
	var req ZoneCommandRequest
	if !decode(w, r, &req) {
		return
	}
	zoneID := r.PathValue("id")
	var applied float64
	err := h.Loop.Do(func(s *sim.Simulation) (err error) {
		switch r.PathValue("command") {
		case "mine":
			applied, err = s.MineZone(req.SystemID, zoneID, req.Kg)
		case "build":
			err = s.BuildStructure(req.SystemID, zoneID, req.Kind, req.Count)
		case "production":
			err = s.SetProbeProduction(req.SystemID, zoneID, req.PerDay)
		case "dyson":
			applied, err = s.ContributeDyson(req.SystemID, zoneID, req.Kg)
		default:
			err = errUnknownCommand
		}
		return err
	})
	if errors.Is(err, errUnknownCommand) {
		writeJSON(w, http.StatusNotFound, APIError{Code: 404, Message: fmt.Sprintf("unknown zone command %q", r.PathValue("command"))})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"applied_kg": applied})
}

var errUnknownCommand = errors.New("unknown zone command")

// Save handles POST /api/v1/save.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeJSON(w, http.StatusServiceUnavailable, APIError{Code: 503, Message: "persistence is not configured"})
		return
	}
	rec, err := h.Journal.SaveSnapshot(r.Context(), h.Loop.Export())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SaveResult{ID: rec.ID, SimDay: rec.SimDay, Checksum: rec.Checksum})
}

// ListEvents handles GET /api/v1/events?since_seq=N&limit=M.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		writeJSON(w, http.StatusOK, []domain.SimEvent{})
		return
	}
	sinceSeq := queryInt(r, "since_seq")
	events, err := h.Journal.Events(r.Context(), sinceSeq, int(queryInt(r, "limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []domain.SimEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// StreamEvents handles GET /api/v1/events/stream (SSE).
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.Journal == nil {
		writeJSON(w, http.StatusInternalServerError, APIError{Code: 500, Message: "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	lastSeq := queryInt(r, "since_seq")
	send := func() error {
		events, err := h.Journal.Events(r.Context(), lastSeq, 0)
		if err != nil {
			return err
		}
		for _, ev := range events {
			writeSSEEvent(w, flusher, ev)
			lastSeq = ev.SeqNo
		}
		return nil
	}
	if err := send(); err != nil {
		writeSSEError(w, flusher, err)
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		}
	}
}

func queryInt(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	return decode(w, r, v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var capErr *domain.CapacityError
	if errors.As(err, &capErr) {
		code := domain.ErrCapacityExceeded.Code
		if capErr.MissingLauncher {
			code = domain.ErrNoLauncher.Code
		}
		writeJSON(w, http.StatusUnprocessableEntity, ShortfallError{
			APIError:        APIError{Code: code, Message: capErr.Error()},
			RequiredKmS:     capErr.RequiredKmS,
			AvailableKmS:    capErr.AvailableKmS,
			ShortfallKmS:    capErr.ShortfallKmS(),
			EscapeKmS:       capErr.EscapeKmS,
			HohmannKmS:      capErr.HohmannKmS,
			ProbeKmS:        capErr.ProbeKmS,
			MassDriverKmS:   capErr.MassDriverKmS,
			MissingLauncher: capErr.MissingLauncher,
		})
		return
	}

	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := http.StatusInternalServerError
		switch {
		case engErr.Code == domain.ErrRateLimitExceeded.Code:
			status = http.StatusTooManyRequests
		case engErr.Code == domain.ErrInvalidOrder.Code:
			status = http.StatusBadRequest
		case domain.IsConfigError(engErr):
			status = http.StatusNotFound
		case domain.IsCapacityError(engErr):
			status = http.StatusUnprocessableEntity
		case domain.IsStateError(engErr):
			status = http.StatusConflict
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}

func writeSSEEvent(w http.ResponseWriter, f http.Flusher, ev domain.SimEvent) {
	data, _ := json.Marshal(ev)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.SeqNo, ev.EventType, data)
	f.Flush()
}

func writeSSEError(w http.ResponseWriter, f http.Flusher, err error) {
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
	f.Flush()
}
