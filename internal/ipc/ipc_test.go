package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/guard"
	"github.com/expanse-sim/expanse-engine/internal/sim"
	"github.com/expanse-sim/expanse-engine/internal/store"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := store.NewDB(dbPath)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	p := config.Default().Physics
	p.Probe.BaseKmS = 30
	s, err := sim.New(catalog.Default(), p, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}

	return &Handler{
		Loop:    sim.NewLoop(s, time.Hour, 1, nil),
		Journal: store.NewJournal(db, 5),
		Guard:   guard.NewGuard(guard.GuardConfig{RatePerSecond: 1000, Burst: 1000}),
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// seedEarth gives earth n probes by running one day of production.
func seedEarth(t *testing.T, h *Handler, n float64) {
	t.Helper()
	err := h.Loop.Do(func(s *sim.Simulation) error { return s.SetProbeProduction("sol", "earth", n) })
	if err != nil {
		t.Fatalf("SetProbeProduction: %v", err)
	}
	if _, err := h.Loop.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	h.Loop.Do(func(s *sim.Simulation) error { return s.SetProbeProduction("sol", "earth", 0) })
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestGetGalaxy(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodGet, "/api/v1/galaxy", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got GalaxySummary
	json.NewDecoder(w.Body).Decode(&got)
	if got.HomeSystem != "sol" || got.Completion.Aggregate.ColonizedSystems != 1 {
		t.Errorf("summary = %+v", got)
	}
}

func TestGetSystem_NotFound(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodGet, "/api/v1/systems/vega", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestColonizeAndActivate(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()

	w := do(t, routes, http.MethodPut, "/api/v1/active-system", `{"system_id":"tau_ceti"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("uncolonized activate: expected 409, got %d", w.Code)
	}

	w = do(t, routes, http.MethodPost, "/api/v1/systems/tau_ceti/colonize", `{"seed_probes":5}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("colonize: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, routes, http.MethodPost, "/api/v1/systems/tau_ceti/colonize", "")
	if w.Code != http.StatusOK {
		t.Fatalf("re-colonize: expected 200, got %d", w.Code)
	}

	w = do(t, routes, http.MethodPut, "/api/v1/active-system", `{"system_id":"tau_ceti"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("activate: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, routes, http.MethodGet, "/api/v1/systems/tau_ceti", "")
	var view sim.SystemView
	json.NewDecoder(w.Body).Decode(&view)
	if len(view.Zones) == 0 {
		t.Error("activated system should have generated zones")
	}
}

func TestZoneFigures(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodGet, "/api/v1/zones/earth/figures", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var view sim.ZoneView
	json.NewDecoder(w.Body).Decode(&view)
	if view.SystemID != "sol" || len(view.Destinations) != 10 {
		t.Errorf("view = %s with %d destinations", view.SystemID, len(view.Destinations))
	}

	w = do(t, h.Routes(), http.MethodGet, "/api/v1/zones/pluto/figures", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown zone: expected 404, got %d", w.Code)
	}
}

func TestCreateTransfer_Lifecycle(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()
	seedEarth(t, h, 100)

	body := `{"from_zone_id":"earth","to_zone_id":"mars","resource_kind":"probe","mode":"one_time","quantity":40}`
	w := do(t, routes, http.MethodPost, "/api/v1/transfers", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var inst domain.TransferInstance
	json.NewDecoder(w.Body).Decode(&inst)
	if inst.ID == "" || inst.ArrivalDay <= inst.DepartureDay {
		t.Fatalf("instance = %+v", inst)
	}

	w = do(t, routes, http.MethodGet, "/api/v1/transfers", "")
	var list []json.RawMessage
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(list))
	}

	w = do(t, routes, http.MethodPost, "/api/v1/transfers/"+inst.ID+"/pause", "")
	if w.Code != http.StatusConflict {
		t.Errorf("pausing one-time: expected 409, got %d", w.Code)
	}

	w = do(t, routes, http.MethodDelete, "/api/v1/transfers/"+inst.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("cancel: expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, routes, http.MethodDelete, "/api/v1/transfers/"+inst.ID, "")
	if w.Code != http.StatusConflict {
		t.Errorf("second cancel: expected 409, got %d", w.Code)
	}
}

func TestCreateTransfer_ShortfallBody(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()
	do(t, routes, http.MethodPost, "/api/v1/zones/earth/build", `{"kind":"mass_driver","count":1}`)
	do(t, routes, http.MethodPost, "/api/v1/zones/earth/mine", `{"kg":1000}`)

	body := `{"from_zone_id":"earth","to_zone_id":"jupiter","resource_kind":"metal","mode":"one_time","quantity":10}`
	w := do(t, routes, http.MethodPost, "/api/v1/transfers", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
	var got ShortfallError
	json.NewDecoder(w.Body).Decode(&got)
	if got.Code != domain.ErrCapacityExceeded.Code {
		t.Errorf("code = %d, want %d", got.Code, domain.ErrCapacityExceeded.Code)
	}
	if got.ShortfallKmS <= 0 || got.RequiredKmS <= got.AvailableKmS {
		t.Errorf("shortfall body = %+v", got)
	}
}

func TestCreateTransfer_MissingLauncher(t *testing.T) {
	h := newTestHandler(t)
	body := `{"from_zone_id":"earth","to_zone_id":"mars","resource_kind":"metal","mode":"one_time","quantity":10}`
	w := do(t, h.Routes(), http.MethodPost, "/api/v1/transfers", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var got ShortfallError
	json.NewDecoder(w.Body).Decode(&got)
	if !got.MissingLauncher || got.Code != domain.ErrNoLauncher.Code {
		t.Errorf("body = %+v", got)
	}
}

func TestCreateTransfer_InvalidBody(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodPost, "/api/v1/transfers", "not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestZoneCommand_Unknown(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodPost, "/api/v1/zones/earth/terraform", `{}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSetSkills(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodPut, "/api/v1/skills", `{"propulsion":3}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	var level float64
	h.Loop.Do(func(s *sim.Simulation) error { level = s.Skills()["propulsion"]; return nil })
	if level != 3 {
		t.Errorf("propulsion = %f, want 3", level)
	}

	w = do(t, h.Routes(), http.MethodPut, "/api/v1/skills", `{"propulsion":-1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative skill: expected 400, got %d", w.Code)
	}
}

func TestLaunchInterstellar(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()

	w := do(t, routes, http.MethodPost, "/api/v1/interstellar", `{"from_system_id":"sol","to_system_id":"wolf_359","probe_count":1}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("no probes: expected 422, got %d", w.Code)
	}

	seedEarth(t, h, 3)
	w = do(t, routes, http.MethodPost, "/api/v1/interstellar", `{"from_system_id":"sol","to_system_id":"wolf_359","probe_count":2}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var tr domain.InterstellarTransfer
	json.NewDecoder(w.Body).Decode(&tr)
	if tr.ToSystemID != "wolf_359" || tr.Status != domain.InterstellarTraveling {
		t.Errorf("transfer = %+v", tr)
	}
}

func TestSaveAndListEvents(t *testing.T) {
	h := newTestHandler(t)
	routes := h.Routes()

	w := do(t, routes, http.MethodPost, "/api/v1/save", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("save: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var res SaveResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.ID == 0 || len(res.Checksum) != 64 {
		t.Errorf("save result = %+v", res)
	}
	st, err := h.Journal.LoadLatest(context.Background(), "sol")
	if err != nil || st == nil {
		t.Fatalf("LoadLatest = %v, %v", st, err)
	}

	if _, err := h.Journal.Record(context.Background(), sim.Events(sim.Changes{Day: 3, Colonized: []string{"tau_ceti"}})); err != nil {
		t.Fatalf("Record: %v", err)
	}
	w = do(t, routes, http.MethodGet, "/api/v1/events?since_seq=0", "")
	var events []domain.SimEvent
	json.NewDecoder(w.Body).Decode(&events)
	if len(events) != 1 || events[0].EventType != sim.EventSystemColonized {
		t.Errorf("events = %+v", events)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t)
	h.Guard = guard.NewGuard(guard.GuardConfig{RatePerSecond: 0.001, Burst: 2})
	routes := h.Routes()

	for i := 0; i < 2; i++ {
		if w := do(t, routes, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, w.Code)
		}
	}
	w := do(t, routes, http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t)
	w := do(t, h.Routes(), http.MethodOptions, "/api/v1/transfers", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestFormatListenURL(t *testing.T) {
	cases := map[string]string{
		":9810":          "http://localhost:9810",
		"0.0.0.0:80":     "http://localhost:80",
		"127.0.0.1:9810": "http://127.0.0.1:9810",
	}
	for in, want := range cases {
		if got := FormatListenURL(in); got != want {
			t.Errorf("FormatListenURL(%q) = %q, want %q", in, got, want)
		}
	}
}
