package galaxy

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/domain"
)

func newTestGalaxy(t *testing.T) (*Galaxy, *bytes.Buffer) {
	t.Helper()
	cat := catalog.Default()
	reg, err := cat.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	var buf bytes.Buffer
	g, err := New(cat.Stars, cat.HomeSystemID, reg, config.Default().Physics, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, &buf
}

func TestNew_HomeColonizedOthersDiscovered(t *testing.T) {
	g, _ := newTestGalaxy(t)

	for _, rec := range g.Records() {
		want := domain.SystemDiscovered
		if rec.ID == "sol" {
			want = domain.SystemColonized
		}
		if rec.Status != want {
			t.Errorf("%s status = %s, want %s", rec.ID, rec.Status, want)
		}
	}
	home, _ := g.System("sol")
	if !home.Generated() {
		t.Error("home system should be generated")
	}
	earth, err := home.Runtime("earth")
	if err != nil {
		t.Fatalf("Runtime earth: %v", err)
	}
	if earth.MassRemainingKg != 5.972e24 {
		t.Errorf("earth mass = %g, want full endowment", earth.MassRemainingKg)
	}
}

func TestCompletion_TenStars(t *testing.T) {
	g, _ := newTestGalaxy(t)

	if got := g.CompletionPercentage(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("completion = %f, want 0.1", got)
	}
	if g.Unlocked() {
		t.Error("unlocked with one system colonized")
	}

	ids := g.IDs()
	colonized := 1
	for _, id := range ids {
		if id == "sol" {
			continue
		}
		if _, err := g.Colonize(id, 1); err != nil {
			t.Fatalf("Colonize %s: %v", id, err)
		}
		colonized++
		if colonized < len(ids) && g.Unlocked() {
			t.Errorf("unlocked at %d/%d", colonized, len(ids))
		}
	}
	if !g.Unlocked() {
		t.Error("not unlocked with every system colonized")
	}
}

func TestCompletion_UnlockAtNinetyNinePercent(t *testing.T) {
	stars := make([]domain.Star, 100)
	for i := range stars {
		stars[i] = domain.Star{ID: fmt.Sprintf("s%03d", i), SpectralClass: "G", LuminositySolar: 1, MassSolar: 1}
	}
	reg, _ := catalog.Default().Registry()
	g, err := New(stars, "s000", reg, config.Default().Physics, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 1; i < 98; i++ {
		g.Colonize(stars[i].ID, 0)
	}
	if g.Unlocked() {
		t.Errorf("unlocked at %.2f", g.CompletionPercentage())
	}
	g.Colonize(stars[98].ID, 0)
	if got := g.CompletionPercentage(); math.Abs(got-0.99) > 1e-12 {
		t.Fatalf("completion = %f, want 0.99", got)
	}
	if !g.Unlocked() {
		t.Error("not unlocked at 0.99 with one system remaining")
	}
}

func TestColonize_Idempotent(t *testing.T) {
	g, _ := newTestGalaxy(t)

	newly, err := g.Colonize("tau_ceti", 3)
	if err != nil || !newly {
		t.Fatalf("first Colonize = %v, %v", newly, err)
	}
	newly, err = g.Colonize("tau_ceti", 2)
	if err != nil || newly {
		t.Fatalf("second Colonize = %v, %v, want merge", newly, err)
	}
	rec, _ := g.Record("tau_ceti")
	if rec.PendingProbes != 5 {
		t.Errorf("pending probes = %f, want 5", rec.PendingProbes)
	}

	if _, err := g.Colonize("vega", 1); !errors.Is(err, domain.ErrSystemNotFound) {
		t.Errorf("unknown system: expected ErrSystemNotFound, got %v", err)
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	g, _ := newTestGalaxy(t)

	if _, err := g.Generate("tau_ceti"); !errors.Is(err, domain.ErrSystemNotColonized) {
		t.Fatalf("uncolonized: expected ErrSystemNotColonized, got %v", err)
	}

	g.Colonize("tau_ceti", 7)
	s, err := g.Generate("tau_ceti")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	first := s.Zones()
	if len(first) != 8 {
		t.Fatalf("zones = %d, want 8 for class G", len(first))
	}
	if s.Record.PendingProbes != 0 {
		t.Errorf("pending = %f after generation, want 0", s.Record.PendingProbes)
	}
	seed, _ := s.Runtime(first[0].ID)
	if seed.ProbeCount != 7 {
		t.Errorf("first zone probes = %f, want 7", seed.ProbeCount)
	}

	// Mine a zone, then revisit.
	mined, _ := s.Runtime(first[3].ID)
	mined.MassRemainingKg /= 2
	want := mined.MassRemainingKg

	again, err := g.Generate("tau_ceti")
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !reflect.DeepEqual(first, again.Zones()) {
		t.Error("second generation changed the zone set")
	}
	rt, _ := again.Runtime(first[3].ID)
	if rt.MassRemainingKg != want {
		t.Errorf("mass remaining reset to %g, want %g", rt.MassRemainingKg, want)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	a, _ := newTestGalaxy(t)
	b, _ := newTestGalaxy(t)
	for _, g := range []*Galaxy{a, b} {
		g.Colonize("epsilon_eridani", 0)
	}
	sa, _ := a.Generate("epsilon_eridani")
	sb, _ := b.Generate("epsilon_eridani")
	if !reflect.DeepEqual(sa.Zones(), sb.Zones()) {
		t.Error("generation differs between galaxies")
	}
}

func TestGenerate_RadiiIncreaseAndScale(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("sirius_a", 0)
	g.Colonize("tau_ceti", 0)
	bright, _ := g.Generate("sirius_a")
	dim, _ := g.Generate("tau_ceti")

	for _, s := range []*System{bright, dim} {
		zones := s.Zones()
		if !zones[0].IsDysonZone {
			t.Errorf("%s: innermost zone is not the Dyson zone", s.Record.ID)
		}
		for i := 1; i < len(zones); i++ {
			if zones[i].OrbitalRadiusAU <= zones[i-1].OrbitalRadiusAU {
				t.Errorf("%s: radius %d not increasing", s.Record.ID, i)
			}
		}
	}
	bz, dz := bright.Zones(), dim.Zones()
	if bz[len(bz)-1].OrbitalRadiusAU <= dz[len(dz)-1].OrbitalRadiusAU {
		t.Error("brighter star should push zones outward")
	}
	if bright.Record.Dyson.TargetMassKg <= dim.Record.Dyson.TargetMassKg {
		t.Error("brighter star should need a heavier Dyson sphere")
	}
}

func TestGenerate_BeltMultiplier(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("procyon_a", 0)
	s, _ := g.Generate("procyon_a")

	p := config.Default().Physics
	for _, z := range s.Zones() {
		if z.Kind != domain.ZoneAsteroidBelt {
			continue
		}
		want := p.ZoneMassPerSolarMassKg * 1.5 * 0.003 * p.AsteroidBeltMultiplier
		if math.Abs(z.TotalMassKg-want)/want > 1e-9 {
			t.Errorf("belt mass = %g, want %g", z.TotalMassKg, want)
		}
		return
	}
	t.Fatal("no belt zone generated")
}

func TestGenerate_UnknownClassFallsBack(t *testing.T) {
	cat := catalog.Default()
	reg, err := cat.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	stars := append(cat.Stars, domain.Star{
		ID: "oddball", Name: "Oddball", PositionLy: [3]float64{3, 3, 3},
		SpectralClass: "Q9", LuminositySolar: 1, MassSolar: 1,
	})
	var buf bytes.Buffer
	g, err := New(stars, cat.HomeSystemID, reg, config.Default().Physics, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.Colonize("oddball", 0)

	s, err := g.Generate("oddball")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Zones()) != 8 {
		t.Errorf("zones = %d, want default 8", len(s.Zones()))
	}
	if !strings.Contains(buf.String(), "WARN") {
		t.Errorf("expected a warning in the log, got %q", buf.String())
	}
}

func TestGenerate_DustCloudNoWarning(t *testing.T) {
	g, buf := newTestGalaxy(t)
	g.Colonize("local_fluff", 0)

	s, err := g.Generate("local_fluff")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(s.Zones()) != 4 {
		t.Errorf("zones = %d, want 4", len(s.Zones()))
	}
	if buf.Len() != 0 {
		t.Errorf("unexpected log output %q", buf.String())
	}
}

func TestGenerate_DustCloudMissingFromTableNoWarning(t *testing.T) {
	cat := catalog.Default()
	reg, err := cat.Registry()
	if err != nil {
		t.Fatalf("Registry: %v", err)
	}
	p := config.Default().Physics
	p.ZoneCountByClass = map[string]int{"G": 8}
	var buf bytes.Buffer
	g, err := New(cat.Stars, cat.HomeSystemID, reg, p, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g.Colonize("local_fluff", 0)
	if _, err := g.Generate("local_fluff"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if strings.Contains(buf.String(), "WARN") {
		t.Errorf("dust cloud should not warn, got %q", buf.String())
	}
}

func TestInterstellar_ArrivalColonizes(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("sol", 10)

	tr, err := g.Launch("sol", "alpha_centauri_a", 4, 0)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if tr.ArrivalDay <= tr.DepartureDay {
		t.Fatalf("arrival %f not after departure", tr.ArrivalDay)
	}
	sol, _ := g.System("sol")
	if sol.Probes() != 6 {
		t.Errorf("sol probes = %f, want 6", sol.Probes())
	}

	rep := g.Advance(tr.ArrivalDay - 1)
	if len(rep.Arrived) != 0 {
		t.Fatal("transfer arrived early")
	}
	rep = g.Advance(tr.ArrivalDay)
	if len(rep.Arrived) != 1 || len(rep.Colonized) != 1 || rep.Colonized[0] != "alpha_centauri_a" {
		t.Fatalf("report = %+v", rep)
	}
	rec, _ := g.Record("alpha_centauri_a")
	if rec.Status != domain.SystemColonized || rec.PendingProbes != 4 {
		t.Errorf("alpha = %s with %f pending", rec.Status, rec.PendingProbes)
	}
	if len(g.Interstellar()) != 0 {
		t.Error("arrived transfer still listed")
	}

	// A second arrival merges.
	tr, _ = g.Launch("sol", "alpha_centauri_a", 2, 10)
	rep = g.Advance(tr.ArrivalDay)
	if len(rep.Colonized) != 0 {
		t.Error("already colonized system reported as newly colonized")
	}
	rec, _ = g.Record("alpha_centauri_a")
	if rec.PendingProbes != 6 {
		t.Errorf("pending = %f, want 6", rec.PendingProbes)
	}
}

func TestInterstellar_Invalid(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("sol", 1)

	if _, err := g.Launch("sol", "wolf_359", 5, 0); !errors.Is(err, domain.ErrInsufficientResources) {
		t.Errorf("expected ErrInsufficientResources, got %v", err)
	}
	if _, err := g.Launch("wolf_359", "sol", 1, 0); !errors.Is(err, domain.ErrSystemNotColonized) {
		t.Errorf("expected ErrSystemNotColonized, got %v", err)
	}
	if _, err := g.Launch("sol", "sol", 1, 0); !errors.Is(err, domain.ErrInvalidOrder) {
		t.Errorf("expected ErrInvalidOrder, got %v", err)
	}
}

func TestAggregate_DysonAndProbes(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("sol", 3)
	g.Colonize("wolf_359", 2)
	g.Recompute()

	agg := g.Aggregate()
	if agg.ColonizedSystems != 2 || agg.TotalProbes != 5 {
		t.Errorf("aggregate = %+v, want 2 systems and 5 probes", agg)
	}

	sol, _ := g.System("sol")
	earth, _ := sol.Runtime("earth")
	target := sol.Record.Dyson.TargetMassKg
	earth.StoredMetalKg = target * 2

	applied, err := g.ContributeDyson("sol", "earth", target*2)
	if err != nil {
		t.Fatalf("ContributeDyson: %v", err)
	}
	if applied != target {
		t.Errorf("applied = %g, want capped at %g", applied, target)
	}
	if !g.Recompute() {
		t.Error("Recompute should report a change")
	}
	agg = g.Aggregate()
	if agg.CompleteDysonSystems != 1 || agg.CompleteDysonByClass["G"] != 1 {
		t.Errorf("complete Dyson = %d / %v", agg.CompleteDysonSystems, agg.CompleteDysonByClass)
	}
	if agg.DysonMassByClass["G"] != target {
		t.Errorf("Dyson mass by class = %v", agg.DysonMassByClass)
	}
	if g.Recompute() {
		t.Error("Recompute without changes should report none")
	}
}

func TestExportRestore(t *testing.T) {
	g, _ := newTestGalaxy(t)
	g.Colonize("tau_ceti", 4)
	g.Generate("tau_ceti")
	g.Colonize("sol", 10)
	g.Launch("sol", "wolf_359", 3, 0)

	states := g.Export()
	transfers := g.Interstellar()

	fresh, _ := newTestGalaxy(t)
	if err := fresh.Restore(states, transfers); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if !reflect.DeepEqual(g.Export(), fresh.Export()) {
		t.Error("restored state differs")
	}
	if len(fresh.Interstellar()) != 1 {
		t.Errorf("interstellar = %d, want 1", len(fresh.Interstellar()))
	}
	if !reflect.DeepEqual(g.Aggregate(), fresh.Aggregate()) {
		t.Errorf("aggregate %+v != %+v", fresh.Aggregate(), g.Aggregate())
	}
}

func TestRestore_InvalidBundleLeavesGalaxyUntouched(t *testing.T) {
	g, _ := newTestGalaxy(t)
	before := g.Export()

	tau, _ := g.System("tau_ceti")
	wolf, _ := g.System("wolf_359")
	good := SystemState{Record: tau.Record}
	good.Record.Status = domain.SystemColonized
	bad := SystemState{
		Record: wolf.Record,
		Zones: []domain.OrbitalZone{
			{ID: "inner", OrbitalRadiusAU: 0.5, TotalMassKg: 1e22},
			{ID: "inner", OrbitalRadiusAU: 0.9, TotalMassKg: 1e22},
		},
	}
	bad.Record.Status = domain.SystemColonized

	if err := g.Restore([]SystemState{good, bad}, nil); err == nil {
		t.Fatal("expected error for duplicate zone ids")
	}
	if !reflect.DeepEqual(before, g.Export()) {
		t.Error("failed restore changed the galaxy")
	}
}

func TestRestoreStatuses(t *testing.T) {
	g, _ := newTestGalaxy(t)

	if err := g.RestoreStatuses([]string{"sirius_a"}, []string{"sol", "sirius_a", "procyon_a"}); err != nil {
		t.Fatalf("RestoreStatuses: %v", err)
	}
	want := map[string]domain.SystemStatus{
		"sol":       domain.SystemColonized,
		"sirius_a":  domain.SystemColonized,
		"procyon_a": domain.SystemDiscovered,
		"tau_ceti":  domain.SystemUndiscovered,
	}
	for id, status := range want {
		s, _ := g.System(id)
		if s.Record.Status != status {
			t.Errorf("%s status = %s, want %s", id, s.Record.Status, status)
		}
	}
	sirius, _ := g.System("sirius_a")
	if sirius.Generated() {
		t.Error("sirius_a should stay ungenerated")
	}
	if g.Aggregate().ColonizedSystems != 2 {
		t.Errorf("colonized = %d, want 2", g.Aggregate().ColonizedSystems)
	}

	if err := g.RestoreStatuses([]string{"vega"}, nil); !errors.Is(err, domain.ErrSystemNotFound) {
		t.Errorf("err = %v, want ErrSystemNotFound", err)
	}
}
