// Package galaxy tracks star-system colonization, lazy zone generation,
// interstellar probe transfers, and the galaxy-wide aggregate.
package galaxy

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/deltav"
	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// DaysPerYear converts light-years at a fraction of c into days.
const DaysPerYear = 365.25

// System is one star system. Zone state exists only after generation.
type System struct {
	Record domain.StarSystemRecord
	// Mu is the central body's gravitational parameter in m³/s².
	Mu float64

	zones   *catalog.Registry
	runtime map[string]*domain.ZoneRuntimeState
}

// Zone implements transfer.Zones.
func (s *System) Zone(id string) (domain.OrbitalZone, error) {
	if s.zones == nil {
		return domain.OrbitalZone{}, s.notGenerated()
	}
	return s.zones.Get(id)
}

// Runtime implements transfer.Zones. The returned state is live.
func (s *System) Runtime(id string) (*domain.ZoneRuntimeState, error) {
	rt, ok := s.runtime[id]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrZoneNotFound.Code,
			fmt.Sprintf("%s: %s in %s", domain.ErrZoneNotFound.Message, id, s.Record.ID))
	}
	return rt, nil
}

func (s *System) notGenerated() error {
	return domain.NewEngineError(domain.ErrSystemNotColonized.Code,
		fmt.Sprintf("%s: %s has no zones yet", domain.ErrSystemNotColonized.Message, s.Record.ID))
}

// Zones lists the generated zones by radius, or nil.
func (s *System) Zones() []domain.OrbitalZone {
	if s.zones == nil {
		return nil
	}
	return s.zones.List()
}

// RuntimeStates returns copies of every zone's runtime state.
func (s *System) RuntimeStates() map[string]domain.ZoneRuntimeState {
	out := make(map[string]domain.ZoneRuntimeState, len(s.runtime))
	for id, rt := range s.runtime {
		out[id] = rt.Clone()
	}
	return out
}

// Generated reports whether the zone set exists.
func (s *System) Generated() bool { return s.zones != nil }

// Probes is the total probe count of the system, pending probes included.
func (s *System) Probes() float64 {
	total := s.Record.PendingProbes
	for _, rt := range s.runtime {
		total += rt.ProbeCount
	}
	return total
}

// addProbes merges probes into the first zone, or the pending counter when
// the system has not been generated.
func (s *System) addProbes(n float64) {
	if n <= 0 {
		return
	}
	if s.zones == nil {
		s.Record.PendingProbes += n
		return
	}
	s.runtime[s.zones.First().ID].ProbeCount += n
}

// takeProbes removes n probes, drawing on the pending counter first and then
// zones from the innermost outward.
func (s *System) takeProbes(n float64) {
	take := math.Min(n, s.Record.PendingProbes)
	s.Record.PendingProbes -= take
	n -= take
	if s.zones == nil {
		return
	}
	for _, z := range s.zones.List() {
		if n <= 0 {
			return
		}
		rt := s.runtime[z.ID]
		t := math.Min(n, rt.ProbeCount)
		rt.ProbeCount -= t
		n -= t
	}
}

// Report describes what one Advance call changed.
type Report struct {
	Arrived   []domain.InterstellarTransfer `json:"arrived"`
	Colonized []string                      `json:"colonized"`
}

// Galaxy owns every star system record and the interstellar transfers.
type Galaxy struct {
	params config.PhysicsConfig
	logger *log.Logger
	homeID string

	systems map[string]*System
	ids     []string

	transfers []*domain.InterstellarTransfer
	aggregate domain.GalaxyAggregate
}

// New builds the galaxy from the star catalog. Every entry starts
// discovered; the home system starts colonized with homeZones generated.
func New(stars []domain.Star, homeID string, homeZones *catalog.Registry, params config.PhysicsConfig, logger *log.Logger) (*Galaxy, error) {
	if logger == nil {
		logger = log.Default()
	}
	g := &Galaxy{
		params:  params,
		logger:  logger,
		homeID:  homeID,
		systems: make(map[string]*System, len(stars)),
	}
	for _, star := range stars {
		if _, dup := g.systems[star.ID]; dup {
			return nil, domain.NewEngineError(domain.ErrCatalogInvalid.Code,
				fmt.Sprintf("duplicate star id %q", star.ID))
		}
		g.systems[star.ID] = &System{
			Record: domain.StarSystemRecord{Star: star, Status: domain.SystemDiscovered},
			Mu:     deltav.SunMu * star.MassSolar,
		}
		g.ids = append(g.ids, star.ID)
	}

	home, ok := g.systems[homeID]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrSystemNotFound.Code,
			fmt.Sprintf("%s: home %s", domain.ErrSystemNotFound.Message, homeID))
	}
	if homeZones == nil {
		return nil, domain.NewEngineError(domain.ErrCatalogInvalid.Code, "home system has no zones")
	}
	home.Record.Status = domain.SystemColonized
	g.install(home, homeZones)

	g.Recompute()
	return g, nil
}

// install attaches a zone set at full endowment and marks it generated.
func (g *Galaxy) install(s *System, reg *catalog.Registry) {
	s.zones = reg
	s.runtime = make(map[string]*domain.ZoneRuntimeState, reg.Len())
	for _, z := range reg.List() {
		s.runtime[z.ID] = &domain.ZoneRuntimeState{
			MassRemainingKg: z.TotalMassKg,
			StructureCounts: map[string]int{},
		}
	}
	s.Record.Generated = true
	s.Record.Dyson.TargetMassKg = g.params.DysonMassPerLumKg * math.Max(s.Record.LuminositySolar, 0)
	s.Record.Dyson.CompletionPercent = dysonPercent(s.Record.Dyson)
}

// HomeID returns the home system id.
func (g *Galaxy) HomeID() string { return g.homeID }

// System returns the live system record.
func (g *Galaxy) System(id string) (*System, error) {
	s, ok := g.systems[id]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrSystemNotFound.Code,
			fmt.Sprintf("%s: %s", domain.ErrSystemNotFound.Message, id))
	}
	return s, nil
}

// Record returns a copy of one system record.
func (g *Galaxy) Record(id string) (domain.StarSystemRecord, error) {
	s, err := g.System(id)
	if err != nil {
		return domain.StarSystemRecord{}, err
	}
	return s.Record, nil
}

// Records returns copies of every record in catalog order.
func (g *Galaxy) Records() []domain.StarSystemRecord {
	out := make([]domain.StarSystemRecord, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.systems[id].Record)
	}
	return out
}

// IDs returns every system id in catalog order.
func (g *Galaxy) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Colonize colonizes a system seeded with probes. Colonizing an already
// colonized system merges the probes instead. Reports whether the status
// changed.
func (g *Galaxy) Colonize(id string, seedProbes float64) (bool, error) {
	s, err := g.System(id)
	if err != nil {
		return false, err
	}
	if seedProbes < 0 {
		seedProbes = 0
	}
	if s.Record.Status == domain.SystemColonized {
		s.addProbes(seedProbes)
		return false, nil
	}
	s.Record.Status = domain.SystemColonized
	s.addProbes(seedProbes)
	return true, nil
}

// Generate creates a colonized system's zones on first visit and returns the
// system. Later calls return the existing zones unchanged.
func (g *Galaxy) Generate(id string) (*System, error) {
	s, err := g.System(id)
	if err != nil {
		return nil, err
	}
	if s.Record.Status != domain.SystemColonized {
		return nil, domain.NewEngineError(domain.ErrSystemNotColonized.Code,
			fmt.Sprintf("%s: %s", domain.ErrSystemNotColonized.Message, id))
	}
	if s.zones != nil {
		return s, nil
	}

	count, known := g.zoneCount(s.Record.Star)
	if !known {
		g.logger.Printf("WARN: %s: %s class %q, %d zones",
			id, domain.ErrUnknownSpectralClass.Message, s.Record.SpectralClass, count)
	}
	zones, runtime := g.buildZones(&s.Record, count)
	reg, err := catalog.NewRegistry(zones)
	if err != nil {
		return nil, err
	}
	s.zones = reg
	s.runtime = runtime
	s.Record.Generated = true
	s.Record.Dyson.TargetMassKg = g.params.DysonMassPerLumKg * math.Max(s.Record.LuminositySolar, 0)
	s.Record.Dyson.CompletionPercent = dysonPercent(s.Record.Dyson)

	pending := s.Record.PendingProbes
	s.Record.PendingProbes = 0
	s.addProbes(pending)
	return s, nil
}

// Launch sends probes from one colonized system to another. Interstellar
// travel is never delta-v gated, only slow.
func (g *Galaxy) Launch(fromID, toID string, probes, now float64) (domain.InterstellarTransfer, error) {
	from, err := g.System(fromID)
	if err != nil {
		return domain.InterstellarTransfer{}, err
	}
	to, err := g.System(toID)
	if err != nil {
		return domain.InterstellarTransfer{}, err
	}
	if from.Record.Status != domain.SystemColonized {
		return domain.InterstellarTransfer{}, domain.NewEngineError(domain.ErrSystemNotColonized.Code,
			fmt.Sprintf("%s: %s", domain.ErrSystemNotColonized.Message, fromID))
	}
	if fromID == toID || probes <= 0 {
		return domain.InterstellarTransfer{}, domain.NewEngineError(domain.ErrInvalidOrder.Code,
			fmt.Sprintf("%s: interstellar transfer needs distinct systems and a positive probe count", domain.ErrInvalidOrder.Message))
	}
	if have := from.Probes(); have < probes {
		return domain.InterstellarTransfer{}, domain.NewEngineError(domain.ErrInsufficientResources.Code,
			fmt.Sprintf("%s: %s holds %.2f probes, %.2f requested", domain.ErrInsufficientResources.Message, fromID, have, probes))
	}

	from.takeProbes(probes)
	days := g.travelDays(from.Record.Star, to.Record.Star)
	t := &domain.InterstellarTransfer{
		ID:           uuid.NewString(),
		FromSystemID: fromID,
		ToSystemID:   toID,
		ProbeCount:   probes,
		DepartureDay: now,
		ArrivalDay:   now + days,
		Status:       domain.InterstellarTraveling,
	}
	g.transfers = append(g.transfers, t)
	return *t, nil
}

// DistanceLy is the straight-line distance between two catalog entries.
func DistanceLy(a, b domain.Star) float64 {
	var sum float64
	for i := 0; i < 3; i++ {
		d := a.PositionLy[i] - b.PositionLy[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func (g *Galaxy) travelDays(a, b domain.Star) float64 {
	speed := g.params.InterstellarSpeedC
	if speed <= 0 {
		speed = 0.05
	}
	days := DistanceLy(a, b) * DaysPerYear / speed
	floor := g.params.MinTransferDays
	if floor <= 0 {
		floor = 0.01
	}
	return math.Max(days, floor)
}

// Advance resolves interstellar arrivals due at now. Arrivals colonize
// their destination or merge into it. Arrived transfers are reported once
// and dropped.
func (g *Galaxy) Advance(now float64) Report {
	var rep Report
	kept := g.transfers[:0]
	for _, t := range g.transfers {
		if t.ArrivalDay > now {
			kept = append(kept, t)
			continue
		}
		t.Status = domain.InterstellarCompleted
		newly, err := g.Colonize(t.ToSystemID, t.ProbeCount)
		if err != nil {
			g.logger.Printf("WARN: interstellar transfer %s: %v", t.ID, err)
		}
		if newly {
			rep.Colonized = append(rep.Colonized, t.ToSystemID)
		}
		rep.Arrived = append(rep.Arrived, *t)
	}
	g.transfers = kept
	return rep
}

// Interstellar returns copies of the transfers in flight.
func (g *Galaxy) Interstellar() []domain.InterstellarTransfer {
	out := make([]domain.InterstellarTransfer, 0, len(g.transfers))
	for _, t := range g.transfers {
		out = append(out, *t)
	}
	return out
}

// ContributeDyson moves stored metal from a zone into the system's Dyson
// sphere, capped at the target. Returns the mass applied.
func (g *Galaxy) ContributeDyson(systemID, zoneID string, kg float64) (float64, error) {
	s, err := g.System(systemID)
	if err != nil {
		return 0, err
	}
	if !s.Generated() {
		return 0, s.notGenerated()
	}
	rt, err := s.Runtime(zoneID)
	if err != nil {
		return 0, err
	}
	if kg <= 0 {
		return 0, domain.NewEngineError(domain.ErrInvalidOrder.Code,
			fmt.Sprintf("%s: contribution must be positive", domain.ErrInvalidOrder.Message))
	}
	d := &s.Record.Dyson
	room := math.Max(0, d.TargetMassKg-d.MassKg)
	applied := math.Min(math.Min(kg, rt.StoredMetalKg), room)
	rt.StoredMetalKg -= applied
	d.MassKg += applied
	d.CompletionPercent = dysonPercent(*d)
	return applied, nil
}

func dysonPercent(d domain.DysonProgress) float64 {
	if d.TargetMassKg <= 0 {
		return 0
	}
	return math.Min(100, d.MassKg/d.TargetMassKg*100)
}

// Recompute rebuilds the aggregate from the system records and reports
// whether it changed. Systems awaiting generation contribute only their
// pending probes.
func (g *Galaxy) Recompute() bool {
	agg := domain.GalaxyAggregate{
		DysonMassByClass:     map[string]float64{},
		CompleteDysonByClass: map[string]int{},
	}
	for _, id := range g.ids {
		s := g.systems[id]
		if s.Record.Status != domain.SystemColonized {
			continue
		}
		agg.ColonizedSystems++
		if !s.Generated() {
			agg.TotalProbes += s.Record.PendingProbes
			continue
		}
		agg.TotalProbes += s.Probes()
		agg.TotalDysonMassKg += s.Record.Dyson.MassKg
		if s.Record.Dyson.MassKg > 0 {
			agg.DysonMassByClass[s.Record.SpectralClass] += s.Record.Dyson.MassKg
		}
		if s.Record.Dyson.Complete() {
			agg.CompleteDysonSystems++
			agg.CompleteDysonByClass[s.Record.SpectralClass]++
		}
	}
	changed := !sameAggregate(g.aggregate, agg)
	g.aggregate = agg
	return changed
}

func sameAggregate(a, b domain.GalaxyAggregate) bool {
	if a.ColonizedSystems != b.ColonizedSystems || a.CompleteDysonSystems != b.CompleteDysonSystems ||
		a.TotalProbes != b.TotalProbes || a.TotalDysonMassKg != b.TotalDysonMassKg ||
		len(a.DysonMassByClass) != len(b.DysonMassByClass) || len(a.CompleteDysonByClass) != len(b.CompleteDysonByClass) {
		return false
	}
	for k, v := range a.DysonMassByClass {
		if b.DysonMassByClass[k] != v {
			return false
		}
	}
	for k, v := range a.CompleteDysonByClass {
		if b.CompleteDysonByClass[k] != v {
			return false
		}
	}
	return true
}

// Aggregate returns a copy of the last computed aggregate.
func (g *Galaxy) Aggregate() domain.GalaxyAggregate {
	out := g.aggregate
	out.DysonMassByClass = make(map[string]float64, len(g.aggregate.DysonMassByClass))
	for k, v := range g.aggregate.DysonMassByClass {
		out.DysonMassByClass[k] = v
	}
	out.CompleteDysonByClass = make(map[string]int, len(g.aggregate.CompleteDysonByClass))
	for k, v := range g.aggregate.CompleteDysonByClass {
		out.CompleteDysonByClass[k] = v
	}
	return out
}

// CompletionPercentage is colonized entries over all stars and dust clouds,
// as a fraction in [0, 1].
func (g *Galaxy) CompletionPercentage() float64 {
	if len(g.ids) == 0 {
		return 0
	}
	colonized := 0
	for _, id := range g.ids {
		if g.systems[id].Record.Status == domain.SystemColonized {
			colonized++
		}
	}
	return float64(colonized) / float64(len(g.ids))
}

// Unlocked reports whether completion reached the unlock threshold.
func (g *Galaxy) Unlocked() bool {
	threshold := g.params.UnlockThreshold
	if threshold <= 0 {
		threshold = 0.99
	}
	return g.CompletionPercentage() >= threshold
}

// ColonizedIDs returns the colonized system ids, sorted.
func (g *Galaxy) ColonizedIDs() []string {
	return g.idsWhere(func(s *System) bool { return s.Record.Status == domain.SystemColonized })
}

// DiscoveredIDs returns every id that is at least discovered, sorted.
func (g *Galaxy) DiscoveredIDs() []string {
	return g.idsWhere(func(s *System) bool { return s.Record.Status != domain.SystemUndiscovered })
}

func (g *Galaxy) idsWhere(keep func(*System) bool) []string {
	var out []string
	for _, id := range g.ids {
		if keep(g.systems[id]) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
