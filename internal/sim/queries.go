package sim

import (
	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/transfer"
)

// ZoneView is the display figure set for one origin zone: its runtime
// state and the delta-v figures to every other zone of the system.
type ZoneView struct {
	SystemID     string                  `json:"system_id"`
	Zone         domain.OrbitalZone      `json:"zone"`
	Runtime      domain.ZoneRuntimeState `json:"runtime"`
	EscapeKmS    float64                 `json:"escape_km_s"`
	Destinations []transfer.Figures      `json:"destinations"`
}

// SystemView is a read-only copy of one star system.
type SystemView struct {
	Record    domain.StarSystemRecord            `json:"record"`
	Zones     []domain.OrbitalZone               `json:"zones,omitempty"`
	Runtime   map[string]domain.ZoneRuntimeState `json:"runtime,omitempty"`
	Transfers []domain.TransferInstance          `json:"transfers,omitempty"`
}

// Completion is the galaxy-wide colonization progress.
type Completion struct {
	Fraction  float64                `json:"fraction"`
	Unlocked  bool                   `json:"unlocked"`
	Aggregate domain.GalaxyAggregate `json:"aggregate"`
}

// ZoneFigures evaluates transfers from an origin zone to every other zone
// of a colonized system using the current skills and remaining mass.
func (s *Simulation) ZoneFigures(systemID, originID string) (ZoneView, error) {
	sch, sys, err := s.scheduler(systemID)
	if err != nil {
		return ZoneView{}, s.warn("zone figures", err)
	}
	origin, err := sys.Zone(originID)
	if err != nil {
		return ZoneView{}, err
	}
	rt, err := sys.Runtime(originID)
	if err != nil {
		return ZoneView{}, err
	}

	view := ZoneView{SystemID: sys.Record.ID, Zone: origin, Runtime: rt.Clone()}
	for _, z := range sys.Zones() {
		if z.ID == originID {
			continue
		}
		f, err := sch.Evaluate(originID, z.ID, s.skills)
		if err != nil {
			return ZoneView{}, err
		}
		view.EscapeKmS = f.EscapeKmS
		view.Destinations = append(view.Destinations, f)
	}
	return view, nil
}

// Transfers lists copies of the live transfers of every system.
func (s *Simulation) Transfers() []domain.TransferInstance {
	var out []domain.TransferInstance
	for _, id := range s.schedulerIDs() {
		out = append(out, s.schedulers[id].List()...)
	}
	return out
}

// TransferProgress reports the trip fraction of every live transfer at the
// current day.
func (s *Simulation) TransferProgress() []transfer.Progress {
	var out []transfer.Progress
	for _, id := range s.schedulerIDs() {
		out = append(out, s.schedulers[id].Progress(s.now)...)
	}
	return out
}

// Transfer returns a copy of one transfer.
func (s *Simulation) Transfer(id string) (domain.TransferInstance, error) {
	sch, err := s.findTransfer(id)
	if err != nil {
		return domain.TransferInstance{}, err
	}
	return sch.Get(id)
}

// Interstellar lists the probe shipments between systems.
func (s *Simulation) Interstellar() []domain.InterstellarTransfer {
	return s.galaxy.Interstellar()
}

// Aggregate returns the galaxy aggregate.
func (s *Simulation) Aggregate() domain.GalaxyAggregate {
	return s.galaxy.Aggregate()
}

// Completion returns the colonized fraction and whether the unlock
// threshold has been reached.
func (s *Simulation) Completion() Completion {
	return Completion{
		Fraction:  s.galaxy.CompletionPercentage(),
		Unlocked:  s.galaxy.Unlocked(),
		Aggregate: s.galaxy.Aggregate(),
	}
}

// Systems lists every star system record in catalog order.
func (s *Simulation) Systems() []domain.StarSystemRecord {
	return s.galaxy.Records()
}

// System returns a read-only copy of one system. Zones are present only
// once the system has been generated; viewing never triggers generation.
func (s *Simulation) System(id string) (SystemView, error) {
	sys, err := s.galaxy.System(id)
	if err != nil {
		return SystemView{}, err
	}
	view := SystemView{Record: sys.Record}
	if sys.Generated() {
		view.Zones = sys.Zones()
		view.Runtime = sys.RuntimeStates()
	}
	if sch, ok := s.schedulers[id]; ok {
		view.Transfers = sch.List()
	}
	return view, nil
}
