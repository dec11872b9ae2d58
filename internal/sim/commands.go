package sim

import (
	"fmt"
	"math"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// CreateTransfer validates and launches an order in its system, or in the
// active system when the order names none. Unreachable orders return a
// *domain.CapacityError.
func (s *Simulation) CreateTransfer(order domain.TransferOrder) (domain.TransferInstance, error) {
	if order.SystemID == "" {
		order.SystemID = s.active
	}
	sch, _, err := s.scheduler(order.SystemID)
	if err != nil {
		return domain.TransferInstance{}, s.warn("create transfer", err)
	}
	inst, err := sch.Create(order, s.skills, s.now)
	return inst, s.warn("create transfer", err)
}

// CancelTransfer cancels a transfer. Undelivered batches are lost; the
// cancellation is reported by the next tick.
func (s *Simulation) CancelTransfer(id string) error {
	sch, err := s.findTransfer(id)
	if err != nil {
		return s.warn("cancel transfer", err)
	}
	return s.warn("cancel transfer", sch.Cancel(id))
}

// PauseTransfer stops a continuous transfer from spawning batches.
func (s *Simulation) PauseTransfer(id string) error {
	sch, err := s.findTransfer(id)
	if err != nil {
		return s.warn("pause transfer", err)
	}
	return s.warn("pause transfer", sch.Pause(id))
}

// ResumeTransfer restarts a paused continuous transfer.
func (s *Simulation) ResumeTransfer(id string) error {
	sch, err := s.findTransfer(id)
	if err != nil {
		return s.warn("resume transfer", err)
	}
	return s.warn("resume transfer", sch.Resume(id, s.now))
}

// ColonizeSystem colonizes a system or merges probes into it. Reports
// whether the system was newly colonized.
func (s *Simulation) ColonizeSystem(id string, seedProbes float64) (bool, error) {
	newly, err := s.galaxy.Colonize(id, seedProbes)
	if err != nil {
		return false, err
	}
	s.galaxy.Recompute()
	return newly, nil
}

// SetActiveSystem switches the system in view. The first visit generates
// its zones.
func (s *Simulation) SetActiveSystem(id string) error {
	sys, err := s.system(id)
	if err != nil {
		return s.warn("set active system", err)
	}
	s.active = sys.Record.ID
	return nil
}

// LaunchInterstellar sends probes to another star system.
func (s *Simulation) LaunchInterstellar(fromID, toID string, probes float64) (domain.InterstellarTransfer, error) {
	t, err := s.galaxy.Launch(fromID, toID, probes, s.now)
	if err != nil {
		return domain.InterstellarTransfer{}, s.warn("launch interstellar", err)
	}
	s.galaxy.Recompute()
	return t, nil
}

// SetSkills replaces the research skill levels. Missing skills sit at the
// baseline of 1.
func (s *Simulation) SetSkills(skills domain.Skills) error {
	for name, level := range skills {
		if level < 0 || math.IsNaN(level) || math.IsInf(level, 0) {
			return domain.NewEngineError(domain.ErrInvalidOrder.Code,
				fmt.Sprintf("skill %q: level must be a non-negative number", name))
		}
	}
	s.skills = make(domain.Skills, len(skills))
	for k, v := range skills {
		s.skills[k] = v
	}
	return nil
}

// MineZone converts up to kg of a zone's remaining mass into stored metal
// and returns the amount mined.
func (s *Simulation) MineZone(systemID, zoneID string, kg float64) (float64, error) {
	if kg <= 0 {
		return 0, invalid("mined mass must be positive")
	}
	rt, err := s.runtime(systemID, zoneID)
	if err != nil {
		return 0, err
	}
	mined := math.Min(kg, rt.MassRemainingKg)
	rt.MassRemainingKg -= mined
	rt.StoredMetalKg += mined
	return mined, nil
}

// BuildStructure adds count structures of a kind to a zone.
func (s *Simulation) BuildStructure(systemID, zoneID, kind string, count int) error {
	if kind == "" || count <= 0 {
		return invalid("structure kind and a positive count are required")
	}
	rt, err := s.runtime(systemID, zoneID)
	if err != nil {
		return err
	}
	if rt.StructureCounts == nil {
		rt.StructureCounts = map[string]int{}
	}
	rt.StructureCounts[kind] += count
	return nil
}

// SetProbeProduction sets a zone's probe output per day.
func (s *Simulation) SetProbeProduction(systemID, zoneID string, perDay float64) error {
	if perDay < 0 {
		return invalid("probe production must not be negative")
	}
	rt, err := s.runtime(systemID, zoneID)
	if err != nil {
		return err
	}
	rt.ProbeProductionPerDay = perDay
	return nil
}

// ContributeDyson moves stored metal from a zone into the system's Dyson
// sphere and returns the mass applied.
func (s *Simulation) ContributeDyson(systemID, zoneID string, kg float64) (float64, error) {
	sys, err := s.system(systemID)
	if err != nil {
		return 0, s.warn("contribute dyson", err)
	}
	applied, err := s.galaxy.ContributeDyson(sys.Record.ID, zoneID, kg)
	if err != nil {
		return 0, err
	}
	s.galaxy.Recompute()
	return applied, nil
}

func (s *Simulation) runtime(systemID, zoneID string) (*domain.ZoneRuntimeState, error) {
	sys, err := s.system(systemID)
	if err != nil {
		return nil, s.warn("zone lookup", err)
	}
	return sys.Runtime(zoneID)
}

func invalid(msg string) error {
	return domain.NewEngineError(domain.ErrInvalidOrder.Code,
		fmt.Sprintf("%s: %s", domain.ErrInvalidOrder.Message, msg))
}
