package galaxy

import (
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/deltav"
	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// SystemState is the persisted form of one system.
type SystemState struct {
	Record  domain.StarSystemRecord
	Zones   []domain.OrbitalZone
	Runtime map[string]domain.ZoneRuntimeState
}

// Export returns copies of every system's state in catalog order.
func (g *Galaxy) Export() []SystemState {
	out := make([]SystemState, 0, len(g.ids))
	for _, id := range g.ids {
		s := g.systems[id]
		out = append(out, SystemState{
			Record:  s.Record,
			Zones:   s.Zones(),
			Runtime: s.RuntimeStates(),
		})
	}
	return out
}

// Restore overwrites system state and the interstellar transfers. Systems
// absent from states keep their current state; ids not in the catalog are
// rejected. The home system stays colonized. Every state and transfer is
// checked before anything changes, so a failed restore leaves the galaxy
// untouched.
func (g *Galaxy) Restore(states []SystemState, transfers []domain.InterstellarTransfer) error {
	regs := make([]*catalog.Registry, len(states))
	for i, st := range states {
		if _, err := g.System(st.Record.ID); err != nil {
			return err
		}
		if len(st.Zones) == 0 {
			continue
		}
		reg, err := catalog.NewRegistry(st.Zones)
		if err != nil {
			return fmt.Errorf("restore %s: %w", st.Record.ID, err)
		}
		regs[i] = reg
	}
	for _, t := range transfers {
		if t.Status == domain.InterstellarCompleted {
			continue
		}
		if _, err := g.System(t.ToSystemID); err != nil {
			return err
		}
	}

	for i, st := range states {
		s := g.systems[st.Record.ID]
		rec := st.Record
		if rec.Status == "" {
			rec.Status = domain.SystemDiscovered
		}
		if rec.ID == g.homeID {
			rec.Status = domain.SystemColonized
		}
		s.Record = rec
		s.Mu = deltav.SunMu * rec.MassSolar

		reg := regs[i]
		if reg == nil {
			if rec.ID != g.homeID {
				s.zones = nil
				s.runtime = nil
				s.Record.Generated = false
			}
			continue
		}
		s.zones = reg
		s.runtime = make(map[string]*domain.ZoneRuntimeState, reg.Len())
		for _, z := range reg.List() {
			rt, ok := st.Runtime[z.ID]
			if !ok {
				rt = domain.ZoneRuntimeState{MassRemainingKg: z.TotalMassKg}
			}
			rt = rt.Clone()
			s.runtime[z.ID] = &rt
		}
		s.Record.Generated = true
		s.Record.Dyson.CompletionPercent = dysonPercent(s.Record.Dyson)
	}

	g.transfers = g.transfers[:0]
	for _, t := range transfers {
		if t.Status == domain.InterstellarCompleted {
			continue
		}
		c := t
		c.Status = domain.InterstellarTraveling
		g.transfers = append(g.transfers, &c)
	}

	g.Recompute()
	return nil
}

// RestoreStatuses applies saved id sets on top of restored system state.
// Every id in colonized becomes colonized; a system without zones stays
// ungenerated until first visit. A nil discovered set leaves discovery
// untouched; otherwise systems outside it that are not colonized become
// undiscovered. Colonized systems are never demoted. Unknown ids are
// rejected before anything changes.
func (g *Galaxy) RestoreStatuses(colonized, discovered []string) error {
	for _, id := range colonized {
		if _, err := g.System(id); err != nil {
			return err
		}
	}
	for _, id := range discovered {
		if _, err := g.System(id); err != nil {
			return err
		}
	}

	for _, id := range colonized {
		g.systems[id].Record.Status = domain.SystemColonized
	}
	if discovered != nil {
		seen := make(map[string]bool, len(discovered))
		for _, id := range discovered {
			seen[id] = true
		}
		for _, id := range g.ids {
			s := g.systems[id]
			switch {
			case s.Record.Status == domain.SystemColonized:
			case seen[id]:
				s.Record.Status = domain.SystemDiscovered
			default:
				s.Record.Status = domain.SystemUndiscovered
			}
		}
	}
	g.Recompute()
	return nil
}
