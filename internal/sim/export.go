package sim

import (
	"encoding/json"
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/galaxy"
	"github.com/expanse-sim/expanse-engine/internal/snapshot"
	"github.com/expanse-sim/expanse-engine/internal/transfer"
)

// Event types written to the simulation event log.
const (
	EventTransferArrived     = "transfer.arrived"
	EventTransferCompleted   = "transfer.completed"
	EventTransferCancelled   = "transfer.cancelled"
	EventInterstellarArrived = "interstellar.arrived"
	EventSystemColonized     = "system.colonized"
)

// Export captures the whole simulation as a snapshot state.
func (s *Simulation) Export() *snapshot.State {
	st := &snapshot.State{
		Version:               snapshot.CurrentVersion,
		SavedAtDay:            s.now,
		ActiveSystemID:        s.active,
		HomeSystemID:          s.galaxy.HomeID(),
		SystemStates:          make(map[string]snapshot.SystemBundle),
		InterstellarTransfers: s.galaxy.Interstellar(),
		GalaxyAggregate:       s.galaxy.Aggregate(),
		ColonizedSystemIDs:    s.galaxy.ColonizedIDs(),
		DiscoveredSystemIDs:   s.galaxy.DiscoveredIDs(),
		Skills:                s.Skills(),
	}
	for _, sys := range s.galaxy.Export() {
		b := snapshot.SystemBundle{Record: sys.Record, Zones: sys.Zones, Runtime: sys.Runtime}
		if sch, ok := s.schedulers[sys.Record.ID]; ok {
			b.Transfers = sch.List()
		}
		st.SystemStates[sys.Record.ID] = b
	}
	return st
}

// Restore replaces the simulation state with a snapshot. The snapshot must
// already be migrated to the current version.
func (s *Simulation) Restore(st *snapshot.State) error {
	states := make([]galaxy.SystemState, 0, len(st.SystemStates))
	for _, id := range s.galaxy.IDs() {
		b, ok := st.SystemStates[id]
		if !ok {
			continue
		}
		b.Record.ID = id
		states = append(states, galaxy.SystemState{Record: b.Record, Zones: b.Zones, Runtime: b.Runtime})
	}
	for id := range st.SystemStates {
		if _, err := s.galaxy.System(id); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	for _, ids := range [][]string{st.ColonizedSystemIDs, st.DiscoveredSystemIDs} {
		for _, id := range ids {
			if _, err := s.galaxy.System(id); err != nil {
				return fmt.Errorf("restore: %w", err)
			}
		}
	}
	if err := s.galaxy.Restore(states, st.InterstellarTransfers); err != nil {
		return err
	}
	if err := s.galaxy.RestoreStatuses(st.ColonizedSystemIDs, st.DiscoveredSystemIDs); err != nil {
		return err
	}

	s.schedulers = make(map[string]*transfer.Scheduler)
	for id, b := range st.SystemStates {
		if len(b.Transfers) == 0 {
			continue
		}
		sch, _, err := s.scheduler(id)
		if err != nil {
			return fmt.Errorf("restore transfers of %s: %w", id, err)
		}
		sch.Restore(b.Transfers)
	}

	s.skills = domain.Skills{}
	for k, v := range st.Skills {
		s.skills[k] = v
	}
	s.now = st.SavedAtDay
	s.active = s.galaxy.HomeID()
	if st.ActiveSystemID != "" {
		if err := s.SetActiveSystem(st.ActiveSystemID); err != nil {
			s.logger.Printf("WARN: restore: active system %s: %v", st.ActiveSystemID, err)
		}
	}
	return nil
}

// Events turns a tick's changes into event log entries. Sequence numbers
// and ids are assigned by the store.
func Events(ch Changes) []domain.SimEvent {
	var out []domain.SimEvent
	add := func(typ, subject string, payload any) {
		raw, err := json.Marshal(payload)
		if err != nil {
			raw = []byte("{}")
		}
		out = append(out, domain.SimEvent{
			SimDay:      ch.Day,
			EventType:   typ,
			SubjectID:   subject,
			PayloadJSON: string(raw),
		})
	}
	for _, a := range ch.Arrivals {
		add(EventTransferArrived, a.TransferID, a)
	}
	for _, t := range ch.Completed {
		add(EventTransferCompleted, t.ID, t)
	}
	for _, t := range ch.Cancelled {
		add(EventTransferCancelled, t.ID, t)
	}
	for _, t := range ch.InterstellarArrived {
		add(EventInterstellarArrived, t.ID, t)
	}
	for _, id := range ch.Colonized {
		add(EventSystemColonized, id, map[string]string{"system_id": id})
	}
	return out
}
