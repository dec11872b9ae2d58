// Package snapshot defines the persisted simulation state, its versioned
// migration, and the compressed, checksummed wire form.
package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// CurrentVersion is the schema version written by Encode.
const CurrentVersion = 2

// SystemBundle is the saved state of one star system.
type SystemBundle struct {
	Record    domain.StarSystemRecord            `json:"record"`
	Zones     []domain.OrbitalZone               `json:"zones,omitempty"`
	Runtime   map[string]domain.ZoneRuntimeState `json:"runtime,omitempty"`
	Transfers []domain.TransferInstance          `json:"transfers,omitempty"`
}

// State is the whole saved simulation.
type State struct {
	Version               int                           `json:"version"`
	SavedAtDay            float64                       `json:"savedAtDay"`
	ActiveSystemID        string                        `json:"activeSystemId"`
	HomeSystemID          string                        `json:"homeSystemId"`
	SystemStates          map[string]SystemBundle       `json:"systemStates"`
	InterstellarTransfers []domain.InterstellarTransfer `json:"interstellarTransfers"`
	GalaxyAggregate       domain.GalaxyAggregate        `json:"galaxyAggregate"`
	ColonizedSystemIDs    []string                      `json:"colonizedSystemIds"`
	DiscoveredSystemIDs   []string                      `json:"discoveredSystemIds"`
	Skills                domain.Skills                 `json:"skills"`
}

// Parse decodes snapshot JSON of any supported version into the current
// schema and fills missing fields with defaults. homeID is used when the
// snapshot names neither an active nor a home system.
func Parse(data []byte, homeID string) (*State, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, "parse snapshot JSON", err)
	}
	if err := Migrate(raw); err != nil {
		return nil, err
	}

	migrated, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("re-encode migrated snapshot: %w", err)
	}
	var st State
	if err := json.Unmarshal(migrated, &st); err != nil {
		return nil, domain.WrapEngineError(domain.ErrSnapshotCorrupt.Code, "decode snapshot", err)
	}
	st.applyDefaults(homeID)
	return &st, nil
}

func (s *State) applyDefaults(homeID string) {
	if s.HomeSystemID == "" {
		s.HomeSystemID = homeID
	}
	if s.ActiveSystemID == "" {
		s.ActiveSystemID = s.HomeSystemID
	}
	if s.Skills == nil {
		s.Skills = domain.Skills{}
	}
	if s.SystemStates == nil {
		s.SystemStates = map[string]SystemBundle{}
	}
	for id, b := range s.SystemStates {
		if b.Record.ID == "" {
			b.Record.ID = id
			s.SystemStates[id] = b
		}
	}
}
