// Package catalog holds the static orbital zone registry and star catalog.
package catalog

import (
	"fmt"
	"sort"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// Registry is a read-only set of orbital zones ordered by radius.
type Registry struct {
	zones []domain.OrbitalZone
	byID  map[string]int
}

// NewRegistry validates zones and builds a registry ordered by ascending
// orbital radius.
func NewRegistry(zones []domain.OrbitalZone) (*Registry, error) {
	if len(zones) == 0 {
		return nil, domain.NewEngineError(domain.ErrCatalogInvalid.Code, "registry has no zones")
	}

	sorted := append([]domain.OrbitalZone(nil), zones...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OrbitalRadiusAU < sorted[j].OrbitalRadiusAU
	})

	r := &Registry{zones: sorted, byID: make(map[string]int, len(sorted))}
	var problems []string
	for i, z := range sorted {
		if z.ID == "" {
			problems = append(problems, fmt.Sprintf("zone at index %d has no id", i))
			continue
		}
		if _, dup := r.byID[z.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate zone id %q", z.ID))
		}
		if z.OrbitalRadiusAU <= 0 {
			problems = append(problems, fmt.Sprintf("zone %q: orbital radius must be positive", z.ID))
		}
		if z.TotalMassKg < 0 {
			problems = append(problems, fmt.Sprintf("zone %q: mass must not be negative", z.ID))
		}
		r.byID[z.ID] = i
	}
	if len(problems) > 0 {
		return nil, domain.NewEngineError(domain.ErrCatalogInvalid.Code,
			fmt.Sprintf("%s: %v", domain.ErrCatalogInvalid.Message, problems))
	}
	return r, nil
}

// Get returns the zone with the given id.
func (r *Registry) Get(id string) (domain.OrbitalZone, error) {
	i, ok := r.byID[id]
	if !ok {
		return domain.OrbitalZone{}, domain.NewEngineError(domain.ErrZoneNotFound.Code,
			fmt.Sprintf("%s: %s", domain.ErrZoneNotFound.Message, id))
	}
	return r.zones[i], nil
}

// List returns all zones by ascending orbital radius.
func (r *Registry) List() []domain.OrbitalZone {
	return append([]domain.OrbitalZone(nil), r.zones...)
}

// Len returns the number of zones.
func (r *Registry) Len() int { return len(r.zones) }

// First returns the innermost zone.
func (r *Registry) First() domain.OrbitalZone { return r.zones[0] }
