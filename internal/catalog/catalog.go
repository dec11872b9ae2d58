package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// Catalog is the static data loaded once at startup.
type Catalog struct {
	HomeSystemID string               `json:"home_system_id"`
	Zones        []domain.OrbitalZone `json:"zones"`
	Stars        []domain.Star        `json:"stars"`
}

// Load reads a JSON catalog file and validates it.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog JSON: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that the home system exists and star ids are unique.
// Zone checks are done by NewRegistry.
func (c *Catalog) Validate() error {
	var problems []string

	if c.HomeSystemID == "" {
		problems = append(problems, "home_system_id is required")
	}
	seen := make(map[string]bool, len(c.Stars))
	for i, s := range c.Stars {
		if s.ID == "" {
			problems = append(problems, fmt.Sprintf("star at index %d has no id", i))
			continue
		}
		if seen[s.ID] {
			problems = append(problems, fmt.Sprintf("duplicate star id %q", s.ID))
		}
		seen[s.ID] = true
		if s.MassSolar < 0 || s.LuminositySolar < 0 {
			problems = append(problems, fmt.Sprintf("star %q: mass and luminosity must not be negative", s.ID))
		}
	}
	if c.HomeSystemID != "" && !seen[c.HomeSystemID] {
		problems = append(problems, fmt.Sprintf("home system %q is not in the star list", c.HomeSystemID))
	}
	if _, err := NewRegistry(c.Zones); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return domain.NewEngineError(domain.ErrCatalogInvalid.Code,
			fmt.Sprintf("%s: %v", domain.ErrCatalogInvalid.Message, problems))
	}
	return nil
}

// Registry builds the home-system zone registry.
func (c *Catalog) Registry() (*Registry, error) {
	return NewRegistry(c.Zones)
}

// Home returns the home star entry.
func (c *Catalog) Home() (domain.Star, error) {
	for _, s := range c.Stars {
		if s.ID == c.HomeSystemID {
			return s, nil
		}
	}
	return domain.Star{}, domain.NewEngineError(domain.ErrSystemNotFound.Code,
		fmt.Sprintf("%s: %s", domain.ErrSystemNotFound.Message, c.HomeSystemID))
}

// Default returns the built-in Sol catalog and its stellar neighbourhood.
func Default() *Catalog {
	return &Catalog{
		HomeSystemID: "sol",
		Zones: []domain.OrbitalZone{
			{ID: "dyson_sphere", Name: "Dyson Sphere", Kind: domain.ZoneDyson, OrbitalRadiusAU: 0.2, IsDysonZone: true},
			{ID: "mercury", Name: "Mercury", Kind: domain.ZoneRocky, OrbitalRadiusAU: 0.387, TotalMassKg: 3.301e23, EscapeDeltaVKmS: 4.25},
			{ID: "venus", Name: "Venus", Kind: domain.ZoneRocky, OrbitalRadiusAU: 0.723, TotalMassKg: 4.867e24, EscapeDeltaVKmS: 10.36},
			{ID: "earth", Name: "Earth", Kind: domain.ZoneRocky, OrbitalRadiusAU: 1.0, TotalMassKg: 5.972e24, EscapeDeltaVKmS: 11.19},
			{ID: "mars", Name: "Mars", Kind: domain.ZoneRocky, OrbitalRadiusAU: 1.524, TotalMassKg: 6.417e23, EscapeDeltaVKmS: 5.03},
			{ID: "asteroid_belt", Name: "Asteroid Belt", Kind: domain.ZoneAsteroidBelt, OrbitalRadiusAU: 2.7, TotalMassKg: 3.0e21, EscapeDeltaVKmS: 0.51},
			{ID: "jupiter", Name: "Jupiter", Kind: domain.ZoneGasGiant, OrbitalRadiusAU: 5.203, TotalMassKg: 1.898e27, EscapeDeltaVKmS: 59.5},
			{ID: "saturn", Name: "Saturn", Kind: domain.ZoneGasGiant, OrbitalRadiusAU: 9.537, TotalMassKg: 5.683e26, EscapeDeltaVKmS: 35.5},
			{ID: "uranus", Name: "Uranus", Kind: domain.ZoneIceGiant, OrbitalRadiusAU: 19.19, TotalMassKg: 8.681e25, EscapeDeltaVKmS: 21.3},
			{ID: "neptune", Name: "Neptune", Kind: domain.ZoneIceGiant, OrbitalRadiusAU: 30.07, TotalMassKg: 1.024e26, EscapeDeltaVKmS: 23.5},
			{ID: "kuiper", Name: "Kuiper Belt", Kind: domain.ZoneTransNeptunian, OrbitalRadiusAU: 45, TotalMassKg: 2.0e22, EscapeDeltaVKmS: 1.2},
		},
		Stars: []domain.Star{
			{ID: "sol", Name: "Sol", SpectralClass: "G", LuminositySolar: 1, MassSolar: 1},
			{ID: "alpha_centauri_a", Name: "Alpha Centauri A", PositionLy: [3]float64{-1.64, -1.37, -3.84}, SpectralClass: "G", LuminositySolar: 1.52, MassSolar: 1.1},
			{ID: "barnards_star", Name: "Barnard's Star", PositionLy: [3]float64{-0.06, -5.94, 0.49}, SpectralClass: "M", LuminositySolar: 0.0035, MassSolar: 0.14},
			{ID: "wolf_359", Name: "Wolf 359", PositionLy: [3]float64{-7.43, 2.11, 0.95}, SpectralClass: "M", LuminositySolar: 0.0014, MassSolar: 0.11},
			{ID: "lalande_21185", Name: "Lalande 21185", PositionLy: [3]float64{-6.51, 1.64, 4.87}, SpectralClass: "M", LuminositySolar: 0.021, MassSolar: 0.39},
			{ID: "sirius_a", Name: "Sirius A", PositionLy: [3]float64{-1.61, 8.08, -2.47}, SpectralClass: "A", LuminositySolar: 25.4, MassSolar: 2.06},
			{ID: "epsilon_eridani", Name: "Epsilon Eridani", PositionLy: [3]float64{6.2, 8.31, -1.73}, SpectralClass: "K", LuminositySolar: 0.34, MassSolar: 0.82},
			{ID: "procyon_a", Name: "Procyon A", PositionLy: [3]float64{-4.77, 10.3, 1.04}, SpectralClass: "F", LuminositySolar: 6.93, MassSolar: 1.5},
			{ID: "tau_ceti", Name: "Tau Ceti", PositionLy: [3]float64{10.27, 5.01, -3.26}, SpectralClass: "G", LuminositySolar: 0.52, MassSolar: 0.78},
			{ID: "local_fluff", Name: "Local Interstellar Cloud", PositionLy: [3]float64{12.0, -4.0, 6.5}, SpectralClass: "dust", LuminositySolar: 0, MassSolar: 0.5, IsDustCloud: true},
		},
	}
}
