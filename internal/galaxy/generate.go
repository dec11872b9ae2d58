package galaxy

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"lukechampine.com/blake3"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// zoneTemplate is one slot of the synthetic system layout, expressed for a
// one-solar-luminosity, one-solar-mass star.
type zoneTemplate struct {
	suffix       string
	kind         domain.ZoneKind
	radiusAU     float64
	massFraction float64
	escapeKmS    float64
}

// templates is ordered by radius. The first slot is always the Dyson zone.
var templates = []zoneTemplate{
	{"dyson", domain.ZoneDyson, 0.2, 0, 0},
	{"inferno", domain.ZoneRocky, 0.4, 0.33, 4.3},
	{"cinder", domain.ZoneRocky, 0.7, 4.9, 10.4},
	{"temperate", domain.ZoneRocky, 1.0, 6.0, 11.2},
	{"frost", domain.ZoneRocky, 1.5, 0.64, 5.0},
	{"belt", domain.ZoneAsteroidBelt, 2.7, 0.003, 0.5},
	{"giant", domain.ZoneGasGiant, 5.2, 1900, 59.5},
	{"ringed", domain.ZoneGasGiant, 9.5, 570, 35.5},
	{"ice", domain.ZoneIceGiant, 19.2, 87, 21.3},
	{"deep", domain.ZoneIceGiant, 30.1, 102, 23.5},
	{"halo", domain.ZoneTransNeptunian, 45, 0.02, 1.2},
}

// radiusJitter is the largest relative offset applied to a template radius.
const radiusJitter = 0.1

// minScale keeps dim bodies such as dust clouds off zero radius.
const minScale = 0.05

// zoneCount picks the number of zones for a spectral class. Dust clouds
// look up "dust"; stars match the full class first and then its letter.
// The bool is false when a star's class was not found. Dust clouds have no
// spectral class, so falling back to the default is not reported for them.
func (g *Galaxy) zoneCount(star domain.Star) (int, bool) {
	table := g.params.ZoneCountByClass
	key := strings.TrimSpace(star.SpectralClass)
	if star.IsDustCloud {
		key = "dust"
	}
	if n, ok := table[key]; ok && n > 0 {
		return clampCount(n), true
	}
	if !star.IsDustCloud && key != "" {
		if n, ok := table[strings.ToUpper(key[:1])]; ok && n > 0 {
			return clampCount(n), true
		}
	}
	def := g.params.DefaultZoneCount
	if def <= 0 {
		def = 8
	}
	return clampCount(def), star.IsDustCloud
}

func clampCount(n int) int {
	if n < 1 {
		return 1
	}
	if n > len(templates) {
		return len(templates)
	}
	return n
}

// pickTemplates spreads n slots evenly over the template list, always
// keeping the innermost and, for n > 1, the outermost.
func pickTemplates(n int) []zoneTemplate {
	if n == 1 {
		return templates[:1]
	}
	out := make([]zoneTemplate, 0, n)
	last := len(templates) - 1
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i) * float64(last) / float64(n-1)))
		out = append(out, templates[idx])
	}
	return out
}

// jitter returns a deterministic factor in [1-radiusJitter, 1+radiusJitter)
// for one zone of one system.
func jitter(systemID string, index int) float64 {
	sum := blake3.Sum256([]byte(fmt.Sprintf("%s:%d", systemID, index)))
	u := float64(binary.BigEndian.Uint64(sum[:8])) / float64(math.MaxUint64)
	return 1 + (2*u-1)*radiusJitter
}

// buildZones creates the zone layout and initial runtime state of a star.
func (g *Galaxy) buildZones(rec *domain.StarSystemRecord, count int) ([]domain.OrbitalZone, map[string]*domain.ZoneRuntimeState) {
	scale := math.Max(math.Sqrt(math.Max(rec.LuminositySolar, 0)), minScale)
	massSolar := math.Max(rec.MassSolar, 0)

	picked := pickTemplates(count)
	zones := make([]domain.OrbitalZone, 0, len(picked))
	runtime := make(map[string]*domain.ZoneRuntimeState, len(picked))

	name := rec.Name
	if name == "" {
		name = rec.ID
	}
	prev := 0.0
	for i, t := range picked {
		r := t.radiusAU * scale * jitter(rec.ID, i)
		if r <= prev {
			r = prev * 1.05
		}
		prev = r

		mass := g.params.ZoneMassPerSolarMassKg * massSolar * t.massFraction
		if t.kind == domain.ZoneAsteroidBelt {
			mass *= g.params.AsteroidBeltMultiplier
		}
		z := domain.OrbitalZone{
			ID:              fmt.Sprintf("%s_%s", rec.ID, t.suffix),
			Name:            fmt.Sprintf("%s %s", name, t.suffix),
			Kind:            t.kind,
			OrbitalRadiusAU: r,
			TotalMassKg:     mass,
			EscapeDeltaVKmS: t.escapeKmS,
			IsDysonZone:     t.kind == domain.ZoneDyson,
		}
		zones = append(zones, z)
		runtime[z.ID] = &domain.ZoneRuntimeState{
			MassRemainingKg: mass,
			StructureCounts: map[string]int{},
		}
	}
	return zones, runtime
}
