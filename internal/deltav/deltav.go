// Package deltav computes transfer costs and vehicle capacities.
// Every function is pure: no state, no errors, deterministic results.
package deltav

import (
	"math"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

const (
	// AUMeters is one astronomical unit in metres.
	AUMeters = 1.495978707e11
	// SunMu is the Sun's standard gravitational parameter in m³/s².
	SunMu = 1.32712440018e20
	// SecondsPerDay converts transfer times to simulated days.
	SecondsPerDay = 86400.0
)

// CircularVelocityKmS returns orbital speed at radius rAU around mu.
func CircularVelocityKmS(mu, rAU float64) float64 {
	if mu <= 0 || rAU <= 0 {
		return 0
	}
	return math.Sqrt(mu/(rAU*AUMeters)) / 1000
}

// HohmannKmS returns the two-burn Hohmann cost between the circular orbits
// of from and to. Symmetric in direction; zero for the same zone.
func HohmannKmS(mu float64, from, to domain.OrbitalZone) float64 {
	if from.ID == to.ID || mu <= 0 {
		return 0
	}
	r1 := from.OrbitalRadiusAU * AUMeters
	r2 := to.OrbitalRadiusAU * AUMeters
	if r1 <= 0 || r2 <= 0 || r1 == r2 {
		return 0
	}
	if r1 > r2 {
		r1, r2 = r2, r1
	}

	dv1 := math.Sqrt(mu/r1) * (math.Sqrt(2*r2/(r1+r2)) - 1)
	dv2 := math.Sqrt(mu/r2) * (1 - math.Sqrt(2*r1/(r1+r2)))
	return (math.Abs(dv1) + math.Abs(dv2)) / 1000
}

// EscapeKmS scales the zone's baseline escape velocity by the square root
// of its remaining mass fraction. Zones without a gravity well return 0.
func EscapeKmS(zone domain.OrbitalZone, currentMassKg float64) float64 {
	if zone.IsDysonZone || zone.TotalMassKg <= 0 || currentMassKg <= 0 {
		return 0
	}
	return zone.EscapeDeltaVKmS * math.Sqrt(currentMassKg/zone.TotalMassKg)
}

// TotalRequiredKmS is escape from the origin plus the Hohmann transfer.
// Skills never enter this figure.
func TotalRequiredKmS(mu float64, from, to domain.OrbitalZone, currentMassKg float64) float64 {
	return EscapeKmS(from, currentMassKg) + HohmannKmS(mu, from, to)
}

// UpgradeFactor is 1 + Σ weight·(skill − 1). Skills missing from the map
// sit at baseline 1. The factor never drops below zero.
func UpgradeFactor(skills domain.Skills, weights map[string]float64) float64 {
	f := 1.0
	for name, w := range weights {
		level, ok := skills[name]
		if !ok {
			level = 1
		}
		f += w * (level - 1)
	}
	if f < 0 {
		return 0
	}
	return f
}

// ProbeCapacityKmS is the self-propulsion budget of a probe.
func ProbeCapacityKmS(skills domain.Skills, p domain.PropulsionParams) float64 {
	return (p.BaseKmS + p.StartingBonusKmS) * UpgradeFactor(skills, p.Weights)
}

// MassDriverMuzzleKmS is the launch assist from the origin's mass drivers,
// zero when none is built.
func MassDriverMuzzleKmS(launchers int, skills domain.Skills, p domain.PropulsionParams) float64 {
	if launchers <= 0 {
		return 0
	}
	return (p.BaseKmS + p.StartingBonusKmS) * UpgradeFactor(skills, p.Weights)
}

// CombinedCapacityKmS stacks mass-driver assist on top of self-propulsion.
func CombinedCapacityKmS(probeKmS, massDriverKmS float64) float64 {
	return probeKmS + massDriverKmS
}

// CapacityKmS returns the budget for a resource kind: metal has no
// self-propulsion and relies on the mass driver alone.
func CapacityKmS(kind domain.ResourceKind, probeKmS, massDriverKmS float64) float64 {
	if kind == domain.ResourceMetal {
		return massDriverKmS
	}
	return CombinedCapacityKmS(probeKmS, massDriverKmS)
}

// CanReach reports whether capacity covers the required delta-v. Metal also
// needs a launcher at the origin.
func CanReach(kind domain.ResourceKind, mu float64, from, to domain.OrbitalZone, currentMassKg, capacityKmS float64, launchers int) bool {
	if kind == domain.ResourceMetal && launchers <= 0 {
		return false
	}
	return capacityKmS >= TotalRequiredKmS(mu, from, to, currentMassKg)
}

// ExcessKmS is the net delta-v left after the transfer. Negative means a
// shortfall.
func ExcessKmS(capacityKmS, requiredKmS float64) float64 {
	return capacityKmS - requiredKmS
}

// TransferDays is the Hohmann half-period π·sqrt(a³/μ) in days, divided by
// speedMultiplier (values below 1 are treated as 1).
func TransferDays(mu float64, from, to domain.OrbitalZone, speedMultiplier float64) float64 {
	if mu <= 0 {
		return 0
	}
	a := (from.OrbitalRadiusAU + to.OrbitalRadiusAU) / 2 * AUMeters
	if a <= 0 {
		return 0
	}
	if speedMultiplier < 1 {
		speedMultiplier = 1
	}
	seconds := math.Pi * math.Sqrt(a*a*a/mu)
	return seconds / SecondsPerDay / speedMultiplier
}

// FuelPerUnitKg is the Tsiolkovsky propellant mass for one unit of dry mass
// to reach requiredKmS with the given exhaust velocity.
func FuelPerUnitKg(dryMassKg, requiredKmS, exhaustKmS float64) float64 {
	if dryMassKg <= 0 || requiredKmS <= 0 || exhaustKmS <= 0 {
		return 0
	}
	return dryMassKg * (math.Exp(requiredKmS/exhaustKmS) - 1)
}

// ProbeFuelFraction is the share of the required delta-v the probe supplies
// itself after mass-driver assist. The driver cannot supply more than is
// required.
func ProbeFuelFraction(requiredKmS, massDriverKmS float64) float64 {
	if requiredKmS <= 0 {
		return 0
	}
	assist := math.Min(math.Max(massDriverKmS, 0), requiredKmS)
	probe := math.Max(0, requiredKmS-assist)
	return probe / requiredKmS
}
