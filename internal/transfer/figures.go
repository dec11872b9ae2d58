package transfer

import (
	"math"

	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/deltav"
	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// Figures is the delta-v breakdown for one origin/destination pair at the
// origin's current mass. All velocities are km/s.
type Figures struct {
	FromZoneID     string  `json:"from_zone_id"`
	ToZoneID       string  `json:"to_zone_id"`
	EscapeKmS      float64 `json:"escape_km_s"`
	HohmannKmS     float64 `json:"hohmann_km_s"`
	RequiredKmS    float64 `json:"required_km_s"`
	ProbeKmS       float64 `json:"probe_km_s"`
	MassDriverKmS  float64 `json:"mass_driver_km_s"`
	Launchers      int     `json:"launchers"`
	ProbeExcessKmS float64 `json:"probe_excess_km_s"`
	MetalExcessKmS float64 `json:"metal_excess_km_s"`
	ProbeReachable bool    `json:"probe_reachable"`
	MetalReachable bool    `json:"metal_reachable"`
}

// CapacityFor returns the budget available to a resource kind.
func (f Figures) CapacityFor(kind domain.ResourceKind) float64 {
	return deltav.CapacityKmS(kind, f.ProbeKmS, f.MassDriverKmS)
}

// Reachable reports reachability for a resource kind.
func (f Figures) Reachable(kind domain.ResourceKind) bool {
	if kind == domain.ResourceMetal {
		return f.MetalReachable
	}
	return f.ProbeReachable
}

// ComputeFigures evaluates a pair of zones around a body with parameter mu.
func ComputeFigures(mu float64, from, to domain.OrbitalZone, rt domain.ZoneRuntimeState, skills domain.Skills, p config.PhysicsConfig) Figures {
	launchers := rt.StructureCounts[domain.StructureMassDriver]
	f := Figures{
		FromZoneID:    from.ID,
		ToZoneID:      to.ID,
		EscapeKmS:     deltav.EscapeKmS(from, rt.MassRemainingKg),
		HohmannKmS:    deltav.HohmannKmS(mu, from, to),
		ProbeKmS:      deltav.ProbeCapacityKmS(skills, p.Probe),
		MassDriverKmS: deltav.MassDriverMuzzleKmS(launchers, skills, p.MassDriver),
		Launchers:     launchers,
	}
	f.RequiredKmS = f.EscapeKmS + f.HohmannKmS

	probeCap := f.CapacityFor(domain.ResourceProbe)
	metalCap := f.CapacityFor(domain.ResourceMetal)
	f.ProbeExcessKmS = deltav.ExcessKmS(probeCap, f.RequiredKmS)
	f.MetalExcessKmS = deltav.ExcessKmS(metalCap, f.RequiredKmS)
	f.ProbeReachable = deltav.CanReach(domain.ResourceProbe, mu, from, to, rt.MassRemainingKg, probeCap, launchers)
	f.MetalReachable = deltav.CanReach(domain.ResourceMetal, mu, from, to, rt.MassRemainingKg, metalCap, launchers)
	return f
}

// shortfall builds the error for an unreachable order.
func (f Figures) shortfall(kind domain.ResourceKind) *domain.CapacityError {
	return &domain.CapacityError{
		RequiredKmS:     f.RequiredKmS,
		AvailableKmS:    f.CapacityFor(kind),
		EscapeKmS:       f.EscapeKmS,
		HohmannKmS:      f.HohmannKmS,
		ProbeKmS:        f.ProbeKmS,
		MassDriverKmS:   f.MassDriverKmS,
		MissingLauncher: kind == domain.ResourceMetal && f.Launchers <= 0,
	}
}

// travelDays is the Hohmann half-period shortened by mass-driver assist and,
// for probes that opt in, by spending their excess delta-v.
func travelDays(mu float64, from, to domain.OrbitalZone, kind domain.ResourceKind, f Figures, p config.PhysicsConfig) float64 {
	mult := 1.0
	if p.MassDriverSpeedRefKmS > 0 {
		mult += f.MassDriverKmS / p.MassDriverSpeedRefKmS
		if kind == domain.ResourceProbe && p.SpendExcessForSpeed && f.ProbeExcessKmS > 0 {
			mult += f.ProbeExcessKmS / p.MassDriverSpeedRefKmS
		}
	}
	days := deltav.TransferDays(mu, from, to, mult)
	return math.Max(days, minDays(p))
}

func minDays(p config.PhysicsConfig) float64 {
	if p.MinTransferDays > 0 {
		return p.MinTransferDays
	}
	return 0.01
}

// fuelKg is the propellant burned by quantity probes; metal burns none.
func fuelKg(kind domain.ResourceKind, quantity float64, f Figures, p config.PhysicsConfig) float64 {
	if kind != domain.ResourceProbe || quantity <= 0 {
		return 0
	}
	perUnit := deltav.FuelPerUnitKg(p.ProbeDryMassKg, f.RequiredKmS, p.ExhaustVelocityKmS)
	return perUnit * deltav.ProbeFuelFraction(f.RequiredKmS, f.MassDriverKmS) * quantity
}
