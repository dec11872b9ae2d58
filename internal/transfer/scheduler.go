// Package transfer schedules shipments of probes and metal between the
// orbital zones of one star system.
package transfer

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// Zones resolves static zones and their mutable runtime state.
type Zones interface {
	Zone(id string) (domain.OrbitalZone, error)
	Runtime(id string) (*domain.ZoneRuntimeState, error)
}

// Arrival is one batch credited to its destination.
type Arrival struct {
	SystemID     string              `json:"system_id,omitempty"`
	TransferID   string              `json:"transfer_id"`
	ToZoneID     string              `json:"to_zone_id"`
	ResourceKind domain.ResourceKind `json:"resource_kind"`
	Quantity     float64             `json:"quantity"`
}

// Report describes what one Advance call changed.
type Report struct {
	Arrivals  []Arrival                 `json:"arrivals"`
	Spawned   int                       `json:"spawned"`
	Completed []domain.TransferInstance `json:"completed"`
	Cancelled []domain.TransferInstance `json:"cancelled"`
}

// Empty reports whether nothing happened.
func (r Report) Empty() bool {
	return len(r.Arrivals) == 0 && r.Spawned == 0 && len(r.Completed) == 0 && len(r.Cancelled) == 0
}

// Progress is the elapsed fraction of a transfer's trip.
type Progress struct {
	ID       string    `json:"id"`
	Fraction float64   `json:"fraction"`
	Batches  []float64 `json:"batches,omitempty"`
}

// Scheduler owns the transfers of one star system.
type Scheduler struct {
	zones  Zones
	mu     float64
	params config.PhysicsConfig

	byID  map[string]*domain.TransferInstance
	order []string
}

// New creates a scheduler over zones orbiting a body with parameter mu.
func New(zones Zones, mu float64, params config.PhysicsConfig) *Scheduler {
	return &Scheduler{
		zones:  zones,
		mu:     mu,
		params: params,
		byID:   make(map[string]*domain.TransferInstance),
	}
}

// Evaluate returns the delta-v figures for a pair of zones at current mass.
func (s *Scheduler) Evaluate(fromID, toID string, skills domain.Skills) (Figures, error) {
	from, to, rt, err := s.resolve(fromID, toID)
	if err != nil {
		return Figures{}, err
	}
	return ComputeFigures(s.mu, from, to, *rt, skills, s.params), nil
}

func (s *Scheduler) resolve(fromID, toID string) (domain.OrbitalZone, domain.OrbitalZone, *domain.ZoneRuntimeState, error) {
	from, err := s.zones.Zone(fromID)
	if err != nil {
		return domain.OrbitalZone{}, domain.OrbitalZone{}, nil, err
	}
	to, err := s.zones.Zone(toID)
	if err != nil {
		return domain.OrbitalZone{}, domain.OrbitalZone{}, nil, err
	}
	rt, err := s.zones.Runtime(fromID)
	if err != nil {
		return domain.OrbitalZone{}, domain.OrbitalZone{}, nil, err
	}
	return from, to, rt, nil
}

// Create validates and launches an order. Unreachable orders fail with a
// *domain.CapacityError and are not created. One-time quantities leave the
// origin immediately.
func (s *Scheduler) Create(order domain.TransferOrder, skills domain.Skills, now float64) (domain.TransferInstance, error) {
	if err := validateOrder(order); err != nil {
		return domain.TransferInstance{}, err
	}
	from, to, rt, err := s.resolve(order.FromZoneID, order.ToZoneID)
	if err != nil {
		return domain.TransferInstance{}, err
	}

	f := ComputeFigures(s.mu, from, to, *rt, skills, s.params)
	if !f.Reachable(order.ResourceKind) {
		return domain.TransferInstance{}, f.shortfall(order.ResourceKind)
	}

	days := travelDays(s.mu, from, to, order.ResourceKind, f, s.params)
	inst := &domain.TransferInstance{
		ID:                uuid.NewString(),
		Order:             order,
		Status:            domain.TransferTraveling,
		DepartureDay:      now,
		TransferDays:      days,
		RequiredDeltaVKmS: f.RequiredKmS,
		ExcessDeltaVKmS:   excessFor(f, order.ResourceKind),
		LastSpawnDay:      now,
	}

	if order.Mode == domain.ModeOneTime {
		if available(rt, order.ResourceKind) < order.Quantity {
			return domain.TransferInstance{}, domain.NewEngineError(domain.ErrInsufficientResources.Code,
				fmt.Sprintf("%s: %s holds %.2f %s, %.2f requested", domain.ErrInsufficientResources.Message,
					order.FromZoneID, available(rt, order.ResourceKind), order.ResourceKind, order.Quantity))
		}
		withdraw(rt, order.ResourceKind, order.Quantity)
		fuel := fuelKg(order.ResourceKind, order.Quantity, f, s.params)
		inst.ArrivalDay = now + days
		inst.FuelKg = fuel
		inst.Batches = []domain.Batch{{
			DepartureDay: now,
			ArrivalDay:   now + days,
			Quantity:     order.Quantity,
			FuelKg:       fuel,
		}}
	}

	s.byID[inst.ID] = inst
	s.order = append(s.order, inst.ID)
	return inst.Clone(), nil
}

func excessFor(f Figures, kind domain.ResourceKind) float64 {
	if kind == domain.ResourceMetal {
		return f.MetalExcessKmS
	}
	return f.ProbeExcessKmS
}

func validateOrder(o domain.TransferOrder) error {
	var problems []string
	if o.FromZoneID == "" || o.ToZoneID == "" {
		problems = append(problems, "from_zone_id and to_zone_id are required")
	} else if o.FromZoneID == o.ToZoneID {
		problems = append(problems, "origin and destination must differ")
	}
	if o.ResourceKind != domain.ResourceProbe && o.ResourceKind != domain.ResourceMetal {
		problems = append(problems, fmt.Sprintf("unknown resource kind %q", o.ResourceKind))
	}
	switch o.Mode {
	case domain.ModeOneTime:
		if o.Quantity <= 0 || math.IsInf(o.Quantity, 0) || math.IsNaN(o.Quantity) {
			problems = append(problems, "one-time quantity must be positive")
		}
	case domain.ModeContinuous:
		pct := ratePercent(o)
		if pct <= 0 || pct > 100 {
			if o.ResourceKind == domain.ResourceMetal {
				problems = append(problems, "rate_percent_of_stored must be in (0, 100]")
			} else {
				problems = append(problems, "rate_percent_of_production must be in (0, 100]")
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown mode %q", o.Mode))
	}

	if len(problems) > 0 {
		return domain.NewEngineError(domain.ErrInvalidOrder.Code,
			fmt.Sprintf("%s: %v", domain.ErrInvalidOrder.Message, problems))
	}
	return nil
}

// ratePercent picks the rate field that matches the resource kind.
func ratePercent(o domain.TransferOrder) float64 {
	if o.ResourceKind == domain.ResourceMetal {
		return o.RatePercentOfStored
	}
	return o.RatePercentOfProduction
}

func available(rt *domain.ZoneRuntimeState, kind domain.ResourceKind) float64 {
	if kind == domain.ResourceMetal {
		return rt.StoredMetalKg
	}
	return rt.ProbeCount
}

func withdraw(rt *domain.ZoneRuntimeState, kind domain.ResourceKind, q float64) {
	if kind == domain.ResourceMetal {
		rt.StoredMetalKg = math.Max(0, rt.StoredMetalKg-q)
		return
	}
	rt.ProbeCount = math.Max(0, rt.ProbeCount-q)
}

func deposit(rt *domain.ZoneRuntimeState, kind domain.ResourceKind, q float64) {
	if kind == domain.ResourceMetal {
		rt.StoredMetalKg += q
		return
	}
	rt.ProbeCount += q
}

// Advance runs one tick. Arrivals are credited first, then continuous
// transfers spawn new batches, then terminal transfers are reported and
// dropped. A batch that arrives in this call cannot be re-spawned in it.
func (s *Scheduler) Advance(now float64, skills domain.Skills) Report {
	var rep Report

	for _, id := range s.order {
		inst := s.byID[id]
		rep.Arrivals = append(rep.Arrivals, s.resolveArrivals(inst, now)...)
	}

	for _, id := range s.order {
		inst := s.byID[id]
		if inst.Order.Mode != domain.ModeContinuous || inst.Status.Terminal() {
			continue
		}
		if s.spawn(inst, now, skills) {
			rep.Spawned++
		}
	}

	kept := s.order[:0]
	for _, id := range s.order {
		inst := s.byID[id]
		switch inst.Status {
		case domain.TransferCompleted:
			rep.Completed = append(rep.Completed, inst.Clone())
			delete(s.byID, id)
		case domain.TransferCancelled:
			rep.Cancelled = append(rep.Cancelled, inst.Clone())
			delete(s.byID, id)
		default:
			kept = append(kept, id)
		}
	}
	s.order = kept
	return rep
}

func (s *Scheduler) resolveArrivals(inst *domain.TransferInstance, now float64) []Arrival {
	if len(inst.Batches) == 0 {
		return nil
	}
	var out []Arrival
	pending := inst.Batches[:0]
	for _, b := range inst.Batches {
		if b.ArrivalDay > now {
			pending = append(pending, b)
			continue
		}
		rt, err := s.zones.Runtime(inst.Order.ToZoneID)
		if err != nil {
			// Destination vanished from the zone set; the batch is lost.
			continue
		}
		deposit(rt, inst.Order.ResourceKind, b.Quantity)
		inst.DeliveredQuantity += b.Quantity
		out = append(out, Arrival{
			SystemID:     inst.Order.SystemID,
			TransferID:   inst.ID,
			ToZoneID:     inst.Order.ToZoneID,
			ResourceKind: inst.Order.ResourceKind,
			Quantity:     b.Quantity,
		})
	}
	inst.Batches = pending

	if inst.Order.Mode == domain.ModeOneTime && len(inst.Batches) == 0 && !inst.Status.Terminal() {
		_ = transition(inst, domain.TransferCompleted)
	}
	return out
}

// spawn emits at most one batch for a continuous transfer and completes it
// once the source is exhausted with nothing left in flight.
func (s *Scheduler) spawn(inst *domain.TransferInstance, now float64, skills domain.Skills) bool {
	from, to, rt, err := s.resolve(inst.Order.FromZoneID, inst.Order.ToZoneID)
	if err != nil {
		return false
	}
	if depleted(rt, inst.Order.ResourceKind) {
		if len(inst.Batches) == 0 {
			_ = transition(inst, domain.TransferCompleted)
		}
		return false
	}
	if inst.Status != domain.TransferTraveling {
		return false
	}

	elapsed := now - inst.LastSpawnDay
	if elapsed <= 0 {
		return false
	}
	inst.LastSpawnDay = now

	pct := ratePercent(inst.Order) / 100
	var qty float64
	if inst.Order.ResourceKind == domain.ResourceMetal {
		qty = rt.StoredMetalKg * pct
	} else {
		qty = math.Min(rt.ProbeCount, rt.ProbeProductionPerDay*elapsed*pct)
	}
	if qty <= 0 {
		return false
	}
	if s.maxInFlight() <= len(inst.Batches) {
		return false
	}

	f := ComputeFigures(s.mu, from, to, *rt, skills, s.params)
	if !f.Reachable(inst.Order.ResourceKind) {
		return false
	}

	days := travelDays(s.mu, from, to, inst.Order.ResourceKind, f, s.params)
	fuel := fuelKg(inst.Order.ResourceKind, qty, f, s.params)
	withdraw(rt, inst.Order.ResourceKind, qty)
	inst.Batches = append(inst.Batches, domain.Batch{
		DepartureDay: now,
		ArrivalDay:   now + days,
		Quantity:     qty,
		FuelKg:       fuel,
	})
	inst.FuelKg += fuel
	inst.TransferDays = days
	inst.RequiredDeltaVKmS = f.RequiredKmS
	inst.ExcessDeltaVKmS = excessFor(f, inst.Order.ResourceKind)
	return true
}

// depleted reports a source with nothing to send and nothing to refill it.
func depleted(rt *domain.ZoneRuntimeState, kind domain.ResourceKind) bool {
	if kind == domain.ResourceMetal {
		return rt.StoredMetalKg <= 0 && rt.MassRemainingKg <= 0
	}
	return rt.ProbeCount <= 0 && rt.ProbeProductionPerDay <= 0
}

func (s *Scheduler) maxInFlight() int {
	if s.params.MaxInFlightBatches > 0 {
		return s.params.MaxInFlightBatches
	}
	return 64
}

func (s *Scheduler) lookup(id string) (*domain.TransferInstance, error) {
	inst, ok := s.byID[id]
	if !ok {
		return nil, domain.NewEngineError(domain.ErrTransferNotFound.Code,
			fmt.Sprintf("%s: %s", domain.ErrTransferNotFound.Message, id))
	}
	return inst, nil
}

// Cancel marks a transfer cancelled and discards its undelivered batches.
// It is reported and dropped by the next Advance.
func (s *Scheduler) Cancel(id string) error {
	inst, err := s.lookup(id)
	if err != nil {
		return err
	}
	if err := transition(inst, domain.TransferCancelled); err != nil {
		return err
	}
	inst.Batches = nil
	return nil
}

// Pause stops a continuous transfer from spawning. In-flight batches still
// arrive.
func (s *Scheduler) Pause(id string) error {
	inst, err := s.lookup(id)
	if err != nil {
		return err
	}
	return transition(inst, domain.TransferPaused)
}

// Resume restarts spawning from now; time spent paused does not accrue.
func (s *Scheduler) Resume(id string, now float64) error {
	inst, err := s.lookup(id)
	if err != nil {
		return err
	}
	if inst.Status != domain.TransferPaused {
		return domain.NewEngineError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("illegal transition %s -> %s", inst.Status, domain.TransferTraveling))
	}
	if err := transition(inst, domain.TransferTraveling); err != nil {
		return err
	}
	inst.LastSpawnDay = now
	return nil
}

// Get returns a copy of one transfer.
func (s *Scheduler) Get(id string) (domain.TransferInstance, error) {
	inst, err := s.lookup(id)
	if err != nil {
		return domain.TransferInstance{}, err
	}
	return inst.Clone(), nil
}

// List returns copies of all live transfers in creation order.
func (s *Scheduler) List() []domain.TransferInstance {
	out := make([]domain.TransferInstance, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Len returns the number of live transfers.
func (s *Scheduler) Len() int { return len(s.order) }

// Progress reports the elapsed fraction of every live transfer. Continuous
// transfers report each batch and use the oldest batch as their fraction.
func (s *Scheduler) Progress(now float64) []Progress {
	out := make([]Progress, 0, len(s.order))
	for _, id := range s.order {
		inst := s.byID[id]
		p := Progress{ID: id}
		for _, b := range inst.Batches {
			p.Batches = append(p.Batches, fraction(b.DepartureDay, b.ArrivalDay, now))
		}
		switch {
		case inst.Order.Mode == domain.ModeOneTime && inst.ArrivalDay > inst.DepartureDay:
			p.Fraction = fraction(inst.DepartureDay, inst.ArrivalDay, now)
		case len(p.Batches) > 0:
			p.Fraction = p.Batches[0]
		}
		out = append(out, p)
	}
	return out
}

func fraction(dep, arr, now float64) float64 {
	if arr <= dep {
		return 1
	}
	return math.Max(0, math.Min(1, (now-dep)/(arr-dep)))
}

// Restore replaces all live transfers, as when loading a snapshot.
// Terminal records are dropped.
func (s *Scheduler) Restore(instances []domain.TransferInstance) {
	s.byID = make(map[string]*domain.TransferInstance, len(instances))
	s.order = s.order[:0]
	for _, in := range instances {
		if in.Status.Terminal() || in.ID == "" {
			continue
		}
		if _, dup := s.byID[in.ID]; dup {
			continue
		}
		c := in.Clone()
		s.byID[c.ID] = &c
		s.order = append(s.order, c.ID)
	}
}
