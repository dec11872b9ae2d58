// Package sim is the simulation context: it owns the galaxy and the
// per-system transfer schedulers, advances them in a fixed order each
// tick, and is the only place state may be mutated.
package sim

import (
	"fmt"
	"log"
	"sort"

	"github.com/expanse-sim/expanse-engine/internal/catalog"
	"github.com/expanse-sim/expanse-engine/internal/config"
	"github.com/expanse-sim/expanse-engine/internal/domain"
	"github.com/expanse-sim/expanse-engine/internal/galaxy"
	"github.com/expanse-sim/expanse-engine/internal/transfer"
)

// Changes records what a tick altered. Callers refresh views from it
// instead of diffing state.
type Changes struct {
	Day                 float64                       `json:"day"`
	Arrivals            []transfer.Arrival            `json:"arrivals,omitempty"`
	Spawned             int                           `json:"spawned"`
	Completed           []domain.TransferInstance     `json:"completed,omitempty"`
	Cancelled           []domain.TransferInstance     `json:"cancelled,omitempty"`
	InterstellarArrived []domain.InterstellarTransfer `json:"interstellar_arrived,omitempty"`
	Colonized           []string                      `json:"colonized,omitempty"`
	AggregateChanged    bool                          `json:"aggregate_changed"`
}

// Empty reports whether the tick changed nothing observable.
func (c Changes) Empty() bool {
	return len(c.Arrivals) == 0 && c.Spawned == 0 && len(c.Completed) == 0 &&
		len(c.Cancelled) == 0 && len(c.InterstellarArrived) == 0 &&
		len(c.Colonized) == 0 && !c.AggregateChanged
}

// Simulation is the explicit simulation context. It is not safe for
// concurrent use; Loop serializes access.
type Simulation struct {
	params config.PhysicsConfig
	logger *log.Logger

	galaxy     *galaxy.Galaxy
	schedulers map[string]*transfer.Scheduler
	active     string
	skills     domain.Skills
	now        float64
}

// New builds a simulation from a catalog. The home system is active and
// colonized; time starts at day 0.
func New(cat *catalog.Catalog, params config.PhysicsConfig, logger *log.Logger) (*Simulation, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	reg, err := cat.Registry()
	if err != nil {
		return nil, err
	}
	g, err := galaxy.New(cat.Stars, cat.HomeSystemID, reg, params, logger)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		params:     params,
		logger:     logger,
		galaxy:     g,
		schedulers: make(map[string]*transfer.Scheduler),
		active:     cat.HomeSystemID,
		skills:     domain.Skills{},
	}, nil
}

// Now returns the simulated day of the last tick.
func (s *Simulation) Now() float64 { return s.now }

// ActiveSystem returns the system currently in view.
func (s *Simulation) ActiveSystem() string { return s.active }

// HomeSystem returns the home system id.
func (s *Simulation) HomeSystem() string { return s.galaxy.HomeID() }

// Skills returns a copy of the research skill levels.
func (s *Simulation) Skills() domain.Skills {
	out := make(domain.Skills, len(s.skills))
	for k, v := range s.skills {
		out[k] = v
	}
	return out
}

// Tick advances the simulation to now. Interstellar arrivals and
// colonization run first, then production, then each system's transfer
// arrivals and spawns, and finally the aggregate is recomputed.
func (s *Simulation) Tick(now float64) (Changes, error) {
	if now < s.now {
		return Changes{}, domain.NewEngineError(domain.ErrNonMonotonicTime.Code,
			fmt.Sprintf("%s: %.4f < %.4f", domain.ErrNonMonotonicTime.Message, now, s.now))
	}
	dt := now - s.now
	ch := Changes{Day: now}

	gr := s.galaxy.Advance(now)
	ch.InterstellarArrived = gr.Arrived
	ch.Colonized = gr.Colonized

	for _, id := range s.galaxy.ColonizedIDs() {
		sys, err := s.galaxy.System(id)
		if err != nil || !sys.Generated() {
			continue
		}
		produce(sys, dt)
	}

	for _, id := range s.schedulerIDs() {
		rep := s.schedulers[id].Advance(now, s.skills)
		ch.Arrivals = append(ch.Arrivals, rep.Arrivals...)
		ch.Spawned += rep.Spawned
		ch.Completed = append(ch.Completed, rep.Completed...)
		ch.Cancelled = append(ch.Cancelled, rep.Cancelled...)
	}

	ch.AggregateChanged = s.galaxy.Recompute()
	s.now = now
	return ch, nil
}

// produce adds each zone's probe production for dt days.
func produce(sys *galaxy.System, dt float64) {
	if dt <= 0 {
		return
	}
	for _, z := range sys.Zones() {
		rt, err := sys.Runtime(z.ID)
		if err != nil || rt.ProbeProductionPerDay <= 0 {
			continue
		}
		rt.ProbeCount += rt.ProbeProductionPerDay * dt
	}
}

func (s *Simulation) schedulerIDs() []string {
	ids := make([]string, 0, len(s.schedulers))
	for id := range s.schedulers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// system returns a colonized system, generating its zones on first visit.
func (s *Simulation) system(id string) (*galaxy.System, error) {
	if id == "" {
		id = s.active
	}
	return s.galaxy.Generate(id)
}

// scheduler returns the transfer scheduler of a system, creating it on
// first use.
func (s *Simulation) scheduler(id string) (*transfer.Scheduler, *galaxy.System, error) {
	sys, err := s.system(id)
	if err != nil {
		return nil, nil, err
	}
	sch, ok := s.schedulers[sys.Record.ID]
	if !ok {
		sch = transfer.New(sys, sys.Mu, s.params)
		s.schedulers[sys.Record.ID] = sch
	}
	return sch, sys, nil
}

// findTransfer locates the scheduler that owns a transfer id.
func (s *Simulation) findTransfer(id string) (*transfer.Scheduler, error) {
	for _, sid := range s.schedulerIDs() {
		sch := s.schedulers[sid]
		if _, err := sch.Get(id); err == nil {
			return sch, nil
		}
	}
	return nil, domain.NewEngineError(domain.ErrTransferNotFound.Code,
		fmt.Sprintf("%s: %s", domain.ErrTransferNotFound.Message, id))
}

// warn logs state errors, which leave the simulation unchanged, and passes
// every error through.
func (s *Simulation) warn(op string, err error) error {
	if err != nil && domain.IsStateError(err) {
		s.logger.Printf("WARN: %s: %v", op, err)
	}
	return err
}
