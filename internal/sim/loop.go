package sim

import (
	"context"
	"sync"
	"time"

	"github.com/expanse-sim/expanse-engine/internal/snapshot"
)

// Observer receives the changes of every tick that changed something. It
// is called without the loop lock held.
type Observer func(Changes)

// Loop drives a Simulation in wall-clock time and serializes every access
// to it.
type Loop struct {
	mu          sync.Mutex
	sim         *Simulation
	interval    time.Duration
	daysPerTick float64
	observer    Observer
}

// NewLoop advances sim by daysPerTick simulated days every interval.
func NewLoop(sim *Simulation, interval time.Duration, daysPerTick float64, observer Observer) *Loop {
	return &Loop{sim: sim, interval: interval, daysPerTick: daysPerTick, observer: observer}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := l.Step(); err != nil {
				return err
			}
		}
	}
}

// Step advances one tick immediately.
func (l *Loop) Step() (Changes, error) {
	l.mu.Lock()
	ch, err := l.sim.Tick(l.sim.Now() + l.daysPerTick)
	l.mu.Unlock()
	if err != nil {
		return ch, err
	}
	if l.observer != nil && !ch.Empty() {
		l.observer(ch)
	}
	return ch, nil
}

// Do runs fn with exclusive access to the simulation.
func (l *Loop) Do(fn func(*Simulation) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.sim)
}

// Export captures the simulation state under the loop lock.
func (l *Loop) Export() *snapshot.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sim.Export()
}
