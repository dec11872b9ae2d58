// Package guard protects the command surface with per-client rate limits.
package guard

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/expanse-sim/expanse-engine/internal/domain"
)

// GuardConfig holds rate limits.
type GuardConfig struct {
	RatePerSecond float64
	Burst         int
}

// Guard hands out one token bucket per client.
type Guard struct {
	Config GuardConfig

	mu       sync.Mutex
	limiters map[string]*client
	now      func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewGuard creates a Guard with the given limits.
func NewGuard(cfg GuardConfig) *Guard {
	return &Guard{
		Config:   cfg,
		limiters: make(map[string]*client),
		now:      time.Now,
	}
}

func (g *Guard) limiter(clientID string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.limiters[clientID]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rate.Limit(g.Config.RatePerSecond), g.Config.Burst)}
		g.limiters[clientID] = c
	}
	c.lastSeen = g.now()
	return c.limiter
}

// CheckRateLimit takes one token from the client's bucket. An empty bucket
// returns ErrRateLimitExceeded.
func (g *Guard) CheckRateLimit(clientID string) error {
	if !g.limiter(clientID).AllowN(g.now(), 1) {
		return domain.ErrRateLimitExceeded
	}
	return nil
}

// Sweep drops clients idle for longer than idle and returns how many were
// dropped.
func (g *Guard) Sweep(idle time.Duration) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.now().Add(-idle)
	n := 0
	for id, c := range g.limiters {
		if c.lastSeen.Before(cutoff) {
			delete(g.limiters, id)
			n++
		}
	}
	return n
}

// Clients returns the number of tracked clients.
func (g *Guard) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.limiters)
}

// ClientID identifies the caller of a request by remote host.
func ClientID(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
