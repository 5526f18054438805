package scan

import (
	"sync"
	"time"
)

// DwellClock drives automatic cursor advancement. Arm atomically replaces the
// previous timer under one lock, so two live timers for one engine can never
// exist; every armed timer carries a token and the engine discards expiries
// whose token is no longer current.
type DwellClock struct {
	mu    sync.Mutex
	timer *time.Timer
	token uint64
	fire  func(token uint64)
}

// NewDwellClock returns a clock delivering expiries through fire.
func NewDwellClock(fire func(token uint64)) *DwellClock {
	return &DwellClock{fire: fire}
}

// Arm schedules one expiry after d, invalidating any previously armed timer,
// and returns the token the expiry will carry.
func (c *DwellClock) Arm(d time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.token++
	token := c.token
	c.timer = time.AfterFunc(d, func() { c.fire(token) })
	return token
}

// Cancel stops the pending timer and invalidates its token, so an expiry
// already in flight is discarded on arrival instead of replayed.
func (c *DwellClock) Cancel() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.token++
	return c.token
}

// Token returns the currently valid token.
func (c *DwellClock) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}
