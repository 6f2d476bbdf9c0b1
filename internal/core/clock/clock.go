// Package clock provides the time source used by the payment core.
// Every clock is pinned to one location so that due dates and fiscal
// entry dates never depend on the host timezone.
package clock

import (
	"sync"
	"time"

	"stoq/internal/core/types"
)

// Clock returns timezone-aware timestamps.
type Clock interface {
	// Now returns the current instant in the clock location.
	Now() time.Time
	// Today returns the current local date (midnight in the clock location).
	Today() time.Time
	// Location returns the pinned location.
	Location() *time.Location
}

// System is a Clock backed by time.Now.
type System struct {
	loc *time.Location
}

// New creates a system clock pinned to loc (UTC when nil).
func New(loc *time.Location) *System {
	if loc == nil {
		loc = time.UTC
	}
	return &System{loc: loc}
}

// NewFromName loads the named IANA location.
func NewFromName(name string) (*System, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	return New(loc), nil
}

func (c *System) Now() time.Time          { return time.Now().In(c.loc) }
func (c *System) Today() time.Time        { return types.DateOf(c.Now(), c.loc) }
func (c *System) Location() *time.Location { return c.loc }

// Manual is a settable Clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// Fixed returns a Manual clock frozen at t.
func Fixed(t time.Time) *Manual {
	return &Manual{now: t}
}

func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Manual) Today() time.Time {
	now := c.Now()
	return types.DateOf(now, now.Location())
}

func (c *Manual) Location() *time.Location { return c.Now().Location() }

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
