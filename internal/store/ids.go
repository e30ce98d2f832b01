package store

import (
	"sync"
	"time"

	"whomst/internal/core"
)

// IDGenerator issues strictly increasing timestamp identifiers with
// microsecond resolution. Two calls in the same microsecond get distinct
// ids.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator returns a generator backed by the wall clock.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{now: time.Now}
}

// Next returns the next identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	us := g.now().UnixMicro()
	if us <= g.last {
		us = g.last + 1
	}
	g.last = us
	return core.FormatMicros(us)
}
