package mockdata

import (
	"math/rand"
	"time"
)

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the numeric output reproducible.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // mock figures only
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}
