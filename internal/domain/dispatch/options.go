package dispatch

import (
	"time"

	"github.com/okian/stomp/pkg/logger"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithSideChannel adds an out-of-band notifier for raised emergencies.
func WithSideChannel(s SideChannel) Option {
	return func(d *Dispatcher) {
		d.side = s
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}
