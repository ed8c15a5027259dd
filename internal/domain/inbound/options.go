package inbound

import (
	"time"

	"github.com/okian/stomp/pkg/logger"
)

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now for pong timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}
