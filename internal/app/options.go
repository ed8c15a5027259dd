package service

import (
	"time"

	"github.com/okian/stomp/internal/adapters/notify"
	"github.com/okian/stomp/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now for every component the service builds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMailer replaces the SMTP mailer built from config.
func WithMailer(m notify.Mailer) Option {
	return func(s *Service) {
		s.mailer = m
	}
}

// WithPusher replaces the push gateway built from config.
func WithPusher(p notify.Pusher) Option {
	return func(s *Service) {
		s.pusher = p
	}
}
