package api

import (
	"github.com/okian/stomp/internal/adapters/ws"
	"github.com/okian/stomp/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWebsocketSettings tunes websocket connections. Its origin list also
// drives CORS.
func WithWebsocketSettings(settings ws.Settings) Option {
	return func(s *Server) {
		s.settings = settings
	}
}
