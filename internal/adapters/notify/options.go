package notify

import "github.com/okian/stomp/pkg/logger"

// Option configures a Notifier.
type Option func(*Notifier)

// WithMailer enables the email channel.
func WithMailer(m Mailer) Option {
	return func(n *Notifier) { n.mailer = m }
}

// WithPusher enables the push channel.
func WithPusher(p Pusher) Option {
	return func(n *Notifier) { n.pusher = p }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}
