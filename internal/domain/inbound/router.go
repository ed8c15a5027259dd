// Package inbound routes frames read from a live connection.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/policy"
	"github.com/okian/stomp/internal/domain/registry"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Conn is a registry connection that can also be read from.
// Read blocks until a frame arrives, the peer goes away or ctx ends.
type Conn interface {
	registry.Conn
	Read(ctx context.Context) ([]byte, error)
}

// Connections is the slice of the registry the router needs.
type Connections interface {
	Connect(identity string, role model.Role, c registry.Conn) error
	Disconnect(identity string, role model.Role, c registry.Conn) bool
}

// Responder relays emergency responses.
type Responder interface {
	Respond(ctx context.Context, sender model.Actor, resp message.EmergencyResponse) (model.ResponderAck, error)
}

// Router owns one read loop per connection.
type Router struct {
	conns     Connections
	responder Responder
	now       func() time.Time
	logger    logger.Logger
}

// New builds a router.
func New(conns Connections, responder Responder, opts ...Option) *Router {
	r := &Router{conns: conns, responder: responder, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("inbound")
	}
	return r
}

// Serve registers c under the actor, reads frames until the peer leaves and
// unregisters c on the way out. A read error ends the loop normally; a failed
// reply is returned.
func (r *Router) Serve(ctx context.Context, actor model.Actor, c Conn) error {
	if err := r.conns.Connect(actor.ID, actor.Role, c); err != nil {
		return fmt.Errorf("register connection: %w", err)
	}
	defer r.conns.Disconnect(actor.ID, actor.Role, c)

	log := r.logger.With(logger.String("user_id", actor.ID), logger.String("role", string(actor.Role)))
	log.Debug(ctx, "connection open")
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		raw, err := c.Read(ctx)
		if err != nil {
			log.Debug(ctx, "connection closed", logger.Error(err))
			return nil
		}
		reply := r.Handle(ctx, actor, raw)
		if reply == nil {
			continue
		}
		payload, err := message.Encode(reply)
		if err != nil {
			return fmt.Errorf("encode %s: %w", reply.Type(), err)
		}
		if err := c.Send(payload); err != nil {
			return fmt.Errorf("reply %s: %w", reply.Type(), err)
		}
	}
}

// Handle processes one raw frame and returns the reply for the sender, if any.
func (r *Router) Handle(ctx context.Context, actor model.Actor, raw []byte) message.Outbound {
	in, err := message.Decode(raw)
	if err != nil {
		metrics.RecordInboundMessage("invalid")
		r.logger.Debug(ctx, "rejected frame", logger.String("user_id", actor.ID), logger.Error(err))
		return message.ErrorFor(err)
	}
	metrics.RecordInboundMessage(string(in.Type()))

	switch m := in.(type) {
	case message.Ping:
		return message.PongFor(m, r.now())
	case message.EmergencyResponse:
		return r.respond(ctx, actor, m)
	default:
		return message.ErrorFor(fmt.Errorf("%w: %q", message.ErrUnknownType, in.Type()))
	}
}

func (r *Router) respond(ctx context.Context, actor model.Actor, m message.EmergencyResponse) message.Outbound {
	if err := policy.RequireActor(actor, policy.Responders...); err != nil {
		r.logger.Warn(ctx, "response from non-responder",
			logger.String("user_id", actor.ID),
			logger.String("role", string(actor.Role)),
			logger.String("emergency_id", m.EmergencyID))
		return message.Forbidden(m.Type(), actor.Role)
	}
	if _, err := r.responder.Respond(ctx, actor, m); err != nil {
		r.logger.Error(ctx, "relay response failed",
			logger.String("emergency_id", m.EmergencyID),
			logger.Error(err))
		return message.ErrorFor(errors.Join(ErrRelay, err))
	}
	return nil
}
