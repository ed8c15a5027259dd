// Package registry tracks live client connections by (identity, role) and
// delivers outbound frames to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Conn is one open duplex channel to a client. Send must fail fast on a dead
// transport and must serialize concurrent writers so frames keep their order.
type Conn interface {
	Send(payload []byte) error
	Close() error
}

// Key groups connections.
type Key struct {
	Identity string
	Role     model.Role
}

func (k Key) String() string { return k.Identity + ":" + string(k.Role) }

// Delivery summarizes one send or broadcast.
type Delivery struct {
	Targets   int `json:"targets"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Disconnect reasons used in metrics.
const (
	reasonClosed          = "closed"
	reasonDeliveryFailure = "delivery_failure"
	reasonMoved           = "moved"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	conns     map[Key]map[Conn]struct{}
	keys      map[Conn]Key
	roleCount map[model.Role]int

	logger logger.Logger
}

// New builds an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		conns:     make(map[Key]map[Conn]struct{}),
		keys:      make(map[Conn]Key),
		roleCount: make(map[model.Role]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("registry")
	}
	return r
}

// Connect files c under (identity, role). The transport handshake must already
// be complete. A connection filed under another key is moved.
func (r *Registry) Connect(identity string, role model.Role, c Conn) error {
	if c == nil {
		return ErrNilConn
	}
	if identity == "" || !role.Valid() {
		return fmt.Errorf("%w: %q/%q", ErrInvalidKey, identity, role)
	}
	key := Key{Identity: identity, Role: role}

	r.mu.Lock()
	if prev, ok := r.keys[c]; ok {
		if prev == key {
			r.mu.Unlock()
			return nil
		}
		r.removeLocked(prev, c, reasonMoved)
	}
	set, ok := r.conns[key]
	if !ok {
		set = make(map[Conn]struct{})
		r.conns[key] = set
	}
	set[c] = struct{}{}
	r.keys[c] = key
	r.roleCount[role]++
	count := r.roleCount[role]
	r.mu.Unlock()

	metrics.RecordConnectionOpened(string(role))
	metrics.UpdateConnectionsActive(string(role), count)
	r.logger.Debug(context.Background(), "connection registered", logger.String("key", key.String()))
	return nil
}

// Disconnect removes exactly c from (identity, role). Absent connections are ignored.
func (r *Registry) Disconnect(identity string, role model.Role, c Conn) bool {
	return r.remove(Key{Identity: identity, Role: role}, c, reasonClosed)
}

func (r *Registry) remove(key Key, c Conn, reason string) bool {
	r.mu.Lock()
	removed := r.removeLocked(key, c, reason)
	r.mu.Unlock()
	if removed {
		r.logger.Debug(context.Background(), "connection removed",
			logger.String("key", key.String()), logger.String("reason", reason))
	}
	return removed
}

func (r *Registry) removeLocked(key Key, c Conn, reason string) bool {
	set, ok := r.conns[key]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, key)
	}
	delete(r.keys, c)
	r.roleCount[key.Role]--
	if r.roleCount[key.Role] <= 0 {
		delete(r.roleCount, key.Role)
	}
	metrics.RecordConnectionClosed(string(key.Role), reason)
	metrics.UpdateConnectionsActive(string(key.Role), r.roleCount[key.Role])
	return true
}

type target struct {
	key  Key
	conn Conn
}

// SendToIdentity delivers m to every connection under (identity, role).
// A missing key yields an empty Delivery, not an error.
func (r *Registry) SendToIdentity(ctx context.Context, m message.Outbound, identity string, role model.Role) (Delivery, error) {
	key := Key{Identity: identity, Role: role}
	r.mu.RLock()
	set := r.conns[key]
	targets := make([]target, 0, len(set))
	for c := range set {
		targets = append(targets, target{key: key, conn: c})
	}
	r.mu.RUnlock()
	return r.deliver(ctx, m, targets)
}

// BroadcastToRole delivers m to every connection whose key has the given role.
func (r *Registry) BroadcastToRole(ctx context.Context, m message.Outbound, role model.Role) (Delivery, error) {
	r.mu.RLock()
	targets := make([]target, 0, r.roleCount[role])
	for key, set := range r.conns {
		if key.Role != role {
			continue
		}
		for c := range set {
			targets = append(targets, target{key: key, conn: c})
		}
	}
	r.mu.RUnlock()
	return r.deliver(ctx, m, targets)
}

// deliver writes outside the lock. A failed connection is dropped and closed;
// the remaining targets still receive the frame.
func (r *Registry) deliver(ctx context.Context, m message.Outbound, targets []target) (Delivery, error) {
	d := Delivery{Targets: len(targets)}
	if len(targets) == 0 {
		return d, nil
	}
	payload, err := message.Encode(m)
	if err != nil {
		return d, fmt.Errorf("encode %s: %w", typeOf(m), err)
	}
	msgType := typeOf(m)
	for _, t := range targets {
		if err := t.conn.Send(payload); err != nil {
			d.Failed++
			metrics.RecordDeliveryFailure(msgType)
			r.logger.Warn(ctx, "delivery failed, dropping connection",
				logger.String("key", t.key.String()),
				logger.String("type", msgType),
				logger.Error(errors.Join(ErrDeliveryFailure, err)))
			if r.remove(t.key, t.conn, reasonDeliveryFailure) {
				_ = t.conn.Close()
			}
			continue
		}
		d.Delivered++
		metrics.RecordMessageDelivered(msgType)
	}
	return d, nil
}

func typeOf(m message.Outbound) string {
	if m == nil {
		return "nil"
	}
	return string(m.Type())
}

// Count returns the live connections under one key.
func (r *Registry) Count(identity string, role model.Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[Key{Identity: identity, Role: role}])
}

// CountByRole returns live connections per role.
func (r *Registry) CountByRole() map[model.Role]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[model.Role]int, len(r.roleCount))
	for role, n := range r.roleCount {
		out[role] = n
	}
	return out
}

// Len returns the total number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Keys returns the number of distinct (identity, role) keys.
func (r *Registry) Keys() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll closes and forgets every connection. Used at shutdown.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	targets := make([]target, 0, len(r.keys))
	for c, key := range r.keys {
		targets = append(targets, target{key: key, conn: c})
	}
	for _, t := range targets {
		r.removeLocked(t.key, t.conn, reasonClosed)
	}
	r.mu.Unlock()
	for _, t := range targets {
		_ = t.conn.Close()
	}
	return len(targets)
}
