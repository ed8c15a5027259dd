// Package dispatch turns emergency lifecycle events into role-targeted frames
// and hands their delivery to a task runner.
//
// Callers never wait for delivery: Raise, Resolve and Respond return once the
// fan-out job is accepted. Jobs for one emergency share a partition key, so an
// alert is delivered before its resolution. A job the runner refuses runs on
// its own goroutine, after earlier refused jobs with the same key; it is not
// ordered against jobs still queued in the runner.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stomp/internal/adapters/mq/queue"
	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/registry"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Deliverer is the slice of the connection registry the dispatcher drives.
type Deliverer interface {
	SendToIdentity(ctx context.Context, m message.Outbound, identity string, role model.Role) (registry.Delivery, error)
	BroadcastToRole(ctx context.Context, m message.Outbound, role model.Role) (registry.Delivery, error)
}

// Runner accepts jobs without blocking.
type Runner interface {
	Submit(ctx context.Context, j queue.Job) bool
}

// Ledger is the slice of the emergency ledger the dispatcher mutates.
type Ledger interface {
	Resolve(ctx context.Context, id string, by model.Actor) (model.EmergencyRecord, error)
	AddResponder(ctx context.Context, id string, ack model.ResponderAck) (model.EmergencyRecord, error)
}

// SideChannel receives raised emergencies after the realtime fan-out.
// Implementations are best effort; their failures never reach callers.
type SideChannel interface {
	EmergencyRaised(ctx context.Context, rec model.EmergencyRecord) error
}

// Job names.
const (
	JobRaise   = "raise"
	JobResolve = "resolve"
	JobUpdate  = "update"
	JobNotify  = "notify"
)

// ResponderRoles receive alerts and resolutions by broadcast.
var ResponderRoles = []model.Role{model.RoleCoach, model.RoleReferee, model.RoleTeammate}

// UpdateRoles receive responder acknowledgements by broadcast.
var UpdateRoles = []model.Role{model.RoleCoach, model.RoleReferee}

// Dispatcher composes frames and submits their delivery.
type Dispatcher struct {
	deliver Deliverer
	runner  Runner
	ledger  Ledger
	side    SideChannel

	fallback sync.WaitGroup
	tailMu   sync.Mutex
	tails    map[string]chan struct{} // key -> done of the last refused job
	now      func() time.Time
	logger   logger.Logger
}

// New builds a dispatcher.
func New(deliver Deliverer, runner Runner, ledger Ledger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deliver: deliver,
		runner:  runner,
		ledger:  ledger,
		tails:   make(map[string]chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().Named("dispatch")
	}
	return d
}

// Raise fans out a newly created, active record: one targeted send to the
// athlete concerned and one broadcast to each responder role.
func (d *Dispatcher) Raise(ctx context.Context, rec model.EmergencyRecord) error {
	if rec.ID == "" || rec.SubjectID == "" {
		return fmt.Errorf("%w: record needs an id and an athlete", ErrInvalidRecord)
	}
	if rec.Status != model.StatusActive {
		return fmt.Errorf("%w: %s is %s", ErrInvalidRecord, rec.ID, rec.Status)
	}
	rec = rec.Clone()
	d.submit(ctx, JobRaise, rec.ID, func(ctx context.Context) error {
		return d.fanOutRaise(ctx, rec)
	})
	if d.side != nil {
		d.submit(ctx, JobNotify, rec.ID, func(ctx context.Context) error {
			return d.side.EmergencyRaised(ctx, rec)
		})
	}
	return nil
}

// Resolve resolves id in the ledger and, on success, fans out the resolution
// to the athlete and the responder roles.
func (d *Dispatcher) Resolve(ctx context.Context, id string, by model.Actor) (model.EmergencyRecord, error) {
	rec, err := d.ledger.Resolve(ctx, id, by)
	if err != nil {
		return model.EmergencyRecord{}, err
	}
	metrics.RecordEmergencyResolved(string(rec.Kind))
	resolved := rec.Clone()
	d.submit(ctx, JobResolve, rec.ID, func(ctx context.Context) error {
		return d.fanOutResolve(ctx, resolved)
	})
	return rec, nil
}

// Respond records a responder acknowledgement and relays it to the athlete
// (when known) and to coaches and referees. Acknowledgements for emergencies
// that are no longer active are still relayed.
func (d *Dispatcher) Respond(ctx context.Context, sender model.Actor, resp message.EmergencyResponse) (model.ResponderAck, error) {
	ack := resp.Ack(sender, d.now())
	subject := resp.AthleteID
	rec, err := d.ledger.AddResponder(ctx, resp.EmergencyID, ack)
	switch {
	case err == nil:
		if subject == "" {
			subject = rec.SubjectID
		}
	case errors.Is(err, repository.ErrNotFound):
		d.logger.Debug(ctx, "response for inactive emergency", logger.String("emergency_id", resp.EmergencyID))
	default:
		return ack, err
	}

	update := message.Updated(resp.EmergencyID, subject, ack)
	d.submit(ctx, JobUpdate, resp.EmergencyID, func(ctx context.Context) error {
		return d.fanOutUpdate(ctx, update, subject)
	})
	return ack, nil
}

func (d *Dispatcher) fanOutRaise(ctx context.Context, rec model.EmergencyRecord) error {
	start := d.now()
	var errs []error
	d.send(ctx, &errs, message.SubjectAlert(rec), rec.SubjectID)
	responder := message.ResponderAlert(rec)
	for _, role := range ResponderRoles {
		d.broadcast(ctx, &errs, responder, role)
	}
	metrics.RecordEmergencyRaised(string(rec.Kind))
	metrics.RecordDispatchLatency(JobRaise, float64(d.now().Sub(start).Milliseconds()))
	return errors.Join(errs...)
}

func (d *Dispatcher) fanOutResolve(ctx context.Context, rec model.EmergencyRecord) error {
	start := d.now()
	var errs []error
	frame := message.Resolved(rec)
	d.send(ctx, &errs, frame, rec.SubjectID)
	for _, role := range ResponderRoles {
		d.broadcast(ctx, &errs, frame, role)
	}
	metrics.RecordDispatchLatency(JobResolve, float64(d.now().Sub(start).Milliseconds()))
	return errors.Join(errs...)
}

func (d *Dispatcher) fanOutUpdate(ctx context.Context, update message.EmergencyUpdate, subject string) error {
	start := d.now()
	var errs []error
	if subject != "" {
		d.send(ctx, &errs, update, subject)
	}
	for _, role := range UpdateRoles {
		d.broadcast(ctx, &errs, update, role)
	}
	metrics.RecordDispatchLatency(JobUpdate, float64(d.now().Sub(start).Milliseconds()))
	return errors.Join(errs...)
}

func (d *Dispatcher) send(ctx context.Context, errs *[]error, m message.Outbound, athleteID string) {
	if _, err := d.deliver.SendToIdentity(ctx, m, athleteID, model.RoleAthlete); err != nil {
		*errs = append(*errs, err)
	}
}

func (d *Dispatcher) broadcast(ctx context.Context, errs *[]error, m message.Outbound, role model.Role) {
	if _, err := d.deliver.BroadcastToRole(ctx, m, role); err != nil {
		*errs = append(*errs, err)
	}
}

// submit hands run to the runner. If the runner refuses (full or stopped) the
// job runs on its own goroutine so no alert is dropped.
func (d *Dispatcher) submit(ctx context.Context, name, key string, run func(context.Context) error) {
	job := queue.Job{ID: uuid.NewString(), Name: name, Key: key, Run: run}
	if d.runner != nil && d.runner.Submit(ctx, job) {
		return
	}
	d.logger.Warn(ctx, "runner refused job, running inline", logger.String("job", name), logger.String("key", key))
	d.fallback.Add(1)
	prev, done := d.chain(key)
	go func() {
		defer d.fallback.Done()
		defer d.release(key, done)
		if prev != nil {
			<-prev
		}
		defer func() {
			if r := recover(); r != nil {
				metrics.RecordWorkerError(name, "panic")
				d.logger.Error(context.Background(), "fallback job panicked", logger.String("job", name), logger.Any("panic", r))
			}
		}()
		if err := run(context.WithoutCancel(ctx)); err != nil {
			metrics.RecordWorkerError(name, "error")
			d.logger.Warn(context.Background(), "fallback job failed", logger.String("job", name), logger.Error(err))
		}
	}()
}

// chain queues a refused job behind the previous one with the same key.
func (d *Dispatcher) chain(key string) (prev, done chan struct{}) {
	done = make(chan struct{})
	if key == "" {
		return nil, done
	}
	d.tailMu.Lock()
	defer d.tailMu.Unlock()
	prev = d.tails[key]
	d.tails[key] = done
	return prev, done
}

func (d *Dispatcher) release(key string, done chan struct{}) {
	d.tailMu.Lock()
	if d.tails[key] == done {
		delete(d.tails, key)
	}
	d.tailMu.Unlock()
	close(done)
}

// Wait blocks until fallback jobs finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.fallback.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
