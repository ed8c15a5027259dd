// Package repository holds the in-memory emergency ledger and the SQL-backed stores.
package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// Ledger is the id -> emergency map. Resolve has exactly one winner per id.
type Ledger interface {
	// Create inserts an active record. ErrDuplicateID if the id is taken.
	Create(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, error)
	// Get returns an active record or ErrNotFound.
	Get(ctx context.Context, id string) (model.EmergencyRecord, error)
	// ListActive returns active records in no particular order.
	ListActive(ctx context.Context) []model.EmergencyRecord
	// Resolve moves the record out of the active set. ErrNotFound if absent or already resolved.
	Resolve(ctx context.Context, id string, by model.Actor) (model.EmergencyRecord, error)
	// AddResponder attaches an acknowledgement to an active record.
	AddResponder(ctx context.Context, id string, ack model.ResponderAck) (model.EmergencyRecord, error)
	// ActiveForSubject returns the active record concerning an athlete, if any.
	ActiveForSubject(ctx context.Context, subjectID string) (model.EmergencyRecord, bool)
	// CreateUnlessActive inserts rec unless its subject already has an active
	// record, which is returned instead with created false.
	CreateUnlessActive(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, bool, error)
	// Lookup returns an active or retained resolved record.
	Lookup(ctx context.Context, id string) (model.EmergencyRecord, error)
	// ListResolved returns retained resolved records, newest first.
	ListResolved(ctx context.Context, limit int) []model.EmergencyRecord
	// Count returns the number of active records.
	Count(ctx context.Context) int
}

const (
	defaultShards      = 16
	defaultHistorySize = 1000
)

type ledgerShard struct {
	mu     sync.RWMutex
	active map[string]model.EmergencyRecord
}

// MemoryLedger is a sharded, mutex-guarded Ledger. Resolved records are kept
// in a bounded history for incident reporting.
type MemoryLedger struct {
	shards      []*ledgerShard
	shardCount  int
	subjectMu   []sync.Mutex // striped by subject id
	historySize int
	activeCount atomic.Int64

	histMu    sync.RWMutex
	history   map[string]model.EmergencyRecord
	histOrder []string

	now    func() time.Time
	logger logger.Logger
}

// NewMemoryLedger builds an empty ledger.
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{
		shardCount:  defaultShards,
		historySize: defaultHistorySize,
		history:     make(map[string]model.EmergencyRecord),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.shards = make([]*ledgerShard, l.shardCount)
	l.subjectMu = make([]sync.Mutex, l.shardCount)
	for i := range l.shards {
		l.shards[i] = &ledgerShard{active: make(map[string]model.EmergencyRecord)}
	}
	if l.logger == nil {
		l.logger = logger.Get().Named("ledger")
	}
	metrics.UpdateEmergenciesActive(0)
	return l
}

func (l *MemoryLedger) shard(id string) *ledgerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// Create inserts rec as active.
func (l *MemoryLedger) Create(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, error) {
	if err := validateRecord(rec); err != nil {
		return model.EmergencyRecord{}, err
	}
	rec = rec.Clone()
	rec.Status = model.StatusActive
	rec.ResolvedAt, rec.ResolvedBy = nil, nil
	if rec.DetectedAt.IsZero() {
		rec.DetectedAt = l.now()
	}

	s := l.shard(rec.ID)
	s.mu.Lock()
	if _, exists := s.active[rec.ID]; exists {
		s.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	// A retained resolved id is also taken: ids are never reused.
	if l.inHistory(rec.ID) {
		s.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	s.active[rec.ID] = rec
	s.mu.Unlock()

	metrics.UpdateEmergenciesActive(int(l.activeCount.Add(1)))
	l.logger.Info(ctx, "emergency created",
		logger.String("emergency_id", rec.ID),
		logger.String("kind", string(rec.Kind)),
		logger.String("athlete_id", rec.SubjectID))
	return rec.Clone(), nil
}

func validateRecord(rec model.EmergencyRecord) error {
	switch {
	case rec.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidRecord)
	case rec.Kind == "":
		return fmt.Errorf("%w: kind is required", ErrInvalidRecord)
	case rec.SubjectID == "":
		return fmt.Errorf("%w: athlete id is required", ErrInvalidRecord)
	}
	return nil
}

// Get returns an active record.
func (l *MemoryLedger) Get(_ context.Context, id string) (model.EmergencyRecord, error) {
	s := l.shard(id)
	s.mu.RLock()
	rec, ok := s.active[id]
	s.mu.RUnlock()
	if !ok {
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// ListActive snapshots every shard.
func (l *MemoryLedger) ListActive(_ context.Context) []model.EmergencyRecord {
	out := make([]model.EmergencyRecord, 0, l.activeCount.Load())
	for _, s := range l.shards {
		s.mu.RLock()
		for _, rec := range s.active {
			out = append(out, rec.Clone())
		}
		s.mu.RUnlock()
	}
	return out
}

// Resolve removes the record from the active set under the shard lock, so
// concurrent callers see exactly one success.
func (l *MemoryLedger) Resolve(ctx context.Context, id string, by model.Actor) (model.EmergencyRecord, error) {
	s := l.shard(id)
	s.mu.Lock()
	rec, ok := s.active[id]
	if !ok {
		s.mu.Unlock()
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.active, id)
	at := l.now()
	rec.Status = model.StatusResolved
	rec.ResolvedAt = &at
	rec.ResolvedBy = &by
	l.remember(rec)
	s.mu.Unlock()

	metrics.UpdateEmergenciesActive(int(l.activeCount.Add(-1)))
	l.logger.Info(ctx, "emergency resolved",
		logger.String("emergency_id", id),
		logger.String("resolved_by", by.ID),
		logger.Duration("duration", rec.Duration(at)))
	return rec.Clone(), nil
}

// AddResponder appends ack to an active record.
func (l *MemoryLedger) AddResponder(_ context.Context, id string, ack model.ResponderAck) (model.EmergencyRecord, error) {
	if ack.At.IsZero() {
		ack.At = l.now()
	}
	s := l.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.active[id]
	if !ok {
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Responders = append(rec.Responders, ack)
	s.active[id] = rec
	return rec.Clone(), nil
}

// ActiveForSubject scans for an active record about subjectID.
func (l *MemoryLedger) ActiveForSubject(_ context.Context, subjectID string) (model.EmergencyRecord, bool) {
	for _, s := range l.shards {
		s.mu.RLock()
		for _, rec := range s.active {
			if rec.SubjectID == subjectID {
				s.mu.RUnlock()
				return rec.Clone(), true
			}
		}
		s.mu.RUnlock()
	}
	return model.EmergencyRecord{}, false
}

// CreateUnlessActive serializes callers per subject, so concurrent calls for
// one athlete create at most one record. Plain Create does not take the
// subject lock.
func (l *MemoryLedger) CreateUnlessActive(ctx context.Context, rec model.EmergencyRecord) (model.EmergencyRecord, bool, error) {
	if err := validateRecord(rec); err != nil {
		return model.EmergencyRecord{}, false, err
	}
	mu := l.subjectLock(rec.SubjectID)
	mu.Lock()
	defer mu.Unlock()

	if active, ok := l.ActiveForSubject(ctx, rec.SubjectID); ok {
		return active, false, nil
	}
	created, err := l.Create(ctx, rec)
	if err != nil {
		return model.EmergencyRecord{}, false, err
	}
	return created, true, nil
}

func (l *MemoryLedger) subjectLock(subjectID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return &l.subjectMu[h.Sum32()%uint32(len(l.subjectMu))]
}

// Lookup checks the active set first, then the history.
func (l *MemoryLedger) Lookup(ctx context.Context, id string) (model.EmergencyRecord, error) {
	if rec, err := l.Get(ctx, id); err == nil {
		return rec, nil
	}
	l.histMu.RLock()
	rec, ok := l.history[id]
	l.histMu.RUnlock()
	if !ok {
		return model.EmergencyRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// ListResolved returns up to limit resolved records, newest first. limit <= 0 means all.
func (l *MemoryLedger) ListResolved(_ context.Context, limit int) []model.EmergencyRecord {
	l.histMu.RLock()
	defer l.histMu.RUnlock()
	n := len(l.histOrder)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]model.EmergencyRecord, 0, n)
	for i := len(l.histOrder) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.history[l.histOrder[i]].Clone())
	}
	return out
}

// Count returns the number of active records.
func (l *MemoryLedger) Count(_ context.Context) int {
	return int(l.activeCount.Load())
}

func (l *MemoryLedger) inHistory(id string) bool {
	l.histMu.RLock()
	defer l.histMu.RUnlock()
	_, ok := l.history[id]
	return ok
}

func (l *MemoryLedger) remember(rec model.EmergencyRecord) {
	if l.historySize <= 0 {
		return
	}
	l.histMu.Lock()
	defer l.histMu.Unlock()
	l.history[rec.ID] = rec
	l.histOrder = append(l.histOrder, rec.ID)
	for len(l.histOrder) > l.historySize {
		delete(l.history, l.histOrder[0])
		l.histOrder = l.histOrder[1:]
	}
}
