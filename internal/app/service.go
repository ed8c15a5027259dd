// Package service wires the connection registry, emergency ledger, dispatcher
// and stores together and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/stomp/internal/adapters/mq/worker"
	"github.com/okian/stomp/internal/adapters/notify"
	"github.com/okian/stomp/internal/adapters/repository"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/internal/config"
	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/dedupe"
	"github.com/okian/stomp/internal/domain/dispatch"
	"github.com/okian/stomp/internal/domain/inbound"
	"github.com/okian/stomp/internal/domain/mockdata"
	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/internal/domain/registry"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

const (
	pushTimeout     = 10 * time.Second
	stopTimeout     = 15 * time.Second
	defaultTeamSize = 12
)

// Service implements the API dependencies for the safety backend.
type Service struct {
	mu sync.RWMutex

	// Core components
	registry   *registry.Registry
	ledger     *repository.MemoryLedger
	pool       *worker.Pool
	dispatcher *dispatch.Dispatcher
	router     *inbound.Router
	store      *repository.Store
	issuer     *auth.Issuer
	detector   anomaly.Detector
	deduper    dedupe.Deduper
	mock       *mockdata.Generator

	// Side channels; built from config unless injected.
	mailer notify.Mailer
	pusher notify.Pusher

	cfg     *config.Config
	now     func() time.Time
	started bool
	logger  logger.Logger
}

// New creates a service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the store and starts the worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting safety service...")

	store, err := repository.Open(ctx, s.cfg.DatabaseDriver, s.cfg.DatabaseDSN,
		repository.WithStoreLogger(s.logger.Named("store")),
		repository.WithStoreClock(s.now))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStart, err)
	}
	s.store = store

	s.registry = registry.New(registry.WithLogger(s.logger.Named("registry")))
	s.ledger = repository.NewMemoryLedger(
		repository.WithShards(s.cfg.LedgerShards),
		repository.WithHistorySize(s.cfg.HistorySize),
		repository.WithClock(s.now),
		repository.WithLogger(s.logger.Named("ledger")),
	)
	s.pool = worker.NewPool(s.cfg.WorkerCount, s.cfg.QueueSize, worker.WithPoolLogger(s.logger.Named("worker-pool")))
	s.pool.Start(ctx)

	s.dispatcher = dispatch.New(s.registry, s.pool, s.ledger,
		dispatch.WithSideChannel(s.notifier()),
		dispatch.WithClock(s.now),
		dispatch.WithLogger(s.logger.Named("dispatch")),
	)
	s.router = inbound.New(s.registry, s.dispatcher,
		inbound.WithClock(s.now),
		inbound.WithLogger(s.logger.Named("inbound")),
	)
	s.issuer = auth.NewIssuer(s.cfg.JWTSecret, s.cfg.TokenTTL)
	s.detector = anomaly.NewThresholdDetector(anomaly.WithThresholds(anomaly.Thresholds{
		HeartRateMax:   s.cfg.HeartRateMax,
		HeartRateMin:   s.cfg.HeartRateMin,
		OxygenMin:      s.cfg.OxygenMin,
		RespiratoryMax: s.cfg.RespiratoryMax,
	}))
	s.deduper = dedupe.NewRingDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.mock = mockdata.New(mockdata.WithClock(s.now))

	s.started = true
	s.logger.Info(ctx, "safety service started",
		logger.Int("workers", s.pool.Workers()),
		logger.Int("queueCapacity", s.pool.Cap()),
		logger.String("database", s.cfg.DatabaseDriver),
	)
	return nil
}

// notifier builds the email/push/inbox side channel.
func (s *Service) notifier() *notify.Notifier {
	opts := []notify.Option{notify.WithLogger(s.logger.Named("notify"))}
	mailer, pusher := s.mailer, s.pusher
	if mailer == nil && s.cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPFrom)
	}
	if pusher == nil && s.cfg.PushEndpoint != "" {
		pusher = notify.NewPushGateway(s.cfg.PushEndpoint, s.cfg.PushServerKey, &http.Client{Timeout: pushTimeout})
	}
	if mailer != nil {
		opts = append(opts, notify.WithMailer(mailer))
	}
	if pusher != nil {
		opts = append(opts, notify.WithPusher(pusher))
	}
	return notify.New(s.store, opts...)
}

// Stop closes live connections, drains queued deliveries and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping safety service...")

	ctx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()

	closed := s.registry.CloseAll()
	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.dispatcher.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("fallback deliveries: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "safety service stopped", logger.Int("connectionsClosed", closed))
	return errors.Join(errs...)
}

// Parse validates a bearer token; it lets the service act as the websocket
// handler's token parser.
func (s *Service) Parse(raw string) (auth.Claims, error) {
	return s.issuer.Parse(raw)
}

// Serve runs the inbound read loop for one authenticated connection.
func (s *Service) Serve(ctx context.Context, actor model.Actor, c inbound.Conn) error {
	return s.router.Serve(ctx, actor, c)
}

// SeenAndRecord reports whether a reading id was already processed.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordReadingIngested("duplicate")
	}
	return seen
}

// Unrecord forgets a reading id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered reading ids.
func (s *Service) Size() int {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Ping checks the database.
func (s *Service) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return s.store.Ping(ctx)
}

// Stats returns an operational snapshot and refreshes the matching gauges.
func (s *Service) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{Started: s.started, Connections: map[model.Role]int{}}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats.Connections = s.registry.CountByRole()
	stats.ConnectionCount = s.registry.Len()
	stats.ActiveEmergencies = s.ledger.Count(ctx)
	stats.QueueDepth = s.pool.Len()
	stats.QueueCapacity = s.pool.Cap()
	stats.Workers = s.pool.Workers()
	stats.DedupeSize = s.deduper.Size()

	metrics.UpdateEmergenciesActive(stats.ActiveEmergencies)
	metrics.UpdateQueueSize(stats.QueueDepth)
	metrics.UpdateWorkerCount(stats.Workers)
	for _, role := range model.Roles() {
		metrics.UpdateConnectionsActive(string(role), stats.Connections[role])
	}
	return stats
}
