package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/stomp/internal/adapters/http/api"
	"github.com/okian/stomp/internal/adapters/ws"
	app "github.com/okian/stomp/internal/app"
	"github.com/okian/stomp/internal/config"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

// HTTP server timeout constants. There is no write timeout: websocket
// connections are long lived and manage their own deadlines.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "stomp exited", logger.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	lg := logger.Get()

	// Load configuration (defaults -> optional file -> .env -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		lg.Warn(ctx, "invalid log_format; falling back to text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
		_ = logger.SetFormat("text")
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		lg.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	lg = logger.Get()
	if cfg.JWTSecret == config.DevJWTSecret {
		lg.Warn(ctx, "using the development JWT secret; set STOMP_JWT_SECRET in production")
	}

	svc := app.New(cfg, app.WithLogger(lg.Named("service")))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			lg.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := newHTTPServer(cfg, svc, lg)
	errCh := make(chan error, 1)
	go func() {
		lg.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	lg.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout. Hijacked websocket connections are not
	// tracked by Shutdown; svc.Stop closes them.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	lg.Info(shutdownCtx, "server stopped")
	return nil
}

// newHTTPServer builds the HTTP server around the API router.
func newHTTPServer(cfg *config.Config, svc *app.Service, lg logger.Logger) *http.Server {
	apiServer := api.NewServer(svc,
		api.WithLogger(lg.Named("api")),
		api.WithWebsocketSettings(websocketSettings(cfg)),
	)
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// websocketSettings maps config onto the websocket handler, keeping the
// defaults for anything left unset.
func websocketSettings(cfg *config.Config) ws.Settings {
	s := ws.DefaultSettings()
	if cfg.WSWriteTimeout > 0 {
		s.WriteTimeout = cfg.WSWriteTimeout
	}
	if cfg.WSPongWait > 0 {
		s.PongWait = cfg.WSPongWait
	}
	if cfg.WSPingInterval > 0 {
		s.PingInterval = cfg.WSPingInterval
	}
	if cfg.WSReadLimit > 0 {
		s.ReadLimit = cfg.WSReadLimit
	}
	if len(cfg.AllowedOrigins) > 0 {
		s.AllowedOrigins = cfg.AllowedOrigins
	}
	return s
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the connection, ledger and queue gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Stats updates the gauges as a side effect.
			_ = svc.Stats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
