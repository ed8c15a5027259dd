// Package drill exercises a running service end to end: it provisions
// accounts, opens alert sockets, streams wearable readings and checks that
// every alert and resolution reaches its recipients.
package drill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes the complete drill. It returns ErrMissingDeliveries, along
// with the stats, when any frame failed to arrive.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	stats := &Stats{StartTime: time.Now(), AlertLatency: map[model.Role]LatencySummary{}}
	runID := uuid.NewString()[:8]
	lg := logger.Get()

	lg.Info(ctx, "starting stomp drill",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("run", runID),
		logger.Int("athletes", cfg.Athletes),
		logger.Int("emergencies", cfg.Emergencies),
		logger.Int("workers", cfg.Workers))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Provision accounts
	team, err := provision(ctx, client, cfg, runID)
	if err != nil {
		return nil, err
	}
	stats.AccountsProvisioned = len(team.all())

	// Step 3: Open alert sockets
	l := newListener()
	defer l.Close()
	everyone := team.all()
	if err := parallel(ctx, cfg.Workers, len(everyone), func(ctx context.Context, i int) error {
		return l.connect(ctx, cfg.BaseURL, everyone[i])
	}); err != nil {
		return nil, fmt.Errorf("open sockets: %w", err)
	}
	stats.ConnectionsOpened = len(everyone)
	if err := waitForConnections(ctx, client, len(everyone), cfg.DeliveryTimeout); err != nil {
		lg.Warn(ctx, "could not confirm connections", logger.Error(err))
	}

	// Step 4: Stream readings
	emergencies := submitReadings(ctx, client, cfg, plan(cfg, team[model.RoleAthlete]), stats)

	// Step 5: Check alert delivery
	alerts := expected(emergencies, team)
	missingAlerts := await(ctx, alerts, l.alertAt, cfg.DeliveryTimeout)
	stats.AlertsExpected = len(alerts)
	stats.AlertsDelivered = len(alerts) - len(missingAlerts)
	for role, samples := range latencies(alerts, l) {
		stats.AlertLatency[role] = summarize(samples)
	}

	// Step 6: Resolve and check resolution delivery
	resolveAll(ctx, client, team[model.RoleCoach][0], emergencies)
	missingResolutions := await(ctx, alerts, l.resolvedAt, cfg.DeliveryTimeout)
	stats.ResolutionsExpected = len(alerts)
	stats.ResolutionsDelivered = len(alerts) - len(missingResolutions)

	stats.Missing = append(describe("alert", missingAlerts), describe("resolution", missingResolutions)...)
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	// Step 7: Save the report
	if cfg.OutputFile != "" {
		if err := saveReport(ctx, cfg.OutputFile, stats); err != nil {
			lg.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}

	switch {
	case len(stats.Missing) > 0:
		return stats, fmt.Errorf("%w: %d of %d", ErrMissingDeliveries,
			len(stats.Missing), stats.AlertsExpected+stats.ResolutionsExpected)
	case stats.EmergenciesRaised != cfg.Emergencies:
		return stats, fmt.Errorf("expected %d emergencies, service raised %d", cfg.Emergencies, stats.EmergenciesRaised)
	}
	lg.Info(ctx, "drill completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")
	status, err := c.Do(ctx, http.MethodGet, "/healthz", "", nil, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// waitForConnections polls /stats until the service reports at least n
// sockets, so alerts are not raised before everyone is registered.
func waitForConnections(ctx context.Context, c *HTTPClient, n int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		var snapshot struct {
			ConnectionCount int `json:"connection_count"`
		}
		status, err := c.Do(ctx, http.MethodGet, "/stats", "", nil, &snapshot)
		if err == nil && status == http.StatusOK && snapshot.ConnectionCount >= n {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("service reports %d of %d connections", snapshot.ConnectionCount, n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// resolveAll resolves every raised emergency as coach.
func resolveAll(ctx context.Context, c *HTTPClient, coach account, emergencies []raised) {
	for _, e := range emergencies {
		status, err := c.Do(ctx, http.MethodPost, "/api/emergency-alerts/resolve-emergency/"+e.ID, coach.Token, nil, nil)
		if err != nil || status != http.StatusOK {
			logger.Get().Warn(ctx, "resolve failed",
				logger.String("emergency_id", e.ID),
				logger.Int("status", status),
				logger.Error(err))
		}
	}
}

// saveReport writes stats as indented JSON.
func saveReport(ctx context.Context, filename string, stats *Stats) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filename, raw, filePermission); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Get().Info(ctx, "report saved", logger.String("filename", filename))
	return nil
}
