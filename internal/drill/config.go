package drill

import (
	"errors"
	"fmt"
	"time"

	"github.com/okian/stomp/internal/domain/model"
)

// ErrMissingDeliveries is returned by Run when any alert or resolution frame
// did not reach its recipient in time.
var ErrMissingDeliveries = errors.New("missing deliveries")

// Config holds configuration for a drill run.
type Config struct {
	BaseURL            string        // Base URL of the service
	Athletes           int           // Athlete accounts to provision
	Coaches            int           // Coach accounts to provision
	Referees           int           // Referee accounts to provision
	Teammates          int           // Teammate accounts to provision
	ReadingsPerAthlete int           // Normal readings each athlete submits
	Emergencies        int           // Athletes that submit an anomalous reading
	Workers            int           // Concurrent HTTP workers
	Timeout            time.Duration // HTTP request timeout
	DeliveryTimeout    time.Duration // How long to wait for websocket frames
	Password           string        // Password for provisioned accounts
	OutputFile         string        // Optional JSON report path
	Verbose            bool          // Enable verbose logging
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return errors.New("base url is required")
	case c.Athletes < 1 || c.Coaches < 1:
		return errors.New("at least one athlete and one coach are required")
	case c.Referees < 0 || c.Teammates < 0 || c.ReadingsPerAthlete < 0:
		return errors.New("counts must not be negative")
	case c.Emergencies < 0 || c.Emergencies > c.Athletes:
		return fmt.Errorf("emergencies must be between 0 and %d", c.Athletes)
	case c.Workers < 1:
		return errors.New("workers must be positive")
	case len(c.Password) < minPasswordLength:
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// LatencySummary describes alert delivery times for one role.
type LatencySummary struct {
	Count int           `json:"count"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	Max   time.Duration `json:"max"`
}

// Stats holds drill results.
type Stats struct {
	AccountsProvisioned   int                           `json:"accounts_provisioned"`
	ConnectionsOpened     int                           `json:"connections_opened"`
	ReadingsSubmitted     int                           `json:"readings_submitted"`
	ReadingsNormal        int                           `json:"readings_normal"`
	ReadingsDuplicate     int                           `json:"readings_duplicate"`
	ReadingsFailed        int                           `json:"readings_failed"`
	EmergenciesRaised     int                           `json:"emergencies_raised"`
	EmergenciesSuppressed int                           `json:"emergencies_suppressed"`
	AlertsExpected        int                           `json:"alerts_expected"`
	AlertsDelivered       int                           `json:"alerts_delivered"`
	ResolutionsExpected   int                           `json:"resolutions_expected"`
	ResolutionsDelivered  int                           `json:"resolutions_delivered"`
	AlertLatency          map[model.Role]LatencySummary `json:"alert_latency"`
	Missing               []string                      `json:"missing,omitempty"`
	StartTime             time.Time                     `json:"start_time"`
	EndTime               time.Time                     `json:"end_time"`
	Duration              time.Duration                 `json:"duration"`
}
