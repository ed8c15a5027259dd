// Package types contains the request and response shapes shared by the HTTP
// layer and the service.
package types

import (
	"time"

	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/mockdata"
	"github.com/okian/stomp/internal/domain/model"
)

// TokenType is the only token scheme issued.
const TokenType = "bearer"

// Session is the login response.
type Session struct {
	AccessToken string     `json:"access_token"`
	TokenType   string     `json:"token_type"`
	ExpiresIn   int        `json:"expires_in"`
	User        model.User `json:"user"`
}

// TriggerRequest raises a manual emergency. Athletes always trigger for
// themselves; other roles may name the athlete.
type TriggerRequest struct {
	AthleteID   string   `json:"athlete_id,omitempty" validate:"omitempty,max=64"`
	AthleteName string   `json:"athlete_name,omitempty" validate:"omitempty,max=120"`
	Location    string   `json:"location,omitempty" validate:"omitempty,max=200"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// SimulationRequest starts a drill.
type SimulationRequest struct {
	AthleteID   string   `json:"athlete_id" validate:"required,max=64"`
	AthleteName string   `json:"athlete_name" validate:"required,max=120"`
	Location    string   `json:"location,omitempty" validate:"omitempty,max=200"`
	AnomalyType string   `json:"anomaly_type,omitempty" validate:"omitempty,max=120"`
	Latitude    *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// SimulationEnded is returned when a drill is stopped.
type SimulationEnded struct {
	Simulation      model.EmergencyRecord `json:"simulation"`
	DurationSeconds float64               `json:"duration_seconds"`
}

// IngestResult is the verdict on one sensor reading.
type IngestResult struct {
	ReadingID   string             `json:"reading_id"`
	Duplicate   bool               `json:"duplicate"`
	Assessment  anomaly.Assessment `json:"assessment"`
	EmergencyID string             `json:"emergency_id,omitempty"`
}

// NotificationRequest creates an in-app notification.
type NotificationRequest struct {
	Title         string                 `json:"title" validate:"required,max=200"`
	Message       string                 `json:"message" validate:"required,max=2000"`
	Type          model.NotificationType `json:"type,omitempty" validate:"omitempty,oneof=emergency_alert training_reminder protocol_update general"`
	Priority      string                 `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	TargetRoles   []model.Role           `json:"target_roles,omitempty" validate:"dive,oneof=athlete coach teammate referee"`
	TargetUserIDs []string               `json:"target_user_ids,omitempty"`
}

// ProtocolUpdateRequest announces a change to safety protocols.
type ProtocolUpdateRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=2000"`
}

// DeviceRequest registers a push token for the caller.
type DeviceRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform,omitempty" validate:"omitempty,oneof=ios android web"`
}

// ReportRequest generates an incident report.
type ReportRequest struct {
	EmergencyID string `json:"emergency_id" validate:"required"`
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=4000"`
}

// ContactRequest creates or replaces an emergency contact.
type ContactRequest struct {
	Name         string `json:"name" validate:"required,max=120"`
	Relationship string `json:"relationship" validate:"required,max=64"`
	Phone        string `json:"phone" validate:"required,max=32"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Primary      bool   `json:"is_primary"`
}

// AthleteDashboard is the athlete's own view.
type AthleteDashboard struct {
	Athlete   model.User         `json:"athlete"`
	Vitals    mockdata.Vitals    `json:"vitals"`
	CPRDevice mockdata.CPRStatus `json:"cpr_device"`
	Contacts  []model.Contact    `json:"emergency_contacts"`
}

// CoachDashboard summarizes the team.
type CoachDashboard struct {
	Overview          mockdata.TeamOverview    `json:"team_overview"`
	Athletes          []mockdata.AthleteStatus `json:"athletes"`
	ActiveEmergencies []model.EmergencyRecord  `json:"active_emergencies"`
}

// ResponderDashboard is the teammate and referee view.
type ResponderDashboard struct {
	Role              model.Role               `json:"role"`
	Athletes          []mockdata.AthleteStatus `json:"athletes"`
	ActiveEmergencies []model.EmergencyRecord  `json:"active_emergencies"`
	GeneratedAt       time.Time                `json:"generated_at"`
}

// Stats is the operational snapshot served on /stats.
type Stats struct {
	Started           bool               `json:"started"`
	Connections       map[model.Role]int `json:"connections"`
	ConnectionCount   int                `json:"connection_count"`
	ActiveEmergencies int                `json:"active_emergencies"`
	QueueDepth        int                `json:"queue_depth"`
	QueueCapacity     int                `json:"queue_capacity"`
	Workers           int                `json:"workers"`
	DedupeSize        int                `json:"dedupe_size"`
}
