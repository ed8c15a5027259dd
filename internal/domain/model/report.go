package model

import (
	"time"
)

// TimelineEntry is one step of an incident.
type TimelineEntry struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Actor  *Actor    `json:"actor,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// ResponderSummary condenses one responder's involvement.
type ResponderSummary struct {
	Responder           Actor   `json:"responder"`
	Status              string  `json:"status"`
	ETA                 *int    `json:"eta,omitempty"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
}

// IncidentReport is generated from an emergency record after the fact.
type IncidentReport struct {
	ID                   string             `json:"id"`
	EmergencyID          string             `json:"emergency_id"`
	Kind                 Kind               `json:"kind"`
	SubjectID            string             `json:"athlete_id"`
	SubjectName          string             `json:"athlete_name"`
	Location             Location           `json:"location"`
	Vitals               *VitalSigns        `json:"vital_signs,omitempty"`
	Status               Status             `json:"status"`
	DetectedAt           time.Time          `json:"detected_at"`
	ResolvedAt           *time.Time         `json:"resolved_at,omitempty"`
	DurationSeconds      float64            `json:"duration_seconds"`
	FirstResponseSeconds *float64           `json:"first_response_seconds,omitempty"`
	Responders           []ResponderSummary `json:"responders"`
	Timeline             []TimelineEntry    `json:"timeline"`
	Notes                string             `json:"notes,omitempty"`
	GeneratedBy          Actor              `json:"generated_by"`
	GeneratedAt          time.Time          `json:"generated_at"`
}
