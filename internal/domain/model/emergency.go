package model

import (
	"time"
)

// Kind tags the origin of an emergency.
type Kind string

// Known kinds.
const (
	KindCardiacAnomaly Kind = "cardiac_anomaly"
	KindSimulation     Kind = "simulation"
)

// Status is the lifecycle state of an emergency.
type Status string

// Lifecycle states.
const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Location is either a free-text description, a coordinate pair, or both.
type Location struct {
	Description string   `json:"description,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Coordinates builds a Location from a lat/long pair.
func Coordinates(lat, long float64) Location {
	return Location{Latitude: &lat, Longitude: &long}
}

// VitalSigns is the payload of a cardiac anomaly.
type VitalSigns struct {
	HeartRate        int     `json:"heart_rate"`
	HeartRhythm      string  `json:"heart_rhythm,omitempty"`
	BloodPressure    string  `json:"blood_pressure,omitempty"`
	OxygenSaturation int     `json:"oxygen_saturation"`
	RespiratoryRate  int     `json:"respiratory_rate,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	AnomalyType      string  `json:"anomaly_type,omitempty"`
	Confidence       float64 `json:"confidence,omitempty"`
}

// ResponderAck records that a responder is on the way.
type ResponderAck struct {
	Responder Actor     `json:"responder"`
	Status    string    `json:"status"`
	ETA       *int      `json:"eta,omitempty"`
	At        time.Time `json:"at"`
}

// EmergencyRecord is one detected or simulated medical event.
type EmergencyRecord struct {
	ID          string         `json:"id"`
	Kind        Kind           `json:"kind"`
	SubjectID   string         `json:"athlete_id"`
	SubjectName string         `json:"athlete_name"`
	DetectedAt  time.Time      `json:"timestamp"`
	Location    Location       `json:"location"`
	Vitals      *VitalSigns    `json:"vital_signs,omitempty"`
	InitiatedBy *Actor         `json:"initiated_by,omitempty"`
	Responders  []ResponderAck `json:"responders"`
	Status      Status         `json:"status"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy  *Actor         `json:"resolved_by,omitempty"`
}

// IsSimulation reports whether the record is a drill.
func (r EmergencyRecord) IsSimulation() bool {
	return r.Kind == KindSimulation
}

// Duration is the time between detection and resolution, or until now while active.
func (r EmergencyRecord) Duration(now time.Time) time.Duration {
	if r.ResolvedAt != nil {
		return r.ResolvedAt.Sub(r.DetectedAt)
	}
	return now.Sub(r.DetectedAt)
}

// Clone returns a deep copy so callers never share mutable state with the ledger.
func (r EmergencyRecord) Clone() EmergencyRecord {
	out := r
	if r.Location.Latitude != nil {
		v := *r.Location.Latitude
		out.Location.Latitude = &v
	}
	if r.Location.Longitude != nil {
		v := *r.Location.Longitude
		out.Location.Longitude = &v
	}
	if r.Vitals != nil {
		v := *r.Vitals
		out.Vitals = &v
	}
	if r.InitiatedBy != nil {
		v := *r.InitiatedBy
		out.InitiatedBy = &v
	}
	if r.ResolvedAt != nil {
		v := *r.ResolvedAt
		out.ResolvedAt = &v
	}
	if r.ResolvedBy != nil {
		v := *r.ResolvedBy
		out.ResolvedBy = &v
	}
	out.Responders = make([]ResponderAck, len(r.Responders))
	for i, ack := range r.Responders {
		out.Responders[i] = ack
		if ack.ETA != nil {
			v := *ack.ETA
			out.Responders[i].ETA = &v
		}
	}
	return out
}
