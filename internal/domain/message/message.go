// Package message defines the realtime wire protocol as a closed set of frame types.
//
// Every outbound frame is a JSON object with a "type" discriminator and a "data"
// payload. A few fields are also mirrored at the top level because deployed
// mobile clients read them there.
package message

import (
	"encoding/json"
	"time"

	"github.com/okian/stomp/internal/domain/model"
)

// Type discriminates frames on the wire.
type Type string

// Outbound frame types.
const (
	TypeEmergencyAlert    Type = "emergency_alert"
	TypeEmergencyResolved Type = "emergency_resolved"
	TypeEmergencyUpdate   Type = "emergency_update"
	TypePong              Type = "pong"
	TypeError             Type = "error"
)

// Inbound frame types.
const (
	TypePing              Type = "ping"
	TypeEmergencyResponse Type = "emergency_response"
)

// Severity of an alert.
type Severity string

// Severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

// Outbound is a frame written by the server. The set is closed: only types in
// this package implement it.
type Outbound interface {
	Type() Type
	outbound()
}

// EmergencyAlert announces a newly raised emergency.
type EmergencyAlert struct {
	Severity   Severity              `json:"severity"`
	Message    string                `json:"message"`
	Simulation bool                  `json:"is_simulation"`
	Data       model.EmergencyRecord `json:"data"`
}

// Resolution describes how an emergency ended.
type Resolution struct {
	EmergencyID     string      `json:"emergency_id"`
	Kind            model.Kind  `json:"kind"`
	SubjectID       string      `json:"athlete_id"`
	Simulation      bool        `json:"is_simulation"`
	ResolvedBy      model.Actor `json:"resolved_by"`
	ResolvedAt      time.Time   `json:"resolved_at"`
	DurationSeconds float64     `json:"duration_seconds"`
}

// EmergencyResolved announces that an emergency is over.
type EmergencyResolved struct {
	EmergencyID string     `json:"emergency_id"`
	Data        Resolution `json:"data"`
}

// Responder is the responder block of an update.
type Responder struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
	Status string     `json:"status"`
	ETA    *int       `json:"eta,omitempty"`
}

// Update carries a responder acknowledgement.
type Update struct {
	EmergencyID string    `json:"emergency_id"`
	SubjectID   string    `json:"athlete_id,omitempty"`
	Responder   Responder `json:"responder"`
	At          time.Time `json:"timestamp"`
}

// EmergencyUpdate relays a responder acknowledgement.
type EmergencyUpdate struct {
	EmergencyID string    `json:"emergency_id"`
	Responder   Responder `json:"responder"`
	Data        Update    `json:"data"`
}

// PongData echoes the client's correlation token.
type PongData struct {
	ServerTime time.Time       `json:"server_time"`
	Timestamp  json.RawMessage `json:"timestamp,omitempty"`
	ID         string          `json:"id,omitempty"`
}

// Pong answers a ping.
type Pong struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	Data      PongData        `json:"data"`
}

// ErrorData explains a rejected inbound frame.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is sent in reply to a frame the server could not accept.
type Error struct {
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`
}

func (EmergencyAlert) Type() Type    { return TypeEmergencyAlert }
func (EmergencyResolved) Type() Type { return TypeEmergencyResolved }
func (EmergencyUpdate) Type() Type   { return TypeEmergencyUpdate }
func (Pong) Type() Type              { return TypePong }
func (Error) Type() Type             { return TypeError }

func (EmergencyAlert) outbound()    {}
func (EmergencyResolved) outbound() {}
func (EmergencyUpdate) outbound()   {}
func (Pong) outbound()              {}
func (Error) outbound()             {}

// MarshalJSON adds the type discriminator.
func (m EmergencyAlert) MarshalJSON() ([]byte, error) {
	type alias EmergencyAlert
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// MarshalJSON adds the type discriminator.
func (m EmergencyResolved) MarshalJSON() ([]byte, error) {
	type alias EmergencyResolved
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// MarshalJSON adds the type discriminator.
func (m EmergencyUpdate) MarshalJSON() ([]byte, error) {
	type alias EmergencyUpdate
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// MarshalJSON adds the type discriminator.
func (m Pong) MarshalJSON() ([]byte, error) {
	type alias Pong
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// MarshalJSON adds the type discriminator.
func (m Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type Type `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// Encode renders an outbound frame.
func Encode(m Outbound) ([]byte, error) {
	if m == nil {
		return nil, ErrNilMessage
	}
	return json.Marshal(m)
}
