package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/okian/stomp/internal/domain/model"
)

// Inbound is a frame sent by a client.
type Inbound interface {
	Type() Type
	inbound()
}

// Ping is a client keepalive. Timestamp and ID are opaque correlation tokens.
type Ping struct {
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
	ID        string          `json:"id,omitempty"`
}

// maxETA is the largest accepted estimate, in minutes.
const maxETA = 24 * 60

// EmergencyResponse is a responder acknowledging an emergency.
type EmergencyResponse struct {
	EmergencyID string   `json:"emergency_id"`
	AthleteID   string   `json:"athlete_id,omitempty"`
	Status      string   `json:"status,omitempty"`
	ETA         *float64 `json:"eta,omitempty"`
}

func (Ping) Type() Type              { return TypePing }
func (EmergencyResponse) Type() Type { return TypeEmergencyResponse }

func (Ping) inbound()              {}
func (EmergencyResponse) inbound() {}

// DefaultResponseStatus is used when a response omits its status.
const DefaultResponseStatus = "responding"

type envelope struct {
	Type Type `json:"type"`
}

// Decode classifies and parses one inbound frame.
func Decode(raw []byte) (Inbound, error) {
	raw = bytes.TrimSpace(raw)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	case TypePing:
		var p Ping
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return p, nil
	case TypeEmergencyResponse:
		var r EmergencyResponse
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		if r.EmergencyID == "" {
			return nil, fmt.Errorf("%w: emergency_id is required", ErrMalformed)
		}
		if r.ETA != nil && (*r.ETA < 0 || math.IsNaN(*r.ETA)) {
			return nil, fmt.Errorf("%w: eta must not be negative", ErrMalformed)
		}
		if r.ETA != nil && *r.ETA > maxETA {
			return nil, fmt.Errorf("%w: eta must be at most %d minutes", ErrMalformed, maxETA)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// Ack converts the response into a ledger acknowledgement from the sender.
func (r EmergencyResponse) Ack(sender model.Actor, at time.Time) model.ResponderAck {
	ack := model.ResponderAck{Responder: sender, Status: r.Status, At: at}
	if ack.Status == "" {
		ack.Status = DefaultResponseStatus
	}
	if r.ETA != nil {
		eta := int(math.Round(math.Min(*r.ETA, maxETA)))
		ack.ETA = &eta
	}
	return ack
}

// PongFor builds the reply to a ping.
func PongFor(p Ping, now time.Time) Pong {
	return Pong{
		Timestamp: p.Timestamp,
		Data:      PongData{ServerTime: now.UTC(), Timestamp: p.Timestamp, ID: p.ID},
	}
}

// Error codes carried in error frames.
const (
	CodeMalformed   = "malformed_message"
	CodeUnknownType = "unknown_type"
	CodeForbidden   = "forbidden"
	CodeInternal    = "internal_error"
)

// ErrorFor builds the error frame for a rejected inbound frame.
func ErrorFor(err error) Error {
	switch {
	case errors.Is(err, ErrMalformed):
		return Error{Message: "Invalid JSON format", Data: ErrorData{Code: CodeMalformed, Message: err.Error()}}
	case errors.Is(err, ErrUnknownType):
		return Error{Message: "Unknown message type", Data: ErrorData{Code: CodeUnknownType, Message: err.Error()}}
	default:
		return Error{Message: "Request rejected", Data: ErrorData{Code: CodeInternal, Message: err.Error()}}
	}
}

// Forbidden builds the error frame for a role that may not send a frame type.
func Forbidden(t Type, role model.Role) Error {
	msg := fmt.Sprintf("role %q may not send %s", role, t)
	return Error{Message: "Forbidden", Data: ErrorData{Code: CodeForbidden, Message: msg}}
}
