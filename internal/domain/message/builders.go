package message

import (
	"fmt"
	"time"

	"github.com/okian/stomp/internal/domain/model"
)

const subjectAlertText = "Medical emergency detected. Help is on the way."

// SubjectAlert is what the athlete concerned sees.
func SubjectAlert(rec model.EmergencyRecord) EmergencyAlert {
	return EmergencyAlert{
		Severity:   SeverityCritical,
		Message:    drill(rec, subjectAlertText),
		Simulation: rec.IsSimulation(),
		Data:       rec.Clone(),
	}
}

// ResponderAlert is what coaches, referees and teammates see.
func ResponderAlert(rec model.EmergencyRecord) EmergencyAlert {
	name := rec.SubjectName
	if name == "" {
		name = rec.SubjectID
	}
	return EmergencyAlert{
		Severity:   SeverityCritical,
		Message:    drill(rec, fmt.Sprintf("URGENT: Athlete %s needs immediate assistance!", name)),
		Simulation: rec.IsSimulation(),
		Data:       rec.Clone(),
	}
}

func drill(rec model.EmergencyRecord, text string) string {
	if rec.IsSimulation() {
		return "[SIMULATION] " + text
	}
	return text
}

// Resolved builds the resolution frame for a record that has been resolved.
func Resolved(rec model.EmergencyRecord) EmergencyResolved {
	res := Resolution{
		EmergencyID: rec.ID,
		Kind:        rec.Kind,
		SubjectID:   rec.SubjectID,
		Simulation:  rec.IsSimulation(),
	}
	if rec.ResolvedBy != nil {
		res.ResolvedBy = *rec.ResolvedBy
	}
	if rec.ResolvedAt != nil {
		res.ResolvedAt = rec.ResolvedAt.UTC()
		res.DurationSeconds = rec.ResolvedAt.Sub(rec.DetectedAt).Seconds()
	}
	return EmergencyResolved{EmergencyID: rec.ID, Data: res}
}

// Updated builds the relay frame for a responder acknowledgement.
func Updated(emergencyID, subjectID string, ack model.ResponderAck) EmergencyUpdate {
	r := Responder{UserID: ack.Responder.ID, Role: ack.Responder.Role, Status: ack.Status, ETA: ack.ETA}
	at := ack.At
	if at.IsZero() {
		at = time.Now()
	}
	return EmergencyUpdate{
		EmergencyID: emergencyID,
		Responder:   r,
		Data:        Update{EmergencyID: emergencyID, SubjectID: subjectID, Responder: r, At: at.UTC()},
	}
}
