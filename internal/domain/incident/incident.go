// Package incident builds after-action reports from emergency records.
package incident

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/okian/stomp/internal/domain/model"
)

// Timeline events.
const (
	EventDetected     = "detected"
	EventInitiated    = "simulation_started"
	EventAcknowledged = "responder_acknowledged"
	EventResolved     = "resolved"
)

// Build assembles a report for rec. Active records are reported as of now.
func Build(rec model.EmergencyRecord, by model.Actor, notes string, now time.Time) model.IncidentReport {
	r := model.IncidentReport{
		EmergencyID: rec.ID,
		Kind:        rec.Kind,
		SubjectID:   rec.SubjectID,
		SubjectName: rec.SubjectName,
		Location:    rec.Location,
		Status:      rec.Status,
		DetectedAt:  rec.DetectedAt,
		ResolvedAt:  rec.ResolvedAt,
		Notes:       notes,
		GeneratedBy: by,
		GeneratedAt: now,
	}
	if rec.Vitals != nil {
		v := *rec.Vitals
		r.Vitals = &v
	}
	end := now
	if rec.ResolvedAt != nil {
		end = *rec.ResolvedAt
	}
	r.DurationSeconds = seconds(end.Sub(rec.DetectedAt))
	r.Responders = summarize(rec)
	if len(r.Responders) > 0 {
		first := lo.MinBy(r.Responders, func(a, b model.ResponderSummary) bool {
			return a.ResponseTimeSeconds < b.ResponseTimeSeconds
		}).ResponseTimeSeconds
		r.FirstResponseSeconds = &first
	}
	r.Timeline = timeline(rec)
	return r
}

func summarize(rec model.EmergencyRecord) []model.ResponderSummary {
	out := make([]model.ResponderSummary, 0, len(rec.Responders))
	for _, ack := range rec.Responders {
		s := model.ResponderSummary{
			Responder:           ack.Responder,
			Status:              ack.Status,
			ResponseTimeSeconds: math.Max(0, seconds(ack.At.Sub(rec.DetectedAt))),
		}
		if ack.ETA != nil {
			eta := *ack.ETA
			s.ETA = &eta
		}
		out = append(out, s)
	}
	return out
}

func timeline(rec model.EmergencyRecord) []model.TimelineEntry {
	entries := []model.TimelineEntry{{
		At:     rec.DetectedAt,
		Event:  EventDetected,
		Detail: detectedDetail(rec),
	}}
	if rec.InitiatedBy != nil {
		a := *rec.InitiatedBy
		entries = append(entries, model.TimelineEntry{At: rec.DetectedAt, Event: EventInitiated, Actor: &a})
	}
	for _, ack := range rec.Responders {
		a := ack.Responder
		detail := ack.Status
		if ack.ETA != nil {
			detail = fmt.Sprintf("%s, eta %d min", ack.Status, *ack.ETA)
		}
		entries = append(entries, model.TimelineEntry{At: ack.At, Event: EventAcknowledged, Actor: &a, Detail: detail})
	}
	if rec.ResolvedAt != nil {
		e := model.TimelineEntry{At: *rec.ResolvedAt, Event: EventResolved}
		if rec.ResolvedBy != nil {
			a := *rec.ResolvedBy
			e.Actor = &a
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })
	return entries
}

func detectedDetail(rec model.EmergencyRecord) string {
	if rec.Vitals == nil || rec.Vitals.AnomalyType == "" {
		return string(rec.Kind)
	}
	return fmt.Sprintf("%s, heart rate %d", rec.Vitals.AnomalyType, rec.Vitals.HeartRate)
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*10) / 10
}
