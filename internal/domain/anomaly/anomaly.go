// Package anomaly flags vital-sign readings that warrant an emergency.
package anomaly

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/stomp/internal/domain/model"
)

// Default thresholds.
const (
	defaultHeartRateMax   = 170
	defaultHeartRateMin   = 40
	defaultOxygenMin      = 90
	defaultRespiratoryMax = 25
)

// Conditions reported for each kind of breach.
const (
	ConditionTachycardia = "Ventricular Tachycardia"
	ConditionBradycardia = "Bradycardia"
	ConditionHypoxemia   = "Hypoxemia"
	ConditionTachypnea   = "Tachypnea"
)

// Severity levels.
const (
	SeverityNone     = "none"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Thresholds are inclusive limits; a value equal to a limit is normal.
type Thresholds struct {
	HeartRateMax   int
	HeartRateMin   int
	OxygenMin      int
	RespiratoryMax int
}

// DefaultThresholds returns the built-in limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HeartRateMax:   defaultHeartRateMax,
		HeartRateMin:   defaultHeartRateMin,
		OxygenMin:      defaultOxygenMin,
		RespiratoryMax: defaultRespiratoryMax,
	}
}

// Reading is one sample from a wearable.
type Reading struct {
	ID               string   `json:"reading_id"`
	AthleteID        string   `json:"athlete_id"`
	HeartRate        int      `json:"heart_rate"`
	BloodPressure    string   `json:"blood_pressure,omitempty"`
	OxygenSaturation int      `json:"oxygen_saturation"`
	RespiratoryRate  int      `json:"respiratory_rate,omitempty"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
}

// Finding is one breached threshold.
type Finding struct {
	Metric    string `json:"metric"`
	Value     int    `json:"value"`
	Limit     int    `json:"limit"`
	Condition string `json:"condition"`
}

// Assessment is the detector's verdict on a reading.
type Assessment struct {
	Anomalous  bool      `json:"anomalous"`
	Severity   string    `json:"severity"`
	Condition  string    `json:"condition,omitempty"`
	Confidence float64   `json:"confidence"`
	Findings   []Finding `json:"findings"`
}

// Detector evaluates readings.
type Detector interface {
	Evaluate(ctx context.Context, r Reading) (Assessment, error)
}

// ThresholdDetector flags readings outside fixed limits.
type ThresholdDetector struct {
	limits Thresholds
}

// NewThresholdDetector builds a detector with the default limits unless overridden.
func NewThresholdDetector(opts ...Option) *ThresholdDetector {
	d := &ThresholdDetector{limits: DefaultThresholds()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Thresholds returns the active limits.
func (d *ThresholdDetector) Thresholds() Thresholds { return d.limits }

// Evaluate checks r against every limit. Findings are ordered heart rate,
// oxygen, respiration; the first one names the condition.
func (d *ThresholdDetector) Evaluate(ctx context.Context, r Reading) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, fmt.Errorf("evaluate reading: %w", err)
	}
	if r.HeartRate < 0 || r.OxygenSaturation < 0 || r.OxygenSaturation > 100 || r.RespiratoryRate < 0 {
		return Assessment{}, fmt.Errorf("%w: values out of physical range", ErrInvalidReading)
	}

	findings := make([]Finding, 0, 2)
	switch {
	case r.HeartRate > d.limits.HeartRateMax:
		findings = append(findings, Finding{"heart_rate", r.HeartRate, d.limits.HeartRateMax, ConditionTachycardia})
	case r.HeartRate > 0 && r.HeartRate < d.limits.HeartRateMin:
		findings = append(findings, Finding{"heart_rate", r.HeartRate, d.limits.HeartRateMin, ConditionBradycardia})
	}
	if r.OxygenSaturation > 0 && r.OxygenSaturation < d.limits.OxygenMin {
		findings = append(findings, Finding{"oxygen_saturation", r.OxygenSaturation, d.limits.OxygenMin, ConditionHypoxemia})
	}
	if r.RespiratoryRate > d.limits.RespiratoryMax {
		findings = append(findings, Finding{"respiratory_rate", r.RespiratoryRate, d.limits.RespiratoryMax, ConditionTachypnea})
	}

	a := Assessment{Severity: SeverityNone, Findings: findings}
	if len(findings) == 0 {
		return a, nil
	}
	a.Anomalous = true
	a.Condition = findings[0].Condition
	a.Severity = SeverityHigh
	if findings[0].Metric == "heart_rate" || len(findings) > 1 {
		a.Severity = SeverityCritical
	}
	a.Confidence = confidence(findings)
	return a, nil
}

// confidence grows with the relative size of the worst breach.
func confidence(findings []Finding) float64 {
	worst := 0.0
	for _, f := range findings {
		if f.Limit == 0 {
			continue
		}
		worst = math.Max(worst, math.Abs(float64(f.Value-f.Limit))/float64(f.Limit))
	}
	c := 0.5 + worst*2
	return math.Round(math.Min(0.99, c)*100) / 100
}

// Vitals converts the reading and its assessment into the emergency payload.
func Vitals(r Reading, a Assessment) model.VitalSigns {
	return model.VitalSigns{
		HeartRate:        r.HeartRate,
		BloodPressure:    r.BloodPressure,
		OxygenSaturation: r.OxygenSaturation,
		RespiratoryRate:  r.RespiratoryRate,
		AnomalyType:      a.Condition,
		Confidence:       a.Confidence,
	}
}
