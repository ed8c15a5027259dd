package anomaly

// Option configures a ThresholdDetector.
type Option func(*ThresholdDetector)

// WithThresholds replaces the limits. Non-positive fields keep their default.
func WithThresholds(t Thresholds) Option {
	return func(d *ThresholdDetector) {
		if t.HeartRateMax > 0 {
			d.limits.HeartRateMax = t.HeartRateMax
		}
		if t.HeartRateMin > 0 {
			d.limits.HeartRateMin = t.HeartRateMin
		}
		if t.OxygenMin > 0 {
			d.limits.OxygenMin = t.OxygenMin
		}
		if t.RespiratoryMax > 0 {
			d.limits.RespiratoryMax = t.RespiratoryMax
		}
	}
}
