package drill

import "time"

// Defaults used by the drill command.
const (
	DefaultAthletes           = 10
	DefaultCoaches            = 2
	DefaultReferees           = 2
	DefaultTeammates          = 4
	DefaultReadingsPerAthlete = 5
	DefaultEmergencies        = 3
	DefaultTimeout            = 10 * time.Second
	DefaultDeliveryTimeout    = 5 * time.Second
	DefaultPassword           = "drill-password-1"
)

const (
	minPasswordLength       = 8
	workerChannelMultiplier = 2
	pollInterval            = 20 * time.Millisecond
	percentageMultiplier    = 100
)

// Vital sign ranges for generated readings.
const (
	restingHeartRateMin = 60
	restingHeartRateMax = 100
	crisisHeartRateMin  = 185
	crisisHeartRateMax  = 210
	oxygenMin           = 95
	oxygenMax           = 100
	respiratoryMin      = 12
	respiratoryMax      = 20
)
