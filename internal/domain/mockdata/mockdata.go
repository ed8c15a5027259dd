// Package mockdata generates plausible dashboard figures until real wearable
// feeds exist. Output is random but always within physiological ranges.
package mockdata

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/samber/lo"
)

const firmwareVersion = "v2.1.3"

// Athlete status buckets.
const (
	StatusNormal   = "normal"
	StatusElevated = "elevated"
	StatusWarning  = "warning"
)

var (
	positions      = []string{"Forward", "Midfielder", "Defender", "Goalkeeper"}
	statusWeights  = []string{StatusNormal, StatusNormal, StatusNormal, StatusElevated, StatusWarning}
	trainingLevels = []string{"normal", "high", "low"}
)

// Vitals is a live vital-sign snapshot.
type Vitals struct {
	HeartRate        int       `json:"heart_rate"`
	BloodPressure    string    `json:"blood_pressure"`
	BodyTemperature  float64   `json:"body_temperature"`
	RespiratoryRate  int       `json:"respiratory_rate"`
	OxygenSaturation int       `json:"oxygen_saturation"`
	Timestamp        time.Time `json:"timestamp"`
}

// CPRStatus describes the wearable CPR device.
type CPRStatus struct {
	DeviceStatus    string    `json:"device_status"`
	BatteryLevel    int       `json:"battery_level"`
	LastChecked     time.Time `json:"last_checked"`
	FirmwareVersion string    `json:"firmware_version"`
}

// AthleteStatus is one row of the coach's team overview.
type AthleteStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
	HeartRate   int       `json:"heart_rate"`
	Location    string    `json:"location"`
}

// AthleteInfo is static profile data.
type AthleteInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Position     string `json:"position"`
	JerseyNumber int    `json:"jersey_number"`
}

// TrainingLoad summarizes recent effort.
type TrainingLoad struct {
	Today         int    `json:"today"`
	WeeklyAverage int    `json:"weekly_average"`
	Status        string `json:"status"`
}

// DayStatus is one entry of an athlete's recent history.
type DayStatus struct {
	Date   string `json:"date"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// AthleteDetail is the coach's drill-down for one athlete.
type AthleteDetail struct {
	Info          AthleteInfo  `json:"athlete_info"`
	Vitals        Vitals       `json:"vital_signs"`
	CPR           CPRStatus    `json:"cpr_system"`
	TrainingLoad  TrainingLoad `json:"training_load"`
	RecentHistory []DayStatus  `json:"recent_history"`
}

// TeamOverview aggregates athlete statuses.
type TeamOverview struct {
	TotalAthletes int            `json:"total_athletes"`
	StatusSummary map[string]int `json:"status_summary"`
}

// Generator produces mock figures. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// New builds a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // mock figures only
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// between returns a value in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) pick(from []string) string {
	return from[g.rng.Intn(len(from))]
}

// Vitals returns resting vital signs.
func (g *Generator) Vitals() Vitals {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.vitals()
}

func (g *Generator) vitals() Vitals {
	return Vitals{
		HeartRate:        g.between(60, 100),
		BloodPressure:    fmt.Sprintf("%d/%d", g.between(110, 140), g.between(70, 90)),
		BodyTemperature:  math.Round((36.1+g.rng.Float64()*1.4)*10) / 10,
		RespiratoryRate:  g.between(12, 20),
		OxygenSaturation: g.between(95, 100),
		Timestamp:        g.now().UTC(),
	}
}

// CPR returns a CPR device status.
func (g *Generator) CPR() CPRStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cpr()
}

func (g *Generator) cpr() CPRStatus {
	return CPRStatus{
		DeviceStatus:    g.pick([]string{"active", "standby"}),
		BatteryLevel:    g.between(70, 100),
		LastChecked:     g.now().Add(-time.Duration(g.between(1, 24)) * time.Hour).UTC(),
		FirmwareVersion: firmwareVersion,
	}
}

// CrisisHeartRate returns a heart rate typical of a cardiac event.
func (g *Generator) CrisisHeartRate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.between(150, 220)
}

// Team returns n athlete status rows and their overview.
func (g *Generator) Team(n int) (TeamOverview, []AthleteStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	athletes := make([]AthleteStatus, n)
	for i := range athletes {
		status := g.pick(statusWeights)
		hr := g.between(60, 100)
		if status != StatusNormal {
			hr = g.between(100, 140)
		}
		location := "Field Zone A"
		if status == StatusWarning {
			location = "Medical Tent"
		}
		athletes[i] = AthleteStatus{
			ID:          fmt.Sprintf("athlete-%d", i+1),
			Name:        name(),
			Status:      status,
			LastUpdated: g.now().UTC(),
			HeartRate:   hr,
			Location:    location,
		}
	}
	counts := lo.CountValuesBy(athletes, func(a AthleteStatus) string { return a.Status })
	summary := map[string]int{StatusNormal: 0, StatusElevated: 0, StatusWarning: 0}
	for k, v := range counts {
		summary[k] = v
	}
	return TeamOverview{TotalAthletes: n, StatusSummary: summary}, athletes
}

// Athlete returns the drill-down for id.
func (g *Generator) Athlete(id string) AthleteDetail {
	g.mu.Lock()
	defer g.mu.Unlock()
	history := make([]DayStatus, 7)
	today := g.now()
	for i := range history {
		history[i] = DayStatus{
			Date:   today.AddDate(0, 0, -(i + 1)).Format(time.DateOnly),
			Status: g.pick([]string{StatusNormal, StatusNormal, StatusElevated}),
		}
	}
	return AthleteDetail{
		Info: AthleteInfo{
			ID:           id,
			Name:         name(),
			Age:          g.between(18, 35),
			Position:     g.pick(positions),
			JerseyNumber: g.between(1, 99),
		},
		Vitals: g.vitals(),
		CPR:    g.cpr(),
		TrainingLoad: TrainingLoad{
			Today:         g.between(300, 800),
			WeeklyAverage: g.between(400, 700),
			Status:        g.pick(trainingLevels),
		},
		RecentHistory: history,
	}
}

func name() string {
	return faker.FirstName() + " " + faker.LastName()
}
