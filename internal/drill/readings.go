package drill

import (
	"context"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/stomp/internal/domain/anomaly"
	"github.com/okian/stomp/internal/domain/types"
	"github.com/okian/stomp/pkg/logger"
)

// submission is one reading queued for an athlete.
type submission struct {
	athlete account
	reading anomaly.Reading
}

// raised is an emergency the drill caused.
type raised struct {
	ID      string
	Subject account
	SentAt  time.Time
}

// tally collects submission outcomes.
type tally struct {
	submitted  atomic.Int64
	normal     atomic.Int64
	duplicate  atomic.Int64
	suppressed atomic.Int64
	failed     atomic.Int64

	mu     sync.Mutex
	raised map[string]*raised
}

func between(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}

func restingReading(athleteID string) anomaly.Reading {
	return anomaly.Reading{
		ID:               uuid.NewString(),
		AthleteID:        athleteID,
		HeartRate:        between(restingHeartRateMin, restingHeartRateMax),
		OxygenSaturation: between(oxygenMin, oxygenMax),
		RespiratoryRate:  between(respiratoryMin, respiratoryMax),
	}
}

func crisisReading(athleteID string) anomaly.Reading {
	r := restingReading(athleteID)
	r.HeartRate = between(crisisHeartRateMin, crisisHeartRateMax)
	return r
}

// plan builds the readings: resting samples for everyone, one replayed
// sample per athlete, and a crisis sample for the first cfg.Emergencies
// athletes.
func plan(cfg *Config, athletes []account) []submission {
	var out []submission
	for i, a := range athletes {
		var first anomaly.Reading
		for n := 0; n < cfg.ReadingsPerAthlete; n++ {
			r := restingReading(a.ID)
			if n == 0 {
				first = r
			}
			out = append(out, submission{athlete: a, reading: r})
		}
		if cfg.ReadingsPerAthlete > 0 {
			out = append(out, submission{athlete: a, reading: first})
		}
		if i < cfg.Emergencies {
			out = append(out, submission{athlete: a, reading: crisisReading(a.ID)})
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// submitReadings posts every planned reading through a worker pool.
func submitReadings(ctx context.Context, c *HTTPClient, cfg *Config, subs []submission, stats *Stats) []raised {
	logger.Get().Info(ctx, "submitting readings", logger.Int("readings", len(subs)), logger.Int("workers", cfg.Workers))

	t := &tally{raised: map[string]*raised{}}
	_ = parallel(ctx, cfg.Workers, len(subs), func(ctx context.Context, i int) error {
		t.submit(ctx, c, subs[i])
		if cfg.Verbose {
			if n := t.submitted.Load(); n%100 == 0 {
				logger.Get().Debug(ctx, "progress", logger.Int64("submitted", n), logger.Int("total", len(subs)))
			}
		}
		return nil
	})

	stats.ReadingsSubmitted = int(t.submitted.Load())
	stats.ReadingsNormal = int(t.normal.Load())
	stats.ReadingsDuplicate = int(t.duplicate.Load())
	stats.ReadingsFailed = int(t.failed.Load())
	stats.EmergenciesSuppressed = int(t.suppressed.Load())

	out := make([]raised, 0, len(t.raised))
	for _, r := range t.raised {
		out = append(out, *r)
	}
	stats.EmergenciesRaised = len(out)
	logger.Get().Info(ctx, "reading submission completed",
		logger.Int("normal", stats.ReadingsNormal),
		logger.Int("duplicate", stats.ReadingsDuplicate),
		logger.Int("raised", stats.EmergenciesRaised),
		logger.Int("suppressed", stats.EmergenciesSuppressed),
		logger.Int("failed", stats.ReadingsFailed))
	return out
}

// submit posts one reading and classifies the response.
func (t *tally) submit(ctx context.Context, c *HTTPClient, s submission) {
	t.submitted.Add(1)
	sentAt := time.Now()
	var res types.IngestResult
	status, err := c.Do(ctx, http.MethodPost, "/api/vitals", s.athlete.Token, s.reading, &res)
	switch {
	case err != nil:
		t.failed.Add(1)
		logger.Get().Warn(ctx, "reading failed", logger.String("reading_id", s.reading.ID), logger.Error(err))
	case status == http.StatusOK && res.Duplicate:
		t.duplicate.Add(1)
	case status == http.StatusOK:
		t.normal.Add(1)
	case status == http.StatusAccepted && res.EmergencyID != "":
		t.raise(res.EmergencyID, s.athlete, sentAt)
	default:
		t.failed.Add(1)
		logger.Get().Warn(ctx, "reading rejected",
			logger.String("reading_id", s.reading.ID),
			logger.Int("status", status))
	}
}

// raise records the first report of an emergency; later ones for the same
// id were suppressed by the service.
func (t *tally) raise(id string, subject account, sentAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.raised[id]; ok {
		t.suppressed.Add(1)
		if sentAt.Before(r.SentAt) {
			r.SentAt = sentAt
		}
		return
	}
	t.raised[id] = &raised{ID: id, Subject: subject, SentAt: sentAt}
}
