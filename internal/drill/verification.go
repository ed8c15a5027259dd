package drill

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/okian/stomp/internal/domain/model"
	"github.com/okian/stomp/pkg/logger"
)

// delivery is one frame a recipient must see.
type delivery struct {
	emergency raised
	recipient account
}

// expected lists who must hear about each emergency: its athlete and every
// responder.
func expected(emergencies []raised, team roster) []delivery {
	var out []delivery
	for _, e := range emergencies {
		out = append(out, delivery{emergency: e, recipient: e.Subject})
		for _, r := range team.responders() {
			out = append(out, delivery{emergency: e, recipient: r})
		}
	}
	return out
}

// await polls seen until every delivery arrived or timeout passes, and
// returns the ones still missing.
func await(ctx context.Context, want []delivery, seen func(emergencyID, userID string) (time.Time, bool), timeout time.Duration) []delivery {
	deadline := time.Now().Add(timeout)
	for {
		var missing []delivery
		for _, d := range want {
			if _, ok := seen(d.emergency.ID, d.recipient.ID); !ok {
				missing = append(missing, d)
			}
		}
		if len(missing) == 0 || time.Now().After(deadline) || ctx.Err() != nil {
			return missing
		}
		time.Sleep(pollInterval)
	}
}

// latencies groups alert delivery times by recipient role.
func latencies(want []delivery, l *listener) map[model.Role][]time.Duration {
	out := map[model.Role][]time.Duration{}
	for _, d := range want {
		at, ok := l.alertAt(d.emergency.ID, d.recipient.ID)
		if !ok {
			continue
		}
		lat := at.Sub(d.emergency.SentAt)
		if lat < 0 {
			lat = 0
		}
		out[d.recipient.Role] = append(out[d.recipient.Role], lat)
	}
	return out
}

// summarize computes nearest-rank percentiles.
func summarize(samples []time.Duration) LatencySummary {
	if len(samples) == 0 {
		return LatencySummary{}
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return LatencySummary{
		Count: len(sorted),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		Max:   sorted[len(sorted)-1],
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	rank := (p*len(sorted) + percentageMultiplier - 1) / percentageMultiplier
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func describe(kind string, missing []delivery) []string {
	out := make([]string, 0, len(missing))
	for _, d := range missing {
		out = append(out, fmt.Sprintf("%s %s -> %s (%s)", kind, d.emergency.ID, d.recipient.ID, d.recipient.Role))
	}
	return out
}

// displayFinalStats logs the drill summary.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var deliveryRate float64
	if total := stats.AlertsExpected + stats.ResolutionsExpected; total > 0 {
		deliveryRate = float64(stats.AlertsDelivered+stats.ResolutionsDelivered) / float64(total) * percentageMultiplier
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("accounts", stats.AccountsProvisioned),
		logger.Int("connections", stats.ConnectionsOpened),
		logger.Int("readingsSubmitted", stats.ReadingsSubmitted),
		logger.Int("readingsDuplicate", stats.ReadingsDuplicate),
		logger.Int("readingsFailed", stats.ReadingsFailed),
		logger.Int("emergenciesRaised", stats.EmergenciesRaised),
		logger.Int("alertsDelivered", stats.AlertsDelivered),
		logger.Int("alertsExpected", stats.AlertsExpected),
		logger.Int("resolutionsDelivered", stats.ResolutionsDelivered),
		logger.Int("resolutionsExpected", stats.ResolutionsExpected),
		logger.Float64("deliveryRate", deliveryRate),
		logger.Duration("duration", stats.Duration))
	for _, role := range model.Roles() {
		s, ok := stats.AlertLatency[role]
		if !ok {
			continue
		}
		logger.Get().Info(ctx, "alert latency",
			logger.String("role", string(role)),
			logger.Int("count", s.Count),
			logger.Duration("p50", s.P50),
			logger.Duration("p95", s.P95),
			logger.Duration("max", s.Max))
	}
	for _, m := range stats.Missing {
		logger.Get().Error(ctx, "missing delivery", logger.String("delivery", m))
	}
}
