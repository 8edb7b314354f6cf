package analytics

import (
	"sort"
	"time"

	"github.com/northbridge/tenderops/internal/models"
)

// Rollups computed over a window of ledger rows. All computation here is pure;
// the Reporter wires it to the store.

// Summary is the headline rollup for one reporting window.
type Summary struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalAlerts          int     `json:"total_alerts"`
	Acknowledged         int     `json:"acknowledged"`
	Resolved             int     `json:"resolved"`
	Escalated            int     `json:"escalated"`
	ResolutionRate       float64 `json:"resolution_rate"`
	SLACompliance        float64 `json:"sla_compliance"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`

	ByPriority map[string]int `json:"by_priority"`
	ByRuleType map[string]int `json:"by_rule"`
}

// Trend compares a value against the immediately preceding window.
type Trend struct {
	Value     float64 `json:"value"`
	Change    float64 `json:"change"`    // percent vs previous window
	Direction string  `json:"direction"` // up, down, stable
}

// LeaderboardRow is one handler's standing.
type LeaderboardRow struct {
	UserID               string  `json:"user_id"`
	Handled              int     `json:"handled"`
	Resolved             int     `json:"resolved"`
	ResolutionRate       float64 `json:"resolution_rate"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`
	AvgSatisfaction      float64 `json:"avg_satisfaction"`
	SLACompliance        float64 `json:"sla_compliance"`
	Score                float64 `json:"score"`
}

// Summarize rolls a window of ledger rows up into a Summary. slaTarget is the
// acknowledgement deadline used for compliance.
func Summarize(rows []models.AlertHistory, from, to time.Time, slaTarget time.Duration) Summary {
	s := Summary{
		From:       from,
		To:         to,
		ByPriority: map[string]int{},
		ByRuleType: map[string]int{},
	}

	var totalResolutionMin float64
	for _, h := range rows {
		s.TotalAlerts++
		s.ByPriority[h.Priority]++
		s.ByRuleType[h.RuleName]++
		if h.Acknowledged {
			s.Acknowledged++
			if withinSLA(h, slaTarget) {
				s.SLACompliance++ // running count, normalized below
			}
		}
		if h.ResolvedAt != nil {
			s.Resolved++
			totalResolutionMin += h.ResolvedAt.Sub(h.TriggeredAt).Minutes()
		}
		if h.Escalated {
			s.Escalated++
		}
	}

	s.ResolutionRate = ratio(s.Resolved, s.TotalAlerts)
	s.SLACompliance = ratio(int(s.SLACompliance), s.TotalAlerts)
	if s.Resolved > 0 {
		s.AvgResolutionMinutes = totalResolutionMin / float64(s.Resolved)
	}
	return s
}

func withinSLA(h models.AlertHistory, target time.Duration) bool {
	return h.AcknowledgedAt != nil && h.AcknowledgedAt.Sub(h.TriggeredAt) <= target
}

// ratio returns a/b as a fraction, 0 when b is 0.
func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// WinRate is won/(won+lost); 0 when no outcomes exist yet.
func WinRate(won, lost int) float64 {
	return ratio(won, won+lost)
}

// TrendOf compares current against previous. A zero baseline reports the
// current value with a stable direction rather than an undefined change.
func TrendOf(current, previous float64) Trend {
	if previous == 0 {
		return Trend{Value: current, Change: 0, Direction: "stable"}
	}
	change := (current - previous) / previous * 100
	dir := "stable"
	switch {
	case change > 0:
		dir = "up"
	case change < 0:
		dir = "down"
	}
	return Trend{Value: current, Change: change, Direction: dir}
}

// Leaderboard weights for the composite handler score.
const (
	weightVolume       = 0.20
	weightResolution   = 0.30
	weightSpeed        = 0.20
	weightSatisfaction = 0.15
	weightSLA          = 0.15

	// speedBaselineMinutes is the resolution time that scores zero on the
	// speed component; instant resolution scores one.
	speedBaselineMinutes = 8 * 60
)

// Leaderboard ranks handlers by a weighted composite of volume, resolution
// rate, resolution speed, satisfaction and SLA compliance. Volume is
// normalized against the busiest handler in the window.
func Leaderboard(rows []models.AlertHistory, slaTarget time.Duration) []LeaderboardRow {
	type agg struct {
		handled       int
		resolved      int
		withinSLA     int
		resolutionMin float64
		satTotal      int
		satCount      int
	}
	byUser := map[string]*agg{}
	for _, h := range rows {
		if !h.Acknowledged || h.AcknowledgedBy == "" {
			continue
		}
		a, ok := byUser[h.AcknowledgedBy]
		if !ok {
			a = &agg{}
			byUser[h.AcknowledgedBy] = a
		}
		a.handled++
		if withinSLA(h, slaTarget) {
			a.withinSLA++
		}
		if h.ResolvedAt != nil {
			a.resolved++
			a.resolutionMin += h.ResolvedAt.Sub(h.TriggeredAt).Minutes()
		}
		if h.Satisfaction != nil {
			a.satTotal += *h.Satisfaction
			a.satCount++
		}
	}

	maxHandled := 0
	for _, a := range byUser {
		if a.handled > maxHandled {
			maxHandled = a.handled
		}
	}

	out := make([]LeaderboardRow, 0, len(byUser))
	for userID, a := range byUser {
		row := LeaderboardRow{
			UserID:         userID,
			Handled:        a.handled,
			Resolved:       a.resolved,
			ResolutionRate: ratio(a.resolved, a.handled),
			SLACompliance:  ratio(a.withinSLA, a.handled),
		}
		if a.resolved > 0 {
			row.AvgResolutionMinutes = a.resolutionMin / float64(a.resolved)
		}
		if a.satCount > 0 {
			row.AvgSatisfaction = float64(a.satTotal) / float64(a.satCount)
		}

		speed := 0.0
		if a.resolved > 0 {
			speed = 1 - row.AvgResolutionMinutes/speedBaselineMinutes
			if speed < 0 {
				speed = 0
			}
		}
		row.Score = weightVolume*ratio(a.handled, maxHandled) +
			weightResolution*row.ResolutionRate +
			weightSpeed*speed +
			weightSatisfaction*row.AvgSatisfaction/5 +
			weightSLA*row.SLACompliance

		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
