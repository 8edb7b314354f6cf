package analytics

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/northbridge/tenderops/internal/models"
)

// Store is the read-only ledger surface the aggregator consumes.
// *db.AlertStore implements it.
type Store interface {
	ListHistoryBetween(ctx context.Context, from, to time.Time) ([]models.AlertHistory, error)
	CountOutcomes(ctx context.Context, from, to time.Time) (won, lost int, err error)
}

// Reporter assembles the analytics endpoints from ledger rollups.
type Reporter struct {
	store     Store
	slaTarget time.Duration
	now       func() time.Time
}

func NewReporter(store Store, slaTarget time.Duration) *Reporter {
	return &Reporter{store: store, slaTarget: slaTarget, now: time.Now}
}

// Report is the full rollup for a window, with trends against the preceding
// window of equal length and the tender win rate.
type Report struct {
	Summary Summary          `json:"summary"`
	Trends  map[string]Trend `json:"trends"`
	WinRate float64          `json:"win_rate"`
	Won     int              `json:"won"`
	Lost    int              `json:"lost"`
}

func (r *Reporter) Report(ctx context.Context, from, to time.Time) (*Report, error) {
	rows, err := r.store.ListHistoryBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	window := to.Sub(from)
	prevRows, err := r.store.ListHistoryBetween(ctx, from.Add(-window), from)
	if err != nil {
		return nil, err
	}

	cur := Summarize(rows, from, to, r.slaTarget)
	prev := Summarize(prevRows, from.Add(-window), from, r.slaTarget)

	won, lost, err := r.store.CountOutcomes(ctx, from, to)
	if err != nil {
		return nil, err
	}

	return &Report{
		Summary: cur,
		Trends: map[string]Trend{
			"total_alerts":    TrendOf(float64(cur.TotalAlerts), float64(prev.TotalAlerts)),
			"resolution_rate": TrendOf(cur.ResolutionRate, prev.ResolutionRate),
			"sla_compliance":  TrendOf(cur.SLACompliance, prev.SLACompliance),
			"escalated":       TrendOf(float64(cur.Escalated), float64(prev.Escalated)),
		},
		WinRate: WinRate(won, lost),
		Won:     won,
		Lost:    lost,
	}, nil
}

func (r *Reporter) Leaderboard(ctx context.Context, from, to time.Time) ([]LeaderboardRow, error) {
	rows, err := r.store.ListHistoryBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return Leaderboard(rows, r.slaTarget), nil
}

// Insights derives short operator-facing observations from the window.
func (r *Reporter) Insights(ctx context.Context, from, to time.Time) ([]string, error) {
	rep, err := r.Report(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s := rep.Summary

	var out []string
	if s.TotalAlerts == 0 {
		return []string{"No alerts triggered in this window."}, nil
	}
	if s.SLACompliance < 0.8 {
		out = append(out, fmt.Sprintf("SLA compliance is %.0f%%; target is 80%%+.", s.SLACompliance*100))
	}
	if unacked := s.TotalAlerts - s.Acknowledged; unacked > 0 {
		out = append(out, fmt.Sprintf("%d alert(s) are still unacknowledged.", unacked))
	}
	if s.Escalated > 0 {
		out = append(out, fmt.Sprintf("%d alert(s) escalated; %.0f%% of total.", s.Escalated, float64(s.Escalated)/float64(s.TotalAlerts)*100))
	}
	if name, n := topKey(s.ByRuleType); name != "" {
		out = append(out, fmt.Sprintf("Noisiest rule: %q with %d alert(s).", name, n))
	}
	if t := rep.Trends["total_alerts"]; t.Direction == "up" && t.Change >= 50 {
		out = append(out, fmt.Sprintf("Alert volume up %.0f%% vs the previous window.", t.Change))
	}
	if rep.Won+rep.Lost > 0 {
		out = append(out, fmt.Sprintf("Tender win rate: %.0f%% (%d won, %d lost).", rep.WinRate*100, rep.Won, rep.Lost))
	}
	if len(out) == 0 {
		out = append(out, "All alerts handled within target; no anomalies detected.")
	}
	return out, nil
}

// Dashboard is the default seven-day rollup for the analytics landing view.
func (r *Reporter) Dashboard(ctx context.Context) (map[string]any, error) {
	to := r.now()
	from := to.AddDate(0, 0, -7)

	rep, err := r.Report(ctx, from, to)
	if err != nil {
		return nil, err
	}
	board, err := r.Leaderboard(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(board) > 5 {
		board = board[:5]
	}
	return map[string]any{
		"window_days": 7,
		"report":      rep,
		"top_handlers": board,
	}, nil
}

// AdminReport is one handler's standing plus the alerts they acknowledged.
func (r *Reporter) AdminReport(ctx context.Context, adminID string, from, to time.Time) (map[string]any, error) {
	rows, err := r.store.ListHistoryBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var mine []models.AlertHistory
	for _, h := range rows {
		if h.Acknowledged && h.AcknowledgedBy == adminID {
			mine = append(mine, h)
		}
	}

	var standing *LeaderboardRow
	rank := 0
	for i, row := range Leaderboard(rows, r.slaTarget) {
		if row.UserID == adminID {
			cp := row
			standing = &cp
			rank = i + 1
			break
		}
	}

	return map[string]any{
		"admin_id": adminID,
		"rank":     rank,
		"standing": standing,
		"handled":  mine,
	}, nil
}

// ExportCSV streams the window's ledger rows as CSV.
func (r *Reporter) ExportCSV(ctx context.Context, from, to time.Time, w io.Writer) error {
	rows, err := r.store.ListHistoryBetween(ctx, from, to)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{
		"id", "rule_name", "subject_type", "subject_id", "priority", "title",
		"triggered_at", "delivered", "delivered_channels",
		"acknowledged", "acknowledged_by", "acknowledged_at",
		"action_taken", "resolved_at", "satisfaction", "escalated",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, h := range rows {
		rec := []string{
			h.ID.String(),
			h.RuleName,
			h.SubjectType,
			h.SubjectID.String(),
			h.Priority,
			h.Title,
			h.TriggeredAt.Format(time.RFC3339),
			strconv.FormatBool(h.Delivered),
			strings.Join(h.DeliveredChannels, ";"),
			strconv.FormatBool(h.Acknowledged),
			h.AcknowledgedBy,
			timeOrEmpty(h.AcknowledgedAt),
			h.ActionTaken,
			timeOrEmpty(h.ResolvedAt),
			intOrEmpty(h.Satisfaction),
			strconv.FormatBool(h.Escalated),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func topKey(m map[string]int) (string, int) {
	best, n := "", 0
	for k, v := range m {
		if v > n || (v == n && best != "" && k < best) {
			best, n = k, v
		}
	}
	return best, n
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func intOrEmpty(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
