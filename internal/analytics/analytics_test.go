package analytics

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

const slaTarget = 30 * time.Minute

func ledgerRow(triggered time.Time, ackAfter, resolveAfter time.Duration, by string, satisfaction *int) models.AlertHistory {
	h := models.AlertHistory{
		ID:          uuid.New(),
		RuleName:    "big tenders",
		Priority:    models.PriorityHigh,
		TriggeredAt: triggered,
	}
	if ackAfter > 0 {
		at := triggered.Add(ackAfter)
		h.Acknowledged = true
		h.AcknowledgedBy = by
		h.AcknowledgedAt = &at
	}
	if resolveAfter > 0 {
		rt := triggered.Add(resolveAfter)
		h.ResolvedAt = &rt
		h.ActionTaken = "reviewed"
		h.Satisfaction = satisfaction
	}
	return h
}

func sat(v int) *int { return &v }

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.AlertHistory{
		ledgerRow(base, 10*time.Minute, 60*time.Minute, "u1", sat(5)),  // in SLA, resolved
		ledgerRow(base, 45*time.Minute, 120*time.Minute, "u2", sat(3)), // late ack, resolved
		ledgerRow(base, 0, 0, "", nil),                                 // untouched
		ledgerRow(base, 20*time.Minute, 0, "u1", nil),                  // acked only
	}
	rows[2].Escalated = true

	s := Summarize(rows, base, base.Add(24*time.Hour), slaTarget)

	if s.TotalAlerts != 4 || s.Acknowledged != 3 || s.Resolved != 2 || s.Escalated != 1 {
		t.Fatalf("counts = total %d ack %d resolved %d escalated %d", s.TotalAlerts, s.Acknowledged, s.Resolved, s.Escalated)
	}
	if s.ResolutionRate != 0.5 {
		t.Fatalf("resolution rate = %v, want 0.5", s.ResolutionRate)
	}
	if s.SLACompliance != 0.5 {
		t.Fatalf("sla compliance = %v, want 0.5 (2 of 4 acked in time)", s.SLACompliance)
	}
	if s.AvgResolutionMinutes != 90 {
		t.Fatalf("avg resolution = %v min, want 90", s.AvgResolutionMinutes)
	}
}

func TestSummarize_EmptyWindow(t *testing.T) {
	base := time.Now()
	s := Summarize(nil, base, base, slaTarget)
	if s.ResolutionRate != 0 || s.SLACompliance != 0 || s.AvgResolutionMinutes != 0 {
		t.Fatalf("empty window rates = %v/%v/%v, want zeros", s.ResolutionRate, s.SLACompliance, s.AvgResolutionMinutes)
	}
}

func TestTrendOf(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		previous  float64
		wantDir   string
		wantValue float64
		wantChg   float64
	}{
		{"zero baseline is stable", 12, 0, "stable", 12, 0},
		{"growth", 15, 10, "up", 15, 50},
		{"decline", 5, 10, "down", 5, -50},
		{"flat", 10, 10, "stable", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrendOf(tt.current, tt.previous)
			if got.Direction != tt.wantDir || got.Value != tt.wantValue || math.Abs(got.Change-tt.wantChg) > 1e-9 {
				t.Fatalf("TrendOf(%v, %v) = %+v", tt.current, tt.previous, got)
			}
		})
	}
}

func TestWinRate(t *testing.T) {
	if got := WinRate(0, 0); got != 0 {
		t.Fatalf("WinRate(0,0) = %v, want 0", got)
	}
	if got := WinRate(3, 1); got != 0.75 {
		t.Fatalf("WinRate(3,1) = %v, want 0.75", got)
	}
}

func TestLeaderboard_RanksFastResolverFirst(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var rows []models.AlertHistory

	// u1: 3 handled, all resolved fast, in SLA, happy raters.
	for i := 0; i < 3; i++ {
		rows = append(rows, ledgerRow(base, 5*time.Minute, 30*time.Minute, "u1", sat(5)))
	}
	// u2: 3 handled, slow acks, one resolution, low satisfaction.
	for i := 0; i < 3; i++ {
		rows = append(rows, ledgerRow(base, 2*time.Hour, 0, "u2", nil))
	}
	rows = append(rows, ledgerRow(base, 2*time.Hour, 10*time.Hour, "u2", sat(2)))
	// Unacknowledged rows never count toward anyone.
	rows = append(rows, ledgerRow(base, 0, 0, "", nil))

	board := Leaderboard(rows, slaTarget)
	if len(board) != 2 {
		t.Fatalf("leaderboard has %d rows, want 2", len(board))
	}
	if board[0].UserID != "u1" {
		t.Fatalf("top handler = %q, want u1", board[0].UserID)
	}
	if board[0].Score <= board[1].Score {
		t.Fatalf("scores not descending: %v then %v", board[0].Score, board[1].Score)
	}
	if board[0].ResolutionRate != 1 || board[0].SLACompliance != 1 {
		t.Fatalf("u1 rates = %v/%v, want 1/1", board[0].ResolutionRate, board[0].SLACompliance)
	}
	if board[1].Handled != 4 {
		t.Fatalf("u2 handled = %d, want 4", board[1].Handled)
	}
}

// fakeLedger implements Store in memory.
type fakeLedger struct {
	rows []models.AlertHistory
	won  int
	lost int
}

func (f *fakeLedger) ListHistoryBetween(_ context.Context, from, to time.Time) ([]models.AlertHistory, error) {
	var out []models.AlertHistory
	for _, h := range f.rows {
		if !h.TriggeredAt.Before(from) && h.TriggeredAt.Before(to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeLedger) CountOutcomes(_ context.Context, _, _ time.Time) (int, int, error) {
	return f.won, f.lost, nil
}

func TestReport_TrendsAgainstPrecedingWindow(t *testing.T) {
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -7)

	ledger := &fakeLedger{won: 2, lost: 2}
	// Current window: 4 alerts. Previous window: 2 alerts.
	for i := 0; i < 4; i++ {
		ledger.rows = append(ledger.rows, ledgerRow(from.Add(time.Duration(i)*time.Hour), 0, 0, "", nil))
	}
	for i := 0; i < 2; i++ {
		ledger.rows = append(ledger.rows, ledgerRow(from.AddDate(0, 0, -3), 0, 0, "", nil))
	}

	rep, err := NewReporter(ledger, slaTarget).Report(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if rep.Summary.TotalAlerts != 4 {
		t.Fatalf("total alerts = %d, want 4", rep.Summary.TotalAlerts)
	}
	trend := rep.Trends["total_alerts"]
	if trend.Direction != "up" || math.Abs(trend.Change-100) > 1e-9 {
		t.Fatalf("total_alerts trend = %+v, want +100%% up", trend)
	}
	if rep.WinRate != 0.5 {
		t.Fatalf("win rate = %v, want 0.5", rep.WinRate)
	}
}

func TestReport_ZeroBaselineTrendStable(t *testing.T) {
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -7)

	ledger := &fakeLedger{}
	ledger.rows = append(ledger.rows, ledgerRow(from.Add(time.Hour), 0, 0, "", nil))

	rep, err := NewReporter(ledger, slaTarget).Report(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	trend := rep.Trends["total_alerts"]
	if trend.Direction != "stable" || trend.Change != 0 || trend.Value != 1 {
		t.Fatalf("zero-baseline trend = %+v, want {1 0 stable}", trend)
	}
}

func TestExportCSV(t *testing.T) {
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -7)

	ledger := &fakeLedger{}
	ledger.rows = append(ledger.rows, ledgerRow(from.Add(time.Hour), 10*time.Minute, time.Hour, "u1", sat(4)))

	var buf strings.Builder
	if err := NewReporter(ledger, slaTarget).ExportCSV(context.Background(), from, to, &buf); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv has %d lines, want header + 1 row", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,rule_name,") {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "big tenders") || !strings.Contains(lines[1], "u1") {
		t.Fatalf("row missing fields: %q", lines[1])
	}
}
