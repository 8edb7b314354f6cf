package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/northbridge/tenderops/internal/alerts"
	"github.com/northbridge/tenderops/internal/analytics"
	"github.com/northbridge/tenderops/internal/db"
)

func main() {
	days := flag.Int("days", 7, "reporting window in days")
	flag.Parse()

	ctx := context.Background()
	pool, err := db.Connect(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	store := db.NewAlertStore(pool)
	to := time.Now()
	from := to.AddDate(0, 0, -*days)

	rows, err := store.ListHistoryBetween(ctx, from, to)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Alerts in the last %d day(s): %d\n\n", *days, len(rows))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Triggered", "Priority", "Rule", "Title", "Delivered", "Acked By", "Escalated"})

	limit := len(rows)
	if limit > 25 {
		limit = 25
	}
	for _, h := range rows[:limit] {
		delivered := "no"
		if h.Delivered {
			delivered = "yes"
		}
		escalated := ""
		if h.Escalated {
			escalated = "yes"
		}
		t.AppendRow(table.Row{
			h.TriggeredAt.Format("01-02 15:04"),
			h.Priority,
			h.RuleName,
			truncate(h.Title, 40),
			delivered,
			h.AcknowledgedBy,
			escalated,
		})
	}
	t.Render()

	cfg, err := alerts.LoadConfig()
	if err != nil {
		log.Printf("config fallback: %v", err)
	}

	board := analytics.Leaderboard(rows, cfg.SLATarget())
	if len(board) == 0 {
		fmt.Println("\nNo acknowledged alerts in this window.")
		return
	}

	fmt.Println()
	lb := table.NewWriter()
	lb.SetOutputMirror(os.Stdout)
	lb.AppendHeader(table.Row{"#", "Handler", "Handled", "Resolved", "Res. Rate", "Avg Min", "SLA", "Score"})
	for i, row := range board {
		lb.AppendRow(table.Row{
			i + 1,
			row.UserID,
			row.Handled,
			row.Resolved,
			fmt.Sprintf("%.0f%%", row.ResolutionRate*100),
			fmt.Sprintf("%.0f", row.AvgResolutionMinutes),
			fmt.Sprintf("%.0f%%", row.SLACompliance*100),
			fmt.Sprintf("%.2f", row.Score),
		})
	}
	lb.Render()
}

// truncate shortens by runes so a multi-byte title is never cut mid-rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
