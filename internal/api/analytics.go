package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// analyticsWindow parses the shared from/to/days query parameters. Defaults
// to the last 30 days.
func analyticsWindow(c echo.Context) (time.Time, time.Time) {
	to := time.Now()
	from := to.AddDate(0, 0, -30)

	if v, err := strconv.Atoi(c.QueryParam("days")); err == nil && v > 0 && v <= 365 {
		from = to.AddDate(0, 0, -v)
	}
	if v, err := time.Parse(time.RFC3339, c.QueryParam("from")); err == nil {
		from = v
	}
	if v, err := time.Parse(time.RFC3339, c.QueryParam("to")); err == nil {
		to = v
	}
	return from, to
}

func (s *Server) handleAnalyticsReport(c echo.Context) error {
	from, to := analyticsWindow(c)
	rep, err := s.Reporter.Report(c.Request().Context(), from, to)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rep)
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	from, to := analyticsWindow(c)
	board, err := s.Reporter.Leaderboard(c.Request().Context(), from, to)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, board)
}

func (s *Server) handleInsights(c echo.Context) error {
	from, to := analyticsWindow(c)
	insights, err := s.Reporter.Insights(c.Request().Context(), from, to)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, insights)
}

func (s *Server) handleAnalyticsDashboard(c echo.Context) error {
	dash, err := s.Reporter.Dashboard(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, dash)
}

func (s *Server) handleAdminReport(c echo.Context) error {
	adminID := c.Param("adminId")
	if adminID == "" {
		return fail(c, http.StatusBadRequest, "admin id is required")
	}
	from, to := analyticsWindow(c)
	rep, err := s.Reporter.AdminReport(c.Request().Context(), adminID, from, to)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rep)
}

// handleAnalyticsExport streams the ledger window. format=csv writes raw CSV;
// anything else returns the structured report envelope.
func (s *Server) handleAnalyticsExport(c echo.Context) error {
	from, to := analyticsWindow(c)

	if c.QueryParam("format") != "csv" {
		rep, err := s.Reporter.Report(c.Request().Context(), from, to)
		if err != nil {
			return failErr(c, err)
		}
		return ok(c, http.StatusOK, rep)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv")
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="alert-history.csv"`)
	resp.WriteHeader(http.StatusOK)

	return s.Reporter.ExportCSV(c.Request().Context(), from, to, resp)
}

func (s *Server) handleSweepEscalations(c echo.Context) error {
	n, err := s.Escalator.Sweep(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]int{"escalated": n})
}

func (s *Server) handleFlushDigests(c echo.Context) error {
	n, err := s.Flusher.Flush(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]int{"digests_sent": n})
}

func (s *Server) handleSweepRules(c echo.Context) error {
	n, err := s.Engine.SweepTimeRules(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]int{"alerts_created": n})
}
