package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/northbridge/tenderops/internal/alerts"
	"github.com/northbridge/tenderops/internal/auth"
	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
)

func (s *Server) handleListRules(c echo.Context) error {
	rules, err := s.Alerts.ListRules(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rules)
}

// ruleCreateRequest shadows the active flag with a pointer so an omitted
// field can be told apart from an explicit false.
type ruleCreateRequest struct {
	models.AlertRule
	Active *bool `json:"active"`
}

func (r ruleCreateRequest) rule() models.AlertRule {
	rule := r.AlertRule
	rule.Active = r.Active == nil || *r.Active
	return rule
}

func (s *Server) handleCreateRule(c echo.Context) error {
	var req ruleCreateRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	rule := req.rule()
	rule.Name = s.clean(rule.Name)
	if rule.Name == "" {
		return fail(c, http.StatusBadRequest, "rule name is required")
	}
	switch rule.RuleType {
	case models.RuleValueThreshold, models.RuleClosingSoon, models.RuleAgencyMatch, models.RuleRenewalPrediction:
	default:
		return fail(c, http.StatusBadRequest, "unknown rule type")
	}
	rule.ApplyDefaults()
	if !models.ValidPriority(rule.Priority) {
		return fail(c, http.StatusBadRequest, "invalid priority")
	}

	if err := s.Alerts.CreateRule(c.Request().Context(), &rule); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusCreated, rule)
}

func (s *Server) handleGetRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid rule id")
	}
	rule, err := s.Alerts.GetRule(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid rule id")
	}

	rule, err := s.Alerts.GetRule(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}

	// Bind over the stored rule so omitted fields keep their value.
	if err := c.Bind(rule); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	rule.ID = id
	rule.Name = s.clean(rule.Name)
	if !models.ValidPriority(rule.Priority) {
		return fail(c, http.StatusBadRequest, "invalid priority")
	}

	if err := s.Alerts.UpdateRule(c.Request().Context(), rule); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid rule id")
	}
	if err := s.Alerts.DeleteRule(c.Request().Context(), id); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]string{"deleted": id.String()})
}

func (s *Server) handleListHistory(c echo.Context) error {
	params := db.HistoryListParams{
		UnreadOnly: c.QueryParam("unread_only") == "true",
		Priority:   c.QueryParam("priority"),
		Limit:      50,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}

	rows, total, err := s.Alerts.ListHistory(c.Request().Context(), params)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{
		"alerts": rows,
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

func (s *Server) handleAcknowledge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid alert id")
	}

	var req struct {
		UserID       string `json:"user_id"`
		ActionTaken  string `json:"action_taken"`
		Notes        string `json:"notes"`
		Satisfaction *int   `json:"satisfaction"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return fail(c, http.StatusBadRequest, "user_id is required")
	}
	if req.Satisfaction != nil && (*req.Satisfaction < 1 || *req.Satisfaction > 5) {
		return fail(c, http.StatusBadRequest, "satisfaction must be between 1 and 5")
	}

	err = s.Alerts.Acknowledge(c.Request().Context(), id, req.UserID, s.clean(req.ActionTaken), s.clean(req.Notes), req.Satisfaction, time.Now())
	if errors.Is(err, models.ErrAlreadyAcknowledged) {
		// Idempotent: a second acknowledgement succeeds and changes nothing.
		return ok(c, http.StatusOK, map[string]any{"acknowledged": true, "already": true})
	}
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"acknowledged": true})
}

func (s *Server) handleMarkAllRead(c echo.Context) error {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		// Fall back to the signed-in user when the body leaves it out.
		if id, err := auth.GetUserIDFromContext(c); err == nil {
			req.UserID = id.String()
		}
	}
	if req.UserID == "" {
		return fail(c, http.StatusBadRequest, "user_id is required")
	}

	n, err := s.Alerts.MarkAllRead(c.Request().Context(), req.UserID, time.Now())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"acknowledged": n})
}

func (s *Server) handleUnreadCount(c echo.Context) error {
	n, err := s.Alerts.UnreadCount(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]int{"unread": n})
}

func (s *Server) handleTriggerAlerts(c echo.Context) error {
	var req struct {
		TenderID    *uuid.UUID `json:"tender_id"`
		RenewalID   *uuid.UUID `json:"renewal_id"`
		TriggerType string     `json:"trigger_type"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	tr := alerts.TriggerRequest{TriggerType: req.TriggerType}
	switch {
	case req.TenderID != nil:
		tr.SubjectType = models.SubjectTender
		tr.SubjectID = *req.TenderID
	case req.RenewalID != nil:
		tr.SubjectType = models.SubjectRenewal
		tr.SubjectID = *req.RenewalID
	default:
		return fail(c, http.StatusBadRequest, "tender_id or renewal_id is required")
	}

	created, err := s.Engine.Trigger(c.Request().Context(), tr)
	if err != nil {
		return failErr(c, err)
	}

	ids := make([]uuid.UUID, len(created))
	for i, h := range created {
		ids[i] = h.ID
	}
	return ok(c, http.StatusOK, map[string]any{
		"triggered": len(created),
		"alert_ids": ids,
		"alerts":    created,
	})
}

func (s *Server) handleGetPreferences(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return fail(c, http.StatusBadRequest, "user_id is required")
	}

	pref, err := s.Alerts.GetPreference(c.Request().Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		// First read creates the defaults.
		pref = models.DefaultPreferences(userID)
		if err := s.Alerts.SavePreference(c.Request().Context(), pref); err != nil {
			return failErr(c, err)
		}
		return ok(c, http.StatusOK, pref)
	}
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, pref)
}

type preferencePatch struct {
	EmailEnabled *bool   `json:"email_enabled"`
	EmailAddress *string `json:"email_address"`
	SMSEnabled   *bool   `json:"sms_enabled"`
	PhoneNumber  *string `json:"phone_number"`
	SlackEnabled *bool   `json:"slack_enabled"`
	SlackUserID  *string `json:"slack_user_id"`
	PushEnabled  *bool   `json:"push_enabled"`
	PushToken    *string `json:"push_token"`
	InAppEnabled *bool   `json:"in_app_enabled"`

	QuietHoursEnabled *bool   `json:"quiet_hours_enabled"`
	QuietHoursStart   *string `json:"quiet_hours_start"`
	QuietHoursEnd     *string `json:"quiet_hours_end"`

	DNDEnabled *bool      `json:"dnd_enabled"`
	DNDUntil   *time.Time `json:"dnd_until"`

	MinPriority *string `json:"min_priority"`

	DigestEnabled   *bool   `json:"digest_enabled"`
	DigestFrequency *string `json:"digest_frequency"`
	DigestTime      *string `json:"digest_time"`

	MaxPerHour *int `json:"max_per_hour"`
	MaxPerDay  *int `json:"max_per_day"`
}

func (s *Server) handleUpdatePreferences(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return fail(c, http.StatusBadRequest, "user_id is required")
	}

	var patch preferencePatch
	if err := c.Bind(&patch); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if patch.MinPriority != nil && !models.ValidPriority(*patch.MinPriority) {
		return fail(c, http.StatusBadRequest, "invalid min_priority")
	}

	pref, err := s.Alerts.GetPreference(c.Request().Context(), userID)
	if errors.Is(err, models.ErrNotFound) {
		pref = models.DefaultPreferences(userID)
	} else if err != nil {
		return failErr(c, err)
	}

	applyPreferencePatch(pref, patch)
	if err := s.Alerts.SavePreference(c.Request().Context(), pref); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, pref)
}

func applyPreferencePatch(p *models.UserAlertPreference, patch preferencePatch) {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	setBool(&p.EmailEnabled, patch.EmailEnabled)
	setStr(&p.EmailAddress, patch.EmailAddress)
	setBool(&p.SMSEnabled, patch.SMSEnabled)
	setStr(&p.PhoneNumber, patch.PhoneNumber)
	setBool(&p.SlackEnabled, patch.SlackEnabled)
	setStr(&p.SlackUserID, patch.SlackUserID)
	setBool(&p.PushEnabled, patch.PushEnabled)
	setStr(&p.PushToken, patch.PushToken)
	setBool(&p.InAppEnabled, patch.InAppEnabled)

	setBool(&p.QuietHoursEnabled, patch.QuietHoursEnabled)
	setStr(&p.QuietHoursStart, patch.QuietHoursStart)
	setStr(&p.QuietHoursEnd, patch.QuietHoursEnd)

	setBool(&p.DNDEnabled, patch.DNDEnabled)
	if patch.DNDUntil != nil {
		p.DNDUntil = patch.DNDUntil
	}

	setStr(&p.MinPriority, patch.MinPriority)

	setBool(&p.DigestEnabled, patch.DigestEnabled)
	setStr(&p.DigestFrequency, patch.DigestFrequency)
	setStr(&p.DigestTime, patch.DigestTime)

	setInt(&p.MaxPerHour, patch.MaxPerHour)
	setInt(&p.MaxPerDay, patch.MaxPerDay)
}
