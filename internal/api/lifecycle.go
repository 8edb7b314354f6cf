package api

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/northbridge/tenderops/internal/alerts"
	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
	"github.com/northbridge/tenderops/internal/pipeline"
)

func (s *Server) handleListTenders(c echo.Context) error {
	params := db.TenderListParams{
		Stage:      splitCSV(c.QueryParam("stage")),
		Priority:   splitCSV(c.QueryParam("priority")),
		Agency:     splitCSV(c.QueryParam("agency")),
		AssignedTo: c.QueryParam("assigned_to"),
		Limit:      20,
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 100 {
		params.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		params.Offset = o
	}
	if v := c.QueryParam("is_urgent"); v != "" {
		b := v == "true"
		params.IsUrgent = &b
	}
	if v := c.QueryParam("is_renewal"); v != "" {
		b := v == "true"
		params.IsRenewal = &b
	}

	result, err := s.Tenders.ListTenders(c.Request().Context(), params)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, result)
}

func (s *Server) handleCreateTender(c echo.Context) error {
	var card models.TenderCard
	if err := c.Bind(&card); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	card.Title = s.clean(card.Title)
	card.Agency = s.clean(card.Agency)
	card.Category = s.clean(card.Category)
	card.Notes = s.clean(card.Notes)

	created, err := s.Pipeline.Create(c.Request().Context(), &card)
	if err != nil {
		return failErr(c, err)
	}

	s.evaluateAsync(c.Request().Context(), models.SubjectTender, created.ID, "")
	return ok(c, http.StatusCreated, created)
}

func (s *Server) handleGetTender(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}
	card, err := s.Tenders.GetTender(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, card)
}

type tenderPatchRequest struct {
	Title          *string    `json:"title"`
	Agency         *string    `json:"agency"`
	Category       *string    `json:"category"`
	TenderNumber   *string    `json:"tender_number"`
	EstimatedValue *float64   `json:"estimated_value"`
	ClosingDate    *time.Time `json:"closing_date"`
	ContractStart  *time.Time `json:"contract_start"`
	ContractEnd    *time.Time `json:"contract_end"`
	Priority       *string    `json:"priority"`
	IsUrgent       *bool      `json:"is_urgent"`
	AssignedTo     *string    `json:"assigned_to"`
	Team           *string    `json:"team"`
	Tags           []string   `json:"tags"`
	Notes          *string    `json:"notes"`
}

func (s *Server) handleUpdateTender(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}

	var req tenderPatchRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if req.Priority != nil && !models.ValidPriority(*req.Priority) {
		return fail(c, http.StatusBadRequest, "invalid priority")
	}
	for _, v := range []*string{req.Title, req.Agency, req.Category, req.Notes} {
		if v != nil {
			*v = s.clean(*v)
		}
	}

	card, err := s.Tenders.UpdateTender(c.Request().Context(), id, db.TenderPatch{
		Title:          req.Title,
		Agency:         req.Agency,
		Category:       req.Category,
		TenderNumber:   req.TenderNumber,
		EstimatedValue: req.EstimatedValue,
		ClosingDate:    req.ClosingDate,
		ContractStart:  req.ContractStart,
		ContractEnd:    req.ContractEnd,
		Priority:       req.Priority,
		IsUrgent:       req.IsUrgent,
		AssignedTo:     req.AssignedTo,
		Team:           req.Team,
		Tags:           req.Tags,
		Notes:          req.Notes,
	})
	if err != nil {
		return failErr(c, err)
	}

	if req.EstimatedValue != nil || req.ClosingDate != nil || req.Agency != nil {
		s.evaluateAsync(c.Request().Context(), models.SubjectTender, id, "")
	}
	return ok(c, http.StatusOK, card)
}

func (s *Server) handleDeleteTender(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}
	if err := s.Tenders.DeleteTender(c.Request().Context(), id); err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]string{"deleted": id.String()})
}

func (s *Server) handleMoveStage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}

	var req struct {
		NewStage string `json:"new_stage"`
		UserID   string `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	card, err := s.Pipeline.Move(c.Request().Context(), id, req.NewStage, req.UserID)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{
		"tender":    card,
		"new_stage": card.Stage,
	})
}

func (s *Server) handleDecision(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}

	var req struct {
		Decision             string         `json:"decision"`
		DecisionReasoning    string         `json:"decision_reasoning"`
		QualificationScore   *float64       `json:"qualification_score"`
		QualificationDetails map[string]any `json:"qualification_details"`
		UserID               string         `json:"user_id"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}

	card, err := s.Pipeline.RecordDecision(c.Request().Context(), id, pipeline.DecisionParams{
		Decision:             req.Decision,
		Reasoning:            s.clean(req.DecisionReasoning),
		QualificationScore:   req.QualificationScore,
		QualificationDetails: req.QualificationDetails,
		Actor:                req.UserID,
	})
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{
		"tender":   card,
		"decision": card.Decision,
		"stage":    card.Stage,
	})
}

func (s *Server) handlePromoteRenewal(c echo.Context) error {
	renewalID, err := uuid.Parse(c.Param("renewalId"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid renewal id")
	}

	card, created, err := s.Pipeline.PromoteRenewal(c.Request().Context(), renewalID)
	if err != nil {
		return failErr(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.evaluateAsync(c.Request().Context(), models.SubjectTender, card.ID, "")
	}
	return ok(c, status, map[string]any{
		"tender":  card,
		"created": created,
	})
}

func (s *Server) handleDashboardStats(c echo.Context) error {
	stats, err := s.Tenders.DashboardStats(c.Request().Context())
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, stats)
}

func (s *Server) handleDeadlines(c echo.Context) error {
	days := 14
	if v, err := strconv.Atoi(c.QueryParam("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}
	cards, err := s.Tenders.UpcomingDeadlines(c.Request().Context(), days)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{
		"days":    days,
		"tenders": cards,
	})
}

func (s *Server) handleAudit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid tender id")
	}
	entries, err := s.Tenders.ListAudit(c.Request().Context(), id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, http.StatusOK, entries)
}

// evaluateAsync runs rule evaluation for a pipeline write off the request
// path. context.WithoutCancel detaches from the HTTP lifecycle; the timeout
// bounds the background work.
func (s *Server) evaluateAsync(ctx context.Context, subjectType string, id uuid.UUID, triggerType string) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	go func() {
		defer cancel()
		if _, err := s.Engine.Trigger(bg, alerts.TriggerRequest{
			SubjectType: subjectType,
			SubjectID:   id,
			TriggerType: triggerType,
		}); err != nil {
			log.Printf("background rule evaluation for %s %s: %v", subjectType, id, err)
		}
	}()
}
