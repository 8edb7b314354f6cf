package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
)

// Store is the persistence surface the pipeline needs. *db.TenderStore
// implements it; tests substitute an in-memory fake.
type Store interface {
	CreateTender(ctx context.Context, t *models.TenderCard) error
	GetTender(ctx context.Context, id uuid.UUID) (*models.TenderCard, error)
	MoveStage(ctx context.Context, id uuid.UUID, newStage, actor string, now time.Time) (*models.TenderCard, error)
	RecordDecision(ctx context.Context, id uuid.UUID, upd db.DecisionUpdate, now time.Time) (*models.TenderCard, error)
	GetRenewal(ctx context.Context, id uuid.UUID) (*models.ContractRenewal, error)
	FindActiveCardForRenewal(ctx context.Context, renewalID uuid.UUID) (*models.TenderCard, error)
	PromoteRenewal(ctx context.Context, renewalID uuid.UUID, card *models.TenderCard, now time.Time) error
}

// Service owns the pipeline state machine: stage moves, decision recording and
// renewal promotion. All operations are local validation or not-found
// failures; nothing here retries.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create inserts a new card. Title and agency are required.
func (s *Service) Create(ctx context.Context, t *models.TenderCard) (*models.TenderCard, error) {
	if strings.TrimSpace(t.Title) == "" || strings.TrimSpace(t.Agency) == "" {
		return nil, fmt.Errorf("title and agency are required: %w", models.ErrValidation)
	}
	t.ApplyDefaults()
	if !ValidStage(t.Stage) {
		return nil, fmt.Errorf("stage %q: %w", t.Stage, models.ErrInvalidStage)
	}
	if !models.ValidPriority(t.Priority) {
		return nil, fmt.Errorf("priority %q: %w", t.Priority, models.ErrValidation)
	}
	if err := s.store.CreateTender(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Move transitions a card to any canonical stage. There is no adjacency
// restriction; an illegal stage value is rejected before anything is written.
func (s *Service) Move(ctx context.Context, id uuid.UUID, newStage, actor string) (*models.TenderCard, error) {
	if !ValidStage(newStage) {
		return nil, fmt.Errorf("stage %q: %w", newStage, models.ErrInvalidStage)
	}

	card, err := s.store.GetTender(ctx, id)
	if err != nil {
		return nil, err
	}

	// A no-go decision pins the card to lost regardless of the requested stage.
	if card.Decision == models.DecisionNoGo {
		newStage = models.StageLost
	}

	return s.store.MoveStage(ctx, id, newStage, actor, s.now())
}

// DecisionParams carries a qualification decision from the caller.
type DecisionParams struct {
	Decision             string
	Reasoning            string
	QualificationScore   *float64
	QualificationDetails map[string]any
	Actor                string
}

// RecordDecision stores the go/no-go/maybe outcome. A no-go atomically forces
// stage=lost and outcome=lost with the reasoning copied into the loss reason.
// Decisions are overwritable; each overwrite lands its own audit entry.
func (s *Service) RecordDecision(ctx context.Context, id uuid.UUID, p DecisionParams) (*models.TenderCard, error) {
	if !ValidDecision(p.Decision) {
		return nil, fmt.Errorf("decision %q: %w", p.Decision, models.ErrValidation)
	}

	upd := db.DecisionUpdate{
		Decision:             p.Decision,
		Reasoning:            p.Reasoning,
		QualificationScore:   p.QualificationScore,
		QualificationDetails: p.QualificationDetails,
		Actor:                p.Actor,
		ForceLost:            p.Decision == models.DecisionNoGo,
	}
	return s.store.RecordDecision(ctx, id, upd, s.now())
}

// PromoteRenewal creates a tender card from a renewal prediction. Idempotent:
// if the renewal already has an active card, that card is returned and nothing
// is created.
func (s *Service) PromoteRenewal(ctx context.Context, renewalID uuid.UUID) (*models.TenderCard, bool, error) {
	renewal, err := s.store.GetRenewal(ctx, renewalID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.store.FindActiveCardForRenewal(ctx, renewalID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	card := &models.TenderCard{
		ID:             uuid.New(),
		SourceType:     "renewal",
		Title:          renewal.Title,
		Agency:         renewal.Agency,
		Category:       renewal.Category,
		EstimatedValue: renewal.AnnualValue,
		ContractEnd:    renewal.ContractEnd,
		Stage:          models.StageRenewalWatch,
		Priority:       models.PriorityMedium,
		IsRenewal:      true,
	}
	rid := renewalID
	card.RenewalID = &rid

	if err := s.store.PromoteRenewal(ctx, renewalID, card, s.now()); err != nil {
		return nil, false, err
	}
	return card, true, nil
}
