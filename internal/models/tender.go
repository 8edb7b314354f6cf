package models

import (
	"time"

	"github.com/google/uuid"
)

// Canonical pipeline stages. Any stage is reachable from any other; the
// pipeline allows manual correction and only the no-go decision forces a stage.
const (
	StageRenewalWatch     = "renewal_watch"
	StageNewOpportunity   = "new_opportunity"
	StageReview           = "review"
	StageBidding          = "bidding"
	StageInternalApproval = "internal_approval"
	StageSubmitted        = "submitted"
	StageAwarded          = "awarded"
	StageLost             = "lost"
)

const (
	DecisionGo    = "go"
	DecisionNoGo  = "no-go"
	DecisionMaybe = "maybe"

	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// PriorityRank orders priorities for threshold comparisons. Unknown values
// rank as medium so a malformed rule never silently outranks critical.
func PriorityRank(p string) int {
	switch p {
	case PriorityLow:
		return 0
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	case PriorityCritical:
		return 3
	default:
		return 1
	}
}

// ValidPriority reports whether p is one of the four canonical priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TenderCard is a tracked procurement opportunity moving through the pipeline.
type TenderCard struct {
	ID             uuid.UUID  `json:"id"`
	SourceType     string     `json:"source_type"` // scrape, manual, renewal
	SourceID       string     `json:"source_id"`
	TenderNumber   string     `json:"tender_number"`
	Title          string     `json:"title"`
	Agency         string     `json:"agency"`
	Category       string     `json:"category"`
	EstimatedValue float64    `json:"estimated_value"`
	PublishedAt    *time.Time `json:"published_at"`
	ClosingDate    *time.Time `json:"closing_date"`
	ContractStart  *time.Time `json:"contract_start"`
	ContractEnd    *time.Time `json:"contract_end"`

	Stage          string    `json:"stage"`
	StageUpdatedAt time.Time `json:"stage_updated_at"`
	Priority       string    `json:"priority"`
	IsUrgent       bool      `json:"is_urgent"`
	IsRenewal      bool      `json:"is_renewal"`
	RenewalID      *uuid.UUID `json:"renewal_id"`

	AssignedTo string `json:"assigned_to"`
	Team       string `json:"team"`

	QualificationScore   *float64       `json:"qualification_score"`
	QualificationDetails map[string]any `json:"qualification_details"`
	Decision             string         `json:"decision"` // go, no-go, maybe
	DecisionReasoning    string         `json:"decision_reasoning"`
	DecisionAt           *time.Time     `json:"decision_at"`

	Outcome       string     `json:"outcome"` // won, lost
	OutcomeDate   *time.Time `json:"outcome_date"`
	OutcomeReason string     `json:"outcome_reason"`

	Tags      []string  `json:"tags"`
	Documents []string  `json:"documents"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyDefaults fills the ad hoc optional fields in one place instead of
// scattering fallbacks across handlers.
func (t *TenderCard) ApplyDefaults() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Stage == "" {
		t.Stage = StageNewOpportunity
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.SourceType == "" {
		t.SourceType = "manual"
	}
}

// Renewal engagement statuses.
const (
	EngagementDormant  = "dormant"
	EngagementWatching = "watching"
	EngagementActive   = "active"
)

// ContractRenewal is a predicted future opportunity derived from a running
// contract's expiry.
type ContractRenewal struct {
	ID               uuid.UUID  `json:"id"`
	ContractRef      string     `json:"contract_ref"`
	Title            string     `json:"title"`
	Agency           string     `json:"agency"`
	Category         string     `json:"category"`
	AnnualValue      float64    `json:"annual_value"`
	ContractEnd      *time.Time `json:"contract_end"`
	Probability      float64    `json:"probability"` // 0-100
	EngagementStatus string     `json:"engagement_status"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AuditEntry records one pipeline mutation (stage move, decision, promotion).
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	TenderID  uuid.UUID `json:"tender_id"`
	Action    string    `json:"action"` // stage_move, decision, promote_renewal
	FromStage string    `json:"from_stage"`
	ToStage   string    `json:"to_stage"`
	Actor     string    `json:"actor"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
