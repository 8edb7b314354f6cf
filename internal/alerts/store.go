package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
)

// Store is the alert-side persistence surface. *db.AlertStore implements it;
// tests substitute an in-memory fake.
type Store interface {
	ListActiveRules(ctx context.Context, ruleTypes []string) ([]models.AlertRule, error)
	InsertHistory(ctx context.Context, h *models.AlertHistory) error
	UpdateDelivery(ctx context.Context, id uuid.UUID, attempted, delivered []string, deliveryErrors map[string]string, ok bool) error
	RecentAlertExists(ctx context.Context, ruleID, subjectID uuid.UUID, since time.Time) (bool, error)

	GetPreference(ctx context.Context, userID string) (*models.UserAlertPreference, error)
	SavePreference(ctx context.Context, p *models.UserAlertPreference) error

	LogDelivery(ctx context.Context, userID, channel string, alertID uuid.UUID, at time.Time) error
	CountDeliveries(ctx context.Context, userID, channel string, since time.Time) (int, error)

	EnqueueDigest(ctx context.Context, e *models.DigestEntry) error
	PendingDigests(ctx context.Context) ([]models.DigestEntry, error)
	DeleteDigestEntries(ctx context.Context, ids []uuid.UUID) error

	DueEscalations(ctx context.Context, now time.Time) ([]db.EscalationDue, error)
	ClaimEscalation(ctx context.Context, alertID uuid.UUID, now time.Time) (bool, error)
}

// SubjectStore loads the pipeline entities rules are evaluated against.
// *db.TenderStore implements it.
type SubjectStore interface {
	GetTender(ctx context.Context, id uuid.UUID) (*models.TenderCard, error)
	GetRenewal(ctx context.Context, id uuid.UUID) (*models.ContractRenewal, error)
	ListTenderIDsClosingWithin(ctx context.Context, days int) ([]uuid.UUID, error)
	ListRenewalIDsExpiringWithin(ctx context.Context, months int) ([]uuid.UUID, error)
}
