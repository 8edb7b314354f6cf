package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/db"
	"github.com/northbridge/tenderops/internal/models"
)

// fakeStore is an in-memory Store for engine, dispatch, escalation and digest
// tests.
type fakeStore struct {
	mu sync.Mutex

	rules      []models.AlertRule
	history    map[uuid.UUID]*models.AlertHistory
	prefs      map[string]*models.UserAlertPreference
	deliveries []deliveryLogEntry
	digests    map[uuid.UUID]models.DigestEntry

	prefSaves int
}

type deliveryLogEntry struct {
	userID  string
	channel string
	at      time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		history: map[uuid.UUID]*models.AlertHistory{},
		prefs:   map[string]*models.UserAlertPreference{},
		digests: map[uuid.UUID]models.DigestEntry{},
	}
}

func (s *fakeStore) ListActiveRules(_ context.Context, ruleTypes []string) ([]models.AlertRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, rt := range ruleTypes {
		want[rt] = true
	}
	var out []models.AlertRule
	for _, r := range s.rules {
		if r.Active && want[r.RuleType] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertHistory(_ context.Context, h *models.AlertHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.history[h.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateDelivery(_ context.Context, id uuid.UUID, attempted, delivered []string, deliveryErrors map[string]string, ok bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, found := s.history[id]
	if !found {
		return models.ErrNotFound
	}
	h.ChannelsAttempted = attempted
	h.DeliveredChannels = delivered
	h.DeliveryErrors = deliveryErrors
	h.Delivered = ok
	return nil
}

func (s *fakeStore) RecentAlertExists(_ context.Context, ruleID, subjectID uuid.UUID, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.history {
		if h.RuleID == ruleID && h.SubjectID == subjectID && !h.TriggeredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) GetPreference(_ context.Context, userID string) (*models.UserAlertPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) SavePreference(_ context.Context, p *models.UserAlertPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.prefs[p.UserID] = &cp
	s.prefSaves++
	return nil
}

func (s *fakeStore) LogDelivery(_ context.Context, userID, channel string, _ uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, deliveryLogEntry{userID: userID, channel: channel, at: at})
	return nil
}

func (s *fakeStore) CountDeliveries(_ context.Context, userID, channel string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.deliveries {
		if d.userID == userID && d.channel == channel && !d.at.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) EnqueueDigest(_ context.Context, e *models.DigestEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests[e.ID] = *e
	return nil
}

func (s *fakeStore) PendingDigests(_ context.Context) ([]models.DigestEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DigestEntry
	for _, e := range s.digests {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) DeleteDigestEntries(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.digests, id)
	}
	return nil
}

func (s *fakeStore) DueEscalations(_ context.Context, now time.Time) ([]db.EscalationDue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.EscalationDue
	for _, r := range s.rules {
		if !r.EscalationEnabled {
			continue
		}
		deadline := time.Duration(r.EscalationAfterMinutes) * time.Minute
		for _, h := range s.history {
			if h.RuleID != r.ID || h.Acknowledged || h.Escalated {
				continue
			}
			if now.Sub(h.TriggeredAt) >= deadline {
				out = append(out, db.EscalationDue{Alert: *h, Rule: r})
			}
		}
	}
	return out, nil
}

func (s *fakeStore) ClaimEscalation(_ context.Context, alertID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.history[alertID]
	if !ok || h.Escalated || h.Acknowledged {
		return false, nil
	}
	h.Escalated = true
	at := now
	h.EscalatedAt = &at
	return true, nil
}

// fakeSubjects is an in-memory SubjectStore.
type fakeSubjects struct {
	tenders  map[uuid.UUID]*models.TenderCard
	renewals map[uuid.UUID]*models.ContractRenewal
}

func newFakeSubjects() *fakeSubjects {
	return &fakeSubjects{
		tenders:  map[uuid.UUID]*models.TenderCard{},
		renewals: map[uuid.UUID]*models.ContractRenewal{},
	}
}

func (s *fakeSubjects) GetTender(_ context.Context, id uuid.UUID) (*models.TenderCard, error) {
	t, ok := s.tenders[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return t, nil
}

func (s *fakeSubjects) GetRenewal(_ context.Context, id uuid.UUID) (*models.ContractRenewal, error) {
	r, ok := s.renewals[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return r, nil
}

func (s *fakeSubjects) ListTenderIDsClosingWithin(_ context.Context, days int) ([]uuid.UUID, error) {
	cutoff := time.Now().AddDate(0, 0, days)
	var out []uuid.UUID
	for id, t := range s.tenders {
		if t.ClosingDate != nil && t.ClosingDate.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *fakeSubjects) ListRenewalIDsExpiringWithin(_ context.Context, months int) ([]uuid.UUID, error) {
	cutoff := time.Now().AddDate(0, months, 0)
	var out []uuid.UUID
	for id, r := range s.renewals {
		if r.ContractEnd != nil && r.ContractEnd.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeTransport records sends and optionally fails.
type fakeTransport struct {
	mu    sync.Mutex
	sends []Delivery
	fail  bool
}

func (t *fakeTransport) Send(_ context.Context, d Delivery) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return fmt.Errorf("gateway unavailable")
	}
	t.sends = append(t.sends, d)
	return nil
}

func (t *fakeTransport) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sends)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.DeliveryTimeoutSeconds = 1
	return cfg
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func f64(v float64) *float64 { return &v }
func iptr(v int) *int        { return &v }
