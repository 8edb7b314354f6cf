package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

func TestRuleMatches(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	closeIn2d := now.Add(48 * time.Hour)
	closeIn3d := now.Add(73 * time.Hour)
	endIn5mo := now.AddDate(0, 0, 5*30)
	endIn8mo := now.AddDate(0, 0, 8*30)

	tests := []struct {
		name string
		rule models.AlertRule
		subj Subject
		want bool
	}{
		{
			name: "value threshold met exactly",
			rule: models.AlertRule{RuleType: models.RuleValueThreshold, Conditions: models.RuleConditions{MinValue: f64(100000)}},
			subj: Subject{Tender: &models.TenderCard{EstimatedValue: 100000}},
			want: true,
		},
		{
			name: "value threshold below",
			rule: models.AlertRule{RuleType: models.RuleValueThreshold, Conditions: models.RuleConditions{MinValue: f64(100000)}},
			subj: Subject{Tender: &models.TenderCard{EstimatedValue: 99999.99}},
			want: false,
		},
		{
			name: "closing in exactly two days",
			rule: models.AlertRule{RuleType: models.RuleClosingSoon},
			subj: Subject{Tender: &models.TenderCard{ClosingDate: &closeIn2d}},
			want: true,
		},
		{
			name: "closing in three days not yet due",
			rule: models.AlertRule{RuleType: models.RuleClosingSoon},
			subj: Subject{Tender: &models.TenderCard{ClosingDate: &closeIn3d}},
			want: false,
		},
		{
			name: "closing soon with widened window",
			rule: models.AlertRule{RuleType: models.RuleClosingSoon, Conditions: models.RuleConditions{DaysUntilClose: iptr(5)}},
			subj: Subject{Tender: &models.TenderCard{ClosingDate: &closeIn3d}},
			want: true,
		},
		{
			name: "closing soon without a closing date",
			rule: models.AlertRule{RuleType: models.RuleClosingSoon},
			subj: Subject{Tender: &models.TenderCard{}},
			want: false,
		},
		{
			name: "agency watched",
			rule: models.AlertRule{RuleType: models.RuleAgencyMatch, Conditions: models.RuleConditions{Agencies: []string{"Dept of Transport", "Health Agency"}}},
			subj: Subject{Tender: &models.TenderCard{Agency: "Health Agency"}},
			want: true,
		},
		{
			name: "agency not watched",
			rule: models.AlertRule{RuleType: models.RuleAgencyMatch, Conditions: models.RuleConditions{Agencies: []string{"Dept of Transport"}}},
			subj: Subject{Tender: &models.TenderCard{Agency: "Health Agency"}},
			want: false,
		},
		{
			name: "renewal inside window with strong probability",
			rule: models.AlertRule{RuleType: models.RuleRenewalPrediction},
			subj: Subject{Renewal: &models.ContractRenewal{ContractEnd: &endIn5mo, Probability: 80}},
			want: true,
		},
		{
			name: "renewal outside window",
			rule: models.AlertRule{RuleType: models.RuleRenewalPrediction},
			subj: Subject{Renewal: &models.ContractRenewal{ContractEnd: &endIn8mo, Probability: 80}},
			want: false,
		},
		{
			name: "renewal probability too low",
			rule: models.AlertRule{RuleType: models.RuleRenewalPrediction},
			subj: Subject{Renewal: &models.ContractRenewal{ContractEnd: &endIn5mo, Probability: 60}},
			want: false,
		},
		{
			name: "tender rule against renewal subject",
			rule: models.AlertRule{RuleType: models.RuleValueThreshold},
			subj: Subject{Renewal: &models.ContractRenewal{ContractEnd: &endIn5mo, Probability: 90}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RuleMatches(tt.rule, tt.subj, now); got != tt.want {
				t.Fatalf("RuleMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func newTestEngine(store *fakeStore, subjects *fakeSubjects, email *fakeTransport) *Engine {
	transports := map[string]Transport{
		models.ChannelEmail: email,
		models.ChannelInApp: inAppTransport{},
	}
	cfg := testConfig()
	dispatcher := &Dispatcher{store: store, transports: transports, cfg: cfg, now: time.Now}
	return &Engine{store: store, subjects: subjects, dispatcher: dispatcher, cfg: cfg, now: time.Now}
}

func TestTrigger_CreatesHistoryAndDelivers(t *testing.T) {
	store := newFakeStore()
	subjects := newFakeSubjects()
	email := &fakeTransport{}
	engine := newTestEngine(store, subjects, email)

	rule := models.AlertRule{
		ID:         uuid.New(),
		Name:       "big tenders",
		RuleType:   models.RuleValueThreshold,
		Conditions: models.RuleConditions{MinValue: f64(50000)},
		Priority:   models.PriorityHigh,
		Channels:   []string{models.ChannelEmail},
		Recipients: map[string][]string{models.ChannelEmail: {"u1"}},
		Active:     true,
	}
	store.rules = append(store.rules, rule)

	tenderID := uuid.New()
	subjects.tenders[tenderID] = &models.TenderCard{
		ID: tenderID, Title: "Cleaning services", Agency: "City Council", EstimatedValue: 75000,
	}

	created, err := engine.Trigger(context.Background(), TriggerRequest{
		SubjectType: models.SubjectTender,
		SubjectID:   tenderID,
	})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created %d alerts, want 1", len(created))
	}
	if created[0].Priority != models.PriorityHigh {
		t.Fatalf("alert priority = %q, want rule priority %q", created[0].Priority, models.PriorityHigh)
	}

	stored := store.history[created[0].ID]
	if stored == nil {
		t.Fatal("alert not persisted")
	}
	if !stored.Delivered || len(stored.DeliveredChannels) != 1 || stored.DeliveredChannels[0] != models.ChannelEmail {
		t.Fatalf("delivery record = delivered=%v channels=%v, want email delivered", stored.Delivered, stored.DeliveredChannels)
	}
	if email.count() != 1 {
		t.Fatalf("email sends = %d, want 1", email.count())
	}
	if _, ok := store.prefs["u1"]; !ok {
		t.Fatal("default preferences not created on first delivery")
	}
}

func TestTrigger_InactiveRuleSkipped(t *testing.T) {
	store := newFakeStore()
	subjects := newFakeSubjects()
	engine := newTestEngine(store, subjects, &fakeTransport{})

	store.rules = append(store.rules, models.AlertRule{
		ID:       uuid.New(),
		RuleType: models.RuleValueThreshold,
		Active:   false,
	})

	tenderID := uuid.New()
	subjects.tenders[tenderID] = &models.TenderCard{ID: tenderID, EstimatedValue: 1e6}

	created, err := engine.Trigger(context.Background(), TriggerRequest{
		SubjectType: models.SubjectTender,
		SubjectID:   tenderID,
	})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("created %d alerts from an inactive rule, want 0", len(created))
	}
}

func TestTrigger_IncompatibleTriggerTypeIsNoop(t *testing.T) {
	store := newFakeStore()
	subjects := newFakeSubjects()
	engine := newTestEngine(store, subjects, &fakeTransport{})

	renewalID := uuid.New()
	end := time.Now().AddDate(0, 3, 0)
	subjects.renewals[renewalID] = &models.ContractRenewal{ID: renewalID, ContractEnd: &end, Probability: 90}

	created, err := engine.Trigger(context.Background(), TriggerRequest{
		SubjectType: models.SubjectRenewal,
		SubjectID:   renewalID,
		TriggerType: models.RuleValueThreshold,
	})
	if err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("created %d alerts, want 0", len(created))
	}
}

func TestTrigger_UnknownTriggerTypeRejected(t *testing.T) {
	store := newFakeStore()
	subjects := newFakeSubjects()
	engine := newTestEngine(store, subjects, &fakeTransport{})

	tenderID := uuid.New()
	subjects.tenders[tenderID] = &models.TenderCard{ID: tenderID}

	_, err := engine.Trigger(context.Background(), TriggerRequest{
		SubjectType: models.SubjectTender,
		SubjectID:   tenderID,
		TriggerType: "bogus",
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Trigger() error = %v, want ErrValidation", err)
	}
}

func TestSweepTimeRules_DedupsWithinWindow(t *testing.T) {
	store := newFakeStore()
	subjects := newFakeSubjects()
	engine := newTestEngine(store, subjects, &fakeTransport{})

	store.rules = append(store.rules, models.AlertRule{
		ID:         uuid.New(),
		Name:       "closing soon",
		RuleType:   models.RuleClosingSoon,
		Priority:   models.PriorityMedium,
		Channels:   []string{models.ChannelInApp},
		Recipients: map[string][]string{models.ChannelInApp: {"u1"}},
		Active:     true,
	})

	tenderID := uuid.New()
	closing := time.Now().Add(24 * time.Hour)
	subjects.tenders[tenderID] = &models.TenderCard{ID: tenderID, Title: "Catering", ClosingDate: &closing}

	n, err := engine.SweepTimeRules(context.Background())
	if err != nil {
		t.Fatalf("first sweep error = %v", err)
	}
	if n != 1 {
		t.Fatalf("first sweep created %d alerts, want 1", n)
	}

	n, err = engine.SweepTimeRules(context.Background())
	if err != nil {
		t.Fatalf("second sweep error = %v", err)
	}
	if n != 0 {
		t.Fatalf("second sweep created %d alerts, want 0 (deduped)", n)
	}
}
