package alerts

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/northbridge/tenderops/internal/models"
)

// Subject is the entity a rule is evaluated against. Exactly one field is set.
type Subject struct {
	Tender  *models.TenderCard
	Renewal *models.ContractRenewal
}

// Condition defaults, applied at evaluation time.
const (
	defaultDaysUntilClose    = 2
	defaultMonthsUntilExpiry = 6
	defaultMinProbability    = 70.0
)

// RuleMatches evaluates one rule against a subject. Pure computation; the
// clock is passed in.
func RuleMatches(rule models.AlertRule, subj Subject, now time.Time) bool {
	switch rule.RuleType {
	case models.RuleValueThreshold:
		if subj.Tender == nil {
			return false
		}
		min := 0.0
		if rule.Conditions.MinValue != nil {
			min = *rule.Conditions.MinValue
		}
		return subj.Tender.EstimatedValue >= min

	case models.RuleClosingSoon:
		if subj.Tender == nil || subj.Tender.ClosingDate == nil {
			return false
		}
		limit := defaultDaysUntilClose
		if rule.Conditions.DaysUntilClose != nil {
			limit = *rule.Conditions.DaysUntilClose
		}
		return daysUntil(now, *subj.Tender.ClosingDate) <= limit

	case models.RuleAgencyMatch:
		if subj.Tender == nil {
			return false
		}
		for _, agency := range rule.Conditions.Agencies {
			if agency == subj.Tender.Agency {
				return true
			}
		}
		return false

	case models.RuleRenewalPrediction:
		if subj.Renewal == nil || subj.Renewal.ContractEnd == nil {
			return false
		}
		limit := defaultMonthsUntilExpiry
		if rule.Conditions.MonthsUntilExpiry != nil {
			limit = *rule.Conditions.MonthsUntilExpiry
		}
		minProb := defaultMinProbability
		if rule.Conditions.MinProbability != nil {
			minProb = *rule.Conditions.MinProbability
		}
		return monthsUntil(now, *subj.Renewal.ContractEnd) <= limit &&
			subj.Renewal.Probability >= minProb
	}
	return false
}

func daysUntil(now, t time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / 24))
}

// monthsUntil uses 30-day months.
func monthsUntil(now, t time.Time) int {
	return int(math.Floor(t.Sub(now).Hours() / (24 * 30)))
}

// tenderRuleTypes are the rule types evaluated against tender events;
// renewal_prediction is the only renewal-side type.
var tenderRuleTypes = []string{models.RuleValueThreshold, models.RuleClosingSoon, models.RuleAgencyMatch}

func compatibleRuleTypes(subjectType, triggerType string) ([]string, error) {
	var base []string
	switch subjectType {
	case models.SubjectTender:
		base = tenderRuleTypes
	case models.SubjectRenewal:
		base = []string{models.RuleRenewalPrediction}
	default:
		return nil, fmt.Errorf("subject type %q: %w", subjectType, models.ErrValidation)
	}

	if triggerType == "" || triggerType == "all" {
		return base, nil
	}
	for _, rt := range base {
		if rt == triggerType {
			return []string{triggerType}, nil
		}
	}
	switch triggerType {
	case models.RuleValueThreshold, models.RuleClosingSoon, models.RuleAgencyMatch, models.RuleRenewalPrediction:
		// Known type, just incompatible with this subject: nothing to evaluate.
		return nil, nil
	}
	return nil, fmt.Errorf("trigger type %q: %w", triggerType, models.ErrValidation)
}

// TriggerRequest is the event descriptor for a single evaluation pass.
type TriggerRequest struct {
	SubjectType string
	SubjectID   uuid.UUID
	TriggerType string

	// skipRecent suppresses re-alerting when the same rule already fired for
	// the subject within the dedup window. Set by the periodic sweeps only;
	// manual triggers always evaluate.
	skipRecent bool
}

// Engine evaluates active rules against pipeline and renewal events.
type Engine struct {
	store      Store
	subjects   SubjectStore
	dispatcher *Dispatcher
	cfg        Config
	now        func() time.Time
}

func NewEngine(store Store, subjects SubjectStore, dispatcher *Dispatcher, cfg Config) *Engine {
	return &Engine{store: store, subjects: subjects, dispatcher: dispatcher, cfg: cfg, now: time.Now}
}

// Trigger runs all compatible active rules against the subject. Every match
// creates its own AlertHistory row; there is no cross-rule deduplication.
// Evaluation completes before any dispatch begins. Delivery failures are
// recorded on the rows, never returned to the caller.
func (e *Engine) Trigger(ctx context.Context, req TriggerRequest) ([]models.AlertHistory, error) {
	subj := Subject{}
	switch req.SubjectType {
	case models.SubjectTender:
		t, err := e.subjects.GetTender(ctx, req.SubjectID)
		if err != nil {
			return nil, err
		}
		subj.Tender = t
	case models.SubjectRenewal:
		r, err := e.subjects.GetRenewal(ctx, req.SubjectID)
		if err != nil {
			return nil, err
		}
		subj.Renewal = r
	default:
		return nil, fmt.Errorf("subject type %q: %w", req.SubjectType, models.ErrValidation)
	}

	ruleTypes, err := compatibleRuleTypes(req.SubjectType, req.TriggerType)
	if err != nil {
		return nil, err
	}
	if len(ruleTypes) == 0 {
		return []models.AlertHistory{}, nil
	}

	rules, err := e.store.ListActiveRules(ctx, ruleTypes)
	if err != nil {
		return nil, err
	}

	now := e.now()
	var matched []models.AlertRule
	for _, rule := range rules {
		if RuleMatches(rule, subj, now) {
			matched = append(matched, rule)
		}
	}

	created := make([]models.AlertHistory, 0, len(matched))
	createdRules := make([]models.AlertRule, 0, len(matched))
	for _, rule := range matched {
		if req.skipRecent {
			recent, err := e.store.RecentAlertExists(ctx, rule.ID, req.SubjectID, now.Add(-e.cfg.DedupWindow()))
			if err != nil {
				return nil, err
			}
			if recent {
				continue
			}
		}

		h := renderAlert(rule, subj, req, now)
		if err := e.store.InsertHistory(ctx, h); err != nil {
			return nil, err
		}
		created = append(created, *h)
		createdRules = append(createdRules, rule)
	}

	for i := range created {
		if err := e.dispatcher.Dispatch(ctx, createdRules[i], &created[i]); err != nil {
			log.Printf("dispatch for alert %s failed: %v", created[i].ID, err)
		}
	}

	return created, nil
}

// SweepTimeRules evaluates the time-based rule types (closing_soon and
// renewal_prediction) without an external event, since those become true by
// clock alone. Returns the number of alerts created.
func (e *Engine) SweepTimeRules(ctx context.Context) (int, error) {
	total := 0

	ids, err := e.subjects.ListTenderIDsClosingWithin(ctx, e.cfg.ClosingSweepDays)
	if err != nil {
		return total, err
	}
	for _, id := range ids {
		created, err := e.Trigger(ctx, TriggerRequest{
			SubjectType: models.SubjectTender,
			SubjectID:   id,
			TriggerType: models.RuleClosingSoon,
			skipRecent:  true,
		})
		if err != nil {
			log.Printf("closing_soon sweep for tender %s: %v", id, err)
			continue
		}
		total += len(created)
	}

	rids, err := e.subjects.ListRenewalIDsExpiringWithin(ctx, e.cfg.RenewalSweepMonths)
	if err != nil {
		return total, err
	}
	for _, id := range rids {
		created, err := e.Trigger(ctx, TriggerRequest{
			SubjectType: models.SubjectRenewal,
			SubjectID:   id,
			TriggerType: models.RuleRenewalPrediction,
			skipRecent:  true,
		})
		if err != nil {
			log.Printf("renewal_prediction sweep for renewal %s: %v", id, err)
			continue
		}
		total += len(created)
	}

	return total, nil
}

func renderAlert(rule models.AlertRule, subj Subject, req TriggerRequest, now time.Time) *models.AlertHistory {
	h := &models.AlertHistory{
		ID:          uuid.New(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		SubjectType: req.SubjectType,
		SubjectID:   req.SubjectID,
		Priority:    rule.Priority,
		TriggeredAt: now,
	}

	switch rule.RuleType {
	case models.RuleValueThreshold:
		t := subj.Tender
		h.Title = fmt.Sprintf("High-value tender: %s", t.Title)
		h.Message = fmt.Sprintf("%s tender estimated at %.0f matched rule %q", t.Agency, t.EstimatedValue, rule.Name)
	case models.RuleClosingSoon:
		t := subj.Tender
		days := daysUntil(now, *t.ClosingDate)
		h.Title = fmt.Sprintf("Tender closing in %d day(s): %s", days, t.Title)
		h.Message = fmt.Sprintf("%s closes on %s", t.Title, t.ClosingDate.Format("2006-01-02"))
	case models.RuleAgencyMatch:
		t := subj.Tender
		h.Title = fmt.Sprintf("Tender from watched agency %s: %s", t.Agency, t.Title)
		h.Message = fmt.Sprintf("Agency %s published %q", t.Agency, t.Title)
	case models.RuleRenewalPrediction:
		r := subj.Renewal
		h.Title = fmt.Sprintf("Contract renewal predicted: %s", r.Title)
		h.Message = fmt.Sprintf("%s contract with %s ends %s (probability %.0f%%)",
			r.Title, r.Agency, r.ContractEnd.Format("2006-01-02"), r.Probability)
	default:
		h.Title = fmt.Sprintf("Alert: %s", rule.Name)
		h.Message = fmt.Sprintf("Rule %q matched", rule.Name)
	}
	return h
}
