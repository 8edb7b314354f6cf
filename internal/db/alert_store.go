package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/northbridge/tenderops/internal/models"
)

// AlertStore persists alert rules, the alert history ledger, user delivery
// preferences, the per-recipient delivery log and digest queue.
type AlertStore struct {
	q Querier
}

func NewAlertStore(q Querier) *AlertStore {
	return &AlertStore{q: q}
}

const ruleCols = `id, name, rule_type, conditions, priority, channels, recipients,
	escalation_enabled, escalation_after_minutes, escalation_recipients,
	digest_enabled, digest_frequency, digest_time, active, created_at, updated_at`

func scanRule(scan func(dest ...any) error) (models.AlertRule, error) {
	var r models.AlertRule
	var conditionsRaw, recipientsRaw []byte

	err := scan(
		&r.ID, &r.Name, &r.RuleType, &conditionsRaw, &r.Priority, &r.Channels, &recipientsRaw,
		&r.EscalationEnabled, &r.EscalationAfterMinutes, &r.EscalationRecipients,
		&r.DigestEnabled, &r.DigestFrequency, &r.DigestTime, &r.Active, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}
	if len(conditionsRaw) > 0 {
		_ = json.Unmarshal(conditionsRaw, &r.Conditions)
	}
	if len(recipientsRaw) > 0 {
		_ = json.Unmarshal(recipientsRaw, &r.Recipients)
	}
	return r, nil
}

func (s *AlertStore) CreateRule(ctx context.Context, r *models.AlertRule) error {
	conditionsRaw, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	recipientsRaw, err := json.Marshal(r.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}
	if r.Channels == nil {
		r.Channels = []string{}
	}
	if r.EscalationRecipients == nil {
		r.EscalationRecipients = []string{}
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err = s.q.Exec(ctx, `
		INSERT INTO alert_rules (id, name, rule_type, conditions, priority, channels, recipients,
			escalation_enabled, escalation_after_minutes, escalation_recipients,
			digest_enabled, digest_frequency, digest_time, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, r.ID, r.Name, r.RuleType, conditionsRaw, r.Priority, r.Channels, recipientsRaw,
		r.EscalationEnabled, r.EscalationAfterMinutes, r.EscalationRecipients,
		r.DigestEnabled, r.DigestFrequency, r.DigestTime, r.Active, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

func (s *AlertStore) GetRule(ctx context.Context, id uuid.UUID) (*models.AlertRule, error) {
	row := s.q.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM alert_rules WHERE id = $1", ruleCols), id)
	r, err := scanRule(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("rule %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &r, nil
}

func (s *AlertStore) ListRules(ctx context.Context) ([]models.AlertRule, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf("SELECT %s FROM alert_rules ORDER BY created_at DESC", ruleCols))
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListActiveRules returns active rules, optionally restricted to rule types.
// Only active rules are ever evaluated.
func (s *AlertStore) ListActiveRules(ctx context.Context, ruleTypes []string) ([]models.AlertRule, error) {
	sql := fmt.Sprintf("SELECT %s FROM alert_rules WHERE active = TRUE", ruleCols)
	var args []any
	if len(ruleTypes) > 0 {
		sql += " AND rule_type = ANY($1)"
		args = append(args, ruleTypes)
	}
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	defer rows.Close()
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	for rows.Next() {
		r, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	if rules == nil {
		rules = []models.AlertRule{}
	}
	return rules, rows.Err()
}

func (s *AlertStore) UpdateRule(ctx context.Context, r *models.AlertRule) error {
	conditionsRaw, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}
	recipientsRaw, err := json.Marshal(r.Recipients)
	if err != nil {
		return fmt.Errorf("encode recipients: %w", err)
	}

	tag, err := s.q.Exec(ctx, `
		UPDATE alert_rules SET name=$2, rule_type=$3, conditions=$4, priority=$5, channels=$6,
			recipients=$7, escalation_enabled=$8, escalation_after_minutes=$9,
			escalation_recipients=$10, digest_enabled=$11, digest_frequency=$12,
			digest_time=$13, active=$14, updated_at=NOW()
		WHERE id=$1
	`, r.ID, r.Name, r.RuleType, conditionsRaw, r.Priority, r.Channels,
		recipientsRaw, r.EscalationEnabled, r.EscalationAfterMinutes,
		r.EscalationRecipients, r.DigestEnabled, r.DigestFrequency,
		r.DigestTime, r.Active)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, models.ErrNotFound)
	}
	return nil
}

func (s *AlertStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM alert_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule %s: %w", id, models.ErrNotFound)
	}
	return nil
}

const historyCols = `id, rule_id, rule_name, subject_type, subject_id, title, message, priority,
	channels_attempted, delivered_channels, delivery_errors, delivered,
	acknowledged, acknowledged_by, acknowledged_at,
	action_taken, resolution_notes, resolved_at, satisfaction,
	escalated, escalated_at, triggered_at, created_at`

func scanHistory(scan func(dest ...any) error) (models.AlertHistory, error) {
	var h models.AlertHistory
	var errorsRaw []byte

	err := scan(
		&h.ID, &h.RuleID, &h.RuleName, &h.SubjectType, &h.SubjectID, &h.Title, &h.Message, &h.Priority,
		&h.ChannelsAttempted, &h.DeliveredChannels, &errorsRaw, &h.Delivered,
		&h.Acknowledged, &h.AcknowledgedBy, &h.AcknowledgedAt,
		&h.ActionTaken, &h.ResolutionNotes, &h.ResolvedAt, &h.Satisfaction,
		&h.Escalated, &h.EscalatedAt, &h.TriggeredAt, &h.CreatedAt,
	)
	if err != nil {
		return h, err
	}
	if len(errorsRaw) > 0 {
		_ = json.Unmarshal(errorsRaw, &h.DeliveryErrors)
	}
	return h, nil
}

func (s *AlertStore) InsertHistory(ctx context.Context, h *models.AlertHistory) error {
	if h.ChannelsAttempted == nil {
		h.ChannelsAttempted = []string{}
	}
	if h.DeliveredChannels == nil {
		h.DeliveredChannels = []string{}
	}
	errorsRaw, err := json.Marshal(h.DeliveryErrors)
	if err != nil {
		return fmt.Errorf("encode delivery errors: %w", err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO alert_history (id, rule_id, rule_name, subject_type, subject_id, title, message,
			priority, channels_attempted, delivered_channels, delivery_errors, delivered,
			triggered_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)
	`, h.ID, h.RuleID, h.RuleName, h.SubjectType, h.SubjectID, h.Title, h.Message,
		h.Priority, h.ChannelsAttempted, h.DeliveredChannels, errorsRaw, h.Delivered,
		h.TriggeredAt)
	if err != nil {
		return fmt.Errorf("insert alert history: %w", err)
	}
	return nil
}

func (s *AlertStore) GetHistory(ctx context.Context, id uuid.UUID) (*models.AlertHistory, error) {
	row := s.q.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM alert_history WHERE id = $1", historyCols), id)
	h, err := scanHistory(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &h, nil
}

type HistoryListParams struct {
	UnreadOnly bool
	Priority   string
	Limit      int
	Offset     int
}

func (s *AlertStore) ListHistory(ctx context.Context, params HistoryListParams) ([]models.AlertHistory, int, error) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if params.UnreadOnly {
		where += " AND acknowledged = FALSE"
	}
	if params.Priority != "" {
		where += fmt.Sprintf(" AND priority = $%d", argIdx)
		args = append(args, params.Priority)
		argIdx++
	}

	var total int
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM alert_history "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count failed: %w", err)
	}

	sql := fmt.Sprintf("SELECT %s FROM alert_history %s ORDER BY triggered_at DESC LIMIT $%d OFFSET $%d",
		historyCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertHistory
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		alerts = append(alerts, h)
	}
	if alerts == nil {
		alerts = []models.AlertHistory{}
	}
	return alerts, total, rows.Err()
}

// UpdateDelivery records the per-channel outcome of a dispatch on the ledger row.
func (s *AlertStore) UpdateDelivery(ctx context.Context, id uuid.UUID, attempted, delivered []string, deliveryErrors map[string]string, ok bool) error {
	if attempted == nil {
		attempted = []string{}
	}
	if delivered == nil {
		delivered = []string{}
	}
	errorsRaw, err := json.Marshal(deliveryErrors)
	if err != nil {
		return fmt.Errorf("encode delivery errors: %w", err)
	}
	_, err = s.q.Exec(ctx, `
		UPDATE alert_history SET channels_attempted = $2, delivered_channels = $3,
			delivery_errors = $4, delivered = $5
		WHERE id = $1
	`, id, attempted, delivered, errorsRaw, ok)
	if err != nil {
		return fmt.Errorf("update delivery: %w", err)
	}
	return nil
}

// Acknowledge is idempotent: a second acknowledge is a successful no-op and
// acknowledged_at is untouched, guarded by the WHERE clause.
func (s *AlertStore) Acknowledge(ctx context.Context, id uuid.UUID, userID, actionTaken, notes string, satisfaction *int, now time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE alert_history SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3,
			action_taken = $4, resolution_notes = $5, satisfaction = $6,
			resolved_at = CASE WHEN $4 <> '' THEN $3 ELSE resolved_at END
		WHERE id = $1 AND acknowledged = FALSE
	`, id, userID, now, actionTaken, notes, satisfaction)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either already acknowledged (fine) or missing (not found).
		var exists bool
		if err := s.q.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM alert_history WHERE id = $1)", id).Scan(&exists); err != nil {
			return fmt.Errorf("check alert: %w", err)
		}
		if !exists {
			return fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
		}
		return models.ErrAlreadyAcknowledged
	}
	return nil
}

// MarkAllRead acknowledges every unacknowledged alert on behalf of the user.
func (s *AlertStore) MarkAllRead(ctx context.Context, userID string, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE alert_history SET acknowledged = TRUE, acknowledged_by = $1, acknowledged_at = $2
		WHERE acknowledged = FALSE
	`, userID, now)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *AlertStore) UnreadCount(ctx context.Context) (int, error) {
	var count int
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM alert_history WHERE acknowledged = FALSE").Scan(&count); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return count, nil
}

// RecentAlertExists reports whether the rule already fired for the subject
// within the window. Used by the periodic sweeps to avoid re-alerting.
func (s *AlertStore) RecentAlertExists(ctx context.Context, ruleID, subjectID uuid.UUID, since time.Time) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM alert_history WHERE rule_id = $1 AND subject_id = $2 AND triggered_at >= $3)
	`, ruleID, subjectID, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recent alert: %w", err)
	}
	return exists, nil
}

// Preferences

func (s *AlertStore) GetPreference(ctx context.Context, userID string) (*models.UserAlertPreference, error) {
	var p models.UserAlertPreference
	err := s.q.QueryRow(ctx, `
		SELECT user_id, email_enabled, email_address, sms_enabled, phone_number,
			slack_enabled, slack_user_id, push_enabled, push_token, in_app_enabled,
			quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			dnd_enabled, dnd_until, min_priority,
			digest_enabled, digest_frequency, digest_time,
			max_per_hour, max_per_day, updated_at
		FROM user_alert_preferences WHERE user_id = $1
	`, userID).Scan(
		&p.UserID, &p.EmailEnabled, &p.EmailAddress, &p.SMSEnabled, &p.PhoneNumber,
		&p.SlackEnabled, &p.SlackUserID, &p.PushEnabled, &p.PushToken, &p.InAppEnabled,
		&p.QuietHoursEnabled, &p.QuietHoursStart, &p.QuietHoursEnd,
		&p.DNDEnabled, &p.DNDUntil, &p.MinPriority,
		&p.DigestEnabled, &p.DigestFrequency, &p.DigestTime,
		&p.MaxPerHour, &p.MaxPerDay, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("preference %s: %w", userID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &p, nil
}

func (s *AlertStore) SavePreference(ctx context.Context, p *models.UserAlertPreference) error {
	p.UpdatedAt = time.Now()
	_, err := s.q.Exec(ctx, `
		INSERT INTO user_alert_preferences (user_id, email_enabled, email_address, sms_enabled, phone_number,
			slack_enabled, slack_user_id, push_enabled, push_token, in_app_enabled,
			quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			dnd_enabled, dnd_until, min_priority,
			digest_enabled, digest_frequency, digest_time,
			max_per_hour, max_per_day, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled, email_address = EXCLUDED.email_address,
			sms_enabled = EXCLUDED.sms_enabled, phone_number = EXCLUDED.phone_number,
			slack_enabled = EXCLUDED.slack_enabled, slack_user_id = EXCLUDED.slack_user_id,
			push_enabled = EXCLUDED.push_enabled, push_token = EXCLUDED.push_token,
			in_app_enabled = EXCLUDED.in_app_enabled,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start, quiet_hours_end = EXCLUDED.quiet_hours_end,
			dnd_enabled = EXCLUDED.dnd_enabled, dnd_until = EXCLUDED.dnd_until,
			min_priority = EXCLUDED.min_priority,
			digest_enabled = EXCLUDED.digest_enabled, digest_frequency = EXCLUDED.digest_frequency,
			digest_time = EXCLUDED.digest_time,
			max_per_hour = EXCLUDED.max_per_hour, max_per_day = EXCLUDED.max_per_day,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.EmailEnabled, p.EmailAddress, p.SMSEnabled, p.PhoneNumber,
		p.SlackEnabled, p.SlackUserID, p.PushEnabled, p.PushToken, p.InAppEnabled,
		p.QuietHoursEnabled, p.QuietHoursStart, p.QuietHoursEnd,
		p.DNDEnabled, p.DNDUntil, p.MinPriority,
		p.DigestEnabled, p.DigestFrequency, p.DigestTime,
		p.MaxPerHour, p.MaxPerDay, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save preference: %w", err)
	}
	return nil
}

// Delivery log (rate caps)

func (s *AlertStore) LogDelivery(ctx context.Context, userID, channel string, alertID uuid.UUID, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO delivery_log (user_id, channel, alert_id, delivered_at) VALUES ($1,$2,$3,$4)
	`, userID, channel, alertID, at)
	if err != nil {
		return fmt.Errorf("log delivery: %w", err)
	}
	return nil
}

func (s *AlertStore) CountDeliveries(ctx context.Context, userID, channel string, since time.Time) (int, error) {
	var count int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM delivery_log WHERE user_id = $1 AND channel = $2 AND delivered_at >= $3
	`, userID, channel, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count deliveries: %w", err)
	}
	return count, nil
}

// Escalation

// EscalationDue pairs an overdue alert with the rule that governs it.
type EscalationDue struct {
	Alert models.AlertHistory
	Rule  models.AlertRule
}

// DueEscalations returns unacknowledged, not-yet-escalated alerts whose rule
// has escalation enabled and whose age exceeds the configured delay.
func (s *AlertStore) DueEscalations(ctx context.Context, now time.Time) ([]EscalationDue, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT %s, %s
		FROM alert_history h
		JOIN alert_rules r ON r.id = h.rule_id
		WHERE r.escalation_enabled = TRUE
		  AND h.acknowledged = FALSE
		  AND h.escalated = FALSE
		  AND h.triggered_at <= $1 - (r.escalation_after_minutes * INTERVAL '1 minute')
	`, prefixCols("h", historyCols), prefixCols("r", ruleCols)), now)
	if err != nil {
		return nil, fmt.Errorf("query due escalations: %w", err)
	}
	defer rows.Close()

	var due []EscalationDue
	for rows.Next() {
		var h models.AlertHistory
		var r models.AlertRule
		var deliveryErrorsRaw, conditionsRaw, recipientsRaw []byte

		err := rows.Scan(
			&h.ID, &h.RuleID, &h.RuleName, &h.SubjectType, &h.SubjectID, &h.Title, &h.Message, &h.Priority,
			&h.ChannelsAttempted, &h.DeliveredChannels, &deliveryErrorsRaw, &h.Delivered,
			&h.Acknowledged, &h.AcknowledgedBy, &h.AcknowledgedAt,
			&h.ActionTaken, &h.ResolutionNotes, &h.ResolvedAt, &h.Satisfaction,
			&h.Escalated, &h.EscalatedAt, &h.TriggeredAt, &h.CreatedAt,
			&r.ID, &r.Name, &r.RuleType, &conditionsRaw, &r.Priority, &r.Channels, &recipientsRaw,
			&r.EscalationEnabled, &r.EscalationAfterMinutes, &r.EscalationRecipients,
			&r.DigestEnabled, &r.DigestFrequency, &r.DigestTime, &r.Active, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		if len(deliveryErrorsRaw) > 0 {
			_ = json.Unmarshal(deliveryErrorsRaw, &h.DeliveryErrors)
		}
		if len(conditionsRaw) > 0 {
			_ = json.Unmarshal(conditionsRaw, &r.Conditions)
		}
		if len(recipientsRaw) > 0 {
			_ = json.Unmarshal(recipientsRaw, &r.Recipients)
		}
		due = append(due, EscalationDue{Alert: h, Rule: r})
	}
	return due, rows.Err()
}

// ClaimEscalation flips the durable escalated flag. The WHERE clause makes the
// claim succeed at most once per alert, even across concurrent sweeps.
func (s *AlertStore) ClaimEscalation(ctx context.Context, alertID uuid.UUID, now time.Time) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE alert_history SET escalated = TRUE, escalated_at = $2
		WHERE id = $1 AND escalated = FALSE AND acknowledged = FALSE
	`, alertID, now)
	if err != nil {
		return false, fmt.Errorf("claim escalation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// prefixCols qualifies a bare column list with a table alias.
func prefixCols(alias, cols string) string {
	out := ""
	for i, c := range splitCols(cols) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func splitCols(cols string) []string {
	var out []string
	cur := ""
	for _, ch := range cols {
		switch ch {
		case ',':
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
		case ' ', '\n', '\t':
			// skip whitespace between columns
		default:
			cur += string(ch)
		}
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

// Digest queue

func (s *AlertStore) EnqueueDigest(ctx context.Context, e *models.DigestEntry) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO digest_queue (id, user_id, channel, alert_id, title, priority, enqueued_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.UserID, e.Channel, e.AlertID, e.Title, e.Priority, e.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("enqueue digest: %w", err)
	}
	return nil
}

func (s *AlertStore) PendingDigests(ctx context.Context) ([]models.DigestEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, user_id, channel, alert_id, title, priority, enqueued_at
		FROM digest_queue ORDER BY user_id, channel, enqueued_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query digest queue: %w", err)
	}
	defer rows.Close()

	var entries []models.DigestEntry
	for rows.Next() {
		var e models.DigestEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Channel, &e.AlertID, &e.Title, &e.Priority, &e.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan digest entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *AlertStore) DeleteDigestEntries(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.q.Exec(ctx, "DELETE FROM digest_queue WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("delete digest entries: %w", err)
	}
	return nil
}

// Analytics reads

func (s *AlertStore) ListHistoryBetween(ctx context.Context, from, to time.Time) ([]models.AlertHistory, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM alert_history WHERE triggered_at >= $1 AND triggered_at < $2
		ORDER BY triggered_at ASC
	`, historyCols), from, to)
	if err != nil {
		return nil, fmt.Errorf("query history window: %w", err)
	}
	defer rows.Close()

	var alerts []models.AlertHistory
	for rows.Next() {
		h, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		alerts = append(alerts, h)
	}
	return alerts, rows.Err()
}

func (s *AlertStore) CountOutcomes(ctx context.Context, from, to time.Time) (won, lost int, err error) {
	err = s.q.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE outcome = 'won'), COUNT(*) FILTER (WHERE outcome = 'lost')
		FROM tender_cards WHERE outcome_date >= $1 AND outcome_date < $2
	`, from, to).Scan(&won, &lost)
	if err != nil {
		return 0, 0, fmt.Errorf("count outcomes: %w", err)
	}
	return won, lost, nil
}
