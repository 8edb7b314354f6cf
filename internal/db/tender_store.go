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

// TenderStore persists tender cards, contract renewals and the pipeline audit
// trail. Stage moves and decision recording run in per-row transactions so a
// single card's writes are serialized.
type TenderStore struct {
	q Querier
}

func NewTenderStore(q Querier) *TenderStore {
	return &TenderStore{q: q}
}

// tenderCols is the comprehensive column list for all tender queries.
const tenderCols = `id, source_type, source_id, tender_number, title, agency, category,
	estimated_value, published_at, closing_date, contract_start, contract_end,
	stage, stage_updated_at, priority, is_urgent, is_renewal, renewal_id,
	assigned_to, team, qualification_score, qualification_details,
	decision, decision_reasoning, decision_at,
	outcome, outcome_date, outcome_reason,
	tags, documents, notes, created_at, updated_at`

func scanTenderCard(scan func(dest ...any) error) (models.TenderCard, error) {
	var t models.TenderCard
	var detailsRaw []byte

	err := scan(
		&t.ID, &t.SourceType, &t.SourceID, &t.TenderNumber, &t.Title, &t.Agency, &t.Category,
		&t.EstimatedValue, &t.PublishedAt, &t.ClosingDate, &t.ContractStart, &t.ContractEnd,
		&t.Stage, &t.StageUpdatedAt, &t.Priority, &t.IsUrgent, &t.IsRenewal, &t.RenewalID,
		&t.AssignedTo, &t.Team, &t.QualificationScore, &detailsRaw,
		&t.Decision, &t.DecisionReasoning, &t.DecisionAt,
		&t.Outcome, &t.OutcomeDate, &t.OutcomeReason,
		&t.Tags, &t.Documents, &t.Notes, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}
	if len(detailsRaw) > 0 {
		_ = json.Unmarshal(detailsRaw, &t.QualificationDetails)
	}
	return t, nil
}

func (s *TenderStore) CreateTender(ctx context.Context, t *models.TenderCard) error {
	detailsRaw, err := json.Marshal(t.QualificationDetails)
	if err != nil {
		return fmt.Errorf("encode qualification details: %w", err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.Documents == nil {
		t.Documents = []string{}
	}

	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.StageUpdatedAt = now

	_, err = s.q.Exec(ctx, `
		INSERT INTO tender_cards (
			id, source_type, source_id, tender_number, title, agency, category,
			estimated_value, published_at, closing_date, contract_start, contract_end,
			stage, stage_updated_at, priority, is_urgent, is_renewal, renewal_id,
			assigned_to, team, qualification_score, qualification_details, notes,
			tags, documents, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27)
	`,
		t.ID, t.SourceType, t.SourceID, t.TenderNumber, t.Title, t.Agency, t.Category,
		t.EstimatedValue, t.PublishedAt, t.ClosingDate, t.ContractStart, t.ContractEnd,
		t.Stage, t.StageUpdatedAt, t.Priority, t.IsUrgent, t.IsRenewal, t.RenewalID,
		t.AssignedTo, t.Team, t.QualificationScore, detailsRaw, t.Notes,
		t.Tags, t.Documents, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tender: %w", err)
	}
	return nil
}

func (s *TenderStore) GetTender(ctx context.Context, id uuid.UUID) (*models.TenderCard, error) {
	row := s.q.QueryRow(ctx, fmt.Sprintf("SELECT %s FROM tender_cards WHERE id = $1", tenderCols), id)
	t, err := scanTenderCard(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tender %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get tender: %w", err)
	}
	return &t, nil
}

type TenderListParams struct {
	Stage      []string
	Priority   []string
	Agency     []string
	AssignedTo string
	IsUrgent   *bool
	IsRenewal  *bool
	Limit      int
	Offset     int
}

type TenderListResult struct {
	Tenders []models.TenderCard `json:"tenders"`
	Total   int                 `json:"total"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

func (s *TenderStore) ListTenders(ctx context.Context, params TenderListParams) (*TenderListResult, error) {
	where := "WHERE 1=1"
	var args []any
	argIdx := 1

	if len(params.Stage) > 0 {
		where += fmt.Sprintf(" AND stage = ANY($%d)", argIdx)
		args = append(args, params.Stage)
		argIdx++
	}
	if len(params.Priority) > 0 {
		where += fmt.Sprintf(" AND priority = ANY($%d)", argIdx)
		args = append(args, params.Priority)
		argIdx++
	}
	if len(params.Agency) > 0 {
		where += fmt.Sprintf(" AND agency = ANY($%d)", argIdx)
		args = append(args, params.Agency)
		argIdx++
	}
	if params.AssignedTo != "" {
		where += fmt.Sprintf(" AND assigned_to = $%d", argIdx)
		args = append(args, params.AssignedTo)
		argIdx++
	}
	if params.IsUrgent != nil {
		where += fmt.Sprintf(" AND is_urgent = $%d", argIdx)
		args = append(args, *params.IsUrgent)
		argIdx++
	}
	if params.IsRenewal != nil {
		where += fmt.Sprintf(" AND is_renewal = $%d", argIdx)
		args = append(args, *params.IsRenewal)
		argIdx++
	}

	var total int
	if err := s.q.QueryRow(ctx, "SELECT COUNT(*) FROM tender_cards "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := fmt.Sprintf("SELECT %s FROM tender_cards %s ORDER BY updated_at DESC, created_at DESC LIMIT $%d OFFSET $%d",
		tenderCols, where, argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.q.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var tenders []models.TenderCard
	for rows.Next() {
		t, err := scanTenderCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if tenders == nil {
		tenders = []models.TenderCard{}
	}

	return &TenderListResult{Tenders: tenders, Total: total, Limit: params.Limit, Offset: params.Offset}, nil
}

// TenderPatch carries optional field edits; nil means leave unchanged.
type TenderPatch struct {
	Title          *string
	Agency         *string
	Category       *string
	TenderNumber   *string
	EstimatedValue *float64
	ClosingDate    *time.Time
	ContractStart  *time.Time
	ContractEnd    *time.Time
	Priority       *string
	IsUrgent       *bool
	AssignedTo     *string
	Team           *string
	Tags           []string
	Notes          *string
}

func (s *TenderStore) UpdateTender(ctx context.Context, id uuid.UUID, patch TenderPatch) (*models.TenderCard, error) {
	set := "SET updated_at = NOW()"
	var args []any
	argIdx := 1

	add := func(col string, val any) {
		set += fmt.Sprintf(", %s = $%d", col, argIdx)
		args = append(args, val)
		argIdx++
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Agency != nil {
		add("agency", *patch.Agency)
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.TenderNumber != nil {
		add("tender_number", *patch.TenderNumber)
	}
	if patch.EstimatedValue != nil {
		add("estimated_value", *patch.EstimatedValue)
	}
	if patch.ClosingDate != nil {
		add("closing_date", *patch.ClosingDate)
	}
	if patch.ContractStart != nil {
		add("contract_start", *patch.ContractStart)
	}
	if patch.ContractEnd != nil {
		add("contract_end", *patch.ContractEnd)
	}
	if patch.Priority != nil {
		add("priority", *patch.Priority)
	}
	if patch.IsUrgent != nil {
		add("is_urgent", *patch.IsUrgent)
	}
	if patch.AssignedTo != nil {
		add("assigned_to", *patch.AssignedTo)
	}
	if patch.Team != nil {
		add("team", *patch.Team)
	}
	if patch.Tags != nil {
		add("tags", patch.Tags)
	}
	if patch.Notes != nil {
		add("notes", *patch.Notes)
	}

	sql := fmt.Sprintf("UPDATE tender_cards %s WHERE id = $%d", set, argIdx)
	args = append(args, id)

	tag, err := s.q.Exec(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("update tender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("tender %s: %w", id, models.ErrNotFound)
	}

	return s.GetTender(ctx, id)
}

// DeleteTender is an administrative override; the pipeline itself never
// hard-deletes cards.
func (s *TenderStore) DeleteTender(ctx context.Context, id uuid.UUID) error {
	tag, err := s.q.Exec(ctx, "DELETE FROM tender_cards WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tender: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tender %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// MoveStage updates the stage inside a transaction that locks the row, so
// concurrent moves for the same card serialize. The audit entry is written in
// the same transaction.
func (s *TenderStore) MoveStage(ctx context.Context, id uuid.UUID, newStage, actor string, now time.Time) (*models.TenderCard, error) {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldStage, decision string
	err = tx.QueryRow(ctx, "SELECT stage, decision FROM tender_cards WHERE id = $1 FOR UPDATE", id).Scan(&oldStage, &decision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tender %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("lock tender: %w", err)
	}

	// The no-go pin is re-checked under the row lock: a no-go committed after
	// the caller's read must still win over the requested stage.
	if decision == models.DecisionNoGo {
		newStage = models.StageLost
	}

	_, err = tx.Exec(ctx, `
		UPDATE tender_cards SET stage = $2, stage_updated_at = $3, updated_at = $3 WHERE id = $1
	`, id, newStage, now)
	if err != nil {
		return nil, fmt.Errorf("update stage: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pipeline_audit (tender_id, action, from_stage, to_stage, actor, created_at)
		VALUES ($1, 'stage_move', $2, $3, $4, $5)
	`, id, oldStage, newStage, actor, now)
	if err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit move: %w", err)
	}

	return s.GetTender(ctx, id)
}

// DecisionUpdate is the resolved decision write, computed by the pipeline
// service. ForceLost folds the no-go rule into one atomic statement.
type DecisionUpdate struct {
	Decision             string
	Reasoning            string
	QualificationScore   *float64
	QualificationDetails map[string]any
	Actor                string
	ForceLost            bool
}

func (s *TenderStore) RecordDecision(ctx context.Context, id uuid.UUID, upd DecisionUpdate, now time.Time) (*models.TenderCard, error) {
	detailsRaw, err := json.Marshal(upd.QualificationDetails)
	if err != nil {
		return nil, fmt.Errorf("encode qualification details: %w", err)
	}

	tx, err := s.q.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin decision: %w", err)
	}
	defer tx.Rollback(ctx)

	var oldStage string
	err = tx.QueryRow(ctx, "SELECT stage FROM tender_cards WHERE id = $1 FOR UPDATE", id).Scan(&oldStage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("tender %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("lock tender: %w", err)
	}

	if upd.ForceLost {
		// no-go implies stage=lost and outcome=lost in the same write.
		_, err = tx.Exec(ctx, `
			UPDATE tender_cards SET
				decision = $2, decision_reasoning = $3, decision_at = $4,
				qualification_score = $5, qualification_details = $6,
				stage = 'lost', stage_updated_at = $4,
				outcome = 'lost', outcome_date = $4, outcome_reason = $3,
				updated_at = $4
			WHERE id = $1
		`, id, upd.Decision, upd.Reasoning, now, upd.QualificationScore, detailsRaw)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE tender_cards SET
				decision = $2, decision_reasoning = $3, decision_at = $4,
				qualification_score = $5, qualification_details = $6,
				updated_at = $4
			WHERE id = $1
		`, id, upd.Decision, upd.Reasoning, now, upd.QualificationScore, detailsRaw)
	}
	if err != nil {
		return nil, fmt.Errorf("update decision: %w", err)
	}

	toStage := oldStage
	if upd.ForceLost {
		toStage = models.StageLost
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO pipeline_audit (tender_id, action, from_stage, to_stage, actor, detail, created_at)
		VALUES ($1, 'decision', $2, $3, $4, $5, $6)
	`, id, oldStage, toStage, upd.Actor, upd.Decision+": "+upd.Reasoning, now)
	if err != nil {
		return nil, fmt.Errorf("append audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit decision: %w", err)
	}

	return s.GetTender(ctx, id)
}

func (s *TenderStore) GetRenewal(ctx context.Context, id uuid.UUID) (*models.ContractRenewal, error) {
	var r models.ContractRenewal
	err := s.q.QueryRow(ctx, `
		SELECT id, contract_ref, title, agency, category, annual_value, contract_end,
			probability, engagement_status, created_at, updated_at
		FROM contract_renewals WHERE id = $1
	`, id).Scan(
		&r.ID, &r.ContractRef, &r.Title, &r.Agency, &r.Category, &r.AnnualValue, &r.ContractEnd,
		&r.Probability, &r.EngagementStatus, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("renewal %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get renewal: %w", err)
	}
	return &r, nil
}

// FindActiveCardForRenewal returns the existing card promoted from the
// renewal, or nil when none exists. Terminal cards do not count as active.
func (s *TenderStore) FindActiveCardForRenewal(ctx context.Context, renewalID uuid.UUID) (*models.TenderCard, error) {
	row := s.q.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM tender_cards
		WHERE renewal_id = $1 AND stage NOT IN ('awarded', 'lost')
		ORDER BY created_at DESC LIMIT 1
	`, tenderCols), renewalID)

	t, err := scanTenderCard(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find card for renewal: %w", err)
	}
	return &t, nil
}

// PromoteRenewal inserts the derived card and flips the renewal to watching in
// one transaction.
func (s *TenderStore) PromoteRenewal(ctx context.Context, renewalID uuid.UUID, card *models.TenderCard, now time.Time) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin promote: %w", err)
	}
	defer tx.Rollback(ctx)

	if card.Tags == nil {
		card.Tags = []string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tender_cards (
			id, source_type, title, agency, category, estimated_value, contract_end,
			stage, stage_updated_at, priority, is_renewal, renewal_id, tags, created_at, updated_at
		) VALUES ($1, 'renewal', $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11, $8, $8)
	`, card.ID, card.Title, card.Agency, card.Category, card.EstimatedValue, card.ContractEnd,
		card.Stage, now, card.Priority, renewalID, card.Tags)
	if err != nil {
		return fmt.Errorf("insert promoted card: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE contract_renewals SET engagement_status = $2, updated_at = $3 WHERE id = $1
	`, renewalID, models.EngagementWatching, now)
	if err != nil {
		return fmt.Errorf("update renewal status: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pipeline_audit (tender_id, action, to_stage, actor, detail, created_at)
		VALUES ($1, 'promote_renewal', $2, 'system', $3, $4)
	`, card.ID, card.Stage, "promoted from renewal "+renewalID.String(), now)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit promote: %w", err)
	}
	return nil
}

func (s *TenderStore) CreateRenewal(ctx context.Context, r *models.ContractRenewal) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.EngagementStatus == "" {
		r.EngagementStatus = models.EngagementDormant
	}
	_, err := s.q.Exec(ctx, `
		INSERT INTO contract_renewals (id, contract_ref, title, agency, category, annual_value,
			contract_end, probability, engagement_status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, r.ID, r.ContractRef, r.Title, r.Agency, r.Category, r.AnnualValue,
		r.ContractEnd, r.Probability, r.EngagementStatus, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert renewal: %w", err)
	}
	return nil
}

func (s *TenderStore) ListAudit(ctx context.Context, tenderID uuid.UUID) ([]models.AuditEntry, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, tender_id, action, from_stage, to_stage, actor, detail, created_at
		FROM pipeline_audit WHERE tender_id = $1 ORDER BY created_at ASC
	`, tenderID)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.TenderID, &e.Action, &e.FromStage, &e.ToStage, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// DashboardStats assembles the pipeline dashboard rollup.
func (s *TenderStore) DashboardStats(ctx context.Context) (map[string]any, error) {
	stats := make(map[string]any)

	stageCounts := map[string]int{}
	rows, err := s.q.Query(ctx, "SELECT stage, COUNT(*) FROM tender_cards GROUP BY stage")
	if err != nil {
		return nil, fmt.Errorf("stage counts: %w", err)
	}
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err == nil {
			stageCounts[stage] = count
		}
	}
	rows.Close()
	stats["stage_counts"] = stageCounts

	priorityCounts := map[string]int{}
	rows, err = s.q.Query(ctx, "SELECT priority, COUNT(*) FROM tender_cards GROUP BY priority")
	if err != nil {
		return nil, fmt.Errorf("priority counts: %w", err)
	}
	for rows.Next() {
		var p string
		var count int
		if err := rows.Scan(&p, &count); err == nil {
			priorityCounts[p] = count
		}
	}
	rows.Close()
	stats["priority_counts"] = priorityCounts

	var total, urgent, won, lost int
	var pipelineValue float64
	_ = s.q.QueryRow(ctx, "SELECT COUNT(*) FROM tender_cards").Scan(&total)
	_ = s.q.QueryRow(ctx, "SELECT COUNT(*) FROM tender_cards WHERE is_urgent").Scan(&urgent)
	_ = s.q.QueryRow(ctx, "SELECT COUNT(*) FROM tender_cards WHERE outcome = 'won'").Scan(&won)
	_ = s.q.QueryRow(ctx, "SELECT COUNT(*) FROM tender_cards WHERE outcome = 'lost'").Scan(&lost)
	_ = s.q.QueryRow(ctx, "SELECT COALESCE(SUM(estimated_value), 0) FROM tender_cards WHERE stage NOT IN ('awarded','lost')").Scan(&pipelineValue)

	stats["total"] = total
	stats["urgent"] = urgent
	stats["won"] = won
	stats["lost"] = lost
	stats["pipeline_value"] = pipelineValue
	if won+lost > 0 {
		stats["win_rate"] = float64(won) / float64(won+lost)
	} else {
		stats["win_rate"] = 0.0
	}

	return stats, nil
}

// UpcomingDeadlines lists non-terminal cards closing within the given number
// of days, soonest first.
func (s *TenderStore) UpcomingDeadlines(ctx context.Context, days int) ([]models.TenderCard, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM tender_cards
		WHERE stage NOT IN ('awarded','lost')
		  AND closing_date IS NOT NULL
		  AND closing_date >= NOW()
		  AND closing_date <= NOW() + ($1 * INTERVAL '1 day')
		ORDER BY closing_date ASC
	`, tenderCols), days)
	if err != nil {
		return nil, fmt.Errorf("query deadlines: %w", err)
	}
	defer rows.Close()

	var tenders []models.TenderCard
	for rows.Next() {
		t, err := scanTenderCard(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		tenders = append(tenders, t)
	}
	if tenders == nil {
		tenders = []models.TenderCard{}
	}
	return tenders, rows.Err()
}

// ListTenderIDsClosingWithin returns ids of open cards whose closing date
// falls within the window. Used by the periodic closing_soon sweep.
func (s *TenderStore) ListTenderIDsClosingWithin(ctx context.Context, days int) ([]uuid.UUID, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id FROM tender_cards
		WHERE stage NOT IN ('awarded','lost')
		  AND closing_date IS NOT NULL
		  AND closing_date <= NOW() + ($1 * INTERVAL '1 day')
	`, days)
	if err != nil {
		return nil, fmt.Errorf("query closing tenders: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRenewalIDsExpiringWithin returns ids of renewals whose contract ends
// within the window. Used by the periodic renewal_prediction sweep.
func (s *TenderStore) ListRenewalIDsExpiringWithin(ctx context.Context, months int) ([]uuid.UUID, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id FROM contract_renewals
		WHERE contract_end IS NOT NULL
		  AND contract_end <= NOW() + ($1 * INTERVAL '30 days')
	`, months)
	if err != nil {
		return nil, fmt.Errorf("query expiring renewals: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
