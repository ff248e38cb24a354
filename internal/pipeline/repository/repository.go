package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"govcon_outreach_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	contractorNotFoundMsg = "contractor not found"
	foreignKeyViolation   = "23503"
)

// emailStatusPredecessors lists the statuses each forward move may start from.
var emailStatusPredecessors = map[string][]string{
	"opened":       {"sent"},
	"clicked":      {"sent", "opened"},
	"unsubscribed": {"sent", "opened", "clicked"},
}

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new pipeline repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository
var _ Repository = (*Repo)(nil)

// WithTx runs fn inside a transaction, committing only when fn succeeds.
func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin pipeline tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pipeline tx: %w", err)
	}
	return nil
}

// ResolveContractor finds a contractor by id, then email, then promo code.
func (r *Repo) ResolveContractor(ctx context.Context, lookup Lookup) (uuid.UUID, error) {
	var id uuid.UUID
	var err error

	switch {
	case lookup.ContractorID != nil:
		err = r.pool.QueryRow(ctx, `SELECT id FROM contractors WHERE id = $1`, *lookup.ContractorID).Scan(&id)
	case strings.TrimSpace(lookup.Email) != "":
		err = r.pool.QueryRow(ctx, `
			SELECT id FROM contractors
			WHERE lower(email) = lower($1)
			ORDER BY created_at ASC
			LIMIT 1`, strings.TrimSpace(lookup.Email)).Scan(&id)
	case strings.TrimSpace(lookup.PromoCode) != "":
		err = r.pool.QueryRow(ctx, `SELECT contractor_id FROM promo_codes WHERE code = upper($1)`,
			strings.TrimSpace(lookup.PromoCode)).Scan(&id)
	default:
		return uuid.Nil, apperr.Validation("contractor id, email or promo code is required")
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, apperr.NotFound(contractorNotFoundMsg)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("resolve contractor: %w", err)
	}
	return id, nil
}

// ListExpiredTrials returns converted contractors whose trial ended before now.
func (r *Repo) ListExpiredTrials(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM contractors
		WHERE stage = 'converted' AND trial_ends_at IS NOT NULL AND trial_ends_at < $1
		ORDER BY trial_ends_at ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired trials: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired trial: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired trials: %w", err)
	}
	return ids, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertActivity(ctx context.Context, activity Activity) (uuid.UUID, bool, error) {
	metadata := activity.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("marshal activity metadata: %w", err)
	}

	var id uuid.UUID
	err = t.tx.QueryRow(ctx, `
		INSERT INTO contractor_activities (contractor_id, signal, activity_day, email_log_id, metadata)
		VALUES ($1, $2, $3::date, $4, $5)
		ON CONFLICT (contractor_id, signal, activity_day) DO NOTHING
		RETURNING id`,
		activity.ContractorID, activity.Signal, activity.Day.UTC().Format(time.DateOnly), activity.EmailLogID, raw,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return uuid.Nil, false, apperr.NotFound("contractor or email log not found").WithOp("pipeline.InsertActivity")
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("insert activity: %w", err)
	}
	return id, true, nil
}

func (t *pgTx) GetState(ctx context.Context, contractorID uuid.UUID) (ContractorState, error) {
	var s ContractorState
	err := t.tx.QueryRow(ctx, `
		SELECT id, stage, score, priority, version, promo_code, trial_started_at, trial_ends_at
		FROM contractors
		WHERE id = $1`, contractorID,
	).Scan(&s.ID, &s.Stage, &s.Score, &s.Priority, &s.Version, &s.PromoCode, &s.TrialStartedAt, &s.TrialEndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ContractorState{}, apperr.NotFound(contractorNotFoundMsg)
	}
	if err != nil {
		return ContractorState{}, fmt.Errorf("get contractor state: %w", err)
	}
	return s, nil
}

func (t *pgTx) UpdateState(ctx context.Context, u StateUpdate) error {
	var trialEnds *time.Time
	if u.StartTrial {
		end := u.At.Add(u.TrialLength)
		trialEnds = &end
	}

	tag, err := t.tx.Exec(ctx, `
		UPDATE contractors SET
			stage = $3,
			score = $4,
			priority = $5,
			trial_started_at = CASE WHEN $6 THEN COALESCE(trial_started_at, $7) ELSE trial_started_at END,
			trial_ends_at = CASE WHEN $6 THEN COALESCE(trial_ends_at, $8) ELSE trial_ends_at END,
			converted_at = CASE WHEN $3 = 'converted' THEN COALESCE(converted_at, $7) ELSE converted_at END,
			version = version + 1,
			updated_at = $7
		WHERE id = $1 AND version = $2`,
		u.ContractorID, u.ExpectedVersion, u.Stage, u.Score, u.Priority, u.StartTrial, u.At, trialEnds,
	)
	if err != nil {
		return fmt.Errorf("update contractor state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (t *pgTx) SetActivityStages(ctx context.Context, activityID uuid.UUID, from, to string) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE contractor_activities SET from_stage = $2, to_stage = $3 WHERE id = $1`,
		activityID, from, to,
	); err != nil {
		return fmt.Errorf("set activity stages: %w", err)
	}
	return nil
}

func (t *pgTx) IncrementPromoUsage(ctx context.Context, code string) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE promo_codes SET usage_count = usage_count + 1 WHERE code = upper($1)`, code,
	); err != nil {
		return fmt.Errorf("increment promo usage: %w", err)
	}
	return nil
}

func (t *pgTx) AdvanceEmailLog(ctx context.Context, emailLogID, contractorID uuid.UUID, status string, at time.Time) error {
	from, ok := emailStatusPredecessors[status]
	if !ok {
		return apperr.Validation("unsupported email status " + status)
	}

	if _, err := t.tx.Exec(ctx, `
		UPDATE email_logs SET
			status = $3,
			opened_at = CASE WHEN $3 IN ('opened', 'clicked') THEN COALESCE(opened_at, $5) ELSE opened_at END,
			clicked_at = CASE WHEN $3 = 'clicked' THEN COALESCE(clicked_at, $5) ELSE clicked_at END
		WHERE id = $1 AND contractor_id = $2 AND status = ANY($4)`,
		emailLogID, contractorID, status, from, at,
	); err != nil {
		return fmt.Errorf("advance email log: %w", err)
	}
	return nil
}
