package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"govcon_outreach_backend/platform/apperr"
)

const followUpColumns = `id, contractor_id, email_log_id, label, title, priority, status, due_at, done_at, created_at`

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new outreach repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository
var _ Repository = (*Repo)(nil)

// SelectTargets runs the audience query.
func (r *Repo) SelectTargets(ctx context.Context, sel Selection) ([]Target, error) {
	query, args := BuildTargetQuery(sel)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select campaign targets: %w", err)
	}
	defer rows.Close()

	targets := make([]Target, 0)
	for rows.Next() {
		var t Target
		if err := rows.Scan(
			&t.ContractorID, &t.Email, &t.LegalName, &t.DBAName, &t.ContactName, &t.NAICSCode, &t.State,
			&t.Stage, &t.Score, &t.Priority, &t.PromoCode, &t.ContactAttempts,
			&t.NoticeID, &t.OpportunityTitle, &t.Agency, &t.Link, &t.ResponseDeadline, &t.MatchCount,
		); err != nil {
			return nil, fmt.Errorf("scan campaign target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign targets: %w", err)
	}
	return targets, nil
}

// RecordSent writes the sent log and contact counters in one transaction.
func (r *Repo) RecordSent(ctx context.Context, rec SentRecord) (bool, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin record sent: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO email_logs (
			id, contractor_id, campaign_type, template_name, recipient, subject,
			body_html, body_text, status, provider_message_id, sent_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, 'sent', $9, $10)`,
		rec.LogID, rec.ContractorID, rec.CampaignType, rec.TemplateName, rec.Recipient, rec.Subject,
		rec.HTML, rec.Text, rec.ProviderMessageID, rec.SentAt,
	); err != nil {
		return false, fmt.Errorf("insert sent email log: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE contractors
		SET contact_attempts = contact_attempts + 1, last_contacted_at = $2, updated_at = now()
		WHERE id = $1`, rec.ContractorID, rec.SentAt); err != nil {
		return false, fmt.Errorf("increment contact attempts: %w", err)
	}

	created := false
	if rec.FollowUp != nil {
		tag, err := tx.Exec(ctx, `
			INSERT INTO follow_up_tasks (contractor_id, email_log_id, label, title, priority, status, due_at)
			VALUES ($1, $2, $3, $4, $5, 'pending', $6)
			ON CONFLICT (contractor_id, label) WHERE status IN ('pending', 'overdue') DO NOTHING`,
			rec.ContractorID, rec.LogID, FollowUpLabel, rec.FollowUp.Title, rec.FollowUp.Priority, rec.FollowUp.DueAt,
		)
		if err != nil {
			return false, fmt.Errorf("create follow-up task: %w", err)
		}
		created = tag.RowsAffected() == 1
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit record sent: %w", err)
	}
	return created, nil
}

// RecordFailed writes a failed log row. Contact counters are left alone.
func (r *Repo) RecordFailed(ctx context.Context, rec FailedRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO email_logs (id, contractor_id, campaign_type, template_name, recipient, subject, status, error)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, 'failed', $7)`,
		rec.LogID, rec.ContractorID, rec.CampaignType, rec.TemplateName, rec.Recipient, rec.Subject, rec.Error,
	)
	if err != nil {
		return fmt.Errorf("insert failed email log: %w", err)
	}
	return nil
}

// MarkOverdue flips pending tasks past their due time. Running it twice is a
// no-op the second time.
func (r *Repo) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE follow_up_tasks SET status = 'overdue', updated_at = now()
		WHERE status = 'pending' AND due_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("mark follow-ups overdue: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Complete closes a task. Completing a done task returns it unchanged.
func (r *Repo) Complete(ctx context.Context, id uuid.UUID, now time.Time) (FollowUp, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE follow_up_tasks
		SET status = 'done', done_at = COALESCE(done_at, $2), updated_at = now()
		WHERE id = $1
		RETURNING `+followUpColumns, id, now)
	f, err := scanFollowUp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return FollowUp{}, apperr.NotFound("follow-up task not found")
	}
	if err != nil {
		return FollowUp{}, fmt.Errorf("complete follow-up: %w", err)
	}
	return f, nil
}

// ListOpen returns pending and overdue tasks, oldest due first.
func (r *Repo) ListOpen(ctx context.Context, limit int) ([]FollowUp, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+followUpColumns+` FROM follow_up_tasks
		WHERE status IN ('pending', 'overdue')
		ORDER BY due_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list follow-ups: %w", err)
	}
	defer rows.Close()

	items := make([]FollowUp, 0)
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan follow-up: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow-ups: %w", err)
	}
	return items, nil
}

func scanFollowUp(row pgx.Row) (FollowUp, error) {
	var f FollowUp
	err := row.Scan(&f.ID, &f.ContractorID, &f.EmailLogID, &f.Label, &f.Title, &f.Priority, &f.Status, &f.DueAt, &f.DoneAt, &f.CreatedAt)
	return f, err
}
