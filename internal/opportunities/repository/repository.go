package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const opportunityColumns = `id, notice_id, title, solicitation_number, agency, naics_code, set_aside,
	notice_type, description, posted_date, response_deadline, link, active, synced_at`

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new opportunities repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Compile-time check that Repo implements Repository
var _ Repository = (*Repo)(nil)

// DeactivateActive marks active rows inactive in a single statement.
func (r *Repo) DeactivateActive(ctx context.Context, codes []string) (int64, error) {
	if codes == nil {
		tag, err := r.pool.Exec(ctx, `UPDATE opportunities SET active = false, updated_at = now() WHERE active`)
		if err != nil {
			return 0, fmt.Errorf("deactivate opportunities: %w", err)
		}
		return tag.RowsAffected(), nil
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE opportunities SET active = false, updated_at = now()
		WHERE active AND naics_code = ANY($1)`, codes)
	if err != nil {
		return 0, fmt.Errorf("deactivate opportunities by code: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Upsert writes one notice keyed on notice_id. On conflict every displayable
// field is overwritten and the row is forced active.
func (r *Repo) Upsert(ctx context.Context, p UpsertParams) (bool, error) {
	var inserted bool
	err := r.pool.QueryRow(ctx, `
		INSERT INTO opportunities (
			notice_id, title, solicitation_number, agency, naics_code, set_aside,
			notice_type, description, posted_date, response_deadline, link, active, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, true, $12)
		ON CONFLICT (notice_id) DO UPDATE SET
			title = EXCLUDED.title,
			solicitation_number = EXCLUDED.solicitation_number,
			agency = EXCLUDED.agency,
			naics_code = EXCLUDED.naics_code,
			set_aside = EXCLUDED.set_aside,
			notice_type = EXCLUDED.notice_type,
			description = EXCLUDED.description,
			posted_date = EXCLUDED.posted_date,
			response_deadline = EXCLUDED.response_deadline,
			link = EXCLUDED.link,
			active = true,
			synced_at = EXCLUDED.synced_at,
			updated_at = now()
		RETURNING (xmax = 0)`,
		p.NoticeID, p.Title, nullable(p.SolicitationNumber), nullable(p.Agency), nullable(p.NAICSCode),
		nullable(p.SetAside), nullable(p.NoticeType), nullable(p.Description),
		p.PostedDate, p.ResponseDeadline, nullable(p.Link), p.SyncedAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert opportunity %s: %w", p.NoticeID, err)
	}
	return inserted, nil
}

// ActiveCodes lists distinct active classification codes.
func (r *Repo) ActiveCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT naics_code FROM opportunities
		WHERE active AND naics_code IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list active codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan active codes: %w", err)
	}
	return codes, nil
}

// MatchingActive uses the partial code and sector indexes.
func (r *Repo) MatchingActive(ctx context.Context, code string, limit int) ([]Opportunity, error) {
	code = strings.TrimSpace(code)
	if len(code) < 4 {
		return []Opportunity{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE active AND (naics_code = $1 OR left(naics_code, 4) = left($1, 4))
		ORDER BY (naics_code = $1) DESC, response_deadline ASC NULLS LAST, posted_date DESC NULLS LAST
		LIMIT $2`, code, limit)
	if err != nil {
		return nil, fmt.Errorf("match opportunities: %w", err)
	}
	return scanOpportunities(rows)
}

// List returns a page of opportunities and the total match count.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Opportunity, int, error) {
	var classificationParam interface{}
	if c := strings.TrimSpace(params.Classification); c != "" {
		classificationParam = c
	}
	var activeParam interface{}
	if params.Active != nil {
		activeParam = *params.Active
	}

	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM opportunities
		WHERE ($1::text IS NULL OR naics_code = $1 OR left(naics_code, 4) = $1)
			AND ($2::boolean IS NULL OR active = $2)`,
		classificationParam, activeParam,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count opportunities: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE ($1::text IS NULL OR naics_code = $1 OR left(naics_code, 4) = $1)
			AND ($2::boolean IS NULL OR active = $2)
		ORDER BY response_deadline ASC NULLS LAST, posted_date DESC NULLS LAST, notice_id
		LIMIT $3 OFFSET $4`,
		classificationParam, activeParam, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list opportunities: %w", err)
	}
	items, err := scanOpportunities(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func scanOpportunities(rows pgx.Rows) ([]Opportunity, error) {
	defer rows.Close()
	items := make([]Opportunity, 0)
	for rows.Next() {
		var o Opportunity
		if err := rows.Scan(
			&o.ID, &o.NoticeID, &o.Title, &o.SolicitationNumber, &o.Agency, &o.NAICSCode, &o.SetAside,
			&o.NoticeType, &o.Description, &o.PostedDate, &o.ResponseDeadline, &o.Link, &o.Active, &o.SyncedAt,
		); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		items = append(items, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opportunities: %w", err)
	}
	return items, nil
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
