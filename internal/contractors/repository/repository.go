package repository

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"govcon_outreach_backend/platform/apperr"
)

const (
	contractorNotFoundMsg = "contractor not found"
	promoConstraint       = "idx_contractors_promo_code"
	promoAttempts         = 3
	promoAlphabet         = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	promoLength           = 8
	promoPrefix           = "GC-"
)

const contractorColumns = `id, uei, cage_code, legal_name, dba_name, email, contact_name, phone, website,
	city, state, naics_code, naics_codes, business_types, registration_date, expiration_date,
	score, priority, stage, promo_code, trial_started_at, trial_ends_at, contact_attempts,
	last_contacted_at, last_synced_at, created_at, updated_at`

// Repo implements Repository on PostgreSQL.
type Repo struct {
	pool      *pgxpool.Pool
	promoCode func() (string, error)
}

// New creates a new contractor repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool, promoCode: GeneratePromoCode}
}

// Compile-time check that Repo implements Repository
var _ Repository = (*Repo)(nil)

// GeneratePromoCode returns a random code such as GC-7KQ2M9XD. Ambiguous
// characters (0/O, 1/I) are left out of the alphabet.
func GeneratePromoCode() (string, error) {
	b := make([]byte, promoLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate promo code: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(promoPrefix)
	for _, v := range b {
		sb.WriteByte(promoAlphabet[int(v)%len(promoAlphabet)])
	}
	return sb.String(), nil
}

// Upsert writes one contractor keyed on uei. A promo code collision on insert
// is retried with a fresh code.
func (r *Repo) Upsert(ctx context.Context, p UpsertParams) (UpsertResult, error) {
	var lastErr error
	for range promoAttempts {
		code, err := r.promoCode()
		if err != nil {
			return UpsertResult{}, err
		}
		result, err := r.upsertOnce(ctx, p, code)
		if err == nil {
			return result, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == promoConstraint {
			lastErr = err
			continue
		}
		return UpsertResult{}, err
	}
	return UpsertResult{}, fmt.Errorf("upsert contractor %s: promo code collisions: %w", p.UEI, lastErr)
}

func (r *Repo) upsertOnce(ctx context.Context, p UpsertParams, promoCode string) (UpsertResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin contractor upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	naicsCodes := p.NAICSCodes
	if naicsCodes == nil {
		naicsCodes = []string{}
	}
	businessTypes := p.BusinessTypes
	if businessTypes == nil {
		businessTypes = []string{}
	}

	// Converted rows keep the forced conversion score; every other row takes
	// the score computed for this sync. The version bump makes concurrent
	// pipeline writers re-read.
	var result UpsertResult
	err = tx.QueryRow(ctx, `
		INSERT INTO contractors (
			uei, cage_code, legal_name, dba_name, email, contact_name, phone, website, city, state,
			naics_code, naics_codes, business_types, registration_date, expiration_date,
			score, priority, stage, promo_code, last_synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, 'new', $18, $19)
		ON CONFLICT (uei) DO UPDATE SET
			cage_code = EXCLUDED.cage_code,
			legal_name = EXCLUDED.legal_name,
			dba_name = EXCLUDED.dba_name,
			email = COALESCE(EXCLUDED.email, contractors.email),
			contact_name = COALESCE(EXCLUDED.contact_name, contractors.contact_name),
			phone = COALESCE(EXCLUDED.phone, contractors.phone),
			website = EXCLUDED.website,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			naics_code = EXCLUDED.naics_code,
			naics_codes = EXCLUDED.naics_codes,
			business_types = EXCLUDED.business_types,
			registration_date = EXCLUDED.registration_date,
			expiration_date = EXCLUDED.expiration_date,
			score = CASE WHEN contractors.stage = 'converted' THEN contractors.score ELSE EXCLUDED.score END,
			priority = CASE WHEN contractors.stage = 'converted' THEN contractors.priority ELSE EXCLUDED.priority END,
			last_synced_at = EXCLUDED.last_synced_at,
			version = contractors.version + 1,
			updated_at = now()
		RETURNING id, (xmax = 0)`,
		p.UEI, nullable(p.CAGECode), p.LegalName, nullable(p.DBAName), nullable(p.Email),
		nullable(p.ContactName), nullable(p.Phone), nullable(p.Website), nullable(p.City), nullable(p.State),
		nullable(p.NAICSCode), naicsCodes, businessTypes, p.RegistrationDate, p.ExpirationDate,
		p.Score, p.Priority, promoCode, p.SyncedAt,
	).Scan(&result.ID, &result.Inserted)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert contractor %s: %w", p.UEI, err)
	}

	if result.Inserted {
		if _, err := tx.Exec(ctx, `
			INSERT INTO promo_codes (code, contractor_id) VALUES ($1, $2)
			ON CONFLICT (code) DO NOTHING`, promoCode, result.ID); err != nil {
			return UpsertResult{}, fmt.Errorf("create promo code for %s: %w", p.UEI, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit contractor upsert: %w", err)
	}
	return result, nil
}

// GetByID returns one contractor.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Contractor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractorColumns+` FROM contractors WHERE id = $1`, id)
	c, err := scanContractor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contractor{}, apperr.NotFound(contractorNotFoundMsg)
	}
	if err != nil {
		return Contractor{}, fmt.Errorf("get contractor: %w", err)
	}
	return c, nil
}

// StoredEmail implements Writer.
func (r *Repo) StoredEmail(ctx context.Context, uei string) (string, error) {
	var email *string
	err := r.pool.QueryRow(ctx, `SELECT email FROM contractors WHERE uei = $1`, strings.ToUpper(strings.TrimSpace(uei))).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get stored email for %s: %w", uei, err)
	}
	if email == nil {
		return "", nil
	}
	return *email, nil
}

// List returns a page of contractors ordered by score.
func (r *Repo) List(ctx context.Context, params ListParams) ([]Contractor, int, error) {
	var stageParam, priorityParam, searchParam interface{}
	if params.Stage != "" {
		stageParam = params.Stage
	}
	if params.Priority != "" {
		priorityParam = params.Priority
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		searchParam = "%" + s + "%"
	}

	where := `WHERE ($1::text IS NULL OR stage = $1)
			AND ($2::text IS NULL OR priority = $2)
			AND score >= $3
			AND ($4::text IS NULL OR legal_name ILIKE $4 OR uei ILIKE $4 OR email ILIKE $4)`

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM contractors `+where,
		stageParam, priorityParam, params.MinScore, searchParam,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contractors: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+contractorColumns+` FROM contractors `+where+`
		ORDER BY score DESC, last_synced_at DESC
		LIMIT $5 OFFSET $6`,
		stageParam, priorityParam, params.MinScore, searchParam, params.Limit, params.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list contractors: %w", err)
	}
	defer rows.Close()

	items := make([]Contractor, 0)
	for rows.Next() {
		c, err := scanContractor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contractor: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contractors: %w", err)
	}
	return items, total, nil
}

func scanContractor(row pgx.Row) (Contractor, error) {
	var c Contractor
	err := row.Scan(
		&c.ID, &c.UEI, &c.CAGECode, &c.LegalName, &c.DBAName, &c.Email, &c.ContactName, &c.Phone, &c.Website,
		&c.City, &c.State, &c.NAICSCode, &c.NAICSCodes, &c.BusinessTypes, &c.RegistrationDate, &c.ExpirationDate,
		&c.Score, &c.Priority, &c.Stage, &c.PromoCode, &c.TrialStartedAt, &c.TrialEndsAt, &c.ContactAttempts,
		&c.LastContactedAt, &c.LastSyncedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
