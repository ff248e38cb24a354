package syncjob

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultHistoryLimit = 20

// RunRepo stores sync_runs rows in PostgreSQL.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo creates a sync run repository.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Compile-time check that RunRepo implements RunStore
var _ RunStore = (*RunRepo)(nil)

// Insert writes one audit row.
func (r *RunRepo) Insert(ctx context.Context, s Summary) error {
	codeErrors, err := json.Marshal(s.Errors)
	if err != nil {
		return fmt.Errorf("marshal code errors: %w", err)
	}

	var errText, archiveKey *string
	if s.Error != "" {
		errText = &s.Error
	}
	if s.ArchiveKey != "" {
		archiveKey = &s.ArchiveKey
	}
	codes := s.Codes
	if codes == nil {
		codes = []string{}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO sync_runs (
			id, kind, status, window_from, window_to, codes,
			fetched, new_count, updated_count, skipped, failed,
			code_errors, error, archive_key, started_at, finished_at, duration_ms
		) VALUES ($1, $2, $3, $4::date, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.RunID, string(s.Kind), string(s.Status), dateOnly(s.From), dateOnly(s.To), codes,
		s.Fetched, s.New, s.Updated, s.Skipped, s.Failed,
		codeErrors, errText, archiveKey, s.StartedAt, s.FinishedAt, s.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

// List returns the most recent runs, newest first. An empty kind lists all.
func (r *RunRepo) List(ctx context.Context, kind Kind, limit int) ([]Summary, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultHistoryLimit
	}
	var kindParam interface{}
	if kind != "" {
		kindParam = string(kind)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, kind, status, window_from, window_to, codes,
			fetched, new_count, updated_count, skipped, failed,
			code_errors, COALESCE(error, ''), COALESCE(archive_key, ''),
			started_at, finished_at, COALESCE(duration_ms, 0)
		FROM sync_runs
		WHERE ($1::text IS NULL OR kind = $1)
		ORDER BY started_at DESC
		LIMIT $2`, kindParam, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		var kindText, statusText string
		var codeErrors []byte
		var finished *time.Time
		if err := rows.Scan(
			&s.RunID, &kindText, &statusText, &s.From, &s.To, &s.Codes,
			&s.Fetched, &s.New, &s.Updated, &s.Skipped, &s.Failed,
			&codeErrors, &s.Error, &s.ArchiveKey,
			&s.StartedAt, &finished, &s.DurationMs,
		); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		s.Kind = Kind(kindText)
		s.Status = Status(statusText)
		if finished != nil {
			s.FinishedAt = *finished
		}
		if err := json.Unmarshal(codeErrors, &s.Errors); err != nil {
			return nil, fmt.Errorf("decode code errors: %w", err)
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync runs: %w", err)
	}
	return runs, nil
}

func dateOnly(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(time.DateOnly)
	return &v
}
