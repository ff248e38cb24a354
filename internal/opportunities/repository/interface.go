package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Opportunity is a cached registry notice.
type Opportunity struct {
	ID                 uuid.UUID  `db:"id"`
	NoticeID           string     `db:"notice_id"`
	Title              string     `db:"title"`
	SolicitationNumber *string    `db:"solicitation_number"`
	Agency             *string    `db:"agency"`
	NAICSCode          *string    `db:"naics_code"`
	SetAside           *string    `db:"set_aside"`
	NoticeType         *string    `db:"notice_type"`
	Description        *string    `db:"description"`
	PostedDate         *time.Time `db:"posted_date"`
	ResponseDeadline   *time.Time `db:"response_deadline"`
	Link               *string    `db:"link"`
	Active             bool       `db:"active"`
	SyncedAt           time.Time  `db:"synced_at"`
}

// UpsertParams is the normalized form of one fetched notice.
type UpsertParams struct {
	NoticeID           string
	Title              string
	SolicitationNumber string
	Agency             string
	NAICSCode          string
	SetAside           string
	NoticeType         string
	Description        string
	PostedDate         *time.Time
	ResponseDeadline   *time.Time
	Link               string
	SyncedAt           time.Time
}

// ListParams filters the public opportunity list.
type ListParams struct {
	Classification string
	Active         *bool
	Offset         int
	Limit          int
}

// Reader provides the indexed read paths.
type Reader interface {
	// ActiveCodes lists the distinct classification codes of active rows.
	ActiveCodes(ctx context.Context) ([]string, error)
	// MatchingActive returns active rows whose code equals code or shares its
	// 4-digit sector, exact matches first.
	MatchingActive(ctx context.Context, code string, limit int) ([]Opportunity, error)
	List(ctx context.Context, params ListParams) ([]Opportunity, int, error)
}

// Writer provides the refresh writes.
type Writer interface {
	// DeactivateActive flips active rows to inactive. A nil codes slice
	// covers every row.
	DeactivateActive(ctx context.Context, codes []string) (int64, error)
	// Upsert inserts or overwrites a notice and reports whether it was new.
	Upsert(ctx context.Context, params UpsertParams) (bool, error)
}

// Repository combines all opportunity repository operations.
type Repository interface {
	Reader
	Writer
}
