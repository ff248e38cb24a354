package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contractor is one registered business in the outreach pipeline.
type Contractor struct {
	ID               uuid.UUID  `db:"id"`
	UEI              string     `db:"uei"`
	CAGECode         *string    `db:"cage_code"`
	LegalName        string     `db:"legal_name"`
	DBAName          *string    `db:"dba_name"`
	Email            *string    `db:"email"`
	ContactName      *string    `db:"contact_name"`
	Phone            *string    `db:"phone"`
	Website          *string    `db:"website"`
	City             *string    `db:"city"`
	State            *string    `db:"state"`
	NAICSCode        *string    `db:"naics_code"`
	NAICSCodes       []string   `db:"naics_codes"`
	BusinessTypes    []string   `db:"business_types"`
	RegistrationDate *time.Time `db:"registration_date"`
	ExpirationDate   *time.Time `db:"expiration_date"`
	Score            int        `db:"score"`
	Priority         string     `db:"priority"`
	Stage            string     `db:"stage"`
	PromoCode        *string    `db:"promo_code"`
	TrialStartedAt   *time.Time `db:"trial_started_at"`
	TrialEndsAt      *time.Time `db:"trial_ends_at"`
	ContactAttempts  int        `db:"contact_attempts"`
	LastContactedAt  *time.Time `db:"last_contacted_at"`
	LastSyncedAt     time.Time  `db:"last_synced_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// UpsertParams carries the registry fields of one contractor plus the score
// computed for this sync.
type UpsertParams struct {
	UEI              string
	CAGECode         string
	LegalName        string
	DBAName          string
	Email            string
	ContactName      string
	Phone            string
	Website          string
	City             string
	State            string
	NAICSCode        string
	NAICSCodes       []string
	BusinessTypes    []string
	RegistrationDate *time.Time
	ExpirationDate   *time.Time
	Score            int
	Priority         string
	SyncedAt         time.Time
}

// UpsertResult identifies the written row.
type UpsertResult struct {
	ID       uuid.UUID
	Inserted bool
}

// ListParams filters the operator contractor list.
type ListParams struct {
	Stage    string
	Priority string
	MinScore int
	Search   string
	Offset   int
	Limit    int
}

// Reader provides read access to contractors.
type Reader interface {
	GetByID(ctx context.Context, id uuid.UUID) (Contractor, error)
	List(ctx context.Context, params ListParams) ([]Contractor, int, error)
}

// Writer provides the sync writes.
type Writer interface {
	// Upsert inserts or refreshes a contractor keyed on UEI. New rows start
	// in stage new with a fresh promotional code. Existing rows only get
	// their registry fields and score refreshed; stage, trial window and
	// contact counters are never touched.
	Upsert(ctx context.Context, params UpsertParams) (UpsertResult, error)
	// StoredEmail returns the email kept on the row for uei, or "" when the
	// row does not exist or has none.
	StoredEmail(ctx context.Context, uei string) (string, error)
}

// Repository combines all contractor repository operations.
type Repository interface {
	Reader
	Writer
}
