package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Follow-up task statuses.
const (
	FollowUpPending = "pending"
	FollowUpOverdue = "overdue"
	FollowUpDone    = "done"
)

// FollowUpLabel is the label of the task created after a batch send. At most
// one open task per contractor and label exists.
const FollowUpLabel = "outreach_follow_up"

// Selection narrows the campaign audience. The exclusions that always apply
// (terminal or converted stage, no email, inside the cool-down, no matching
// active opportunity) are not optional.
type Selection struct {
	Stages        []string
	CodePrefixes  []string
	MinScore      int
	Priority      string
	ContractorIDs []uuid.UUID
	// ContactedBefore excludes contractors contacted at or after this time.
	ContactedBefore time.Time
	Limit           int
}

// Target is one selected recipient with its best matching opportunity.
type Target struct {
	ContractorID     uuid.UUID
	Email            string
	LegalName        string
	DBAName          *string
	ContactName      *string
	NAICSCode        *string
	State            *string
	Stage            string
	Score            int
	Priority         string
	PromoCode        *string
	ContactAttempts  int
	NoticeID         string
	OpportunityTitle string
	Agency           *string
	Link             *string
	ResponseDeadline *time.Time
	MatchCount       int
}

// FollowUpParams creates a follow-up task alongside a sent email.
type FollowUpParams struct {
	Title    string
	Priority string
	DueAt    time.Time
}

// SentRecord is a delivered message.
type SentRecord struct {
	LogID             uuid.UUID
	ContractorID      uuid.UUID
	CampaignType      string
	TemplateName      string
	Recipient         string
	Subject           string
	HTML              string
	Text              string
	ProviderMessageID string
	SentAt            time.Time
	FollowUp          *FollowUpParams
}

// FailedRecord is a message the provider did not accept.
type FailedRecord struct {
	LogID        uuid.UUID
	ContractorID uuid.UUID
	CampaignType string
	TemplateName string
	Recipient    string
	Subject      string
	Error        string
}

// FollowUp is an operator follow-up task.
type FollowUp struct {
	ID           uuid.UUID  `db:"id"`
	ContractorID uuid.UUID  `db:"contractor_id"`
	EmailLogID   *uuid.UUID `db:"email_log_id"`
	Label        string     `db:"label"`
	Title        string     `db:"title"`
	Priority     string     `db:"priority"`
	Status       string     `db:"status"`
	DueAt        time.Time  `db:"due_at"`
	DoneAt       *time.Time `db:"done_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// TargetReader selects campaign audiences.
type TargetReader interface {
	SelectTargets(ctx context.Context, sel Selection) ([]Target, error)
}

// LogWriter records send outcomes.
type LogWriter interface {
	// RecordSent writes the sent email log, bumps the contractor's contact
	// counters and, when requested, opens a follow-up task unless one is
	// already open. It reports whether a task was created.
	RecordSent(ctx context.Context, rec SentRecord) (bool, error)
	RecordFailed(ctx context.Context, rec FailedRecord) error
}

// FollowUpStore manages follow-up tasks.
type FollowUpStore interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
	Complete(ctx context.Context, id uuid.UUID, now time.Time) (FollowUp, error)
	ListOpen(ctx context.Context, limit int) ([]FollowUp, error)
}

// Repository combines all outreach repository operations.
type Repository interface {
	TargetReader
	LogWriter
	FollowUpStore
}
