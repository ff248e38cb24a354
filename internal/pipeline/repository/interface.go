package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrVersionConflict is returned when a conditional state write lost a race.
var ErrVersionConflict = errors.New("contractor version changed")

// ContractorState is the latest persisted pipeline state of a contractor.
type ContractorState struct {
	ID             uuid.UUID
	Stage          string
	Score          int
	Priority       string
	Version        int64
	PromoCode      *string
	TrialStartedAt *time.Time
	TrialEndsAt    *time.Time
}

// Activity is one recorded engagement signal. The (contractor, signal, day)
// triple is unique.
type Activity struct {
	ContractorID uuid.UUID
	Signal       string
	Day          time.Time
	EmailLogID   *uuid.UUID
	Metadata     map[string]any
}

// StateUpdate is a conditional write against ExpectedVersion.
type StateUpdate struct {
	ContractorID    uuid.UUID
	ExpectedVersion int64
	Stage           string
	Score           int
	Priority        string
	// StartTrial opens a trial window of TrialLength unless one exists.
	StartTrial  bool
	TrialLength time.Duration
	At          time.Time
}

// Lookup resolves a contractor from whatever an inbound signal carried.
type Lookup struct {
	ContractorID *uuid.UUID
	Email        string
	PromoCode    string
}

// Tx is the set of writes performed atomically for one signal.
type Tx interface {
	// InsertActivity returns inserted=false when an equivalent activity exists.
	InsertActivity(ctx context.Context, activity Activity) (id uuid.UUID, inserted bool, err error)
	GetState(ctx context.Context, contractorID uuid.UUID) (ContractorState, error)
	UpdateState(ctx context.Context, update StateUpdate) error
	SetActivityStages(ctx context.Context, activityID uuid.UUID, from, to string) error
	IncrementPromoUsage(ctx context.Context, code string) error
	AdvanceEmailLog(ctx context.Context, emailLogID, contractorID uuid.UUID, status string, at time.Time) error
}

// Repository is the persistence boundary of the pipeline state machine.
type Repository interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	ResolveContractor(ctx context.Context, lookup Lookup) (uuid.UUID, error)
	ListExpiredTrials(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
