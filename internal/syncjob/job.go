// Package syncjob runs registry ingestion passes. One Runner drives both the
// contractor sync and the opportunity refresh; the target-specific work lives
// in a Strategy.
package syncjob

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind names the ingestion target.
type Kind string

const (
	KindContractors   Kind = "contractors"
	KindOpportunities Kind = "opportunities"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindContractors || k == KindOpportunities
}

// Status is the final state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
	StatusCancelled Status = "cancelled"
	// StatusSkipped records a trigger that found another run holding the lock.
	StatusSkipped Status = "skipped"
)

// MaxConsecutiveCodeFailures aborts a run after this many codes in a row
// returned nothing but upstream errors.
const MaxConsecutiveCodeFailures = 3

// Request parameterizes one run.
type Request struct {
	Kind       Kind
	From       *time.Time
	To         *time.Time
	Codes      []string
	MaxRecords int
	// Filtered is true when Codes came from the caller rather than the
	// configured targeting list.
	Filtered bool
}

// CodeResult is what one classification code contributed.
type CodeResult struct {
	Fetched int
	New     int
	Updated int
	Skipped int
	Failed  int
	Raw     []json.RawMessage
}

// CodeError records a code that failed fully or partially.
type CodeError struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Fetched int    `json:"fetched"`

	permanent bool
}

// Summary is the outcome of a run. It is also the sync_runs audit row.
type Summary struct {
	RunID      uuid.UUID   `json:"runId"`
	Kind       Kind        `json:"kind"`
	Status     Status      `json:"status"`
	From       *time.Time  `json:"from,omitempty"`
	To         *time.Time  `json:"to,omitempty"`
	Codes      []string    `json:"codes"`
	Fetched    int         `json:"fetched"`
	New        int         `json:"new"`
	Updated    int         `json:"updated"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Errors     []CodeError `json:"errors"`
	Error      string      `json:"error,omitempty"`
	ArchiveKey string      `json:"archiveKey,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	DurationMs int64       `json:"durationMs"`

	// SucceededCodes lists codes that completed without an upstream error.
	SucceededCodes []string `json:"-"`
}

func (s *Summary) add(r CodeResult) {
	s.Fetched += r.Fetched
	s.New += r.New
	s.Updated += r.Updated
	s.Skipped += r.Skipped
	s.Failed += r.Failed
}

// Strategy is the target-specific half of a run.
type Strategy interface {
	Kind() Kind
	// Begin prepares shared context such as the active market.
	Begin(ctx context.Context, req Request) error
	// IngestCode fetches one code with at most budget records (0 means no
	// limit). A non-nil error alongside a result means a partial code.
	IngestCode(ctx context.Context, code string, req Request, budget int) (CodeResult, error)
	// Finish runs after the last code unless the run was cancelled. It may
	// adjust the summary counts.
	Finish(ctx context.Context, summary *Summary) error
}
