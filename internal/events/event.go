// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"govcon_outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Pipeline Domain Events
// =============================================================================

// StageChanged is published after a contractor's pipeline stage or score moved.
type StageChanged struct {
	BaseEvent
	ContractorID uuid.UUID  `json:"contractorId"`
	Signal       string     `json:"signal"`
	FromStage    string     `json:"fromStage"`
	ToStage      string     `json:"toStage"`
	Score        int        `json:"score"`
	Priority     string     `json:"priority"`
	EmailLogID   *uuid.UUID `json:"emailLogId,omitempty"`
}

func (e StageChanged) EventName() string { return "pipeline.stage.changed" }

// =============================================================================
// Outreach Domain Events
// =============================================================================

// CampaignSent is published once per dispatched campaign batch.
type CampaignSent struct {
	BaseEvent
	CampaignType string `json:"campaignType"`
	TemplateName string `json:"templateName"`
	Sent         int    `json:"sent"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
}

func (e CampaignSent) EventName() string { return "outreach.campaign.sent" }

// =============================================================================
// Sync Domain Events
// =============================================================================

// SyncCompleted is published when a sync run has written its audit record.
type SyncCompleted struct {
	BaseEvent
	RunID    uuid.UUID     `json:"runId"`
	Kind     string        `json:"kind"`
	Status   string        `json:"status"`
	Fetched  int           `json:"fetched"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Duration time.Duration `json:"durationNs"`
}

func (e SyncCompleted) EventName() string { return "sync.run.completed" }
