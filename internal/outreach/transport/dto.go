package transport

import (
	"time"

	"github.com/google/uuid"
)

// SelectionRequest narrows the campaign audience.
type SelectionRequest struct {
	Stages          []string    `json:"stages" validate:"omitempty,max=4,dive,oneof=new contacted engaged hot"`
	Classifications []string    `json:"classifications" validate:"omitempty,max=50,dive,naics"`
	MinScore        int         `json:"minScore" validate:"min=0,max=100"`
	Priority        string      `json:"priority" validate:"omitempty,oneof=low medium high"`
	ContractorIDs   []uuid.UUID `json:"contractorIds" validate:"omitempty,max=1000"`
	Limit           int         `json:"limit" validate:"min=0,max=5000"`
}

// InlineTemplate is a one-off message template.
type InlineTemplate struct {
	Subject string `json:"subject" validate:"required,max=300"`
	HTML    string `json:"html" validate:"required,max=100000"`
	Text    string `json:"text" validate:"max=100000"`
}

// SendCampaignRequest is the body of POST /campaigns/send. Without an inline
// template the named template is used; without a name the campaign type
// doubles as the template name.
type SendCampaignRequest struct {
	CampaignType string           `json:"campaignType" validate:"required,max=64"`
	TemplateName string           `json:"templateName" validate:"omitempty,max=64"`
	Template     *InlineTemplate  `json:"template"`
	Selection    SelectionRequest `json:"selection"`
	Batch        bool             `json:"batch"`

	// RequestedBy is the operator who triggered the send; set from the token.
	RequestedBy uuid.UUID `json:"-"`
}

// RecipientFailure is one recipient the provider did not accept.
type RecipientFailure struct {
	ContractorID uuid.UUID `json:"contractorId"`
	Error        string    `json:"error"`
}

// CampaignSummary reports what a send did.
type CampaignSummary struct {
	CampaignType     string             `json:"campaignType"`
	TemplateName     string             `json:"templateName"`
	Selected         int                `json:"selected"`
	Sent             int                `json:"sent"`
	Skipped          int                `json:"skipped"`
	Failed           int                `json:"failed"`
	FollowUpsCreated int                `json:"followUpsCreated"`
	Cancelled        bool               `json:"cancelled"`
	Failures         []RecipientFailure `json:"failures,omitempty"`
	DurationMs       int64              `json:"durationMs"`
}

// SweepResponse reports a follow-up sweep.
type SweepResponse struct {
	MarkedOverdue int64     `json:"markedOverdue"`
	RanAt         time.Time `json:"ranAt"`
}

// FollowUpResponse is one follow-up task.
type FollowUpResponse struct {
	ID           uuid.UUID  `json:"id"`
	ContractorID uuid.UUID  `json:"contractorId"`
	EmailLogID   *uuid.UUID `json:"emailLogId,omitempty"`
	Label        string     `json:"label"`
	Title        string     `json:"title"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	DueAt        time.Time  `json:"dueAt"`
	DoneAt       *time.Time `json:"doneAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// ListFollowUpsRequest holds the GET /follow-ups query.
type ListFollowUpsRequest struct {
	Limit int `form:"limit" validate:"min=0,max=500"`
}
