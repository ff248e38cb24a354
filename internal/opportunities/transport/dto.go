package transport

import (
	"time"

	"github.com/google/uuid"
)

// ListOpportunitiesRequest holds the GET /opportunities query.
type ListOpportunitiesRequest struct {
	Classification string `form:"classification" validate:"omitempty,numeric,min=4,max=6"`
	Active         *bool  `form:"active"`
	Page           int    `form:"page" validate:"omitempty,min=1"`
	PageSize       int    `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

// MatchingOpportunitiesRequest holds the GET /opportunities/matching query.
type MatchingOpportunitiesRequest struct {
	Code  string `form:"code" validate:"required,naics"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=50"`
}

// MatchingOpportunitiesResponse lists active notices for one code, exact
// matches first.
type MatchingOpportunitiesResponse struct {
	Code  string                `json:"code"`
	Items []OpportunityResponse `json:"items"`
}

// OpportunityResponse is one notice in API responses.
type OpportunityResponse struct {
	ID                 uuid.UUID  `json:"id"`
	NoticeID           string     `json:"noticeId"`
	Title              string     `json:"title"`
	SolicitationNumber *string    `json:"solicitationNumber,omitempty"`
	Agency             *string    `json:"agency,omitempty"`
	NAICSCode          *string    `json:"naicsCode,omitempty"`
	SetAside           *string    `json:"setAside,omitempty"`
	NoticeType         *string    `json:"noticeType,omitempty"`
	Description        *string    `json:"description,omitempty"`
	PostedDate         *time.Time `json:"postedDate,omitempty"`
	ResponseDeadline   *time.Time `json:"responseDeadline,omitempty"`
	Link               *string    `json:"link,omitempty"`
	Active             bool       `json:"active"`
	SyncedAt           time.Time  `json:"syncedAt"`
}

// OpportunityListResponse is a page of notices.
type OpportunityListResponse struct {
	Items      []OpportunityResponse `json:"items"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"pageSize"`
	TotalPages int                   `json:"totalPages"`
}
