package transport

import (
	"time"

	"github.com/google/uuid"
)

// ListContractorsRequest holds the GET /contractors query.
type ListContractorsRequest struct {
	Stage    string `form:"stage" validate:"omitempty,oneof=new contacted engaged hot converted churned unsubscribed"`
	Priority string `form:"priority" validate:"omitempty,oneof=low medium high"`
	MinScore int    `form:"minScore" validate:"min=0,max=100"`
	Search   string `form:"search" validate:"max=100"`
	Page     int    `form:"page" validate:"min=0"`
	PageSize int    `form:"pageSize" validate:"min=0,max=100"`
}

// ContractorResponse is the operator view of a contractor.
type ContractorResponse struct {
	ID               uuid.UUID  `json:"id"`
	UEI              string     `json:"uei"`
	CAGECode         *string    `json:"cageCode,omitempty"`
	LegalName        string     `json:"legalName"`
	DBAName          *string    `json:"dbaName,omitempty"`
	Email            *string    `json:"email,omitempty"`
	ContactName      *string    `json:"contactName,omitempty"`
	Phone            *string    `json:"phone,omitempty"`
	Website          *string    `json:"website,omitempty"`
	City             *string    `json:"city,omitempty"`
	State            *string    `json:"state,omitempty"`
	NAICSCode        *string    `json:"naicsCode,omitempty"`
	NAICSCodes       []string   `json:"naicsCodes"`
	BusinessTypes    []string   `json:"businessTypes"`
	RegistrationDate *time.Time `json:"registrationDate,omitempty"`
	Score            int        `json:"score"`
	Priority         string     `json:"priority"`
	Stage            string     `json:"stage"`
	PromoCode        *string    `json:"promoCode,omitempty"`
	TrialStartedAt   *time.Time `json:"trialStartedAt,omitempty"`
	TrialEndsAt      *time.Time `json:"trialEndsAt,omitempty"`
	ContactAttempts  int        `json:"contactAttempts"`
	LastContactedAt  *time.Time `json:"lastContactedAt,omitempty"`
	LastSyncedAt     time.Time  `json:"lastSyncedAt"`
}

// ContractorListResponse is a page of contractors.
type ContractorListResponse struct {
	Items      []ContractorResponse `json:"items"`
	Total      int                  `json:"total"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
}
