package transport

import "github.com/google/uuid"

// SignupRequest is the body of POST /track/signup. Either the contractor id
// or the email identifies the contractor.
type SignupRequest struct {
	ContractorID *uuid.UUID `json:"contractorId" validate:"required_without=Email"`
	Email        string     `json:"email" validate:"required_without=ContractorID,omitempty,email,max=254"`
	PromoCode    string     `json:"promoCode" validate:"omitempty,max=32"`
}

// SignupResponse acknowledges a queued signup.
type SignupResponse struct {
	Accepted bool `json:"accepted"`
}
