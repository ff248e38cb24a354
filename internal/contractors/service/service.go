// Package service holds the contractor store: the sync-time intake filter,
// rescoring and upsert strategy, and the operator read paths.
package service

import (
	"context"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/contractors/repository"
	"govcon_outreach_backend/internal/contractors/transport"
	"govcon_outreach_backend/platform/logger"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// Service provides contractor reads.
type Service struct {
	repo repository.Reader
	log  *logger.Logger
}

// New creates a contractor service.
func New(repo repository.Reader, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetByID returns a single contractor.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ContractorResponse, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ContractorResponse{}, err
	}
	return toResponse(c), nil
}

// List returns a page of contractors, highest score first.
func (s *Service) List(ctx context.Context, req transport.ListContractorsRequest) (transport.ContractorListResponse, error) {
	page := max(req.Page, 1)
	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Stage:    req.Stage,
		Priority: req.Priority,
		MinScore: req.MinScore,
		Search:   req.Search,
		Offset:   (page - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return transport.ContractorListResponse{}, err
	}

	resp := transport.ContractorListResponse{
		Items:      make([]transport.ContractorResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toResponse(item))
	}
	return resp, nil
}

func toResponse(c repository.Contractor) transport.ContractorResponse {
	return transport.ContractorResponse{
		ID:               c.ID,
		UEI:              c.UEI,
		CAGECode:         c.CAGECode,
		LegalName:        c.LegalName,
		DBAName:          c.DBAName,
		Email:            c.Email,
		ContactName:      c.ContactName,
		Phone:            c.Phone,
		Website:          c.Website,
		City:             c.City,
		State:            c.State,
		NAICSCode:        c.NAICSCode,
		NAICSCodes:       c.NAICSCodes,
		BusinessTypes:    c.BusinessTypes,
		RegistrationDate: c.RegistrationDate,
		Score:            c.Score,
		Priority:         c.Priority,
		Stage:            c.Stage,
		PromoCode:        c.PromoCode,
		TrialStartedAt:   c.TrialStartedAt,
		TrialEndsAt:      c.TrialEndsAt,
		ContactAttempts:  c.ContactAttempts,
		LastContactedAt:  c.LastContactedAt,
		LastSyncedAt:     c.LastSyncedAt,
	}
}
