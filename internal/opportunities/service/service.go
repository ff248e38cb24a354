// Package service is the read side of the opportunity cache: the paginated
// public list and the indexed lookups used by scoring and targeting.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"govcon_outreach_backend/internal/opportunities/repository"
	"govcon_outreach_backend/internal/opportunities/transport"
	"govcon_outreach_backend/internal/scoring"
	"govcon_outreach_backend/platform/logger"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	defaultMatchLimit = 10
)

// Service provides opportunity reads.
type Service struct {
	repo  repository.Reader
	cache ListCache
	log   *logger.Logger
}

// New creates an opportunity service. cache may be nil.
func New(repo repository.Reader, cache ListCache, log *logger.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// List returns a page of opportunities, served from the cache when possible.
// Active defaults to true.
func (s *Service) List(ctx context.Context, req transport.ListOpportunitiesRequest) (transport.OpportunityListResponse, error) {
	page := req.Page
	pageSize := req.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	key := fmt.Sprintf("list:%s:%s:%d:%d", req.Classification, strconv.FormatBool(active), page, pageSize)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	items, total, err := s.repo.List(ctx, repository.ListParams{
		Classification: req.Classification,
		Active:         &active,
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	})
	if err != nil {
		return transport.OpportunityListResponse{}, err
	}

	resp := transport.OpportunityListResponse{
		Items:      make([]transport.OpportunityResponse, 0, len(items)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toResponse(item))
	}

	s.toCache(ctx, key, resp)
	return resp, nil
}

// Market builds the scoring context from the currently active codes.
func (s *Service) Market(ctx context.Context, asOf time.Time) (scoring.Market, error) {
	codes, err := s.repo.ActiveCodes(ctx)
	if err != nil {
		return scoring.Market{}, err
	}
	return scoring.NewMarket(codes, asOf), nil
}

// Matching returns active opportunities for a classification code, exact
// matches first. It reads the table directly and is not cached.
func (s *Service) Matching(ctx context.Context, req transport.MatchingOpportunitiesRequest) (transport.MatchingOpportunitiesResponse, error) {
	limit := req.Limit
	if limit < 1 {
		limit = defaultMatchLimit
	}
	code := strings.TrimSpace(req.Code)
	items, err := s.repo.MatchingActive(ctx, code, limit)
	if err != nil {
		return transport.MatchingOpportunitiesResponse{}, err
	}

	resp := transport.MatchingOpportunitiesResponse{Code: code, Items: make([]transport.OpportunityResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, toResponse(item))
	}
	return resp, nil
}

// InvalidateCache drops every cached list page.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn("opportunity cache invalidation failed", "error", err)
	}
}

func (s *Service) fromCache(ctx context.Context, key string) (transport.OpportunityListResponse, bool) {
	if s.cache == nil {
		return transport.OpportunityListResponse{}, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("opportunity cache read failed", "key", key, "error", err)
		return transport.OpportunityListResponse{}, false
	}
	if !ok {
		return transport.OpportunityListResponse{}, false
	}
	var resp transport.OpportunityListResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return transport.OpportunityListResponse{}, false
	}
	return resp, true
}

func (s *Service) toCache(ctx context.Context, key string, resp transport.OpportunityListResponse) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.log.Warn("opportunity cache write failed", "key", key, "error", err)
	}
}

func toResponse(o repository.Opportunity) transport.OpportunityResponse {
	return transport.OpportunityResponse{
		ID:                 o.ID,
		NoticeID:           o.NoticeID,
		Title:              o.Title,
		SolicitationNumber: o.SolicitationNumber,
		Agency:             o.Agency,
		NAICSCode:          o.NAICSCode,
		SetAside:           o.SetAside,
		NoticeType:         o.NoticeType,
		Description:        o.Description,
		PostedDate:         o.PostedDate,
		ResponseDeadline:   o.ResponseDeadline,
		Link:               o.Link,
		Active:             o.Active,
		SyncedAt:           o.SyncedAt,
	}
}
