// Package service applies engagement signals and sweeps to contractor
// pipeline state. Every write is read-latest then conditional on the row
// version, and duplicate signals for the same contractor and UTC day are
// dropped before any state is touched.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/internal/pipeline/domain"
	"govcon_outreach_backend/internal/pipeline/repository"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
	"govcon_outreach_backend/platform/metrics"
)

const (
	maxVersionRetries = 3
	trialSweepBatch   = 500
)

// Signal is one engagement event or sweep outcome addressed to a contractor.
type Signal struct {
	Kind         domain.Signal
	ContractorID uuid.UUID
	EmailLogID   *uuid.UUID
	PromoCode    string
	OccurredAt   time.Time
	Metadata     map[string]any
}

// Result describes what ApplySignal did.
type Result struct {
	ContractorID uuid.UUID
	From         domain.Stage
	To           domain.Stage
	Score        int
	Priority     string
	Duplicate    bool
	Changed      bool
}

// SweepSummary is returned by scheduled sweeps.
type SweepSummary struct {
	Processed int `json:"processed"`
	Changed   int `json:"changed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Service drives the pipeline state machine.
type Service struct {
	repo        repository.Repository
	bus         events.Bus
	trialLength time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// New creates a pipeline service.
func New(repo repository.Repository, bus events.Bus, cfg config.OutreachConfig, log *logger.Logger) *Service {
	return &Service{
		repo:        repo,
		bus:         bus,
		trialLength: cfg.GetTrialLength(),
		log:         log,
		now:         time.Now,
	}
}

// Resolve finds the contractor a signup or unsubscribe refers to.
func (s *Service) Resolve(ctx context.Context, lookup repository.Lookup) (uuid.UUID, error) {
	return s.repo.ResolveContractor(ctx, lookup)
}

// ApplySignal records signal and moves the contractor accordingly.
// A duplicate within the same UTC day returns Duplicate=true and changes nothing.
func (s *Service) ApplySignal(ctx context.Context, signal Signal) (Result, error) {
	if !signal.Kind.Valid() {
		return Result{}, apperr.Validation("unknown signal " + string(signal.Kind))
	}
	if signal.ContractorID == uuid.Nil {
		return Result{}, apperr.Validation("contractor id is required")
	}
	if signal.OccurredAt.IsZero() {
		signal.OccurredAt = s.now()
	}

	var result Result
	var err error
	for attempt := 1; attempt <= maxVersionRetries; attempt++ {
		result, err = s.applyOnce(ctx, signal)
		if !errors.Is(err, repository.ErrVersionConflict) {
			break
		}
		s.log.Debug("pipeline version conflict, retrying",
			"contractorId", signal.ContractorID, "signal", signal.Kind, "attempt", attempt)
	}
	if errors.Is(err, repository.ErrVersionConflict) {
		metrics.EngagementSignalsTotal.WithLabelValues(string(signal.Kind), "conflict").Inc()
		return Result{}, apperr.Conflict("contractor was modified concurrently").WithOp("pipeline.ApplySignal")
	}
	if err != nil {
		metrics.EngagementSignalsTotal.WithLabelValues(string(signal.Kind), "error").Inc()
		return Result{}, err
	}

	switch {
	case result.Duplicate:
		metrics.EngagementSignalsTotal.WithLabelValues(string(signal.Kind), "duplicate").Inc()
	case result.Changed:
		metrics.EngagementSignalsTotal.WithLabelValues(string(signal.Kind), "applied").Inc()
		s.publish(ctx, signal, result)
	default:
		metrics.EngagementSignalsTotal.WithLabelValues(string(signal.Kind), "noop").Inc()
	}
	return result, nil
}

func (s *Service) applyOnce(ctx context.Context, signal Signal) (Result, error) {
	result := Result{ContractorID: signal.ContractorID}

	err := s.repo.WithTx(ctx, func(tx repository.Tx) error {
		state, err := tx.GetState(ctx, signal.ContractorID)
		if err != nil {
			return err
		}

		activityID, inserted, err := tx.InsertActivity(ctx, repository.Activity{
			ContractorID: signal.ContractorID,
			Signal:       string(signal.Kind),
			Day:          signal.OccurredAt,
			EmailLogID:   signal.EmailLogID,
			Metadata:     signal.Metadata,
		})
		if err != nil {
			return err
		}
		if !inserted {
			result.Duplicate = true
			return nil
		}

		from := domain.Stage(state.Stage)
		outcome := domain.Transition(domain.State{Stage: from, Score: state.Score}, signal.Kind)

		result.From = from
		result.To = outcome.Next
		result.Score = outcome.Score
		result.Priority = string(outcome.Priority)
		result.Changed = outcome.Changed || string(outcome.Priority) != state.Priority

		if result.Changed {
			converting := outcome.Next == domain.StageConverted && outcome.StageChanged(from)
			if err := tx.UpdateState(ctx, repository.StateUpdate{
				ContractorID:    state.ID,
				ExpectedVersion: state.Version,
				Stage:           string(outcome.Next),
				Score:           outcome.Score,
				Priority:        string(outcome.Priority),
				StartTrial:      converting,
				TrialLength:     s.trialLength,
				At:              signal.OccurredAt,
			}); err != nil {
				return err
			}

			if converting {
				if code := promoCodeFor(signal, state); code != "" {
					if err := tx.IncrementPromoUsage(ctx, code); err != nil {
						return err
					}
				}
			}
		}

		if err := tx.SetActivityStages(ctx, activityID, string(from), string(outcome.Next)); err != nil {
			return err
		}

		if signal.EmailLogID != nil {
			if status, ok := signal.Kind.EmailStatus(); ok {
				if err := tx.AdvanceEmailLog(ctx, *signal.EmailLogID, signal.ContractorID, status, signal.OccurredAt); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

// ExpireTrials moves every converted contractor whose trial ended before now
// to churned. Running it twice on the same day is a no-op the second time.
func (s *Service) ExpireTrials(ctx context.Context, now time.Time) (SweepSummary, error) {
	var summary SweepSummary

	ids, err := s.repo.ListExpiredTrials(ctx, now, trialSweepBatch)
	if err != nil {
		return summary, fmt.Errorf("trial sweep: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++

		result, err := s.ApplySignal(ctx, Signal{
			Kind:         domain.SignalTrialExpired,
			ContractorID: id,
			OccurredAt:   now,
		})
		switch {
		case err != nil:
			summary.Failed++
			s.log.Warn("trial expiry failed", "contractorId", id, "error", err)
		case result.Changed:
			summary.Changed++
		default:
			summary.Skipped++
		}
	}

	s.log.Info("trial sweep finished",
		"processed", summary.Processed, "changed", summary.Changed, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func (s *Service) publish(ctx context.Context, signal Signal, result Result) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, events.StageChanged{
		BaseEvent:    events.NewBaseEvent(),
		ContractorID: result.ContractorID,
		Signal:       string(signal.Kind),
		FromStage:    string(result.From),
		ToStage:      string(result.To),
		Score:        result.Score,
		Priority:     result.Priority,
		EmailLogID:   signal.EmailLogID,
	})
}

func promoCodeFor(signal Signal, state repository.ContractorState) string {
	if signal.PromoCode != "" {
		return signal.PromoCode
	}
	if state.PromoCode != nil {
		return *state.PromoCode
	}
	return ""
}
