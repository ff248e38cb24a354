// Package ingest queues engagement signals and applies them to the
// contractor pipeline off the request path.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"govcon_outreach_backend/internal/pipeline/domain"
	pipelinerepo "govcon_outreach_backend/internal/pipeline/repository"
	pipeline "govcon_outreach_backend/internal/pipeline/service"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/logger"
)

// SignalPayload is one queued engagement signal. Signups may arrive with
// only an email, which is resolved when the payload is processed.
type SignalPayload struct {
	Kind         string         `json:"kind"`
	ContractorID *uuid.UUID     `json:"contractorId,omitempty"`
	EmailLogID   *uuid.UUID     `json:"emailLogId,omitempty"`
	Email        string         `json:"email,omitempty"`
	PromoCode    string         `json:"promoCode,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// SignalQueue accepts signals for asynchronous processing.
type SignalQueue interface {
	Enqueue(ctx context.Context, payload SignalPayload) error
}

// Pipeline is the part of the pipeline service the processor drives.
type Pipeline interface {
	Resolve(ctx context.Context, lookup pipelinerepo.Lookup) (uuid.UUID, error)
	ApplySignal(ctx context.Context, signal pipeline.Signal) (pipeline.Result, error)
}

// ErrPermanent marks a signal that will never succeed on retry.
var ErrPermanent = errors.New("signal cannot be applied")

// Processor applies queued signals to the pipeline.
type Processor struct {
	pipeline Pipeline
	log      *logger.Logger
}

// NewProcessor creates a processor.
func NewProcessor(p Pipeline, log *logger.Logger) *Processor {
	return &Processor{pipeline: p, log: log}
}

// Process resolves the contractor and applies the signal. Unknown
// contractors and invalid signals wrap ErrPermanent.
func (p *Processor) Process(ctx context.Context, payload SignalPayload) error {
	id, err := p.resolve(ctx, payload)
	if err != nil {
		return classify(err)
	}

	result, err := p.pipeline.ApplySignal(ctx, pipeline.Signal{
		Kind:         domain.Signal(payload.Kind),
		ContractorID: id,
		EmailLogID:   payload.EmailLogID,
		PromoCode:    payload.PromoCode,
		OccurredAt:   payload.OccurredAt,
		Metadata:     payload.Metadata,
	})
	if err != nil {
		return classify(err)
	}
	if result.Changed {
		p.log.Info("engagement signal applied",
			"contractorId", id, "signal", payload.Kind, "from", result.From, "to", result.To, "score", result.Score)
	}
	return nil
}

func (p *Processor) resolve(ctx context.Context, payload SignalPayload) (uuid.UUID, error) {
	if payload.ContractorID != nil && *payload.ContractorID != uuid.Nil {
		return *payload.ContractorID, nil
	}
	return p.pipeline.Resolve(ctx, pipelinerepo.Lookup{Email: payload.Email, PromoCode: payload.PromoCode})
}

func classify(err error) error {
	if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindValidation) {
		return fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return err
}
