package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	pipelinerepo "govcon_outreach_backend/internal/pipeline/repository"
	pipeline "govcon_outreach_backend/internal/pipeline/service"
	"govcon_outreach_backend/platform/apperr"
	"govcon_outreach_backend/platform/logger"
)

type fakePipeline struct {
	mu       sync.Mutex
	emails   map[string]uuid.UUID
	applied  []pipeline.Signal
	failures int32
}

func (p *fakePipeline) Resolve(ctx context.Context, lookup pipelinerepo.Lookup) (uuid.UUID, error) {
	if id, ok := p.emails[lookup.Email]; ok {
		return id, nil
	}
	return uuid.Nil, apperr.NotFound("contractor not found")
}

func (p *fakePipeline) ApplySignal(ctx context.Context, signal pipeline.Signal) (pipeline.Result, error) {
	if atomic.AddInt32(&p.failures, -1) >= 0 {
		return pipeline.Result{}, errors.New("connection reset")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applied = append(p.applied, signal)
	return pipeline.Result{ContractorID: signal.ContractorID, Changed: true}, nil
}

func (p *fakePipeline) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.applied)
}

func TestProcessResolvesByEmail(t *testing.T) {
	id := uuid.New()
	fake := &fakePipeline{emails: map[string]uuid.UUID{"owner@acme.example": id}}
	proc := NewProcessor(fake, logger.New("development"))

	err := proc.Process(context.Background(), SignalPayload{Kind: "signup", Email: "owner@acme.example", PromoCode: "GC-ABCD2345"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(fake.applied) != 1 || fake.applied[0].ContractorID != id || fake.applied[0].PromoCode != "GC-ABCD2345" {
		t.Fatalf("unexpected applied signals %+v", fake.applied)
	}
}

func TestProcessUnknownContractorIsPermanent(t *testing.T) {
	proc := NewProcessor(&fakePipeline{}, logger.New("development"))

	err := proc.Process(context.Background(), SignalPayload{Kind: "signup", Email: "nobody@example.com"})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}

func TestLocalQueueRetriesTransientFailures(t *testing.T) {
	fake := &fakePipeline{failures: 2}
	q := NewLocalQueue(NewProcessor(fake, logger.New("development")), 1, 8, logger.New("development"))
	q.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}

	id := uuid.New()
	if err := q.Enqueue(context.Background(), SignalPayload{Kind: "open", ContractorID: &id}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Close()

	if fake.count() != 1 {
		t.Fatalf("expected signal applied after retries, got %d", fake.count())
	}
	if err := q.Enqueue(context.Background(), SignalPayload{Kind: "open", ContractorID: &id}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected closed error, got %v", err)
	}
}

func TestLocalQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})
	fake := &blockingPipeline{release: block}
	q := NewLocalQueue(NewProcessor(fake, logger.New("development")), 1, 1, logger.New("development"))
	defer func() {
		close(block)
		q.Close()
	}()

	id := uuid.New()
	payload := SignalPayload{Kind: "open", ContractorID: &id}
	var full bool
	for i := 0; i < 3; i++ {
		if errors.Is(q.Enqueue(context.Background(), payload), ErrQueueFull) {
			full = true
		}
	}
	if !full {
		t.Fatal("expected the queue to report full")
	}
}

type blockingPipeline struct {
	release chan struct{}
}

func (b *blockingPipeline) Resolve(ctx context.Context, lookup pipelinerepo.Lookup) (uuid.UUID, error) {
	return uuid.Nil, apperr.NotFound("contractor not found")
}

func (b *blockingPipeline) ApplySignal(ctx context.Context, signal pipeline.Signal) (pipeline.Result, error) {
	<-b.release
	return pipeline.Result{}, nil
}
