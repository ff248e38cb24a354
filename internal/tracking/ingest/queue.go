package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"govcon_outreach_backend/platform/logger"
)

const (
	defaultQueueSize    = 1024
	defaultQueueWorkers = 4
	localMaxRetries     = 5
	localRetryBase      = 250 * time.Millisecond
)

var (
	// ErrQueueFull is returned when the local queue cannot take more signals.
	ErrQueueFull   = errors.New("signal queue is full")
	ErrQueueClosed = errors.New("signal queue is closed")
)

// LocalQueue processes signals in-process on a bounded worker pool. It is
// used when no Redis task queue is configured; queued signals are lost on
// restart.
type LocalQueue struct {
	processor *Processor
	log       *logger.Logger
	jobs      chan SignalPayload
	backoff   func() retry.Backoff

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewLocalQueue starts workers goroutines draining a queue of size capacity.
func NewLocalQueue(processor *Processor, workers, capacity int, log *logger.Logger) *LocalQueue {
	if workers < 1 {
		workers = defaultQueueWorkers
	}
	if capacity < 1 {
		capacity = defaultQueueSize
	}
	q := &LocalQueue{
		processor: processor,
		log:       log,
		jobs:      make(chan SignalPayload, capacity),
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(localMaxRetries, retry.NewExponential(localRetryBase))
		},
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// Enqueue hands payload to the pool without blocking.
func (q *LocalQueue) Enqueue(ctx context.Context, payload SignalPayload) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting signals, drains what is queued and waits for the
// workers to exit.
func (q *LocalQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *LocalQueue) run() {
	defer q.wg.Done()
	for payload := range q.jobs {
		q.process(payload)
	}
}

func (q *LocalQueue) process(payload SignalPayload) {
	// Draining after Close still gets a bounded attempt.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := retry.Do(ctx, q.backoff(), func(ctx context.Context) error {
		err := q.processor.Process(ctx, payload)
		if err == nil || errors.Is(err, ErrPermanent) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		q.log.Warn("engagement signal dropped", "signal", payload.Kind, "contractorId", payload.ContractorID, "error", err)
	}
}
