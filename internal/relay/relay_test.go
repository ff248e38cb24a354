package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"govcon_outreach_backend/internal/events"
	platformevents "govcon_outreach_backend/platform/events"
	"govcon_outreach_backend/platform/logger"
)

type memoryWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *memoryWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func TestRelayForwardsSubscribedEvents(t *testing.T) {
	log := logger.New("development")
	bus := platformevents.NewInMemoryBus(log)
	writer := &memoryWriter{}
	NewWithWriter(writer, log).Subscribe(bus)

	contractorID := uuid.New()
	if err := bus.PublishSync(context.Background(), events.StageChanged{
		BaseEvent:    events.NewBaseEvent(),
		ContractorID: contractorID,
		Signal:       "click",
		FromStage:    "contacted",
		ToStage:      "engaged",
		Score:        72,
		Priority:     "high",
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(writer.msgs) != 1 {
		t.Fatalf("expected one record, got %d", len(writer.msgs))
	}
	msg := writer.msgs[0]
	if string(msg.Key) != contractorID.String() {
		t.Fatalf("unexpected key %q", msg.Key)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var payload events.StageChanged
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if env.Name != "pipeline.stage.changed" || payload.ToStage != "engaged" || payload.Score != 72 {
		t.Fatalf("unexpected record %+v %+v", env, payload)
	}
}
