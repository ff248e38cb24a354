// Package relay forwards pipeline and outreach events to Kafka for
// downstream consumers such as the CRM and reporting.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"govcon_outreach_backend/internal/events"
	"govcon_outreach_backend/platform/config"
	"govcon_outreach_backend/platform/logger"
)

const writeTimeout = 10 * time.Second

// MessageWriter is the part of *kafka.Writer the relay uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the record value written for every event.
type Envelope struct {
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Relay publishes events to one topic.
type Relay struct {
	writer MessageWriter
	log    *logger.Logger
}

// New creates a relay writing to the configured brokers and topic.
func New(cfg config.KafkaConfig, log *logger.Logger) (*Relay, error) {
	if !cfg.IsKafkaEnabled() {
		return nil, fmt.Errorf("kafka brokers not configured")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.GetKafkaBrokers()...),
		Topic:                  cfg.GetKafkaPipelineTopic(),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		WriteTimeout:           writeTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewWithWriter(writer, log), nil
}

// NewWithWriter wraps an existing writer.
func NewWithWriter(writer MessageWriter, log *logger.Logger) *Relay {
	return &Relay{writer: writer, log: log}
}

// Subscribe registers the relay for the events it forwards.
func (r *Relay) Subscribe(bus events.Bus) {
	bus.Subscribe(events.StageChanged{}.EventName(), r)
	bus.Subscribe(events.CampaignSent{}.EventName(), r)
	bus.Subscribe(events.SyncCompleted{}.EventName(), r)
}

// Handle implements events.Handler. Records are keyed so that all events
// for one contractor land on the same partition.
func (r *Relay) Handle(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventName(), err)
	}
	value, err := json.Marshal(Envelope{
		Name:       event.EventName(),
		OccurredAt: event.OccurredAt().UTC(),
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(keyFor(event)),
		Value: value,
		Time:  event.OccurredAt().UTC(),
		Headers: []kafka.Header{
			{Key: "event-name", Value: []byte(event.EventName())},
		},
	}
	if err := r.writer.WriteMessages(ctx, msg); err != nil {
		r.log.Warn("event relay write failed", "event", event.EventName(), "error", err)
		return fmt.Errorf("relay %s: %w", event.EventName(), err)
	}
	return nil
}

// Close flushes and closes the writer.
func (r *Relay) Close() error {
	return r.writer.Close()
}

func keyFor(event events.Event) string {
	switch e := event.(type) {
	case events.StageChanged:
		return e.ContractorID.String()
	case events.CampaignSent:
		return "campaign:" + e.CampaignType
	case events.SyncCompleted:
		return "sync:" + e.Kind
	default:
		return event.EventName()
	}
}

// Compile-time check that Relay is an event handler.
var _ events.Handler = (*Relay)(nil)
