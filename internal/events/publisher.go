// Package events publishes payment-proof lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"
)

// Event types.
const (
	TypeSubmitted = "proof.submitted"
	TypeReviewed  = "proof.reviewed"
)

// Event is the JSON payload written to the topic. Keyed by ticket so all
// events for one ticket land on the same partition.
type Event struct {
	Type         string    `json:"type"`
	SubmissionID string    `json:"submission_id"`
	TicketID     string    `json:"ticket_id"`
	Status       string    `json:"status"`
	Method       string    `json:"method"`
	Reference    string    `json:"reference,omitempty"`
	NeedsReview  bool      `json:"needs_review"`
	Errors       []string  `json:"errors,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher emits events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single Kafka topic.
type KafkaPublisher struct {
	w      messageWriter
	logger *slog.Logger
}

// NewKafkaPublisher builds a publisher over a kafka.Writer for brokers/topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

func newKafkaPublisher(w messageWriter, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{w: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return eris.Wrap(err, "events: marshal")
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.TicketID),
		Value: payload,
	}); err != nil {
		p.logger.Warn("events.publish_failed", "type", e.Type, "submission_id", e.SubmissionID, "error", err)
		return eris.Wrapf(err, "events: write %s", e.Type)
	}
	p.logger.Debug("events.published", "type", e.Type, "submission_id", e.SubmissionID)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// Nop discards events. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error { return nil }
