// Package events publishes domain events about documents, patients and
// tasks to the event stream.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const (
	DocumentVerified = "document.verified"
	DocumentUpdated  = "document.updated"
	PatientUpdated   = "patient.updated"
	TaskCreated      = "task.created"
	TaskClaimed      = "task.claimed"
	TaskCompleted    = "task.completed"
)

// Event is the JSON value written to the stream. PhysicianID is the tenant
// the event belongs to and is used as the message key.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PhysicianID string    `json:"physicianId"`
	ActorID     string    `json:"actorId,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Data        any       `json:"data,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic, keyed by physician so a
// tenant's events stay ordered within one partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", ev.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.PhysicianID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: write %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

// NopPublisher drops every event. Used when KAFKA_BROKERS is unset.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Emit publishes ev and logs a failure instead of returning it. The caller's
// operation has already committed by the time events go out.
func Emit(ctx context.Context, p Publisher, logger zerolog.Logger, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn().Err(err).
			Str("event", ev.Type).
			Str("subject", ev.Subject).
			Msg("publish event failed")
	}
}
