package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/Arisex96/bio-mat-new/pkg/errors"
)

// Topics. Every event is published on the topic named after its type.
const (
	TopicCatalogImported        = "catalog.imported"
	TopicRecommendationComputed = "recommendation.computed"
	TopicDeadLetterDefault      = "dead_letter.default"
)

const EventSchemaVersion = "v1"

// Header keys set on every event.
const (
	headerEventType     = "event_type"
	headerSource        = "source_service"
	headerSchemaVersion = "schema_version"
	headerTraceID       = "trace_id"
	headerOriginalTopic = "original_topic"
	headerErrorMessage  = "error_message"
)

type EventEnvelope struct {
	EventID       string            `json:"event_id"`
	EventType     string            `json:"event_type"`
	Source        string            `json:"source"`
	Timestamp     time.Time         `json:"timestamp"`
	SchemaVersion string            `json:"schema_version"`
	TraceID       string            `json:"trace_id,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// CatalogImportedPayload announces that a new catalog replaced the stored
// one. Workers react by reloading their cached snapshot.
type CatalogImportedPayload struct {
	Version    string    `json:"version"`
	Source     string    `json:"source"`
	Records    int       `json:"records"`
	Skipped    int       `json:"skipped"`
	Invalid    int       `json:"invalid"`
	ImportedAt time.Time `json:"imported_at"`
}

// RecommendationComputedPayload records one answered ranking query.
type RecommendationComputedPayload struct {
	QueryID        string    `json:"query_id"`
	CatalogVersion string    `json:"catalog_version"`
	K              int       `json:"k"`
	Recommended    []string  `json:"recommended"`
	BestScore      float64   `json:"best_score"`
	ComputedAt     time.Time `json:"computed_at"`
}

func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode event payload").WithDetail(eventType)
	}
	return &EventEnvelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: EventSchemaVersion,
		Payload:       raw,
	}, nil
}

// DecodePayload rejects envelopes without a payload.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeSerialization, "event has no payload").WithDetail(e.EventID)
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "cannot decode event payload").WithDetail(e.EventID)
	}
	return nil
}

// ToMessage keys the record by event type, so one partition holds every
// event of a kind in order.
func (e *EventEnvelope) ToMessage(topic string) (*ProducerMessage, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "cannot encode event envelope")
	}
	msg := &ProducerMessage{
		Topic: topic,
		Key:   []byte(e.EventType),
		Value: body,
		Headers: map[string]string{
			headerEventType:     e.EventType,
			headerSource:        e.Source,
			headerSchemaVersion: e.SchemaVersion,
		},
		Timestamp: e.Timestamp,
	}
	if e.TraceID != "" {
		msg.Headers[headerTraceID] = e.TraceID
	}
	return msg, nil
}

func MessageToEventEnvelope(msg *Message) (*EventEnvelope, error) {
	if len(msg.Value) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "message has no body").WithDetailf("%s@%d", msg.Topic, msg.Offset)
	}
	env := &EventEnvelope{}
	if err := json.Unmarshal(msg.Value, env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "message is not an event envelope")
	}
	return env, nil
}

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// EventPublisher turns domain events into envelopes on their topics.
type EventPublisher struct {
	out    Publisher
	source string
}

func NewEventPublisher(out Publisher, source string) *EventPublisher {
	return &EventPublisher{out: out, source: source}
}

func (p *EventPublisher) CatalogImported(ctx context.Context, payload CatalogImportedPayload) error {
	return p.emit(ctx, TopicCatalogImported, payload)
}

func (p *EventPublisher) RecommendationComputed(ctx context.Context, payload RecommendationComputedPayload) error {
	return p.emit(ctx, TopicRecommendationComputed, payload)
}

func (p *EventPublisher) emit(ctx context.Context, topic string, payload interface{}) error {
	env, err := NewEventEnvelope(topic, p.source, payload)
	if err != nil {
		return err
	}
	msg, err := env.ToMessage(topic)
	if err != nil {
		return err
	}
	return p.out.Publish(ctx, msg)
}
