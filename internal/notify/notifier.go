// Package notify publishes domain events to kafka for downstream consumers
// (notification senders, analytics, oversight tooling). Delivery is best
// effort: a broker outage never fails the request that raised the event.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"truconn/internal/platform/kafka/producer"
)

// EventType identifies what happened.
type EventType string

const (
	EventConsentGranted    EventType = "consent_granted"
	EventConsentRevoked    EventType = "consent_revoked"
	EventConsentExpired    EventType = "consent_expired"
	EventAccessRequested   EventType = "access_requested"
	EventAccessDecided     EventType = "access_decided"
	EventViolationDetected EventType = "violation_detected"
)

// Event is the wire payload for a domain event.
type Event struct {
	Type       EventType      `json:"type"`
	Subject    string         `json:"subject"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Producer is the kafka surface the notifier needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Notifier serializes events and hands them to kafka asynchronously.
type Notifier struct {
	producer Producer
	topic    string
	logger   *slog.Logger

	events chan eventEnvelope
	wg     sync.WaitGroup
	once   sync.Once
}

type eventEnvelope struct {
	ctx   context.Context
	event Event
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// New starts the background publishing loop. Call Close to flush it.
func New(p Producer, topic string, opts ...Option) *Notifier {
	n := &Notifier{
		producer: p,
		topic:    topic,
		logger:   slog.Default(),
		events:   make(chan eventEnvelope, 256),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.wg.Add(1)
	go n.loop()
	return n
}

// Emit queues an event for publishing. It never blocks the caller: when the
// queue is full the event is dropped and logged.
func (n *Notifier) Emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case n.events <- eventEnvelope{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		n.logger.WarnContext(ctx, "notify queue full, dropping event",
			slog.String("type", string(event.Type)),
			slog.String("subject", event.Subject))
	}
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for env := range n.events {
		payload, err := json.Marshal(env.event)
		if err != nil {
			n.logger.ErrorContext(env.ctx, "marshaling event", slog.Any("error", err))
			continue
		}
		msg := &producer.Message{
			Topic: n.topic,
			Key:   []byte(env.event.Subject),
			Value: payload,
			Headers: map[string]string{
				"event_type": string(env.event.Type),
			},
		}
		if err := n.producer.Produce(env.ctx, msg); err != nil {
			n.logger.ErrorContext(env.ctx, "publishing event",
				slog.String("type", string(env.event.Type)),
				slog.Any("error", err))
		}
	}
}

// Close drains the queue and stops the loop.
func (n *Notifier) Close() {
	n.once.Do(func() {
		close(n.events)
	})
	n.wg.Wait()
}
