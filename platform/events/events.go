package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	TopicSendEmail      = "notifications.send_email"
	TopicReviewAssigned = "review.assigned"
)

type SendEmailEvent struct {
	To       []string          `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

type ReviewAssignedEvent struct {
	AssignmentId  uuid.UUID  `json:"assignmentId"`
	SubmissionId  uuid.UUID  `json:"submissionId"`
	ReviewerId    uuid.UUID  `json:"reviewerId"`
	ReviewerEmail string     `json:"reviewerEmail"`
	PaperTitle    string     `json:"paperTitle"`
	DueDate       *time.Time `json:"dueDate,omitempty"`
	AssignedAt    time.Time  `json:"assignedAt"`
}

type Handler func(ctx context.Context, payload []byte) error

type Publisher interface {
	Publish(ctx context.Context, topic string, event interface{}) error
}

// Bus delivers published events to the handlers subscribed to a topic.
// Subscribe must be called before Run.
type Bus interface {
	Publisher
	Subscribe(topic string, handler Handler)
	Run(ctx context.Context) error
	Close() error
}

func dispatch(ctx context.Context, topic string, handlers []Handler, payload []byte) {
	for _, handler := range handlers {
		if err := handler(ctx, payload); err != nil {
			slog.Error("event handler failed", "topic", topic, "error", err)
		}
	}
}

// LocalBus delivers events in process, synchronously on the publishing
// goroutine. Publishers must not hold a transaction while publishing.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]Handler)}
}

func (b *LocalBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *LocalBus) Publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encoding %v event: %w", topic, err)
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	dispatch(ctx, topic, handlers, payload)
	return nil
}

func (b *LocalBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *LocalBus) Close() error {
	return nil
}

// RedisBus publishes over redis pub/sub so that services running in separate
// processes receive each other's events.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{client: client, prefix: prefix, handlers: make(map[string][]Handler)}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

func (b *RedisBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

func (b *RedisBus) Publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encoding %v event: %w", topic, err)
	}

	if err := b.client.Publish(ctx, b.channel(topic), payload).Err(); err != nil {
		slog.Error("redis publish failed", "topic", topic, "error", err)
		return fmt.Errorf("error publishing %v event: %w", topic, err)
	}
	return nil
}

// Run consumes subscribed topics until ctx is cancelled.
func (b *RedisBus) Run(ctx context.Context) error {
	b.mu.RLock()
	channels := make([]string, 0, len(b.handlers))
	topics := make(map[string]string, len(b.handlers))
	for topic := range b.handlers {
		channels = append(channels, b.channel(topic))
		topics[b.channel(topic)] = topic
	}
	b.mu.RUnlock()

	if len(channels) == 0 {
		<-ctx.Done()
		return nil
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("error subscribing to event channels: %w", err)
	}

	slog.Info("event bus: consuming", "channels", channels)

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("event bus: stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			topic := topics[msg.Channel]
			b.mu.RLock()
			handlers := b.handlers[topic]
			b.mu.RUnlock()
			dispatch(ctx, topic, handlers, []byte(msg.Payload))
		}
	}
}

func (b *RedisBus) Close() error {
	return nil
}
