package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event ScheduleEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client *redis.Client
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client}
}

// Publish adds an event to the stream using XADD.
// Uses "*" for auto-generated message ID (timestamp-sequence).
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event ScheduleEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", stream, event.Type, err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()

	if err != nil {
		log.Printf("[Publisher] Publish FAILED: stream=%s type=%s err=%v", stream, event.Type, err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	log.Printf("[Publisher] Publish OK: stream=%s type=%s msgID=%s duration=%v",
		stream, event.Type, messageID, time.Since(startTime))
	log.Printf("[Publisher]   -> user=%d treatment=%s dose=%s",
		event.UserID, event.TreatmentID, event.DoseID)

	return messageID, nil
}

// PublishDoseConfirmed is a convenience method for publishing dose confirmed events.
func (p *RedisPublisher) PublishDoseConfirmed(ctx context.Context, userID int64, treatmentID, doseID uuid.UUID) (string, error) {
	event := NewDoseConfirmedEvent(userID, treatmentID, doseID)
	return p.Publish(ctx, StreamSchedule, event)
}

// PublishTreatmentChanged is a convenience method for publishing treatment changed events.
func (p *RedisPublisher) PublishTreatmentChanged(ctx context.Context, userID int64, treatmentID uuid.UUID) (string, error) {
	event := NewTreatmentChangedEvent(userID, treatmentID)
	return p.Publish(ctx, StreamSchedule, event)
}

// PublishTreatmentDeleted is a convenience method for publishing treatment deleted events.
func (p *RedisPublisher) PublishTreatmentDeleted(ctx context.Context, userID int64, treatmentID uuid.UUID) (string, error) {
	event := NewTreatmentDeletedEvent(userID, treatmentID)
	return p.Publish(ctx, StreamSchedule, event)
}
