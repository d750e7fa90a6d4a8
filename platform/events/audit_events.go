package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"go_audit_backend/models"
	"go_audit_backend/pkg/logging"
)

const (
	AuditEventChannel = "audit:events"
)

// EventPublisher mirrors pipeline progress onto redis pubsub so observers
// outside the originating request can follow a session.
type EventPublisher struct {
	redisClient *redis.Client
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redisClient: redisClient}
}

func (p *EventPublisher) PublishAuditEvent(event *models.AuditProgressEvent) error {
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		logging.Logger.Error("fail PublishAuditEvent", "error", err)
		return err
	}
	ctx := context.Background()
	if err := p.redisClient.Publish(ctx, AuditEventChannel, string(data)).Err(); err != nil {
		logging.Logger.Error("fail PublishAuditEvent", "error", err)
		return err
	}
	return nil
}

func (p *EventPublisher) SubscribeAuditEvents(ctx context.Context) (<-chan *models.AuditProgressEvent, error) {
	pubsub := p.redisClient.Subscribe(ctx, AuditEventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Logger.Error("fail SubscribeAuditEvents", "error", err)
		return nil, err
	}
	ch := make(chan *models.AuditProgressEvent, 100)

	go func() {
		defer close(ch)
		defer func(pubsub *redis.PubSub) {
			if err := pubsub.Close(); err != nil {
				logging.Logger.Error("fail SubscribeAuditEvents", "error", err)
			}
		}(pubsub)

		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-pubsub.Channel():
				var event models.AuditProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Logger.Error("failed to unmarshal event", "error", err)
					continue
				}

				select {
				case ch <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
