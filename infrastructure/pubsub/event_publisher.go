package pubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/events"
	"crm-social/infrastructure/logger"

	"cloud.google.com/go/pubsub"
)

// ErrNoClient is returned when Pub/Sub was not configured.
var ErrNoClient = errors.New("pubsub client not configured")

// NewPubSub connects to Google Cloud Pub/Sub for projectID.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id is empty")
	}
	return pubsub.NewClient(ctx, projectID)
}

// EventPublisher publishes adapter events to one topic, creating it on first use.
type EventPublisher struct {
	client    *pubsub.Client
	topicName string

	mu    sync.Mutex
	topic *pubsub.Topic
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *pubsub.Client, topicName string) *EventPublisher {
	return &EventPublisher{client: client, topicName: topicName}
}

func (p *EventPublisher) ensureTopic(ctx context.Context) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		return p.topic, nil
	}
	topic := p.client.Topic(p.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", p.topicName).Info("Topic doesn't exist - creating it")
		if topic, err = p.client.CreateTopic(ctx, p.topicName); err != nil {
			return nil, err
		}
	}
	p.topic = topic
	return topic, nil
}

func (p *EventPublisher) PublishEvent(ctx context.Context, evt *model.Event) error {
	if p.client == nil {
		return ErrNoClient
	}
	body, attrs, err := events.Encode(evt)
	if err != nil {
		return err
	}
	topic, err := p.ensureTopic(ctx)
	if err != nil {
		return fmt.Errorf("pubsub topic %s: %w", p.topicName, err)
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: body, Attributes: attrs}).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("type", evt.Type).Info("Message published")
	return nil
}

// Close flushes pending messages.
func (p *EventPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.topic != nil {
		p.topic.Stop()
	}
}
