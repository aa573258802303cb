package servicebus

import (
	"context"
	"errors"
	"fmt"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/events"
	"crm-social/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// ErrNoClient is returned when Service Bus was not configured.
var ErrNoClient = errors.New("service bus client not configured")

const contentTypeJSON = "application/json"

// NewServiceBus connects to namespace (e.g. crm.servicebus.windows.net) with the default Azure credential chain.
func NewServiceBus(_ context.Context, namespace string) (*azservicebus.Client, error) {
	if namespace == "" {
		return nil, fmt.Errorf("service bus namespace is empty")
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// EventPublisher sends adapter events to one queue.
type EventPublisher struct {
	client *azservicebus.Client
	queue  string
}

var _ repository.IEventPublisher = (*EventPublisher)(nil)

func NewEventPublisher(client *azservicebus.Client, queue string) *EventPublisher {
	return &EventPublisher{client: client, queue: queue}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, evt *model.Event) error {
	if p.client == nil {
		return ErrNoClient
	}
	body, attrs, err := events.Encode(evt)
	if err != nil {
		return err
	}
	sender, err := p.client.NewSender(p.queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return err
	}
	defer func(sender *azservicebus.Sender, ctx context.Context) {
		if err := sender.Close(ctx); err != nil {
			logger.GetLogger().
				WithField("error", err).
				Error("Error while closing sender.")
		}
	}(sender, context.WithoutCancel(ctx))

	if err := sender.SendMessage(ctx, newMessage(body, attrs), nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return err
	}
	return nil
}

func newMessage(body []byte, attrs map[string]string) *azservicebus.Message {
	contentType := contentTypeJSON
	subject := attrs["type"]
	props := make(map[string]any, len(attrs))
	for k, v := range attrs {
		props[k] = v
	}
	return &azservicebus.Message{
		Body:                  body,
		ContentType:           &contentType,
		Subject:               &subject,
		ApplicationProperties: props,
	}
}
