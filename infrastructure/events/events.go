// Package events encodes adapter-layer events for the message bus adapters.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crm-social/domain/model"
	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"
)

// Encode returns the JSON body of evt and the routing attributes every bus carries.
func Encode(evt *model.Event) ([]byte, map[string]string, error) {
	if evt == nil {
		return nil, nil, fmt.Errorf("nil event")
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal event %s: %w", evt.Type, err)
	}
	attrs := map[string]string{
		"type":     evt.Type,
		"platform": string(evt.Platform),
	}
	return body, attrs, nil
}

// LogPublisher only logs events; used when no bus is configured.
type LogPublisher struct{}

var _ repository.IEventPublisher = LogPublisher{}

func (LogPublisher) PublishEvent(_ context.Context, evt *model.Event) error {
	body, _, err := Encode(evt)
	if err != nil {
		return err
	}
	logger.GetLogger().WithField("event", string(body)).Info("Event emitted")
	return nil
}
