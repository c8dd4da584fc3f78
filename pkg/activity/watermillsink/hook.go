// Package watermillsink publishes scope activity to a watermill topic.
package watermillsink

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goliatone/go-scope/pkg/activity"
	"github.com/pkg/errors"
)

// DefaultTopic receives events when Hook.Topic is empty.
const DefaultTopic = "context-scope.activity"

// Payload is the JSON body of published messages.
type Payload struct {
	Verb       string         `json:"verb"`
	ActorID    string         `json:"actor_id,omitempty"`
	TenantID   string         `json:"tenant_id,omitempty"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Channel    string         `json:"channel,omitempty"`
	Instance   uint64         `json:"instance"`
	ScopeID    int            `json:"scope_id"`
	Method     string         `json:"method,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Hook publishes every event as one message.
type Hook struct {
	Publisher message.Publisher
	Topic     string
}

// Notify encodes the event and publishes it.
func (h Hook) Notify(_ context.Context, event activity.Event) error {
	if h.Publisher == nil {
		return nil
	}
	normalized := activity.NormalizeEvent(event)
	if normalized.Verb == "" || normalized.ObjectType == "" || normalized.ObjectID == "" {
		return nil
	}

	body, err := json.Marshal(Payload{
		Verb:       normalized.Verb,
		ActorID:    normalized.ActorID,
		TenantID:   normalized.TenantID,
		ObjectType: normalized.ObjectType,
		ObjectID:   normalized.ObjectID,
		Channel:    normalized.Channel,
		Instance:   normalized.Instance,
		ScopeID:    normalized.ScopeID,
		Method:     normalized.Method,
		Metadata:   normalized.Metadata,
		OccurredAt: normalized.OccurredAt,
	})
	if err != nil {
		return errors.Wrap(err, "watermillsink: encode event")
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set("verb", normalized.Verb)
	msg.Metadata.Set("object_id", normalized.ObjectID)
	msg.Metadata.Set("scope_id", strconv.Itoa(normalized.ScopeID))

	if err := h.Publisher.Publish(h.topic(), msg); err != nil {
		return errors.Wrapf(err, "watermillsink: publish to %s", h.topic())
	}
	return nil
}

func (h Hook) topic() string {
	if topic := strings.TrimSpace(h.Topic); topic != "" {
		return topic
	}
	return DefaultTopic
}

// Decode parses a message published by Hook.
func Decode(msg *message.Message) (Payload, error) {
	var payload Payload
	if msg == nil {
		return payload, errors.New("watermillsink: nil message")
	}
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, errors.Wrap(err, "watermillsink: decode payload")
	}
	return payload, nil
}
