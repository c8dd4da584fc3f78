package activity

import (
	"fmt"
	"time"
)

const (
	// DefaultChannel is stamped on events that do not name a channel.
	DefaultChannel = "context-scope"
	// ObjectTypeScope is the object type of every scope event.
	ObjectTypeScope = "context.scope"

	VerbScopeOpened    = "scope.opened"
	VerbScopeUpdated   = "scope.updated"
	VerbScopeDestroyed = "scope.destroyed"
)

// ScopeEventInput describes the fields shared by scope lifecycle events.
type ScopeEventInput struct {
	Instance    uint64
	ScopeID     int
	Method      string
	Initialized bool
	OldValue    any
	NewValue    any
	Channel     string
	Metadata    map[string]any
	OccurredAt  time.Time
}

// BuildScopeOpenedEvent describes a scope being opened (and possibly seeded).
func BuildScopeOpenedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeOpened, input)
}

// BuildScopeUpdatedEvent describes a committed write.
func BuildScopeUpdatedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeUpdated, input)
}

// BuildScopeDestroyedEvent describes a scope removed from its registry.
func BuildScopeDestroyedEvent(input ScopeEventInput) Event {
	return buildScopeEvent(VerbScopeDestroyed, input)
}

// ScopeObjectID renders the object id used for a scope, "<instance>/<id>".
func ScopeObjectID(instance uint64, id int) string {
	return fmt.Sprintf("%d/%d", instance, id)
}

func buildScopeEvent(verb string, input ScopeEventInput) Event {
	metadata := cloneMap(input.Metadata)
	metadata = ensureMetadata(metadata)
	metadata["instance"] = input.Instance
	metadata["scope_id"] = input.ScopeID
	metadata["initialized"] = input.Initialized
	if input.Method != "" {
		metadata["method"] = input.Method
	}
	if input.OldValue != nil {
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata["new_value"] = input.NewValue
	}

	return Event{
		Verb:       verb,
		ObjectType: ObjectTypeScope,
		ObjectID:   ScopeObjectID(input.Instance, input.ScopeID),
		Channel:    input.Channel,
		Instance:   input.Instance,
		ScopeID:    input.ScopeID,
		Method:     input.Method,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
