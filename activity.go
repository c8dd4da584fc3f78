package scope

import (
	"context"

	"github.com/goliatone/go-scope/pkg/activity"
)

// emit builds and delivers a lifecycle event when hooks are configured. Hook
// failures never affect the scope operation; they are logged at debug level.
func (c *Context[T]) emit(verb string, input activity.ScopeEventInput) {
	if !c.emitter.Enabled() {
		return
	}
	var event activity.Event
	switch verb {
	case activity.VerbScopeOpened:
		event = activity.BuildScopeOpenedEvent(input)
	case activity.VerbScopeDestroyed:
		event = activity.BuildScopeDestroyedEvent(input)
	default:
		event = activity.BuildScopeUpdatedEvent(input)
	}
	if err := c.emitter.Emit(context.Background(), event); err != nil {
		c.cfg.logger.Debug().
			Err(err).
			Str("verb", event.Verb).
			Str("object_id", event.ObjectID).
			Msg("activity hook failed")
	}
}

// ActivityHooks returns a clone of the configured hooks.
func (c *Context[T]) ActivityHooks() activity.Hooks {
	if c == nil {
		return nil
	}
	return cloneActivityHooks(c.cfg.hooks)
}
