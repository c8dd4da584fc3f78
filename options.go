package scope

import (
	"strings"

	"github.com/goliatone/go-scope/pkg/activity"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultActivityChannel = "context-scope"

// Option configures a Context at construction. Configuration is immutable
// afterwards.
type Option[T any] func(*config[T])

type config[T any] struct {
	initial    T
	hasInitial bool
	handlers   map[string]Handler[T]
	strict     bool
	logger     zerolog.Logger
	hooks      activity.Hooks
	channel    string
	actorID    string
	tenantID   string
	seedClone  bool
}

func applyOptions[T any](opts []Option[T]) config[T] {
	cfg := config[T]{
		strict:  true,
		logger:  log.Logger.With().Str("component", "context-scope").Logger(),
		channel: defaultActivityChannel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithInitialValue sets the value returned when no initialized scope
// encloses the caller. It also seeds scopes opened outside any other scope.
func WithInitialValue[T any](value T) Option[T] {
	return func(cfg *config[T]) {
		cfg.initial = value
		cfg.hasInitial = true
	}
}

// WithHandler registers a custom handler under name. Custom handlers replace
// default handlers of the same name, set included.
func WithHandler[T any](name string, handler Handler[T]) Option[T] {
	return func(cfg *config[T]) {
		name = strings.TrimSpace(name)
		if name == "" || handler == nil {
			return
		}
		if cfg.handlers == nil {
			cfg.handlers = make(map[string]Handler[T])
		}
		cfg.handlers[name] = handler
	}
}

// WithHandlers registers every entry of handlers, see WithHandler.
func WithHandlers[T any](handlers map[string]Handler[T]) Option[T] {
	return func(cfg *config[T]) {
		for name, handler := range handlers {
			WithHandler(name, handler)(cfg)
		}
	}
}

// WithStrictMode selects between returning misuse errors (true, the default)
// and logging them as warnings.
func WithStrictMode[T any](strict bool) Option[T] {
	return func(cfg *config[T]) {
		cfg.strict = strict
	}
}

// WithLogger replaces the logger used for lenient-mode warnings and activity
// delivery failures.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(cfg *config[T]) {
		cfg.logger = logger
	}
}

// WithActivityHooks attaches hooks notified on scope lifecycle changes.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks[T any](hooks activity.Hooks) Option[T] {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config[T]) {
		cfg.hooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on activity events that do
// not carry one.
func WithActivityChannel[T any](channel string) Option[T] {
	return func(cfg *config[T]) {
		if channel = strings.TrimSpace(channel); channel != "" {
			cfg.channel = channel
		}
	}
}

// WithActivityIdentity stamps actor and tenant ids on activity events.
func WithActivityIdentity[T any](actorID, tenantID string) Option[T] {
	return func(cfg *config[T]) {
		cfg.actorID = strings.TrimSpace(actorID)
		cfg.tenantID = strings.TrimSpace(tenantID)
	}
}

// WithSeedClone deep-copies the parent value when seeding a nested scope so
// in-place mutation of maps, slices or pointers inside the nested scope does
// not leak outwards.
func WithSeedClone[T any](enabled bool) Option[T] {
	return func(cfg *config[T]) {
		cfg.seedClone = enabled
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
