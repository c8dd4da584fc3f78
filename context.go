package scope

import (
	"sync/atomic"

	"github.com/goliatone/go-scope/internal/registry"
	"github.com/goliatone/go-scope/internal/stack"
	"github.com/goliatone/go-scope/layering"
	"github.com/goliatone/go-scope/pkg/activity"
	"github.com/pkg/errors"
)

var instances atomic.Uint64

// Context is an implicit value container. Scope opens a dynamic scope around
// a callback; anything the callback calls, however deep, reads the innermost
// enclosing scope's value through Value without being handed a reference.
//
// Resolution walks the calling goroutine's stack. Goroutines started inside a
// scope callback do not see that scope; use ScopeContext and ValueContext to
// carry scopes across goroutines explicitly.
type Context[T any] struct {
	instance  uint64
	cfg       config[T]
	scopes    *registry.Registry[T]
	extractor *stack.Extractor
	emitter   *activity.Emitter
}

// Record is a snapshot of a scope's registry entry.
type Record[T any] struct {
	Value       T
	Initialized bool
}

// New constructs a Context. Each Context receives a process-wide unique
// instance number.
func New[T any](opts ...Option[T]) *Context[T] {
	cfg := applyOptions(opts)
	instance := instances.Add(1)
	return &Context[T]{
		instance:  instance,
		cfg:       cfg,
		scopes:    registry.New[T](),
		extractor: stack.NewExtractor(instance),
		emitter: activity.NewEmitter(cfg.hooks, activity.Config{
			Enabled:  len(cfg.hooks) > 0,
			Channel:  cfg.channel,
			ActorID:  cfg.actorID,
			TenantID: cfg.tenantID,
		}),
	}
}

// Instance returns the container's instance number.
func (c *Context[T]) Instance() uint64 {
	return c.instance
}

// Strict reports whether misuse errors are returned rather than logged.
func (c *Context[T]) Strict() bool {
	return c.cfg.strict
}

// InitialValue returns the configured initial value and whether one was set.
func (c *Context[T]) InitialValue() (T, bool) {
	return c.cfg.initial, c.cfg.hasInitial
}

// Scope opens a new scope and runs fn inside it, returning fn's error. The
// handle starts with the value currently visible to the caller, or the
// initial value. The scope itself stays uninitialized until it is written:
// until then reads beneath it fail with ErrUninitializedScope, or return the
// initial value when one is configured.
func (c *Context[T]) Scope(fn func(*Scope[T]) error) error {
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "scope callback is nil")
	}
	s := c.open(c.extractor.Current())
	return stack.Wrap(c.instance, s.id)(func() error {
		return fn(s)
	})
}

// With is Scope for callbacks producing a value.
func With[T, R any](c *Context[T], fn func(*Scope[T]) (R, error)) (R, error) {
	var result R
	if fn == nil {
		return result, errors.Wrap(ErrInvalidArgument, "scope callback is nil")
	}
	err := c.Scope(func(s *Scope[T]) error {
		var err error
		result, err = fn(s)
		return err
	})
	return result, err
}

// Destroy removes the scope with the given id. Later writes through that
// scope fail with ErrScopeDestroyed and reads skip it.
func (c *Context[T]) Destroy(id int) {
	record, ok := c.scopes.Get(id)
	if !ok {
		return
	}
	c.scopes.Delete(id)
	c.emit(activity.VerbScopeDestroyed, activity.ScopeEventInput{
		Instance:    c.instance,
		ScopeID:     id,
		Initialized: record.Initialized,
		OldValue:    eventValue(record.Value, record.Initialized),
	})
}

// GetScope returns the registry entry for id. ok is false once the scope has
// been destroyed.
func (c *Context[T]) GetScope(id int) (Record[T], bool) {
	record, ok := c.scopes.Get(id)
	if !ok {
		return Record[T]{}, false
	}
	return Record[T]{Value: record.Value, Initialized: record.Initialized}, true
}

// Scopes returns the ids of this container's scopes enclosing the caller,
// innermost first. Destroyed ids are included.
func (c *Context[T]) Scopes() []int {
	return c.extractor.Current()
}

// LiveScopes returns the ids of every scope that has not been destroyed,
// whether or not it encloses the caller.
func (c *Context[T]) LiveScopes() []int {
	return c.scopes.Live()
}

// open allocates a scope and builds its handle. The handle starts with the
// value visible from enclosing, but the registry record stays uninitialized
// until the first write, so readers below an unwritten scope do not see the
// seed.
func (c *Context[T]) open(enclosing []int) *Scope[T] {
	id := c.scopes.Open()
	h := &holder[T]{}

	seed, _, seeded := c.lookup(enclosing)
	if seeded {
		if c.cfg.seedClone {
			seed = layering.Clone(seed)
		}
		h.value, h.present = seed, true
	}
	h.onChange = func(value T, method string) error {
		return c.commit(id, eventValue(h.value, h.present), value, method)
	}

	s := &Scope[T]{id: id, ctx: c, holder: h}
	s.methods = h.bind(c.handlers())

	input := activity.ScopeEventInput{
		Instance: c.instance,
		ScopeID:  id,
	}
	if seeded {
		input.Metadata = map[string]any{"seed": seed}
	}
	c.emit(activity.VerbScopeOpened, input)
	return s
}

// commit records a write in the registry. old is the handle's value before
// the write, nil when it had none.
func (c *Context[T]) commit(id int, old any, value T, method string) error {
	ok := c.scopes.Update(id, func(record *registry.Record[T]) {
		record.Value = value
		record.Initialized = true
	})
	if !ok {
		return c.report(scopeDestroyedError(id, method))
	}
	c.emit(activity.VerbScopeUpdated, activity.ScopeEventInput{
		Instance:    c.instance,
		ScopeID:     id,
		Method:      method,
		Initialized: true,
		OldValue:    old,
		NewValue:    value,
	})
	return nil
}

// handlers merges defaults with custom handlers; custom entries win.
func (c *Context[T]) handlers() map[string]Handler[T] {
	merged := defaultHandlers[T]()
	for name, handler := range c.cfg.handlers {
		merged[name] = handler
	}
	return merged
}

func eventValue[T any](value T, present bool) any {
	if !present {
		return nil
	}
	return value
}
