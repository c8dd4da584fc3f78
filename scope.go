package scope

import (
	"sort"

	"github.com/pkg/errors"
)

// Scope is the handle passed to a Scope callback. Its value is live: it
// reflects every write made through the handle.
type Scope[T any] struct {
	id      int
	ctx     *Context[T]
	holder  *holder[T]
	methods map[string]Method[T]
}

// ID returns the scope id, unique within its Context.
func (s *Scope[T]) ID() int {
	return s.id
}

// Value returns the scope's current value.
func (s *Scope[T]) Value() T {
	return s.holder.get()
}

// Destroy removes the scope from its Context.
func (s *Scope[T]) Destroy() {
	s.ctx.Destroy(s.id)
}

// Set runs the set handler with value.
func (s *Scope[T]) Set(value T) (T, error) {
	return s.Call(setMethod, value)
}

// Update runs the set handler with fn, replacing the value with fn(current).
func (s *Scope[T]) Update(fn func(T) T) (T, error) {
	if fn == nil {
		var zero T
		return zero, errors.Wrap(ErrInvalidArgument, "update function is nil")
	}
	return s.Call(setMethod, fn)
}

// Increment runs the increment handler. The optional amount defaults to 1.
func (s *Scope[T]) Increment(amount ...any) (T, error) {
	return s.Call(incrementMethod, amount...)
}

// Call runs the handler registered under name and returns the value it
// committed.
func (s *Scope[T]) Call(name string, args ...any) (T, error) {
	method, ok := s.methods[name]
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrUnknownHandler, "%q", name)
	}
	return method(args...)
}

// Method returns the bound method registered under name.
func (s *Scope[T]) Method(name string) (Method[T], bool) {
	method, ok := s.methods[name]
	return method, ok
}

// Methods lists the handler names bound to the scope, sorted.
func (s *Scope[T]) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
