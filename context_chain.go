package scope

import (
	"context"

	"github.com/goliatone/go-scope/internal/stack"
	"github.com/pkg/errors"
)

type chainKey struct {
	instance uint64
}

// chain is an immutable list of scope ids, innermost at the head.
type chain struct {
	id     int
	parent *chain
}

func (ch *chain) ids() []int {
	var ids []int
	for node := ch; node != nil; node = node.parent {
		ids = append(ids, node.id)
	}
	return ids
}

func (c *Context[T]) chainFrom(ctx context.Context) (*chain, bool) {
	if ctx == nil {
		return nil, false
	}
	ch, ok := ctx.Value(chainKey{instance: c.instance}).(*chain)
	return ch, ok
}

// enclosingIDs lists the scopes on the calling stack, innermost first,
// followed by the scopes recorded on ctx that the stack does not already
// hold. Scopes opened with Scope inside a ScopeContext callback therefore
// still win over the ones the context carries.
func (c *Context[T]) enclosingIDs(ctx context.Context) []int {
	ids := c.extractor.Current()
	ch, ok := c.chainFrom(ctx)
	if !ok {
		return ids
	}
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range ch.ids() {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// ScopeContext opens a scope like Scope and also records it on the
// context.Context handed to fn. Goroutines given that context can read the
// scope through ValueContext even though they do not share the caller's
// stack.
func (c *Context[T]) ScopeContext(ctx context.Context, fn func(context.Context, *Scope[T]) error) error {
	if fn == nil {
		return errors.Wrap(ErrInvalidArgument, "scope callback is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := c.chainFrom(ctx)
	s := c.open(c.enclosingIDs(ctx))
	scoped := context.WithValue(ctx, chainKey{instance: c.instance}, &chain{id: s.id, parent: parent})
	return stack.Wrap(c.instance, s.id)(func() error {
		return fn(scoped, s)
	})
}

// ValueContext resolves like Value over the calling stack plus the scopes
// recorded on ctx. Stack scopes come first, so a goroutine that opens its own
// scope reads it ahead of the ones inherited through ctx.
func (c *Context[T]) ValueContext(ctx context.Context) (T, error) {
	return c.valueOf(c.enclosingIDs(ctx))
}

// ResolveContext is Resolve for the scopes recorded on ctx.
func (c *Context[T]) ResolveContext(ctx context.Context) Resolution[T] {
	return c.resolve(c.enclosingIDs(ctx))
}
