// Package ginscope opens one scope per gin request so handlers further down
// the chain read the request's value without it being passed to them.
package ginscope

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	scope "github.com/goliatone/go-scope"
)

// ScopeIDKey is the gin context key holding the request's scope id.
const ScopeIDKey = "context_scope_id"

// Extractor derives the request's value.
type Extractor[T any] func(*gin.Context) (T, error)

// Middleware opens a scope for every request, seeds it with extract and runs
// the remaining handlers inside it. The scope is destroyed once the chain
// returns. The scope is also recorded on the request context so goroutines
// spawned by a handler can resolve it through Value.
func Middleware[T any](c *scope.Context[T], extract Extractor[T]) gin.HandlerFunc {
	return func(gc *gin.Context) {
		err := c.ScopeContext(gc.Request.Context(), func(ctx context.Context, s *scope.Scope[T]) error {
			defer s.Destroy()
			if extract != nil {
				value, err := extract(gc)
				if err != nil {
					return err
				}
				if _, err := s.Set(value); err != nil {
					return err
				}
			}
			gc.Request = gc.Request.WithContext(ctx)
			gc.Set(ScopeIDKey, s.ID())
			gc.Next()
			return nil
		})
		if err != nil {
			gc.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
	}
}

// Value resolves the request's value. It prefers the scope recorded on the
// request context and falls back to the calling stack.
func Value[T any](c *scope.Context[T], gc *gin.Context) (T, error) {
	return c.ValueContext(gc.Request.Context())
}
