// Package lambdascope runs AWS Lambda invocations inside a scope.
package lambdascope

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/mohae/deepcopy"
	"github.com/rs/zerolog"

	scope "github.com/goliatone/go-scope"
)

// Options configures a wrapped handler.
type Options struct {
	// Destroy removes the invocation scope once the handler returns.
	Destroy bool
	Logger  zerolog.Logger
}

// Option configures Options.
type Option interface {
	Apply(o *Options)
}

// OptionFunc adapts a function to Option.
type OptionFunc func(*Options)

// Apply implements Option.
func (f OptionFunc) Apply(o *Options) { f(o) }

var defaultOptions = &Options{
	Destroy: true,
}

// NewOptions returns the defaults with opts applied.
func NewOptions(opts ...Option) *Options {
	o := deepcopy.Copy(defaultOptions).(*Options)
	o.Logger = zerolog.Nop()
	for _, opt := range opts {
		if opt != nil {
			opt.Apply(o)
		}
	}
	return o
}

// WithDestroy controls whether invocation scopes are destroyed on return.
func WithDestroy(destroy bool) Option {
	return OptionFunc(func(o *Options) {
		o.Destroy = destroy
	})
}

// WithLogger sets the logger used for invocation diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return OptionFunc(func(o *Options) {
		o.Logger = logger
	})
}

// Wrap returns a lambda.Handler that decodes the event into In, opens a
// scope seeded by seed and runs fn inside it. With a nil seed the scope stays
// unwritten, so reads fall back to the container's initial value. fn and
// everything it calls can read the value through c.Value or
// c.ValueContext(ctx).
func Wrap[T, In, Out any](c *scope.Context[T], seed func(context.Context, In) (T, error), fn func(context.Context, In) (Out, error), opts ...Option) lambda.Handler {
	o := NewOptions(opts...)
	return lambda.NewHandler(func(ctx context.Context, event In) (Out, error) {
		var out Out
		err := c.ScopeContext(ctx, func(ctx context.Context, s *scope.Scope[T]) error {
			if o.Destroy {
				defer s.Destroy()
			}
			if seed != nil {
				value, err := seed(ctx, event)
				if err != nil {
					return err
				}
				if _, err := s.Set(value); err != nil {
					return err
				}
			}
			o.Logger.Debug().Uint64("instance", c.Instance()).Int("scope_id", s.ID()).Msg("invocation scope opened")
			var err error
			out, err = fn(ctx, event)
			return err
		})
		return out, err
	})
}

// Start wraps fn and hands it to the Lambda runtime.
func Start[T, In, Out any](c *scope.Context[T], seed func(context.Context, In) (T, error), fn func(context.Context, In) (Out, error), opts ...Option) {
	lambda.Start(Wrap(c, seed, fn, opts...))
}
