package scope

import (
	"github.com/goliatone/go-scope/layering"
	"github.com/pkg/errors"
)

// MergeHandler overlays its arguments on the current value. Later arguments
// are stronger; fields left zero in an argument keep the current value.
func MergeHandler[T any]() Handler[T] {
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			var zero T
			if len(args) == 0 {
				return zero, errors.Wrap(ErrInvalidArgument, "merge expects at least 1 argument")
			}
			layers := make([]T, 0, len(args)+1)
			for i := len(args) - 1; i >= 0; i-- {
				layer, ok := args[i].(T)
				if !ok {
					return zero, errors.Wrapf(ErrInvalidArgument, "merge expects %T, got %T", zero, args[i])
				}
				layers = append(layers, layer)
			}
			layers = append(layers, current)
			return layering.Merge(layers...), nil
		}
	}
}
