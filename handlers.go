package scope

import (
	"math"
	"reflect"

	"github.com/pkg/errors"
)

const (
	setMethod       = "set"
	incrementMethod = "increment"
)

// Handler defines a named mutation. It receives the current value and returns
// a function of the call arguments producing the next value.
type Handler[T any] func(current T) func(args ...any) (T, error)

// Method is a handler bound to one scope.
type Method[T any] func(args ...any) (T, error)

func defaultHandlers[T any]() map[string]Handler[T] {
	return map[string]Handler[T]{
		setMethod:       SetHandler[T](),
		incrementMethod: IncrementHandler[T](),
	}
}

// SetHandler replaces the value. A func(T) T argument is applied to the
// current value instead.
func SetHandler[T any]() Handler[T] {
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			var zero T
			if len(args) != 1 {
				return zero, errors.Wrapf(ErrInvalidArgument, "set expects 1 argument, got %d", len(args))
			}
			if args[0] == nil {
				return zero, nil
			}
			switch v := args[0].(type) {
			case func(T) T:
				return v(current), nil
			case T:
				return v, nil
			}
			return zero, errors.Wrapf(ErrInvalidArgument, "set expects %T, got %T", zero, args[0])
		}
	}
}

// IncrementHandler adds its optional argument (default 1) to a numeric value.
func IncrementHandler[T any]() Handler[T] {
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			var zero T
			if len(args) > 1 {
				return zero, errors.Wrapf(ErrInvalidArgument, "increment expects at most 1 argument, got %d", len(args))
			}
			var amount any = 1
			if len(args) == 1 && args[0] != nil {
				amount = args[0]
			}
			return addNumeric(current, amount)
		}
	}
}

func addNumeric[T any](current T, amount any) (T, error) {
	var zero T
	slot := reflect.ValueOf(&current).Elem()
	base := slot
	if base.Kind() == reflect.Interface {
		if base.IsNil() {
			return zero, errors.Wrap(ErrNotNumeric, "increment on nil value")
		}
		base = base.Elem()
	}
	step := reflect.ValueOf(amount)

	sum := reflect.New(base.Type()).Elem()
	switch base.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := integerOf(step)
		if !ok {
			return zero, errors.Wrapf(ErrNotNumeric, "increment amount %v (%T) is not an integer", amount, amount)
		}
		sum.SetInt(base.Int() + n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, ok := integerOf(step)
		if !ok {
			return zero, errors.Wrapf(ErrNotNumeric, "increment amount %v (%T) is not an integer", amount, amount)
		}
		if n < 0 {
			sum.SetUint(base.Uint() - uint64(-n))
		} else {
			sum.SetUint(base.Uint() + uint64(n))
		}
	case reflect.Float32, reflect.Float64:
		f, ok := floatOf(step)
		if !ok {
			return zero, errors.Wrapf(ErrNotNumeric, "increment amount %v (%T) is not numeric", amount, amount)
		}
		sum.SetFloat(base.Float() + f)
	default:
		return zero, errors.Wrapf(ErrNotNumeric, "increment on %s", base.Type())
	}

	out := reflect.New(slot.Type()).Elem()
	out.Set(sum)
	return out.Interface().(T), nil
}

func integerOf(v reflect.Value) (int64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Uint() > math.MaxInt64 {
			return 0, false
		}
		return int64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	default:
		return 0, false
	}
}

func floatOf(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}
