package scope

import (
	"encoding/json"
	"reflect"

	"github.com/pkg/errors"
)

const jsEngine = "js"

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
	logger   HandlerLogger
	method   string
}

// EvaluatorOption configures an expression handler.
type EvaluatorOption func(*evaluatorConfig)

// WithProgramCache shares compiled programs across handlers.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes the functions in registry to the expression.
func WithFunctionRegistry(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the handler.
func WithCustomFunction(name string, fn Function) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if cfg.registry == nil {
			cfg.registry = NewFunctionRegistry()
		}
		_ = cfg.registry.Register(name, fn)
	}
}

// WithHandlerLogger attaches a logger notified after every invocation.
func WithHandlerLogger(logger HandlerLogger) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if logger == nil {
			cfg.logger = noopHandlerLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithMethodName labels the handler in log events and errors.
func WithMethodName(name string) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.method = name
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{logger: noopHandlerLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg evaluatorConfig) lookup(engine, expression string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(cacheKey(engine, cfg.registry.fingerprint(), expression))
}

func (cfg evaluatorConfig) store(engine, expression string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(cacheKey(engine, cfg.registry.fingerprint(), expression), program)
	}
}

// convertResult coerces an evaluation result to T. Numeric results are
// converted between kinds so an int64 produced by an engine can feed an int
// value, but a fractional result never feeds an integer value; maps and slices feeding a struct or typed collection go through a
// JSON round trip.
func convertResult[T any](result any) (T, error) {
	var zero T
	if result == nil {
		return zero, nil
	}
	if typed, ok := result.(T); ok {
		return typed, nil
	}
	target := reflect.TypeOf((*T)(nil)).Elem()
	value := reflect.ValueOf(result)
	if isNumericKind(target.Kind()) && isNumericKind(value.Kind()) {
		if isIntegerKind(target.Kind()) {
			if _, ok := integerOf(value); !ok {
				return zero, errors.Wrapf(ErrInvalidArgument, "result %v does not fit %s", result, target)
			}
		}
		return value.Convert(target).Interface().(T), nil
	}
	if value.Type().ConvertibleTo(target) && value.Kind() == target.Kind() {
		return value.Convert(target).Interface().(T), nil
	}
	if value.Kind() == reflect.Map || value.Kind() == reflect.Slice {
		payload, err := json.Marshal(result)
		if err == nil {
			var out T
			if err := json.Unmarshal(payload, &out); err == nil {
				return out, nil
			}
		}
	}
	return zero, errors.Wrapf(ErrInvalidArgument, "result %T is not assignable to %s", result, target)
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isIntegerKind(kind reflect.Kind) bool {
	return isNumericKind(kind) && kind != reflect.Float32 && kind != reflect.Float64
}
