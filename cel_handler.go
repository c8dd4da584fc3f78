package scope

import (
	"reflect"
	"strings"
	"time"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/pkg/errors"
)

const celEngine = "cel"

// CELHandler compiles expression with cel-go into a Handler. value is
// declared dyn and args as list(dyn); call(name) and call(name, [args])
// reach registered functions.
func CELHandler[T any](expression string, opts ...EvaluatorOption) (Handler[T], error) {
	cfg := applyEvaluatorOptions(opts)
	if strings.TrimSpace(expression) == "" {
		return nil, wrapHandlerError(celEngine, "", cfg.method, errors.Wrap(ErrInvalidArgument, "expression must not be empty"))
	}
	program, err := compileCEL(cfg, expression)
	if err != nil {
		return nil, err
	}
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			started := time.Now()
			if args == nil {
				args = []any{}
			}
			out, _, err := program.Eval(map[string]any{
				"value": current,
				"args":  args,
			})
			var result any
			if err == nil {
				result, err = celResult[T](out)
			}
			return finish[T](cfg, celEngine, expression, len(args), started, result, err)
		}
	}, nil
}

func compileCEL(cfg evaluatorConfig, expression string) (celgo.Program, error) {
	if cached, ok := cfg.lookup(celEngine, expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return program, nil
		}
	}
	env, err := celEnvironment(cfg.registry)
	if err != nil {
		return nil, wrapHandlerError(celEngine, expression, cfg.method, err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapHandlerError(celEngine, expression, cfg.method, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, wrapHandlerError(celEngine, expression, cfg.method, err)
	}
	cfg.store(celEngine, expression, program)
	return program, nil
}

func celEnvironment(registry *FunctionRegistry) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("value", celgo.DynType),
		celgo.Variable("args", celgo.ListType(celgo.DynType)),
	}
	if registry != nil {
		opts = append(opts, celgo.Function("call",
			celgo.Overload("call_string",
				[]*celgo.Type{celgo.StringType},
				celgo.DynType,
				celgo.UnaryBinding(func(name ref.Val) ref.Val {
					return celCall(registry, name, nil)
				}),
			),
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(func(name, list ref.Val) ref.Val {
					native, err := list.ConvertToNative(reflect.TypeOf([]any{}))
					if err != nil {
						return types.NewErr("call arguments: %v", err)
					}
					return celCall(registry, name, native.([]any))
				}),
			),
		))
	}
	return celgo.NewEnv(opts...)
}

func celCall(registry *FunctionRegistry, name ref.Val, args []any) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("call name must be string")
	}
	result, err := registry.Call(fn, args...)
	if err != nil {
		return types.NewErr("%v", err)
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

// celResult unwraps a CEL value, converting straight to T when T is a
// concrete type.
func celResult[T any](out ref.Val) (any, error) {
	target := reflect.TypeOf((*T)(nil)).Elem()
	if target.Kind() != reflect.Interface {
		if native, err := out.ConvertToNative(target); err == nil {
			return native, nil
		}
	}
	if _, isNull := out.(types.Null); isNull {
		return nil, nil
	}
	switch out.Type() {
	case types.MapType:
		return out.ConvertToNative(reflect.TypeOf(map[string]any{}))
	case types.ListType:
		return out.ConvertToNative(reflect.TypeOf([]any{}))
	}
	return out.Value(), nil
}
