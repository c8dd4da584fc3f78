//go:build js_eval

package scope

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
)

// JSHandler compiles expression with goja into a Handler. Each invocation
// runs in a fresh runtime with value, args and call bound as globals, plus
// one global per registered function.
func JSHandler[T any](expression string, opts ...EvaluatorOption) (Handler[T], error) {
	cfg := applyEvaluatorOptions(opts)
	if strings.TrimSpace(expression) == "" {
		return nil, wrapHandlerError(jsEngine, "", cfg.method, errors.Wrap(ErrInvalidArgument, "expression must not be empty"))
	}
	program, err := compileJS(cfg, expression)
	if err != nil {
		return nil, err
	}
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			started := time.Now()
			result, err := runJS(cfg, program, current, args)
			return finish[T](cfg, jsEngine, expression, len(args), started, result, err)
		}
	}, nil
}

// JSAvailable reports whether JSHandler is compiled in.
func JSAvailable() bool {
	return true
}

func compileJS(cfg evaluatorConfig, expression string) (*goja.Program, error) {
	if cached, ok := cfg.lookup(jsEngine, expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return program, nil
		}
	}
	program, err := goja.Compile("", wrapJSExpression(expression), false)
	if err != nil {
		return nil, wrapHandlerError(jsEngine, expression, cfg.method, err)
	}
	cfg.store(jsEngine, expression, program)
	return program, nil
}

func runJS(cfg evaluatorConfig, program *goja.Program, current any, args []any) (any, error) {
	vm := goja.New()
	if err := vm.Set("value", current); err != nil {
		return nil, err
	}
	if err := vm.Set("args", args); err != nil {
		return nil, err
	}
	if registry := cfg.registry; registry != nil {
		if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}); err != nil {
			return nil, err
		}
		for _, name := range registry.Names() {
			fn := name
			if err := vm.Set(fn, func(arguments ...any) (any, error) {
				return registry.Call(fn, arguments...)
			}); err != nil {
				return nil, err
			}
		}
	}
	value, err := vm.RunProgram(program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}

func wrapJSExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}
