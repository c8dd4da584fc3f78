package scope

import (
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
)

const exprEngine = "expr"

// ExprHandler compiles expression with github.com/expr-lang/expr into a
// Handler. The expression sees the current value as value and the call
// arguments as args; its result becomes the next value. Registered
// functions are callable by name or through call(name, ...).
func ExprHandler[T any](expression string, opts ...EvaluatorOption) (Handler[T], error) {
	cfg := applyEvaluatorOptions(opts)
	if strings.TrimSpace(expression) == "" {
		return nil, wrapHandlerError(exprEngine, "", cfg.method, errors.Wrap(ErrInvalidArgument, "expression must not be empty"))
	}
	program, err := compileExpr(cfg, expression)
	if err != nil {
		return nil, err
	}
	return func(current T) func(args ...any) (T, error) {
		return func(args ...any) (T, error) {
			started := time.Now()
			result, err := exprlang.Run(program, map[string]any{
				"value": current,
				"args":  args,
			})
			return finish[T](cfg, exprEngine, expression, len(args), started, result, err)
		}
	}, nil
}

func compileExpr(cfg evaluatorConfig, expression string) (*exprvm.Program, error) {
	if cached, ok := cfg.lookup(exprEngine, expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	if registry := cfg.registry; registry != nil {
		options = append(options, exprlang.Function("call", func(params ...any) (any, error) {
			if len(params) == 0 {
				return nil, errors.New("call requires a function name")
			}
			name, ok := params[0].(string)
			if !ok {
				return nil, errors.Errorf("call name must be a string, got %T", params[0])
			}
			return registry.Call(name, params[1:]...)
		}))
		for _, name := range registry.Names() {
			fn := name
			options = append(options, exprlang.Function(fn, func(params ...any) (any, error) {
				return registry.Call(fn, params...)
			}))
		}
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapHandlerError(exprEngine, expression, cfg.method, err)
	}
	cfg.store(exprEngine, expression, program)
	return program, nil
}

// finish converts an engine result, wraps failures and notifies the handler
// logger.
func finish[T any](cfg evaluatorConfig, engine, expression string, args int, started time.Time, result any, err error) (T, error) {
	var next T
	if err == nil {
		next, err = convertResult[T](result)
	}
	if err != nil {
		err = wrapHandlerError(engine, expression, cfg.method, err)
	}
	cfg.logger.LogHandler(HandlerLogEvent{
		Engine:   engine,
		Expr:     expression,
		Method:   cfg.method,
		Args:     args,
		Duration: time.Since(started),
		Err:      err,
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return next, nil
}
