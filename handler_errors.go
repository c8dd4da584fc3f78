package scope

import (
	"fmt"

	"github.com/pkg/errors"
)

// HandlerError captures expression handler metadata alongside the
// originating error.
type HandlerError struct {
	Engine string
	Expr   string
	Method string
	Err    error
}

func (e *HandlerError) Error() string {
	if e == nil {
		return "<nil>"
	}
	method := e.Method
	if method == "" {
		method = "<anonymous>"
	}
	return fmt.Sprintf("scope: %s handler %s method=%s: %v", e.Engine, describeExpression(e.Expr), method, e.Err)
}

func (e *HandlerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// wrapHandlerError attaches metadata to err, filling only the fields an
// existing HandlerError leaves empty.
func wrapHandlerError(engine, expr, method string, err error) error {
	if err == nil {
		return nil
	}

	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		if handlerErr.Engine == "" {
			handlerErr.Engine = engine
		}
		if handlerErr.Expr == "" {
			handlerErr.Expr = expr
		}
		if handlerErr.Method == "" {
			handlerErr.Method = method
		}
		return handlerErr
	}

	return &HandlerError{
		Engine: engine,
		Expr:   expr,
		Method: method,
		Err:    err,
	}
}

// ErrEngineUnavailable indicates an expression engine left out of the build.
var ErrEngineUnavailable = errors.New("scope: expression engine unavailable")
