package scope

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoScope indicates a value lookup with no enclosing scope and no
	// initial value.
	ErrNoScope = errors.New("scope: no enclosing scope")
	// ErrUninitializedScope indicates the nearest live scope was never
	// written and no initial value was configured.
	ErrUninitializedScope = errors.New("scope: enclosing scope is uninitialized")
	// ErrScopeDestroyed indicates a write to a scope that has been destroyed.
	ErrScopeDestroyed = errors.New("scope: scope has been destroyed")
	// ErrUnknownHandler indicates a call to a method no handler is bound to.
	ErrUnknownHandler = errors.New("scope: unknown handler")
	// ErrNotNumeric indicates increment on a non-numeric value or amount.
	ErrNotNumeric = errors.New("scope: value is not numeric")
	// ErrInvalidArgument indicates a handler received unusable arguments.
	ErrInvalidArgument = errors.New("scope: invalid argument")
)

const (
	noScopeMessage = "Failed to locate a parent context scope!\n\n" +
		"(whilst evaluating a getter on `context.value`)"
	uninitializedScopeMessage = "The parent context scope was uninitialized!\n" +
		"As `initialValue` was not specified, you need to\n" +
		"manually call `scope.set` before attempting to reference its value\n\n" +
		"(whilst evaluating a getter on `context.value`)"
)

func scopeDestroyedMessage(id int, method string) string {
	msg := fmt.Sprintf("Parent context scope #%d has been destroyed! ", id)
	if method != "" {
		msg += fmt.Sprintf("\n\n(whilst evaluating a call to `scope.%s`)", method)
	}
	return msg
}

// ScopeError describes a misuse of a Context. Kind is one of ErrNoScope,
// ErrUninitializedScope or ErrScopeDestroyed and is reachable through
// errors.Is.
type ScopeError struct {
	Kind    error
	ScopeID int
	Method  string
	Message string
}

func (e *ScopeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *ScopeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Kind
}

func noScopeError() error {
	return &ScopeError{Kind: ErrNoScope, ScopeID: -1, Message: noScopeMessage}
}

func uninitializedScopeError(id int) error {
	return &ScopeError{Kind: ErrUninitializedScope, ScopeID: id, Message: uninitializedScopeMessage}
}

func scopeDestroyedError(id int, method string) error {
	return &ScopeError{
		Kind:    ErrScopeDestroyed,
		ScopeID: id,
		Method:  method,
		Message: scopeDestroyedMessage(id, method),
	}
}

// report is the single failure path. Strict contexts return err; lenient ones
// log it as a warning and carry on.
func (c *Context[T]) report(err error) error {
	if err == nil {
		return nil
	}
	if c.cfg.strict {
		return err
	}
	event := c.cfg.logger.Warn().Uint64("instance", c.instance)
	var scopeErr *ScopeError
	if errors.As(err, &scopeErr) {
		if scopeErr.ScopeID >= 0 {
			event = event.Int("scope_id", scopeErr.ScopeID)
		}
		if scopeErr.Method != "" {
			event = event.Str("method", scopeErr.Method)
		}
		event.Msg("[context-scope] " + scopeErr.Message)
		return nil
	}
	event.Err(err).Msg("[context-scope]")
	return nil
}
