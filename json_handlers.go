package scope

import (
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	setPathMethod    = "setPath"
	deletePathMethod = "deletePath"
)

// JSONPathHandlers returns handlers editing a JSON document held as a string:
// setPath(path, value) and deletePath(path). Paths use gjson syntax.
func JSONPathHandlers() map[string]Handler[string] {
	return map[string]Handler[string]{
		setPathMethod:    setPathHandler,
		deletePathMethod: deletePathHandler,
	}
}

func setPathHandler(current string) func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		if len(args) != 2 {
			return "", errors.Wrapf(ErrInvalidArgument, "setPath expects 2 arguments, got %d", len(args))
		}
		path, ok := args[0].(string)
		if !ok || path == "" {
			return "", errors.Wrapf(ErrInvalidArgument, "setPath expects a path string, got %T", args[0])
		}
		if current != "" && !gjson.Valid(current) {
			return "", errors.Wrap(ErrInvalidArgument, "current value is not valid JSON")
		}
		next, err := sjson.Set(current, path, args[1])
		if err != nil {
			return "", errors.Wrapf(ErrInvalidArgument, "setPath %q: %v", path, err)
		}
		return next, nil
	}
}

func deletePathHandler(current string) func(args ...any) (string, error) {
	return func(args ...any) (string, error) {
		if len(args) != 1 {
			return "", errors.Wrapf(ErrInvalidArgument, "deletePath expects 1 argument, got %d", len(args))
		}
		path, ok := args[0].(string)
		if !ok || path == "" {
			return "", errors.Wrapf(ErrInvalidArgument, "deletePath expects a path string, got %T", args[0])
		}
		next, err := sjson.Delete(current, path)
		if err != nil {
			return "", errors.Wrapf(ErrInvalidArgument, "deletePath %q: %v", path, err)
		}
		return next, nil
	}
}

// JSONPath resolves the caller's JSON document like Value and returns the
// element at path.
func JSONPath(c *Context[string], path string) (gjson.Result, error) {
	document, err := c.Value()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Get(document, path), nil
}
