//go:build !js_eval

package scope

import "github.com/pkg/errors"

// JSHandler is unavailable without the js_eval build tag.
func JSHandler[T any](expression string, opts ...EvaluatorOption) (Handler[T], error) {
	cfg := applyEvaluatorOptions(opts)
	return nil, wrapHandlerError(jsEngine, expression, cfg.method, errors.Wrap(ErrEngineUnavailable, "rebuild with -tags js_eval"))
}

// JSAvailable reports whether JSHandler is compiled in.
func JSAvailable() bool {
	return false
}
