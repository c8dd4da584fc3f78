// Package config loads scopectl scenario files.
package config

import (
	"os"
	"strings"

	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	scope "github.com/goliatone/go-scope"
	"github.com/goliatone/go-scope/internal/hydrate"
	"github.com/goliatone/go-scope/pkg/scenario"
)

// Strictness values.
const (
	StrictnessError = "error"
	StrictnessWarn  = "warn"
)

// Handler engines.
const (
	EngineExpr  = "expr"
	EngineCEL   = "cel"
	EngineJS    = "js"
	EngineMerge = "merge"
)

// ErrInvalidConfig indicates a file that decoded but cannot be used.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// File is a scenario file.
type File struct {
	// Strictness selects how misuse is reported: "error" returns errors,
	// "warn" logs and continues.
	Strictness string          `json:"strictness" yaml:"strictness"`
	Initial    any             `json:"initial,omitempty" yaml:"initial,omitempty"`
	Handlers   []HandlerSpec   `json:"handlers,omitempty" yaml:"handlers,omitempty"`
	Activity   ActivitySpec    `json:"activity" yaml:"activity"`
	Scenario   []scenario.Step `json:"scenario" yaml:"scenario"`
}

// HandlerSpec declares a named handler built from an expression.
type HandlerSpec struct {
	Name   string `json:"name" yaml:"name"`
	Engine string `json:"engine" yaml:"engine"`
	Expr   string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// ActivitySpec configures lifecycle activity for a run.
type ActivitySpec struct {
	Channel string `json:"channel" yaml:"channel"`
	Actor   string `json:"actor,omitempty" yaml:"actor,omitempty"`
	Tenant  string `json:"tenant,omitempty" yaml:"tenant,omitempty"`
	Topic   string `json:"topic,omitempty" yaml:"topic,omitempty"`
}

var defaultFile = &File{
	Strictness: StrictnessError,
	Activity: ActivitySpec{
		Channel: "context-scope",
		Topic:   "context-scope.activity",
	},
}

// Default returns a fresh copy of the defaults.
func Default() *File {
	return deepcopy.Copy(defaultFile).(*File)
}

// Load reads and decodes path.
func Load(path string) (*File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	return Parse(path, b)
}

// Parse decodes a YAML document. name labels errors.
func Parse(name string, data []byte) (*File, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse yaml")
	}
	if raw == nil {
		raw = map[string]any{}
	}

	decoder := hydrate.NewDecoder[File](
		hydrate.WithDisallowUnknownFields[File](),
		hydrate.WithPreHook[File](normalizeStrict),
		hydrate.WithPostHook[File](applyDefaults),
		hydrate.WithPostHook[File](validate),
	)
	f, err := decoder.Decode(hydrate.Source{Path: name}, raw)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// normalizeStrict accepts the boolean shorthand strict: true|false.
func normalizeStrict(_ hydrate.Source, payload map[string]any) (map[string]any, error) {
	value, ok := payload["strict"]
	if !ok {
		return nil, nil
	}
	delete(payload, "strict")
	strict, isBool := value.(bool)
	if !isBool {
		return nil, errors.Wrapf(ErrInvalidConfig, "strict must be a boolean, got %T", value)
	}
	if _, explicit := payload["strictness"]; !explicit {
		payload["strictness"] = StrictnessWarn
		if strict {
			payload["strictness"] = StrictnessError
		}
	}
	return payload, nil
}

func applyDefaults(_ hydrate.Source, f *File) error {
	defaults := Default()
	if f.Strictness == "" {
		f.Strictness = defaults.Strictness
	}
	if f.Activity.Channel == "" {
		f.Activity.Channel = defaults.Activity.Channel
	}
	if f.Activity.Topic == "" {
		f.Activity.Topic = defaults.Activity.Topic
	}
	for i := range f.Handlers {
		if f.Handlers[i].Engine == "" {
			f.Handlers[i].Engine = EngineExpr
		}
	}
	return nil
}

func validate(src hydrate.Source, f *File) error {
	f.Strictness = strings.ToLower(strings.TrimSpace(f.Strictness))
	switch f.Strictness {
	case StrictnessError, StrictnessWarn:
	default:
		return errors.Wrapf(ErrInvalidConfig, "strictness must be %q or %q, got %q", StrictnessError, StrictnessWarn, f.Strictness)
	}
	seen := map[string]bool{}
	for _, h := range f.Handlers {
		if h.Name == "" {
			return errors.Wrap(ErrInvalidConfig, "handler name must not be empty")
		}
		if seen[h.Name] {
			return errors.Wrapf(ErrInvalidConfig, "handler %q declared twice", h.Name)
		}
		seen[h.Name] = true
		switch h.Engine {
		case EngineExpr, EngineCEL, EngineJS:
			if strings.TrimSpace(h.Expr) == "" {
				return errors.Wrapf(ErrInvalidConfig, "handler %q needs an expression", h.Name)
			}
		case EngineMerge:
		default:
			return errors.Wrapf(ErrInvalidConfig, "handler %q has unknown engine %q", h.Name, h.Engine)
		}
	}
	return validateSteps(f.Scenario, "scenario")
}

func validateSteps(steps []scenario.Step, path string) error {
	for i, step := range steps {
		switch strings.ToLower(step.Op) {
		case scenario.OpScope, scenario.OpGo:
			if err := validateSteps(step.Steps, path+"."+step.Op); err != nil {
				return err
			}
		case scenario.OpSet, scenario.OpCall, scenario.OpIncrement, scenario.OpRead, scenario.OpDestroy:
			if len(step.Steps) > 0 {
				return errors.Wrapf(ErrInvalidConfig, "%s[%d]: %s step cannot nest steps", path, i, step.Op)
			}
		default:
			return errors.Wrapf(ErrInvalidConfig, "%s[%d]: unknown op %q", path, i, step.Op)
		}
	}
	return nil
}

// Strict reports whether misuse should be returned as errors.
func (f *File) Strict() bool {
	return f.Strictness != StrictnessWarn
}

// Options builds the container options described by the file. Handler
// expressions are compiled with a shared program cache.
func (f *File) Options(logger zerolog.Logger, extra ...scope.EvaluatorOption) ([]scope.Option[any], error) {
	opts := []scope.Option[any]{
		scope.WithStrictMode[any](f.Strict()),
		scope.WithLogger[any](logger),
		scope.WithActivityChannel[any](f.Activity.Channel),
		scope.WithActivityIdentity[any](f.Activity.Actor, f.Activity.Tenant),
	}
	if f.Initial != nil {
		opts = append(opts, scope.WithInitialValue[any](f.Initial))
	}

	cache := scope.NewMemoryProgramCache()
	for _, spec := range f.Handlers {
		handler, err := spec.Build(append([]scope.EvaluatorOption{
			scope.WithProgramCache(cache),
			scope.WithHandlerLogger(scope.ZerologHandlerLogger(logger)),
		}, extra...)...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scope.WithHandler[any](spec.Name, handler))
	}
	return opts, nil
}

// Build compiles the handler.
func (h HandlerSpec) Build(opts ...scope.EvaluatorOption) (scope.Handler[any], error) {
	opts = append(opts, scope.WithMethodName(h.Name))
	switch h.Engine {
	case EngineExpr, "":
		return scope.ExprHandler[any](h.Expr, opts...)
	case EngineCEL:
		return scope.CELHandler[any](h.Expr, opts...)
	case EngineJS:
		return scope.JSHandler[any](h.Expr, opts...)
	case EngineMerge:
		return scope.MergeHandler[any](), nil
	default:
		return nil, errors.Wrapf(ErrInvalidConfig, "handler %q has unknown engine %q", h.Name, h.Engine)
	}
}
