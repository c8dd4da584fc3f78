package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	scope "github.com/goliatone/go-scope"
)

const sample = `
strict: false
initial: 1
activity:
  actor: 7f3c2a9e-1d4b-4c55-9a0e-2b1f6f0d8c11
handlers:
  - name: double
    expr: value * 2
  - name: bump
    engine: cel
    expr: value + 10.0
scenario:
  - op: scope
    steps:
      - op: increment
      - op: call
        method: double
      - op: read
        expect: 4
`

func TestParseAppliesDefaultsAndShorthand(t *testing.T) {
	f, err := Parse("sample.yaml", []byte(sample))
	require.NoError(t, err)

	require.Equal(t, StrictnessWarn, f.Strictness)
	require.False(t, f.Strict())
	require.Equal(t, "context-scope", f.Activity.Channel)
	require.Equal(t, "context-scope.activity", f.Activity.Topic)
	require.Len(t, f.Handlers, 2)
	require.Equal(t, EngineExpr, f.Handlers[0].Engine)
	require.Equal(t, EngineCEL, f.Handlers[1].Engine)
	require.Len(t, f.Scenario, 1)
	require.Len(t, f.Scenario[0].Steps, 3)
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.Activity.Channel = "changed"
	require.Equal(t, "context-scope", Default().Activity.Channel)
}

func TestParseRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"bad strictness": "strictness: maybe\n",
		"strict type":    "strict: sometimes\n",
		"unknown engine": "handlers:\n  - name: x\n    engine: lua\n    expr: value\n",
		"missing expr":   "handlers:\n  - name: x\n",
		"duplicate":      "handlers:\n  - {name: x, expr: value}\n  - {name: x, expr: value}\n",
		"unknown op":     "scenario:\n  - op: jump\n",
		"nested read":    "scenario:\n  - op: read\n    steps:\n      - op: read\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(name, []byte(doc))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig), "expected ErrInvalidConfig, got %v", err)
		})
	}

	_, err := Parse("unknown-field", []byte("initail: 1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown field")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestOptionsBuildWorkingContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	opts, err := f.Options(zerolog.Nop())
	require.NoError(t, err)

	ctx := scope.New(opts...)
	require.False(t, ctx.Strict())

	got, err := scope.With(ctx, func(s *scope.Scope[any]) (any, error) {
		if _, err := s.Increment(); err != nil {
			return nil, err
		}
		if _, err := s.Call("double"); err != nil {
			return nil, err
		}
		return s.Call("bump")
	})
	require.NoError(t, err)
	require.EqualValues(t, 14, got)
}
