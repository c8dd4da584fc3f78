// Package scenario runs a tree of scope operations against a Context[any]
// and records what every read observed.
package scenario

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	scope "github.com/goliatone/go-scope"
)

// Step operations.
const (
	OpScope     = "scope"
	OpSet       = "set"
	OpCall      = "call"
	OpIncrement = "increment"
	OpRead      = "read"
	OpDestroy   = "destroy"
	OpGo        = "go"
)

// ErrUnknownOp indicates a step with an unsupported op.
var ErrUnknownOp = errors.New("scenario: unknown op")

// ErrExpectation indicates a read that did not observe the expected value.
var ErrExpectation = errors.New("scenario: expectation failed")

// Step is one operation. scope and go steps carry nested steps; every other
// op acts on the innermost open scope.
type Step struct {
	Op     string `json:"op" yaml:"op"`
	Label  string `json:"label,omitempty" yaml:"label,omitempty"`
	Value  any    `json:"value,omitempty" yaml:"value,omitempty"`
	Method string `json:"method,omitempty" yaml:"method,omitempty"`
	Args   []any  `json:"args,omitempty" yaml:"args,omitempty"`
	Expect any    `json:"expect,omitempty" yaml:"expect,omitempty"`
	Steps  []Step `json:"steps,omitempty" yaml:"steps,omitempty"`
}

// Observation records the outcome of one step.
type Observation struct {
	Path    string        `json:"path"`
	Op      string        `json:"op"`
	Label   string        `json:"label,omitempty"`
	ScopeID int           `json:"scope_id"`
	Value   any           `json:"value,omitempty"`
	Outcome scope.Outcome `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Report is the result of one run.
type Report struct {
	RunID        string        `json:"run_id"`
	Instance     uint64        `json:"instance"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Observations []Observation `json:"observations"`
	Failures     int           `json:"failures"`
}

// Runner executes steps against one container.
type Runner struct {
	ctx    *scope.Context[any]
	logger zerolog.Logger

	mu     sync.Mutex
	report *Report
}

// NewRunner binds a runner to ctx.
func NewRunner(ctx *scope.Context[any], logger zerolog.Logger) *Runner {
	return &Runner{ctx: ctx, logger: logger}
}

// Run executes steps and returns the report. Step errors are recorded as
// observations. The returned error reports structural problems such as
// unknown ops first, then expectation failures.
func (r *Runner) Run(steps []Step) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Instance:  r.ctx.Instance(),
		StartedAt: time.Now(),
	}
	r.mu.Lock()
	r.report = report
	r.mu.Unlock()

	log := r.logger.With().Str("run_id", report.RunID).Logger()
	log.Debug().Int("steps", len(steps)).Msg("scenario started")

	err := r.runSteps(steps, nil, "")
	report.Duration = time.Since(report.StartedAt)
	if err == nil && report.Failures > 0 {
		err = errors.Wrapf(ErrExpectation, "%d failed expectation(s)", report.Failures)
	}

	log.Debug().Int("observations", len(report.Observations)).Dur("duration", report.Duration).Msg("scenario finished")
	return report, err
}

func (r *Runner) runSteps(steps []Step, open []*scope.Scope[any], prefix string) error {
	for i, step := range steps {
		path := strconv.Itoa(i)
		if prefix != "" {
			path = prefix + "." + path
		}
		if err := r.runStep(step, open, path); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStep(step Step, open []*scope.Scope[any], path string) error {
	obs := Observation{Path: path, Op: step.Op, Label: step.Label, ScopeID: -1}
	var current *scope.Scope[any]
	if len(open) > 0 {
		current = open[len(open)-1]
		obs.ScopeID = current.ID()
	}

	switch strings.ToLower(step.Op) {
	case OpScope:
		return r.ctx.Scope(func(s *scope.Scope[any]) error {
			obs.ScopeID = s.ID()
			obs.Value = s.Value()
			r.record(obs)
			nested := append(append([]*scope.Scope[any]{}, open...), s)
			return r.runSteps(step.Steps, nested, path)
		})
	case OpGo:
		r.record(obs)
		done := make(chan error, 1)
		go func() {
			done <- r.runSteps(step.Steps, open, path)
		}()
		return <-done
	case OpRead:
		res := r.ctx.Resolve()
		obs.ScopeID = res.ScopeID
		obs.Outcome = res.Outcome
		if res.OK() {
			obs.Value = res.Value
		} else if _, err := r.ctx.Value(); err != nil {
			obs.Error = err.Error()
		}
		if step.Expect != nil && !sameValue(step.Expect, obs.Value) {
			obs.Error = fmt.Sprintf("expected %v, got %v", step.Expect, obs.Value)
			r.fail()
		}
		r.record(obs)
		return nil
	case OpSet, OpCall, OpIncrement, OpDestroy:
		if current == nil {
			obs.Error = "no open scope"
			r.record(obs)
			return nil
		}
		value, err := apply(current, step)
		obs.Value = value
		if err != nil {
			obs.Error = err.Error()
		}
		r.record(obs)
		return nil
	default:
		return errors.Wrapf(ErrUnknownOp, "%q at step %s", step.Op, path)
	}
}

func apply(s *scope.Scope[any], step Step) (any, error) {
	switch strings.ToLower(step.Op) {
	case OpSet:
		return s.Set(step.Value)
	case OpIncrement:
		if step.Value == nil {
			return s.Increment()
		}
		return s.Increment(step.Value)
	case OpCall:
		if step.Method == "" {
			return nil, errors.Wrap(scope.ErrInvalidArgument, "call step needs a method")
		}
		return s.Call(step.Method, step.Args...)
	default:
		s.Destroy()
		return nil, nil
	}
}

func (r *Runner) record(obs Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Observations = append(r.report.Observations, obs)
}

func (r *Runner) fail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failures++
}

// sameValue compares values loosely so that numbers decoded from YAML match
// numbers produced by handlers.
func sameValue(expected, actual any) bool {
	if reflect.DeepEqual(expected, actual) {
		return true
	}
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}
