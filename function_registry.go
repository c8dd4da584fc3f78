package scope

import (
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Function is a Go helper an expression handler can call, either by its own
// name or through call(name, ...).
type Function func(args ...any) (any, error)

var registryGenerations atomic.Uint64

// FunctionRegistry holds the helpers visible to expression handlers. Names
// are matched case-insensitively.
//
// Every registry carries a generation that changes whenever a helper is
// added. Compiled programs bind the helpers they were compiled against, so
// the generation is part of the program cache key.
type FunctionRegistry struct {
	mu         sync.RWMutex
	functions  map[string]Function
	generation uint64
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions:  make(map[string]Function),
		generation: registryGenerations.Add(1),
	}
}

// Register adds fn as helper name. A name can only be bound once per
// registry.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.Wrap(ErrInvalidArgument, "helper name must not be empty")
	}
	if fn == nil {
		return errors.Wrapf(ErrInvalidArgument, "helper %q has no implementation", name)
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]Function)
	}
	if _, taken := r.functions[key]; taken {
		return errors.Wrapf(ErrInvalidArgument, "helper %q is already bound", name)
	}
	r.functions[key] = fn
	r.generation = registryGenerations.Add(1)
	return nil
}

// Clone copies the helper table. The copy shares the original's generation
// until either side registers something new.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{
		functions:  make(map[string]Function, len(r.functions)),
		generation: r.generation,
	}
	for key, fn := range r.functions {
		out.functions[key] = fn
	}
	return out
}

// Call runs helper name with args. Unknown helpers are reported with
// ErrUnknownHandler so a handler failure reads the same as a missing method.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, errors.Wrapf(ErrUnknownHandler, "no helpers available for %q", name)
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, errors.Wrapf(ErrUnknownHandler, "helper %q", name)
	}
	return fn(args...)
}

// Names lists the bound helpers, lowercased and sorted.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.functions))
	for key := range r.functions {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func (r *FunctionRegistry) fingerprint() uint64 {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generation
}
