package scope

// Outcome classifies a resolution.
type Outcome string

const (
	// OutcomeResolved means an initialized scope supplied the value.
	OutcomeResolved Outcome = "resolved"
	// OutcomeUninitialized means the nearest live scope was never written.
	OutcomeUninitialized Outcome = "uninitialized"
	// OutcomeNoScope means no live scope encloses the caller.
	OutcomeNoScope Outcome = "no_scope"
	// OutcomeInitial means no scope could supply a value and the configured
	// initial value stood in.
	OutcomeInitial Outcome = "initial"
)

// Resolution is the full result of resolving the current value.
type Resolution[T any] struct {
	Value T
	// ScopeID is the nearest live scope, or -1.
	ScopeID int
	Outcome Outcome
	Trace   Trace
}

// OK reports whether Value is usable: either a scope supplied it or the
// initial value stood in.
func (r Resolution[T]) OK() bool {
	return r.Outcome == OutcomeResolved || r.Outcome == OutcomeInitial
}

// Value resolves the value of the innermost live scope enclosing the caller.
//
// The nearest live scope always decides: if it has never been written,
// resolution stops there even when an outer scope holds a value. When no
// scope can supply a value the initial value is returned; without one the
// failure is an ErrNoScope or ErrUninitializedScope error in strict mode, or
// a logged warning and the zero value otherwise.
func (c *Context[T]) Value() (T, error) {
	return c.valueOf(c.extractor.Current())
}

// MustValue is Value that panics on error.
func (c *Context[T]) MustValue() T {
	value, err := c.Value()
	if err != nil {
		panic(err)
	}
	return value
}

// Lookup resolves without reporting errors. id is -1 when the value did not
// come from a scope; ok is false when there is neither a scope value nor an
// initial value.
func (c *Context[T]) Lookup() (value T, id int, ok bool) {
	return c.lookup(c.extractor.Current())
}

// Resolve returns the resolution for the caller along with a trace of every
// candidate scope. It never reports errors.
func (c *Context[T]) Resolve() Resolution[T] {
	return c.resolve(c.extractor.Current())
}

func (c *Context[T]) valueOf(ids []int) (T, error) {
	res := c.resolve(ids)
	if res.OK() {
		return res.Value, nil
	}
	var zero T
	var err error
	if res.Outcome == OutcomeUninitialized {
		err = uninitializedScopeError(res.ScopeID)
	} else {
		err = noScopeError()
	}
	return zero, c.report(err)
}

func (c *Context[T]) lookup(ids []int) (T, int, bool) {
	res := c.resolve(ids)
	switch {
	case res.Outcome == OutcomeResolved:
		return res.Value, res.ScopeID, true
	case res.Outcome == OutcomeInitial:
		return res.Value, -1, true
	default:
		var zero T
		return zero, -1, false
	}
}

// resolve walks ids innermost first. The first live record decides.
func (c *Context[T]) resolve(ids []int) Resolution[T] {
	res := Resolution[T]{
		ScopeID: -1,
		Outcome: OutcomeNoScope,
		Trace: Trace{
			Instance:   c.instance,
			Candidates: make([]Candidate, 0, len(ids)),
		},
	}
	decided := false
	for _, id := range ids {
		record, live := c.scopes.Get(id)
		candidate := Candidate{ID: id, Live: live, Initialized: live && record.Initialized}
		if live && !decided {
			decided = true
			candidate.Selected = true
			res.ScopeID = id
			if record.Initialized {
				res.Value = record.Value
				res.Outcome = OutcomeResolved
			} else {
				res.Outcome = OutcomeUninitialized
			}
		}
		res.Trace.Candidates = append(res.Trace.Candidates, candidate)
	}
	if res.Outcome != OutcomeResolved && c.cfg.hasInitial {
		res.Value = c.cfg.initial
		res.Outcome = OutcomeInitial
	}
	res.Trace.Outcome = res.Outcome
	return res
}
