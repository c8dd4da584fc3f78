package scope

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

type settings struct {
	Theme string
	Lang  string
	Flags map[string]bool
}

func TestSetHandlerArguments(t *testing.T) {
	set := SetHandler[int]()

	if _, err := set(1)(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without arguments, got %v", err)
	}
	if _, err := set(1)("x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for wrong type, got %v", err)
	}
	got, err := set(1)(func(current int) int { return current + 10 })
	if err != nil || got != 11 {
		t.Fatalf("expected 11, got %d (%v)", got, err)
	}
	got, err = set(1)(nil)
	if err != nil || got != 0 {
		t.Fatalf("expected zero value for nil, got %d (%v)", got, err)
	}
}

func TestIncrementHandlerRejectsExtraArguments(t *testing.T) {
	if _, err := IncrementHandler[int]()(1)(1, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := IncrementHandler[int]()(1)("two"); !errors.Is(err, ErrNotNumeric) {
		t.Fatalf("expected ErrNotNumeric, got %v", err)
	}
}

func TestMergeHandler(t *testing.T) {
	ctx := New(
		WithInitialValue(settings{Theme: "light", Lang: "en"}),
		WithHandler("merge", MergeHandler[settings]()),
	)

	got, err := With(ctx, func(s *Scope[settings]) (settings, error) {
		return s.Call("merge",
			settings{Theme: "dark"},
			settings{Flags: map[string]bool{"beta": true}},
		)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Theme != "dark" || got.Lang != "en" || !got.Flags["beta"] {
		t.Fatalf("unexpected merge result %+v", got)
	}

	err = ctx.Scope(func(s *Scope[settings]) error {
		_, err := s.Call("merge", "nope")
		return err
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestSeedCloneIsolatesNestedScopes(t *testing.T) {
	ctx := New(
		WithInitialValue(map[string]int{"hits": 1}),
		WithSeedClone[map[string]int](true),
	)

	err := ctx.Scope(func(outer *Scope[map[string]int]) error {
		return ctx.Scope(func(inner *Scope[map[string]int]) error {
			inner.Value()["hits"] = 99
			if outer.Value()["hits"] != 1 {
				t.Fatalf("expected outer map untouched, got %v", outer.Value())
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSONPathHandlers(t *testing.T) {
	ctx := New(WithInitialValue(`{"user":{"name":"ada"}}`), WithHandlers(JSONPathHandlers()))

	err := ctx.Scope(func(s *Scope[string]) error {
		if _, err := s.Call("setPath", "user.email", "ada@example.com"); err != nil {
			return err
		}
		email, err := JSONPath(ctx, "user.email")
		if err != nil {
			return err
		}
		if email.String() != "ada@example.com" {
			t.Fatalf("expected email, got %q", email.String())
		}
		if _, err := s.Call("deletePath", "user.name"); err != nil {
			return err
		}
		name, err := JSONPath(ctx, "user.name")
		if err != nil {
			return err
		}
		if name.Exists() {
			t.Fatalf("expected name removed, got %s", s.Value())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ctx.Scope(func(s *Scope[string]) error {
		_, err := s.Call("setPath", 3, "x")
		return err
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestExprHandler(t *testing.T) {
	add, err := ExprHandler[int]("value + args[0]")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := New(WithInitialValue(2), WithHandler("add", add))

	got, err := With(ctx, func(s *Scope[int]) (int, error) {
		return s.Call("add", 40)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestExprHandlerFunctionsAndLogging(t *testing.T) {
	var events []HandlerLogEvent
	greet, err := ExprHandler[string](`shout(value) + " " + call("suffix")`,
		WithCustomFunction("shout", func(args ...any) (any, error) {
			return strings.ToUpper(args[0].(string)), nil
		}),
		WithCustomFunction("suffix", func(args ...any) (any, error) {
			return "!", nil
		}),
		WithMethodName("greet"),
		WithHandlerLogger(HandlerLoggerFunc(func(event HandlerLogEvent) {
			events = append(events, event)
		})),
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	got, err := greet("hi")()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "HI !" {
		t.Fatalf("expected HI !, got %q", got)
	}
	if len(events) != 1 || events[0].Engine != "expr" || events[0].Method != "greet" || events[0].Err != nil {
		t.Fatalf("unexpected log events %+v", events)
	}
}

func TestExprHandlerErrors(t *testing.T) {
	if _, err := ExprHandler[int](""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty expression, got %v", err)
	}

	_, err := ExprHandler[int]("value +", WithMethodName("broken"))
	var handlerErr *HandlerError
	if !errors.As(err, &handlerErr) {
		t.Fatalf("expected HandlerError, got %T", err)
	}
	if handlerErr.Engine != "expr" || handlerErr.Method != "broken" || handlerErr.Expr != "value +" {
		t.Fatalf("unexpected metadata %+v", handlerErr)
	}

	wrongType, err := ExprHandler[int](`"text"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := wrongType(0)(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected conversion failure, got %v", err)
	}
}

func TestExprHandlerRejectsFractionalIntegers(t *testing.T) {
	half, err := ExprHandler[int]("value / 2")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := half(5)(); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for 2.5 into int, got %v", err)
	}
	got, err := half(4)()
	if err != nil || got != 2 {
		t.Fatalf("expected 2, got %d (%v)", got, err)
	}
}

func TestProgramCacheSharedAcrossHandlers(t *testing.T) {
	cache := NewMemoryProgramCache()
	if _, err := ExprHandler[int]("value * 2", WithProgramCache(cache)); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := cache.Get("expr:value * 2"); !ok {
		t.Fatalf("expected compiled program in cache")
	}
	if _, err := CELHandler[int]("value * 2", WithProgramCache(cache)); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := cache.Get("cel:value * 2"); !ok {
		t.Fatalf("expected cel program cached under its own key")
	}
}

func TestProgramCacheSeparatesHelperSets(t *testing.T) {
	cache := NewMemoryProgramCache()
	constant := func(n int) Function {
		return func(args ...any) (any, error) { return n, nil }
	}
	first, err := ExprHandler[int]("f()", WithProgramCache(cache), WithCustomFunction("f", constant(1)))
	if err != nil {
		t.Fatalf("compile first: %v", err)
	}
	second, err := ExprHandler[int]("f()", WithProgramCache(cache), WithCustomFunction("f", constant(2)))
	if err != nil {
		t.Fatalf("compile second: %v", err)
	}
	a, errA := first(0)()
	b, errB := second(0)()
	if errA != nil || errB != nil {
		t.Fatalf("unexpected errors: %v / %v", errA, errB)
	}
	if a != 1 || b != 2 {
		t.Fatalf("expected each handler to call its own helper, got %d and %d", a, b)
	}

	celFirst, err := CELHandler[int](`call("f")`, WithProgramCache(cache), WithCustomFunction("f", constant(3)))
	if err != nil {
		t.Fatalf("compile cel first: %v", err)
	}
	celSecond, err := CELHandler[int](`call("f")`, WithProgramCache(cache), WithCustomFunction("f", constant(4)))
	if err != nil {
		t.Fatalf("compile cel second: %v", err)
	}
	c, _ := celFirst(0)()
	d, _ := celSecond(0)()
	if c != 3 || d != 4 {
		t.Fatalf("expected cel handlers to keep their helpers, got %d and %d", c, d)
	}

	shared := NewFunctionRegistry()
	if err := shared.Register("f", constant(5)); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := ExprHandler[int]("f()", WithProgramCache(cache), WithFunctionRegistry(shared)); err != nil {
		t.Fatalf("compile shared: %v", err)
	}
	if _, ok := cache.Get(cacheKey(exprEngine, shared.fingerprint(), "f()")); !ok {
		t.Fatalf("expected program cached under the registry generation")
	}
}

func TestCELHandler(t *testing.T) {
	double, err := CELHandler[int]("value * 2 + args.size()")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx := New(WithInitialValue(5), WithHandler("double", double))

	got, err := With(ctx, func(s *Scope[int]) (int, error) {
		return s.Call("double", "a", "b")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 12 {
		t.Fatalf("expected 12, got %d", got)
	}
}

func TestCELHandlerMapsAndFunctions(t *testing.T) {
	tag, err := CELHandler[map[string]any](`{"name": value.name, "tag": call("tag", [value.name])}`,
		WithCustomFunction("tag", func(args ...any) (any, error) {
			return "#" + args[0].(string), nil
		}),
	)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := tag(map[string]any{"name": "ada"})()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["name"] != "ada" || got["tag"] != "#ada" {
		t.Fatalf("unexpected result %v", got)
	}

	if _, err := CELHandler[int]("value +"); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestJSHandlerAvailability(t *testing.T) {
	handler, err := JSHandler[int]("value + 1")
	if JSAvailable() {
		if err != nil {
			t.Fatalf("compile: %v", err)
		}
		got, err := handler(1)()
		if err != nil || got != 2 {
			t.Fatalf("expected 2, got %d (%v)", got, err)
		}
		return
	}
	if !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestWrapHandlerErrorAugmentsExisting(t *testing.T) {
	base := errors.New("compile failure")
	existing := &HandlerError{Engine: "expr", Err: base}

	err := wrapHandlerError("cel", "rule", "greet", existing)
	if !errors.Is(err, base) {
		t.Fatalf("expected base error to unwrap")
	}
	if existing.Engine != "expr" {
		t.Fatalf("existing engine should not be overwritten, got %q", existing.Engine)
	}
	if existing.Expr != "rule" || existing.Method != "greet" {
		t.Fatalf("expected empty fields to be filled, got %+v", existing)
	}
	if wrapHandlerError("expr", "", "", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("Upper", func(args ...any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("upper", func(args ...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", func(args ...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	got, err := registry.Call("UPPER", "x")
	if err != nil || got != "X" {
		t.Fatalf("expected X, got %v (%v)", got, err)
	}
	clone := registry.Clone()
	_ = clone.Register("extra", func(args ...any) (any, error) { return nil, nil })
	if len(registry.Names()) != 1 || len(clone.Names()) != 2 {
		t.Fatalf("expected clone to be independent, got %v / %v", registry.Names(), clone.Names())
	}
	if _, err := registry.Call("missing"); !errors.Is(err, ErrUnknownHandler) {
		t.Fatalf("expected ErrUnknownHandler for a missing helper, got %v", err)
	}
	if registry.fingerprint() == clone.fingerprint() {
		t.Fatalf("expected registering on the clone to change its generation")
	}
}

func TestExprHandlerBuildsStructs(t *testing.T) {
	type cart struct {
		Items []string
		Total float64
	}
	add, err := ExprHandler[cart](`{"Items": concat(value.Items, [args[0]]), "Total": value.Total + args[1]}`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	got, err := add(cart{Items: []string{"book"}, Total: 10})("pen", 2.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(got.Items, ",") != "book,pen" || got.Total != 12.5 {
		t.Fatalf("unexpected cart %+v", got)
	}
}
