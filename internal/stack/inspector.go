package stack

import (
	"reflect"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

var symbolByFunction map[string]byte

func registerSymbols() {
	symbolByFunction = make(map[string]byte, len(markers)+2)
	for sym, fn := range markers {
		symbolByFunction[functionName(fn)] = byte(sym)
	}
	symbolByFunction[functionName(markBegin)] = symBegin
	symbolByFunction[functionName(markEnd)] = symEnd
}

func functionName(fn func(*trail) error) string {
	return runtime.FuncForPC(reflect.ValueOf(fn).Pointer()).Name()
}

// Capture returns the program counters of the calling goroutine's stack,
// innermost frame first. The stack is never truncated. skip counts frames
// above the caller of Capture.
func Capture(skip int) []uintptr {
	size := 64
	for {
		pcs := make([]uintptr, size)
		n := runtime.Callers(skip+2, pcs)
		if n < size {
			return pcs[:n]
		}
		size *= 2
	}
}

// Decode extracts every signature spelled on the stack described by pcs,
// innermost first.
func Decode(pcs []uintptr) []Signature {
	if len(pcs) == 0 {
		return nil
	}
	var (
		out     []Signature
		group   []byte
		inGroup bool
	)
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if sym, ok := symbolByFunction[frame.Function]; ok {
			switch {
			case sym == symEnd:
				group = group[:0]
				inGroup = true
			case sym == symBegin:
				if inGroup {
					if sig, ok := parseGroup(group); ok {
						out = append(out, sig)
					}
				}
				inGroup = false
			case inGroup:
				group = append(group, sym)
			}
		}
		if !more {
			break
		}
	}
	return out
}

// parseGroup reads a group collected innermost first, i.e. id digits in
// reverse, the separator, then instance digits in reverse.
func parseGroup(group []byte) (Signature, bool) {
	sep := -1
	for i, sym := range group {
		if sym == symSep {
			if sep >= 0 {
				return Signature{}, false
			}
			sep = i
		}
	}
	if sep <= 0 || sep == len(group)-1 {
		return Signature{}, false
	}
	id := reversedHex(group[:sep])
	instance := reversedHex(group[sep+1:])
	return Signature{Instance: instance, ID: int(id)}, true
}

func reversedHex(digits []byte) uint64 {
	var v uint64
	for i := len(digits) - 1; i >= 0; i-- {
		v = v<<4 | uint64(digits[i])
	}
	return v
}

// Pattern returns the expression matching displayed signatures that belong
// to instance. The first submatch is the scope id.
func Pattern(instance uint64) *regexp.Regexp {
	prefix := regexp.QuoteMeta(Marker + Separator + strconv.FormatUint(instance, 10) + Separator)
	return regexp.MustCompile("^" + prefix + "([0-9]+)$")
}

// Extractor resolves the scope ids of one container instance from a stack.
// The last extraction is memoized, keyed on the full program counter
// sequence.
type Extractor struct {
	pattern *regexp.Regexp

	mu      sync.Mutex
	lastKey string
	lastIDs []int
	primed  bool
}

// NewExtractor builds an extractor for instance.
func NewExtractor(instance uint64) *Extractor {
	return &Extractor{pattern: Pattern(instance)}
}

// Current extracts scope ids from the calling goroutine's stack.
func (e *Extractor) Current() []int {
	return e.Extract(Capture(1))
}

// Extract returns the ids spelled on pcs for this extractor's instance,
// innermost first. Nested scopes of the same instance all appear.
func (e *Extractor) Extract(pcs []uintptr) []int {
	key := stackKey(pcs)

	e.mu.Lock()
	if e.primed && e.lastKey == key {
		ids := append([]int(nil), e.lastIDs...)
		e.mu.Unlock()
		return ids
	}
	e.mu.Unlock()

	var ids []int
	for _, sig := range Decode(pcs) {
		match := e.pattern.FindStringSubmatch(sig.String())
		if match == nil {
			continue
		}
		id, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	e.mu.Lock()
	e.lastKey = key
	e.lastIDs = ids
	e.primed = true
	e.mu.Unlock()

	return append([]int(nil), ids...)
}

func stackKey(pcs []uintptr) string {
	var b strings.Builder
	b.Grow(len(pcs) * 8)
	for _, pc := range pcs {
		b.WriteString(strconv.FormatUint(uint64(pc), 16))
		b.WriteByte(',')
	}
	return b.String()
}
