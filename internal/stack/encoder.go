// Package stack encodes scope signatures into the running call stack and
// reads them back.
//
// Go cannot name a function at runtime, so a signature is spelled with a
// fixed alphabet of marker functions that are never inlined: one frame opens
// the signature, one frame per hex digit spells the container instance, a
// separator frame follows, more digit frames spell the scope id, and a
// closing frame finally invokes the callback. Everything the callback calls,
// directly or transitively, runs above those frames and can recover the
// signature with Capture and Decode.
package stack

import (
	"fmt"
	"strconv"
)

const (
	// Marker prefixes every displayed signature.
	Marker = "$_SCOPE_"
	// Separator splits marker, instance and scope id in a displayed signature.
	Separator = "$"
)

const (
	symSep   byte = 16
	symBegin byte = 17
	symEnd   byte = 18
)

// Signature identifies one scope frame found on the stack.
type Signature struct {
	Instance uint64
	ID       int
}

// String renders the displayed name of the signature, e.g. "$_SCOPE_$3$12".
func (s Signature) String() string {
	return fmt.Sprintf("%s%s%d%s%d", Marker, Separator, s.Instance, Separator, s.ID)
}

// Wrap returns a transparent wrapper that invokes its callback beneath the
// frames spelling (instance, id) and returns whatever the callback returns.
func Wrap(instance uint64, id int) func(fn func() error) error {
	return func(fn func() error) error {
		return Run(instance, id, fn)
	}
}

// Run invokes fn beneath the frames spelling (instance, id).
func Run(instance uint64, id int, fn func() error) error {
	if id < 0 {
		panic(fmt.Sprintf("stack: negative scope id %d", id))
	}
	t := &trail{symbols: encode(instance, uint64(id)), fn: fn}
	return markBegin(t)
}

func encode(instance, id uint64) []byte {
	inst := strconv.FormatUint(instance, 16)
	sid := strconv.FormatUint(id, 16)
	out := make([]byte, 0, len(inst)+len(sid)+1)
	out = appendDigits(out, inst)
	out = append(out, symSep)
	return appendDigits(out, sid)
}

func appendDigits(out []byte, hex string) []byte {
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		switch {
		case c >= '0' && c <= '9':
			out = append(out, c-'0')
		default:
			out = append(out, c-'a'+10)
		}
	}
	return out
}

type trail struct {
	symbols []byte
	pos     int
	fn      func() error
}

func (t *trail) next() error {
	if t.pos == len(t.symbols) {
		return markEnd(t)
	}
	sym := t.symbols[t.pos]
	t.pos++
	return markers[sym](t)
}

// markers is indexed by symbol. It is filled in init to break the
// initialization cycle through trail.next.
var markers [17]func(*trail) error

func init() {
	markers = [17]func(*trail) error{
		mark0, mark1, mark2, mark3, mark4, mark5, mark6, mark7,
		mark8, mark9, markA, markB, markC, markD, markE, markF,
		markSep,
	}
	registerSymbols()
}

//go:noinline
func markBegin(t *trail) error { return t.next() }

//go:noinline
func markEnd(t *trail) error { return t.fn() }

//go:noinline
func markSep(t *trail) error { return t.next() }

//go:noinline
func mark0(t *trail) error { return t.next() }

//go:noinline
func mark1(t *trail) error { return t.next() }

//go:noinline
func mark2(t *trail) error { return t.next() }

//go:noinline
func mark3(t *trail) error { return t.next() }

//go:noinline
func mark4(t *trail) error { return t.next() }

//go:noinline
func mark5(t *trail) error { return t.next() }

//go:noinline
func mark6(t *trail) error { return t.next() }

//go:noinline
func mark7(t *trail) error { return t.next() }

//go:noinline
func mark8(t *trail) error { return t.next() }

//go:noinline
func mark9(t *trail) error { return t.next() }

//go:noinline
func markA(t *trail) error { return t.next() }

//go:noinline
func markB(t *trail) error { return t.next() }

//go:noinline
func markC(t *trail) error { return t.next() }

//go:noinline
func markD(t *trail) error { return t.next() }

//go:noinline
func markE(t *trail) error { return t.next() }

//go:noinline
func markF(t *trail) error { return t.next() }
