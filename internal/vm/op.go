package vm

import (
	"fmt"
	"strings"
)

// Kind identifies the shape of an Op node.
type Kind uint8

const (
	KindCall Kind = iota + 1
	KindData
	KindSeq
	KindConc
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindData:
		return "data"
	case KindSeq:
		return "seq"
	case KindConc:
		return "conc"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Op is a node in an operation tree. C is the payload of pending work, D the payload of
// resolved values. Ops are values: every transformation returns a new tree and leaves the
// input untouched.
type Op[C, D any] struct {
	kind Kind
	call C
	data D
	ops  []Op[C, D]
}

// NewCall wraps a unit of pending work.
func NewCall[C, D any](c C) Op[C, D] {
	return Op[C, D]{kind: KindCall, call: c}
}

// NewData wraps a terminal value.
func NewData[C, D any](d D) Op[C, D] {
	return Op[C, D]{kind: KindData, data: d}
}

// NewSeq builds a strictly ordered sequence.
func NewSeq[C, D any](ops ...Op[C, D]) Op[C, D] {
	return Op[C, D]{kind: KindSeq, ops: clone(ops)}
}

// NewConc builds an unordered group.
func NewConc[C, D any](ops ...Op[C, D]) Op[C, D] {
	return Op[C, D]{kind: KindConc, ops: clone(ops)}
}

// Noop is an empty Conc; it reduces away.
func Noop[C, D any]() Op[C, D] {
	return Op[C, D]{kind: KindConc}
}

func (o Op[C, D]) Kind() Kind { return o.kind }

// Call returns the call payload if o is a Call.
func (o Op[C, D]) Call() (C, bool) {
	return o.call, o.kind == KindCall
}

// Data returns the data payload if o is a Data.
func (o Op[C, D]) Data() (D, bool) {
	return o.data, o.kind == KindData
}

// Children returns a copy of the children of a Seq or Conc.
func (o Op[C, D]) Children() []Op[C, D] {
	return clone(o.ops)
}

// Len is the number of direct children.
func (o Op[C, D]) Len() int { return len(o.ops) }

// IsNoop reports whether o is an empty Seq or Conc.
func (o Op[C, D]) IsNoop() bool {
	return (o.kind == KindSeq || o.kind == KindConc) && len(o.ops) == 0
}

// Valid reports whether o was built with one of the constructors.
func (o Op[C, D]) Valid() bool {
	return o.kind >= KindCall && o.kind <= KindConc
}

// Count returns the number of leaves (Call and Data nodes) in the tree.
func (o Op[C, D]) Count() int {
	switch o.kind {
	case KindCall, KindData:
		return 1
	}
	n := 0
	for _, c := range o.ops {
		n += c.Count()
	}
	return n
}

func (o Op[C, D]) String() string {
	var b strings.Builder
	o.write(&b)
	return b.String()
}

func (o Op[C, D]) write(b *strings.Builder) {
	switch o.kind {
	case KindCall:
		fmt.Fprintf(b, "call(%v)", o.call)
	case KindData:
		fmt.Fprintf(b, "data(%v)", o.data)
	case KindSeq, KindConc:
		b.WriteString(o.kind.String())
		b.WriteByte('[')
		for i, c := range o.ops {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteByte(']')
	default:
		b.WriteString("invalid")
	}
}

func clone[T any](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
