// Package opstack simulates the JVM operand stack and local variable
// slots of one method, instruction by instruction. Items carry declared
// type signatures, field provenance, and an opaque user value that
// detectors attach and read. The simulation is deliberately permissive:
// underflow and unresolvable constant pool references degrade to unknown
// items rather than failing the walk.
package opstack

import (
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

const objectSig = "Ljava/lang/Object;"

// Item is one simulated stack or local slot value.
type Item struct {
	sig       string
	field     string
	userValue any
}

// Signature returns the item's declared type signature, or "" when unknown.
func (it *Item) Signature() string { return it.sig }

// Field returns the name of the field this value was read from, or ""
// when the value did not come from a field access.
func (it *Item) Field() string { return it.field }

// UserValue returns the opaque payload attached by a detector, or nil.
func (it *Item) UserValue() any { return it.userValue }

// SetUserValue attaches an opaque payload to the item.
func (it *Item) SetUserValue(v any) { it.userValue = v }

// Frame is the simulated execution frame of one method.
type Frame struct {
	pool   *classfile.ConstantPool
	stack  []*Item
	locals []Item // slot signatures only; tags stay with the detector
}

// NewFrame builds a frame for the method, seeding local slots from the
// method descriptor (plus the receiver for instance methods).
func NewFrame(cls *classfile.Class, m *classfile.Method) *Frame {
	f := &Frame{pool: cls.Pool}
	size := 4
	if m.Code != nil && m.Code.MaxLocals > size {
		size = m.Code.MaxLocals
	}
	f.locals = make([]Item, size)

	slot := 0
	if !m.IsStatic() {
		f.setLocal(slot, Item{sig: classfile.ClassSignature(cls.Name)})
		slot++
	}
	if sig, err := classfile.ParseMethodDescriptor(m.Descriptor); err == nil {
		for _, p := range sig.Params {
			f.setLocal(slot, Item{sig: p})
			slot++
			if isCategory2(p) {
				slot++ // long/double occupy two slots
			}
		}
	}
	return f
}

// Depth returns the current simulated stack depth in logical items.
func (f *Frame) Depth() int { return len(f.stack) }

// Item returns the stack item at the given offset from the top
// (0 is the top of stack).
func (f *Frame) Item(offset int) (*Item, bool) {
	if offset < 0 || offset >= len(f.stack) {
		return nil, false
	}
	return f.stack[len(f.stack)-1-offset], true
}

func (f *Frame) push(it Item) {
	copied := it
	f.stack = append(f.stack, &copied)
}

func (f *Frame) pushRef(it *Item) {
	f.stack = append(f.stack, it)
}

// pop removes and returns the top item, tolerating underflow.
func (f *Frame) pop() *Item {
	if len(f.stack) == 0 {
		return &Item{}
	}
	it := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return it
}

func (f *Frame) popN(n int) {
	for i := 0; i < n; i++ {
		f.pop()
	}
}

func (f *Frame) clear() {
	f.stack = f.stack[:0]
}

func (f *Frame) setLocal(index int, it Item) {
	if index < 0 {
		return
	}
	for index >= len(f.locals) {
		f.locals = append(f.locals, Item{})
	}
	f.locals[index] = it
}

func (f *Frame) local(index int) Item {
	if index < 0 || index >= len(f.locals) {
		return Item{}
	}
	return f.locals[index]
}

// isCategory2 reports whether the signature denotes a long or double,
// which occupy two local slots but one logical stack item here.
func isCategory2(sig string) bool {
	return sig == "J" || sig == "D"
}
