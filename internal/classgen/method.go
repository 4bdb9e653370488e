package classgen

import (
	"bytes"
	"encoding/binary"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

// MethodBuilder assembles one method body. Emit helpers append
// instructions in order; Done returns to the class builder.
type MethodBuilder struct {
	b          *Builder
	access     uint16
	name, desc string
	code       []byte
	lines      []lineRec
	maxStack   int
	maxLocals  int
}

type lineRec struct {
	pc, line int
}

// Static marks the method ACC_STATIC.
func (m *MethodBuilder) Static() *MethodBuilder {
	m.access |= classfile.AccStatic
	return m
}

// MaxStack overrides the default operand stack size.
func (m *MethodBuilder) MaxStack(n int) *MethodBuilder {
	m.maxStack = n
	return m
}

// MaxLocals overrides the default local slot count.
func (m *MethodBuilder) MaxLocals(n int) *MethodBuilder {
	m.maxLocals = n
	return m
}

// Line records a LineNumberTable entry starting at the next instruction.
func (m *MethodBuilder) Line(line int) *MethodBuilder {
	m.lines = append(m.lines, lineRec{pc: len(m.code), line: line})
	return m
}

// Done finishes the method and returns the class builder.
func (m *MethodBuilder) Done() *Builder {
	return m.b
}

func (m *MethodBuilder) op(op classfile.Opcode, operands ...byte) *MethodBuilder {
	m.code = append(m.code, byte(op))
	m.code = append(m.code, operands...)
	return m
}

func u16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// Raw appends arbitrary bytecode.
func (m *MethodBuilder) Raw(code ...byte) *MethodBuilder {
	m.code = append(m.code, code...)
	return m
}

func (m *MethodBuilder) New(class string) *MethodBuilder {
	return m.op(classfile.OpNew, u16(m.b.pool.class(class))...)
}

func (m *MethodBuilder) Checkcast(class string) *MethodBuilder {
	return m.op(classfile.OpCheckcast, u16(m.b.pool.class(class))...)
}

func (m *MethodBuilder) Dup() *MethodBuilder { return m.op(classfile.OpDup) }

func (m *MethodBuilder) Pop() *MethodBuilder { return m.op(classfile.OpPop) }

func (m *MethodBuilder) AconstNull() *MethodBuilder { return m.op(classfile.OpAconstNull) }

func (m *MethodBuilder) Iconst(v int) *MethodBuilder {
	if v >= -1 && v <= 5 {
		return m.op(classfile.Opcode(int(classfile.OpIconst0) + v))
	}
	return m.op(classfile.OpBipush, byte(v))
}

func (m *MethodBuilder) Ldc(s string) *MethodBuilder {
	return m.op(classfile.OpLdc, byte(m.b.pool.str(s)))
}

func (m *MethodBuilder) ALoad(slot int) *MethodBuilder {
	if slot <= 3 {
		return m.op(classfile.OpAload0 + classfile.Opcode(slot))
	}
	return m.op(classfile.OpAload, byte(slot))
}

func (m *MethodBuilder) AStore(slot int) *MethodBuilder {
	if slot <= 3 {
		return m.op(classfile.OpAstore0 + classfile.Opcode(slot))
	}
	return m.op(classfile.OpAstore, byte(slot))
}

func (m *MethodBuilder) Goto(offset int16) *MethodBuilder {
	return m.op(classfile.OpGoto, u16(uint16(offset))...)
}

func (m *MethodBuilder) Return() *MethodBuilder { return m.op(classfile.OpReturn) }

func (m *MethodBuilder) AReturn() *MethodBuilder { return m.op(classfile.OpAreturn) }

func (m *MethodBuilder) GetStatic(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpGetstatic, u16(m.b.pool.memberRef(classfile.TagFieldref, cls, name, desc))...)
}

func (m *MethodBuilder) PutStatic(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpPutstatic, u16(m.b.pool.memberRef(classfile.TagFieldref, cls, name, desc))...)
}

func (m *MethodBuilder) GetField(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpGetfield, u16(m.b.pool.memberRef(classfile.TagFieldref, cls, name, desc))...)
}

func (m *MethodBuilder) PutField(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpPutfield, u16(m.b.pool.memberRef(classfile.TagFieldref, cls, name, desc))...)
}

func (m *MethodBuilder) InvokeSpecial(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpInvokespecial, u16(m.b.pool.memberRef(classfile.TagMethodref, cls, name, desc))...)
}

func (m *MethodBuilder) InvokeVirtual(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpInvokevirtual, u16(m.b.pool.memberRef(classfile.TagMethodref, cls, name, desc))...)
}

func (m *MethodBuilder) InvokeStatic(cls, name, desc string) *MethodBuilder {
	return m.op(classfile.OpInvokestatic, u16(m.b.pool.memberRef(classfile.TagMethodref, cls, name, desc))...)
}

// InvokeInterface emits an interface call with the arg-slot count byte
// computed from the descriptor.
func (m *MethodBuilder) InvokeInterface(cls, name, desc string) *MethodBuilder {
	count := 1 // receiver
	if sig, err := classfile.ParseMethodDescriptor(desc); err == nil {
		for _, p := range sig.Params {
			count++
			if p == "J" || p == "D" {
				count++
			}
		}
	}
	idx := m.b.pool.memberRef(classfile.TagInterfaceMethodref, cls, name, desc)
	operands := append(u16(idx), byte(count), 0)
	return m.op(classfile.OpInvokeinterface, operands...)
}

func (m *MethodBuilder) serialize() []byte {
	var buf bytes.Buffer
	w2 := func(v uint16) { _ = binary.Write(&buf, binary.BigEndian, v) }

	w2(m.access)
	w2(m.b.pool.utf8(m.name))
	w2(m.b.pool.utf8(m.desc))

	var code bytes.Buffer
	c2 := func(v uint16) { _ = binary.Write(&code, binary.BigEndian, v) }
	c2(uint16(m.maxStack))
	c2(uint16(m.maxLocals))
	_ = binary.Write(&code, binary.BigEndian, uint32(len(m.code)))
	code.Write(m.code)
	c2(0) // exception table

	if len(m.lines) > 0 {
		var lnt bytes.Buffer
		_ = binary.Write(&lnt, binary.BigEndian, uint16(len(m.lines)))
		for _, l := range m.lines {
			_ = binary.Write(&lnt, binary.BigEndian, uint16(l.pc))
			_ = binary.Write(&lnt, binary.BigEndian, uint16(l.line))
		}
		c2(1)
		code.Write(attribute(m.b.pool, "LineNumberTable", lnt.Bytes()))
	} else {
		c2(0)
	}

	w2(1) // one attribute: Code
	buf.Write(attribute(m.b.pool, "Code", code.Bytes()))
	return buf.Bytes()
}
