package opstack

import (
	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

// Execute applies one instruction's stack effect to the frame. Callers
// must read the pre-instruction state first and attach any inferred tag
// to the new top of stack afterwards; Execute sits between the two.
func (f *Frame) Execute(in classfile.Instruction) {
	op := in.Op
	switch {
	case op == classfile.OpNop || op == classfile.OpIinc || op == classfile.OpRet:
		// no stack effect

	case op == classfile.OpAconstNull:
		f.push(Item{}) // null has no useful signature

	case (op >= classfile.OpIconstM1 && op <= classfile.OpIconst5) ||
		op == classfile.OpBipush || op == classfile.OpSipush:
		f.push(Item{sig: "I"})

	case op == classfile.OpLconst0 || op == classfile.OpLconst1:
		f.push(Item{sig: "J"})

	case op >= classfile.OpFconst0 && op <= classfile.OpFconst2:
		f.push(Item{sig: "F"})

	case op == classfile.OpDconst0 || op == classfile.OpDconst1:
		f.push(Item{sig: "D"})

	case op == classfile.OpLdc || op == classfile.OpLdcW:
		f.push(Item{sig: f.ldcSignature(in.ConstIndex())})

	case op == classfile.OpLdc2W:
		sig := "J"
		if tag, err := f.pool.Tag(in.ConstIndex()); err == nil && tag == classfile.TagDouble {
			sig = "D"
		}
		f.push(Item{sig: sig})

	case op.IsLoad():
		f.applyLoad(in)

	case op.IsStore():
		// Signature and field provenance follow the value through the
		// slot; detector-attached payloads deliberately do not.
		it := f.pop()
		f.setLocal(in.LocalIndex(), Item{sig: it.sig, field: it.field})

	case op >= classfile.OpIaload && op <= classfile.OpSaload:
		f.popN(2)
		f.push(Item{sig: arrayLoadSig(op)})

	case op >= classfile.OpIastore && op <= classfile.OpSastore:
		f.popN(3)

	case op == classfile.OpPop:
		f.pop()

	case op == classfile.OpPop2:
		it := f.pop()
		if !isCategory2(it.sig) {
			f.pop()
		}

	case op >= classfile.OpDup && op <= classfile.OpDup2X2:
		f.applyDup(op)

	case op == classfile.OpSwap:
		a, b := f.pop(), f.pop()
		f.pushRef(a)
		f.pushRef(b)

	case op >= classfile.OpIadd && op <= classfile.OpDrem:
		f.popN(2)
		f.push(Item{sig: numericSig(int(op-classfile.OpIadd) % 4)})

	case op >= classfile.OpIneg && op <= classfile.OpDneg:
		f.pop()
		f.push(Item{sig: numericSig(int(op - classfile.OpIneg))})

	case op >= classfile.OpIshl && op <= classfile.OpLushr:
		f.popN(2)
		f.push(Item{sig: numericSig(int(op-classfile.OpIshl) % 2)})

	case op >= classfile.OpIand && op <= classfile.OpLxor:
		f.popN(2)
		f.push(Item{sig: numericSig(int(op-classfile.OpIand) % 2)})

	case op >= classfile.OpI2l && op <= classfile.OpI2s:
		f.pop()
		f.push(Item{sig: conversionSig(op)})

	case op >= classfile.OpLcmp && op <= classfile.OpDcmpg:
		f.popN(2)
		f.push(Item{sig: "I"})

	case op.IsConditionalBranch():
		if op >= classfile.OpIfIcmpeq && op <= classfile.OpIfAcmpne {
			f.popN(2)
		} else {
			f.pop()
		}

	case op == classfile.OpGoto || op == classfile.OpGotoW:
		// Inside a ternary expression the then-branch leaves its value on
		// the stack and jumps over the else-branch. Discard that
		// speculative value so the join point sees a single merged slot.
		if len(f.stack) > 0 {
			f.pop()
		}

	case op == classfile.OpJsr || op == classfile.OpJsrW:
		f.push(Item{}) // return address

	case op == classfile.OpTableswitch || op == classfile.OpLookupswitch:
		f.pop()

	case op.IsReturn() || op == classfile.OpAthrow:
		f.clear()

	case op == classfile.OpGetstatic:
		f.applyFieldRead(in, false)

	case op == classfile.OpPutstatic:
		f.pop()

	case op == classfile.OpGetfield:
		f.applyFieldRead(in, true)

	case op == classfile.OpPutfield:
		f.popN(2)

	case op == classfile.OpInvokevirtual || op == classfile.OpInvokespecial ||
		op == classfile.OpInvokeinterface:
		f.applyInvoke(in, true)

	case op == classfile.OpInvokestatic || op == classfile.OpInvokedynamic:
		f.applyInvoke(in, false)

	case op == classfile.OpNew:
		f.push(Item{sig: f.classEntrySignature(in.ConstIndex())})

	case op == classfile.OpNewarray:
		f.pop()
		f.push(Item{sig: primitiveArraySig(in.Operands)})

	case op == classfile.OpAnewarray:
		f.pop()
		f.push(Item{sig: "[" + f.classEntrySignature(in.ConstIndex())})

	case op == classfile.OpMultianewarray:
		dims := 0
		if len(in.Operands) >= 3 {
			dims = int(in.Operands[2])
		}
		f.popN(dims)
		f.push(Item{sig: f.classEntrySignature(in.ConstIndex())})

	case op == classfile.OpArraylength || op == classfile.OpInstanceof:
		f.pop()
		f.push(Item{sig: "I"})

	case op == classfile.OpCheckcast:
		// The cast keeps the value (provenance and payload included) but
		// narrows its declared type.
		if it, ok := f.Item(0); ok {
			it.sig = f.classEntrySignature(in.ConstIndex())
		}

	case op == classfile.OpMonitorenter || op == classfile.OpMonitorexit:
		f.pop()

	default:
		// Unmodeled opcode: drop all tracked state rather than guess.
		f.clear()
	}
}

func (f *Frame) applyLoad(in classfile.Instruction) {
	idx := in.LocalIndex()
	it := f.local(idx)
	if it.sig == "" {
		it.sig = defaultLoadSig(in.Op)
	}
	f.push(Item{sig: it.sig, field: it.field})
}

func (f *Frame) applyFieldRead(in classfile.Instruction, instance bool) {
	if instance {
		f.pop()
	}
	ref, err := f.pool.MemberRef(in.ConstIndex())
	if err != nil {
		f.push(Item{})
		return
	}
	f.push(Item{sig: ref.Descriptor, field: ref.Name})
}

func (f *Frame) applyInvoke(in classfile.Instruction, hasReceiver bool) {
	var descriptor string
	var err error
	if in.Op == classfile.OpInvokedynamic {
		_, descriptor, err = f.pool.InvokeDynamicRef(in.ConstIndex())
		hasReceiver = false
	} else {
		var ref classfile.MemberRef
		ref, err = f.pool.MemberRef(in.ConstIndex())
		descriptor = ref.Descriptor
	}
	if err != nil {
		f.clear()
		return
	}
	sig, err := classfile.ParseMethodDescriptor(descriptor)
	if err != nil {
		f.clear()
		return
	}
	f.popN(len(sig.Params))
	if hasReceiver {
		f.pop()
	}
	if sig.Return != "V" {
		f.push(Item{sig: sig.Return})
	}
}

func (f *Frame) applyDup(op classfile.Opcode) {
	top := f.pop()
	switch op {
	case classfile.OpDup:
		f.pushRef(top)
		f.push(*top)

	case classfile.OpDupX1:
		b := f.pop()
		f.push(*top)
		f.pushRef(b)
		f.pushRef(top)

	case classfile.OpDupX2:
		b := f.pop()
		if isCategory2(b.sig) {
			f.push(*top)
			f.pushRef(b)
			f.pushRef(top)
			return
		}
		c := f.pop()
		f.push(*top)
		f.pushRef(c)
		f.pushRef(b)
		f.pushRef(top)

	case classfile.OpDup2:
		if isCategory2(top.sig) {
			f.pushRef(top)
			f.push(*top)
			return
		}
		b := f.pop()
		f.pushRef(b)
		f.pushRef(top)
		f.push(*b)
		f.push(*top)

	case classfile.OpDup2X1:
		if isCategory2(top.sig) {
			b := f.pop()
			f.push(*top)
			f.pushRef(b)
			f.pushRef(top)
			return
		}
		b := f.pop()
		c := f.pop()
		f.push(*b)
		f.push(*top)
		f.pushRef(c)
		f.pushRef(b)
		f.pushRef(top)

	case classfile.OpDup2X2:
		b := f.pop()
		if isCategory2(top.sig) && isCategory2(b.sig) {
			f.push(*top)
			f.pushRef(b)
			f.pushRef(top)
			return
		}
		if isCategory2(top.sig) {
			c := f.pop()
			f.push(*top)
			f.pushRef(c)
			f.pushRef(b)
			f.pushRef(top)
			return
		}
		c := f.pop()
		if isCategory2(c.sig) {
			f.push(*b)
			f.push(*top)
			f.pushRef(c)
			f.pushRef(b)
			f.pushRef(top)
			return
		}
		d := f.pop()
		f.push(*b)
		f.push(*top)
		f.pushRef(d)
		f.pushRef(c)
		f.pushRef(b)
		f.pushRef(top)
	}
}

// ldcSignature maps a loadable constant pool entry to its stack signature.
func (f *Frame) ldcSignature(index int) string {
	tag, err := f.pool.Tag(index)
	if err != nil {
		return ""
	}
	switch tag {
	case classfile.TagString:
		return "Ljava/lang/String;"
	case classfile.TagClass:
		return "Ljava/lang/Class;"
	case classfile.TagInteger:
		return "I"
	case classfile.TagFloat:
		return "F"
	case classfile.TagMethodType:
		return "Ljava/lang/invoke/MethodType;"
	case classfile.TagMethodHandle:
		return "Ljava/lang/invoke/MethodHandle;"
	default:
		return ""
	}
}

// classEntrySignature turns a Class pool entry into a type signature.
// Array classes already carry descriptor syntax and pass through as is.
func (f *Frame) classEntrySignature(index int) string {
	name, err := f.pool.ClassName(index)
	if err != nil || name == "" {
		return ""
	}
	if name[0] == '[' {
		return name
	}
	return classfile.ClassSignature(name)
}

func numericSig(kind int) string {
	switch kind {
	case 0:
		return "I"
	case 1:
		return "J"
	case 2:
		return "F"
	default:
		return "D"
	}
}

func conversionSig(op classfile.Opcode) string {
	switch op {
	case classfile.OpI2l, classfile.OpF2l, classfile.OpD2l:
		return "J"
	case classfile.OpI2f, classfile.OpL2f, classfile.OpD2f:
		return "F"
	case classfile.OpI2d, classfile.OpL2d, classfile.OpF2d:
		return "D"
	default:
		return "I"
	}
}

func arrayLoadSig(op classfile.Opcode) string {
	switch op {
	case classfile.OpLaload:
		return "J"
	case classfile.OpFaload:
		return "F"
	case classfile.OpDaload:
		return "D"
	case classfile.OpAaload:
		return objectSig
	default:
		return "I"
	}
}

// primitiveArraySig maps the newarray atype operand to an array signature.
func primitiveArraySig(operands []byte) string {
	if len(operands) < 1 {
		return ""
	}
	switch operands[0] {
	case 4:
		return "[Z"
	case 5:
		return "[C"
	case 6:
		return "[F"
	case 7:
		return "[D"
	case 8:
		return "[B"
	case 9:
		return "[S"
	case 10:
		return "[I"
	case 11:
		return "[J"
	default:
		return ""
	}
}

// defaultLoadSig gives a fallback signature for loads from untyped slots.
func defaultLoadSig(op classfile.Opcode) string {
	switch {
	case op == classfile.OpIload || (op >= classfile.OpIload0 && op <= classfile.OpIload3):
		return "I"
	case op == classfile.OpLload || (op >= classfile.OpLload0 && op <= classfile.OpLload3):
		return "J"
	case op == classfile.OpFload || (op >= classfile.OpFload0 && op <= classfile.OpFload3):
		return "F"
	case op == classfile.OpDload || (op >= classfile.OpDload0 && op <= classfile.OpDload3):
		return "D"
	default:
		return objectSig
	}
}
