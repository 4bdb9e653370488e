package classfile

import (
	"encoding/binary"
	"fmt"
)

// Instruction is one decoded bytecode instruction.
type Instruction struct {
	PC       int
	Op       Opcode
	Operands []byte // operand bytes following the opcode (after wide, if any)
	Wide     bool   // the instruction was prefixed by the wide opcode
}

// ConstIndex returns the constant pool index operand for opcodes that
// reference the pool (ldc, field access, invokes, new, checkcast, ...).
func (in Instruction) ConstIndex() int {
	switch in.Op {
	case OpLdc:
		if len(in.Operands) >= 1 {
			return int(in.Operands[0])
		}
	default:
		if len(in.Operands) >= 2 {
			return int(binary.BigEndian.Uint16(in.Operands))
		}
	}
	return 0
}

// LocalIndex returns the local variable slot index for load, store, ret,
// and iinc instructions, including the immediate _0.._3 forms and wide
// variants. It returns -1 for other opcodes.
func (in Instruction) LocalIndex() int {
	op := in.Op
	switch {
	case op >= OpIload0 && op <= OpAload3:
		return int(op-OpIload0) & 0x03
	case op >= OpIstore0 && op <= OpAstore3:
		return int(op-OpIstore0) & 0x03
	case (op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore) ||
		op == OpRet || op == OpIinc:
		if in.Wide {
			if len(in.Operands) >= 2 {
				return int(binary.BigEndian.Uint16(in.Operands))
			}
			return -1
		}
		if len(in.Operands) >= 1 {
			return int(in.Operands[0])
		}
	}
	return -1
}

// Decode expands the method's bytecode into instructions. Variable-length
// instructions (wide, tableswitch, lookupswitch) are decoded in place so
// iteration stays aligned with real instruction boundaries.
func (c *Code) Decode() ([]Instruction, error) {
	code := c.Bytecode
	var out []Instruction
	pc := 0
	for pc < len(code) {
		op := Opcode(code[pc])
		in := Instruction{PC: pc, Op: op}
		size, err := instructionSize(code, pc)
		if err != nil {
			return nil, err
		}
		if pc+size > len(code) {
			return nil, fmt.Errorf("pc %d: %s runs past end of code", pc, op)
		}
		if op == OpWide {
			in.Op = Opcode(code[pc+1])
			in.Wide = true
			in.Operands = code[pc+2 : pc+size]
		} else {
			in.Operands = code[pc+1 : pc+size]
		}
		out = append(out, in)
		pc += size
	}
	return out, nil
}

// instructionSize returns the full byte length of the instruction at pc,
// including the opcode byte itself.
func instructionSize(code []byte, pc int) (int, error) {
	op := Opcode(code[pc])
	n, known := operandLengths[op]
	if !known {
		if _, ok := mnemonics[op]; !ok {
			return 0, fmt.Errorf("pc %d: unknown opcode 0x%02x", pc, byte(op))
		}
		return 1, nil
	}
	if n != operandLenVariable {
		return 1 + n, nil
	}

	switch op {
	case OpWide:
		if pc+1 >= len(code) {
			return 0, fmt.Errorf("pc %d: truncated wide instruction", pc)
		}
		if Opcode(code[pc+1]) == OpIinc {
			return 6, nil // wide + iinc + u2 index + s2 const
		}
		return 4, nil // wide + op + u2 index

	case OpTableswitch:
		base := pc + 1 + padTo4(pc+1)
		if base+12 > len(code) {
			return 0, fmt.Errorf("pc %d: truncated tableswitch", pc)
		}
		low := int32(binary.BigEndian.Uint32(code[base+4:]))
		high := int32(binary.BigEndian.Uint32(code[base+8:]))
		if high < low {
			return 0, fmt.Errorf("pc %d: tableswitch high %d < low %d", pc, high, low)
		}
		return base - pc + 12 + int(high-low+1)*4, nil

	case OpLookupswitch:
		base := pc + 1 + padTo4(pc+1)
		if base+8 > len(code) {
			return 0, fmt.Errorf("pc %d: truncated lookupswitch", pc)
		}
		npairs := int32(binary.BigEndian.Uint32(code[base+4:]))
		if npairs < 0 {
			return 0, fmt.Errorf("pc %d: lookupswitch npairs %d", pc, npairs)
		}
		return base - pc + 8 + int(npairs)*8, nil
	}
	return 0, fmt.Errorf("pc %d: unhandled variable-length opcode %s", pc, op)
}

// padTo4 returns the number of padding bytes needed to align offset to a
// 4-byte boundary, as required by the switch instructions.
func padTo4(offset int) int {
	return (4 - offset%4) % 4
}
