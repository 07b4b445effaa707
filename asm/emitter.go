// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import "encoding/binary"

// Opcodes for the instruction encoding.
const (
	opNop     byte = 0x00
	opMovW    byte = 0x20
	opMovB    byte = 0x21
	opMovsIDW byte = 0x22 // indirect <- direct, with modifier
	opMovsIDB byte = 0x23 // reserved, unimplemented
	opMovsDIW byte = 0x24 // direct <- indirect, with modifier
	opMovsDIB byte = 0x25 // reserved, unimplemented
	opMovIAcc1 byte = 0x26
	opMovIAcc2 byte = 0x27
	opAddW    byte = 0x30
	opSubW    byte = 0x32
	opOrW     byte = 0x34
	opAndW    byte = 0x36
	opXorW    byte = 0x38
	opSraW    byte = 0x3c
	opSllW    byte = 0x3e
	opPushdBase byte = 0xA0
	opPushrBase byte = 0xB0
	opJmpIBase byte = 0x60
	opJmpDBase byte = 0x68
	opJmp     byte = 0x70
	opJz      byte = 0x71
	opJc      byte = 0x72
	opCall    byte = 0x73
	opIfkt    byte = 0xFE
	opIllegal byte = 0xFF
)

// JumpCondZero / JumpCondCarry select between jz/jc in emitConditionalJump.
const (
	JumpCondZero  = 0
	JumpCondCarry = 1
)

// emitter is the shared back-end interface implemented by machineCodeEmitter
// and disassemblyEmitter. Both back-ends stay bit-identical
// for layout because disassemblyEmitter composes a machineCodeEmitter rather
// than duplicating its encoding logic.
type emitter interface {
	currentAddress() int
	markLabel(name string)
	emitLabelTarget(name string)

	emitAdd(dst, s1, s2 *Register)
	emitSub(dst, s1, s2 *Register)
	emitOr(dst, s1, s2 *Register)
	emitAnd(dst, s1, s2 *Register)
	emitXor(dst, s1, s2 *Register)
	emitSra(reg *Register, imm Number)
	emitSll(reg *Register, imm Number)
	emitMov(suffix byte, target *Register, source Operand) error
	emitJump(target Operand) error
	emitConditionalJump(cond int, target Operand) error
	emitCall(target Operand) error
	emitPushd(reg *Register)
	emitPopd(reg *Register)
	emitPushr(reg *Register)
	emitPopr(reg *Register)
	emitIfkt(imm16 Number)
	emitNop()
	emitIllegal()
	emitData8(v Operand) error
	emitData32(v Operand) error
	emitDataString(s string)

	finalize() error
}

// machineCodeEmitter appends bytes to a buffer, deferring any 32-bit slot
// that depends on a future label or expression to a fixup table resolved by
// finalize.
type machineCodeEmitter struct {
	buf []byte

	labels      map[string]int
	jumps       map[int]string
	expressions map[int]*Expression
}

func newMachineCodeEmitter() *machineCodeEmitter {
	return &machineCodeEmitter{
		labels:      make(map[string]int),
		jumps:       make(map[int]string),
		expressions: make(map[int]*Expression),
	}
}

func (m *machineCodeEmitter) currentAddress() int { return len(m.buf) }

func (m *machineCodeEmitter) markLabel(name string) {
	m.labels[name] = len(m.buf)
}

func (m *machineCodeEmitter) insertJumpMarker(label string) {
	m.jumps[m.currentAddress()] = label
	m.buf = append(m.buf, 0, 0, 0, 0)
}

func (m *machineCodeEmitter) insertExpressionMarker(e *Expression) {
	m.expressions[m.currentAddress()] = e
	m.buf = append(m.buf, 0, 0, 0, 0)
}

func (m *machineCodeEmitter) emitLabelTarget(name string) {
	m.insertJumpMarker(name)
}

func (m *machineCodeEmitter) append32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.buf = append(m.buf, b[:]...)
}

func (m *machineCodeEmitter) emitAdd(dst, s1, s2 *Register) { m.emit3reg(opAddW, dst, s1, s2) }
func (m *machineCodeEmitter) emitSub(dst, s1, s2 *Register) { m.emit3reg(opSubW, dst, s1, s2) }
func (m *machineCodeEmitter) emitOr(dst, s1, s2 *Register)  { m.emit3reg(opOrW, dst, s1, s2) }
func (m *machineCodeEmitter) emitAnd(dst, s1, s2 *Register) { m.emit3reg(opAndW, dst, s1, s2) }
func (m *machineCodeEmitter) emitXor(dst, s1, s2 *Register) { m.emit3reg(opXorW, dst, s1, s2) }

func (m *machineCodeEmitter) emit3reg(opcode byte, dst, s1, s2 *Register) {
	operand1 := (dst.Encoding << 4) | s1.Encoding
	m.buf = append(m.buf, opcode, operand1, s2.Encoding)
}

func (m *machineCodeEmitter) emitSra(reg *Register, imm Number) { m.emitShift(opSraW, reg, imm) }
func (m *machineCodeEmitter) emitSll(reg *Register, imm Number) { m.emitShift(opSllW, reg, imm) }

func (m *machineCodeEmitter) emitShift(opcode byte, reg *Register, imm Number) {
	operand := (reg.Encoding << 5) | byte(imm.Value&0x1F)
	m.buf = append(m.buf, opcode, operand)
}

func (m *machineCodeEmitter) emitPushd(reg *Register) { m.buf = append(m.buf, opPushdBase|reg.Encoding) }
func (m *machineCodeEmitter) emitPopd(reg *Register) {
	m.buf = append(m.buf, opPushdBase|0x8|reg.Encoding)
}
func (m *machineCodeEmitter) emitPushr(reg *Register) { m.buf = append(m.buf, opPushrBase|reg.Encoding) }
func (m *machineCodeEmitter) emitPopr(reg *Register) {
	m.buf = append(m.buf, opPushrBase|0x8|reg.Encoding)
}

func (m *machineCodeEmitter) emitIfkt(imm16 Number) {
	m.buf = append(m.buf, opIfkt, byte(imm16.Value), byte(imm16.Value>>8))
}

func (m *machineCodeEmitter) emitNop()     { m.buf = append(m.buf, opNop) }
func (m *machineCodeEmitter) emitIllegal() { m.buf = append(m.buf, opIllegal) }

func (m *machineCodeEmitter) emitData8(v Operand) error {
	switch d := v.(type) {
	case Number:
		if d.Value > 0xFF {
			return newError(errEncoding, Position{}, "db operand 0x%x exceeds 0xFF", d.Value)
		}
		m.buf = append(m.buf, byte(d.Value))
		return nil
	default:
		return newError(errEncoding, Position{}, "db requires a numeric operand, got %v", v)
	}
}

func (m *machineCodeEmitter) emitData32(v Operand) error {
	switch d := v.(type) {
	case Number:
		m.append32(d.Value)
	case Jump:
		m.insertJumpMarker(d.Label)
	case *Expression:
		m.insertExpressionMarker(d)
	default:
		return newError(errEncoding, Position{}, "dw requires a numeric, label or expression operand, got %v", v)
	}
	return nil
}

func (m *machineCodeEmitter) emitDataString(s string) {
	m.buf = append(m.buf, []byte(s)...)
}

func (m *machineCodeEmitter) emitCall(target Operand) error {
	switch t := target.(type) {
	case *Expression:
		m.buf = append(m.buf, opCall)
		m.insertExpressionMarker(t)
	case Jump:
		m.buf = append(m.buf, opCall)
		m.insertJumpMarker(t.Label)
	default:
		return newError(errEncoding, Position{}, "call requires a label or expression target, got %v", target)
	}
	return nil
}

func (m *machineCodeEmitter) emitConditionalJump(cond int, target Operand) error {
	opcode := opJz
	if cond == JumpCondCarry {
		opcode = opJc
	}
	m.buf = append(m.buf, opcode)
	switch t := target.(type) {
	case *Expression:
		m.insertExpressionMarker(t)
	case Jump:
		m.insertJumpMarker(t.Label)
	default:
		return newError(errEncoding, Position{}, "conditional jump requires a label or expression target, got %v", target)
	}
	return nil
}

func (m *machineCodeEmitter) emitJump(target Operand) error {
	switch t := target.(type) {
	case Jump:
		m.buf = append(m.buf, opJmp)
		m.insertJumpMarker(t.Label)
	case *Register:
		if t.Indirect {
			m.buf = append(m.buf, opJmpIBase+t.Encoding)
		} else {
			m.buf = append(m.buf, opJmpDBase+t.Encoding)
		}
	case *Expression:
		m.buf = append(m.buf, opJmp)
		m.insertExpressionMarker(t)
	default:
		return newError(errEncoding, Position{}, "jmp requires a register, label or expression target, got %v", target)
	}
	return nil
}

// emitMov encodes the full mov operand matrix: register-to-
// register (direct or indirect, no modifier), indirect-with-modifier,
// immediate/label/expression into acc1/acc2.
func (m *machineCodeEmitter) emitMov(suffix byte, target *Register, source Operand) error {
	switch src := source.(type) {
	case Jump:
		op, err := movImmOpcode(target)
		if err != nil {
			return err
		}
		m.buf = append(m.buf, op)
		m.insertJumpMarker(src.Label)
		return nil
	case *Expression:
		op, err := movImmOpcode(target)
		if err != nil {
			return err
		}
		m.buf = append(m.buf, op)
		m.insertExpressionMarker(src)
		return nil
	case Number:
		op, err := movImmOpcode(target)
		if err != nil {
			return err
		}
		m.buf = append(m.buf, op)
		m.append32(src.Value)
		return nil
	case *Register:
		return m.emitMovReg(suffix, target, src)
	default:
		return newError(errEncoding, Position{}, "mov: unsupported source operand %v", source)
	}
}

func movImmOpcode(target *Register) (byte, error) {
	switch target.Name {
	case "acc1":
		return opMovIAcc1, nil
	case "acc2":
		return opMovIAcc2, nil
	default:
		return 0, newError(errEncoding, Position{Line: target.Line}, "immediate value or label can only be moved to acc1 or acc2")
	}
}

func (m *machineCodeEmitter) emitMovReg(suffix byte, target, source *Register) error {
	if target.Indirect && source.Indirect {
		return newError(errEncoding, Position{}, "only one argument can be register-indirect for mov (line %d)", target.Line)
	}
	if (target.Is("increment") || target.Is("decrement")) || (source.Is("increment") || source.Is("decrement")) {
		if suffix == 'b' {
			return newError(errEncoding, Position{}, "mov.b with an indirect auto-modify operand is not supported")
		}
		var opcode byte
		var operand byte
		if target.Indirect {
			if source.Indirect {
				return newError(errEncoding, Position{}, "only one argument can be register-indirect for mov (line %d)", target.Line)
			}
			opcode = opMovsIDW
			if target.Is("decrement") {
				operand |= 0x80
			}
			if target.Is("prefix") {
				operand |= 0x40
			}
			operand |= source.Encoding << 3
			operand |= target.Encoding
		} else {
			opcode = opMovsDIW
			if source.Is("decrement") {
				operand |= 0x80
			}
			if source.Is("prefix") {
				operand |= 0x40
			}
			operand |= target.Encoding << 3
			operand |= source.Encoding
		}
		m.buf = append(m.buf, opcode, operand)
		return nil
	}
	opcode := opMovW
	if suffix == 'b' {
		opcode = opMovB
	}
	var indSrc, indTgt byte
	if source.Indirect {
		indSrc = 0x8
	}
	if target.Indirect {
		indTgt = 0x8
	}
	operand := (source.Encoding | indSrc) | ((target.Encoding | indTgt) << 4)
	m.buf = append(m.buf, opcode, operand)
	return nil
}

// finalize rewrites every recorded jump/expression slot with its resolved
// value.
func (m *machineCodeEmitter) finalize() error {
	for addr, label := range m.jumps {
		resolved, ok := m.labels[label]
		if !ok {
			return newError(errUndefinedReference, Position{}, "unresolved reference to label %q", label)
		}
		binary.LittleEndian.PutUint32(m.buf[addr:addr+4], uint32(resolved))
	}
	for addr, expr := range m.expressions {
		v, err := expr.Evaluate(m.labels)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(m.buf[addr:addr+4], v)
	}
	return nil
}

// reset empties the buffer and clears the label and fixup tables, so the
// same emitter instance can be reused for another assembly.
func (m *machineCodeEmitter) reset() {
	m.buf = m.buf[:0]
	m.labels = make(map[string]int)
	m.jumps = make(map[int]string)
	m.expressions = make(map[int]*Expression)
}
