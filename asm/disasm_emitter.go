// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"fmt"
	"strings"
)

// disassemblyEmitter delegates every structural call to an embedded
// machineCodeEmitter so that offsets stay bit-identical between the two
// back-ends, while building up a parallel text listing. For unresolved
// references it writes a sentinel marker that finalize replaces with the
// resolved hex bytes.
type disassemblyEmitter struct {
	listing strings.Builder
	final   string
	bin     *machineCodeEmitter

	// exprSlots records the buffer offset of every 32-bit slot whose
	// listing text used an offset-keyed sentinel (emitted for Expression
	// operands, which have no single label name to key a sentinel by).
	exprSlots []int
}

// Listing returns the text disassembly. Only meaningful after finalize has
// run: before that, unresolved references still show as @@@@label@@@@
// sentinels.
func (d *disassemblyEmitter) Listing() string {
	if d.final != "" {
		return d.final
	}
	return d.listing.String()
}

func newDisassemblyEmitter() *disassemblyEmitter {
	return &disassemblyEmitter{bin: newMachineCodeEmitter()}
}

func (d *disassemblyEmitter) currentAddress() int { return d.bin.currentAddress() }

func (d *disassemblyEmitter) markLabel(name string) {
	fmt.Fprintf(&d.listing, "    %s:\n", name)
	d.bin.markLabel(name)
}

func (d *disassemblyEmitter) line(startAddr int, text string) {
	endAddr := d.bin.currentAddress()
	code := d.bin.buf[startAddr:endAddr]
	hexBytes := make([]string, len(code))
	for i, b := range code {
		hexBytes[i] = fmt.Sprintf("%02x", b)
	}
	fmt.Fprintf(&d.listing, "%08x: %-18s %s\n", startAddr, strings.Join(hexBytes, " "), text)
}

// exprSentinel builds the placeholder embedded in the listing for a 32-bit
// slot at the given buffer offset that depends on an Expression. Unlike a
// Jump, an Expression has no single name to key a sentinel by, so the
// slot's own offset is used instead; finalize reads the resolved bytes
// straight out of the binary emitter's buffer at that offset.
func (d *disassemblyEmitter) exprSentinel(slotOffset int) string {
	return fmt.Sprintf("@@@@#%d@@@@", slotOffset)
}

// jumpSentinelAndText returns the listing placeholder for a not-yet-resolved
// jump/call/mov target, and the text to print as the operand itself. Jump
// targets are keyed by label name, resolved by finalize's label pass;
// Expression targets are keyed by their own slot offset, recorded in
// exprSlots, via exprSentinel. The slot is assumed to be the last 4 bytes
// emitted so far, which holds for every caller (a single opcode byte, if
// any, always precedes the 4-byte fixup slot).
func (d *disassemblyEmitter) jumpSentinelAndText(target Operand) (sentinel, text string) {
	switch t := target.(type) {
	case Jump:
		return fmt.Sprintf("@@@@%s@@@@", t.Label), t.Label
	case *Expression:
		slot := d.currentAddress() - 4
		d.exprSlots = append(d.exprSlots, slot)
		return d.exprSentinel(slot), t.String()
	default:
		return fmt.Sprintf("@@@@%s@@@@", target), fmt.Sprint(target)
	}
}

func (d *disassemblyEmitter) emitLabelTarget(name string) {
	start := d.currentAddress()
	d.bin.emitLabelTarget(name)
	fmt.Fprintf(&d.listing, "%08x: @@@@%s@@@@        dw %s\n", start, name, name)
}

func (d *disassemblyEmitter) emitAdd(dst, s1, s2 *Register) {
	start := d.currentAddress()
	d.bin.emitAdd(dst, s1, s2)
	d.line(start, fmt.Sprintf("add %s, %s, %s", dst, s1, s2))
}

func (d *disassemblyEmitter) emitSub(dst, s1, s2 *Register) {
	start := d.currentAddress()
	d.bin.emitSub(dst, s1, s2)
	d.line(start, fmt.Sprintf("sub %s, %s, %s", dst, s1, s2))
}

func (d *disassemblyEmitter) emitOr(dst, s1, s2 *Register) {
	start := d.currentAddress()
	d.bin.emitOr(dst, s1, s2)
	d.line(start, fmt.Sprintf("or %s, %s, %s", dst, s1, s2))
}

func (d *disassemblyEmitter) emitAnd(dst, s1, s2 *Register) {
	start := d.currentAddress()
	d.bin.emitAnd(dst, s1, s2)
	d.line(start, fmt.Sprintf("and %s, %s, %s", dst, s1, s2))
}

func (d *disassemblyEmitter) emitXor(dst, s1, s2 *Register) {
	start := d.currentAddress()
	d.bin.emitXor(dst, s1, s2)
	d.line(start, fmt.Sprintf("xor %s, %s, %s", dst, s1, s2))
}

func (d *disassemblyEmitter) emitSra(reg *Register, imm Number) {
	start := d.currentAddress()
	d.bin.emitSra(reg, imm)
	d.line(start, fmt.Sprintf("sra %s, %s", reg, imm))
}

func (d *disassemblyEmitter) emitSll(reg *Register, imm Number) {
	start := d.currentAddress()
	d.bin.emitSll(reg, imm)
	d.line(start, fmt.Sprintf("sll %s, %s", reg, imm))
}

func (d *disassemblyEmitter) emitPushd(reg *Register) {
	start := d.currentAddress()
	d.bin.emitPushd(reg)
	d.line(start, fmt.Sprintf("pushd %s", reg))
}

func (d *disassemblyEmitter) emitPopd(reg *Register) {
	start := d.currentAddress()
	d.bin.emitPopd(reg)
	d.line(start, fmt.Sprintf("popd %s", reg))
}

func (d *disassemblyEmitter) emitPushr(reg *Register) {
	start := d.currentAddress()
	d.bin.emitPushr(reg)
	d.line(start, fmt.Sprintf("pushr %s", reg))
}

func (d *disassemblyEmitter) emitPopr(reg *Register) {
	start := d.currentAddress()
	d.bin.emitPopr(reg)
	d.line(start, fmt.Sprintf("popr %s", reg))
}

func (d *disassemblyEmitter) emitIfkt(imm16 Number) {
	start := d.currentAddress()
	d.bin.emitIfkt(imm16)
	d.line(start, fmt.Sprintf("ifkt %s", imm16))
}

func (d *disassemblyEmitter) emitNop() {
	start := d.currentAddress()
	d.bin.emitNop()
	d.line(start, "nop")
}

func (d *disassemblyEmitter) emitIllegal() {
	start := d.currentAddress()
	d.bin.emitIllegal()
	d.line(start, "illegal")
}

func (d *disassemblyEmitter) emitData8(v Operand) error {
	start := d.currentAddress()
	if err := d.bin.emitData8(v); err != nil {
		return err
	}
	d.line(start, fmt.Sprintf("db %s", v))
	return nil
}

func (d *disassemblyEmitter) emitData32(v Operand) error {
	start := d.currentAddress()
	switch t := v.(type) {
	case Jump:
		d.bin.emitData32(v)
		fmt.Fprintf(&d.listing, "%08x: @@@@%s@@@@        dw %s\n", start, t.Label, t.Label)
		return nil
	case *Expression:
		if err := d.bin.emitData32(v); err != nil {
			return err
		}
		slot := d.currentAddress() - 4
		d.exprSlots = append(d.exprSlots, slot)
		fmt.Fprintf(&d.listing, "%08x: %s        dw %s\n", start, d.exprSentinel(slot), t.String())
		return nil
	default:
		if err := d.bin.emitData32(v); err != nil {
			return err
		}
		d.line(start, fmt.Sprintf("dw %s", v))
		return nil
	}
}

func (d *disassemblyEmitter) emitDataString(s string) {
	start := d.currentAddress()
	d.bin.emitDataString(s)
	d.line(start, fmt.Sprintf("ds %q", s))
}

func (d *disassemblyEmitter) emitCall(target Operand) error {
	start := d.currentAddress()
	if err := d.bin.emitCall(target); err != nil {
		return err
	}
	sentinel, text := d.jumpSentinelAndText(target)
	fmt.Fprintf(&d.listing, "%08x: %02x %s     call %s\n", start, opCall, sentinel, text)
	return nil
}

func (d *disassemblyEmitter) emitConditionalJump(cond int, target Operand) error {
	start := d.currentAddress()
	if err := d.bin.emitConditionalJump(cond, target); err != nil {
		return err
	}
	mnemonic, opcode := "jz", opJz
	if cond == JumpCondCarry {
		mnemonic, opcode = "jc", opJc
	}
	sentinel, text := d.jumpSentinelAndText(target)
	fmt.Fprintf(&d.listing, "%08x: %02x %s     %s %s\n", start, opcode, sentinel, mnemonic, text)
	return nil
}

func (d *disassemblyEmitter) emitJump(target Operand) error {
	start := d.currentAddress()
	if err := d.bin.emitJump(target); err != nil {
		return err
	}
	if reg, ok := target.(*Register); ok {
		d.line(start, fmt.Sprintf("jmp %s", reg))
		return nil
	}
	sentinel, text := d.jumpSentinelAndText(target)
	fmt.Fprintf(&d.listing, "%08x: %02x %s     jmp %s\n", start, opJmp, sentinel, text)
	return nil
}

func (d *disassemblyEmitter) emitMov(suffix byte, target *Register, source Operand) error {
	start := d.currentAddress()
	if err := d.bin.emitMov(suffix, target, source); err != nil {
		return err
	}
	switch src := source.(type) {
	case Jump:
		opcode := opMovIAcc1
		if target.Name == "acc2" {
			opcode = opMovIAcc2
		}
		fmt.Fprintf(&d.listing, "%08x: %02x @@@@%s@@@@     mov.%c %s, %s\n", start, opcode, src.Label, suffixOrW(suffix), target, src.Label)
	case *Expression:
		opcode := opMovIAcc1
		if target.Name == "acc2" {
			opcode = opMovIAcc2
		}
		slot := d.currentAddress() - 4
		d.exprSlots = append(d.exprSlots, slot)
		fmt.Fprintf(&d.listing, "%08x: %02x %s     mov.%c %s, %s\n", start, opcode, d.exprSentinel(slot), suffixOrW(suffix), target, src.String())
	default:
		d.line(start, fmt.Sprintf("mov.%c %s, %s", suffixOrW(suffix), target, source))
	}
	return nil
}

func suffixOrW(suffix byte) byte {
	if suffix == 0 {
		return 'w'
	}
	return suffix
}

func (d *disassemblyEmitter) finalize() error {
	if err := d.bin.finalize(); err != nil {
		return err
	}
	text := d.listing.String()
	for label, addr := range d.bin.labels {
		hexBytes := fmt.Sprintf("%02x %02x %02x %02x",
			byte(addr), byte(addr>>8), byte(addr>>16), byte(addr>>24))
		sentinel := fmt.Sprintf("@@@@%s@@@@", label)
		text = strings.ReplaceAll(text, sentinel, hexBytes)
	}
	for _, slot := range d.exprSlots {
		v := d.bin.buf[slot : slot+4]
		hexBytes := fmt.Sprintf("%02x %02x %02x %02x", v[0], v[1], v[2], v[3])
		text = strings.ReplaceAll(text, d.exprSentinel(slot), hexBytes)
	}
	d.final = text
	return nil
}
