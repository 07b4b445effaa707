// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import "fmt"

// regModifier is the indirection modifier applied to a register operand.
type regModifier int

const (
	modNone regModifier = iota
	modPreInc
	modPreDec
	modPostInc
	modPostDec
)

// registerEncoding maps the closed register vocabulary to its 3-bit wire
// encoding.
var registerEncoding = map[string]byte{
	"ip":   0,
	"wp":   1,
	"rsp":  2,
	"dsp":  3,
	"acc1": 4,
	"acc2": 5,
	"ret":  6,
	"pc":   7,
}

// Operand is the closed set of tagged operand values the emitter accepts:
// {Register, Number, Jump, Expression, String}. Implementers should prefer
// an exhaustive type switch over this interface to open-ended inheritance.
type Operand interface {
	// IsConstant reports whether the operand contributes no unknown to an
	// enclosing expression.
	IsConstant() bool
	fmt.Stringer
}

// Register is a register operand: name, indirection and pre/post modifier.
// A register is always constant.
type Register struct {
	Name     string
	Encoding byte
	Indirect bool
	Modifier regModifier
	Line     int
}

func (*Register) IsConstant() bool { return true }

func (r *Register) Is(prop string) bool {
	switch prop {
	case "indirect":
		return r.Indirect
	case "increment":
		return r.Modifier == modPreInc || r.Modifier == modPostInc
	case "decrement":
		return r.Modifier == modPreDec || r.Modifier == modPostDec
	case "prefix":
		return r.Modifier == modPreInc || r.Modifier == modPreDec
	case "postfix":
		return r.Modifier == modPostInc || r.Modifier == modPostDec
	}
	return false
}

func (r *Register) String() string {
	pre, post := "", ""
	switch r.Modifier {
	case modPreInc:
		pre = "++"
	case modPreDec:
		pre = "--"
	case modPostInc:
		post = "++"
	case modPostDec:
		post = "--"
	}
	if r.Indirect {
		return fmt.Sprintf("[%s%%%s%s]", pre, r.Name, post)
	}
	return "%" + r.Name
}

// Number is a 32-bit immediate value. It is always constant.
type Number struct {
	Value uint32
}

func (Number) IsConstant() bool { return true }
func (n Number) String() string { return fmt.Sprintf("#0x%x", n.Value) }

// Jump is an unresolved label reference, never constant until finalisation
// substitutes its resolved address.
type Jump struct {
	Label string
}

func (Jump) IsConstant() bool { return false }
func (j Jump) String() string { return j.Label }

// String is a raw-bytes string operand.
type String struct {
	Value string
}

func (String) IsConstant() bool { return true }
func (s String) String() string { return s.Value }
