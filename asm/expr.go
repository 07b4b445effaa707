// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import "strings"

// exprTerm is one term of a realized Expression: a Number or a Jump. The
// "current address" marker is resolved into a Number by the assembler at
// the moment the expression is handed to the emitter, so by
// the time an Expression reaches this type it only ever holds these two
// leaf kinds.
type exprTerm struct {
	Op   byte // 0 for the first term, otherwise '+' or '-'
	Num  *Number
	Jump *Jump
}

// Expression is an ordered list alternating terms and +/- operators over
// Number and Jump leaves. The emitter defers its evaluation to finalize,
// even when every term is already constant.
type Expression struct {
	Terms []exprTerm
}

// IsConstant reports whether every term is constant, i.e. no term is an
// unresolved Jump.
func (e *Expression) IsConstant() bool {
	for _, t := range e.Terms {
		if t.Jump != nil {
			return false
		}
	}
	return true
}

func (e *Expression) String() string {
	var b strings.Builder
	for i, t := range e.Terms {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteByte(t.Op)
			b.WriteByte(' ')
		}
		if t.Num != nil {
			b.WriteString(t.Num.String())
		} else {
			b.WriteString(t.Jump.String())
		}
	}
	return b.String()
}

// Evaluate reduces the expression left-to-right modulo 2^32, substituting
// each Jump term with its resolved label address.
func (e *Expression) Evaluate(labels map[string]int) (uint32, error) {
	var acc uint32
	for i, t := range e.Terms {
		var v uint32
		switch {
		case t.Num != nil:
			v = t.Num.Value
		case t.Jump != nil:
			addr, ok := labels[t.Jump.Label]
			if !ok {
				return 0, newError(errUndefinedReference, Position{}, "Undefined label %q in expression", t.Jump.Label)
			}
			v = uint32(addr)
		}
		if i == 0 {
			acc = v
			continue
		}
		if t.Op == '+' {
			acc += v
		} else {
			acc -= v
		}
	}
	return acc, nil
}
