// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemblyEmitterDataExpressionResolves(t *testing.T) {
	d := newDisassemblyEmitter()
	expr := &Expression{Terms: []exprTerm{
		{Jump: &Jump{Label: "t"}},
		{Op: '+', Num: &Number{Value: 4}},
	}}
	require.NoError(t, d.emitData32(expr))
	d.markLabel("t")
	d.emitNop()
	require.NoError(t, d.finalize())

	want := "00000000: 08 00 00 00        dw t + #0x4\n" +
		"    t:\n" +
		"00000004: 00                 nop\n"
	assert.Equal(t, want, d.Listing())
}

func TestDisassemblyEmitterJumpExpressionResolves(t *testing.T) {
	d := newDisassemblyEmitter()
	expr := &Expression{Terms: []exprTerm{
		{Jump: &Jump{Label: "t"}},
		{Op: '+', Num: &Number{Value: 4}},
	}}
	require.NoError(t, d.emitJump(expr))
	d.emitNop()
	d.markLabel("t")
	require.NoError(t, d.finalize())

	want := "00000000: 70 0a 00 00 00     jmp t + #0x4\n" +
		"00000005: 00                 nop\n" +
		"    t:\n"
	assert.Equal(t, want, d.Listing())
}
