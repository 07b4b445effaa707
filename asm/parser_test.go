// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) *program {
	t.Helper()
	lx := newLexer("parser_test", src, nil)
	prog, err := parseProgram(lx)
	require.NoError(t, err)
	return prog
}

func TestParseConstDecl(t *testing.T) {
	prog := parseSrc(t, "const FOO = 42")
	require.Len(t, prog.decls, 1)
	c, ok := prog.decls[0].(*constDecl)
	require.True(t, ok)
	assert.Equal(t, "FOO", c.Name)
	assert.Equal(t, uint32(42), c.Value)
}

func TestParseConstDeclNegative(t *testing.T) {
	prog := parseSrc(t, "const FOO = -1")
	c := prog.decls[0].(*constDecl)
	assert.Equal(t, uint32(0xFFFFFFFF), c.Value)
}

func TestParseRegisterOperandModifiers(t *testing.T) {
	tests := []struct {
		src      string
		indirect bool
		modifier regModifier
	}{
		{"%acc1", false, modNone},
		{"[%ip]", true, modNone},
		{"[++%wp]", true, modPreInc},
		{"[--%dsp]", true, modPreDec},
		{"[%rsp++]", true, modPostInc},
		{"[%ret--]", true, modPostDec},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			lx := newLexer("reg_test", tt.src, nil)
			p, err := newParser(lx)
			require.NoError(t, err)
			n, err := p.parseOperand()
			require.NoError(t, err)
			r, ok := n.(*regOperandNode)
			require.True(t, ok)
			assert.Equal(t, tt.indirect, r.Indirect)
			assert.Equal(t, tt.modifier, r.Modifier)
		})
	}
}

func TestParseAddressExprSingleLeafUnwrapped(t *testing.T) {
	lx := newLexer("expr_test", "42", nil)
	p, err := newParser(lx)
	require.NoError(t, err)
	n, err := p.parseOperand()
	require.NoError(t, err)
	_, ok := n.(*numOperandNode)
	assert.True(t, ok, "a single leaf must not be wrapped in an exprOperandNode")
}

func TestParseAddressExprMultiTerm(t *testing.T) {
	lx := newLexer("expr_test2", ":label + 4 - 1", nil)
	p, err := newParser(lx)
	require.NoError(t, err)
	n, err := p.parseOperand()
	require.NoError(t, err)
	e, ok := n.(*exprOperandNode)
	require.True(t, ok)
	require.Len(t, e.Terms, 3)
	assert.Equal(t, byte(0), e.Terms[0].Op)
	assert.Equal(t, byte('+'), e.Terms[1].Op)
	assert.Equal(t, byte('-'), e.Terms[2].Op)
}

func TestParseDefDeclWithFlagsAndAlias(t *testing.T) {
	prog := parseSrc(t, "def asm[#0x80](code) alias FOOALIAS FOO nop end")
	d, ok := prog.decls[0].(*defDecl)
	require.True(t, ok)
	assert.False(t, d.IsWordBody)
	assert.Equal(t, "code", d.Kind)
	assert.Equal(t, "FOOALIAS", d.Alias)
	assert.Equal(t, "FOO", d.Name)
	require.Len(t, d.Flags, 1)
	require.Len(t, d.Body, 1)
}

func TestParseWordBody(t *testing.T) {
	prog := parseSrc(t, "def word(colon) W loop: #5 -1 :loop BAR end")
	d := prog.decls[0].(*defDecl)
	require.True(t, d.IsWordBody)
	require.Len(t, d.WordBody, 5)
	assert.Equal(t, "loop", d.WordBody[0].Label)
	assert.True(t, d.WordBody[1].HasNumber)
	assert.Equal(t, uint32(5), *d.WordBody[1].Number)
	assert.True(t, d.WordBody[2].HasNumber)
	assert.Equal(t, uint32(0xFFFFFFFF), *d.WordBody[2].Number)
	assert.Equal(t, "loop", d.WordBody[3].JumpTarget)
	assert.Equal(t, "BAR", d.WordBody[4].Ident)
}

func TestParseMacroDeclAndLocalLabel(t *testing.T) {
	prog := parseSrc(t, "macro M(a,b) dw :'x 'x: end")
	m := prog.decls[0].(*macroDecl)
	assert.Equal(t, []string{"a", "b"}, m.Params)
	require.Len(t, m.Body, 2)
	dataSt, ok := m.Body[0].(*dataStmt)
	require.True(t, ok)
	jn, ok := dataSt.Values[0].(*jumpOperandNode)
	require.True(t, ok)
	assert.True(t, jn.IsLocal)
	assert.Equal(t, "'x", jn.Label)
}

func TestParseInstructionRejectsArityMismatch(t *testing.T) {
	lx := newLexer("arity_test", "codeblock add %acc1, %acc2 end", nil)
	_, err := parseProgram(lx)
	require.Error(t, err)
}

func TestParseUnknownMnemonicIsMacroCallOrError(t *testing.T) {
	// not a known mnemonic and not followed by '(' -> unsupported opcode
	lx := newLexer("bad_mnemonic", "codeblock frobnicate end", nil)
	_, err := parseProgram(lx)
	require.Error(t, err)
	assert.Equal(t, errUnsupportedOpcode, err.(*Error).Kind)
}
