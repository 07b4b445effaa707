// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jokymon/forth-vm-sim/asm"
)

func TestAssembleToBinary_concreteScenarios(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []byte
	}{
		{
			"ifkt immediate",
			`codeblock ifkt #0x1234 end`,
			[]byte{0xfe, 0x34, 0x12},
		},
		{
			"dw immediate",
			`codeblock dw #0x12345678 end`,
			[]byte{0x78, 0x56, 0x34, 0x12},
		},
		{
			"forward jump",
			`codeblock jmp :t nop nop t: nop end`,
			[]byte{0x70, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		},
		{
			"two headers back-link",
			`codeblock nop end def asm(code) A nop end def asm(code) B nop end`,
			[]byte{
				0x00,                   // codeblock nop
				0x00, 0x00, 0x00, 0x00, // A: back-link = 0
				0x01,           // A: flags|len("A")
				'A',            // A: name
				0x00, 0x00, 0x00, 0x00, // A: code-field placeholder
				0x00,                   // A: body nop
				0x01, 0x00, 0x00, 0x00, // B: back-link = 1 (A's header offset)
				0x01,           // B: flags|len("B")
				'B',            // B: name
				0x00, 0x00, 0x00, 0x00, // B: code-field placeholder
				0x00, // B: body nop
			},
		},
		{
			"flagged header",
			`def asm[#0x80](code) WORD1 end`,
			[]byte{
				0x00, 0x00, 0x00, 0x00, // back-link = 0 (first word)
				0x85, // 0x80 | len("WORD1")
				'W', 'O', 'R', 'D', '1',
				0x00, 0x00, 0x00, 0x00, // code-field placeholder
			},
		},
		{
			"macro local label double expansion",
			`macro M() dw :'L 'L: end codeblock M() M() end`,
			[]byte{0x04, 0x00, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, _, err := asm.AssembleToBinary(tt.name, tt.src, asm.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, img)
		})
	}
}

func TestAssembleToBinary_dbRejectsOverflow(t *testing.T) {
	_, _, err := asm.AssembleToBinary("db_overflow", `codeblock db #0x100 end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0xFF")
}

func TestAssembleToBinary_macroArityMismatch(t *testing.T) {
	_, _, err := asm.AssembleToBinary("arity", `macro M(a) nop end codeblock M() end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 1 argument")
}

func TestAssembleToBinary_undefinedMacro(t *testing.T) {
	_, _, err := asm.AssembleToBinary("undef_macro", `codeblock nope() end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined macro "nope"`)
}

func TestAssembleToBinary_undefinedLabel(t *testing.T) {
	_, _, err := asm.AssembleToBinary("undef_label", `codeblock jmp :nowhere end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nowhere"`)
}

func TestAssembleToBinary_movDoubleIndirectRejected(t *testing.T) {
	_, _, err := asm.AssembleToBinary("mov_double_indirect", `codeblock mov [%acc1], [%acc2] end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register-indirect")
}

func TestAssembleToBinary_pushdRejectsByteSuffix(t *testing.T) {
	_, _, err := asm.AssembleToBinary("pushd_b", `codeblock pushd.b %acc1 end`, asm.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word-sized mode")
}

func TestAssembleToBinary_forwardWordReference(t *testing.T) {
	// B is referenced before its own def but must still resolve, since
	// word names are pre-scanned before any body is walked.
	src := `
		def word(colon) A
			B
		end
		def word(colon) B
			A
		end
	`
	_, symtab, err := asm.AssembleToBinary("forward_ref", src, asm.Options{})
	require.NoError(t, err)
	names := make([]string, 0, len(symtab.Words()))
	for _, w := range symtab.Words() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"A", "B"}, names)
}

func TestAssembleToBinary_defCfaMacro(t *testing.T) {
	src := `
		const CODE_MARKER = 0x99
		macro __DEFCODE_CFA() dw #CODE_MARKER end
		def asm(code) MYWORD nop end
	`
	img, _, err := asm.AssembleToBinary("cfa_macro", src, asm.Options{})
	require.NoError(t, err)
	// back-link(4) + flags/len(1) + name(6) + cfa(4) + nop(1) = 16 bytes
	require.Len(t, img, 16)
	assert.Equal(t, []byte{0x99, 0x00, 0x00, 0x00}, img[11:15])
}

func TestAssembleToBinary_symbolTableWriteTo(t *testing.T) {
	_, symtab, err := asm.AssembleToBinary("symtab", `def asm(code) A nop end`, asm.Options{})
	require.NoError(t, err)
	var b strings.Builder
	require.NoError(t, symtab.WriteTo(&b))
	assert.Equal(t, "A,0,11\n", b.String())
}

func TestAssembleToBinary_includeCycleRejected(t *testing.T) {
	opts := asm.Options{
		ReadFile: func(path string) ([]byte, error) {
			switch path {
			case "b.asm":
				return []byte(`include "b.asm"`), nil
			}
			return nil, assert.AnError
		},
	}
	_, _, err := asm.AssembleToBinary("cycle_main", `include "b.asm"`, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle detected")
}

func TestAssembleToBinary_includeResolvesViaSearchPath(t *testing.T) {
	opts := asm.Options{
		IncludePaths: []string{"/libdir"},
		ReadFile: func(path string) ([]byte, error) {
			if path == "/libdir/defs.asm" {
				return []byte(`const X = 7`), nil
			}
			return nil, assert.AnError
		},
	}
	img, _, err := asm.AssembleToBinary("include_ok", `include "defs.asm" codeblock dw X end`, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x07, 0x00, 0x00, 0x00}, img)
}

// defsysvar.asm demonstrates that a second word kind ("var", a system
// variable whose code field is its storage cell) needs no driver support
// of its own: it falls out of def word(var) plus a __DEFVAR_CFA macro,
// the same extensibility point (code), (colon) already use.
func TestAssembleToBinary_defsysvarWorkedExample(t *testing.T) {
	src, err := os.ReadFile("testdata/defsysvar.asm")
	require.NoError(t, err)

	img, symtab, err := asm.AssembleToBinary("defsysvar", string(src), asm.Options{})
	require.NoError(t, err)

	want := []byte{
		0x00,                   // codeblock nop
		0x00, 0x00, 0x00, 0x00, // SP0: back-link = 0 (first word)
		0x03,                // SP0: flags|len("SP0")
		'S', 'P', '0',       // SP0: name
		0x00, 0x00, 0x00, 0x00, // SP0: cfa cell, filled with 0 by __DEFVAR_CFA
		0x01, 0x00, 0x00, 0x00, // FREEPTR: back-link = 1 (SP0's header offset)
		0x07,                                       // FREEPTR: flags|len("FREEPTR")
		'F', 'R', 'E', 'E', 'P', 'T', 'R',           // FREEPTR: name
		0x00, 0x00, 0x00, 0x00, // FREEPTR: cfa cell
		0x09, 0x00, 0x00, 0x00, // dw :sp0_cfa -> 9
		0x19, 0x00, 0x00, 0x00, // dw :freeptr_cfa -> 25
	}
	assert.Equal(t, want, img)

	names := make([]string, 0, len(symtab.Words()))
	for _, w := range symtab.Words() {
		names = append(names, w.Name)
	}
	assert.Equal(t, []string{"SP0", "FREEPTR"}, names)
}

func TestAssembleToDisassembly_matchesBinaryLayout(t *testing.T) {
	src := `
		const LIMIT = 10
		macro inc(r) add @r, @r, @r end
		def asm(code) DOUBLE
			inc(%acc1)
		end
	`
	bin, binSym, err := asm.AssembleToBinary("layout_bin", src, asm.Options{})
	require.NoError(t, err)
	listing, disSym, err := asm.AssembleToDisassembly("layout_dis", src, asm.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, listing)
	assert.Equal(t, binSym.Words(), disSym.Words())
	// back-link(4) + flags/len(1) + name(6) + cfa-placeholder(4) + add(3) = 18
	assert.Len(t, bin, 18)
}
