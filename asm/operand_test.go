// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterString(t *testing.T) {
	tests := []struct {
		name string
		reg  *Register
		want string
	}{
		{"direct", &Register{Name: "acc1"}, "%acc1"},
		{"indirect", &Register{Name: "ip", Indirect: true}, "[%ip]"},
		{"pre-increment", &Register{Name: "dsp", Indirect: true, Modifier: modPreInc}, "[++%dsp]"},
		{"post-decrement", &Register{Name: "rsp", Indirect: true, Modifier: modPostDec}, "[%rsp--]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.reg.String())
		})
	}
}

func TestRegisterIs(t *testing.T) {
	r := &Register{Name: "wp", Indirect: true, Modifier: modPreInc}
	assert.True(t, r.Is("indirect"))
	assert.True(t, r.Is("increment"))
	assert.True(t, r.Is("prefix"))
	assert.False(t, r.Is("decrement"))
	assert.False(t, r.Is("postfix"))
}

func TestNumberString(t *testing.T) {
	assert.Equal(t, "#0x2a", Number{Value: 42}.String())
}

func TestJumpIsConstant(t *testing.T) {
	assert.False(t, Jump{Label: "foo"}.IsConstant())
	assert.True(t, Number{Value: 1}.IsConstant())
	assert.True(t, String{Value: "x"}.IsConstant())
}

func TestExpressionEvaluate(t *testing.T) {
	e := &Expression{Terms: []exprTerm{
		{Op: 0, Num: &Number{Value: 10}},
		{Op: '+', Jump: &Jump{Label: "L"}},
		{Op: '-', Num: &Number{Value: 3}},
	}}
	assert.False(t, e.IsConstant())

	v, err := e.Evaluate(map[string]int{"L": 5})
	assert.NoError(t, err)
	assert.Equal(t, uint32(12), v)

	_, err = e.Evaluate(map[string]int{})
	assert.Error(t, err)
}

func TestExpressionAllConstant(t *testing.T) {
	e := &Expression{Terms: []exprTerm{
		{Op: 0, Num: &Number{Value: 1}},
		{Op: '+', Num: &Number{Value: 2}},
	}}
	assert.True(t, e.IsConstant())
	v, err := e.Evaluate(nil)
	assert.NoError(t, err)
	assert.Equal(t, uint32(3), v)
}
