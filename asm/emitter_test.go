// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineCodeEmitterBasics(t *testing.T) {
	m := newMachineCodeEmitter()
	m.emitNop()
	m.emitIllegal()
	assert.Equal(t, []byte{opNop, opIllegal}, m.buf)
	assert.Equal(t, 2, m.currentAddress())
}

func TestMachineCodeEmitterData8Overflow(t *testing.T) {
	m := newMachineCodeEmitter()
	err := m.emitData8(Number{Value: 0x100})
	require.Error(t, err)
	assert.IsType(t, &Error{}, err)
	assert.Equal(t, errEncoding, err.(*Error).Kind)
}

func TestMachineCodeEmitterJumpFixup(t *testing.T) {
	m := newMachineCodeEmitter()
	require.NoError(t, m.emitJump(Jump{Label: "target"}))
	m.markLabel("target")
	m.emitNop()
	require.NoError(t, m.finalize())
	assert.Equal(t, []byte{opJmp, 0x05, 0x00, 0x00, 0x00, opNop}, m.buf)
}

func TestMachineCodeEmitterUnresolvedLabel(t *testing.T) {
	m := newMachineCodeEmitter()
	require.NoError(t, m.emitJump(Jump{Label: "nowhere"}))
	err := m.finalize()
	require.Error(t, err)
	assert.Equal(t, errUndefinedReference, err.(*Error).Kind)
}

func TestMachineCodeEmitterMovDoubleIndirect(t *testing.T) {
	m := newMachineCodeEmitter()
	target := &Register{Name: "acc1", Encoding: registerEncoding["acc1"], Indirect: true}
	source := &Register{Name: "acc2", Encoding: registerEncoding["acc2"], Indirect: true}
	err := m.emitMov(0, target, source)
	require.Error(t, err)
	assert.Equal(t, errEncoding, err.(*Error).Kind)
}

func TestMachineCodeEmitterMovImmediateRejectsNonAcc(t *testing.T) {
	m := newMachineCodeEmitter()
	target := &Register{Name: "ip", Encoding: registerEncoding["ip"]}
	err := m.emitMov(0, target, Number{Value: 1})
	require.Error(t, err)
	assert.Equal(t, errEncoding, err.(*Error).Kind)
}

func TestMachineCodeEmitterReset(t *testing.T) {
	m := newMachineCodeEmitter()
	m.emitNop()
	m.markLabel("x")
	m.reset()
	assert.Equal(t, 0, m.currentAddress())
	assert.Empty(t, m.labels)
}
