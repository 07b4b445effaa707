// This file is part of vmforth - a Forth-style VM assembler/disassembler.

// Package asm assembles a Forth-style threaded-code assembly language into
// a raw binary image or a text disassembly listing for a stack-based VM.
//
// The source language mixes three levels:
//
//   - low-level register/memory instructions for the VM's own opcodes
//   - threaded-code "word" definitions that reference other words by
//     their code-field address
//   - a macro system with parameters and hygienic local labels used to
//     expand common instruction sequences
//
// Instruction set:
//
//	mnemonic         opcode       operand layout
//	--------         ------       --------------
//	nop              0x00         -
//	mov.w r,r        0x20         (src|si)<<0 | (dst|di)<<4, si/di=0x8 if indirect
//	mov.b r,r        0x21         same layout, byte sized
//	mov.w [r],r      0x22         indirect<-direct with modifier
//	mov.w r,[r]      0x24         direct<-indirect with modifier
//	mov r,#imm       0x26 (acc1)  4 little-endian bytes follow
//	mov r,#imm       0x27 (acc2)  4 little-endian bytes follow
//	mov r,:label     0x26/0x27    followed by a fixup slot
//	add.w r,r,r      0x30         (dst<<4)|s1, then s2
//	sub.w r,r,r      0x32         (dst<<4)|s1, then s2
//	or.w  r,r,r      0x34         (dst<<4)|s1, then s2
//	and.w r,r,r      0x36         (dst<<4)|s1, then s2
//	xor.w r,r,r      0x38         (dst<<4)|s1, then s2
//	sra.w r,#imm5    0x3c         (reg<<5)|(imm&0x1F)
//	sll.w r,#imm5    0x3e         (reg<<5)|(imm&0x1F)
//	pushd/popd r     0xA0..0xAF   direction + register in low 4 bits
//	pushr/popr r     0xB0..0xBF   direction + register in low 4 bits
//	jmp [r]          0x60+reg     indirect jump through register
//	jmp r            0x68+reg     direct jump through register
//	jmp :label       0x70         followed by a fixup slot
//	jz  :label       0x71         followed by a fixup slot
//	jc  :label       0x72         followed by a fixup slot
//	call :label      0x73         followed by a fixup slot
//	ifkt #imm16      0xFE         2 little-endian bytes follow
//	illegal          0xFF         -
//
// pushd/pushr/popd/popr only support the word-sized form; a `.b` suffix on
// any of them is rejected.
//
// Registers are drawn from a closed set with fixed 3-bit encodings:
//
//	ip wp rsp dsp acc1 acc2 ret pc
//	0  1  2   3   4    5    6   7
//
// and accept indirection and pre/post increment/decrement modifiers:
//
//	%r       direct
//	[%r]     indirect, no auto-modify
//	[%r++]   indirect, post-increment
//	[%r--]   indirect, post-decrement
//	[++%r]   indirect, pre-increment
//	[--%r]   indirect, pre-decrement
//
// Top-level declarations:
//
//	const NAME = VALUE               named 32-bit constant
//	macro NAME(p1,p2,...) ... end    parametric macro, expanded per call
//	codeblock ... end                emit bytes at the current offset, no header
//	def asm[flags](kind) NAME ... end    code-kind header + instruction body
//	def word[flags](kind) NAME ... end   word-kind header + threaded body
//
// A `def` emits a dictionary header: a 4-byte back-link to the previous
// header (0 for the first), a name-length+flags byte (the low 6 bits are
// the length, the high bits carry flags such as IMMEDIATE = 0x80), the name
// bytes, and a 4-byte code-field slot. The code field is filled by evaluating
// a macro named __DEF<KIND>_CFA if one is defined (e.g. __DEFCODE_CFA,
// __DEFCOLON_CFA); otherwise it is zero-filled. This is the sole
// extensibility point for new word kinds.
//
// A `def word` body compiles differently from a `def asm` body: each token
// is either a trailing-colon label mark, a leading-colon jump-target
// reference, a reference to another word (compiled as that word's CFA), a
// named constant, or a numeric literal - never a raw instruction.
//
// Labels and addressing:
//
//	label:     mark the current offset as "label"
//	:label     (as an operand) an unresolved forward/backward reference
//	$          the current emission offset at the point of evaluation
//
// db/dw/ds and the instruction mnemonics are reserved and take priority
// over the "ident followed by ':'" label rule, so `jmp :t` parses as a
// jump to t rather than a label named jmp.
//
// Inside a macro body `$` captures the call-site offset, not the
// definition-site offset, and any label beginning with a single quote
// (e.g. 'loop) is private to that expansion: each call gets a fresh
// disambiguated copy so two calls to the same macro never collide.
//
// Two output back-ends share one emitter interface and stay bit-identical
// in layout: machineCodeEmitter writes the raw image (AssembleToBinary),
// disassemblyEmitter composes a machineCodeEmitter and builds a parallel text
// listing from it (AssembleToDisassembly).
package asm
