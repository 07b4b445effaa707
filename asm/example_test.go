// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm_test

import (
	"fmt"

	"github.com/Jokymon/forth-vm-sim/asm"
)

// Shows a bare instruction listing with no labels or headers involved.
func ExampleAssembleToDisassembly() {
	listing, _, err := asm.AssembleToDisassembly("ex1", `codeblock nop illegal end`, asm.Options{})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(listing)
	// Output:
	// 00000000: 00                 nop
	// 00000001: ff                 illegal
}

// A def header shows up in the listing as the data bytes making up the
// header fields, then the _cfa label line and the code field, then the body
// and the _end label line.
func Example_wordHeader() {
	listing, _, err := asm.AssembleToDisassembly("ex2", `def asm(code) A nop end`, asm.Options{})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(listing)
	// Output:
	// 00000000: 00 00 00 00        dw #0x0
	// 00000004: 01                 db #0x1
	// 00000005: 41                 ds "A"
	//     a_cfa:
	// 00000006: 00 00 00 00        dw #0x0
	// 0000000a: 00                 nop
	//     a_end:
}
