// This file is part of vmforth - a Forth-style VM assembler/disassembler.

// Command vmasm assembles vmforth source files into a raw binary image, a
// C-style byte array, or a text disassembly listing.
//
// Usage:
//
//	vmasm [flags] INFILE
//
//	-o filename
//		  output file path (required)
//	-f bin|carray|disassembly
//		  output format (default: the discovered vmasm.toml's
//		  [assembler] default_format, else "bin")
//	-sym
//		  also write a sibling .sym symbol table file
//	-I path
//		  add a directory to the include search path (can be specified multiple times)
//	-config filename
//		  use the given config file instead of auto-discovering vmasm.toml
package main
