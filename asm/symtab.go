// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// WordRange is one entry of the symbol table: a defined word's name and the
// byte range it occupies in the image.
type WordRange struct {
	Name  string
	Start int
	End   int
}

// SymbolTable is an append-only record of word ranges.
type SymbolTable struct {
	words []WordRange
}

// Add appends a (name, start, end) triple.
func (s *SymbolTable) Add(name string, start, end int) {
	s.words = append(s.words, WordRange{name, start, end})
}

// Words returns the recorded ranges in definition order.
func (s *SymbolTable) Words() []WordRange {
	return s.words
}

// Clear discards all entries, so the same table can be reused.
func (s *SymbolTable) Clear() {
	s.words = s.words[:0]
}

// WriteTo serialises the symbol table as `name,start,end` decimal lines.
func (s *SymbolTable) WriteTo(w io.Writer) error {
	for _, wr := range s.words {
		if _, err := fmt.Fprintf(w, "%s,%d,%d\n", wr.Name, wr.Start, wr.End); err != nil {
			return errors.Wrap(err, "writing symbol table")
		}
	}
	return nil
}
