// This file is part of vmforth - a Forth-style VM assembler/disassembler.

// Package ngi holds small I/O helpers shared by the CLI's output writers.
package ngi

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// ErrWriter wraps an io.Writer and latches the first write error, so a
// sequence of writes can be issued without checking each one individually;
// the caller checks Err once at the end.
type ErrWriter struct {
	w   io.Writer
	Err error
}

// NewErrWriter returns a new ErrWriter around w.
func NewErrWriter(w io.Writer) *ErrWriter {
	return &ErrWriter{w: w}
}

func (w *ErrWriter) Write(p []byte) (n int, err error) {
	if w.Err != nil {
		return 0, w.Err
	}
	n, err = w.w.Write(p)
	if err != nil {
		w.Err = errors.Wrap(err, "write failed")
	}
	return n, w.Err
}

// WriteCArray writes data as a single line of comma-separated hex byte
// literals, the format used by the CLI's -f carray output.
func WriteCArray(w io.Writer, data []byte) error {
	ew := NewErrWriter(w)
	for i, b := range data {
		if i > 0 {
			fmt.Fprint(ew, ",")
		}
		fmt.Fprintf(ew, "0x%02x", b)
	}
	fmt.Fprintln(ew)
	return ew.Err
}
