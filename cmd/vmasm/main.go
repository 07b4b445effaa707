// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/Jokymon/forth-vm-sim/asm"
	"github.com/Jokymon/forth-vm-sim/internal/ngi"
)

// includePaths collects repeated -I flags into an ordered slice.
type includePaths []string

func (p *includePaths) String() string {
	return strings.Join(*p, ",")
}

func (p *includePaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

func atExit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "vmasm:", err)
	if ae, ok := errors.Cause(err).(*asm.Error); ok {
		fmt.Fprintln(os.Stderr, "at", ae.Pos.String())
	}
	os.Exit(1)
}

func main() {
	var (
		outPath    string
		format     string
		writeSym   bool
		include    includePaths
		configPath string
	)
	flag.StringVar(&outPath, "o", "", "output file path (required)")
	flag.StringVar(&format, "f", "", "output format: bin, carray, disassembly (default: from config, else bin)")
	flag.BoolVar(&writeSym, "sym", false, "also write a sibling .sym symbol table file")
	flag.Var(&include, "I", "add a directory to the include search path (repeatable)")
	flag.StringVar(&configPath, "config", "", "config file to use instead of auto-discovering vmasm.toml")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vmasm [flags] INFILE")
		flag.PrintDefaults()
	}
	flag.Parse()

	formatSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "f" {
			formatSet = true
		}
	})

	if outPath == "" {
		atExit(errors.New("-o is required"))
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	inPath := flag.Arg(0)

	src, err := os.ReadFile(inPath)
	if err != nil {
		atExit(errors.Wrapf(err, "reading %s", inPath))
	}

	var cfg *asm.Config
	if configPath != "" {
		cfg, err = asm.LoadFrom(configPath)
	} else {
		cfg, err = asm.Discover(filepath.Dir(inPath))
	}
	if err != nil {
		atExit(err)
	}

	opts := cfg.Options()
	opts.IncludePaths = append(opts.IncludePaths, include...)

	if !formatSet {
		// -f was not given on the command line: a configured default wins
		// over the flag's own "bin" default, so the TOML-configured format
		// can actually take effect.
		if cfg.Assembler.DefaultFormat != "" {
			format = cfg.Assembler.DefaultFormat
		} else {
			format = "bin"
		}
	}

	symtab, err := assembleAndWrite(inPath, string(src), outPath, format, opts)
	if err != nil {
		atExit(err)
	}

	if writeSym {
		if err := writeSymFile(outPath, symtab); err != nil {
			atExit(err)
		}
	}
}

func assembleAndWrite(inPath, src, outPath, format string, opts asm.Options) (*asm.SymbolTable, error) {
	out, err := os.Create(outPath)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s", outPath)
	}
	defer out.Close()

	switch format {
	case "bin":
		bin, symtab, err := asm.AssembleToBinary(inPath, src, opts)
		if err != nil {
			return nil, err
		}
		if _, err := out.Write(bin); err != nil {
			return nil, errors.Wrapf(err, "writing %s", outPath)
		}
		return symtab, nil
	case "carray":
		bin, symtab, err := asm.AssembleToBinary(inPath, src, opts)
		if err != nil {
			return nil, err
		}
		if err := ngi.WriteCArray(out, bin); err != nil {
			return nil, errors.Wrapf(err, "writing %s", outPath)
		}
		return symtab, nil
	case "disassembly":
		listing, symtab, err := asm.AssembleToDisassembly(inPath, src, opts)
		if err != nil {
			return nil, err
		}
		if _, err := fmt.Fprint(out, listing); err != nil {
			return nil, errors.Wrapf(err, "writing %s", outPath)
		}
		return symtab, nil
	default:
		return nil, errors.Errorf("unknown output format %q", format)
	}
}

func writeSymFile(outPath string, symtab *asm.SymbolTable) error {
	symPath := strings.TrimSuffix(outPath, filepath.Ext(outPath)) + ".sym"
	f, err := os.Create(symPath)
	if err != nil {
		return errors.Wrapf(err, "creating %s", symPath)
	}
	defer f.Close()
	return symtab.WriteTo(f)
}
