// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Config carries assembler-wide defaults that do not belong in the source
// language itself: the output format to use when the CLI's -f flag is
// omitted, a size hint for preallocating the emitter's buffer, and a default
// include search path shared across every file assembled with it.
type Config struct {
	Assembler struct {
		DefaultFormat  string   `toml:"default_format"`
		BufferSizeHint int      `toml:"buffer_size_hint"`
		IncludePaths   []string `toml:"include_paths"`
	} `toml:"assembler"`
}

// DefaultConfig returns a Config with the assembler's built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Assembler.DefaultFormat = "bin"
	cfg.Assembler.BufferSizeHint = 0
	cfg.Assembler.IncludePaths = nil
	return cfg
}

// LoadFrom reads a TOML config file at path, falling back to DefaultConfig
// when the file does not exist. Absence of a config file is not an error;
// only a malformed one is.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "loading config %s", path)
	}
	return cfg, nil
}

// Discover walks upward from startDir looking for a file named
// "vmasm.toml", returning DefaultConfig if none is found anywhere up to the
// filesystem root.
func Discover(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, errors.Wrap(err, "resolving config search start directory")
	}
	for {
		candidate := filepath.Join(dir, "vmasm.toml")
		if _, err := os.Stat(candidate); err == nil {
			return LoadFrom(candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return DefaultConfig(), nil
}

// Options builds an assembler Options value seeded from this config's
// defaults, e.g. for the CLI to merge with its own -I flags.
func (c *Config) Options() Options {
	return Options{
		IncludePaths:   append([]string(nil), c.Assembler.IncludePaths...),
		BufferSizeHint: c.Assembler.BufferSizeHint,
	}
}
