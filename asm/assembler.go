// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Options configures one AssembleToBinary/AssembleToDisassembly
// call: where to resolve `include` paths from, and an optional buffer size
// hint used to preallocate the machine-code buffer.
type Options struct {
	IncludePaths   []string
	BufferSizeHint int
	ReadFile       func(path string) ([]byte, error)
}

func (o Options) readFile(path string) ([]byte, error) {
	if o.ReadFile != nil {
		return o.ReadFile(path)
	}
	return os.ReadFile(path)
}

// resolveInclude tries path as given, then relative to each entry of
// IncludePaths in order, matching the teacher CLI's repeatable -I flag.
func (o Options) resolveInclude(path string) (string, error) {
	if b, err := o.readFile(path); err == nil {
		return string(b), nil
	}
	var lastErr error
	for _, dir := range o.IncludePaths {
		candidate := filepath.Join(dir, path)
		b, err := o.readFile(candidate)
		if err == nil {
			return string(b), nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%s: not found", path)
	}
	return "", lastErr
}

// macroScope binds one macro call's parameter names to already-resolved
// argument operands. Arguments are resolved eagerly, against the call
// site's own scope, before the macro body is walked - so a macro that
// forwards one of its own parameters to a nested call never has to chase
// a scope chain.
type macroScope struct {
	args map[string]Operand
}

// assembler walks a parsed program and drives an emitter. One instance is
// single-use: construct, call run, discard.
type assembler struct {
	opts Options

	consts    map[string]uint32
	macros    map[string]*macroDecl
	wordNames map[string]bool // lower-cased word + alias names, pre-scanned

	previousWordStart int
	callCounter       int
	activeCallNumber  int
	scopeStack        []*macroScope

	em     emitter
	symtab *SymbolTable
}

func newAssembler(em emitter, opts Options) *assembler {
	return &assembler{
		opts:      opts,
		consts:    make(map[string]uint32),
		macros:    make(map[string]*macroDecl),
		wordNames: make(map[string]bool),
		em:        em,
		symtab:    &SymbolTable{},
	}
}

// AssembleToBinary parses and assembles src, returning the raw image and its
// symbol table.
func AssembleToBinary(filename, src string, opts Options) ([]byte, *SymbolTable, error) {
	em := newMachineCodeEmitter()
	if opts.BufferSizeHint > 0 {
		em.buf = make([]byte, 0, opts.BufferSizeHint)
	}
	a := newAssembler(em, opts)
	if err := a.run(filename, src); err != nil {
		return nil, nil, err
	}
	return em.buf, a.symtab, nil
}

// AssembleToDisassembly parses and assembles src, returning the text
// listing (byte-identical in layout to AssembleToBinary's output) and its
// symbol table.
func AssembleToDisassembly(filename, src string, opts Options) (string, *SymbolTable, error) {
	em := newDisassemblyEmitter()
	if opts.BufferSizeHint > 0 {
		em.bin.buf = make([]byte, 0, opts.BufferSizeHint)
	}
	a := newAssembler(em, opts)
	if err := a.run(filename, src); err != nil {
		return "", nil, err
	}
	return em.Listing(), a.symtab, nil
}

func (a *assembler) run(filename, src string) error {
	lx := newLexer(filename, src, a.opts.resolveInclude)
	prog, err := parseProgram(lx)
	if err != nil {
		return err
	}
	a.preScanWords(prog)
	for _, decl := range prog.decls {
		if err := a.walkTopLevel(decl); err != nil {
			return err
		}
	}
	return a.em.finalize()
}

// preScanWords records every def's name (and alias) up front so that a word
// referenced before its own definition still resolves to a CFA jump rather
// than being mistaken for an undefined constant.
func (a *assembler) preScanWords(prog *program) {
	for _, decl := range prog.decls {
		d, ok := decl.(*defDecl)
		if !ok {
			continue
		}
		a.wordNames[strings.ToLower(d.Name)] = true
		if d.Alias != "" {
			a.wordNames[strings.ToLower(d.Alias)] = true
		}
	}
}

func (a *assembler) walkTopLevel(decl topLevelNode) error {
	switch d := decl.(type) {
	case *constDecl:
		a.consts[d.Name] = d.Value // last-wins: redefinition is tolerated, see DESIGN.md
		return nil
	case *macroDecl:
		a.macros[d.Name] = d
		return nil
	case *codeBlockDecl:
		return a.walkStmts(d.Body)
	case *defDecl:
		return a.walkDef(d)
	default:
		return newError(errParse, Position{}, "unhandled top-level declaration %T", decl)
	}
}

func (a *assembler) walkStmts(stmts []stmtNode) error {
	for _, s := range stmts {
		if err := a.walkStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) walkStmt(s stmtNode) error {
	switch st := s.(type) {
	case *labelStmt:
		a.em.markLabel(a.mangleLabel(st.Name))
		return nil
	case *instructionStmt:
		return a.walkInstruction(st)
	case *dataStmt:
		return a.walkData(st)
	case *macroCallStmt:
		return a.callMacro(st.Name, st.Args, st.Pos)
	default:
		return newError(errParse, Position{}, "unhandled statement %T", s)
	}
}

// mangleLabel disambiguates a macro-local label (leading ') with the
// currently active macro call number. Labels outside any macro expansion
// are left untouched.
func (a *assembler) mangleLabel(name string) string {
	if !strings.HasPrefix(name, "'") || len(a.scopeStack) == 0 {
		return name
	}
	return fmt.Sprintf("%s@%d", name[1:], a.activeCallNumber)
}

func (a *assembler) callMacro(name string, argNodes []operandNode, pos Position) error {
	m, ok := a.macros[name]
	if !ok {
		return newError(errUndefinedReference, pos, "call to undefined macro %q", name)
	}
	if len(argNodes) != len(m.Params) {
		return newError(errMacroArity, pos, "macro %q expects %d argument(s), got %d", name, len(m.Params), len(argNodes))
	}
	args := make(map[string]Operand, len(argNodes))
	for i, argNode := range argNodes {
		v, err := a.resolveOperand(argNode)
		if err != nil {
			return err
		}
		args[m.Params[i]] = v
	}

	a.scopeStack = append(a.scopeStack, &macroScope{args: args})
	savedCallNumber := a.activeCallNumber
	a.activeCallNumber = a.callCounter
	a.callCounter++

	err := a.walkStmts(m.Body)

	a.activeCallNumber = savedCallNumber
	a.scopeStack = a.scopeStack[:len(a.scopeStack)-1]
	return err
}

func (a *assembler) curScope() *macroScope {
	if len(a.scopeStack) == 0 {
		return nil
	}
	return a.scopeStack[len(a.scopeStack)-1]
}

func (a *assembler) walkInstruction(st *instructionStmt) error {
	ops := make([]Operand, len(st.Operands))
	for i, n := range st.Operands {
		v, err := a.resolveOperand(n)
		if err != nil {
			return err
		}
		ops[i] = v
	}
	asReg := func(i int) (*Register, error) {
		r, ok := ops[i].(*Register)
		if !ok {
			return nil, newError(errEncoding, st.Pos, "%s: operand %d must be a register", st.Mnemonic, i+1)
		}
		return r, nil
	}
	asNum := func(i int) (Number, error) {
		n, ok := ops[i].(Number)
		if !ok {
			return Number{}, newError(errEncoding, st.Pos, "%s: operand %d must be an immediate value", st.Mnemonic, i+1)
		}
		return n, nil
	}

	switch st.Mnemonic {
	case "nop":
		a.em.emitNop()
		return nil
	case "illegal":
		a.em.emitIllegal()
		return nil
	case "mov":
		target, err := asReg(0)
		if err != nil {
			return err
		}
		return withPos(a.em.emitMov(st.Suffix, target, ops[1]), st.Pos)
	case "add", "sub", "or", "and", "xor":
		dst, err := asReg(0)
		if err != nil {
			return err
		}
		s1, err := asReg(1)
		if err != nil {
			return err
		}
		s2, err := asReg(2)
		if err != nil {
			return err
		}
		switch st.Mnemonic {
		case "add":
			a.em.emitAdd(dst, s1, s2)
		case "sub":
			a.em.emitSub(dst, s1, s2)
		case "or":
			a.em.emitOr(dst, s1, s2)
		case "and":
			a.em.emitAnd(dst, s1, s2)
		case "xor":
			a.em.emitXor(dst, s1, s2)
		}
		return nil
	case "sra", "sll":
		reg, err := asReg(0)
		if err != nil {
			return err
		}
		imm, err := asNum(1)
		if err != nil {
			return err
		}
		if st.Mnemonic == "sra" {
			a.em.emitSra(reg, imm)
		} else {
			a.em.emitSll(reg, imm)
		}
		return nil
	case "pushd", "popd", "pushr", "popr":
		if st.Suffix == 'b' {
			return newError(errEncoding, st.Pos, "%s only supports word-sized mode", st.Mnemonic)
		}
		reg, err := asReg(0)
		if err != nil {
			return err
		}
		switch st.Mnemonic {
		case "pushd":
			a.em.emitPushd(reg)
		case "popd":
			a.em.emitPopd(reg)
		case "pushr":
			a.em.emitPushr(reg)
		case "popr":
			a.em.emitPopr(reg)
		}
		return nil
	case "jmp":
		return withPos(a.em.emitJump(ops[0]), st.Pos)
	case "jz":
		return withPos(a.em.emitConditionalJump(JumpCondZero, ops[0]), st.Pos)
	case "jc":
		return withPos(a.em.emitConditionalJump(JumpCondCarry, ops[0]), st.Pos)
	case "call":
		return withPos(a.em.emitCall(ops[0]), st.Pos)
	case "ifkt":
		imm, err := asNum(0)
		if err != nil {
			return err
		}
		a.em.emitIfkt(imm)
		return nil
	default:
		return newError(errUnsupportedOpcode, st.Pos, "Opcode %q currently not implemented", st.Mnemonic)
	}
}

func (a *assembler) walkData(st *dataStmt) error {
	for _, vn := range st.Values {
		if strNode, ok := vn.(*stringOperandNode); ok && st.Directive != 'w' {
			a.em.emitDataString(strNode.Value)
			continue
		}
		v, err := a.resolveOperand(vn)
		if err != nil {
			return err
		}
		switch st.Directive {
		case 'b':
			if err := withPos(a.em.emitData8(v), st.Pos); err != nil {
				return err
			}
		case 'w':
			if err := withPos(a.em.emitData32(v), st.Pos); err != nil {
				return err
			}
		case 's':
			if s, ok := v.(String); ok {
				a.em.emitDataString(s.Value)
			} else if err := withPos(a.em.emitData8(v), st.Pos); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveOperand turns a parsed operand node into a runtime Operand value,
// substituting macro parameters and reducing `$` to the current address at
// the moment of evaluation.
func (a *assembler) resolveOperand(n operandNode) (Operand, error) {
	switch node := n.(type) {
	case *regOperandNode:
		enc, ok := registerEncoding[node.Name]
		if !ok {
			return nil, newError(errParse, node.Pos, "unknown register %q", node.Name)
		}
		return &Register{Name: node.Name, Encoding: enc, Indirect: node.Indirect, Modifier: node.Modifier, Line: node.Pos.Line}, nil
	case *numOperandNode:
		return Number{Value: node.Value}, nil
	case *jumpOperandNode:
		return Jump{Label: a.mangleLabel(node.Label)}, nil
	case *currentAddrOperandNode:
		return Number{Value: uint32(a.em.currentAddress())}, nil
	case *stringOperandNode:
		return String{Value: node.Value}, nil
	case *identOperandNode:
		return a.resolveIdent(node)
	case *exprOperandNode:
		return a.resolveExpr(node)
	default:
		return nil, newError(errParse, Position{}, "unhandled operand %T", n)
	}
}

func (a *assembler) resolveIdent(node *identOperandNode) (Operand, error) {
	if node.ParamRef {
		scope := a.curScope()
		if scope == nil {
			return nil, newError(errUndefinedReference, node.Pos, "macro parameter %q referenced outside a macro body", node.Name)
		}
		v, ok := scope.args[node.Name]
		if !ok {
			return nil, newError(errUndefinedReference, node.Pos, "unknown macro parameter %q", node.Name)
		}
		return v, nil
	}
	if a.wordNames[strings.ToLower(node.Name)] {
		return Jump{Label: strings.ToLower(node.Name) + "_cfa"}, nil
	}
	if v, ok := a.consts[node.Name]; ok {
		return Number{Value: v}, nil
	}
	return nil, newError(errUndefinedReference, node.Pos, "undefined reference to %q", node.Name)
}

func (a *assembler) resolveExpr(node *exprOperandNode) (Operand, error) {
	terms := make([]exprTerm, 0, len(node.Terms))
	for _, t := range node.Terms {
		v, err := a.resolveOperand(t.Leaf)
		if err != nil {
			return nil, err
		}
		term := exprTerm{Op: t.Op}
		switch leaf := v.(type) {
		case Number:
			n := leaf
			term.Num = &n
		case Jump:
			j := leaf
			term.Jump = &j
		default:
			return nil, newError(errEncoding, node.Pos, "expression terms must be numeric or a label, got %v", v)
		}
		terms = append(terms, term)
	}
	return &Expression{Terms: terms}, nil
}

// walkDef emits one header + body, implementing the def layout algorithm:
// back-link, flags+name-length byte, name bytes, CFA marker, optional
// __DEF<SUBKIND>_CFA code field, body, end marker, symbol table entry.
func (a *assembler) walkDef(d *defDecl) error {
	headerStart := a.em.currentAddress()

	if err := withPos(a.em.emitData32(Number{Value: uint32(a.previousWordStart)}), d.Pos); err != nil {
		return err
	}
	a.previousWordStart = headerStart

	flagsByte, err := a.resolveFlags(d.Flags)
	if err != nil {
		return err
	}
	if len(d.Name) > 0x3F {
		return newError(errEncoding, d.Pos, "word name %q is longer than 63 bytes", d.Name)
	}
	flagsByte |= byte(len(d.Name))
	if err := withPos(a.em.emitData8(Number{Value: uint32(flagsByte)}), d.Pos); err != nil {
		return err
	}
	a.em.emitDataString(d.Name)

	lower := strings.ToLower(d.Name)
	cfaLabels := []string{lower + "_cfa"}
	if d.Alias != "" {
		cfaLabels = append(cfaLabels, strings.ToLower(d.Alias)+"_cfa")
	}
	for _, l := range cfaLabels {
		a.em.markLabel(l)
	}

	// The code field is always a 4-byte slot: a __DEF<KIND>_CFA macro, if
	// one is defined, is responsible for filling it; otherwise a zero
	// placeholder reserves the slot so header layout stays uniform across
	// word kinds.
	cfaMacro := "__DEF" + strings.ToUpper(d.Kind) + "_CFA"
	if _, ok := a.macros[cfaMacro]; ok {
		if err := a.callMacro(cfaMacro, nil, d.Pos); err != nil {
			return err
		}
	} else {
		if err := withPos(a.em.emitData32(Number{Value: 0}), d.Pos); err != nil {
			return err
		}
	}

	if d.IsWordBody {
		if err := a.walkWordBody(d.WordBody); err != nil {
			return err
		}
	} else {
		if err := a.walkStmts(d.Body); err != nil {
			return err
		}
	}

	endLabels := []string{lower + "_end"}
	if d.Alias != "" {
		endLabels = append(endLabels, strings.ToLower(d.Alias)+"_end")
	}
	for _, l := range endLabels {
		a.em.markLabel(l)
	}
	endOffset := a.em.currentAddress()

	a.symtab.Add(d.Name, headerStart, endOffset)
	if d.Alias != "" {
		a.symtab.Add(d.Alias, headerStart, endOffset)
	}
	return nil
}

// resolveFlags reduces a `def asm[f1,f2,...]` flag list to a single byte by
// OR-ing each expression's value together.
func (a *assembler) resolveFlags(flags []operandNode) (byte, error) {
	var b byte
	for _, f := range flags {
		v, err := a.resolveOperand(f)
		if err != nil {
			return 0, err
		}
		n, ok := v.(Number)
		if !ok {
			return 0, newError(errEncoding, Position{}, "def flag must reduce to a constant, got %v", v)
		}
		b |= byte(n.Value)
	}
	return b, nil
}

// walkWordBody compiles a `def word` body: word references become CFA
// pointers, labels mark offsets, leading-colon names become jump-target data,
// and bare numbers/constants are emitted as 32-bit values.
func (a *assembler) walkWordBody(items []wordBodyItem) error {
	for _, item := range items {
		switch {
		case item.Label != "":
			a.em.markLabel(a.mangleLabel(item.Label))
		case item.JumpTarget != "":
			if err := withPos(a.em.emitData32(Jump{Label: a.mangleLabel(item.JumpTarget)}), item.Pos); err != nil {
				return err
			}
		case item.HasNumber:
			if err := withPos(a.em.emitData32(Number{Value: *item.Number}), item.Pos); err != nil {
				return err
			}
		case item.Ident != "":
			op, err := a.resolveIdent(&identOperandNode{Name: item.Ident, Pos: item.Pos})
			if err != nil {
				return err
			}
			if err := withPos(a.em.emitData32(op), item.Pos); err != nil {
				return err
			}
		}
	}
	return nil
}
