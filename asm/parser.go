// This file is part of vmforth - a Forth-style VM assembler/disassembler.

package asm

// mnemonicArity pins the operand count of every fixed-arity instruction, so
// the parser never has to lean on newline-sensitivity to tell where one
// instruction ends and the next begins.
var mnemonicArity = map[string]int{
	"nop":     0,
	"illegal": 0,
	"mov":     2,
	"add":     3,
	"sub":     3,
	"or":      3,
	"and":     3,
	"xor":     3,
	"sra":     2,
	"sll":     2,
	"pushd":   1,
	"popd":    1,
	"pushr":   1,
	"popr":    1,
	"jmp":     1,
	"jz":      1,
	"jc":      1,
	"call":    1,
	"ifkt":    1,
}

type parser struct {
	lx      *lexer
	cur     token
	peeked  *token
}

func newParser(lx *lexer) (*parser, error) {
	p := &parser{lx: lx}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	if p.peeked != nil {
		p.cur = *p.peeked
		p.peeked = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		t, err := p.lx.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

func (p *parser) is(kind tokenKind) bool { return p.cur.kind == kind }

func (p *parser) isKeyword(word string) bool {
	return p.cur.kind == tokIdent && p.cur.text == word
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.cur.kind != kind {
		return token{}, newError(errParse, p.cur.pos, "expected %s, got %q", what, p.cur.text)
	}
	t := p.cur
	return t, p.advance()
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return newError(errParse, p.cur.pos, "expected %q, got %q", word, p.cur.text)
	}
	return p.advance()
}

// parseProgram parses the whole token stream into a program.
func parseProgram(lx *lexer) (*program, error) {
	p, err := newParser(lx)
	if err != nil {
		return nil, err
	}
	prog := &program{}
	for !p.is(tokEOF) {
		decl, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		prog.decls = append(prog.decls, decl)
	}
	return prog, nil
}

func (p *parser) parseTopLevel() (topLevelNode, error) {
	if !p.is(tokIdent) {
		return nil, newError(errParse, p.cur.pos, "expected a top-level declaration, got %q", p.cur.text)
	}
	switch p.cur.text {
	case "const":
		return p.parseConstDecl()
	case "macro":
		return p.parseMacroDecl()
	case "codeblock":
		return p.parseCodeBlock()
	case "def":
		return p.parseDefDecl()
	default:
		return nil, newError(errParse, p.cur.pos, "unexpected top-level token %q", p.cur.text)
	}
}

func (p *parser) parseConstDecl() (*constDecl, error) {
	pos := p.cur.pos
	if err := p.advance(); err != nil { // consume "const"
		return nil, err
	}
	name, err := p.expect(tokIdent, "constant name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEq, "'='"); err != nil {
		return nil, err
	}
	neg := false
	if p.is(tokMinus) {
		neg = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	numTok, err := p.expect(tokNumber, "a numeric constant value")
	if err != nil {
		return nil, err
	}
	v, err := parseNumberText(numTok.text)
	if err != nil {
		return nil, newError(errParse, numTok.pos, "invalid number %q: %v", numTok.text, err)
	}
	if neg {
		v = uint32(-int64(v))
	}
	return &constDecl{Name: name.text, Value: v, Pos: pos}, nil
}

func (p *parser) parseMacroDecl() (*macroDecl, error) {
	pos := p.cur.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	name, err := p.expect(tokIdent, "macro name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var params []string
	for !p.is(tokRParen) {
		pt, err := p.expect(tokIdent, "macro parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, pt.text)
		if p.is(tokComma) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return &macroDecl{Name: name.text, Params: params, Body: body, Pos: pos}, nil
}

func (p *parser) parseCodeBlock() (*codeBlockDecl, error) {
	pos := p.cur.pos
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseStmtList()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return &codeBlockDecl{Body: body, Pos: pos}, nil
}

func (p *parser) parseDefDecl() (*defDecl, error) {
	pos := p.cur.pos
	if err := p.advance(); err != nil { // consume "def"
		return nil, err
	}
	if !p.is(tokIdent) || (p.cur.text != "asm" && p.cur.text != "word") {
		return nil, newError(errParse, p.cur.pos, "expected \"asm\" or \"word\" after def, got %q", p.cur.text)
	}
	isWord := p.cur.text == "word"
	if err := p.advance(); err != nil {
		return nil, err
	}

	var flags []operandNode
	if p.is(tokLBracket) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		for !p.is(tokRBracket) {
			f, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			flags = append(flags, f)
			if p.is(tokComma) {
				if err := p.advance(); err != nil {
					return nil, err
				}
			}
		}
		if err := p.advance(); err != nil { // consume ']'
			return nil, err
		}
	}

	if _, err := p.expect(tokLParen, "'(' before the word kind"); err != nil {
		return nil, err
	}
	kindTok, err := p.expect(tokIdent, "word kind")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')' after the word kind"); err != nil {
		return nil, err
	}

	var alias string
	if p.isKeyword("alias") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		aliasTok, err := p.expect(tokIdent, "alias name")
		if err != nil {
			return nil, err
		}
		alias = aliasTok.text
	}

	nameTok, err := p.expect(tokIdent, "word name")
	if err != nil {
		return nil, err
	}

	d := &defDecl{IsWordBody: isWord, Flags: flags, Kind: kindTok.text, Alias: alias, Name: nameTok.text, Pos: pos}
	if isWord {
		items, err := p.parseWordBody()
		if err != nil {
			return nil, err
		}
		d.WordBody = items
	} else {
		body, err := p.parseStmtList()
		if err != nil {
			return nil, err
		}
		d.Body = body
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return d, nil
}

// parseStmtList parses statements until the "end" keyword, without
// consuming it.
func (p *parser) parseStmtList() ([]stmtNode, error) {
	var stmts []stmtNode
	for !p.isKeyword("end") {
		if p.is(tokEOF) {
			return nil, newError(errParse, p.cur.pos, "unexpected end of input, missing \"end\"")
		}
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) parseStmt() (stmtNode, error) {
	if !p.is(tokIdent) {
		return nil, newError(errParse, p.cur.pos, "expected a statement, got %q", p.cur.text)
	}
	pos := p.cur.pos
	name := p.cur.text

	// db/dw/ds and the fixed-arity mnemonics are reserved: a reserved name
	// is never a label, even when followed by ':' (its own operand, e.g.
	// `jmp :t`, can start with a colon too). Check these before the
	// generic "ident ':'" label pattern.
	switch name {
	case "db":
		return p.parseDataStmt('b', pos)
	case "dw":
		return p.parseDataStmt('w', pos)
	case "ds":
		return p.parseDataStmt('s', pos)
	}
	if arity, ok := mnemonicArity[name]; ok {
		return p.parseInstruction(name, arity, pos)
	}

	peeked, err := p.peek()
	if err != nil {
		return nil, err
	}

	if peeked.kind == tokColon {
		if err := p.advance(); err != nil { // consume ident
			return nil, err
		}
		if err := p.advance(); err != nil { // consume ':'
			return nil, err
		}
		return &labelStmt{Name: name, Pos: pos}, nil
	}

	if peeked.kind == tokLParen {
		return p.parseMacroCall(pos)
	}

	return nil, newError(errUnsupportedOpcode, pos, "Opcode '%s' currently not implemented", name)
}

func (p *parser) parseDataStmt(kind byte, pos Position) (*dataStmt, error) {
	if err := p.advance(); err != nil { // consume db/dw/ds
		return nil, err
	}
	var values []operandNode
	for {
		if kind == 's' && p.is(tokString) {
			values = append(values, &stringOperandNode{Value: p.cur.text, Pos: p.cur.pos})
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			v, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		if p.is(tokComma) {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	return &dataStmt{Directive: kind, Values: values, Pos: pos}, nil
}

func (p *parser) parseInstruction(mnemonic string, arity int, pos Position) (*instructionStmt, error) {
	if err := p.advance(); err != nil { // consume mnemonic
		return nil, err
	}
	var suffix byte
	if p.is(tokDot) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		st, err := p.expect(tokIdent, "'w' or 'b' size suffix")
		if err != nil {
			return nil, err
		}
		if st.text != "w" && st.text != "b" {
			return nil, newError(errParse, st.pos, "unknown size suffix %q", st.text)
		}
		suffix = st.text[0]
	}
	ops := make([]operandNode, 0, arity)
	for i := 0; i < arity; i++ {
		op, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		if i < arity-1 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
	}
	return &instructionStmt{Mnemonic: mnemonic, Suffix: suffix, Operands: ops, Pos: pos}, nil
}

func (p *parser) parseMacroCall(pos Position) (*macroCallStmt, error) {
	name := p.cur.text
	if err := p.advance(); err != nil { // consume name
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []operandNode
	for !p.is(tokRParen) {
		a, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.is(tokComma) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ')'
		return nil, err
	}
	return &macroCallStmt{Name: name, Args: args, Pos: pos}, nil
}

// parseWordBody parses a `def word` body.
func (p *parser) parseWordBody() ([]wordBodyItem, error) {
	var items []wordBodyItem
	for !p.isKeyword("end") {
		if p.is(tokEOF) {
			return nil, newError(errParse, p.cur.pos, "unexpected end of input, missing \"end\"")
		}
		pos := p.cur.pos
		switch {
		case p.is(tokIdent):
			peeked, err := p.peek()
			if err != nil {
				return nil, err
			}
			name := p.cur.text
			if peeked.kind == tokColon {
				if err := p.advance(); err != nil {
					return nil, err
				}
				if err := p.advance(); err != nil {
					return nil, err
				}
				items = append(items, wordBodyItem{Label: name, Pos: pos})
				continue
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			items = append(items, wordBodyItem{Ident: name, Pos: pos})
		case p.is(tokColon):
			if err := p.advance(); err != nil {
				return nil, err
			}
			nameTok, err := p.expect(tokIdent, "label name after ':'")
			if err != nil {
				return nil, err
			}
			items = append(items, wordBodyItem{JumpTarget: nameTok.text, Pos: pos})
		case p.is(tokHash) || p.is(tokNumber) || p.is(tokMinus):
			v, err := p.parseSignedImmediate()
			if err != nil {
				return nil, err
			}
			items = append(items, wordBodyItem{Number: &v, HasNumber: true, Pos: pos})
		default:
			return nil, newError(errParse, pos, "unexpected token %q in word body", p.cur.text)
		}
	}
	return items, nil
}

// parseSignedImmediate parses `[#]['-']NUMBER` as used by numeric literals
// inside word bodies.
func (p *parser) parseSignedImmediate() (uint32, error) {
	if p.is(tokHash) {
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	neg := false
	if p.is(tokMinus) {
		neg = true
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	numTok, err := p.expect(tokNumber, "a number")
	if err != nil {
		return 0, err
	}
	v, err := parseNumberText(numTok.text)
	if err != nil {
		return 0, newError(errParse, numTok.pos, "invalid number %q: %v", numTok.text, err)
	}
	if neg {
		v = uint32(-int64(v))
	}
	return v, nil
}

// parseOperand parses the full operand grammar: registers,
// numbers, jumps, expressions, macro-parameter references and `$`.
func (p *parser) parseOperand() (operandNode, error) {
	if p.is(tokPercent) || p.is(tokLBracket) {
		return p.parseRegisterOperand()
	}
	if p.is(tokString) {
		n := &stringOperandNode{Value: p.cur.text, Pos: p.cur.pos}
		return n, p.advance()
	}
	return p.parseAddressExpr()
}

func (p *parser) parseRegisterOperand() (*regOperandNode, error) {
	pos := p.cur.pos
	if p.is(tokPercent) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(tokIdent, "register name")
		if err != nil {
			return nil, err
		}
		return &regOperandNode{Name: nameTok.text, Indirect: false, Modifier: modNone, Pos: pos}, nil
	}
	// '[' ...
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	mod := modNone
	if p.is(tokPlusPlus) {
		mod = modPreInc
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if p.is(tokMinusMinus) {
		mod = modPreDec
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokPercent, "'%register'"); err != nil {
		return nil, err
	}
	nameTok, err := p.expect(tokIdent, "register name")
	if err != nil {
		return nil, err
	}
	name := nameTok.text
	// '-' may continue an identifier, so `[%r--]` lexes as the single
	// identifier "r--": split the post-decrement back off the name.
	if mod == modNone && len(name) > 2 && name[len(name)-2:] == "--" {
		name = name[:len(name)-2]
		mod = modPostDec
	}
	if mod == modNone {
		if p.is(tokPlusPlus) {
			mod = modPostInc
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else if p.is(tokMinusMinus) {
			mod = modPostDec
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return nil, err
	}
	return &regOperandNode{Name: name, Indirect: true, Modifier: mod, Pos: pos}, nil
}

// parseAddressExpr parses a possibly-multi-term address expression:
// leaf (('+'|'-') leaf)*. A single leaf is returned
// unwrapped so that simple operands stay Number/Jump/etc. rather than a
// one-term Expression.
func (p *parser) parseAddressExpr() (operandNode, error) {
	pos := p.cur.pos
	first, err := p.parseExprLeaf()
	if err != nil {
		return nil, err
	}
	var terms []exprTermNode
	for p.is(tokPlus) || p.is(tokMinus) {
		op := byte('+')
		if p.is(tokMinus) {
			op = '-'
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		leaf, err := p.parseExprLeaf()
		if err != nil {
			return nil, err
		}
		if terms == nil {
			terms = append(terms, exprTermNode{Op: 0, Leaf: first})
		}
		terms = append(terms, exprTermNode{Op: op, Leaf: leaf})
	}
	if terms == nil {
		return first, nil
	}
	return &exprOperandNode{Terms: terms, Pos: pos}, nil
}

func (p *parser) parseExprLeaf() (operandNode, error) {
	pos := p.cur.pos
	switch {
	case p.is(tokDollar):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &currentAddrOperandNode{Pos: pos}, nil
	case p.is(tokColon):
		if err := p.advance(); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(tokIdent, "label name after ':'")
		if err != nil {
			return nil, err
		}
		return &jumpOperandNode{Label: nameTok.text, IsLocal: len(nameTok.text) > 0 && nameTok.text[0] == '\'', Pos: pos}, nil
	case p.is(tokAt):
		if err := p.advance(); err != nil {
			return nil, err
		}
		nameTok, err := p.expect(tokIdent, "macro parameter name")
		if err != nil {
			return nil, err
		}
		return &identOperandNode{Name: nameTok.text, ParamRef: true, Pos: pos}, nil
	case p.is(tokHash):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseImmediateLeaf(pos)
	case p.is(tokMinus), p.is(tokNumber):
		return p.parseImmediateLeaf(pos)
	case p.is(tokIdent):
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &identOperandNode{Name: name, Pos: pos}, nil
	default:
		return nil, newError(errParse, pos, "expected an operand, got %q", p.cur.text)
	}
}

func (p *parser) parseImmediateLeaf(pos Position) (operandNode, error) {
	neg := false
	if p.is(tokMinus) {
		neg = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.is(tokIdent) {
		// `#CONST_NAME` — a named constant used where a number is expected.
		name := p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if neg {
			return nil, newError(errParse, pos, "cannot negate identifier %q", name)
		}
		return &identOperandNode{Name: name, Pos: pos}, nil
	}
	numTok, err := p.expect(tokNumber, "a number")
	if err != nil {
		return nil, err
	}
	v, err := parseNumberText(numTok.text)
	if err != nil {
		return nil, newError(errParse, numTok.pos, "invalid number %q: %v", numTok.text, err)
	}
	if neg {
		v = uint32(-int64(v))
	}
	return &numOperandNode{Value: v, Pos: pos}, nil
}
