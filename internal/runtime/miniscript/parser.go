package miniscript

import (
	"fmt"
	"strconv"
)

type parser struct {
	toks []token
	pos  int
}

func parseProgram(src string) ([]Stmt, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []Stmt
	for !p.at(tEOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

// parseExpr parses a single standalone expression, used by eval/inspect and
// by breakpoint condition evaluation.
func parseExpr(src string) (Expr, error) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	if !p.at(tEOF) {
		return nil, fmt.Errorf("miniscript: unexpected token after expression at line %d", p.cur().line)
	}
	return e, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) at(k tokenKind) bool { return p.cur().kind == k }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind, what string) (token, error) {
	if !p.at(k) {
		return token{}, fmt.Errorf("miniscript: expected %s at line %d", what, p.cur().line)
	}
	return p.advance(), nil
}

func (p *parser) statement() (Stmt, error) {
	switch {
	case p.atKeyword("let"):
		return p.letStatement()
	case p.atKeyword("if"):
		return p.ifStatement()
	case p.atKeyword("for"):
		return p.forStatement()
	case p.atKeyword("func"):
		return p.funcStatement()
	case p.atKeyword("return"):
		return p.returnStatement()
	default:
		return p.exprOrAssignStatement()
	}
}

func (p *parser) atKeyword(kw string) bool {
	return p.at(tIdent) && p.cur().text == kw
}

func (p *parser) letStatement() (Stmt, error) {
	line := p.advance().line // 'let'
	name, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tAssign, "'='"); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &letStmt{Name: name.text, Expr: e, Line: line}, nil
}

func (p *parser) consumeSemi() {
	if p.at(tSemi) {
		p.advance()
	}
}

func (p *parser) block() ([]Stmt, error) {
	if _, err := p.expect(tLBrace, "'{'"); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.at(tRBrace) && !p.at(tEOF) {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(tRBrace, "'}'"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) ifStatement() (Stmt, error) {
	line := p.advance().line
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	cond, err := p.expr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tRParen, "')'"); err != nil {
		return nil, err
	}
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	var elseStmts []Stmt
	if p.atKeyword("else") {
		p.advance()
		if p.atKeyword("if") {
			s, err := p.ifStatement()
			if err != nil {
				return nil, err
			}
			elseStmts = []Stmt{s}
		} else {
			elseStmts, err = p.block()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ifStmt{Cond: cond, Then: then, Else: elseStmts, Line: line}, nil
}

func (p *parser) forStatement() (Stmt, error) {
	line := p.advance().line
	name, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if !p.atKeyword("in") {
		return nil, fmt.Errorf("miniscript: expected 'in' at line %d", p.cur().line)
	}
	p.advance()
	iterable, err := p.expr()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &forStmt{Var: name.text, Iterable: iterable, Body: body, Line: line}, nil
}

func (p *parser) funcStatement() (Stmt, error) {
	line := p.advance().line
	name, err := p.expect(tIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tLParen, "'('"); err != nil {
		return nil, err
	}
	var params []param
	for !p.at(tRParen) {
		pn, err := p.expect(tIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		prm := param{Name: pn.text}
		if p.at(tAssign) {
			p.advance()
			def, err := p.expr()
			if err != nil {
				return nil, err
			}
			prm.Default = def
		}
		params = append(params, prm)
		if p.at(tComma) {
			p.advance()
		}
	}
	p.advance() // ')'
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &funcDecl{Name: name.text, Params: params, Body: body, Line: line}, nil
}

func (p *parser) returnStatement() (Stmt, error) {
	line := p.advance().line
	if p.at(tSemi) || p.at(tRBrace) {
		p.consumeSemi()
		return &returnStmt{Line: line}, nil
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.consumeSemi()
	return &returnStmt{Expr: e, Line: line}, nil
}

func (p *parser) exprOrAssignStatement() (Stmt, error) {
	line := p.cur().line
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.at(tAssign) {
		p.advance()
		val, err := p.expr()
		if err != nil {
			return nil, err
		}
		p.consumeSemi()
		return &assignStmt{Target: e, Value: val, Line: line}, nil
	}
	p.consumeSemi()
	return &exprStmt{Expr: e, Line: line}, nil
}

// Expression precedence climbing: or < and < equality < comparison < term < factor < unary < call < primary.

func (p *parser) expr() (Expr, error) { return p.orExpr() }

func (p *parser) orExpr() (Expr, error) {
	left, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("or") {
		line := p.advance().line
		right, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: "or", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) andExpr() (Expr, error) {
	left, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("and") {
		line := p.advance().line
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: "and", Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) equality() (Expr, error) {
	left, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.at(tEq) || p.at(tNeq) {
		op := "=="
		if p.at(tNeq) {
			op = "!="
		}
		line := p.advance().line
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) comparison() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.at(tLt) || p.at(tLte) || p.at(tGt) || p.at(tGte) {
		op := map[tokenKind]string{tLt: "<", tLte: "<=", tGt: ">", tGte: ">="}[p.cur().kind]
		line := p.advance().line
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) term() (Expr, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.at(tPlus) || p.at(tMinus) {
		op := "+"
		if p.at(tMinus) {
			op = "-"
		}
		line := p.advance().line
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) factor() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.at(tStar) || p.at(tSlash) || p.at(tPercent) {
		op := map[tokenKind]string{tStar: "*", tSlash: "/", tPercent: "%"}[p.cur().kind]
		line := p.advance().line
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{Op: op, Left: left, Right: right, Line: line}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.at(tMinus) {
		line := p.advance().line
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{Op: "-", Right: right, Line: line}, nil
	}
	if p.atKeyword("not") {
		line := p.advance().line
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &unaryExpr{Op: "not", Right: right, Line: line}, nil
	}
	return p.callOrAccess()
}

func (p *parser) callOrAccess() (Expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tLParen):
			line := p.advance().line
			var args []Expr
			for !p.at(tRParen) {
				a, err := p.expr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.at(tComma) {
					p.advance()
				}
			}
			p.advance() // ')'
			e = &callExpr{Callee: e, Args: args, Line: line}
		case p.at(tLBracket):
			line := p.advance().line
			idx, err := p.expr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tRBracket, "']'"); err != nil {
				return nil, err
			}
			e = &indexExpr{Target: e, Index: idx, Line: line}
		case p.at(tDot):
			line := p.advance().line
			name, err := p.expect(tIdent, "field name")
			if err != nil {
				return nil, err
			}
			e = &dotExpr{Target: e, Name: name.text, Line: line}
		default:
			return e, nil
		}
	}
}

func (p *parser) primary() (Expr, error) {
	t := p.cur()
	switch {
	case t.kind == tNumber:
		p.advance()
		if containsDot(t.text) {
			f, _ := strconv.ParseFloat(t.text, 64)
			return &numberLit{IsInt: false, F: f, Line: t.line}, nil
		}
		i, _ := strconv.ParseInt(t.text, 10, 64)
		return &numberLit{IsInt: true, I: i, Line: t.line}, nil
	case t.kind == tString:
		p.advance()
		return &stringLit{Value: t.text, Line: t.line}, nil
	case t.kind == tIdent && t.text == "true":
		p.advance()
		return &boolLit{Value: true, Line: t.line}, nil
	case t.kind == tIdent && t.text == "false":
		p.advance()
		return &boolLit{Value: false, Line: t.line}, nil
	case t.kind == tIdent && t.text == "nil":
		p.advance()
		return &nilLit{Line: t.line}, nil
	case t.kind == tIdent:
		p.advance()
		return &identExpr{Name: t.text, Line: t.line}, nil
	case t.kind == tLParen:
		p.advance()
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case t.kind == tLBracket:
		line := p.advance().line
		var elems []Expr
		for !p.at(tRBracket) {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if p.at(tComma) {
				p.advance()
			}
		}
		p.advance() // ']'
		return &listLit{Elems: elems, Line: line}, nil
	case t.kind == tLBrace:
		line := p.advance().line
		var keys []string
		var vals []Expr
		for !p.at(tRBrace) {
			var key string
			if p.at(tString) {
				key = p.advance().text
			} else if p.at(tIdent) {
				key = p.advance().text
			} else {
				return nil, fmt.Errorf("miniscript: expected map key at line %d", p.cur().line)
			}
			if _, err := p.expect(tColon, "':'"); err != nil {
				return nil, err
			}
			v, err := p.expr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, key)
			vals = append(vals, v)
			if p.at(tComma) {
				p.advance()
			}
		}
		p.advance() // '}'
		return &mapLit{Keys: keys, Vals: vals, Line: line}, nil
	default:
		return nil, fmt.Errorf("miniscript: unexpected token at line %d", t.line)
	}
}

func containsDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}
