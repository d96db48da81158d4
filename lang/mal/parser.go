package mal

import (
	"fmt"
	"strconv"

	"github.com/viant/obsdsl/internal/diag"
)

// parser is a recursive-descent, precedence-climbing parser over the
// shared MAL expression/closure grammar. Precedence, lowest
// to highest: ternary, ||, &&, equality, relational, additive,
// multiplicative, unary, postfix (call/index/select), primary.
type parser struct {
	lex   *lexer
	cur   token
	path  string
	diags diag.List
}

// ParseExpression parses a single top-level MAL expression (a metric's
// composed expression, or a file-level filter literal's closure body).
func ParseExpression(path, src string) (Expr, diag.List) {
	p := &parser{lex: newLexer(src), path: path}
	p.advance()
	expr := p.parseExpr()
	if p.cur.kind != tokEOF {
		p.errorf("unexpected trailing token %q", p.cur.text)
	}
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return expr, nil
}

func (p *parser) advance() { p.cur = p.lex.next() }

func (p *parser) errorf(format string, args ...interface{}) {
	p.diags = append(p.diags, diag.Diagnostic{
		File: p.path, Line: p.cur.line, Column: p.cur.column,
		Message: fmt.Sprintf(format, args...), Severity: diag.Error,
	})
}

func (p *parser) isPunct(s string) bool { return p.cur.kind == tokPunct && p.cur.text == s }

func (p *parser) expectPunct(s string) bool {
	if !p.isPunct(s) {
		p.errorf("expected %q, got %q", s, p.cur.text)
		return false
	}
	p.advance()
	return true
}

// parseExpr parses the full expression grammar starting at ternary precedence.
func (p *parser) parseExpr() Expr { return p.parseTernary() }

func (p *parser) parseTernary() Expr {
	cond := p.parseOr()
	if p.isPunct("?") {
		p.advance()
		then := p.parseExpr()
		if !p.expectPunct(":") {
			return cond
		}
		els := p.parseExpr()
		return Ternary{Cond: cond, Then: then, Else: els}
	}
	return cond
}

func (p *parser) parseOr() Expr {
	left := p.parseAnd()
	for p.cur.kind == tokOr {
		p.advance()
		right := p.parseAnd()
		left = Binary{Op: "||", Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAnd() Expr {
	left := p.parseEquality()
	for p.cur.kind == tokAnd {
		p.advance()
		right := p.parseEquality()
		left = Binary{Op: "&&", Left: left, Right: right}
	}
	return left
}

func (p *parser) parseEquality() Expr {
	left := p.parseRelational()
	for p.cur.kind == tokEq || p.cur.kind == tokNeq {
		op := p.cur.text
		p.advance()
		right := p.parseRelational()
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseRelational() Expr {
	left := p.parseAdditive()
	for p.cur.kind == tokLe || p.cur.kind == tokGe || p.isPunct("<") || p.isPunct(">") {
		op := p.cur.text
		p.advance()
		right := p.parseAdditive()
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseAdditive() Expr {
	left := p.parseMultiplicative()
	for p.isPunct("+") || p.isPunct("-") {
		op := p.cur.text
		p.advance()
		right := p.parseMultiplicative()
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseMultiplicative() Expr {
	left := p.parseUnary()
	for p.isPunct("*") || p.isPunct("/") {
		op := p.cur.text
		p.advance()
		right := p.parseUnary()
		left = Binary{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *parser) parseUnary() Expr {
	if p.isPunct("!") || p.isPunct("-") {
		op := p.cur.text
		p.advance()
		operand := p.parseUnary()
		return Unary{Op: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() Expr {
	expr := p.parsePrimary()
	for {
		switch {
		case p.isPunct(".") || p.cur.kind == tokNullSafeDot:
			nullSafe := p.cur.kind == tokNullSafeDot
			p.advance()
			if p.cur.kind != tokIdent {
				p.errorf("expected field or method name after '.', got %q", p.cur.text)
				return expr
			}
			name := p.cur.text
			p.advance()
			if p.isPunct("(") {
				args := p.parseArgs()
				expr = foldWellKnownCall(expr, Call{Receiver: expr, Method: name, Args: args, NullSafe: nullSafe})
			} else {
				expr = foldWellKnownAtom(expr, name, nullSafe)
			}
		case p.isPunct("["):
			p.advance()
			idx := p.parseExpr()
			p.expectPunct("]")
			expr = Index{Receiver: expr, IndexExp: idx}
		default:
			return expr
		}
	}
}

// foldWellKnownAtom collapses `Layer.GENERAL` / `K8sRetagType.X` property
// access into the dedicated literal node the transpiler expects, rather
// than a generic Select.
func foldWellKnownAtom(receiver Expr, field string, nullSafe bool) Expr {
	if id, ok := receiver.(Ident); ok && !nullSafe {
		switch id.Name {
		case "Layer":
			return LayerLit{Value: field}
		case "K8sRetagType":
			return K8sRetagTypeLit{Value: field}
		}
	}
	return Select{Receiver: receiver, Field: field, NullSafe: nullSafe}
}

// foldWellKnownCall is a hook for static/whitelisted call rewriting; MAL
// calls all go through the generic Call node, so today this is a pass
// through, but keeping it as a named step documents where that whitelist
// check belongs once the transpiler needs to reject non-whitelisted
// receivers.
func foldWellKnownCall(_ Expr, call Call) Expr { return call }

func (p *parser) parseArgs() []Expr {
	if !p.expectPunct("(") {
		return nil
	}
	var args []Expr
	for !p.isPunct(")") {
		if p.cur.kind == tokEOF {
			p.errorf("unterminated argument list")
			return args
		}
		args = append(args, p.parseExpr())
		if p.isPunct(",") {
			p.advance()
		}
	}
	p.advance()
	return args
}

func (p *parser) parsePrimary() Expr {
	switch {
	case p.cur.kind == tokNumber:
		v, err := strconv.ParseFloat(p.cur.text, 64)
		if err != nil {
			p.errorf("invalid number literal %q", p.cur.text)
		}
		p.advance()
		return NumberLit{Value: v}
	case p.cur.kind == tokString:
		v := p.cur.text
		p.advance()
		return StringLit{Value: v}
	case p.isPunct("("):
		p.advance()
		inner := p.parseExpr()
		p.expectPunct(")")
		return Paren{Inner: inner}
	case p.isPunct("["):
		return p.parseBracketLiteral()
	case p.isPunct("{"):
		return p.parseClosure()
	case p.cur.kind == tokIdent:
		switch p.cur.text {
		case "LATEST", "AVG", "SUM":
			v := p.cur.text
			p.advance()
			return DownsamplingLit{Value: v}
		}
		name := p.cur.text
		p.advance()
		return Ident{Name: name}
	default:
		p.errorf("unexpected token %q", p.cur.text)
		p.advance()
		return Ident{Name: ""}
	}
}

// parseBracketLiteral parses `[a, b]` (string list) or `[50, 75]`
// (percentile / integer list), distinguishing by the first element's kind.
func (p *parser) parseBracketLiteral() Expr {
	p.advance() // consume "["
	if p.isPunct("]") {
		p.advance()
		return StringListLit{}
	}
	if p.cur.kind == tokNumber {
		var ints []int
		for {
			v, err := strconv.Atoi(p.cur.text)
			if err != nil {
				// fall back to float truncated representation on malformed input
				f, _ := strconv.ParseFloat(p.cur.text, 64)
				v = int(f)
			}
			ints = append(ints, v)
			p.advance()
			if p.isPunct(",") {
				p.advance()
				continue
			}
			break
		}
		p.expectPunct("]")
		return IntListLit{Values: ints}
	}
	var strs []string
	for {
		if p.cur.kind != tokString {
			p.errorf("expected string in list literal, got %q", p.cur.text)
			break
		}
		strs = append(strs, p.cur.text)
		p.advance()
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	p.expectPunct("]")
	return StringListLit{Values: strs}
}

// parseClosure parses `{ [param (',' param)* '->'] statements }`.
func (p *parser) parseClosure() Expr {
	p.expectPunct("{")
	params := p.tryParseParamList()
	var body []Stmt
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		body = append(body, p.parseStmt())
	}
	p.expectPunct("}")
	return Closure{Params: params, Body: body}
}

// tryParseParamList speculatively parses `ident (',' ident)* '->'`. If no
// arrow is found, the lexer/parser position is restored so the same tokens
// are reparsed as the closure's first statement.
func (p *parser) tryParseParamList() []string {
	if p.cur.kind != tokIdent {
		return nil
	}
	savedLex := *p.lex
	savedCur := p.cur

	var params []string
	for p.cur.kind == tokIdent {
		params = append(params, p.cur.text)
		p.advance()
		if p.isPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if p.cur.kind == tokArrow {
		p.advance()
		return params
	}
	// not a param list: restore
	*p.lex = savedLex
	p.cur = savedCur
	return nil
}

func (p *parser) parseStmt() Stmt {
	switch {
	case p.cur.kind == tokIdent && p.cur.text == "var":
		p.advance()
		name := p.cur.text
		p.advance()
		p.expectPunct("=")
		value := p.parseExpr()
		p.consumeSemi()
		return VarDecl{Name: name, Value: value}
	case p.cur.kind == tokIdent && p.cur.text == "return":
		p.advance()
		if p.isPunct(";") || p.isPunct("}") {
			p.consumeSemi()
			return Return{}
		}
		value := p.parseExpr()
		p.consumeSemi()
		return Return{Value: value}
	case p.cur.kind == tokIdent && p.cur.text == "if":
		return p.parseIf()
	default:
		return p.parseAssignOrExprStmt()
	}
}

func (p *parser) consumeSemi() {
	if p.isPunct(";") {
		p.advance()
	}
}

func (p *parser) parseIf() Stmt {
	p.advance() // "if"
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	p.expectPunct("{")
	var then []Stmt
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		then = append(then, p.parseStmt())
	}
	p.expectPunct("}")

	var els []Stmt
	if p.cur.kind == tokIdent && p.cur.text == "else" {
		p.advance()
		if p.cur.kind == tokIdent && p.cur.text == "if" {
			els = []Stmt{p.parseIf()}
		} else {
			p.expectPunct("{")
			for !p.isPunct("}") && p.cur.kind != tokEOF {
				els = append(els, p.parseStmt())
			}
			p.expectPunct("}")
		}
	}
	return If{Cond: cond, Then: then, Else: els}
}

// parseAssignOrExprStmt parses either `target = value` (LHS is usually
// `tags[key]` or `tags.key` sugar) or a bare expression statement such as
// a whitelisted registry call.
func (p *parser) parseAssignOrExprStmt() Stmt {
	expr := p.parseExpr()
	if p.isPunct("=") {
		p.advance()
		value := p.parseExpr()
		p.consumeSemi()
		return Assign{Target: expr, Value: value}
	}
	p.consumeSemi()
	return ExprStmt{X: expr}
}
