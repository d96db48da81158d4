package oal

import (
	"fmt"

	"github.com/viant/obsdsl/internal/diag"
	"github.com/viant/obsdsl/model"
)

// Parse parses one OAL script file's contents into a model.OALFile.
// Grammar:
//
//	metric = from(Source.field).func(arg,...) [filter Field op literal]...
//	disable Name
//
// `#` starts a line comment; blank lines are ignored.
func Parse(path, src string) (*model.OALFile, diag.List) {
	p := &parser{lex: newLexer(src), path: path}
	p.advance()
	file := &model.OALFile{Path: path}
	for p.cur.kind != tokEOF {
		switch p.cur.kind {
		case tokDisable:
			p.advance()
			name := p.expectIdentLike("source name after disable")
			if name != "" {
				file.Disabled = append(file.Disabled, name)
			}
		case tokIdent:
			stmt := p.parseStatement()
			if stmt != nil {
				stmt.SourceFile = path
				file.Statements = append(file.Statements, *stmt)
			}
		default:
			p.errorf("unexpected token %q", p.cur.text)
			p.advance()
		}
	}
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return file, nil
}

type parser struct {
	lex   *lexer
	cur   token
	path  string
	diags diag.List
}

func (p *parser) advance() { p.cur = p.lex.next() }

func (p *parser) errorf(format string, args ...interface{}) {
	p.diags = append(p.diags, diag.Diagnostic{
		File: p.path, Line: p.cur.line, Column: p.cur.column,
		Message: fmt.Sprintf(format, args...), Severity: diag.Error,
	})
}

func (p *parser) expectPunct(s string) bool {
	if p.cur.kind != tokPunct || p.cur.text != s {
		p.errorf("expected %q, got %q", s, p.cur.text)
		return false
	}
	p.advance()
	return true
}

func (p *parser) expectIdentLike(what string) string {
	if p.cur.kind != tokIdent {
		p.errorf("expected %s, got %q", what, p.cur.text)
		return ""
	}
	name := p.cur.text
	p.advance()
	return name
}

// parseStatement parses `metric = from(Source.field).func(args) [filter ...]`.
func (p *parser) parseStatement() *model.OALStatement {
	line := p.cur.line
	metricName := p.cur.text
	p.advance()
	if !p.expectPunct("=") {
		p.skipToLineEnd()
		return nil
	}
	if p.cur.kind != tokIdent || p.cur.text != "from" {
		p.errorf("expected 'from', got %q", p.cur.text)
		p.skipToLineEnd()
		return nil
	}
	p.advance()
	if !p.expectPunct("(") {
		p.skipToLineEnd()
		return nil
	}
	source := p.expectIdentLike("source name")
	if !p.expectPunct(".") {
		p.skipToLineEnd()
		return nil
	}
	field := p.expectIdentLike("field name")
	if !p.expectPunct(")") {
		p.skipToLineEnd()
		return nil
	}
	if !p.expectPunct(".") {
		p.skipToLineEnd()
		return nil
	}
	fn := p.expectIdentLike("function name")
	args := p.parseArgs()

	stmt := &model.OALStatement{
		MetricName: metricName,
		Source:     source,
		Field:      field,
		Function:   fn,
		Args:       args,
		Line:       line,
	}

	for p.cur.kind == tokFilter {
		p.advance()
		f := p.parseFilter()
		if f != nil {
			stmt.Filters = append(stmt.Filters, *f)
		}
	}
	return stmt
}

func (p *parser) parseArgs() []string {
	if !p.expectPunct("(") {
		return nil
	}
	var args []string
	for p.cur.kind != tokPunct || p.cur.text != ")" {
		if p.cur.kind == tokEOF {
			p.errorf("unterminated argument list")
			return args
		}
		args = append(args, p.cur.text)
		p.advance()
		if p.cur.kind == tokPunct && p.cur.text == "," {
			p.advance()
		}
	}
	p.advance() // consume ")"
	return args
}

var filterOps = map[string]bool{"==": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true}

func (p *parser) parseFilter() *model.OALFilter {
	field := p.expectIdentLike("filter field")
	op := p.cur.text
	if !filterOps[op] {
		p.errorf("unknown filter operator %q", op)
		return nil
	}
	p.advance()
	value := p.cur.text
	p.advance()
	return &model.OALFilter{Field: field, Op: op, Value: value}
}

// skipToLineEnd recovers from a statement-level parse error by skipping
// tokens until the next one that starts a new statement or disable line.
func (p *parser) skipToLineEnd() {
	startLine := p.cur.line
	for p.cur.kind != tokEOF && p.cur.line == startLine {
		p.advance()
	}
}
