package lal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/obsdsl/internal/diag"
	"github.com/viant/obsdsl/lang/mal"
)

// Parse parses one LAL rule DSL body into a File.
func Parse(path, src string) (*File, diag.List) {
	p := &parser{lex: newLexer(src), path: path}
	p.advance()
	if p.cur.kind != tokIdent || p.cur.text != "filter" {
		p.errorf("expected top-level 'filter' block, got %q", p.cur.text)
		return nil, p.diags
	}
	p.advance()
	block := p.parseFilterBlock()
	if len(p.diags) > 0 {
		return nil, p.diags
	}
	return &File{Filter: block}, nil
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

func (p *parser) isPunct(s string) bool { return p.cur.kind == tokPunct && p.cur.text == s }

func (p *parser) expectPunct(s string) bool {
	if !p.isPunct(s) {
		p.errorf("expected %q, got %q", s, p.cur.text)
		return false
	}
	p.advance()
	return true
}

func (p *parser) expectIdent(text string) bool {
	if p.cur.kind != tokIdent || p.cur.text != text {
		p.errorf("expected %q, got %q", text, p.cur.text)
		return false
	}
	p.advance()
	return true
}

// parseMalFragment captures the raw source from the current token's start
// up to (but excluding) the first byte in terminators found at bracket
// depth zero, parses it as a MAL expression, and repositions the lexer so
// the terminator itself becomes the next token.
func (p *parser) parseMalFragment(terminators string) mal.Expr {
	start := p.cur.start
	src := p.lex.src
	i := start
	depth := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\'' || c == '"':
			quote := c
			i++
			for i < len(src) && src[i] != quote {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i < len(src) {
				i++
			}
			continue
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			if depth == 0 && strings.ContainsRune(terminators, rune(c)) {
				goto done
			}
			depth--
		default:
			if depth == 0 && strings.ContainsRune(terminators, rune(c)) {
				goto done
			}
		}
		i++
	}
done:
	text := strings.TrimSpace(src[start:i])
	for j := start; j < i && j < len(src); j++ {
		if src[j] == '\n' {
			p.lex.line++
		}
	}
	p.lex.pos = i
	p.advance()

	expr, diags := mal.ParseExpression(p.path, text)
	if diags != nil {
		p.diags = append(p.diags, diags...)
		return mal.Ident{}
	}
	return expr
}

func (p *parser) parseFilterBlock() FilterBlock {
	var block FilterBlock
	if !p.expectPunct("{") {
		return block
	}
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		switch {
		case p.cur.kind == tokIdent && (p.cur.text == "json" || p.cur.text == "text"):
			block.Parse = p.parseParseSpec()
		case p.cur.kind == tokIdent && p.cur.text == "extractor":
			p.advance()
			ext := p.parseExtractorBlock()
			block.Extractor = &ext
		case p.cur.kind == tokIdent && p.cur.text == "sink":
			p.advance()
			sink := p.parseSinkBlock()
			block.Sink = &sink
		case p.cur.kind == tokIdent && p.cur.text == "abort":
			p.advance()
			p.expectPunct("{")
			p.expectPunct("}")
			block.Abort = true
		default:
			p.errorf("unexpected token %q in filter block", p.cur.text)
			p.advance()
		}
	}
	p.expectPunct("}")
	return block
}

func (p *parser) parseParseSpec() *ParseSpec {
	kind := p.cur.text
	p.advance()
	spec := &ParseSpec{Kind: kind}
	p.expectPunct("{")
	if kind == "text" {
		for !p.isPunct("}") && p.cur.kind != tokEOF {
			if p.cur.kind == tokIdent && p.cur.text == "regexp" {
				p.advance()
				if p.cur.kind == tokString {
					spec.Regexp = p.cur.text
					p.advance()
				} else {
					p.errorf("expected regexp pattern string, got %q", p.cur.text)
				}
			} else {
				p.advance()
			}
		}
	} else {
		for !p.isPunct("}") && p.cur.kind != tokEOF {
			p.advance()
		}
	}
	p.expectPunct("}")
	return spec
}

func (p *parser) parseExtractorBlock() ExtractorBlock {
	var block ExtractorBlock
	p.expectPunct("{")
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		block.Stmts = append(block.Stmts, p.parseExtractorStmt())
	}
	p.expectPunct("}")
	return block
}

func (p *parser) parseExtractorStmt() ExtractorStmt {
	switch {
	case p.cur.kind == tokIdent && p.cur.text == "tag":
		p.advance()
		key := p.cur.text
		p.advance()
		p.expectPunct(":")
		expr := p.parseMalFragment(";}")
		if p.isPunct(";") {
			p.advance()
		}
		return TagStmt{Key: key, Expr: expr}
	case p.cur.kind == tokIdent && p.cur.text == "metric":
		p.advance()
		return MetricStmt{Fields: p.parseFieldBlock()}
	case p.cur.kind == tokIdent && p.cur.text == "sampledTrace":
		p.advance()
		return SampledTraceStmt{Fields: p.parseFieldBlock()}
	case p.cur.kind == tokIdent && p.cur.text == "if":
		return p.parseExtractorIf()
	case p.cur.kind == tokIdent && p.cur.text == "abort":
		p.advance()
		p.expectPunct("{")
		p.expectPunct("}")
		return AbortStmt{}
	default:
		p.errorf("unexpected token %q in extractor block", p.cur.text)
		p.advance()
		return AbortStmt{}
	}
}

func (p *parser) parseFieldBlock() map[string]mal.Expr {
	fields := map[string]mal.Expr{}
	p.expectPunct("{")
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		name := p.cur.text
		p.advance()
		p.expectPunct(":")
		fields[name] = p.parseMalFragment(",}")
		if p.isPunct(",") || p.isPunct(";") {
			p.advance()
		}
	}
	p.expectPunct("}")
	return fields
}

func (p *parser) parseExtractorIf() ExtractorStmt {
	p.advance() // "if"
	p.expectPunct("(")
	cond := p.parseMalFragment(")")
	p.expectPunct(")")
	then := p.parseExtractorBranch()

	var els []ExtractorStmt
	if p.cur.kind == tokIdent && p.cur.text == "else" {
		p.advance()
		if p.cur.kind == tokIdent && p.cur.text == "if" {
			els = []ExtractorStmt{p.parseExtractorIf()}
		} else {
			els = p.parseExtractorBranch()
		}
	}
	return IfStmt{Cond: cond, Then: then, Else: els}
}

// parseExtractorBranch parses an if/else branch body, which may be a
// brace-delimited block of statements or — as in the single-statement
// form `if (cond) abort {}` — a single bare statement.
func (p *parser) parseExtractorBranch() []ExtractorStmt {
	if !p.isPunct("{") {
		return []ExtractorStmt{p.parseExtractorStmt()}
	}
	p.advance()
	var stmts []ExtractorStmt
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		stmts = append(stmts, p.parseExtractorStmt())
	}
	p.expectPunct("}")
	return stmts
}

func (p *parser) parseSinkBlock() SinkBlock {
	var block SinkBlock
	p.expectPunct("{")
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		if p.cur.kind == tokIdent && p.cur.text == "sampler" {
			p.advance()
			sampler := p.parseSamplerBlock()
			block.Sampler = &sampler
		} else {
			p.advance()
		}
	}
	p.expectPunct("}")
	return block
}

func (p *parser) parseSamplerBlock() SamplerBlock {
	var block SamplerBlock
	p.expectPunct("{")
	for !p.isPunct("}") && p.cur.kind != tokEOF {
		if p.cur.kind == tokIdent && p.cur.text == "rateLimit" {
			p.advance()
			p.expectPunct("(")
			if p.cur.kind == tokString {
				block.KeyTemplate = p.cur.text
				block.KeyExprs = parseGStringExprs(p.path, p.cur.text, &p.diags)
				p.advance()
			}
			p.expectPunct(")")
			p.expectPunct("{")
			for !p.isPunct("}") && p.cur.kind != tokEOF {
				if p.cur.kind == tokIdent && p.cur.text == "rpm" {
					p.advance()
					if p.cur.kind == tokNumber {
						n, _ := strconv.Atoi(p.cur.text)
						block.RPM = n
						p.advance()
					}
				} else {
					p.advance()
				}
			}
			p.expectPunct("}")
		} else {
			p.advance()
		}
	}
	p.expectPunct("}")
	return block
}

// parseGStringExprs extracts every `${expr}` placeholder from a rate-limit
// key template and parses each as an independent MAL expression fragment.
func parseGStringExprs(path, s string, diags *diag.List) []mal.Expr {
	var exprs []mal.Expr
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			depth := 1
			j := i + 2
			for j < len(s) && depth > 0 {
				switch s[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			frag := s[i+2 : j]
			expr, d := mal.ParseExpression(path, frag)
			if d != nil {
				*diags = append(*diags, d...)
			} else {
				exprs = append(exprs, expr)
			}
			i = j
		}
	}
	return exprs
}
