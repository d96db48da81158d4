// Package lal implements the LAL (Log Analysis Language) parser: a
// block-structured lexer/parser producing a File AST. Embedded
// expressions (tag values, if-conditions, rate-limit keys) are parsed as
// independent MAL expression fragments via lang/mal, since an LAL filter
// body's conditions are translated with the same expression grammar MAL uses.
package lal

import "github.com/viant/obsdsl/lang/mal"

// File is one parsed LAL rule body: `filter { ... }`.
type File struct {
	Filter FilterBlock
}

// FilterBlock is the top-level container.
type FilterBlock struct {
	Parse     *ParseSpec
	Extractor *ExtractorBlock
	Sink      *SinkBlock
	Abort     bool // unconditional top-level `abort {}`
}

// ParseSpec is `json { }` or `text { regexp <pattern> }`.
type ParseSpec struct {
	Kind    string // "json" or "text"
	Regexp  string // only set for Kind == "text"
}

// ExtractorBlock is `extractor { tag k: expr; metric { }; sampledTrace { }; if (...) {...} }`.
type ExtractorBlock struct {
	Stmts []ExtractorStmt
}

// ExtractorStmt is any statement allowed inside an extractor block.
type ExtractorStmt interface{ extractorStmtNode() }

// TagStmt is `tag <key> : <expr>`.
type TagStmt struct {
	Key  string
	Expr mal.Expr
}

// MetricStmt is `metric { field: expr, ... }`.
type MetricStmt struct {
	Fields map[string]mal.Expr
}

// SampledTraceStmt is `sampledTrace { field: expr, ... }`.
type SampledTraceStmt struct {
	Fields map[string]mal.Expr
}

// IfStmt is a conditional branch inside an extractor block.
type IfStmt struct {
	Cond mal.Expr
	Then []ExtractorStmt
	Else []ExtractorStmt
}

// AbortStmt marks `abort {}` reached inside an extractor conditional.
type AbortStmt struct{}

func (TagStmt) extractorStmtNode()          {}
func (MetricStmt) extractorStmtNode()       {}
func (SampledTraceStmt) extractorStmtNode() {}
func (IfStmt) extractorStmtNode()           {}
func (AbortStmt) extractorStmtNode()        {}

// SinkBlock is `sink { sampler { rateLimit(<gstring>) { rpm <N> } } }`.
type SinkBlock struct {
	Sampler *SamplerBlock
}

// SamplerBlock is the rate-limit sampler configuration. KeyTemplate is the
// raw gstring text (with `${expr}` placeholders) forwarded to the sampler
// contract at runtime; evaluation happens lazily per record, so the
// parser keeps it as text plus the parsed embedded expressions.
type SamplerBlock struct {
	KeyTemplate string
	KeyExprs    []mal.Expr
	RPM         int
}
