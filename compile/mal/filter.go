package mal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"go.uber.org/zap"

	"github.com/viant/obsdsl/internal/diag"
	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

// CompiledFilter is the in-memory artifact for one rule file's file-level
// filter closure: a predicate over the
// labels a metric's samples carry, plus the bookkeeping identifiers the
// manifest's properties-format filter file records. One CompiledFilter is
// produced per distinct filter literal, not per rule that uses it.
type CompiledFilter struct {
	Literal   string
	FQN       string
	Hash      string
	Predicate func(model.Labels) bool
}

// CompileFilter parses and compiles one rule file's `filter` literal (a
// closure on tags -> bool). idx is this filter's rising index among the
// distinct literals seen so far, used to name it MalFilter_<idx>.
func (c *Compiler) CompileFilter(sourceFile, literal string, idx int) (*CompiledFilter, diag.List) {
	ast, diags := langmal.ParseExpression(sourceFile, literal)
	if diags != nil {
		return nil, diags
	}
	closure, ok := ast.(langmal.Closure)
	if !ok {
		return nil, diag.List{{
			File: sourceFile, Severity: diag.Error,
			Message: "file-level filter must be a closure literal, e.g. {tags -> tags.status == '200'}",
		}}
	}

	hash := sha256.Sum256([]byte(literal))
	ctx := c.Context
	compiled := &CompiledFilter{
		Literal: literal,
		FQN:     "MalFilter_" + strconv.Itoa(idx),
		Hash:    hex.EncodeToString(hash[:]),
		Predicate: func(labels model.Labels) bool {
			state := newState(ctx, family.Env{})
			rec := recordFromLabels(labels)
			v, err := execClosure(closure, state, rec)
			if err != nil {
				ctx.logger().Debug("mal: filter evaluation failure, treating as non-match",
					zap.String("filter", literal), zap.Error(err))
				return false
			}
			return boolOf(v)
		},
	}
	return compiled, nil
}
