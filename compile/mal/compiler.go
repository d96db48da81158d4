package mal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"github.com/viant/obsdsl/internal/diag"
	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

// CompiledExpression is the in-memory artifact the transpiler produces for
// one OAL metric's composed MAL expression: a callable closure plus the
// bookkeeping identifiers (FQN, content hash) the manifest writer records.
type CompiledExpression struct {
	MetricName string
	FQN        string
	Hash       string
	Eval       func(env family.Env) (model.SampleFamily, error)
}

var scopeMethods = map[string]bool{
	"service": true, "instance": true, "endpoint": true, "process": true,
	"serviceRelation": true, "instanceRelation": true, "endpointRelation": true,
}

// Compiler transpiles composed MAL expressions into CompiledExpression
// values, sharing one evaluation Context (counter window, K8s registry)
// across every metric it compiles.
type Compiler struct {
	Context *Context
}

func NewCompiler(ctx *Context) *Compiler { return &Compiler{Context: ctx} }

// CompileMetric transpiles one metric's composed expression.
// It enforces the ExpressionParsingContext invariant: the expression must
// terminate in exactly one scope-binding call (service/instance/endpoint/
// process or a *Relation variant), with no other scope call nested inside
// it — an expression bound twice, or never, is a transpile-time error.
func (c *Compiler) CompileMetric(rule model.MetricRule, exp model.MetricExp) (*CompiledExpression, diag.List) {
	composed := rule.ComposedExpression(exp.Exp)
	ast, diags := langmal.ParseExpression(rule.SourceFile, composed)
	if diags != nil {
		return nil, diags
	}
	return c.CompileAST(rule.SourceFile, exp.Name, composed, ast)
}

// CompileAST compiles an already-parsed expression tree, used directly by
// compile/oal, which builds its composed expressions as AST nodes rather
// than MAL source text (the `from(Source.field).function(args)`
// shape does not round-trip through MAL's own lexer).
func (c *Compiler) CompileAST(sourceFile, metricName, composedText string, ast langmal.Expr) (*CompiledExpression, diag.List) {
	topCall, ok := ast.(langmal.Call)
	if !ok || !scopeMethods[topCall.Method] {
		return nil, diag.List{{
			File: sourceFile, Severity: diag.Error,
			Message: fmt.Sprintf("metric %q: composed expression must terminate in a scope-binding call, got %T", metricName, ast),
		}}
	}
	nested := countScopeCalls(topCall.Receiver)
	if nested > 0 {
		return nil, diag.List{{
			File: sourceFile, Severity: diag.Error,
			Message: fmt.Sprintf("metric %q: expression is bound to a scope more than once", metricName),
		}}
	}

	hash := sha256.Sum256([]byte(composedText))
	compiled := &CompiledExpression{
		MetricName: metricName,
		FQN:        "MalExpr_" + metricName,
		Hash:       hex.EncodeToString(hash[:]),
		Eval: func(env family.Env) (model.SampleFamily, error) {
			state := newState(c.Context, env)
			v, err := Eval(ast, state)
			if err != nil {
				c.Context.logger().Debug("mal: runtime evaluation failure, returning EMPTY",
					zap.String("metric", metricName), zap.Error(err))
				return model.Empty, nil
			}
			f, ok := v.(model.SampleFamily)
			if !ok {
				c.Context.logger().Debug("mal: runtime evaluation failure, returning EMPTY",
					zap.String("metric", metricName),
					zap.Error(fmt.Errorf("did not evaluate to a sample family, got %T", v)))
				return model.Empty, nil
			}
			return f, nil
		},
	}
	return compiled, nil
}

func countScopeCalls(e langmal.Expr) int {
	switch t := e.(type) {
	case nil:
		return 0
	case langmal.Call:
		n := countScopeCalls(t.Receiver)
		if scopeMethods[t.Method] {
			n++
		}
		for _, a := range t.Args {
			n += countScopeCalls(a)
		}
		return n
	case langmal.Paren:
		return countScopeCalls(t.Inner)
	case langmal.Binary:
		return countScopeCalls(t.Left) + countScopeCalls(t.Right)
	case langmal.Unary:
		return countScopeCalls(t.Operand)
	case langmal.Ternary:
		return countScopeCalls(t.Cond) + countScopeCalls(t.Then) + countScopeCalls(t.Else)
	case langmal.Select:
		return countScopeCalls(t.Receiver)
	case langmal.Index:
		return countScopeCalls(t.Receiver) + countScopeCalls(t.IndexExp)
	default:
		return 0
	}
}
