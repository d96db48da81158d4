// Package mal is the MAL Transpiler: it turns a parsed
// lang/mal.Expr into an executable closure over a Sample Family Runtime
// environment, rather than generating a separately-compiled Go package.
// "Ahead-of-time compiled artifact" is resolved this way because Go has no
// portable plugin-loading story: the Runtime Loader reconstructs the same
// closures by re-running this transpiler against the rule data persisted
// in config-data/*.json, which is functionally equivalent to loading a
// prebuilt class from a manifest.
package mal

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/viant/obsdsl/internal/diag"
	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

// Context carries everything a compiled expression needs beyond the
// sample-family environment it is invoked with: the counter window shared
// across rate/increase/irate evaluations, the K8s metadata registry
// retagByK8sMeta dispatches to, and the logger runtime evaluation failures
// (a thrown closure, division by a non-finite value, an unresolved sample
// name) are logged to at debug level on their way to becoming EMPTY rather
// than a propagated error. Logger may be left nil, in which case these are
// silently discarded.
type Context struct {
	Counters *family.CounterWindow
	K8sMeta  family.K8sMetaRegistry
	Logger   *zap.Logger
}

func (c *Context) logger() *zap.Logger {
	if c == nil || c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// evalState is the per-call interpreter state: env resolves top-level
// sample-family references by name, vars resolves closure parameter and
// local-variable names.
type evalState struct {
	ctx  *Context
	env  family.Env
	vars map[string]interface{}
}

func newState(ctx *Context, env family.Env) *evalState {
	return &evalState{ctx: ctx, env: env, vars: map[string]interface{}{}}
}

func (s *evalState) child() *evalState {
	vars := make(map[string]interface{}, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return &evalState{ctx: s.ctx, env: s.env, vars: vars}
}

// Eval evaluates an expression to a dynamic value: a model.SampleFamily
// (top-level sample references and the calls chained onto them), or a
// scalar/string/bool/record value inside closures.
func Eval(expr langmal.Expr, s *evalState) (interface{}, error) {
	switch e := expr.(type) {
	case langmal.NumberLit:
		return e.Value, nil
	case langmal.StringLit:
		return e.Value, nil
	case langmal.StringListLit:
		return e.Values, nil
	case langmal.IntListLit:
		return e.Values, nil
	case langmal.LayerLit:
		return model.Layer(e.Value), nil
	case langmal.K8sRetagTypeLit:
		return e.Value, nil
	case langmal.DownsamplingLit:
		return e.Value, nil
	case langmal.Paren:
		return Eval(e.Inner, s)
	case langmal.Ident:
		return evalIdent(e, s)
	case langmal.Unary:
		return evalUnary(e, s)
	case langmal.Binary:
		return evalBinary(e, s)
	case langmal.Ternary:
		cond, err := Eval(e.Cond, s)
		if err != nil {
			return nil, err
		}
		if boolOf(cond) {
			return Eval(e.Then, s)
		}
		return Eval(e.Else, s)
	case langmal.Select:
		return evalSelect(e, s)
	case langmal.Index:
		return evalIndex(e, s)
	case langmal.Call:
		return evalCall(e, s)
	case langmal.Closure:
		return e, nil // closures evaluate to themselves; callers compile on demand
	}
	return nil, fmt.Errorf("mal: unsupported expression node %T", expr)
}

func evalIdent(e langmal.Ident, s *evalState) (interface{}, error) {
	if v, ok := s.vars[e.Name]; ok {
		return v, nil
	}
	if f, ok := s.env[e.Name]; ok {
		return f, nil
	}
	// A bare identifier this grammar never binds as a closure parameter is
	// always a top-level sample-family reference; an unresolved one
	// evaluates to EMPTY so every chained call (.sum(...), .service(...))
	// runs against an empty family instead of failing.
	return model.Empty, nil
}

func evalUnary(e langmal.Unary, s *evalState) (interface{}, error) {
	v, err := Eval(e.Operand, s)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "!":
		return !boolOf(v), nil
	case "-":
		if f, ok := floatOf(v); ok {
			return -f, nil
		}
		return nil, fmt.Errorf("mal: cannot negate non-numeric value %v", v)
	}
	return nil, fmt.Errorf("mal: unsupported unary operator %q", e.Op)
}

func evalBinary(e langmal.Binary, s *evalState) (interface{}, error) {
	if e.Op == "&&" || e.Op == "||" {
		l, err := Eval(e.Left, s)
		if err != nil {
			return nil, err
		}
		if e.Op == "&&" && !boolOf(l) {
			return false, nil
		}
		if e.Op == "||" && boolOf(l) {
			return true, nil
		}
		r, err := Eval(e.Right, s)
		if err != nil {
			return nil, err
		}
		return boolOf(r), nil
	}

	l, err := Eval(e.Left, s)
	if err != nil {
		return nil, err
	}
	r, err := Eval(e.Right, s)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case "==":
		return equalValues(l, r), nil
	case "!=":
		return !equalValues(l, r), nil
	case "<", "<=", ">", ">=":
		lf, lok := floatOf(l)
		rf, rok := floatOf(r)
		if !lok || !rok {
			return false, nil
		}
		switch e.Op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		default:
			return lf >= rf, nil
		}
	case "+", "-", "*", "/":
		return evalArith(e.Op, l, r)
	}
	return nil, fmt.Errorf("mal: unsupported binary operator %q", e.Op)
}

func evalArith(op string, l, r interface{}) (interface{}, error) {
	lv, lIsFamily := l.(model.SampleFamily)
	rv, rIsFamily := r.(model.SampleFamily)
	if lIsFamily || rIsFamily {
		var a, b family.Value
		if lIsFamily {
			a = family.FamilyValue(lv)
		} else if f, ok := floatOf(l); ok {
			a = family.Scalar(f)
		}
		if rIsFamily {
			b = family.FamilyValue(rv)
		} else if f, ok := floatOf(r); ok {
			b = family.Scalar(f)
		}
		result := family.BinaryOp(op, a, b)
		if result.IsFamily {
			return result.Family, nil
		}
		return result.Scalar, nil
	}
	lf, lok := floatOf(l)
	rf, rok := floatOf(r)
	if !lok || !rok {
		return nil, fmt.Errorf("mal: arithmetic operator %q requires numeric operands", op)
	}
	result := family.BinaryOp(op, family.Scalar(lf), family.Scalar(rf))
	return result.Scalar, nil
}

func equalValues(l, r interface{}) bool {
	lf, lok := floatOf(l)
	rf, rok := floatOf(r)
	if lok && rok {
		return lf == rf
	}
	ls, lok := stringOf(l)
	rs, rok := stringOf(r)
	if lok && rok {
		return ls == rs
	}
	return l == r
}

func evalSelect(e langmal.Select, s *evalState) (interface{}, error) {
	if id, ok := e.Receiver.(langmal.Ident); ok {
		if _, bound := s.vars[id.Name]; !bound {
			if f, ok := s.env[id.Name+"."+e.Field]; ok {
				return f, nil
			}
		}
	}
	recv, err := Eval(e.Receiver, s)
	if err != nil {
		return nil, err
	}
	if recv == nil {
		if e.NullSafe {
			return nil, nil
		}
		return nil, fmt.Errorf("mal: null receiver in non-null-safe property access .%s", e.Field)
	}
	switch t := recv.(type) {
	case record:
		return t[e.Field], nil
	case model.Labels:
		v, _ := t.Get(e.Field)
		return v, nil
	case model.Sample:
		switch e.Field {
		case "value":
			return t.Value, nil
		case "timestamp":
			return float64(t.Timestamp), nil
		default:
			v, _ := t.Labels.Get(e.Field)
			return v, nil
		}
	default:
		return nil, fmt.Errorf("mal: cannot select field %q on %T", e.Field, recv)
	}
}

func evalIndex(e langmal.Index, s *evalState) (interface{}, error) {
	recv, err := Eval(e.Receiver, s)
	if err != nil {
		return nil, err
	}
	idx, err := Eval(e.IndexExp, s)
	if err != nil {
		return nil, err
	}
	key, _ := stringOf(idx)
	switch t := recv.(type) {
	case record:
		return t[key], nil
	case model.Labels:
		v, _ := t.Get(key)
		return v, nil
	default:
		return nil, fmt.Errorf("mal: cannot index into %T", recv)
	}
}

func evalCall(e langmal.Call, s *evalState) (interface{}, error) {
	recv, err := Eval(e.Receiver, s)
	if err != nil {
		return nil, err
	}
	if f, ok := recv.(model.SampleFamily); ok {
		return dispatchFamilyMethod(s, f, e.Method, e.Args)
	}
	return dispatchValueMethod(s, recv, e.Method, e.Args)
}

func dispatchValueMethod(s *evalState, recv interface{}, method string, argExprs []langmal.Expr) (interface{}, error) {
	switch method {
	case "matches":
		str, _ := stringOf(recv)
		pattern, err := evalString(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, nil
		}
		return re.MatchString(str), nil
	}
	return nil, fmt.Errorf("mal: unsupported method %q on %T", method, recv)
}

func evalString(argExprs []langmal.Expr, i int, s *evalState) (string, error) {
	if i >= len(argExprs) {
		return "", fmt.Errorf("mal: missing argument %d", i)
	}
	v, err := Eval(argExprs[i], s)
	if err != nil {
		return "", err
	}
	str, _ := stringOf(v)
	return str, nil
}

// CheckDiagnostics wraps a transpile-time error into a single-entry
// diag.List for entry points that report through the shared diagnostics
// type rather than a plain Go error.
func CheckDiagnostics(path string, err error) diag.List {
	if err == nil {
		return nil
	}
	return diag.List{{File: path, Message: err.Error(), Severity: diag.Error}}
}
