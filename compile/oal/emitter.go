// Package oal is the OAL Code Emitter. It turns parsed
// OALStatements into compiled metric expressions by building the
// equivalent Sample Family Runtime call chain directly as a lang/mal AST —
// `from(Source.field).function(args) filter ...` is translated into the
// same core vocabulary a MAL rule would use — and handing it to
// compile/mal's transpiler, which already knows how to turn that AST into
// a CompiledExpression. It also emits the deterministic Go source text and
// FQN bookkeeping the manifest records.
package oal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/obsdsl/internal/diag"
	langmal "github.com/viant/obsdsl/lang/mal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/model"
)

// MetricClass is one compiled OAL metric: its generated source text, the
// FQN the manifest lists it under, and the runnable expression.
type MetricClass struct {
	MetricName string
	FQN        string
	Source     string
	Compiled   *compilemal.CompiledExpression
}

// DispatcherClass groups every metric class sourced from the same OAL
// `from(Source...)` name, mirroring a single dispatcher fanning one raw
// source record out to each interested metric.
type DispatcherClass struct {
	SourceName string
	FQN        string
	Source     string
	Metrics    []string // metric names, in definition order
	Fields     []string // "SourceName.field" env keys this dispatcher's metrics reference, in first-seen order
}

// Result is everything the OAL emitter produced from a set of files.
type Result struct {
	Metrics     []MetricClass
	Dispatchers []DispatcherClass
	Disabled    []string
}

// scopeOf maps an OAL `from` source name onto the Sample Family Runtime
// scope-binding call and default Layer it implies. Unrecognized sources
// default to service scope at the general layer, which keeps Emit total
// rather than requiring every deployment to enumerate every source.
func scopeOf(source string) (method string, layer model.Layer) {
	switch source {
	case "Endpoint":
		return "endpoint", model.LayerGeneral
	case "Instance", "ServiceInstance":
		return "instance", model.LayerGeneral
	case "Service":
		return "service", model.LayerGeneral
	case "Process":
		return "process", model.LayerGeneral
	case "EndpointRelation":
		return "endpointRelation", model.LayerGeneral
	case "ServiceInstanceRelation", "InstanceRelation":
		return "instanceRelation", model.LayerGeneral
	case "ServiceRelation":
		return "serviceRelation", model.LayerGeneral
	default:
		return "service", model.LayerGeneral
	}
}

// Emit compiles every statement across files in definition order, grouping
// metrics into dispatchers by source and rejecting duplicate metric names
// across the whole set.
func Emit(files []*model.OALFile, compiler *compilemal.Compiler) (*Result, diag.List) {
	var diags diag.List
	seen := map[string]string{} // metricName -> source file, for duplicate detection
	result := &Result{}
	dispatcherIndex := map[string]int{}

	for _, file := range files {
		result.Disabled = append(result.Disabled, file.Disabled...)
		for _, stmt := range file.Statements {
			if prior, dup := seen[stmt.MetricName]; dup {
				diags = append(diags, diag.Diagnostic{
					File: stmt.SourceFile, Line: stmt.Line, Severity: diag.Error,
					Message: fmt.Sprintf("duplicate metric name %q, first defined in %s", stmt.MetricName, prior),
				})
				continue
			}
			seen[stmt.MetricName] = stmt.SourceFile

			ast := buildExpr(stmt)
			composedText := renderDebugText(stmt)
			compiled, cdiags := compiler.CompileAST(stmt.SourceFile, stmt.MetricName, composedText, ast)
			if cdiags != nil {
				diags = append(diags, cdiags...)
				continue
			}

			mc := MetricClass{
				MetricName: stmt.MetricName,
				FQN:        "oal.rt.metrics." + stmt.MetricName,
				Source:     emitMetricClassSource(stmt),
				Compiled:   compiled,
			}
			result.Metrics = append(result.Metrics, mc)

			idx, ok := dispatcherIndex[stmt.Source]
			if !ok {
				idx = len(result.Dispatchers)
				dispatcherIndex[stmt.Source] = idx
				result.Dispatchers = append(result.Dispatchers, DispatcherClass{
					SourceName: stmt.Source,
					FQN:        "oal.rt.dispatcher." + stmt.Source + "Dispatcher",
				})
			}
			d := &result.Dispatchers[idx]
			d.Metrics = append(d.Metrics, stmt.MetricName)
			fieldKey := stmt.Source + "." + stmt.Field
			if !containsString(d.Fields, fieldKey) {
				d.Fields = append(d.Fields, fieldKey)
			}
		}
	}

	for i := range result.Dispatchers {
		result.Dispatchers[i].Source = emitDispatcherClassSource(result.Dispatchers[i])
	}

	if len(diags) > 0 {
		return nil, diags
	}
	return result, nil
}

// buildExpr translates one OALStatement into the equivalent
// from(...).function(args).filter(...).scope(...) call chain as an AST,
// without going through MAL's text grammar.
func buildExpr(stmt model.OALStatement) langmal.Expr {
	var expr langmal.Expr = langmal.Ident{Name: stmt.Source + "." + stmt.Field}

	runtimeFn := runtimeFunctionOf(stmt.Function)
	var args []langmal.Expr
	for _, a := range stmt.Args {
		args = append(args, argExpr(a))
	}
	if len(args) == 0 && isAggregateFunction(runtimeFn) {
		// OAL's aggregation functions take no explicit group-by argument:
		// they implicitly group by the entity identifying the `from`
		// source.
		args = []langmal.Expr{langmal.StringListLit{Values: []string{stmt.Source}}}
	}
	expr = langmal.Call{Receiver: expr, Method: runtimeFn, Args: args}

	for _, f := range stmt.Filters {
		expr = applyFilter(expr, f)
	}

	method, layer := scopeOf(stmt.Source)
	scopeArgs := []langmal.Expr{
		langmal.StringListLit{Values: []string{stmt.Source}},
		langmal.LayerLit{Value: string(layer)},
	}
	return langmal.Call{Receiver: expr, Method: method, Args: scopeArgs}
}

// applyFilter compiles one `filter Field op literal` clause. Equality and
// inequality map to the runtime's dedicated tagEqual/tagNotEqual methods;
// the relational operators have no dedicated method, so they compile to an
// equivalent `.filter(closure)` call comparing the field against the
// literal on every sample.
func applyFilter(expr langmal.Expr, f model.OALFilter) langmal.Expr {
	switch f.Op {
	case "==":
		return langmal.Call{Receiver: expr, Method: "tagEqual", Args: []langmal.Expr{langmal.StringLit{Value: f.Field}, langmal.StringLit{Value: f.Value}}}
	case "!=":
		return langmal.Call{Receiver: expr, Method: "tagNotEqual", Args: []langmal.Expr{langmal.StringLit{Value: f.Field}, langmal.StringLit{Value: f.Value}}}
	default:
		const param = "s"
		cond := langmal.Binary{
			Op:    f.Op,
			Left:  langmal.Select{Receiver: langmal.Ident{Name: param}, Field: f.Field},
			Right: argExpr(f.Value),
		}
		closure := langmal.Closure{Params: []string{param}, Body: []langmal.Stmt{langmal.Return{Value: cond}}}
		return langmal.Call{Receiver: expr, Method: "filter", Args: []langmal.Expr{closure}}
	}
}

// runtimeFunctionOf maps OAL's surface aggregation function names (which
// encode a type, e.g. "longAvg"/"doubleAvg"/"intSum") onto the Sample
// Family Runtime's type-erased equivalents.
func runtimeFunctionOf(fn string) string {
	switch fn {
	case "longAvg", "doubleAvg", "intAvg":
		return "avg"
	case "longSum", "doubleSum", "intSum", "count":
		return "sum"
	case "longMax", "doubleMax", "intMax":
		return "max"
	case "longMin", "doubleMin", "intMin":
		return "min"
	case "longLatest", "doubleLatest", "latest":
		return "latest"
	case "histogram":
		return "histogram"
	default:
		return fn
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isAggregateFunction(fn string) bool {
	switch fn {
	case "sum", "avg", "max", "min", "latest":
		return true
	default:
		return false
	}
}

func argExpr(raw string) langmal.Expr {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return langmal.NumberLit{Value: n}
	}
	trimmed := strings.Trim(raw, "'\"")
	return langmal.StringLit{Value: trimmed}
}

// renderDebugText renders a human-readable approximation of the composed
// expression, used only for the content hash and diagnostics — it is never
// re-parsed.
func renderDebugText(stmt model.OALStatement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "from(%s.%s).%s(%s)", stmt.Source, stmt.Field, stmt.Function, strings.Join(stmt.Args, ", "))
	for _, f := range stmt.Filters {
		fmt.Fprintf(&b, ".filter(%s %s %s)", f.Field, f.Op, f.Value)
	}
	return b.String()
}

func emitMetricClassSource(stmt model.OALStatement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated from %s by the OAL compiler. DO NOT EDIT.\n", stmt.SourceFile)
	fmt.Fprintf(&b, "package metrics\n\n")
	fmt.Fprintf(&b, "// %s is the compiled metric class for %s.\n", exportedName(stmt.MetricName), stmt.MetricName)
	fmt.Fprintf(&b, "type %s struct{}\n", exportedName(stmt.MetricName))
	return b.String()
}

func emitDispatcherClassSource(d DispatcherClass) string {
	metrics := append([]string(nil), d.Metrics...)
	sort.Strings(metrics)
	var b strings.Builder
	fmt.Fprintf(&b, "// Code generated by the OAL compiler. DO NOT EDIT.\n")
	fmt.Fprintf(&b, "package dispatcher\n\n")
	fmt.Fprintf(&b, "// %sDispatcher fans one %s record out to its metric classes.\n", d.SourceName, d.SourceName)
	fmt.Fprintf(&b, "type %sDispatcher struct{}\n\n", d.SourceName)
	fmt.Fprintf(&b, "// Metrics lists every metric class this dispatcher forwards to: %s\n", strings.Join(metrics, ", "))
	return b.String()
}

func exportedName(metricName string) string {
	parts := strings.FieldsFunc(metricName, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
