// Package lal is the LAL Transpiler. It compiles a
// parsed lang/lal.File into a callable script: given one raw log line, it
// runs the parse spec, evaluates the extractor statements (reusing
// compile/mal's interpreter for every embedded MAL expression fragment),
// and reports the resulting tags/metric fields/abort decision plus whether
// the sink's sampler admits the record.
package lal

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/lang/lal"
	langmal "github.com/viant/obsdsl/lang/mal"
)

// Outcome is the result of running one log line through a compiled script.
type Outcome struct {
	Aborted            bool
	Tags               map[string]string
	MetricFields       map[string]interface{}
	SampledTraceFields map[string]interface{}
	Sampled            bool // false when the sink's rate limiter dropped the record
}

// CompiledScript is the in-memory artifact the transpiler produces for one
// LAL rule body.
type CompiledScript struct {
	FQN  string
	Hash string
	Run  func(raw string) (*Outcome, error)
}

// Compile transpiles a parsed LAL file into a CompiledScript, naming it
// LalExpr_<idx> per its deterministic emission rule (idx is this
// script's rising index in load order — the manifest writer's caller
// assigns it). ctx supplies the shared MAL evaluation context (counter
// window, K8s registry) that embedded MAL fragments may call into; limiter
// is shared across every script compiled for one process so rate-limit
// keys are tracked globally.
func Compile(canonicalDSL string, file *lal.File, ctx *compilemal.Context, limiter *RateLimiter, idx int) *CompiledScript {
	hash := sha256.Sum256([]byte(canonicalDSL))
	return &CompiledScript{
		FQN:  "LalExpr_" + strconv.Itoa(idx),
		Hash: hex.EncodeToString(hash[:]),
		Run: func(raw string) (*Outcome, error) {
			return run(file, ctx, limiter, raw)
		},
	}
}

func run(file *lal.File, ctx *compilemal.Context, limiter *RateLimiter, raw string) (*Outcome, error) {
	block := file.Filter
	if block.Abort {
		return &Outcome{Aborted: true}, nil
	}

	parsed, err := parseRecord(block.Parse, raw)
	if err != nil {
		return nil, err
	}

	env := compilemal.NewEnv(ctx, nil)
	env.Set("parsed", toRecord(parsed))
	tags := compilemal.NewRecord()
	env.Set("tags", tags)

	out := &Outcome{Sampled: true}
	if block.Extractor != nil {
		aborted, err := execExtractor(block.Extractor.Stmts, env, out)
		if err != nil {
			return nil, err
		}
		if aborted {
			out.Aborted = true
			return out, nil
		}
	}
	out.Tags = compilemal.RecordToStrings(tags)

	if block.Sink != nil && block.Sink.Sampler != nil {
		out.Sampled = applySampler(block.Sink.Sampler, env, limiter)
	}
	return out, nil
}

func execExtractor(stmts []lal.ExtractorStmt, env *compilemal.Env, out *Outcome) (aborted bool, err error) {
	for _, stmt := range stmts {
		switch st := stmt.(type) {
		case lal.TagStmt:
			v, err := env.Eval(st.Expr)
			if err != nil {
				return false, err
			}
			tags, _ := env.Get("tags")
			compilemal.RecordSetAny(tags, st.Key, v)
		case lal.MetricStmt:
			fields, err := evalFields(st.Fields, env)
			if err != nil {
				return false, err
			}
			if out.MetricFields == nil {
				out.MetricFields = map[string]interface{}{}
			}
			for k, v := range fields {
				out.MetricFields[k] = v
			}
		case lal.SampledTraceStmt:
			fields, err := evalFields(st.Fields, env)
			if err != nil {
				return false, err
			}
			if out.SampledTraceFields == nil {
				out.SampledTraceFields = map[string]interface{}{}
			}
			for k, v := range fields {
				out.SampledTraceFields[k] = v
			}
		case lal.IfStmt:
			cond, err := env.Eval(st.Cond)
			if err != nil {
				return false, err
			}
			branch := st.Else
			if truthy(cond) {
				branch = st.Then
			}
			aborted, err = execExtractor(branch, env, out)
			if err != nil || aborted {
				return aborted, err
			}
		case lal.AbortStmt:
			return true, nil
		}
	}
	return false, nil
}

func evalFields(fields map[string]langmal.Expr, env *compilemal.Env) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for name, expr := range fields {
		v, err := env.Eval(expr)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func applySampler(sampler *lal.SamplerBlock, env *compilemal.Env, limiter *RateLimiter) bool {
	key := sampler.KeyTemplate
	for _, expr := range sampler.KeyExprs {
		v, err := env.Eval(expr)
		if err == nil {
			key += stringifyForKey(v)
		}
	}
	return limiter.Allow(key, sampler.RPM, time.Now())
}

func stringifyForKey(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func truthy(v interface{}) bool {
	b, ok := v.(bool)
	return ok && b
}

// toRecord converts a plain map produced by JSON/regexp parsing into the
// dynamic record type compile/mal's interpreter recognizes, recursing into
// nested objects so multi-level `parsed.a.b` selects resolve correctly.
func toRecord(m map[string]interface{}) interface{} {
	rec := compilemal.NewRecord()
	for k, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			compilemal.RecordSet(rec, k, toRecord(t))
		default:
			compilemal.RecordSet(rec, k, v)
		}
	}
	return rec
}
