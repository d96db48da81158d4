package mal

import (
	"fmt"

	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/runtime/family"
)

// Env is the exported handle other transpilers (compile/lal) use to
// evaluate a standalone MAL expression fragment against a set of bound
// variables, without reaching into this package's interpreter internals.
type Env struct{ state *evalState }

// NewEnv builds an evaluation environment. sampleEnv resolves bare
// identifiers that name sample families (unused by LAL, which only binds
// ordinary variables, but shared so the same interpreter serves both).
func NewEnv(ctx *Context, sampleEnv family.Env) *Env {
	if sampleEnv == nil {
		sampleEnv = family.Env{}
	}
	return &Env{state: newState(ctx, sampleEnv)}
}

// Set binds a variable name (e.g. "parsed", "tags") visible to Eval.
func (e *Env) Set(name string, value interface{}) { e.state.vars[name] = value }

// Get reads back a bound variable, e.g. to recover a "tags" record a
// sequence of tag statements has been mutating.
func (e *Env) Get(name string) (interface{}, bool) {
	v, ok := e.state.vars[name]
	return v, ok
}

// Eval evaluates expr against the currently bound variables.
func (e *Env) Eval(expr langmal.Expr) (interface{}, error) {
	return Eval(expr, e.state)
}

// NewRecord exposes the dynamic record type used for "parsed"/"tags"
// style bindings to callers outside this package. The returned value's
// entries can be read and written with ordinary map indexing; only the
// concrete type is unexported.
func NewRecord() record { return record{} }

// RecordSet writes a key into a record value built by NewRecord.
func RecordSet(r record, key string, value interface{}) { r[key] = value }

// RecordGet reads a key from a record value built by NewRecord.
func RecordGet(r record, key string) (interface{}, bool) {
	v, ok := r[key]
	return v, ok
}

// RecordSetAny is RecordSet for callers holding the record behind an
// interface{} (e.g. retrieved from Env.Get); it is a no-op if r does not
// hold a record.
func RecordSetAny(r interface{}, key string, value interface{}) {
	if rec, ok := r.(record); ok {
		rec[key] = value
	}
}

// RecordToStrings converts every entry of r to its string form, for
// callers that need a plain string map (e.g. to build model.Labels).
func RecordToStrings(r record) map[string]string {
	out := make(map[string]string, len(r))
	for k, v := range r {
		if s, ok := stringOf(v); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}
