package mal

import (
	"strings"

	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/model"
)

// execClosure runs a closure body against a fresh child state with its
// parameters already bound, returning either the value of an explicit
// `return`, or the value of the last evaluated expression statement as an
// implicit result — which covers the common one-line closure form
// `{tags -> tags.status == '200'}` with no explicit return.
func execClosure(cl langmal.Closure, s *evalState, args ...interface{}) (interface{}, error) {
	child := s.child()
	for i, p := range cl.Params {
		if i < len(args) {
			child.vars[p] = args[i]
		}
	}
	return execStmts(cl.Body, child)
}

func execStmts(stmts []langmal.Stmt, s *evalState) (interface{}, error) {
	var last interface{}
	for _, stmt := range stmts {
		switch st := stmt.(type) {
		case langmal.VarDecl:
			v, err := Eval(st.Value, s)
			if err != nil {
				return nil, err
			}
			s.vars[st.Name] = v
		case langmal.Assign:
			if err := execAssign(st, s); err != nil {
				return nil, err
			}
		case langmal.Return:
			if st.Value == nil {
				return nil, nil
			}
			return Eval(st.Value, s)
		case langmal.If:
			cond, err := Eval(st.Cond, s)
			if err != nil {
				return nil, err
			}
			var branch []langmal.Stmt
			if boolOf(cond) {
				branch = st.Then
			} else {
				branch = st.Else
			}
			v, returned, err := execBranch(branch, s)
			if err != nil {
				return nil, err
			}
			if returned {
				return v, nil
			}
		case langmal.ExprStmt:
			v, err := Eval(st.X, s)
			if err != nil {
				return nil, err
			}
			last = v
		}
	}
	return last, nil
}

// execBranch runs a nested statement list, reporting whether it executed
// an explicit return so the caller can propagate it upward.
func execBranch(stmts []langmal.Stmt, s *evalState) (interface{}, bool, error) {
	for i, stmt := range stmts {
		if ret, ok := stmt.(langmal.Return); ok {
			if _, err := execStmts(stmts[:i], s); err != nil {
				return nil, false, err
			}
			if ret.Value == nil {
				return nil, true, nil
			}
			v, err := Eval(ret.Value, s)
			return v, true, err
		}
	}
	v, err := execStmts(stmts, s)
	return v, false, err
}

func execAssign(st langmal.Assign, s *evalState) error {
	value, err := Eval(st.Value, s)
	if err != nil {
		return err
	}
	switch target := st.Target.(type) {
	case langmal.Ident:
		s.vars[target.Name] = value
	case langmal.Select:
		return assignInto(target.Receiver, target.Field, value, s)
	case langmal.Index:
		key, _ := Eval(target.IndexExp, s)
		k, _ := stringOf(key)
		return assignInto(target.Receiver, k, value, s)
	}
	return nil
}

func assignInto(receiver langmal.Expr, field string, value interface{}, s *evalState) error {
	ident, ok := receiver.(langmal.Ident)
	if !ok {
		return nil
	}
	rec, ok := s.vars[ident.Name].(record)
	if !ok {
		rec = record{}
	}
	rec[field] = value
	s.vars[ident.Name] = rec
	return nil
}

// compileLabelsClosure adapts a MAL closure into the func(model.Labels)
// model.Labels contract `tag(closure)` needs: the parameter is bound to a
// mutable record seeded from the input labels, and the (possibly mutated)
// record is converted back unless the closure returned something else.
func compileLabelsClosure(cl langmal.Closure, s *evalState) func(model.Labels) model.Labels {
	return func(in model.Labels) model.Labels {
		child := s.child()
		rec := recordFromLabels(in)
		if len(cl.Params) > 0 {
			child.vars[cl.Params[0]] = rec
		}
		result, err := execStmts(cl.Body, child)
		if err != nil {
			return in
		}
		if result == nil {
			if v, ok := child.vars[firstParam(cl)]; ok {
				return labelsFromValue(v)
			}
			return in
		}
		return labelsFromValue(result)
	}
}

// compileSamplePredicate adapts a closure into the func(model.Sample) bool
// contract `filter(closure)` needs.
func compileSamplePredicate(cl langmal.Closure, s *evalState) func(model.Sample) bool {
	return func(sample model.Sample) bool {
		result, err := execClosure(cl, s, sample)
		if err != nil {
			return false
		}
		return boolOf(result)
	}
}

// compileSampleTransform adapts a closure into the func(model.Sample)
// model.Sample contract `decorate(closure)` needs: the closure may tag
// additional labels onto the sample and returns the (possibly label-
// mutated) sample.
func compileSampleTransform(cl langmal.Closure, s *evalState) func(model.Sample) model.Sample {
	return func(sample model.Sample) model.Sample {
		labelsFn := compileLabelsClosure(cl, s)
		return sample.WithLabels(labelsFn(sample.Labels))
	}
}

// compileForEach adapts arrayLabel and a tag-rewrite closure into the
// fan-out contract forEach needs: arrayLabel's value is split on commas,
// and each element becomes its own sample with arrayLabel rewritten to
// that single element before the closure gets a mutable copy of the
// per-element labels to adjust further. A sample whose arrayLabel is
// absent or empty passes through unchanged.
func compileForEach(arrayLabel string, cl langmal.Closure, s *evalState) func(model.Sample) []model.Sample {
	labelsFn := compileLabelsClosure(cl, s)
	return func(sample model.Sample) []model.Sample {
		raw, ok := sample.Labels.Get(arrayLabel)
		if !ok || raw == "" {
			return []model.Sample{sample}
		}
		elems := strings.Split(raw, ",")
		out := make([]model.Sample, 0, len(elems))
		for _, elem := range elems {
			labels := sample.Labels.Clone()
			labels.Set(arrayLabel, strings.TrimSpace(elem))
			labels = labelsFn(labels)
			out = append(out, model.Sample{Name: sample.Name, Labels: labels, Value: sample.Value, Timestamp: sample.Timestamp})
		}
		return out
	}
}

func firstParam(cl langmal.Closure) string {
	if len(cl.Params) == 0 {
		return ""
	}
	return cl.Params[0]
}
