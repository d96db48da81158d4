package mal

import (
	"fmt"

	langmal "github.com/viant/obsdsl/lang/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

// dispatchFamilyMethod implements every Sample Family Runtime operation
// MAL exposes as a `.method(args)` call on a family-valued receiver
//.
func dispatchFamilyMethod(s *evalState, f model.SampleFamily, method string, argExprs []langmal.Expr) (interface{}, error) {
	switch method {
	case "sum", "max", "min", "avg", "latest":
		keys, err := evalStringList(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.Aggregate(f, keys, aggFuncOf(method)), nil

	case "rate", "increase", "irate":
		if s.ctx == nil || s.ctx.Counters == nil {
			return nil, fmt.Errorf("mal: %s requires a counter window in the evaluation context", method)
		}
		return family.Derive(s.ctx.Counters, rateKindOf(method), f, ""), nil

	case "histogram":
		out, _ := family.Histogram(f)
		return out, nil

	case "histogram_percentile":
		percentiles, err := evalIntList(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.HistogramPercentile(f, percentiles), nil

	case "tag":
		cl, err := evalClosure(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.Tag(f, compileLabelsClosure(cl, s)), nil

	case "filter":
		cl, err := evalClosure(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.Filter(f, compileSamplePredicate(cl, s)), nil

	case "decorate":
		cl, err := evalClosure(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.Decorate(f, compileSampleTransform(cl, s)), nil

	case "forEach":
		arrayLabel, err := evalString(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		cl, err := evalClosure(argExprs, 1, s)
		if err != nil {
			return nil, err
		}
		return family.ForEach(f, compileForEach(arrayLabel, cl, s)), nil

	case "tagEqual", "tagNotEqual":
		key, err := evalString(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		value, err := evalString(argExprs, 1, s)
		if err != nil {
			return nil, err
		}
		if method == "tagEqual" {
			return family.TagEqual(f, key, value), nil
		}
		return family.TagNotEqual(f, key, value), nil

	case "tagMatch":
		key, err := evalString(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		pattern, err := evalString(argExprs, 1, s)
		if err != nil {
			return nil, err
		}
		return family.TagMatch(f, key, pattern), nil

	case "service", "instance", "endpoint", "process":
		keys, layer, err := evalKeysAndLayer(argExprs, s)
		if err != nil {
			return nil, err
		}
		return scopeSingle(method, f, keys, layer), nil

	case "serviceRelation", "instanceRelation", "endpointRelation":
		keys, keys2, layer, err := evalRelationArgs(argExprs, s)
		if err != nil {
			return nil, err
		}
		return scopeRelation(method, f, keys, keys2, layer), nil

	case "retagByK8sMeta":
		if s.ctx == nil || s.ctx.K8sMeta == nil {
			return nil, fmt.Errorf("mal: retagByK8sMeta requires a K8s metadata registry in the evaluation context")
		}
		retagType, err := evalString(argExprs, 0, s)
		if err != nil {
			return nil, err
		}
		return family.RetagByK8sMeta(f, s.ctx.K8sMeta, retagType), nil
	}
	return nil, fmt.Errorf("mal: unsupported sample family method %q", method)
}

func aggFuncOf(method string) family.AggFunc {
	switch method {
	case "sum":
		return family.Sum
	case "max":
		return family.Max
	case "min":
		return family.Min
	case "avg":
		return family.Avg
	default:
		return family.Latest
	}
}

func rateKindOf(method string) family.RateKind {
	switch method {
	case "increase":
		return family.Increase
	case "irate":
		return family.IRate
	default:
		return family.Rate
	}
}

func scopeSingle(method string, f model.SampleFamily, keys []string, layer model.Layer) model.SampleFamily {
	switch method {
	case "service":
		return family.Service(f, keys, layer)
	case "instance":
		return family.Instance(f, keys, layer)
	case "endpoint":
		return family.Endpoint(f, keys, layer)
	default:
		return family.Process(f, keys, layer)
	}
}

func scopeRelation(method string, f model.SampleFamily, keys, keys2 []string, layer model.Layer) model.SampleFamily {
	switch method {
	case "serviceRelation":
		return family.ServiceRelation(f, keys, keys2, layer)
	case "instanceRelation":
		return family.InstanceRelation(f, keys, keys2, layer)
	default:
		return family.EndpointRelation(f, keys, keys2, layer)
	}
}

func evalStringList(argExprs []langmal.Expr, i int, s *evalState) ([]string, error) {
	if i >= len(argExprs) {
		return nil, nil
	}
	v, err := Eval(argExprs[i], s)
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]string); ok {
		return list, nil
	}
	return nil, fmt.Errorf("mal: expected a string list argument at position %d", i)
}

func evalIntList(argExprs []langmal.Expr, i int, s *evalState) ([]int, error) {
	if i >= len(argExprs) {
		return nil, fmt.Errorf("mal: missing integer list argument at position %d", i)
	}
	v, err := Eval(argExprs[i], s)
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]int); ok {
		return list, nil
	}
	return nil, fmt.Errorf("mal: expected an integer list argument at position %d", i)
}

func evalClosure(argExprs []langmal.Expr, i int, s *evalState) (langmal.Closure, error) {
	if i >= len(argExprs) {
		return langmal.Closure{}, fmt.Errorf("mal: missing closure argument at position %d", i)
	}
	cl, ok := argExprs[i].(langmal.Closure)
	if !ok {
		return langmal.Closure{}, fmt.Errorf("mal: expected a closure argument at position %d, got %T", i, argExprs[i])
	}
	return cl, nil
}

func evalKeysAndLayer(argExprs []langmal.Expr, s *evalState) ([]string, model.Layer, error) {
	keys, err := evalStringList(argExprs, 0, s)
	if err != nil {
		return nil, "", err
	}
	layer, err := evalLayer(argExprs, 1, s)
	if err != nil {
		return nil, "", err
	}
	return keys, layer, nil
}

func evalRelationArgs(argExprs []langmal.Expr, s *evalState) ([]string, []string, model.Layer, error) {
	keys, err := evalStringList(argExprs, 0, s)
	if err != nil {
		return nil, nil, "", err
	}
	keys2, err := evalStringList(argExprs, 1, s)
	if err != nil {
		return nil, nil, "", err
	}
	layer, err := evalLayer(argExprs, 2, s)
	if err != nil {
		return nil, nil, "", err
	}
	return keys, keys2, layer, nil
}

func evalLayer(argExprs []langmal.Expr, i int, s *evalState) (model.Layer, error) {
	if i >= len(argExprs) {
		return model.LayerGeneral, nil
	}
	v, err := Eval(argExprs[i], s)
	if err != nil {
		return "", err
	}
	if l, ok := v.(model.Layer); ok {
		return l, nil
	}
	return model.LayerGeneral, nil
}
