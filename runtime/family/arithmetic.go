package family

import "github.com/viant/obsdsl/model"

// Value is either a bare scalar or a SampleFamily; MAL arithmetic operators
// accept any combination of the two.
type Value struct {
	Scalar float64
	Family model.SampleFamily
	IsFamily bool
}

func Scalar(v float64) Value { return Value{Scalar: v} }
func FamilyValue(f model.SampleFamily) Value { return Value{Family: f, IsFamily: true} }

// BinaryOp applies op to two values, promoting per the usual numeric-tower rule:
//   - scalar ⊕ scalar -> scalar
//   - family ⊕ scalar (either order) -> family, broadcasting the scalar to
//     every sample, labels unchanged
//   - family ⊕ family -> inner join on identical label sets (SortKey
//     equality); samples with no join partner are dropped
// Division by zero yields NaN rather than panicking.
func BinaryOp(op string, a, b Value) Value {
	switch {
	case !a.IsFamily && !b.IsFamily:
		return Scalar(apply(op, a.Scalar, b.Scalar))
	case a.IsFamily && !b.IsFamily:
		return FamilyValue(broadcast(a.Family, b.Scalar, op, false))
	case !a.IsFamily && b.IsFamily:
		return FamilyValue(broadcast(b.Family, a.Scalar, op, true))
	default:
		return FamilyValue(join(a.Family, b.Family, op))
	}
}

func apply(op string, a, b float64) float64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			return nan()
		}
		return a / b
	}
	return nan()
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func broadcast(f model.SampleFamily, scalar float64, op string, scalarFirst bool) model.SampleFamily {
	out := make([]model.Sample, len(f.Samples))
	for i, s := range f.Samples {
		var v float64
		if scalarFirst {
			v = apply(op, scalar, s.Value)
		} else {
			v = apply(op, s.Value, scalar)
		}
		out[i] = model.Sample{Name: s.Name, Labels: s.Labels, Value: v, Timestamp: s.Timestamp}
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

func join(a, b model.SampleFamily, op string) model.SampleFamily {
	index := make(map[string]model.Sample, len(b.Samples))
	for _, s := range b.Samples {
		index[s.Labels.SortKey()] = s
	}
	var out []model.Sample
	for _, sa := range a.Samples {
		sb, ok := index[sa.Labels.SortKey()]
		if !ok {
			continue
		}
		out = append(out, model.Sample{
			Name:      sa.Name,
			Labels:    sa.Labels,
			Value:     apply(op, sa.Value, sb.Value),
			Timestamp: latestTimestamp([]model.Sample{sa, sb}),
		})
	}
	return model.SampleFamily{Name: a.Name, Samples: out, Scope: a.Scope}
}
