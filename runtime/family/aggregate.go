package family

import "github.com/viant/obsdsl/model"

// AggFunc is a group-reduction kind for the group-by aggregations exposed
// by MAL: sum/max/min/avg/latest.
type AggFunc int

const (
	Sum AggFunc = iota
	Max
	Min
	Avg
	Latest
)

// Aggregate groups f's samples by the projected label keys and reduces
// each group with fn, producing one output sample per group. Group order
// follows first-seen order in f.Samples so results are deterministic for
// deterministic input.
func Aggregate(f model.SampleFamily, keys []string, fn AggFunc) model.SampleFamily {
	order, groups := groupBy(f, keys)
	out := make([]model.Sample, 0, len(order))
	for _, k := range order {
		samples := groups[k]
		labels := projectedLabelsOf(samples, keys)
		out = append(out, model.Sample{
			Name:      f.Name,
			Labels:    labels,
			Value:     reduce(samples, fn),
			Timestamp: latestTimestamp(samples),
		})
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

func reduce(samples []model.Sample, fn AggFunc) float64 {
	switch fn {
	case Sum:
		var total float64
		for _, s := range samples {
			total += s.Value
		}
		return total
	case Max:
		max := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value > max {
				max = s.Value
			}
		}
		return max
	case Min:
		min := samples[0].Value
		for _, s := range samples[1:] {
			if s.Value < min {
				min = s.Value
			}
		}
		return min
	case Avg:
		var total float64
		for _, s := range samples {
			total += s.Value
		}
		return total / float64(len(samples))
	case Latest:
		latest := samples[0]
		for _, s := range samples[1:] {
			if s.Timestamp >= latest.Timestamp {
				latest = s
			}
		}
		return latest.Value
	}
	return 0
}
