package family

import (
	"sort"
	"strconv"

	"github.com/viant/obsdsl/model"
)

const bucketLabel = "le"

// Histogram validates that f is shaped like a cumulative histogram: samples
// carrying a "le" (less-or-equal bound) label whose counts are
// non-decreasing as the bound increases, within each group of the other
// labels. A group that violates monotonicity is dropped from the result and
// reported in warnings rather than failing the whole expression.
func Histogram(f model.SampleFamily) (model.SampleFamily, []string) {
	baseKeys := otherLabelKeys(f, bucketLabel)
	order, groups := groupBy(f, baseKeys)
	var out []model.Sample
	var warnings []string
	for _, k := range order {
		samples := groups[k]
		sorted := sortByBound(samples)
		ok := true
		for i := 1; i < len(sorted); i++ {
			if sorted[i].Value < sorted[i-1].Value {
				ok = false
				break
			}
		}
		if !ok {
			warnings = append(warnings, "non-monotonic histogram buckets dropped for group "+k)
			continue
		}
		out = append(out, sorted...)
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}, warnings
}

// HistogramPercentile computes each requested percentile (0-100) from a
// cumulative histogram family via linear interpolation between the two
// bucket bounds straddling the target rank. The bucket below
// the first one ("le" = the smallest bound) is treated as starting at 0.
func HistogramPercentile(f model.SampleFamily, percentiles []int) model.SampleFamily {
	baseKeys := otherLabelKeys(f, bucketLabel)
	order, groups := groupBy(f, baseKeys)
	var out []model.Sample
	for _, k := range order {
		sorted := sortByBound(groups[k])
		if len(sorted) == 0 {
			continue
		}
		total := sorted[len(sorted)-1].Value
		labels := projectedLabelsOf(sorted, baseKeys)
		ts := latestTimestamp(sorted)
		for _, p := range percentiles {
			value := interpolate(sorted, total, float64(p)/100.0)
			outLabels := labels.Clone()
			outLabels.Set("p", strconv.Itoa(p))
			out = append(out, model.Sample{Name: f.Name, Labels: outLabels, Value: value, Timestamp: ts})
		}
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

func interpolate(sorted []model.Sample, total float64, fraction float64) float64 {
	if total <= 0 {
		return 0
	}
	target := total * fraction
	prevBound, prevCount := 0.0, 0.0
	for _, s := range sorted {
		bound := bucketBound(s.Labels)
		if s.Value >= target {
			if s.Value == prevCount {
				return bound
			}
			span := bound - prevBound
			ratio := (target - prevCount) / (s.Value - prevCount)
			return prevBound + ratio*span
		}
		prevBound, prevCount = bound, s.Value
	}
	return prevBound
}

func bucketBound(l model.Labels) float64 {
	v, _ := l.Get(bucketLabel)
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func sortByBound(samples []model.Sample) []model.Sample {
	out := make([]model.Sample, len(samples))
	copy(out, samples)
	sort.Slice(out, func(i, j int) bool { return bucketBound(out[i].Labels) < bucketBound(out[j].Labels) })
	return out
}

func otherLabelKeys(f model.SampleFamily, exclude string) []string {
	seen := map[string]bool{}
	var keys []string
	for _, s := range f.Samples {
		for _, k := range s.Labels.Keys() {
			if k == exclude || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
