// Package family is the Sample Family Runtime: the
// arithmetic/aggregation library that every compiled MAL expression calls
// into. Every operation returns a new SampleFamily and never mutates its
// input.
package family

import (
	"sort"

	"github.com/viant/obsdsl/model"
)

// Env is the sample-family map a compiled MAL expression is evaluated
// against: one entry per sample name referenced by the rule file.
type Env map[string]model.SampleFamily

// Lookup resolves a sample reference; a missing name yields the Empty
// sentinel rather than an error.
func (e Env) Lookup(name string) model.SampleFamily {
	if f, ok := e[name]; ok {
		return f
	}
	return model.Empty
}

// groupBy buckets samples by the SortKey of their projected labels, in
// first-seen group order (so output ordering is deterministic given
// deterministic input ordering).
func groupBy(f model.SampleFamily, keys []string) (order []string, groups map[string][]model.Sample) {
	groups = make(map[string][]model.Sample)
	for _, s := range f.Samples {
		proj := s.Labels.Project(keys)
		k := proj.SortKey()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], s)
	}
	return order, groups
}

// projectedLabelsOf returns the projected Labels value for the first
// sample in a group, used to build the output sample's label set.
func projectedLabelsOf(samples []model.Sample, keys []string) model.Labels {
	if len(samples) == 0 {
		return model.Labels{}
	}
	return samples[0].Labels.Project(keys)
}

func latestTimestamp(samples []model.Sample) int64 {
	var max int64
	for _, s := range samples {
		if s.Timestamp > max {
			max = s.Timestamp
		}
	}
	return max
}

// sortedKeys is a small helper used wherever deterministic iteration over
// a map is required outside the hot aggregation path (e.g. histogram bucket
// ordering diagnostics).
func sortedKeys(m map[string][]model.Sample) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
