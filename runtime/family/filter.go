package family

import (
	"regexp"

	"github.com/viant/obsdsl/model"
)

// Tag rewrites every sample's labels through fn, e.g. compiled from a MAL
// closure `{labels -> ...}`, known as `tag(closure)`.
func Tag(f model.SampleFamily, fn func(model.Labels) model.Labels) model.SampleFamily {
	out := make([]model.Sample, len(f.Samples))
	for i, s := range f.Samples {
		out[i] = model.Sample{Name: s.Name, Labels: fn(s.Labels.Clone()), Value: s.Value, Timestamp: s.Timestamp}
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

// Filter keeps only samples for which pred returns true.
func Filter(f model.SampleFamily, pred func(model.Sample) bool) model.SampleFamily {
	var out []model.Sample
	for _, s := range f.Samples {
		if pred(s) {
			out = append(out, s)
		}
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

// TagEqual / TagNotEqual / TagMatch are the literal-predicate shorthands
// MAL compiles `.tagEqual(...)`/`.tagNotEqual(...)`/`.tagMatch(...)` into,
// rather than building a closure for a single comparison.
func TagEqual(f model.SampleFamily, key, value string) model.SampleFamily {
	return Filter(f, func(s model.Sample) bool { v, ok := s.Labels.Get(key); return ok && v == value })
}

func TagNotEqual(f model.SampleFamily, key, value string) model.SampleFamily {
	return Filter(f, func(s model.Sample) bool { v, ok := s.Labels.Get(key); return !ok || v != value })
}

func TagMatch(f model.SampleFamily, key, pattern string) model.SampleFamily {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return model.SampleFamily{Name: f.Name, Scope: f.Scope}
	}
	return Filter(f, func(s model.Sample) bool { v, ok := s.Labels.Get(key); return ok && re.MatchString(v) })
}

// ForEach replaces each sample with the zero or more samples fn returns for
// it, concatenated in input order. compile/mal's forEach supplies an fn that
// splits a comma-separated label value into one sample per element.
func ForEach(f model.SampleFamily, fn func(model.Sample) []model.Sample) model.SampleFamily {
	var out []model.Sample
	for _, s := range f.Samples {
		out = append(out, fn(s)...)
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}

// Decorate lets a closure observe and optionally replace every sample,
// e.g. to attach derived labels that depend on the full sample, compiled
// from a MAL `decorate(closure)` call.
func Decorate(f model.SampleFamily, fn func(model.Sample) model.Sample) model.SampleFamily {
	out := make([]model.Sample, len(f.Samples))
	for i, s := range f.Samples {
		out[i] = fn(s)
	}
	return model.SampleFamily{Name: f.Name, Samples: out, Scope: f.Scope}
}
