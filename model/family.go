package model

// SampleFamily is a non-empty ordered sequence of samples sharing a metric
// name, plus the ScopeBinding applied to it (if any). The sentinel Empty
// family represents "no data" and is returned by every runtime operation
// instead of an error.
type SampleFamily struct {
	Name    string
	Samples []Sample
	Scope   *ScopeBinding
}

// Empty is the distinguished sentinel family: no samples, no name.
var Empty = SampleFamily{}

// IsEmpty reports whether this is the Empty sentinel (or any family with
// zero samples — the two are treated identically by every consumer).
func (f SampleFamily) IsEmpty() bool { return len(f.Samples) == 0 }

// WithScope returns a copy of the family with its ScopeBinding set. Exactly
// one scope operation is permitted per compiled expression; this setter
// does not itself enforce that invariant.
func (f SampleFamily) WithScope(b ScopeBinding) SampleFamily {
	f.Scope = &b
	return f
}

// NewSampleFamily builds a family from the given name and samples. An empty
// slice yields the Empty sentinel.
func NewSampleFamily(name string, samples []Sample) SampleFamily {
	if len(samples) == 0 {
		return Empty
	}
	return SampleFamily{Name: name, Samples: samples}
}
