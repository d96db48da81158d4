package family

import "github.com/viant/obsdsl/model"

// K8sMetaRegistry resolves a label set to the Kubernetes metadata that
// should enrich it. It is injected from outside the runtime, keeping
// `retagByK8sMeta` a label-enrichment call against an external interface,
// not a Kubernetes client the compiler or runtime implements itself.
type K8sMetaRegistry interface {
	Lookup(labels model.Labels, retagType string) (extra model.Labels, ok bool)
}

// RetagByK8sMeta enriches every sample's labels with the metadata the
// registry returns for retagType (e.g. "POD", "SERVICE"), leaving samples
// with no match untouched.
func RetagByK8sMeta(f model.SampleFamily, registry K8sMetaRegistry, retagType string) model.SampleFamily {
	return Tag(f, func(l model.Labels) model.Labels {
		extra, ok := registry.Lookup(l, retagType)
		if !ok {
			return l
		}
		for _, k := range extra.Keys() {
			v, _ := extra.Get(k)
			l.Set(k, v)
		}
		return l
	})
}
