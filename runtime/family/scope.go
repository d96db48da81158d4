package family

import "github.com/viant/obsdsl/model"

// bindScope is shared by the four single-entity scope ops: it attaches a
// ScopeBinding to the family without touching the samples themselves.
func bindScope(f model.SampleFamily, kind model.ScopeKind, keys []string, layer model.Layer) model.SampleFamily {
	return f.WithScope(model.NewScope(kind, keys, layer))
}

func Service(f model.SampleFamily, keys []string, layer model.Layer) model.SampleFamily {
	return bindScope(f, model.ScopeService, keys, layer)
}

func Instance(f model.SampleFamily, keys []string, layer model.Layer) model.SampleFamily {
	return bindScope(f, model.ScopeInstance, keys, layer)
}

func Endpoint(f model.SampleFamily, keys []string, layer model.Layer) model.SampleFamily {
	return bindScope(f, model.ScopeEndpoint, keys, layer)
}

func Process(f model.SampleFamily, keys []string, layer model.Layer) model.SampleFamily {
	return bindScope(f, model.ScopeProcess, keys, layer)
}

// bindRelationScope backs the three *-relation ops, which key on a source
// entity's labels (keys) and a destination entity's labels (keys2).
func bindRelationScope(f model.SampleFamily, kind model.ScopeKind, keys, keys2 []string, layer model.Layer) model.SampleFamily {
	return f.WithScope(model.NewRelationScope(kind, keys, keys2, layer))
}

func ServiceRelation(f model.SampleFamily, keys, keys2 []string, layer model.Layer) model.SampleFamily {
	return bindRelationScope(f, model.ScopeServiceRelation, keys, keys2, layer)
}

func InstanceRelation(f model.SampleFamily, keys, keys2 []string, layer model.Layer) model.SampleFamily {
	return bindRelationScope(f, model.ScopeInstanceRelation, keys, keys2, layer)
}

func EndpointRelation(f model.SampleFamily, keys, keys2 []string, layer model.Layer) model.SampleFamily {
	return bindRelationScope(f, model.ScopeEndpointRelation, keys, keys2, layer)
}
