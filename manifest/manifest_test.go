package manifest

import (
	"testing"

	compilemal "github.com/viant/obsdsl/compile/mal"
)

func sampleMetrics() []*compilemal.CompiledExpression {
	return []*compilemal.CompiledExpression{
		{MetricName: "endpoint_avg", FQN: "MalExpr_endpoint_avg", Hash: "aaa"},
		{MetricName: "endpoint_p99", FQN: "MalExpr_endpoint_p99", Hash: "bbb"},
	}
}

func TestDistinctFiltersDedupesAndSorts(t *testing.T) {
	m := Manifest{
		MALGroups: []RuleGroupResult{
			{Metrics: sampleMetrics()[:1], Filter: &compilemal.CompiledFilter{Literal: "a", FQN: "MalFilter_1"}},
			{Metrics: sampleMetrics()[1:], Filter: &compilemal.CompiledFilter{Literal: "a", FQN: "MalFilter_1"}},
			{Metrics: nil, Filter: &compilemal.CompiledFilter{Literal: "b", FQN: "MalFilter_0"}},
		},
	}
	filters := m.distinctFilters()
	if len(filters) != 2 {
		t.Fatalf("expected 2 distinct filters, got %d", len(filters))
	}
	if filters[0].FQN != "MalFilter_0" || filters[1].FQN != "MalFilter_1" {
		t.Fatalf("expected filters sorted by FQN, got %+v", filters)
	}
}

func TestAllMetricsSortedByName(t *testing.T) {
	m := Manifest{MALGroups: []RuleGroupResult{{Metrics: []*compilemal.CompiledExpression{
		{MetricName: "z_metric", FQN: "MalExpr_z_metric"},
		{MetricName: "a_metric", FQN: "MalExpr_a_metric"},
	}}}}
	metrics := m.allMetrics()
	if metrics[0].MetricName != "a_metric" || metrics[1].MetricName != "z_metric" {
		t.Fatalf("expected metrics sorted by name, got %+v", metrics)
	}
}

func TestLineListIsSortedAndNewlineTerminated(t *testing.T) {
	out := lineList([]string{"b", "a", "c"})
	want := "a\nb\nc\n"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, string(out))
	}
}

func TestKeyValueListSortsByKey(t *testing.T) {
	out := keyValueList(map[string]string{"b": "2", "a": "1"})
	want := "a=1\nb=2\n"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, string(out))
	}
}

func TestContentHashStableAcrossCalls(t *testing.T) {
	a, err := contentHash([]byte("same bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := contentHash([]byte("same bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Fatalf("expected identical content to hash identically")
	}
	c, _ := contentHash([]byte("different bytes"))
	if a == c {
		t.Fatalf("expected different content to hash differently")
	}
}
