package mal

import (
	"testing"

	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

func labelsFamily(name string, svc string, value float64) model.SampleFamily {
	return model.NewSampleFamily(name, []model.Sample{{
		Name: name, Labels: model.NewLabels([2]string{"svc", svc}), Value: value,
	}})
}

func TestCompileMetricScalarBroadcastAndScope(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "service_resp_time", Exp: "(x.sum(['svc']) * 100).service(['svc'], Layer.GENERAL)"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	compiled, diags := c.CompileMetric(rule, exp)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	env := family.Env{"x": labelsFamily("x", "a", 5)}
	result, err := compiled.Eval(env)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if len(result.Samples) != 1 || result.Samples[0].Value != 500 {
		t.Fatalf("expected broadcast result 500, got %+v", result.Samples)
	}
	if result.Scope == nil || result.Scope.Kind != model.ScopeService {
		t.Fatalf("expected service scope binding, got %+v", result.Scope)
	}
}

func TestCompileMetricRejectsMissingScopeBinding(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "bad", Exp: "x.sum(['svc'])"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	_, diags := c.CompileMetric(rule, exp)
	if diags == nil {
		t.Fatalf("expected a diagnostic for an expression with no scope binding")
	}
}

func TestCompileMetricExpPrefixComposition(t *testing.T) {
	rule := model.MetricRule{
		SourceFile: "test.mal",
		ExpPrefix:  "sum(['svc'])",
		ExpSuffix:  "service(['svc'], Layer.GENERAL)",
	}
	composed := rule.ComposedExpression("x.tagEqual('status','200')")
	want := "((x.sum(['svc'])).tagEqual('status','200')).service(['svc'], Layer.GENERAL)"
	if composed != want {
		t.Fatalf("composed expression mismatch:\n got:  %s\n want: %s", composed, want)
	}
}

func TestCompileMetricChainedCallOnAbsentSampleReturnsEmptyNotError(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "m", Exp: "x.sum(['svc']).service(['svc'], Layer.GENERAL)"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	compiled, diags := c.CompileMetric(rule, exp)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	// "x" is absent from env entirely, unlike every other test's populated env.
	result, err := compiled.Eval(family.Env{})
	if err != nil {
		t.Fatalf("expected an absent sample reference to evaluate to EMPTY, not an error: %v", err)
	}
	if !result.IsEmpty() {
		t.Fatalf("expected EMPTY, got %+v", result)
	}
}

func TestForEachSplitsArrayLabelIntoOneSamplePerElement(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "m", Exp: "x.forEach('callees', {labels -> labels.seen = 'y'}).service(['svc'], Layer.GENERAL)"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	compiled, diags := c.CompileMetric(rule, exp)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	labels := model.NewLabels([2]string{"svc", "a"}, [2]string{"callees", "b,c,d"})
	f := model.NewSampleFamily("x", []model.Sample{{Name: "x", Labels: labels, Value: 1}})
	result, err := compiled.Eval(family.Env{"x": f})
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if len(result.Samples) != 3 {
		t.Fatalf("expected one sample per callees element, got %d: %+v", len(result.Samples), result.Samples)
	}
	seen := map[string]bool{}
	for _, s := range result.Samples {
		v, ok := s.Labels.Get("callees")
		if !ok {
			t.Fatalf("expected callees label on fanned-out sample, got %+v", s.Labels)
		}
		seen[v] = true
		if tag, ok := s.Labels.Get("seen"); !ok || tag != "y" {
			t.Fatalf("expected the per-element closure to set seen=y, got %+v", s.Labels)
		}
	}
	for _, want := range []string{"b", "c", "d"} {
		if !seen[want] {
			t.Fatalf("expected a fanned-out sample for callees element %q, got %+v", want, result.Samples)
		}
	}
}

func TestForEachPassesThroughSampleMissingArrayLabel(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "m", Exp: "x.forEach('callees', {labels -> labels.seen = 'y'}).service(['svc'], Layer.GENERAL)"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	compiled, diags := c.CompileMetric(rule, exp)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	f := labelsFamily("x", "a", 1)
	result, err := compiled.Eval(family.Env{"x": f})
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if len(result.Samples) != 1 {
		t.Fatalf("expected the sample to pass through unchanged, got %d: %+v", len(result.Samples), result.Samples)
	}
	if _, ok := result.Samples[0].Labels.Get("seen"); ok {
		t.Fatalf("expected no closure side effect on a sample missing the array label, got %+v", result.Samples[0].Labels)
	}
}

func TestTagEqualClosureEquivalent(t *testing.T) {
	rule := model.MetricRule{SourceFile: "test.mal"}
	exp := model.MetricExp{Name: "m", Exp: "x.tagEqual('status', '200').service(['svc'], Layer.GENERAL)"}
	c := NewCompiler(&Context{Counters: family.NewCounterWindow(0)})
	compiled, diags := c.CompileMetric(rule, exp)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	f := model.NewSampleFamily("x", []model.Sample{
		{Name: "x", Labels: model.NewLabels([2]string{"status", "200"}), Value: 1},
		{Name: "x", Labels: model.NewLabels([2]string{"status", "500"}), Value: 1},
	})
	result, err := compiled.Eval(family.Env{"x": f})
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if len(result.Samples) != 1 {
		t.Fatalf("expected 1 matching sample, got %d", len(result.Samples))
	}
}
