package oal

import (
	"testing"

	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
)

func TestEmitEndpointAvgMatchesSpecScenario(t *testing.T) {
	file := &model.OALFile{
		Path: "endpoint.oal",
		Statements: []model.OALStatement{{
			MetricName: "endpoint_avg",
			Source:     "Endpoint",
			Field:      "latency",
			Function:   "longAvg",
			SourceFile: "endpoint.oal",
		}},
	}
	compiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	result, diags := Emit([]*model.OALFile{file}, compiler)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(result.Metrics) != 1 || result.Metrics[0].MetricName != "endpoint_avg" {
		t.Fatalf("expected a single endpoint_avg metric class, got %+v", result.Metrics)
	}
	if len(result.Dispatchers) != 1 || result.Dispatchers[0].SourceName != "Endpoint" {
		t.Fatalf("expected a single Endpoint dispatcher, got %+v", result.Dispatchers)
	}

	env := family.Env{"Endpoint.latency": model.NewSampleFamily("Endpoint.latency", []model.Sample{
		{Name: "Endpoint.latency", Labels: model.NewLabels([2]string{"Endpoint", "/checkout"}), Value: 120},
	})}
	out, err := result.Metrics[0].Compiled.Eval(env)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if out.Scope == nil || out.Scope.Kind != model.ScopeEndpoint {
		t.Fatalf("expected endpoint scope binding, got %+v", out.Scope)
	}
}

func TestEmitRejectsDuplicateMetricNames(t *testing.T) {
	stmt := model.OALStatement{MetricName: "dup", Source: "Endpoint", Field: "latency", Function: "longAvg", SourceFile: "a.oal"}
	file := &model.OALFile{Statements: []model.OALStatement{stmt, stmt}}
	compiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	_, diags := Emit([]*model.OALFile{file}, compiler)
	if diags == nil {
		t.Fatalf("expected a diagnostic for a duplicate metric name")
	}
}
