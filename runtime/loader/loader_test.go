package loader

import (
	"context"
	"testing"

	"github.com/viant/afs"
	"go.uber.org/goleak"

	compilelal "github.com/viant/obsdsl/compile/lal"
	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/compile/oal"
	"github.com/viant/obsdsl/lang/lal"
	"github.com/viant/obsdsl/manifest"
	"github.com/viant/obsdsl/model"
	"github.com/viant/obsdsl/runtime/family"
	"github.com/viant/obsdsl/runtime/scope"
)

// TestMain guards against a goroutine leak across Start's five-step
// startup sequence; the loader itself never spawns one, but this is the
// process-lifetime boundary an operator process actually cares about.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// buildManifest assembles a small but complete manifest exercising one OAL
// metric, one MAL rule with a file-level filter, and one LAL rule, mirroring
// end-to-end scenarios a loader deployment actually runs.
func buildManifest(t *testing.T) manifest.Manifest {
	t.Helper()

	oalFile := &model.OALFile{
		Path: "endpoint.oal",
		Statements: []model.OALStatement{{
			MetricName: "endpoint_avg",
			Source:     "Endpoint",
			Field:      "latency",
			Function:   "longAvg",
			SourceFile: "endpoint.oal",
		}},
		Disabled: []string{"LegacySource"},
	}
	oalCompiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	oalResult, diags := oal.Emit([]*model.OALFile{oalFile}, oalCompiler)
	if diags != nil {
		t.Fatalf("unexpected OAL diagnostics: %v", diags)
	}

	malRule := model.MetricRule{
		MetricPrefix: "service_",
		SourceFile:   "service.mal",
		MetricsRules: []model.MetricExp{{Name: "service_cpm", Exp: "Service.cpm.sum(['service']).service(['service'], Layer.GENERAL)"}},
	}
	malCompiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	malCompiled, diags := malCompiler.CompileMetric(malRule, malRule.MetricsRules[0])
	if diags != nil {
		t.Fatalf("unexpected MAL diagnostics: %v", diags)
	}
	filterLiteral := `{tags -> tags.status == '200'}`
	compiledFilter, diags := malCompiler.CompileFilter(malRule.SourceFile, filterLiteral, 0)
	if diags != nil {
		t.Fatalf("unexpected filter diagnostics: %v", diags)
	}

	lalSrc := `
filter {
  json {}
  extractor {
    tag status : parsed.status;
  }
}`
	lalRule := model.LALRule{RuleName: "access-log", DSL: lalSrc, SourceFile: "access.lal"}
	lalFile, diags := lal.Parse("access.lal", lalSrc)
	if diags != nil {
		t.Fatalf("unexpected LAL diagnostics: %v", diags)
	}
	lalCompiled := compilelal.Compile(lalRule.Canonical(), lalFile, &compilemal.Context{Counters: family.NewCounterWindow(0)}, compilelal.NewRateLimiter(), 0)

	return manifest.Manifest{
		OAL: oalResult,
		MALGroups: []manifest.RuleGroupResult{{
			Metrics: []*compilemal.CompiledExpression{malCompiled},
			Filter:  compiledFilter,
		}},
		LALRules: []manifest.LALRuleResult{{RuleName: lalRule.RuleName, Script: lalCompiled}},
		ScopeDecls: []scope.Declaration{
			{Name: "Endpoint", SourceFields: []string{"endpoint"}},
			{Name: "Service", SourceFields: []string{"service"}},
		},
		ConfigData: map[string]model.ConfigDataDocument{
			"oal/endpoint": {OAL: oalFile},
			"mal/service":  {MAL: &model.MALRuleGroup{Rule: malRule}},
			"lal/access":   {LAL: &model.LALRuleFile{Rules: []model.LALRule{lalRule}}},
		},
	}
}

func TestManifestRoundTripsThroughLoader(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	dest := t.TempDir()

	m := buildManifest(t)
	writer := manifest.NewWriter(fs)
	if err := writer.Write(ctx, m, dest); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	malCompiler := compilemal.NewCompiler(&compilemal.Context{Counters: family.NewCounterWindow(0)})
	lalCtx := &compilemal.Context{Counters: family.NewCounterWindow(0)}
	ld := New(fs, dest, malCompiler, lalCtx, compilelal.NewRateLimiter())
	if err := ld.Start(ctx); err != nil {
		t.Fatalf("unexpected loader start error: %v", err)
	}

	if !ld.Disabled("LegacySource") {
		t.Fatalf("expected LegacySource to be in the disable set")
	}

	compiled, err := ld.ParseMetric("service_cpm", "")
	if err != nil {
		t.Fatalf("unexpected ParseMetric error: %v", err)
	}
	env := family.Env{"Service.cpm": model.NewSampleFamily("Service.cpm", []model.Sample{
		{Name: "Service.cpm", Labels: model.NewLabels([2]string{"service", "checkout"}), Value: 42},
	})}
	out, err := compiled.Eval(env)
	if err != nil {
		t.Fatalf("unexpected eval error: %v", err)
	}
	if out.Scope == nil || out.Scope.Kind != model.ScopeService {
		t.Fatalf("expected service scope binding, got %+v", out.Scope)
	}

	fqn, err := ld.LookupFilter(`{tags -> tags.status == '200'}`)
	if err != nil {
		t.Fatalf("unexpected LookupFilter error: %v", err)
	}
	if fqn != "MalFilter_0" {
		t.Fatalf("expected MalFilter_0, got %s", fqn)
	}
	if _, err := ld.LookupFilter("no such literal"); err == nil {
		t.Fatalf("expected an error for an unknown filter literal")
	}

	script, err := ld.LoadLogScript(lalSrcForTest)
	if err != nil {
		t.Fatalf("unexpected LoadLogScript error: %v", err)
	}
	res, err := script.Run(`{"status": "500"}`)
	if err != nil {
		t.Fatalf("unexpected script run error: %v", err)
	}
	if res.Tags["status"] != "500" {
		t.Fatalf("expected tag status=500, got %+v", res.Tags)
	}

	byName, err := ld.ScriptForRule("access-log")
	if err != nil {
		t.Fatalf("unexpected ScriptForRule error: %v", err)
	}
	if byName.FQN != script.FQN {
		t.Fatalf("expected ScriptForRule to resolve the same script, got FQN %s vs %s", byName.FQN, script.FQN)
	}
	if _, err := ld.ScriptForRule("no-such-rule"); err == nil {
		t.Fatalf("expected an error for an unknown rule name")
	}

	dispatched, err := ld.Dispatch(model.SourceRecord{
		SourceName: "Endpoint",
		Labels:     model.NewLabels([2]string{"endpoint", "/checkout"}),
		Fields:     map[string]float64{"latency": 120},
	})
	if err != nil {
		t.Fatalf("unexpected Dispatch error: %v", err)
	}
	if len(dispatched) != 1 || dispatched[0].Scope == nil || dispatched[0].Scope.Kind != model.ScopeEndpoint {
		t.Fatalf("expected dispatch to run endpoint_avg and bind an endpoint scope, got %+v", dispatched)
	}

	noMatch, err := ld.Dispatch(model.SourceRecord{SourceName: "NoSuchSource"})
	if err != nil {
		t.Fatalf("unexpected Dispatch error for an unregistered source: %v", err)
	}
	if len(noMatch) != 0 {
		t.Fatalf("expected no results for a source with no registered dispatcher, got %+v", noMatch)
	}
}

const lalSrcForTest = `
filter {
  json {}
  extractor {
    tag status : parsed.status;
  }
}`
