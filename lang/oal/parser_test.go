package oal

import "testing"

func TestParseSimpleStatement(t *testing.T) {
	src := `endpoint_avg = from(Endpoint.latency).longAvg()`
	file, diags := Parse("endpoint.oal", src)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(file.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(file.Statements))
	}
	s := file.Statements[0]
	if s.MetricName != "endpoint_avg" || s.Source != "Endpoint" || s.Field != "latency" || s.Function != "longAvg" {
		t.Fatalf("unexpected statement: %+v", s)
	}
}

func TestParseFilterAndDisable(t *testing.T) {
	src := `
# comment line
metric_a = from(Service.cpm).sum(1) filter status == 200
disable Zipkin
`
	file, diags := Parse("x.oal", src)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(file.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(file.Statements))
	}
	if len(file.Statements[0].Filters) != 1 {
		t.Fatalf("expected 1 filter, got %d", len(file.Statements[0].Filters))
	}
	f := file.Statements[0].Filters[0]
	if f.Field != "status" || f.Op != "==" || f.Value != "200" {
		t.Fatalf("unexpected filter: %+v", f)
	}
	if len(file.Disabled) != 1 || file.Disabled[0] != "Zipkin" {
		t.Fatalf("unexpected disabled set: %v", file.Disabled)
	}
}

func TestParseErrorReportsLocation(t *testing.T) {
	src := `bad_statement = `
	_, diags := Parse("bad.oal", src)
	if diags == nil {
		t.Fatalf("expected diagnostics")
	}
	if diags[0].File != "bad.oal" {
		t.Fatalf("unexpected file in diagnostic: %+v", diags[0])
	}
}
