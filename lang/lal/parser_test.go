package lal

import "testing"

func TestParseAbortBranch(t *testing.T) {
	src := `
filter {
  json {}
  extractor {
    if (parsed.code < 400 && !parsed.flags) abort {}
    tag status : parsed.code
  }
}`
	file, diags := Parse("rule.lal", src)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if file.Filter.Parse == nil || file.Filter.Parse.Kind != "json" {
		t.Fatalf("expected json parse spec, got %+v", file.Filter.Parse)
	}
	if file.Filter.Extractor == nil || len(file.Filter.Extractor.Stmts) != 2 {
		t.Fatalf("expected 2 extractor statements, got %+v", file.Filter.Extractor)
	}
	ifStmt, ok := file.Filter.Extractor.Stmts[0].(IfStmt)
	if !ok {
		t.Fatalf("expected IfStmt, got %T", file.Filter.Extractor.Stmts[0])
	}
	if len(ifStmt.Then) != 1 {
		t.Fatalf("expected single-statement then branch, got %d", len(ifStmt.Then))
	}
	if _, ok := ifStmt.Then[0].(AbortStmt); !ok {
		t.Fatalf("expected AbortStmt in then branch, got %T", ifStmt.Then[0])
	}
	if _, ok := file.Filter.Extractor.Stmts[1].(TagStmt); !ok {
		t.Fatalf("expected TagStmt, got %T", file.Filter.Extractor.Stmts[1])
	}
}

func TestParseTextRegexAndSink(t *testing.T) {
	src := `
filter {
  text {
    regexp "(?P<status>\\d{3})"
  }
  extractor {
    tag status : parsed.status;
  }
  sink {
    sampler {
      rateLimit("${tags.status}") {
        rpm 600
      }
    }
  }
}`
	file, diags := Parse("access.lal", src)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if file.Filter.Parse == nil || file.Filter.Parse.Kind != "text" {
		t.Fatalf("expected text parse spec, got %+v", file.Filter.Parse)
	}
	if file.Filter.Sink == nil || file.Filter.Sink.Sampler == nil {
		t.Fatalf("expected sink.sampler, got %+v", file.Filter.Sink)
	}
	if file.Filter.Sink.Sampler.RPM != 600 {
		t.Fatalf("expected rpm 600, got %d", file.Filter.Sink.Sampler.RPM)
	}
	if len(file.Filter.Sink.Sampler.KeyExprs) != 1 {
		t.Fatalf("expected one embedded expr in rate-limit key, got %d", len(file.Filter.Sink.Sampler.KeyExprs))
	}
}
