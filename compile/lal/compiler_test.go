package lal

import (
	"testing"

	compilemal "github.com/viant/obsdsl/compile/mal"
	"github.com/viant/obsdsl/lang/lal"
	"github.com/viant/obsdsl/runtime/family"
)

func newCtx() *compilemal.Context {
	return &compilemal.Context{Counters: family.NewCounterWindow(0)}
}

func TestCompileExtractsTagAndAborts(t *testing.T) {
	src := `
filter {
  json {}
  extractor {
    if (parsed.code < 400 && !parsed.flags) abort {}
    tag status : parsed.code
  }
}`
	file, diags := lal.Parse("rule.lal", src)
	if diags != nil {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	script := Compile(src, file, newCtx(), NewRateLimiter(), 0)

	out, err := script.Run(`{"code": 200, "flags": false}`)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if !out.Aborted {
		t.Fatalf("expected record with code < 400 and no flags to abort")
	}

	out, err = script.Run(`{"code": 500, "flags": false}`)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if out.Aborted {
		t.Fatalf("expected record with code >= 400 to not abort")
	}
	if out.Tags["status"] != "500" {
		t.Fatalf("expected tag status=500, got %+v", out.Tags)
	}
}

func TestCompileSamplerRateLimitsByKey(t *testing.T) {
	src := `
filter {
  json {}
  extractor {
    tag status : parsed.status;
  }
  sink {
    sampler {
      rateLimit("${tags.status}") {
        rpm 1
      }
    }
  }
}`
	file, diags := lal.Parse("rule.lal", src)
	if diags != nil {
		t.Fatalf("unexpected parse diagnostics: %v", diags)
	}
	script := Compile(src, file, newCtx(), NewRateLimiter(), 0)

	first, err := script.Run(`{"status": "200"}`)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if !first.Sampled {
		t.Fatalf("expected the first record for a key to be sampled")
	}
	second, err := script.Run(`{"status": "200"}`)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if second.Sampled {
		t.Fatalf("expected the second record within the same rpm window to be dropped")
	}
}
