package mal

import "testing"

func TestParseScalarBroadcastExpression(t *testing.T) {
	expr, diags := ParseExpression("x.mal", "(x.sum(['svc']) * 100).service(['svc'], Layer.GENERAL)")
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	call, ok := expr.(Call)
	if !ok {
		t.Fatalf("expected top-level Call, got %T", expr)
	}
	if call.Method != "service" {
		t.Fatalf("expected method 'service', got %q", call.Method)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
	if _, ok := call.Args[1].(LayerLit); !ok {
		t.Fatalf("expected LayerLit second arg, got %T", call.Args[1])
	}
	paren, ok := call.Receiver.(Paren)
	if !ok {
		t.Fatalf("expected Paren receiver, got %T", call.Receiver)
	}
	bin, ok := paren.Inner.(Binary)
	if !ok || bin.Op != "*" {
		t.Fatalf("expected '*' binary inside paren, got %+v", paren.Inner)
	}
}

func TestParseClosureWithIfAndTagAssign(t *testing.T) {
	expr, diags := ParseExpression("f.mal", `{ tags -> if (tags.status == '200') { tags.ok = 'true' } else { tags.ok = 'false' } return tags }`)
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	closure, ok := expr.(Closure)
	if !ok {
		t.Fatalf("expected Closure, got %T", expr)
	}
	if len(closure.Params) != 1 || closure.Params[0] != "tags" {
		t.Fatalf("unexpected params: %v", closure.Params)
	}
	if len(closure.Body) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(closure.Body))
	}
	ifStmt, ok := closure.Body[0].(If)
	if !ok {
		t.Fatalf("expected If statement, got %T", closure.Body[0])
	}
	if len(ifStmt.Then) != 1 || len(ifStmt.Else) != 1 {
		t.Fatalf("expected one statement in each branch, got then=%d else=%d", len(ifStmt.Then), len(ifStmt.Else))
	}
	if _, ok := closure.Body[1].(Return); !ok {
		t.Fatalf("expected trailing Return, got %T", closure.Body[1])
	}
}

func TestParsePercentileList(t *testing.T) {
	expr, diags := ParseExpression("h.mal", "h.histogram().histogram_percentile([50, 75, 99])")
	if diags != nil {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	call, ok := expr.(Call)
	if !ok || call.Method != "histogram_percentile" {
		t.Fatalf("expected histogram_percentile call, got %+v", expr)
	}
	list, ok := call.Args[0].(IntListLit)
	if !ok || len(list.Values) != 3 || list.Values[1] != 75 {
		t.Fatalf("unexpected percentile list: %+v", call.Args[0])
	}
}
