package model

import "testing"

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := CanonicalJSON(map[string]interface{}{"b": 1, "a": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := CanonicalJSON(map[string]interface{}{"a": 2, "b": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected byte-identical output, got %q vs %q", a, b)
	}
	want := "{\n  \"a\": 2,\n  \"b\": 1\n}"
	if string(a) != want {
		t.Fatalf("got %q want %q", a, want)
	}
}

func TestMetricRuleComposedExpression(t *testing.T) {
	r := MetricRule{ExpPrefix: "sum(['svc'])", ExpSuffix: "service(['svc'], Layer.GENERAL)"}
	got := r.ComposedExpression("x.tagEqual('status','200')")
	want := "((x.sum(['svc'])).tagEqual('status','200')).service(['svc'], Layer.GENERAL)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestLALRuleHashIgnoresWhitespace(t *testing.T) {
	r1 := LALRule{DSL: "filter { abort {} }"}
	r2 := LALRule{DSL: "  filter { abort {} }  \n"}
	if r1.Hash() != r2.Hash() {
		t.Fatalf("expected identical hashes, got %s vs %s", r1.Hash(), r2.Hash())
	}
}

func TestLabelsSortKeyIgnoresOrder(t *testing.T) {
	a := NewLabels([2]string{"b", "2"}, [2]string{"a", "1"})
	b := NewLabels([2]string{"a", "1"}, [2]string{"b", "2"})
	if a.SortKey() != b.SortKey() {
		t.Fatalf("expected identical sort keys, got %q vs %q", a.SortKey(), b.SortKey())
	}
	if !a.Equal(b) {
		t.Fatalf("expected labels to be equal regardless of insertion order")
	}
}
