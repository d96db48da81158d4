package scope

import "testing"

func TestRegistryResolveFailsOnUnknownName(t *testing.T) {
	r := New()
	if err := r.Load([]Declaration{{Name: "Endpoint", SourceFields: []string{"latency"}}}); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if err := r.Resolve("Endpoint"); err != nil {
		t.Fatalf("expected Endpoint to resolve, got %v", err)
	}
	if err := r.Resolve("Unknown"); err == nil {
		t.Fatalf("expected an error resolving an undeclared scope name")
	}
}

func TestRegistryLoadRejectsDuplicateNames(t *testing.T) {
	r := New()
	err := r.Load([]Declaration{
		{Name: "Endpoint", SourceFields: []string{"latency"}},
		{Name: "Endpoint", SourceFields: []string{"status"}},
	})
	if err == nil {
		t.Fatalf("expected duplicate declaration to be rejected")
	}
}
