package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/searchtype/service"
)

func r4SD(url, typeName string, kind r4.StructureDefinitionKind) *r4.StructureDefinition {
	name := typeName
	return &r4.StructureDefinition{
		Url:  &url,
		Name: &name,
		Type: &typeName,
		Kind: &kind,
	}
}

func TestInMemoryProfileService(t *testing.T) {
	t.Run("new service", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if svc.Count() != 0 {
			t.Errorf("Count() = %d; want 0", svc.Count())
		}
	})

	t.Run("load R4 StructureDefinition", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		sd := r4SD("http://hl7.org/fhir/StructureDefinition/Patient", "Patient", r4.StructureDefinitionKindResource)

		if err := svc.LoadR4StructureDefinition(sd); err != nil {
			t.Fatalf("LoadR4StructureDefinition() error = %v", err)
		}
		if svc.Count() != 1 {
			t.Errorf("Count() = %d; want 1", svc.Count())
		}
	})

	t.Run("load nil StructureDefinition", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if err := svc.LoadR4StructureDefinition(nil); err == nil {
			t.Error("expected error for nil input")
		}
		if err := svc.LoadServiceStructureDefinition(nil); err == nil {
			t.Error("expected error for nil input")
		}
	})

	t.Run("fetch by URL", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		url := "http://example.org/StructureDefinition/TestPatient"
		_ = svc.LoadR4StructureDefinition(r4SD(url, "Patient", r4.StructureDefinitionKindResource))

		result, err := svc.FetchStructureDefinition(context.Background(), url)
		if err != nil {
			t.Fatalf("FetchStructureDefinition() error = %v", err)
		}
		if result.URL != url {
			t.Errorf("URL = %q; want %q", result.URL, url)
		}
	})

	t.Run("fetch non-existent URL", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if _, err := svc.FetchStructureDefinition(context.Background(), "http://example.org/nonexistent"); err == nil {
			t.Error("expected error for non-existent URL")
		}
	})

	t.Run("fetch by type", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		_ = svc.LoadR4StructureDefinition(r4SD("http://hl7.org/fhir/StructureDefinition/Patient", "Patient", r4.StructureDefinitionKindResource))

		result, err := svc.FetchStructureDefinitionByType(context.Background(), "Patient")
		if err != nil {
			t.Fatalf("FetchStructureDefinitionByType() error = %v", err)
		}
		if result.Type != "Patient" {
			t.Errorf("Type = %q; want Patient", result.Type)
		}
	})

	t.Run("profiles do not shadow the base type", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		_ = svc.LoadR4StructureDefinition(r4SD("http://hl7.org/fhir/StructureDefinition/Patient", "Patient", r4.StructureDefinitionKindResource))
		_ = svc.LoadR4StructureDefinition(r4SD("http://example.org/StructureDefinition/us-core-patient", "Patient", r4.StructureDefinitionKindResource))

		result, err := svc.FetchStructureDefinitionByType(context.Background(), "Patient")
		if err != nil {
			t.Fatalf("FetchStructureDefinitionByType() error = %v", err)
		}
		if result.URL != "http://hl7.org/fhir/StructureDefinition/Patient" {
			t.Errorf("URL = %q; want base definition", result.URL)
		}
	})

	t.Run("fetch by type falls back to canonical URL", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		// SimpleQuantity constrains Quantity, so its type is Quantity.
		_ = svc.LoadR4StructureDefinition(r4SD("http://hl7.org/fhir/StructureDefinition/SimpleQuantity", "Quantity", r4.StructureDefinitionKindComplexType))

		result, err := svc.FetchStructureDefinitionByType(context.Background(), "SimpleQuantity")
		if err != nil {
			t.Fatalf("FetchStructureDefinitionByType() error = %v", err)
		}
		if result.Type != "Quantity" {
			t.Errorf("Type = %q; want Quantity", result.Type)
		}
	})

	t.Run("fetch non-existent type", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if _, err := svc.FetchStructureDefinitionByType(context.Background(), "NonExistent"); err == nil {
			t.Error("expected error for non-existent type")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := svc.FetchStructureDefinition(ctx, "http://example.org/any"); err == nil {
			t.Error("expected error for cancelled context")
		}
		if _, err := svc.FetchStructureDefinitionByType(ctx, "Patient"); err == nil {
			t.Error("expected error for cancelled context")
		}
	})

	t.Run("Types and ResourceTypes", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		for _, sd := range []*service.StructureDefinition{
			{URL: canonicalBase + "Patient", Type: "Patient", Kind: service.KindResource},
			{URL: canonicalBase + "DomainResource", Type: "DomainResource", Kind: service.KindResource, Abstract: true},
			{URL: canonicalBase + "HumanName", Type: "HumanName", Kind: service.KindComplexType},
			{URL: canonicalBase + "string", Type: "string", Kind: service.KindPrimitiveType},
			{URL: canonicalBase + "Extension", Type: "Extension", Kind: "logical"},
		} {
			if err := svc.LoadServiceStructureDefinition(sd); err != nil {
				t.Fatalf("LoadServiceStructureDefinition() error = %v", err)
			}
		}

		types := svc.Types()
		want := []string{"DomainResource", "HumanName", "Patient", "string"}
		if len(types) != len(want) {
			t.Fatalf("Types() = %v; want %v", types, want)
		}
		for i := range want {
			if types[i] != want[i] {
				t.Errorf("Types()[%d] = %q; want %q", i, types[i], want[i])
			}
		}

		resources := svc.ResourceTypes()
		if len(resources) != 1 || resources[0] != "Patient" {
			t.Errorf("ResourceTypes() = %v; want [Patient]", resources)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		_ = svc.LoadR4StructureDefinition(r4SD("http://hl7.org/fhir/StructureDefinition/Patient", "Patient", r4.StructureDefinitionKindResource))
		svc.Clear()
		if svc.Count() != 0 {
			t.Errorf("Count() after Clear() = %d; want 0", svc.Count())
		}
	})
}

const testBundle = `{
  "resourceType": "Bundle",
  "type": "collection",
  "entry": [
    {"resource": {"resourceType": "StructureDefinition", "url": "http://hl7.org/fhir/StructureDefinition/Patient", "name": "Patient", "type": "Patient", "kind": "resource", "abstract": false}},
    {"resource": {"resourceType": "SearchParameter", "url": "http://hl7.org/fhir/SearchParameter/Patient-name", "code": "name"}},
    {"resource": {"resourceType": "StructureDefinition", "url": "http://hl7.org/fhir/StructureDefinition/HumanName", "name": "HumanName", "type": "HumanName", "kind": "complex-type", "abstract": false}}
  ]
}`

func TestLoadFromJSON(t *testing.T) {
	t.Run("bundle", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		n, err := svc.LoadFromJSON([]byte(testBundle))
		if err != nil {
			t.Fatalf("LoadFromJSON() error = %v", err)
		}
		if n != 2 {
			t.Errorf("loaded = %d; want 2", n)
		}
	})

	t.Run("single definition", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		n, err := svc.LoadFromJSON([]byte(`{"resourceType":"StructureDefinition","url":"http://hl7.org/fhir/StructureDefinition/Patient","type":"Patient","kind":"resource"}`))
		if err != nil {
			t.Fatalf("LoadFromJSON() error = %v", err)
		}
		if n != 1 {
			t.Errorf("loaded = %d; want 1", n)
		}
	})

	t.Run("unsupported resource type", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if _, err := svc.LoadFromJSON([]byte(`{"resourceType":"Patient"}`)); err == nil {
			t.Error("expected error for unsupported resourceType")
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := NewInMemoryProfileService()
		if _, err := svc.LoadFromJSON([]byte(`{`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "profiles.json"), []byte(testBundle), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	svc := NewInMemoryProfileService()
	n, err := svc.LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("LoadFromDirectory() error = %v", err)
	}
	if n != 2 {
		t.Errorf("loaded = %d; want 2", n)
	}
}

func TestBundleResources(t *testing.T) {
	resources, err := BundleResources([]byte(testBundle))
	if err != nil {
		t.Fatalf("BundleResources() error = %v", err)
	}
	if len(resources) != 3 {
		t.Errorf("len = %d; want 3", len(resources))
	}

	if _, err := BundleResources([]byte(`{"resourceType":"Patient"}`)); err == nil {
		t.Error("expected error for non-Bundle input")
	}
}
