package service

import "testing"

func TestElementDefinition_TypeCodes(t *testing.T) {
	ed := &ElementDefinition{
		Path:  "Observation.value[x]",
		Types: []TypeRef{{Code: "Quantity"}, {Code: "string"}},
	}

	got := ed.TypeCodes()
	if len(got) != 2 || got[0] != "Quantity" || got[1] != "string" {
		t.Errorf("TypeCodes() = %v", got)
	}

	var nilDef *ElementDefinition
	if nilDef.TypeCodes() != nil {
		t.Error("nil definition should have no type codes")
	}
}

func TestStructureDefinition_IsResource(t *testing.T) {
	if !(&StructureDefinition{Kind: KindResource}).IsResource() {
		t.Error("resource kind not detected")
	}
	if (&StructureDefinition{Kind: KindComplexType}).IsResource() {
		t.Error("complex type reported as resource")
	}
	var sd *StructureDefinition
	if sd.IsResource() {
		t.Error("nil reported as resource")
	}
}
