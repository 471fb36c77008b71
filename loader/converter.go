package loader

import (
	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/searchtype/service"
)

// R4Converter converts R4 FHIR models to internal service models.
type R4Converter struct{}

// NewR4Converter creates a new R4 converter.
func NewR4Converter() *R4Converter {
	return &R4Converter{}
}

// ConvertStructureDefinition converts an r4.StructureDefinition to service.StructureDefinition.
func (c *R4Converter) ConvertStructureDefinition(sd *r4.StructureDefinition) *service.StructureDefinition {
	if sd == nil {
		return nil
	}

	result := &service.StructureDefinition{
		URL:            derefString(sd.Url),
		Name:           derefString(sd.Name),
		Type:           derefString(sd.Type),
		Kind:           c.convertKind(sd.Kind),
		Abstract:       derefBool(sd.Abstract),
		BaseDefinition: derefString(sd.BaseDefinition),
		FHIRVersion:    c.convertFHIRVersion(sd.FhirVersion),
	}

	if sd.Snapshot != nil {
		result.Snapshot = c.convertElementDefinitions(sd.Snapshot.Element)
	}
	if sd.Differential != nil {
		result.Differential = c.convertElementDefinitions(sd.Differential.Element)
	}

	return result
}

func (c *R4Converter) convertElementDefinitions(elements []r4.ElementDefinition) []service.ElementDefinition {
	if len(elements) == 0 {
		return nil
	}

	result := make([]service.ElementDefinition, 0, len(elements))
	for i := range elements {
		result = append(result, c.convertElementDefinition(&elements[i]))
	}
	return result
}

func (c *R4Converter) convertElementDefinition(ed *r4.ElementDefinition) service.ElementDefinition {
	return service.ElementDefinition{
		ID:               derefString(ed.Id),
		Path:             derefString(ed.Path),
		SliceName:        derefString(ed.SliceName),
		Min:              c.convertMin(ed.Min),
		Max:              derefString(ed.Max),
		Types:            c.convertTypes(ed.Type),
		ContentReference: derefString(ed.ContentReference),
	}
}

func (c *R4Converter) convertTypes(types []r4.ElementDefinitionType) []service.TypeRef {
	if len(types) == 0 {
		return nil
	}

	result := make([]service.TypeRef, 0, len(types))
	for i := range types {
		t := &types[i]
		result = append(result, service.TypeRef{
			Code:          derefString(t.Code),
			Profile:       t.Profile,
			TargetProfile: t.TargetProfile,
		})
	}
	return result
}

func (c *R4Converter) convertKind(kind *r4.StructureDefinitionKind) string {
	if kind == nil {
		return ""
	}
	return string(*kind)
}

func (c *R4Converter) convertFHIRVersion(version *r4.FHIRVersion) string {
	if version == nil {
		return ""
	}
	return string(*version)
}

func (c *R4Converter) convertMin(minVal *uint32) int {
	if minVal == nil {
		return 0
	}
	return int(*minVal)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
