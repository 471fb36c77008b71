// Package catalog maps FHIR type names to class mappings: the named
// properties of a type together with the element types each property may hold.
//
// The resolver only needs two questions answered, "is this a type name?" and
// "what does this type look like?", which is what Catalog exposes.
// StructureCatalog answers them from StructureDefinition snapshots.
package catalog

import "strings"

// TypeHandle identifies a catalogued type. Named types use their FHIR type
// code ("Patient", "HumanName", "string"); inline backbone elements use their
// element path ("Patient.contact").
type TypeHandle string

// String returns the handle as a string.
func (h TypeHandle) String() string { return string(h) }

// IsBackbone reports whether the handle names an inline element rather than a type.
func (h TypeHandle) IsBackbone() bool { return strings.Contains(string(h), ".") }

// Catalog resolves type names and builds class mappings.
// Implementations must be safe for concurrent use.
type Catalog interface {
	// TypeForName returns the handle registered for a data-model type name.
	TypeForName(name string) (TypeHandle, bool)

	// ClassMapping returns the mapping of a handle, building it on first use.
	ClassMapping(h TypeHandle) (*ClassMapping, error)
}

// MappingKind classifies a class mapping.
type MappingKind string

// Mapping kinds.
const (
	KindResource      MappingKind = "resource"
	KindComplexType   MappingKind = "complex-type"
	KindPrimitiveType MappingKind = "primitive-type"
	KindBackbone      MappingKind = "backbone"
)

// ClassMapping describes a type and its properties.
type ClassMapping struct {
	Name       string
	Type       TypeHandle
	Kind       MappingKind
	Properties []*PropertyMapping

	byName map[string]*PropertyMapping
}

// NewClassMapping creates a mapping and indexes its properties by name.
// Later properties with a duplicate name are ignored.
func NewClassMapping(name string, kind MappingKind, props ...*PropertyMapping) *ClassMapping {
	m := &ClassMapping{
		Name:   name,
		Type:   TypeHandle(name),
		Kind:   kind,
		byName: make(map[string]*PropertyMapping, len(props)),
	}
	for _, p := range props {
		if _, dup := m.byName[p.Name]; dup {
			continue
		}
		m.byName[p.Name] = p
		m.Properties = append(m.Properties, p)
	}
	return m
}

// Property looks up a property by name.
//
// Typed choice names resolve too: on a mapping with a polymorphic "value"
// property allowing Quantity, "valueQuantity" returns a single-typed property.
func (m *ClassMapping) Property(name string) (*PropertyMapping, bool) {
	if m == nil {
		return nil, false
	}
	if p, ok := m.byName[name]; ok {
		return p, true
	}
	for _, p := range m.Properties {
		if !p.Polymorphic || !strings.HasPrefix(name, p.Name) {
			continue
		}
		suffix := name[len(p.Name):]
		for _, t := range p.ElementTypes {
			if upperFirst(string(t)) == suffix {
				return &PropertyMapping{Name: name, ElementTypes: []TypeHandle{t}}, true
			}
		}
	}
	return nil, false
}

// IsPrimitive reports whether the mapping describes a FHIR primitive type.
func (m *ClassMapping) IsPrimitive() bool {
	return m != nil && m.Kind == KindPrimitiveType
}

// IsResource reports whether the mapping describes a resource type.
func (m *ClassMapping) IsResource() bool {
	return m != nil && m.Kind == KindResource
}

// PropertyMapping describes one property of a class mapping.
type PropertyMapping struct {
	Name         string
	ElementTypes []TypeHandle

	// Polymorphic is set for choice elements (value[x]) whose concrete
	// type is only known per instance.
	Polymorphic bool
}

// TypeNames returns the element type names in declaration order.
func (p *PropertyMapping) TypeNames() []string {
	names := make([]string, len(p.ElementTypes))
	for i, t := range p.ElementTypes {
		names[i] = string(t)
	}
	return names
}
