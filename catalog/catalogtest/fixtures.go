// Package catalogtest provides a small hand-written FHIR R4 type model for
// tests: a handful of resources, data types and primitives with the shapes
// search parameters care about (choice elements, backbones, content references).
package catalogtest

import (
	"github.com/gofhir/searchtype/loader"
	"github.com/gofhir/searchtype/service"
)

const base = "http://hl7.org/fhir/StructureDefinition/"

const systemString = "http://hl7.org/fhirpath/System.String"

// Profiles returns a profile service loaded with Structures.
func Profiles() *loader.InMemoryProfileService {
	svc := loader.NewInMemoryProfileService()
	for _, sd := range Structures() {
		if err := svc.LoadServiceStructureDefinition(sd); err != nil {
			panic(err)
		}
	}
	return svc
}

// Structures returns the fixture StructureDefinitions. The primitives uri,
// date and decimal are left out on purpose.
func Structures() []*service.StructureDefinition {
	return []*service.StructureDefinition{
		resource("Patient",
			el("id", systemString),
			el("identifier", "Identifier"),
			el("active", "boolean"),
			el("name", "HumanName"),
			el("birthDate", "date"),
			el("deceased[x]", "boolean", "dateTime"),
			el("contact", "BackboneElement"),
			el("contact.name", "HumanName"),
			el("contact.gender", "code"),
			el("generalPractitioner", "Reference"),
			el("link", "BackboneElement"),
			el("link.other", "Reference"),
		),
		resource("Practitioner",
			el("id", systemString),
			el("identifier", "Identifier"),
			el("name", "HumanName"),
		),
		resource("Observation",
			el("id", systemString),
			el("identifier", "Identifier"),
			el("status", "code"),
			el("code", "CodeableConcept"),
			el("subject", "Reference"),
			el("effective[x]", "dateTime", "Period"),
			el("value[x]", "Quantity", "string", "CodeableConcept"),
			el("component", "BackboneElement"),
			slice("component", "systolic"),
			el("component.code", "CodeableConcept"),
			el("component.value[x]", "Quantity", "string", "CodeableConcept"),
		),
		resource("Condition",
			el("id", systemString),
			el("code", "CodeableConcept"),
			el("subject", "Reference"),
			el("onset[x]", "dateTime", "Age", "Period", "Range", "string"),
			el("abatement[x]", "dateTime", "Age", "Period", "Range", "string"),
		),
		resource("Questionnaire",
			el("id", systemString),
			el("url", "uri"),
			el("item", "BackboneElement"),
			el("item.linkId", "string"),
			el("item.definition", "uri"),
			ref("item.item", "#Questionnaire.item"),
		),
		complexType("HumanName",
			el("use", "code"),
			el("text", "string"),
			el("family", "string"),
			el("given", "string"),
			el("period", "Period"),
		),
		complexType("Identifier",
			el("system", "uri"),
			el("value", "string"),
		),
		complexType("CodeableConcept",
			el("coding", "Coding"),
			el("text", "string"),
		),
		complexType("Coding",
			el("system", "uri"),
			el("code", "code"),
			el("display", "string"),
		),
		complexType("Reference",
			el("reference", "string"),
			el("identifier", "Identifier"),
			el("display", "string"),
		),
		complexType("Period",
			el("start", "dateTime"),
			el("end", "dateTime"),
		),
		complexType("Range",
			el("low", "Quantity"),
			el("high", "Quantity"),
		),
		complexType("Quantity", quantityElements()...),
		complexType("Age", quantityElements()...),
		primitive("string", "String"),
		primitive("boolean", "Boolean"),
		primitive("dateTime", "DateTime"),
		primitive("code", "String"),
	}
}

type elem struct {
	path    string
	types   []string
	slice   string
	content string
}

func el(path string, types ...string) elem { return elem{path: path, types: types} }

func slice(path, name string) elem {
	return elem{path: path, types: []string{"BackboneElement"}, slice: name}
}

func ref(path, target string) elem { return elem{path: path, content: target} }

func quantityElements() []elem {
	return []elem{
		el("value", "decimal"),
		el("unit", "string"),
		el("system", "uri"),
		el("code", "code"),
	}
}

func resource(name string, elems ...elem) *service.StructureDefinition {
	return structure(name, service.KindResource, elems)
}

func complexType(name string, elems ...elem) *service.StructureDefinition {
	return structure(name, service.KindComplexType, elems)
}

func primitive(name, system string) *service.StructureDefinition {
	return structure(name, service.KindPrimitiveType, []elem{
		el("id", systemString),
		el("value", "http://hl7.org/fhirpath/System."+system),
	})
}

func structure(name, kind string, elems []elem) *service.StructureDefinition {
	sd := &service.StructureDefinition{
		URL:         base + name,
		Name:        name,
		Type:        name,
		Kind:        kind,
		FHIRVersion: "4.0.1",
		Snapshot:    []service.ElementDefinition{{ID: name, Path: name, Max: "*"}},
	}
	for _, e := range elems {
		path := name + "." + e.path
		ed := service.ElementDefinition{ID: path, Path: path, Max: "*", ContentReference: e.content}
		if e.slice != "" {
			ed.ID = path + ":" + e.slice
			ed.SliceName = e.slice
		}
		for _, code := range e.types {
			ed.Types = append(ed.Types, service.TypeRef{Code: code})
		}
		sd.Snapshot = append(sd.Snapshot, ed)
	}
	return sd
}
