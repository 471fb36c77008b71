// Package service defines the small interfaces and models shared between
// StructureDefinition loading and the type catalog.
package service

import (
	"context"
)

// StructureDefinition kinds.
const (
	KindPrimitiveType = "primitive-type"
	KindComplexType   = "complex-type"
	KindResource      = "resource"
	KindLogical       = "logical"
)

// StructureDefinition represents a FHIR StructureDefinition.
// This is a simplified internal representation holding only what type
// resolution needs.
type StructureDefinition struct {
	URL            string
	Name           string
	Type           string
	Kind           string
	Abstract       bool
	BaseDefinition string
	FHIRVersion    string
	Snapshot       []ElementDefinition
	Differential   []ElementDefinition
}

// IsResource reports whether the definition describes a resource type.
func (sd *StructureDefinition) IsResource() bool {
	return sd != nil && sd.Kind == KindResource
}

// ElementDefinition represents a FHIR ElementDefinition.
type ElementDefinition struct {
	ID               string
	Path             string
	SliceName        string
	Min              int
	Max              string
	Types            []TypeRef
	ContentReference string // e.g. "#Questionnaire.item"
}

// TypeCodes returns the declared type codes in declaration order.
func (ed *ElementDefinition) TypeCodes() []string {
	if ed == nil || len(ed.Types) == 0 {
		return nil
	}
	codes := make([]string, len(ed.Types))
	for i := range ed.Types {
		codes[i] = ed.Types[i].Code
	}
	return codes
}

// TypeRef represents a type reference in an ElementDefinition.
type TypeRef struct {
	Code          string
	Profile       []string
	TargetProfile []string
}

// --- Small Interfaces (Go idiom: 1-2 methods per interface) ---

// StructureDefinitionFetcher fetches StructureDefinitions by URL.
type StructureDefinitionFetcher interface {
	FetchStructureDefinition(ctx context.Context, url string) (*StructureDefinition, error)
}

// StructureDefinitionByTypeFetcher fetches the base StructureDefinition of a type.
type StructureDefinitionByTypeFetcher interface {
	FetchStructureDefinitionByType(ctx context.Context, typeName string) (*StructureDefinition, error)
}

// ProfileResolver resolves URLs and type names to StructureDefinitions.
type ProfileResolver interface {
	StructureDefinitionFetcher
	StructureDefinitionByTypeFetcher
}
