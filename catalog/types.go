package catalog

import "strings"

// SystemTypeMapping maps FHIRPath system types to FHIR primitive types.
// Snapshots declare these on the value element of primitives and on
// id/extension url elements.
var SystemTypeMapping = map[string]string{
	"http://hl7.org/fhirpath/System.String":   "string",
	"http://hl7.org/fhirpath/System.Boolean":  "boolean",
	"http://hl7.org/fhirpath/System.Integer":  "integer",
	"http://hl7.org/fhirpath/System.Decimal":  "decimal",
	"http://hl7.org/fhirpath/System.DateTime": "dateTime",
	"http://hl7.org/fhirpath/System.Time":     "time",
	"http://hl7.org/fhirpath/System.Date":     "date",
}

// FHIRPrimitiveTypes contains all FHIR primitive type codes.
var FHIRPrimitiveTypes = map[string]bool{
	"boolean":      true,
	"integer":      true,
	"integer64":    true,
	"string":       true,
	"decimal":      true,
	"uri":          true,
	"url":          true,
	"canonical":    true,
	"base64Binary": true,
	"instant":      true,
	"date":         true,
	"dateTime":     true,
	"time":         true,
	"code":         true,
	"oid":          true,
	"id":           true,
	"markdown":     true,
	"unsignedInt":  true,
	"positiveInt":  true,
	"uuid":         true,
	"xhtml":        true,
}

// InlineElementTypes contains types whose children are defined inline in the
// parent's StructureDefinition.
var InlineElementTypes = map[string]bool{
	"BackboneElement": true,
	"Element":         true,
}

// IsPrimitiveType returns true if the type code is a FHIR primitive type.
func IsPrimitiveType(typeCode string) bool {
	return FHIRPrimitiveTypes[typeCode]
}

// NormalizeSystemType converts a FHIRPath system type URL to a FHIR primitive type.
// Bare "System.X" codes are accepted as well. Other codes are returned unchanged.
func NormalizeSystemType(typeCode string) string {
	if normalized, ok := SystemTypeMapping[typeCode]; ok {
		return normalized
	}
	if strings.HasPrefix(typeCode, "System.") {
		if normalized, ok := SystemTypeMapping["http://hl7.org/fhirpath/"+typeCode]; ok {
			return normalized
		}
	}
	return typeCode
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
