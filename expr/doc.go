// Package expr holds the closed expression tree the resolver walks and the
// conversion from FHIRPath text to that tree.
//
// Text is parsed with the ANTLR grammar shipped by github.com/gofhir/fhirpath;
// a visitor over the parse tree produces navigation nodes in the shape of a
// compiled FHIRPath expression: member access becomes builtin.children,
// indexers become builtin.item, the type specifier of is/as becomes a string
// constant and "=" is normalised to "==".
package expr
