package searchtype

import "strings"

// SearchParamType is the kind of a search parameter (SearchParameter.type).
type SearchParamType string

// Search parameter kinds defined by FHIR.
const (
	SearchParamNumber    SearchParamType = "number"
	SearchParamDate      SearchParamType = "date"
	SearchParamString    SearchParamType = "string"
	SearchParamToken     SearchParamType = "token"
	SearchParamReference SearchParamType = "reference"
	SearchParamComposite SearchParamType = "composite"
	SearchParamQuantity  SearchParamType = "quantity"
	SearchParamURI       SearchParamType = "uri"
	SearchParamSpecial   SearchParamType = "special"
)

// String returns the FHIR code of the kind.
func (t SearchParamType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the FHIR defined kinds.
func (t SearchParamType) IsValid() bool {
	switch t {
	case SearchParamNumber, SearchParamDate, SearchParamString, SearchParamToken,
		SearchParamReference, SearchParamComposite, SearchParamQuantity,
		SearchParamURI, SearchParamSpecial:
		return true
	}
	return false
}

// ParseSearchParamType parses a SearchParameter.type code, ignoring case.
func ParseSearchParamType(code string) (SearchParamType, bool) {
	t := SearchParamType(strings.ToLower(strings.TrimSpace(code)))
	return t, t.IsValid()
}
