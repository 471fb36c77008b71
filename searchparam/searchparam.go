// Package searchparam loads FHIR SearchParameter definitions and resolves
// each definition, per base resource type, to the element types it indexes.
package searchparam

import (
	"errors"
	"fmt"

	"github.com/gofhir/searchtype"
)

var (
	// ErrInvalidDefinition is returned for SearchParameters missing required fields.
	ErrInvalidDefinition = errors.New("invalid search parameter")

	// ErrNoExpression is returned for definitions without an expression
	// applicable to the base being indexed.
	ErrNoExpression = errors.New("no expression")

	// ErrUnknownComponent is returned when a composite component refers to a
	// definition that is not loaded.
	ErrUnknownComponent = errors.New("unknown component definition")
)

// SearchParameter is the part of a FHIR SearchParameter resource needed for
// type resolution.
type SearchParameter struct {
	ResourceType string                     `json:"resourceType"`
	ID           string                     `json:"id,omitempty"`
	URL          string                     `json:"url"`
	Name         string                     `json:"name,omitempty"`
	Status       string                     `json:"status,omitempty"`
	Code         string                     `json:"code"`
	Base         []string                   `json:"base"`
	Type         searchtype.SearchParamType `json:"type"`
	Expression   string                     `json:"expression,omitempty"`
	Target       []string                   `json:"target,omitempty"`
	Component    []Component                `json:"component,omitempty"`
}

// Component is one part of a composite search parameter.
type Component struct {
	Definition string `json:"definition"`
	Expression string `json:"expression"`
}

// IsComposite reports whether the parameter combines component parameters.
func (sp *SearchParameter) IsComposite() bool {
	return sp.Type == searchtype.SearchParamComposite
}

// Validate checks the fields the indexer relies on.
func (sp *SearchParameter) Validate() error {
	switch {
	case sp.URL == "":
		return fmt.Errorf("%w: url is required", ErrInvalidDefinition)
	case sp.Code == "":
		return fmt.Errorf("%w: %s: code is required", ErrInvalidDefinition, sp.URL)
	case len(sp.Base) == 0:
		return fmt.Errorf("%w: %s: base is required", ErrInvalidDefinition, sp.URL)
	case !sp.Type.IsValid():
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidDefinition, sp.URL, sp.Type)
	}
	for i, c := range sp.Component {
		if c.Definition == "" || c.Expression == "" {
			return fmt.Errorf("%w: %s: component %d needs definition and expression", ErrInvalidDefinition, sp.URL, i)
		}
	}
	return nil
}

// String returns "code (url)".
func (sp *SearchParameter) String() string {
	return fmt.Sprintf("%s (%s)", sp.Code, sp.URL)
}
