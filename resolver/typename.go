package resolver

import (
	"fmt"
	"strings"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/expr"
)

// wellKnownTypes maps lower-cased cast tokens to catalog type names.
// Both date and dateTime resolve to dateTime.
var wellKnownTypes = map[string]string{
	"age":      "Age",
	"datetime": "dateTime",
	"date":     "dateTime",
	"uri":      "uri",
	"boolean":  "boolean",
	"string":   "string",
	"period":   "Period",
	"range":    "Range",
}

// mappingForTypeName resolves a cast target or type token.
func (r *Resolver) mappingForTypeName(name string) (*catalog.ClassMapping, error) {
	if known, ok := wellKnownTypes[strings.ToLower(name)]; ok {
		name = known
	}
	h, ok := r.catalog.TypeForName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", searchtype.ErrUnknownType, name)
	}
	return r.catalog.ClassMapping(h)
}

// constantString returns the single string constant among args.
func constantString(args []expr.Expression) (string, bool) {
	var (
		value string
		found bool
	)
	for _, a := range args {
		c, isConst := a.(*expr.ConstantExpression)
		if !isConst {
			continue
		}
		s, isString := c.Value.(string)
		if !isString || found {
			return "", false
		}
		value, found = s, true
	}
	return value, found
}

func isResourceVariable(name string) bool {
	return strings.EqualFold(strings.TrimPrefix(name, "%"), "resource")
}
