package searchparam

import (
	"fmt"

	"github.com/gofhir/searchtype/expr"
)

// SelectArms narrows a multi-base expression to the part that applies to
// base. Definitions shared by several resources join one arm per resource
// with "|", as in "Patient.name | Practitioner.name". An arm is kept when
// its root segment is base or is not a resource type at all; arms rooted at
// another resource are dropped.
//
// isResource reports whether a name is a resource type.
func SelectArms(e expr.Expression, base string, isResource func(string) bool) (expr.Expression, error) {
	arms := expr.UnionArms(e)
	kept := arms[:0:0]
	for _, arm := range arms {
		root, ok := expr.RootName(arm)
		if !ok || root == base || !isResource(root) {
			kept = append(kept, arm)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w for base %s", ErrNoExpression, base)
	}
	if len(kept) == len(arms) {
		return e, nil
	}
	return expr.Union(kept...), nil
}
