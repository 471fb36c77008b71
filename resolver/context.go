package resolver

import (
	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/expr"
)

// segment is one navigated name. pinned is set when the segment's type is
// already known, from an as-cast or for the synthetic Resource segment.
type segment struct {
	name   string
	pinned *catalog.ClassMapping
}

// walkContext is the state threaded through a resolution walk. It is passed
// by value and never mutated after construction: every with* method returns
// a derived copy, and pushes allocate a new path slice, so sibling branches
// never observe each other's segments.
type walkContext struct {
	// path holds navigated segments in push order. Handlers see the
	// outermost node first, so the last element is the origin of the path.
	path []segment

	parentType *catalog.ClassMapping

	// parentExpr is the primary expression of a composite parameter. Axis
	// nodes in a component re-enter on it once.
	parentExpr expr.Expression

	// asType is the pending cast target, consumed by the next push.
	asType *catalog.ClassMapping

	kind       searchtype.SearchParamType
	definition string
}

func newWalkContext(parent *catalog.ClassMapping, kind searchtype.SearchParamType, definition string, parentExpr expr.Expression) walkContext {
	return walkContext{
		parentType: parent,
		parentExpr: parentExpr,
		kind:       kind,
		definition: definition,
	}
}

// withPath pushes a segment. A nil pin takes the pending cast, if any.
func (c walkContext) withPath(name string, pinned *catalog.ClassMapping) walkContext {
	if pinned == nil {
		pinned = c.asType
	}
	path := make([]segment, len(c.path), len(c.path)+1)
	copy(path, c.path)
	c.path = append(path, segment{name: name, pinned: pinned})
	c.asType = nil
	return c
}

func (c walkContext) withAsType(m *catalog.ClassMapping) walkContext {
	c.asType = m
	return c
}

// withoutParentExpression clears the backtracking link. Re-entering on the
// parent expression must not re-enter again.
func (c walkContext) withoutParentExpression() walkContext {
	c.parentExpr = nil
	return c
}

// origin returns the first navigated segment.
func (c walkContext) origin() (segment, bool) {
	if len(c.path) == 0 {
		return segment{}, false
	}
	return c.path[len(c.path)-1], true
}

func (c walkContext) result(m *catalog.ClassMapping, path string) ResolvedMapping {
	return ResolvedMapping{
		ElementType: m,
		Kind:        c.kind,
		Path:        path,
		Definition:  c.definition,
	}
}
