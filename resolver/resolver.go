// Package resolver statically resolves search parameter expressions to the
// element types they select.
//
// Resolution walks the expression tree without any data: navigation nodes
// push path segments, and reaching the implicit input replays the segments
// against the type catalog. Each distinct terminal type is reported once.
package resolver

import (
	"fmt"
	"iter"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/expr"
	"github.com/gofhir/searchtype/pkg/logger"
	"github.com/gofhir/searchtype/pool"
)

// Param is one search parameter expression to resolve: the primary
// expression of a definition or one composite component.
type Param struct {
	Kind       searchtype.SearchParamType
	Expression expr.Expression
	Definition string
}

// ResolvedMapping is one element type a parameter can select.
type ResolvedMapping struct {
	ElementType *catalog.ClassMapping
	Kind        searchtype.SearchParamType

	// Path is the human readable element path, e.g.
	// "Observation.value(Quantity,string,CodeableConcept)". It is empty
	// for boolean results of exists() and is().
	Path string

	Definition string
}

// Resolver resolves expressions against a catalog. It holds no per-call
// state and is safe for concurrent use when the catalog is.
type Resolver struct {
	catalog catalog.Catalog
	log     func(string)
}

// New creates a Resolver. Only the log sink option applies; by default
// resolved paths are logged at debug level.
func New(cat catalog.Catalog, opts ...searchtype.Option) *Resolver {
	o := searchtype.DefaultOptions().Apply(opts...)
	log := o.LogSink
	if log == nil {
		log = logger.DebugSink
	}
	return &Resolver{catalog: cat, log: log}
}

// Resolve returns every element type the parameter selects on resourceType.
//
// Without components the primary expression is resolved. With components,
// each component is resolved on its own, in order, with the primary
// expression as the anchor its $this refers back to; the primary expression
// itself contributes nothing else. Results are unique by element type within
// the primary set and within each component, keeping the first path found.
//
// The sequence stops at the first error, which is yielded with a zero
// ResolvedMapping.
func (r *Resolver) Resolve(resourceType string, primary Param, components ...Param) iter.Seq2[ResolvedMapping, error] {
	return func(yield func(ResolvedMapping, error) bool) {
		parent, err := r.resourceMapping(resourceType)
		if err != nil {
			yield(ResolvedMapping{}, err)
			return
		}

		if len(components) == 0 {
			ctx := newWalkContext(parent, primary.Kind, primary.Definition, nil)
			r.distinct(r.accept(primary.Expression, ctx))(yield)
			return
		}

		for _, comp := range components {
			ctx := newWalkContext(parent, comp.Kind, comp.Definition, primary.Expression)
			stopped := false
			for m, err := range r.distinct(r.accept(comp.Expression, ctx)) {
				if !yield(m, err) || err != nil {
					stopped = true
					break
				}
			}
			if stopped {
				return
			}
		}
	}
}

// Collect resolves and gathers all results. On error the results found
// before it are returned with the error.
func (r *Resolver) Collect(resourceType string, primary Param, components ...Param) ([]ResolvedMapping, error) {
	var out []ResolvedMapping
	for m, err := range r.Resolve(resourceType, primary, components...) {
		if err != nil {
			return out, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *Resolver) resourceMapping(resourceType string) (*catalog.ClassMapping, error) {
	h, ok := r.catalog.TypeForName(resourceType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", searchtype.ErrUnknownResourceType, resourceType)
	}
	m, err := r.catalog.ClassMapping(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", searchtype.ErrUnknownResourceType, resourceType, err)
	}
	return m, nil
}

// distinct drops results whose element type was already yielded.
func (r *Resolver) distinct(seq iter.Seq2[ResolvedMapping, error]) iter.Seq2[ResolvedMapping, error] {
	return func(yield func(ResolvedMapping, error) bool) {
		seen := make(map[string]bool)
		for m, err := range seq {
			if err != nil {
				yield(m, err)
				return
			}
			if seen[m.ElementType.Name] {
				continue
			}
			seen[m.ElementType.Name] = true
			if !yield(m, nil) {
				return
			}
		}
	}
}

// accept dispatches on the node kind.
func (r *Resolver) accept(e expr.Expression, ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	switch n := e.(type) {
	case *expr.ChildExpression:
		return r.visitChild(n, ctx)
	case *expr.BinaryExpression:
		return r.visitBinary(n, ctx)
	case *expr.FunctionCallExpression:
		return r.visitFunctionCall(n, ctx)
	case *expr.AxisExpression:
		return r.visitAxis(ctx)
	case *expr.ConstantExpression:
		return empty
	case *expr.VariableRefExpression:
		return r.visitVariable(n, ctx)
	case *expr.UnaryExpression:
		return fail(searchtype.Unsupported("unary", n.Op))
	case nil:
		return fail(searchtype.Unsupported("missing", ""))
	default:
		return fail(searchtype.Unsupported(fmt.Sprintf("%T", e), ""))
	}
}

func (r *Resolver) visitChild(n *expr.ChildExpression, ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	if n.FunctionName != expr.FuncChildren {
		return fail(searchtype.Unsupported("child", n.FunctionName))
	}
	if n.ChildName != "" {
		ctx = ctx.withPath(n.ChildName, nil)
	}
	return r.accept(n.Focus, ctx)
}

func (r *Resolver) visitBinary(n *expr.BinaryExpression, ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	switch n.Op {
	case "as":
		target, ok := constantString(n.Arguments)
		if !ok || len(n.Arguments) != 2 {
			return fail(searchtype.Unsupported("binary", "as"))
		}
		m, err := r.mappingForTypeName(target)
		if err != nil {
			return fail(err)
		}
		// The pending type applies to the right operand only.
		return r.accept(n.Right(), ctx.withAsType(m))

	case "|", "!=", "==", "and":
		return func(yield func(ResolvedMapping, error) bool) {
			for _, arg := range n.Arguments {
				for m, err := range r.accept(arg, ctx) {
					if !yield(m, err) || err != nil {
						return
					}
				}
			}
		}

	default:
		return fail(searchtype.Unsupported("binary", n.Op))
	}
}

func (r *Resolver) visitFunctionCall(n *expr.FunctionCallExpression, ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	if n.Focus == nil {
		return fail(searchtype.Unsupported("function", n.FunctionName))
	}

	switch n.FunctionName {
	case "type":
		return empty

	case "exists", "is":
		m, err := r.mappingForTypeName("boolean")
		if err != nil {
			return fail(err)
		}
		return single(ctx.result(m, ""))

	case "as":
		target, ok := constantString(n.Arguments)
		if !ok {
			return fail(searchtype.Unsupported("function", "as"))
		}
		m, err := r.mappingForTypeName(target)
		if err != nil {
			return fail(err)
		}
		return r.accept(n.Focus, ctx.withAsType(m))

	case "where", expr.FuncChildren, expr.FuncItem:
		return r.accept(n.Focus, ctx)

	default:
		return fail(searchtype.Unsupported("function", n.FunctionName))
	}
}

func (r *Resolver) visitVariable(n *expr.VariableRefExpression, ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	if !isResourceVariable(n.Name) {
		return fail(searchtype.Unsupported("variable", n.Name))
	}
	return r.visitAxis(ctx.withPath("Resource", ctx.parentType))
}

func (r *Resolver) visitAxis(ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	if ctx.parentExpr != nil {
		return r.accept(ctx.parentExpr, ctx.withoutParentExpression())
	}
	return r.walkPath(ctx)
}

// walkPath replays the path stack from its origin against the catalog.
func (r *Resolver) walkPath(ctx walkContext) iter.Seq2[ResolvedMapping, error] {
	return func(yield func(ResolvedMapping, error) bool) {
		pb := pool.AcquirePathBuilder()
		defer pb.Release()

		segments := ctx.path
		mapping := ctx.parentType

		if origin, ok := ctx.origin(); ok {
			start := origin.pinned
			if start == nil {
				start = r.namedTypeMapping(origin.name)
			}
			if start != nil {
				mapping = start
				segments = segments[:len(segments)-1]
				pb.WriteString(origin.name)
			} else {
				pb.WriteString(mapping.Name)
			}
		} else {
			pb.WriteString(mapping.Name)
		}

		for i := len(segments) - 1; i >= 0; i-- {
			seg := segments[i]
			pb.AppendWithDot(seg.name)

			if seg.pinned != nil {
				pb.AppendTypes(seg.pinned.Name)
				mapping = seg.pinned
				continue
			}

			prop, ok := mapping.Property(seg.name)
			if !ok || len(prop.ElementTypes) == 0 {
				// Unknown member: report the deepest type reached.
				break
			}

			if prop.Polymorphic || len(prop.ElementTypes) > 1 {
				pb.AppendTypes(prop.TypeNames()...)
				path := pb.String()
				for _, t := range prop.ElementTypes {
					m, err := r.catalog.ClassMapping(t)
					if err != nil {
						yield(ResolvedMapping{}, err)
						return
					}
					if !yield(ctx.result(m, path), nil) {
						return
					}
				}
				r.log(fmt.Sprintf("Resolved path '%s'", path))
				return
			}

			m, err := r.catalog.ClassMapping(prop.ElementTypes[0])
			if err != nil {
				yield(ResolvedMapping{}, err)
				return
			}
			mapping = m
		}

		path := pb.String()
		r.log(fmt.Sprintf("Resolved path '%s'", path))
		yield(ctx.result(mapping, path), nil)
	}
}

// namedTypeMapping returns the mapping of any type the catalog knows by
// name, or nil.
func (r *Resolver) namedTypeMapping(name string) *catalog.ClassMapping {
	h, ok := r.catalog.TypeForName(name)
	if !ok {
		return nil
	}
	m, err := r.catalog.ClassMapping(h)
	if err != nil {
		return nil
	}
	return m
}

func empty(func(ResolvedMapping, error) bool) {}

func single(m ResolvedMapping) iter.Seq2[ResolvedMapping, error] {
	return func(yield func(ResolvedMapping, error) bool) {
		yield(m, nil)
	}
}

func fail(err error) iter.Seq2[ResolvedMapping, error] {
	return func(yield func(ResolvedMapping, error) bool) {
		yield(ResolvedMapping{}, err)
	}
}
