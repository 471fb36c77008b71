package searchparam

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/expr"
	"github.com/gofhir/searchtype/resolver"
)

// Target is one definition to be resolved against one of its bases.
type Target struct {
	Param *SearchParameter
	Base  string
}

// String returns "Base.code".
func (t Target) String() string {
	return t.Base + "." + t.Param.Code
}

// Entry is the outcome of resolving a Target.
type Entry struct {
	Param    *SearchParameter
	Base     string
	Mappings []resolver.ResolvedMapping

	// Err is the first fault. Mappings found before it are kept.
	Err error

	Duration time.Duration
}

// Skipped reports whether the definition had nothing to resolve for the base,
// e.g. the special parameters _text and _content.
func (e Entry) Skipped() bool {
	return errors.Is(e.Err, ErrNoExpression)
}

// Faulted reports whether resolution failed.
func (e Entry) Faulted() bool {
	return e.Err != nil && !e.Skipped()
}

// Indexer resolves registered definitions to the element types they select.
// It is safe for concurrent use.
type Indexer struct {
	registry *Registry
	catalog  catalog.Catalog
	compiler *expr.Compiler
	resolver *resolver.Resolver
}

// NewIndexer creates an Indexer. StrictSyntax, ExpressionCacheSize and
// LogSink apply.
func NewIndexer(reg *Registry, cat catalog.Catalog, opts ...searchtype.Option) *Indexer {
	return &Indexer{
		registry: reg,
		catalog:  cat,
		compiler: expr.NewCompiler(opts...),
		resolver: resolver.New(cat, opts...),
	}
}

// Registry returns the registry the indexer reads from.
func (ix *Indexer) Registry() *Registry {
	return ix.registry
}

// Targets lists definition/base pairs in load order. A non-empty resource
// keeps only that base and a non-empty code keeps only definitions with that
// code. Composite components are resolved as part of their composite, not as
// targets of their own.
func (ix *Indexer) Targets(resource, code string) []Target {
	var targets []Target
	for _, sp := range ix.registry.All() {
		if code != "" && sp.Code != code {
			continue
		}
		for _, base := range sp.Base {
			if resource != "" && base != resource {
				continue
			}
			targets = append(targets, Target{Param: sp, Base: base})
		}
	}
	return targets
}

// Resolve resolves one target.
func (ix *Indexer) Resolve(t Target) Entry {
	return ix.ResolveOne(t.Param, t.Base)
}

// ResolveOne resolves sp for one of its bases.
func (ix *Indexer) ResolveOne(sp *SearchParameter, base string) Entry {
	start := time.Now()
	entry := Entry{Param: sp, Base: base}
	entry.Mappings, entry.Err = ix.resolve(sp, base)
	entry.Duration = time.Since(start)
	return entry
}

// ResolveAll resolves targets one after the other.
func (ix *Indexer) ResolveAll(targets []Target) []Entry {
	entries := make([]Entry, 0, len(targets))
	for _, t := range targets {
		entries = append(entries, ix.Resolve(t))
	}
	return entries
}

func (ix *Indexer) resolve(sp *SearchParameter, base string) ([]resolver.ResolvedMapping, error) {
	if sp.Expression == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoExpression, sp)
	}
	e, err := ix.compiler.Compile(sp.Expression)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sp, err)
	}
	e, err = SelectArms(e, base, ix.isResource)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", sp, err)
	}

	primary := resolver.Param{Kind: sp.Type, Expression: e, Definition: sp.URL}
	components, err := ix.components(sp)
	if err != nil {
		return nil, err
	}

	mappings, err := ix.resolver.Collect(base, primary, components...)
	if err != nil {
		return mappings, fmt.Errorf("%s on %s: %w", sp, base, err)
	}
	return mappings, nil
}

// components builds the component params of a composite. Each component
// takes the kind of the definition it refers to.
func (ix *Indexer) components(sp *SearchParameter) ([]resolver.Param, error) {
	if len(sp.Component) == 0 {
		return nil, nil
	}
	params := make([]resolver.Param, 0, len(sp.Component))
	for _, c := range sp.Component {
		def, ok := ix.registry.Get(c.Definition)
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", sp, ErrUnknownComponent, c.Definition)
		}
		e, err := ix.compiler.Compile(c.Expression)
		if err != nil {
			return nil, fmt.Errorf("%s: component %s: %w", sp, c.Definition, err)
		}
		params = append(params, resolver.Param{Kind: def.Type, Expression: e, Definition: def.URL})
	}
	return params, nil
}

func (ix *Indexer) isResource(name string) bool {
	h, ok := ix.catalog.TypeForName(name)
	if !ok {
		return false
	}
	m, err := ix.catalog.ClassMapping(h)
	return err == nil && m.IsResource()
}
