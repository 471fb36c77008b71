package catalog

import (
	"context"
	"fmt"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/cache"
	"github.com/gofhir/searchtype/service"
)

// StructureCatalog builds class mappings from StructureDefinition snapshots.
// Mappings are built on first use and kept in an LRU cache; it is safe for
// concurrent use.
type StructureCatalog struct {
	profiles service.ProfileResolver
	mappings *cache.Cache[TypeHandle, *ClassMapping]
	indexes  *cache.Cache[string, *ElementIndex]
}

// NewStructureCatalog creates a catalog over profiles. Only the cache size
// option applies.
func NewStructureCatalog(profiles service.ProfileResolver, opts ...searchtype.Option) *StructureCatalog {
	o := searchtype.DefaultOptions().Apply(opts...)
	return &StructureCatalog{
		profiles: profiles,
		mappings: cache.New[TypeHandle, *ClassMapping](o.CacheSize),
		indexes:  cache.New[string, *ElementIndex](o.CacheSize),
	}
}

// TypeForName implements Catalog. Names of loaded resource, complex and
// primitive types resolve; so do the FHIR primitives when their definitions
// are not loaded.
func (c *StructureCatalog) TypeForName(name string) (TypeHandle, bool) {
	name = NormalizeSystemType(name)
	if name == "" || TypeHandle(name).IsBackbone() {
		return "", false
	}
	if _, err := c.definition(name); err == nil {
		return TypeHandle(name), true
	}
	if IsPrimitiveType(name) {
		return TypeHandle(name), true
	}
	return "", false
}

// ClassMapping implements Catalog.
func (c *StructureCatalog) ClassMapping(h TypeHandle) (*ClassMapping, error) {
	return c.mappings.GetOrLoad(h, func() (*ClassMapping, error) {
		return c.build(h)
	})
}

// Stats returns the mapping cache statistics.
func (c *StructureCatalog) Stats() cache.Stats {
	return c.mappings.Stats()
}

func (c *StructureCatalog) build(h TypeHandle) (*ClassMapping, error) {
	if h.IsBackbone() {
		return c.buildBackbone(h)
	}

	name := string(h)
	sd, err := c.definition(name)
	if err != nil {
		if IsPrimitiveType(name) {
			return NewClassMapping(name, KindPrimitiveType), nil
		}
		return nil, fmt.Errorf("%w: %s", searchtype.ErrUnknownType, name)
	}

	idx := c.index(sd)
	return NewClassMapping(name, mappingKind(sd), properties(idx, idx.RootPath())...), nil
}

func (c *StructureCatalog) buildBackbone(h TypeHandle) (*ClassMapping, error) {
	path := string(h)
	sd, err := c.definition(RootSegment(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", searchtype.ErrUnknownType, path)
	}

	idx := c.index(sd)
	if idx.Get(path) == nil {
		return nil, fmt.Errorf("%w: %s (no such element)", searchtype.ErrUnknownType, path)
	}
	return NewClassMapping(path, KindBackbone, properties(idx, path)...), nil
}

func (c *StructureCatalog) definition(name string) (*service.StructureDefinition, error) {
	return c.profiles.FetchStructureDefinitionByType(context.Background(), name)
}

func (c *StructureCatalog) index(sd *service.StructureDefinition) *ElementIndex {
	idx, _ := c.indexes.GetOrLoad(sd.URL, func() (*ElementIndex, error) {
		return BuildElementIndex(sd), nil
	})
	return idx
}

func mappingKind(sd *service.StructureDefinition) MappingKind {
	switch sd.Kind {
	case service.KindResource:
		return KindResource
	case service.KindPrimitiveType:
		return KindPrimitiveType
	default:
		return KindComplexType
	}
}

// properties returns the property mappings of the direct children of parent.
func properties(idx *ElementIndex, parent string) []*PropertyMapping {
	children := idx.Children(parent)
	props := make([]*PropertyMapping, 0, len(children))
	for _, elem := range children {
		props = append(props, propertyOf(idx, elem))
	}
	return props
}

func propertyOf(idx *ElementIndex, elem *service.ElementDefinition) *PropertyMapping {
	p := &PropertyMapping{
		Name:        PropertyName(elem.Path),
		Polymorphic: IsChoicePath(elem.Path),
	}

	if elem.ContentReference != "" {
		p.ElementTypes = []TypeHandle{TypeHandle(ContentReferenceTarget(elem.ContentReference))}
		return p
	}

	codes := elem.TypeCodes()
	if len(codes) == 1 && InlineElementTypes[codes[0]] && idx.HasChildren(elem.Path) {
		p.ElementTypes = []TypeHandle{TypeHandle(elem.Path)}
		return p
	}

	seen := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = NormalizeSystemType(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		p.ElementTypes = append(p.ElementTypes, TypeHandle(code))
	}
	return p
}

var _ Catalog = (*StructureCatalog)(nil)
