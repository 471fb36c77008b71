package catalog

import (
	"fmt"

	"github.com/gofhir/searchtype"
)

// StaticCatalog is a fixed, in-memory Catalog. It is useful when the type
// model is known up front or defined by hand.
type StaticCatalog struct {
	mappings map[TypeHandle]*ClassMapping
}

// NewStaticCatalog creates a catalog holding the given mappings, keyed by their Type.
func NewStaticCatalog(mappings ...*ClassMapping) *StaticCatalog {
	c := &StaticCatalog{mappings: make(map[TypeHandle]*ClassMapping, len(mappings))}
	for _, m := range mappings {
		c.mappings[m.Type] = m
	}
	return c
}

// TypeForName implements Catalog. Backbone mappings are not type names.
func (c *StaticCatalog) TypeForName(name string) (TypeHandle, bool) {
	h := TypeHandle(NormalizeSystemType(name))
	if h.IsBackbone() {
		return "", false
	}
	if _, ok := c.mappings[h]; !ok {
		return "", false
	}
	return h, true
}

// ClassMapping implements Catalog.
func (c *StaticCatalog) ClassMapping(h TypeHandle) (*ClassMapping, error) {
	m, ok := c.mappings[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", searchtype.ErrUnknownType, h)
	}
	return m, nil
}

var _ Catalog = (*StaticCatalog)(nil)
