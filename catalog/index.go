package catalog

import (
	"strings"

	"github.com/gofhir/searchtype/service"
)

// ElementIndex provides O(1) lookup of snapshot elements by path and of the
// direct children of any element.
type ElementIndex struct {
	byPath   map[string]*service.ElementDefinition
	children map[string][]*service.ElementDefinition

	// rootPath is the path of the snapshot's root element. It equals the type
	// name except for constrained types (SimpleQuantity uses "Quantity").
	rootPath string
}

// BuildElementIndex creates an ElementIndex from a StructureDefinition snapshot.
// Slices are skipped: they constrain an element that is already indexed.
func BuildElementIndex(sd *service.StructureDefinition) *ElementIndex {
	index := &ElementIndex{
		byPath:   make(map[string]*service.ElementDefinition, 64),
		children: make(map[string][]*service.ElementDefinition, 16),
	}
	if sd == nil || len(sd.Snapshot) == 0 {
		return index
	}

	index.rootPath = sd.Snapshot[0].Path

	for i := range sd.Snapshot {
		elem := &sd.Snapshot[i]
		if elem.SliceName != "" || strings.Contains(elem.ID, ":") {
			continue
		}
		if _, seen := index.byPath[elem.Path]; seen {
			continue
		}
		index.byPath[elem.Path] = elem

		if parent := ParentPath(elem.Path); parent != "" {
			index.children[parent] = append(index.children[parent], elem)
		}
	}

	return index
}

// Get returns the element at path, or nil.
func (idx *ElementIndex) Get(path string) *service.ElementDefinition {
	if idx == nil {
		return nil
	}
	return idx.byPath[path]
}

// Children returns the direct children of the element at path, in snapshot order.
func (idx *ElementIndex) Children(path string) []*service.ElementDefinition {
	if idx == nil {
		return nil
	}
	return idx.children[path]
}

// HasChildren reports whether the element at path declares inline children.
func (idx *ElementIndex) HasChildren(path string) bool {
	return len(idx.Children(path)) > 0
}

// RootPath returns the path of the root element.
func (idx *ElementIndex) RootPath() string {
	if idx == nil {
		return ""
	}
	return idx.rootPath
}

// Size returns the number of indexed paths.
func (idx *ElementIndex) Size() int {
	if idx == nil {
		return 0
	}
	return len(idx.byPath)
}

// ContentReferenceTarget returns the element path a contentReference points
// at. Both "#Questionnaire.item" and the canonical form
// "http://hl7.org/fhir/StructureDefinition/Questionnaire#Questionnaire.item"
// are accepted.
func ContentReferenceTarget(ref string) string {
	if i := strings.LastIndex(ref, "#"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// PropertyName returns the property name of an element path: its last
// segment without the choice marker.
// Example: "Observation.value[x]" -> "value"
func PropertyName(path string) string {
	return strings.TrimSuffix(LastSegment(path), "[x]")
}

// IsChoicePath reports whether the element path declares a choice element.
func IsChoicePath(path string) bool {
	return strings.HasSuffix(path, "[x]")
}

// LastSegment returns the last segment of a path.
func LastSegment(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// ParentPath returns the parent path.
// Example: "Patient.name.family" -> "Patient.name"
func ParentPath(path string) string {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// RootSegment returns the first segment of a path.
// Example: "Patient.contact.name" -> "Patient"
func RootSegment(path string) string {
	if idx := strings.Index(path, "."); idx >= 0 {
		return path[:idx]
	}
	return path
}
