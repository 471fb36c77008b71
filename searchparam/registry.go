package searchparam

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gofhir/searchtype/loader"
	"github.com/gofhir/searchtype/pkg/logger"
)

// Registry holds SearchParameters indexed by URL and by base resource type.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byURL  map[string]*SearchParameter
	byBase map[string][]*SearchParameter
	order  []*SearchParameter
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byURL:  make(map[string]*SearchParameter),
		byBase: make(map[string][]*SearchParameter),
	}
}

// Add validates and registers a definition. A definition with an already
// registered URL replaces the earlier one.
func (r *Registry) Add(sp *SearchParameter) error {
	if sp == nil {
		return fmt.Errorf("%w: nil definition", ErrInvalidDefinition)
	}
	if err := sp.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byURL[sp.URL]; ok {
		r.removeLocked(old)
	}
	r.byURL[sp.URL] = sp
	r.order = append(r.order, sp)
	for _, base := range sp.Base {
		r.byBase[base] = append(r.byBase[base], sp)
	}
	return nil
}

func (r *Registry) removeLocked(sp *SearchParameter) {
	r.order = without(r.order, sp)
	for _, base := range sp.Base {
		r.byBase[base] = without(r.byBase[base], sp)
	}
}

func without(list []*SearchParameter, sp *SearchParameter) []*SearchParameter {
	out := list[:0:0]
	for _, p := range list {
		if p != sp {
			out = append(out, p)
		}
	}
	return out
}

// Get returns the definition with the given canonical URL.
func (r *Registry) Get(url string) (*SearchParameter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sp, ok := r.byURL[url]
	return sp, ok
}

// ForBase returns the definitions declaring base, in load order.
func (r *Registry) ForBase(base string) []*SearchParameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*SearchParameter(nil), r.byBase[base]...)
}

// All returns every definition in load order.
func (r *Registry) All() []*SearchParameter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*SearchParameter(nil), r.order...)
}

// Bases returns the sorted base resource types of all definitions.
func (r *Registry) Bases() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bases := make([]string, 0, len(r.byBase))
	for base, list := range r.byBase {
		if len(list) > 0 {
			bases = append(bases, base)
		}
	}
	sort.Strings(bases)
	return bases
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byURL)
}

// LoadJSON loads a SearchParameter or the SearchParameter entries of a Bundle.
// Invalid entries of a Bundle are logged and skipped.
func (r *Registry) LoadJSON(data []byte) (int, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return 0, fmt.Errorf("invalid JSON: %w", err)
	}

	switch probe.ResourceType {
	case "SearchParameter":
		if err := r.loadRaw(data); err != nil {
			return 0, err
		}
		return 1, nil
	case "Bundle":
		resources, err := loader.BundleResources(data)
		if err != nil {
			return 0, err
		}
		return r.loadAll(resources), nil
	default:
		return 0, fmt.Errorf("unsupported resourceType: %s", probe.ResourceType)
	}
}

// LoadFile loads SearchParameters from a JSON file.
func (r *Registry) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	n, err := r.LoadJSON(data)
	if err != nil {
		return n, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// LoadPackage loads every SearchParameter of a FHIR package.
func (r *Registry) LoadPackage(pkg *loader.Package) (int, error) {
	if pkg == nil {
		return 0, fmt.Errorf("package is nil")
	}
	return r.loadAll(pkg.ResourcesOfType("SearchParameter")), nil
}

func (r *Registry) loadAll(resources []json.RawMessage) int {
	count := 0
	for _, raw := range resources {
		var head struct {
			ResourceType string `json:"resourceType"`
			URL          string `json:"url"`
		}
		if err := json.Unmarshal(raw, &head); err != nil || head.ResourceType != "SearchParameter" {
			continue
		}
		if err := r.loadRaw(raw); err != nil {
			logger.Warn("skipping search parameter %s: %v", head.URL, err)
			continue
		}
		count++
	}
	return count
}

func (r *Registry) loadRaw(data []byte) error {
	var sp SearchParameter
	if err := json.Unmarshal(data, &sp); err != nil {
		return fmt.Errorf("failed to parse SearchParameter: %w", err)
	}
	return r.Add(&sp)
}
