package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofhir/fhir/r4"
	"github.com/gofhir/searchtype/service"
)

// canonicalBase is the URL prefix of core FHIR StructureDefinitions.
const canonicalBase = "http://hl7.org/fhir/StructureDefinition/"

// InMemoryProfileService implements service.ProfileResolver using in-memory storage.
// It stores pre-converted StructureDefinitions indexed by URL and Type.
type InMemoryProfileService struct {
	mu        sync.RWMutex
	byURL     map[string]*service.StructureDefinition
	byType    map[string]*service.StructureDefinition
	converter *R4Converter
}

// NewInMemoryProfileService creates a new in-memory profile service.
func NewInMemoryProfileService() *InMemoryProfileService {
	return &InMemoryProfileService{
		byURL:     make(map[string]*service.StructureDefinition),
		byType:    make(map[string]*service.StructureDefinition),
		converter: NewR4Converter(),
	}
}

// LoadR4StructureDefinition loads an R4 StructureDefinition into the service.
func (s *InMemoryProfileService) LoadR4StructureDefinition(sd *r4.StructureDefinition) error {
	if sd == nil {
		return fmt.Errorf("structure definition is nil")
	}
	return s.LoadServiceStructureDefinition(s.converter.ConvertStructureDefinition(sd))
}

// LoadServiceStructureDefinition loads a pre-converted service.StructureDefinition.
//
// Every definition is indexed by URL. Only base definitions
// (http://hl7.org/fhir/StructureDefinition/{Type}) of resources, complex types
// and primitive types are indexed by type, so profiles never shadow the type
// they constrain.
func (s *InMemoryProfileService) LoadServiceStructureDefinition(sd *service.StructureDefinition) error {
	if sd == nil {
		return fmt.Errorf("structure definition is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sd.URL != "" {
		s.byURL[sd.URL] = sd
	}

	switch sd.Kind {
	case service.KindResource, service.KindComplexType, service.KindPrimitiveType:
		if isBaseTypeDefinition(sd.URL, sd.Type) {
			s.byType[sd.Type] = sd
		}
	}

	return nil
}

// FetchStructureDefinition implements service.StructureDefinitionFetcher.
func (s *InMemoryProfileService) FetchStructureDefinition(ctx context.Context, url string) (*service.StructureDefinition, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sd, ok := s.byURL[url]
	if !ok {
		return nil, fmt.Errorf("structure definition not found: %s", url)
	}
	return sd, nil
}

// FetchStructureDefinitionByType implements service.StructureDefinitionByTypeFetcher.
// It looks up the type index first and falls back to the canonical URL, which
// covers constrained core types such as SimpleQuantity.
func (s *InMemoryProfileService) FetchStructureDefinitionByType(ctx context.Context, typeName string) (*service.StructureDefinition, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if sd, ok := s.byType[typeName]; ok {
		return sd, nil
	}
	if sd, ok := s.byURL[canonicalBase+typeName]; ok {
		return sd, nil
	}

	return nil, fmt.Errorf("structure definition not found for type: %s", typeName)
}

// Count returns the number of loaded StructureDefinitions.
func (s *InMemoryProfileService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURL)
}

// Types returns the sorted names of all types indexed by type.
func (s *InMemoryProfileService) Types() []string {
	return s.typesWhere(func(*service.StructureDefinition) bool { return true })
}

// ResourceTypes returns the sorted names of all concrete resource types.
func (s *InMemoryProfileService) ResourceTypes() []string {
	return s.typesWhere(func(sd *service.StructureDefinition) bool {
		return sd.IsResource() && !sd.Abstract
	})
}

func (s *InMemoryProfileService) typesWhere(keep func(*service.StructureDefinition) bool) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.byType))
	for t, sd := range s.byType {
		if keep(sd) {
			types = append(types, t)
		}
	}
	sort.Strings(types)
	return types
}

// Clear removes all loaded StructureDefinitions.
func (s *InMemoryProfileService) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byURL = make(map[string]*service.StructureDefinition)
	s.byType = make(map[string]*service.StructureDefinition)
}

// isBaseTypeDefinition checks if a URL is THE base definition for its type.
// For example, http://hl7.org/fhir/StructureDefinition/Patient is the base for Patient,
// but http://hl7.org/fhir/StructureDefinition/us-core-patient is a profile, not the base.
func isBaseTypeDefinition(url, typeName string) bool {
	if typeName == "" {
		return false
	}
	return url == canonicalBase+typeName
}

// LoadFromFile loads StructureDefinitions from a JSON file.
// Supports both single StructureDefinition and Bundle formats; Bundles are
// streamed entry by entry.
func (s *InMemoryProfileService) LoadFromFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	defer f.Close()

	n, err := s.LoadFromReader(context.Background(), f)
	if !errors.Is(err, ErrNotBundle) {
		return n, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return s.LoadFromJSON(data)
}

// LoadFromReader streams the StructureDefinition entries of a Bundle from r.
// Other entries are skipped. It returns ErrNotBundle for other documents.
func (s *InMemoryProfileService) LoadFromReader(ctx context.Context, r io.Reader) (int, error) {
	count := 0
	for entry, err := range StreamBundle(ctx, r) {
		if err != nil {
			return count, err
		}
		if entry.ResourceType != "StructureDefinition" {
			continue
		}
		if err := s.loadRaw(entry.Resource); err != nil {
			continue
		}
		count++
	}
	return count, nil
}

// LoadFromJSON loads StructureDefinitions from JSON data.
// Auto-detects Bundle vs single StructureDefinition format.
func (s *InMemoryProfileService) LoadFromJSON(data []byte) (int, error) {
	resourceType, err := probeResourceType(data)
	if err != nil {
		return 0, err
	}

	switch resourceType {
	case "Bundle":
		return s.LoadFromBundle(data)
	case "StructureDefinition":
		if err := s.loadRaw(data); err != nil {
			return 0, err
		}
		return 1, nil
	default:
		return 0, fmt.Errorf("unsupported resourceType: %s", resourceType)
	}
}

// LoadFromBundle loads the StructureDefinition entries of a FHIR Bundle such
// as profiles-resources.json or profiles-types.json. Other entries are skipped.
func (s *InMemoryProfileService) LoadFromBundle(data []byte) (int, error) {
	entries, err := bundleResources(data)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, raw := range entries {
		if rt, err := probeResourceType(raw); err != nil || rt != "StructureDefinition" {
			continue
		}
		if err := s.loadRaw(raw); err != nil {
			continue
		}
		count++
	}

	return count, nil
}

// LoadPackage loads every StructureDefinition found in a FHIR package.
func (s *InMemoryProfileService) LoadPackage(pkg *Package) (int, error) {
	if pkg == nil {
		return 0, fmt.Errorf("package is nil")
	}

	count := 0
	for _, raw := range pkg.ResourcesOfType("StructureDefinition") {
		if err := s.loadRaw(raw); err != nil {
			return count, fmt.Errorf("package %s#%s: %w", pkg.Name, pkg.Version, err)
		}
		count++
	}
	return count, nil
}

// LoadFromDirectory loads all JSON files from a directory recursively.
// Files that are not StructureDefinitions or Bundles are skipped.
func (s *InMemoryProfileService) LoadFromDirectory(dirPath string) (int, error) {
	total := 0
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		count, err := s.LoadFromFile(path)
		if err != nil {
			return nil // Skip files that fail
		}
		total += count
		return nil
	})

	return total, err
}

func (s *InMemoryProfileService) loadRaw(data []byte) error {
	var sd r4.StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return fmt.Errorf("failed to parse StructureDefinition: %w", err)
	}
	return s.LoadR4StructureDefinition(&sd)
}

// probeResourceType returns the resourceType of a JSON resource.
func probeResourceType(data []byte) (string, error) {
	var probe struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	return probe.ResourceType, nil
}

// bundleResources returns the raw entry resources of a Bundle.
func bundleResources(data []byte) ([]json.RawMessage, error) {
	var resources []json.RawMessage
	for entry, err := range StreamBundle(context.Background(), bytes.NewReader(data)) {
		if err != nil {
			return nil, fmt.Errorf("failed to parse Bundle: %w", err)
		}
		if entry.Resource != nil {
			resources = append(resources, entry.Resource)
		}
	}
	return resources, nil
}

// BundleResources returns the raw resources of a Bundle, for callers that load
// other resource types (SearchParameters) from the same files.
func BundleResources(data []byte) ([]json.RawMessage, error) {
	return bundleResources(data)
}

// Verify interface compliance
var _ service.ProfileResolver = (*InMemoryProfileService)(nil)
