package loader

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gofhir/searchtype/pkg/logger"
)

// DefaultPackagePath returns the default FHIR package cache path.
func DefaultPackagePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fhir", "packages")
}

// PackageRef represents a reference to a FHIR package.
type PackageRef struct {
	Name    string
	Version string
}

// String returns the package spec in "name#version" format.
func (p PackageRef) String() string {
	return fmt.Sprintf("%s#%s", p.Name, p.Version)
}

// Package is a loaded FHIR NPM package. Resources keeps file order so that
// loading is deterministic.
type Package struct {
	Name        string
	Version     string
	Path        string
	FHIRVersion string

	// Dependencies maps package names to versions, as declared in package.json.
	Dependencies map[string]string

	Resources []PackageResource
}

// PackageResource is one JSON resource of a package.
type PackageResource struct {
	ResourceType string
	ID           string
	URL          string
	Data         json.RawMessage
}

// ResourcesOfType returns the raw JSON of every resource with the given resourceType.
func (p *Package) ResourcesOfType(resourceType string) []json.RawMessage {
	var out []json.RawMessage
	for _, r := range p.Resources {
		if r.ResourceType == resourceType {
			out = append(out, r.Data)
		}
	}
	return out
}

// PackageManifest represents the package.json of a FHIR NPM package.
type PackageManifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	FHIRVersion  string            `json:"fhirVersion,omitempty"`
	FHIRVersions []string          `json:"fhirVersions,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (m PackageManifest) fhirVersion() string {
	if m.FHIRVersion != "" {
		return m.FHIRVersion
	}
	if len(m.FHIRVersions) > 0 {
		return m.FHIRVersions[0]
	}
	return ""
}

// DefaultPackages maps FHIR versions to the packages carrying their
// StructureDefinitions and SearchParameters. The core package comes first.
var DefaultPackages = map[string][]PackageRef{
	"4.0.1": {
		{Name: "hl7.fhir.r4.core", Version: "4.0.1"},
		{Name: "hl7.fhir.uv.extensions.r4", Version: "5.2.0"},
	},
	"4.3.0": {
		{Name: "hl7.fhir.r4b.core", Version: "4.3.0"},
		{Name: "hl7.fhir.uv.extensions.r4", Version: "5.2.0"},
	},
	"5.0.0": {
		{Name: "hl7.fhir.r5.core", Version: "5.0.0"},
		{Name: "hl7.fhir.uv.extensions.r5", Version: "5.2.0"},
	},
}

// PackageLoader loads FHIR packages from the NPM cache, local archives or URLs.
type PackageLoader struct {
	basePath string
	client   *http.Client
	registry *RegistryClient
}

// NewPackageLoader creates a PackageLoader rooted at basePath. An empty
// basePath selects DefaultPackagePath.
func NewPackageLoader(basePath string) *PackageLoader {
	if basePath == "" {
		basePath = DefaultPackagePath()
	}
	return &PackageLoader{basePath: basePath, client: http.DefaultClient}
}

// WithRegistry makes Load download "name#version" packages missing from the
// cache from a package registry.
func (l *PackageLoader) WithRegistry(c *RegistryClient) *PackageLoader {
	l.registry = c
	return l
}

// BasePath returns the base path for packages.
func (l *PackageLoader) BasePath() string {
	return l.basePath
}

// LoadPackage loads a package from the cache by name and version.
func (l *PackageLoader) LoadPackage(name, version string) (*Package, error) {
	pkgDir := filepath.Join(l.basePath, fmt.Sprintf("%s#%s", name, version))

	if _, err := os.Stat(pkgDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("package %s#%s not found at %s", name, version, pkgDir)
	}

	contentDir := filepath.Join(pkgDir, "package")
	manifestData, err := os.ReadFile(filepath.Join(contentDir, "package.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read package manifest: %w", err)
	}

	var manifest PackageManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}

	entries, err := os.ReadDir(contentDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package directory: %w", err)
	}

	pkg := &Package{
		Name:         name,
		Version:      version,
		Path:         pkgDir,
		FHIRVersion:  manifest.fhirVersion(),
		Dependencies: manifest.Dependencies,
	}

	// ReadDir is sorted by filename.
	for _, entry := range entries {
		if entry.IsDir() || !isResourceFile(entry.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(contentDir, entry.Name()))
		if err != nil {
			continue
		}
		pkg.add(data)
	}

	return pkg, nil
}

// LoadPackageRef loads a package from a PackageRef.
func (l *PackageLoader) LoadPackageRef(ref PackageRef) (*Package, error) {
	return l.LoadPackage(ref.Name, ref.Version)
}

// LoadVersion loads the default packages for a FHIR version. Only the core
// package is required; missing optional packages are logged and skipped.
func (l *PackageLoader) LoadVersion(version string) ([]*Package, error) {
	refs, ok := DefaultPackages[version]
	if !ok {
		return nil, fmt.Errorf("unknown FHIR version: %s (supported: 4.0.1, 4.3.0, 5.0.0)", version)
	}

	packages := make([]*Package, 0, len(refs))
	for _, ref := range refs {
		pkg, err := l.LoadPackageRef(ref)
		if err != nil {
			if strings.Contains(ref.Name, ".core") {
				return nil, fmt.Errorf("failed to load core package: %w", err)
			}
			logger.Warn("optional package %s not loaded: %v", ref, err)
			continue
		}
		packages = append(packages, pkg)
	}

	return packages, nil
}

// ListPackages returns all packages available in the cache.
func (l *PackageLoader) ListPackages() ([]string, error) {
	entries, err := os.ReadDir(l.basePath)
	if err != nil {
		return nil, err
	}

	var packages []string
	for _, entry := range entries {
		if entry.IsDir() && strings.Contains(entry.Name(), "#") {
			packages = append(packages, entry.Name())
		}
	}
	sort.Strings(packages)
	return packages, nil
}

// ParsePackageSpec parses "name#version" into separate components.
func ParsePackageSpec(spec string) (name, version string) {
	parts := strings.SplitN(spec, "#", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return spec, ""
}

// LoadFromTgz loads a FHIR package from a local .tgz file.
func (l *PackageLoader) LoadFromTgz(tgzPath string) (*Package, error) {
	file, err := os.Open(tgzPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open tgz file: %w", err)
	}
	defer file.Close()

	return readTgz(file, tgzPath)
}

// LoadFromURL downloads a FHIR package .tgz and loads it.
func (l *PackageLoader) LoadFromURL(ctx context.Context, url string) (*Package, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid package URL %s: %w", url, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download package from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download package: HTTP %d", resp.StatusCode)
	}

	return readTgz(resp.Body, url)
}

// Load resolves a package source: an http(s) URL, a .tgz path, or a
// "name#version" spec looked up in the cache. With a registry, missing specs
// are downloaded first and the version may be omitted or "latest".
func (l *PackageLoader) Load(ctx context.Context, source string) (*Package, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return l.LoadFromURL(ctx, source)
	case strings.HasSuffix(source, ".tgz"), strings.HasSuffix(source, ".tar.gz"):
		return l.LoadFromTgz(source)
	}

	name, version := ParsePackageSpec(source)
	if l.registry != nil {
		resolved, err := l.registry.Download(ctx, l.basePath, name, version)
		if err != nil {
			return nil, fmt.Errorf("package %s: %w", source, err)
		}
		version = resolved
	}
	if version == "" {
		return nil, fmt.Errorf("package spec %q has no version (expected name#version)", source)
	}
	return l.LoadPackage(name, version)
}

// LoadWithDependencies loads a package and, transitively, the packages it
// depends on. Core packages (see IsCorePackage) are not followed; missing
// dependencies are logged and skipped. The requested package comes first.
func (l *PackageLoader) LoadWithDependencies(ctx context.Context, source string) ([]*Package, error) {
	root, err := l.Load(ctx, source)
	if err != nil {
		return nil, err
	}

	packages := []*Package{root}
	seen := map[string]bool{PackageRef{Name: root.Name, Version: root.Version}.String(): true}

	for i := 0; i < len(packages); i++ {
		deps := make([]string, 0, len(packages[i].Dependencies))
		for name := range packages[i].Dependencies {
			deps = append(deps, name)
		}
		sort.Strings(deps)

		for _, name := range deps {
			ref := PackageRef{Name: name, Version: packages[i].Dependencies[name]}
			if IsCorePackage(name) || seen[ref.String()] {
				continue
			}
			seen[ref.String()] = true

			pkg, err := l.Load(ctx, ref.String())
			if err != nil {
				logger.Warn("dependency %s of %s not loaded: %v", ref, packages[i].Name, err)
				continue
			}
			packages = append(packages, pkg)
		}
	}

	return packages, nil
}

// IsCorePackage reports whether name is a FHIR core or terminology package.
func IsCorePackage(name string) bool {
	for _, prefix := range []string{"hl7.fhir.r4.core", "hl7.fhir.r4b.core", "hl7.fhir.r5.core", "hl7.terminology"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func readTgz(reader io.Reader, source string) (*Package, error) {
	gzReader, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	pkg := &Package{Path: source}

	var manifestData []byte
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}

		name := strings.TrimPrefix(header.Name, "package/")
		if !strings.HasSuffix(name, ".json") || strings.Contains(name, "/") {
			continue
		}

		data, err := io.ReadAll(tarReader)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from %s: %w", header.Name, source, err)
		}

		if name == "package.json" {
			manifestData = data
			continue
		}
		if isResourceFile(name) {
			pkg.add(data)
		}
	}

	if manifestData == nil {
		return nil, fmt.Errorf("package.json not found in %s", source)
	}

	var manifest PackageManifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package manifest: %w", err)
	}

	pkg.Name = manifest.Name
	pkg.Version = manifest.Version
	pkg.FHIRVersion = manifest.fhirVersion()
	pkg.Dependencies = manifest.Dependencies

	return pkg, nil
}

func isResourceFile(name string) bool {
	return strings.HasSuffix(name, ".json") && name != "package.json" && name != ".index.json"
}

func (p *Package) add(data []byte) {
	var head struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
		URL          string `json:"url"`
	}
	if err := json.Unmarshal(data, &head); err != nil || head.ResourceType == "" {
		return
	}
	p.Resources = append(p.Resources, PackageResource{
		ResourceType: head.ResourceType,
		ID:           head.ID,
		URL:          head.URL,
		Data:         data,
	})
}
