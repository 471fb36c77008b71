package loader

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultRegistryURL is the primary FHIR package registry.
	DefaultRegistryURL = "https://packages.fhir.org"

	// DefaultRegistryTimeout for registry HTTP requests.
	DefaultRegistryTimeout = 30 * time.Second

	// VersionLatest represents the "latest" version tag.
	VersionLatest = "latest"

	// maxPackageFileSize limits each extracted file (decompression bombs).
	maxPackageFileSize = 100 * 1024 * 1024
)

// ErrFileTooLarge is returned when a package file exceeds the extraction limit.
var ErrFileTooLarge = errors.New("package file too large")

// RegistryClient downloads packages from a FHIR package registry into a
// package cache directory.
type RegistryClient struct {
	httpClient  *http.Client
	registryURL string
}

// RegistryOption configures a RegistryClient.
type RegistryOption func(*RegistryClient)

// WithRegistryURL sets a custom registry URL.
func WithRegistryURL(url string) RegistryOption {
	return func(c *RegistryClient) {
		if url != "" {
			c.registryURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RegistryOption {
	return func(c *RegistryClient) {
		c.httpClient = client
	}
}

// NewRegistryClient creates a new registry client.
func NewRegistryClient(opts ...RegistryOption) *RegistryClient {
	c := &RegistryClient{
		httpClient:  &http.Client{Timeout: DefaultRegistryTimeout},
		registryURL: DefaultRegistryURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PackageInfo describes one version of a registry package.
type PackageInfo struct {
	Name        string
	Version     string
	FHIRVersion string
	Tarball     string
}

// Info fetches the registry entry of a package version. An empty version
// or "latest" resolves to the latest published version.
func (c *RegistryClient) Info(ctx context.Context, name, version string) (*PackageInfo, error) {
	url := fmt.Sprintf("%s/%s", c.registryURL, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch package info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("package not found: %s (status %d)", name, resp.StatusCode)
	}

	var doc struct {
		Name     string            `json:"name"`
		DistTags map[string]string `json:"dist-tags"`
		Versions map[string]struct {
			FHIRVersion string `json:"fhirVersion"`
			URL         string `json:"url"`
			Dist        struct {
				Tarball string `json:"tarball"`
			} `json:"dist"`
		} `json:"versions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode package info: %w", err)
	}

	if version == "" || version == VersionLatest {
		latest, ok := doc.DistTags[VersionLatest]
		if !ok {
			return nil, fmt.Errorf("no latest version found for package %s", name)
		}
		version = latest
	}

	v, ok := doc.Versions[version]
	if !ok {
		return nil, fmt.Errorf("version %s not found for package %s", version, name)
	}

	info := &PackageInfo{Name: name, Version: version, FHIRVersion: v.FHIRVersion, Tarball: v.Dist.Tarball}
	if info.Tarball == "" {
		info.Tarball = v.URL
	}
	if info.Tarball == "" {
		return nil, fmt.Errorf("no download URL found for %s#%s", name, version)
	}
	return info, nil
}

// Download fetches a package and extracts it to cacheDir/name#version,
// the layout PackageLoader reads. It returns the resolved version. A package
// already in the cache is not downloaded again.
func (c *RegistryClient) Download(ctx context.Context, cacheDir, name, version string) (string, error) {
	if version != "" && version != VersionLatest && isCached(packageDir(cacheDir, name, version)) {
		return version, nil
	}

	info, err := c.Info(ctx, name, version)
	if err != nil {
		return "", err
	}

	dir := packageDir(cacheDir, name, info.Version)
	if isCached(dir) {
		return info.Version, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.Tarball, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download package: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download package %s#%s: status %d", name, info.Version, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := extractTgz(resp.Body, dir); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("failed to extract package %s#%s: %w", name, info.Version, err)
	}

	return info.Version, nil
}

func packageDir(cacheDir, name, version string) string {
	safeName := strings.ReplaceAll(name, "/", "-")
	return filepath.Join(cacheDir, fmt.Sprintf("%s#%s", safeName, version))
}

func isCached(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "package", "package.json"))
	return err == nil
}

// extractTgz extracts a .tgz archive below destDir.
func extractTgz(r io.Reader, destDir string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	root := filepath.Clean(destDir) + string(os.PathSeparator)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}

		target := filepath.Join(destDir, header.Name) //nolint:gosec // G305: checked against root below
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("invalid tar path: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, maxPackageFileSize); err != nil {
				return fmt.Errorf("%s: %w", header.Name, err)
			}
		}
	}
}

func writeFile(target string, r io.Reader, limit int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n > limit {
		err = fmt.Errorf("%w: more than %d bytes", ErrFileTooLarge, limit)
	}
	if err != nil {
		_ = os.Remove(target)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
