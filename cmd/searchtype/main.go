// Package main implements the searchtype CLI tool.
// It resolves FHIR SearchParameter definitions to the element types their
// expressions select.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofhir/searchtype"
	"github.com/gofhir/searchtype/catalog"
	"github.com/gofhir/searchtype/loader"
	"github.com/gofhir/searchtype/pkg/logger"
	"github.com/gofhir/searchtype/searchparam"
	"github.com/gofhir/searchtype/worker"
)

const (
	version = "0.1.0"
	usage   = `searchtype - FHIR search parameter type resolver

Usage:
  searchtype [options] [search-parameters.json]...

Search parameters are read from the given files and from every loaded
package. Unless -structures is given, the core package of -version is
loaded from the package cache.

Examples:
  searchtype -resource Patient
  searchtype -fetch -package hl7.fhir.us.core#6.1.0 -resource Patient
  searchtype -structures profiles-types.json,profiles-resources.json search-parameters.json
  searchtype -param code -output json
  searchtype -config searchtype.yaml

Options:
`
)

// ResultOutput is the JSON output for one definition and base.
type ResultOutput struct {
	Base       string          `json:"base"`
	Code       string          `json:"code"`
	URL        string          `json:"url"`
	Type       string          `json:"type"`
	Expression string          `json:"expression,omitempty"`
	Mappings   []MappingOutput `json:"mappings"`
	Fault      string          `json:"fault,omitempty"`
	Error      string          `json:"error,omitempty"`
	Skipped    bool            `json:"skipped,omitempty"`
}

// MappingOutput is one resolved element type in JSON output.
type MappingOutput struct {
	ElementType string `json:"elementType"`
	Kind        string `json:"kind"`
	Path        string `json:"path,omitempty"`
	Definition  string `json:"definition,omitempty"`
}

// Summary is the JSON output envelope.
type Summary struct {
	Results  []ResultOutput      `json:"results"`
	Total    int                 `json:"total"`
	Faulted  int                 `json:"faulted"`
	Skipped  int                 `json:"skipped"`
	Duration string              `json:"duration"`
	Metrics  searchtype.Snapshot `json:"metrics"`
}

func main() {
	config, fs, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if config.ShowVersion {
		fmt.Printf("searchtype v%s\n", version)
		os.Exit(0)
	}

	if config.Help {
		fs.Usage()
		os.Exit(0)
	}

	os.Exit(run(context.Background(), config, os.Stdout, os.Stderr))
}

func run(ctx context.Context, config *Config, stdout, stderr io.Writer) int {
	level, err := logger.ParseLevel(config.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger.SetOutput(stderr)
	logger.SetLevel(level)

	profiles := loader.NewInMemoryProfileService()
	registry := searchparam.NewRegistry()

	if err := loadDefinitions(ctx, config, profiles, registry); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("loaded %d structure definitions and %d search parameters", profiles.Count(), registry.Len())

	opts := config.options()
	cat := catalog.NewStructureCatalog(profiles, opts...)
	indexer := searchparam.NewIndexer(registry, cat, opts...)

	targets := indexer.Targets(config.Resource, config.Param)
	if len(targets) == 0 {
		fmt.Fprintln(stderr, "No search parameters match the given filters.")
		return 1
	}

	start := time.Now()
	batchResolver := worker.NewBatchResolver(indexer, opts...)
	batch := batchResolver.ResolveBatch(ctx, targets)
	elapsed := time.Since(start)

	switch config.Output {
	case OutputJSON:
		summary := Summary{
			Results:  make([]ResultOutput, 0, len(batch.Results)),
			Total:    batch.CompletedJobs,
			Faulted:  batch.FailedJobs,
			Skipped:  batch.SkippedJobs,
			Duration: elapsed.Round(time.Microsecond).String(),
			Metrics:  batchResolver.Metrics().Snapshot(),
		}
		for _, e := range batch.Entries() {
			summary.Results = append(summary.Results, toOutput(e))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	default:
		for _, e := range batch.Entries() {
			printTextEntry(stdout, e)
		}
		fmt.Fprintf(stdout, "\nResolved %d definition(s): %d mapping(s), %d faulted, %d skipped in %s\n",
			batch.CompletedJobs, batch.MappingCount(), batch.FailedJobs, batch.SkippedJobs,
			elapsed.Round(time.Microsecond))
	}

	if batch.HasFaults() {
		return 1
	}
	return 0
}

// loadDefinitions fills profiles and registry from the configured sources.
// The core package of the configured FHIR version is loaded unless
// StructureDefinitions are given explicitly.
func loadDefinitions(ctx context.Context, config *Config, profiles *loader.InMemoryProfileService, registry *searchparam.Registry) error {
	packages := loader.NewPackageLoader(config.PackageCache)
	if config.Fetch {
		packages.WithRegistry(loader.NewRegistryClient(loader.WithRegistryURL(config.RegistryURL)))
	}

	for _, path := range config.Structures {
		if err := loadStructures(profiles, path); err != nil {
			return err
		}
	}

	var pkgs []*loader.Package
	if len(config.Structures) == 0 {
		v, _ := searchtype.ParseFHIRVersion(config.FHIRVersion)
		core, err := loadCore(ctx, packages, config.Fetch, v)
		if err != nil {
			return err
		}
		pkgs = append(pkgs, core...)
	}

	for _, source := range config.Packages {
		loaded, err := packages.LoadWithDependencies(ctx, source)
		if err != nil {
			return err
		}
		pkgs = append(pkgs, loaded...)
	}

	for _, pkg := range pkgs {
		n, err := profiles.LoadPackage(pkg)
		if err != nil {
			return err
		}
		m, err := registry.LoadPackage(pkg)
		if err != nil {
			return err
		}
		logger.Debug("package %s#%s: %d structure definitions, %d search parameters", pkg.Name, pkg.Version, n, m)
	}

	for _, file := range config.Files {
		if _, err := registry.LoadFile(file); err != nil {
			return err
		}
	}
	return nil
}

// loadCore loads the default packages of a FHIR version, downloading the
// core package first when fetching is enabled.
func loadCore(ctx context.Context, packages *loader.PackageLoader, fetch bool, v searchtype.FHIRVersion) ([]*loader.Package, error) {
	if fetch {
		name, version := v.CorePackage()
		if _, err := packages.Load(ctx, loader.PackageRef{Name: name, Version: version}.String()); err != nil {
			return nil, fmt.Errorf("failed to load core package: %w", err)
		}
	}
	return packages.LoadVersion(v.Number())
}

func loadStructures(profiles *loader.InMemoryProfileService, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("structures: %w", err)
	}
	if info.IsDir() {
		_, err = profiles.LoadFromDirectory(path)
	} else {
		_, err = profiles.LoadFromFile(path)
	}
	return err
}

func toOutput(e searchparam.Entry) ResultOutput {
	out := ResultOutput{
		Base:       e.Base,
		Code:       e.Param.Code,
		URL:        e.Param.URL,
		Type:       e.Param.Type.String(),
		Expression: e.Param.Expression,
		Mappings:   make([]MappingOutput, 0, len(e.Mappings)),
		Skipped:    e.Skipped(),
	}
	for _, m := range e.Mappings {
		out.Mappings = append(out.Mappings, MappingOutput{
			ElementType: m.ElementType.Name,
			Kind:        m.Kind.String(),
			Path:        m.Path,
			Definition:  m.Definition,
		})
	}
	if e.Faulted() {
		out.Fault = searchtype.FaultKind(e.Err)
		out.Error = e.Err.Error()
	}
	return out
}

func printTextEntry(w io.Writer, e searchparam.Entry) {
	status := "OK"
	switch {
	case e.Faulted():
		status = "FAULT"
	case e.Skipped():
		status = "SKIP"
	}

	fmt.Fprintf(w, "%-5s %s.%s (%s)\n", status, e.Base, e.Param.Code, e.Param.Type)
	for _, m := range e.Mappings {
		path := m.Path
		if path == "" {
			path = "-"
		}
		fmt.Fprintf(w, "      %-16s %s\n", m.ElementType.Name, path)
	}
	if e.Faulted() {
		fmt.Fprintf(w, "      [%s] %s\n", searchtype.FaultKind(e.Err), strings.TrimSpace(e.Err.Error()))
	}
}
