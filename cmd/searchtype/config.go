package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gofhir/searchtype"
)

// OutputFormat specifies the output format.
type OutputFormat string

// Output format constants.
const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// Config holds CLI configuration. Every field can be set from a YAML file
// given with -config; flags given on the command line take precedence.
type Config struct {
	FHIRVersion  string       `yaml:"fhirVersion"`
	Structures   []string     `yaml:"structures"`
	Packages     []string     `yaml:"packages"`
	PackageCache string       `yaml:"packageCache"`
	Fetch        bool         `yaml:"fetch"`
	RegistryURL  string       `yaml:"registry"`
	Resource     string       `yaml:"resource"`
	Param        string       `yaml:"param"`
	Workers      int          `yaml:"workers"`
	Output       OutputFormat `yaml:"output"`
	Strict       bool         `yaml:"strict"`
	LogLevel     string       `yaml:"logLevel"`
	Files        []string     `yaml:"files"`

	ShowVersion bool `yaml:"-"`
	Help        bool `yaml:"-"`
}

func defaultConfig() *Config {
	return &Config{
		FHIRVersion: "4.0.1",
		Output:      OutputText,
		LogLevel:    "warn",
	}
}

// parseFlags parses args (without the program name) into a Config.
func parseFlags(args []string) (*Config, *flag.FlagSet, error) {
	config := defaultConfig()
	fs := flag.NewFlagSet("searchtype", flag.ContinueOnError)

	var structures, packages, output, configFile string

	fs.StringVar(&config.FHIRVersion, "version", config.FHIRVersion, "FHIR version of the core package (4.0.1, 4.3.0, 5.0.0)")
	fs.StringVar(&structures, "structures", "", "StructureDefinition files or directories (comma-separated)")
	fs.StringVar(&packages, "package", "", "FHIR package(s): name#version, .tgz file or URL (comma-separated)")
	fs.StringVar(&config.PackageCache, "package-cache", "", "FHIR package cache directory (default ~/.fhir/packages)")
	fs.BoolVar(&config.Fetch, "fetch", false, "Download missing packages and their dependencies from the package registry")
	fs.StringVar(&config.RegistryURL, "registry", "", "Package registry URL (default https://packages.fhir.org)")
	fs.StringVar(&config.Resource, "resource", "", "Only resolve definitions for this base resource type")
	fs.StringVar(&config.Param, "param", "", "Only resolve definitions with this code")
	fs.IntVar(&config.Workers, "workers", 0, "Number of parallel workers (default: number of CPUs)")
	fs.StringVar(&output, "output", string(config.Output), "Output format: text, json")
	fs.BoolVar(&config.Strict, "strict", false, "Check every expression with the FHIRPath compiler")
	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "Log level: debug, info, warn, error, none")
	fs.StringVar(&configFile, "config", "", "YAML configuration file")
	fs.BoolVar(&config.ShowVersion, "v", false, "Show version")
	fs.BoolVar(&config.Help, "help", false, "Show help")

	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}

	config.Structures = splitList(structures)
	config.Packages = splitList(packages)
	config.Output = OutputFormat(strings.ToLower(output))
	config.Files = fs.Args()

	if configFile == "" {
		return config, fs, config.validate()
	}

	fileConfig, err := loadConfigFile(configFile)
	if err != nil {
		return nil, fs, err
	}
	fileConfig.overlay(config, fs)
	return fileConfig, fs, fileConfig.validate()
}

// loadConfigFile reads a YAML configuration on top of the defaults.
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	config.Output = OutputFormat(strings.ToLower(string(config.Output)))
	return config, nil
}

// overlay copies the settings given explicitly on the command line.
func (c *Config) overlay(flags *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "version":
			c.FHIRVersion = flags.FHIRVersion
		case "structures":
			c.Structures = flags.Structures
		case "package":
			c.Packages = flags.Packages
		case "package-cache":
			c.PackageCache = flags.PackageCache
		case "fetch":
			c.Fetch = flags.Fetch
		case "registry":
			c.RegistryURL = flags.RegistryURL
		case "resource":
			c.Resource = flags.Resource
		case "param":
			c.Param = flags.Param
		case "workers":
			c.Workers = flags.Workers
		case "output":
			c.Output = flags.Output
		case "strict":
			c.Strict = flags.Strict
		case "log-level":
			c.LogLevel = flags.LogLevel
		}
	})
	if len(flags.Files) > 0 {
		c.Files = flags.Files
	}
	c.ShowVersion = flags.ShowVersion
	c.Help = flags.Help
}

func (c *Config) validate() error {
	switch c.Output {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("unknown output format %q (expected text or json)", c.Output)
	}
	if _, ok := searchtype.ParseFHIRVersion(c.FHIRVersion); !ok {
		return fmt.Errorf("unsupported FHIR version %q", c.FHIRVersion)
	}
	return nil
}

// options converts the configuration to resolution options.
func (c *Config) options() []searchtype.Option {
	version, _ := searchtype.ParseFHIRVersion(c.FHIRVersion)
	return []searchtype.Option{
		searchtype.WithFHIRVersion(version),
		searchtype.WithWorkerCount(c.Workers),
		searchtype.WithStrictSyntax(c.Strict),
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
