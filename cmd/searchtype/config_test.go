package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	config, _, err := parseFlags([]string{
		"-structures", "a.json, b",
		"-package", "hl7.fhir.r4.core#4.0.1",
		"-resource", "Patient",
		"-workers", "3",
		"-output", "JSON",
		"-strict",
		"params.json",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"a.json", "b"}, config.Structures)
	assert.Equal(t, []string{"hl7.fhir.r4.core#4.0.1"}, config.Packages)
	assert.Equal(t, "Patient", config.Resource)
	assert.Equal(t, 3, config.Workers)
	assert.Equal(t, OutputJSON, config.Output)
	assert.True(t, config.Strict)
	assert.Equal(t, []string{"params.json"}, config.Files)
	assert.Equal(t, "4.0.1", config.FHIRVersion)
}

func TestParseFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"output", []string{"-output", "xml"}},
		{"version", []string{"-version", "3.0.2"}},
		{"unknown flag", []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFlags(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestParseFlags_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "searchtype.yaml")
	yamlConfig := `fhirVersion: R4
structures:
  - testdata/structures.json
resource: Patient
param: family
workers: 4
output: json
logLevel: debug
files:
  - testdata/search-parameters.json
`
	require.NoError(t, os.WriteFile(path, []byte(yamlConfig), 0o600))

	config, _, err := parseFlags([]string{"-config", path, "-resource", "Practitioner"})
	require.NoError(t, err)

	assert.Equal(t, "R4", config.FHIRVersion)
	assert.Equal(t, []string{"testdata/structures.json"}, config.Structures)
	assert.Equal(t, "Practitioner", config.Resource, "flags override the file")
	assert.Equal(t, "family", config.Param)
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, OutputJSON, config.Output)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, []string{"testdata/search-parameters.json"}, config.Files)

	t.Run("missing file", func(t *testing.T) {
		_, _, err := parseFlags([]string{"-config", filepath.Join(t.TempDir(), "none.yaml")})
		assert.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("workers: [1"), 0o600))
		_, _, err := parseFlags([]string{"-config", bad})
		assert.Error(t, err)
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a, ,b,"))
}
