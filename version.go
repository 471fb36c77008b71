package searchtype

// FHIRVersion represents a FHIR specification version.
type FHIRVersion string

// Supported FHIR versions.
const (
	// R4 is FHIR Release 4 (4.0.1)
	R4 FHIRVersion = "R4"
	// R4B is FHIR Release 4B (4.3.0)
	R4B FHIRVersion = "R4B"
	// R5 is FHIR Release 5 (5.0.0)
	R5 FHIRVersion = "R5"
)

// String returns the version string.
func (v FHIRVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported FHIR version.
func (v FHIRVersion) IsValid() bool {
	_, ok := versionConfigs[v]
	return ok
}

// CorePackage returns the core package name and version for v,
// e.g. "hl7.fhir.r4.core" and "4.0.1".
func (v FHIRVersion) CorePackage() (name, version string) {
	cfg := versionConfigs[v]
	return cfg.CorePackageName, cfg.CorePackageVersion
}

// Number returns the semantic version used in StructureDefinitions ("4.0.1").
func (v FHIRVersion) Number() string {
	return versionConfigs[v].FHIRVersionString
}

// ParseFHIRVersion accepts "R4", "4.0", "4.0.1" and the R4B/R5 equivalents.
func ParseFHIRVersion(s string) (FHIRVersion, bool) {
	switch s {
	case "R4", "r4", "4.0", "4.0.1":
		return R4, true
	case "R4B", "r4b", "4.3", "4.3.0":
		return R4B, true
	case "R5", "r5", "5.0", "5.0.0":
		return R5, true
	default:
		return "", false
	}
}

// versionConfig holds version-specific configuration.
type versionConfig struct {
	CorePackageName    string
	CorePackageVersion string

	// FHIRVersionString is the version string used in StructureDefinitions
	FHIRVersionString string
}

var versionConfigs = map[FHIRVersion]versionConfig{
	R4: {
		CorePackageName:    "hl7.fhir.r4.core",
		CorePackageVersion: "4.0.1",
		FHIRVersionString:  "4.0.1",
	},
	R4B: {
		CorePackageName:    "hl7.fhir.r4b.core",
		CorePackageVersion: "4.3.0",
		FHIRVersionString:  "4.3.0",
	},
	R5: {
		CorePackageName:    "hl7.fhir.r5.core",
		CorePackageVersion: "5.0.0",
		FHIRVersionString:  "5.0.0",
	},
}
