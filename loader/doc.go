// Package loader loads StructureDefinitions and FHIR packages and converts
// them to the internal service models used by the type catalog.
//
// Key components:
//   - R4Converter: converts r4.StructureDefinition to service.StructureDefinition
//   - InMemoryProfileService: stores converted definitions by URL and by type
//   - PackageLoader: reads FHIR NPM packages from the package cache, a local
//     .tgz file or a remote URL
//   - RegistryClient: downloads missing packages from a FHIR package registry
//     into the package cache
//
// Example usage:
//
//	profiles := loader.NewInMemoryProfileService()
//	n, err := profiles.LoadFromFile("profiles-resources.json")
//
//	pkgs := loader.NewPackageLoader("")
//	core, err := pkgs.LoadPackage("hl7.fhir.r4.core", "4.0.1")
//	n, err = profiles.LoadPackage(core)
package loader
