// Package searchtype resolves FHIR search parameter definitions to the element
// types they index.
//
// A search parameter definition carries a FHIRPath expression such as
// "Observation.value" or "Condition.abatement.as(Age)". Before a server can
// index values for that parameter it has to know which concrete FHIR types the
// expression can reach on a given resource type. This module answers that
// question statically, by walking the expression tree against the type
// information found in StructureDefinition snapshots. No resource instances are
// ever evaluated.
//
// # Quick Start
//
//	profiles := loader.NewInMemoryProfileService()
//	if _, err := profiles.LoadFromFile("profiles-resources.json"); err != nil {
//	    log.Fatal(err)
//	}
//
//	r := resolver.New(catalog.NewStructureCatalog(profiles))
//	tree, err := expr.Parse("Observation.value")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	seq := r.Resolve("Observation", resolver.Param{
//	    Kind:       searchtype.SearchParamQuantity,
//	    Expression: tree,
//	    Definition: "http://hl7.org/fhir/SearchParameter/Observation-value-quantity",
//	})
//	for m, err := range seq {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(m.ElementType.Name, m.Path)
//	}
//
// # Packages
//
//   - expr: closed expression tree built from the fhirpath grammar
//   - catalog: type catalog built from StructureDefinition snapshots
//   - resolver: the expression resolver and its resolution context
//   - searchparam: SearchParameter loading and whole-registry indexing
//   - worker: concurrent batch resolution
//   - loader: StructureDefinition and FHIR package loading
//   - cmd/searchtype: command line resolver for definition bundles and packages
//
// # Functional Options
//
//	opts := searchtype.DefaultOptions()
//	searchtype.WithWorkerCount(8)(opts)
//	searchtype.WithCacheSize(4096)(opts)
package searchtype
