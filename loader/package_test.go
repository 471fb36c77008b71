package loader

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const (
	testManifest  = `{"name":"example.fhir.core","version":"1.0.0","fhirVersions":["4.0.1"]}`
	testPatientSD = `{"resourceType":"StructureDefinition","id":"Patient","url":"http://hl7.org/fhir/StructureDefinition/Patient","name":"Patient","type":"Patient","kind":"resource","abstract":false}`
	testNameSP    = `{"resourceType":"SearchParameter","id":"Patient-name","url":"http://hl7.org/fhir/SearchParameter/Patient-name","code":"name","base":["Patient"],"type":"string","expression":"Patient.name"}`
)

func writeTgz(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o600, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testPackageFiles() map[string]string {
	return map[string]string{
		"package/package.json":                      testManifest,
		"package/.index.json":                       `{"index-version":1,"files":[]}`,
		"package/StructureDefinition-Patient.json":  testPatientSD,
		"package/SearchParameter-Patient-name.json": testNameSP,
		"package/other/ignored.json":                testPatientSD,
		"package/README.md":                         "# readme",
	}
}

func TestDefaultPackagePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	want := filepath.Join(home, ".fhir", "packages")
	if got := DefaultPackagePath(); got != want {
		t.Errorf("DefaultPackagePath() = %q, want %q", got, want)
	}
}

func TestPackageRefString(t *testing.T) {
	ref := PackageRef{Name: "hl7.fhir.r4.core", Version: "4.0.1"}
	if got := ref.String(); got != "hl7.fhir.r4.core#4.0.1" {
		t.Errorf("PackageRef.String() = %q", got)
	}
}

func TestParsePackageSpec(t *testing.T) {
	tests := []struct {
		spec        string
		wantName    string
		wantVersion string
	}{
		{"hl7.fhir.r4.core#4.0.1", "hl7.fhir.r4.core", "4.0.1"},
		{"hl7.fhir.uv.extensions.r4#5.2.0", "hl7.fhir.uv.extensions.r4", "5.2.0"},
		{"package-without-version", "package-without-version", ""},
	}

	for _, tt := range tests {
		name, version := ParsePackageSpec(tt.spec)
		if name != tt.wantName || version != tt.wantVersion {
			t.Errorf("ParsePackageSpec(%q) = (%q, %q), want (%q, %q)",
				tt.spec, name, version, tt.wantName, tt.wantVersion)
		}
	}
}

func TestDefaultPackagesConfig(t *testing.T) {
	for _, v := range []string{"4.0.1", "4.3.0", "5.0.0"} {
		refs, ok := DefaultPackages[v]
		if !ok || len(refs) == 0 {
			t.Errorf("DefaultPackages missing version %s", v)
			continue
		}
		if got := refs[0].Name; got != "hl7.fhir.r4.core" && got != "hl7.fhir.r4b.core" && got != "hl7.fhir.r5.core" {
			t.Errorf("DefaultPackages[%s][0] = %s, want a core package", v, got)
		}
	}
}

func TestLoadFromTgz(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example.tgz")
	if err := os.WriteFile(path, writeTgz(t, testPackageFiles()), 0o600); err != nil {
		t.Fatal(err)
	}

	pkg, err := NewPackageLoader(t.TempDir()).LoadFromTgz(path)
	if err != nil {
		t.Fatalf("LoadFromTgz() error = %v", err)
	}

	if pkg.Name != "example.fhir.core" || pkg.Version != "1.0.0" {
		t.Errorf("package = %s#%s", pkg.Name, pkg.Version)
	}
	if pkg.FHIRVersion != "4.0.1" {
		t.Errorf("FHIRVersion = %q, want 4.0.1", pkg.FHIRVersion)
	}
	if len(pkg.Resources) != 2 {
		t.Errorf("len(Resources) = %d, want 2", len(pkg.Resources))
	}
	if got := len(pkg.ResourcesOfType("SearchParameter")); got != 1 {
		t.Errorf("SearchParameters = %d, want 1", got)
	}
}

func TestReadTgzTruncatedEntry(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: "package/package.json", Mode: 0o600, Size: 1000, Typeflag: tar.TypeReg}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(testManifest)); err != nil {
		t.Fatal(err)
	}
	// The entry is cut short: the tar writer is never closed.
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := readTgz(&buf, "truncated.tgz"); err == nil {
		t.Error("expected error for truncated entry")
	}
}

func TestLoadFromTgzMissingManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.tgz")
	data := writeTgz(t, map[string]string{"package/StructureDefinition-Patient.json": testPatientSD})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewPackageLoader(t.TempDir()).LoadFromTgz(path); err == nil {
		t.Error("expected error for package without package.json")
	}
}

func TestLoadFromURL(t *testing.T) {
	data := writeTgz(t, testPackageFiles())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/example.tgz" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewPackageLoader(t.TempDir())

	pkg, err := l.Load(context.Background(), srv.URL+"/example.tgz")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if pkg.Name != "example.fhir.core" {
		t.Errorf("Name = %q", pkg.Name)
	}

	if _, err := l.LoadFromURL(context.Background(), srv.URL+"/missing.tgz"); err == nil {
		t.Error("expected error for HTTP 404")
	}
}

func TestLoadPackageFromCache(t *testing.T) {
	base := t.TempDir()
	content := filepath.Join(base, "example.fhir.core#1.0.0", "package")
	if err := os.MkdirAll(content, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, body := range map[string]string{
		"package.json":                      testManifest,
		"StructureDefinition-Patient.json":  testPatientSD,
		"SearchParameter-Patient-name.json": testNameSP,
	} {
		if err := os.WriteFile(filepath.Join(content, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	l := NewPackageLoader(base)
	if l.BasePath() != base {
		t.Errorf("BasePath() = %q", l.BasePath())
	}

	pkg, err := l.Load(context.Background(), "example.fhir.core#1.0.0")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(pkg.Resources) != 2 {
		t.Errorf("len(Resources) = %d, want 2", len(pkg.Resources))
	}
	// Files are read in name order.
	if pkg.Resources[0].ResourceType != "SearchParameter" {
		t.Errorf("Resources[0] = %s, want SearchParameter", pkg.Resources[0].ResourceType)
	}

	pkgs, err := l.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() error = %v", err)
	}
	if len(pkgs) != 1 || pkgs[0] != "example.fhir.core#1.0.0" {
		t.Errorf("ListPackages() = %v", pkgs)
	}

	if _, err := l.Load(context.Background(), "example.fhir.core"); err == nil {
		t.Error("expected error for spec without version")
	}
	if _, err := l.LoadPackage("missing", "0.0.1"); err == nil {
		t.Error("expected error for missing package")
	}

	svc := NewInMemoryProfileService()
	n, err := svc.LoadPackage(pkg)
	if err != nil {
		t.Fatalf("LoadPackage() error = %v", err)
	}
	if n != 1 {
		t.Errorf("loaded = %d, want 1", n)
	}
}

func TestLoadVersionUnknown(t *testing.T) {
	if _, err := NewPackageLoader(t.TempDir()).LoadVersion("9.9.9"); err == nil {
		t.Error("expected error for unknown version")
	}
	if _, err := NewPackageLoader(t.TempDir()).LoadVersion("4.0.1"); err == nil {
		t.Error("expected error when core package is missing")
	}
}
