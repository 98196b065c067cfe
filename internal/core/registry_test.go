package core

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func newTestRegistry(t *testing.T, root string, typ ArtifactType, manifest Manifest) *Registry {
	t.Helper()
	mapper := URLMapper{
		AssetRoot:         root,
		PublicRoot:        filepath.Join(root, "public"),
		PackagePath:       "assets",
		TemplateExtension: "jst",
	}
	reg, err := NewRegistry(typ, manifest, NewGlobResolver(root, nil), mapper)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// TestRegistry_PatternOrderPreserved verifies that paths are sorted only
// within a pattern, and pattern order decides the order across patterns.
func TestRegistry_PatternOrderPreserved(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "y.js"), "y")
	writeFile(t, filepath.Join(root, "a", "x.js"), "x")

	reg := newTestRegistry(t, root, Script, Manifest{"app": {"b/*.js", "a/*.js"}})
	pkg, err := reg.Lookup("app")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	expected := []string{filepath.Join(root, "b", "y.js"), filepath.Join(root, "a", "x.js")}
	if !reflect.DeepEqual(pkg.Paths, expected) {
		t.Fatalf("unexpected order\nexpected=%v\nactual  =%v", expected, pkg.Paths)
	}
}

func TestRegistry_DeduplicatesAcrossPatternsKeepingFirstSeen(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "js", "core.js"), "")
	writeFile(t, filepath.Join(root, "js", "a.js"), "")
	writeFile(t, filepath.Join(root, "js", "z.js"), "")

	reg := newTestRegistry(t, root, Script, Manifest{
		"app": {"js/core.js", "js/*.js", "js/core.js"},
	})
	pkg, _ := reg.Lookup("app")

	expected := []string{
		filepath.Join(root, "js", "core.js"),
		filepath.Join(root, "js", "a.js"),
		filepath.Join(root, "js", "z.js"),
	}
	if !reflect.DeepEqual(pkg.Paths, expected) {
		t.Fatalf("unexpected paths\nexpected=%v\nactual  =%v", expected, pkg.Paths)
	}
}

func TestRegistry_URLsStripAssetRootAndPublicDiff(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "css", "one.css"), "")
	writeFile(t, filepath.Join(root, "vendor", "two.css"), "")

	reg := newTestRegistry(t, root, Style, Manifest{"site": {"public/css/*.css", "vendor/*.css"}})
	pkg, _ := reg.Lookup("site")

	expected := []string{"/css/one.css", "/vendor/two.css"}
	if !reflect.DeepEqual(pkg.URLs, expected) {
		t.Fatalf("unexpected urls\nexpected=%v\nactual  =%v", expected, pkg.URLs)
	}
}

func TestRegistry_TemplatesCollapseIntoDynamicURL(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "public", "js", "app.js"), "")
	writeFile(t, filepath.Join(root, "public", "js", "views", "list.jst"), "")
	writeFile(t, filepath.Join(root, "public", "js", "views", "item.jst"), "")

	reg := newTestRegistry(t, root, Script, Manifest{"app": {"public/js/*.js", "public/js/views/*.jst"}})
	pkg, _ := reg.Lookup("app")

	if len(pkg.Paths) != 3 {
		t.Fatalf("expected 3 source paths, got %v", pkg.Paths)
	}
	expected := []string{"/js/app.js", "/assets/app.jst"}
	if !reflect.DeepEqual(pkg.URLs, expected) {
		t.Fatalf("unexpected urls\nexpected=%v\nactual  =%v", expected, pkg.URLs)
	}
	if got := pkg.TemplatePaths("jst"); len(got) != 2 {
		t.Fatalf("expected 2 template paths, got %v", got)
	}
}

func TestRegistry_UnknownPackageCarriesNameAndType(t *testing.T) {
	reg := newTestRegistry(t, t.TempDir(), Style, Manifest{})

	_, err := reg.Lookup("ghost")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Fatalf("expected ErrPackageNotFound, got %v", err)
	}
	var nf *PackageNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *PackageNotFoundError, got %T", err)
	}
	if nf.Name != "ghost" || nf.Type != Style {
		t.Fatalf("unexpected error fields: %+v", nf)
	}
	if !strings.Contains(err.Error(), `"ghost" CSS package`) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRegistry_EmptyPatternContributesNothing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.js"), "")

	reg := newTestRegistry(t, root, Script, Manifest{"app": {"missing/*.js", "*.js"}, "empty": nil})
	pkg, _ := reg.Lookup("app")
	if len(pkg.Paths) != 1 {
		t.Fatalf("expected 1 path, got %v", pkg.Paths)
	}
	empty, err := reg.Lookup("empty")
	if err != nil {
		t.Fatalf("Lookup empty: %v", err)
	}
	if len(empty.Paths) != 0 {
		t.Fatalf("expected no paths, got %v", empty.Paths)
	}

	if names := reg.Names(); !reflect.DeepEqual(names, []string{"app", "empty"}) {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestURLMapper_RequiresPathBoundary(t *testing.T) {
	m := URLMapper{AssetRoot: "/srv/app", PublicRoot: "/srv/app/public"}
	if got := m.URL("/srv/apple/x.js"); got != "/srv/apple/x.js" {
		t.Fatalf("expected path outside root to be unchanged, got %q", got)
	}
	if got := m.URL("/srv/app/publicity/x.js"); got != "/publicity/x.js" {
		t.Fatalf("expected public diff to require a boundary, got %q", got)
	}
	if got := m.URL("/srv/app/public/x.js"); got != "/x.js" {
		t.Fatalf("unexpected url %q", got)
	}
}
