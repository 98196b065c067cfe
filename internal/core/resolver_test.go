package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davidrichards/ram/internal/trace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// TestResolve_StrictlySorted verifies that matches are sorted regardless of
// the order the filesystem returns them in.
func TestResolve_StrictlySorted(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{"zebra.js", "apple.js", "mango.js", "banana.js"}
	for _, name := range files {
		writeFile(t, filepath.Join(tmpDir, name), "content-"+name)
	}

	resolver := NewGlobResolver(tmpDir, nil)
	result, err := resolver.Resolve("*.js")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(result) != 4 {
		t.Fatalf("expected 4 paths, got %d", len(result))
	}

	expectedOrder := []string{"apple.js", "banana.js", "mango.js", "zebra.js"}
	for i, expected := range expectedOrder {
		actual := filepath.Base(result[i])
		if actual != expected {
			t.Errorf("position %d: expected %q, got %q", i, expected, actual)
		}
	}
}

func TestResolve_RelativePatternsJoinRoot(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "src", "a.js"), "a")

	result, err := NewGlobResolver(tmpDir, nil).Resolve("src/*.js")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result) != 1 || result[0] != filepath.Join(tmpDir, "src", "a.js") {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestResolve_AbsolutePatternIgnoresRoot(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "lib", "x.css"), "x")

	result, err := NewGlobResolver("/does/not/exist", nil).Resolve(filepath.Join(tmpDir, "lib", "*.css"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("expected 1 match, got %v", result)
	}
}

func TestResolve_DoubleStarRecurses(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "app", "a.js"), "a")
	writeFile(t, filepath.Join(tmpDir, "app", "views", "b.js"), "b")
	writeFile(t, filepath.Join(tmpDir, "app", "views", "deep", "c.js"), "c")
	writeFile(t, filepath.Join(tmpDir, "app", "views", "deep", "c.css"), "c")

	result, err := NewGlobResolver(tmpDir, nil).Resolve("app/**/*.js")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 matches, got %v", result)
	}
}

func TestResolve_CharacterClass(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, filepath.Join(tmpDir, "a1.js"), "")
	writeFile(t, filepath.Join(tmpDir, "a2.js"), "")
	writeFile(t, filepath.Join(tmpDir, "a3.js"), "")

	result, err := NewGlobResolver(tmpDir, nil).Resolve("a[12].js")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 matches, got %v", result)
	}
}

// TestResolve_SkipsDirectories verifies that directories are not included.
func TestResolve_SkipsDirectories(t *testing.T) {
	tmpDir := t.TempDir()

	if err := os.Mkdir(filepath.Join(tmpDir, "subdir.js"), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	writeFile(t, filepath.Join(tmpDir, "file.js"), "content")

	result, err := NewGlobResolver(tmpDir, nil).Resolve("*.js")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 path (file only), got %d", len(result))
	}
}

func TestResolve_NoMatchesWarnsWithoutError(t *testing.T) {
	rec := trace.NewRecorder()
	result, err := NewGlobResolver(t.TempDir(), rec).Resolve("nothing/*.js")
	if err != nil {
		t.Fatalf("expected no error for empty match, got %v", err)
	}
	if len(result) != 0 {
		t.Fatalf("expected no paths, got %v", result)
	}

	events := rec.Snapshot()
	if len(events) != 1 || events[0].Kind != trace.EventGlobEmpty || events[0].Pattern != "nothing/*.js" {
		t.Fatalf("expected one GlobEmpty event, got %+v", events)
	}
}

func TestResolve_MalformedPatternErrors(t *testing.T) {
	if _, err := NewGlobResolver(t.TempDir(), nil).Resolve("[unclosed"); err == nil {
		t.Fatalf("expected error for malformed pattern")
	}
}
