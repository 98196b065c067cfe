package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/davidrichards/ram/internal/compressor"
	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/packager"
)

const manifest = `
compress_assets: false
embed_assets: mhtml
template_function: false
javascripts:
  app:
    - public/js/*.js
    - public/js/*.jst
stylesheets:
  site:
    - public/css/*.css
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	configPath := filepath.Join(root, "config", "assets.yml")
	writeFile(t, configPath, manifest)
	writeFile(t, filepath.Join(root, "public", "js", "a.js"), "var a = 1;")
	writeFile(t, filepath.Join(root, "public", "js", "row.jst"), "<li></li>")
	writeFile(t, filepath.Join(root, "public", "css", "s.css"), "body{color:red}")

	holder := packager.NewHolder(packager.HolderConfig{
		ConfigPath:    configPath,
		Load:          config.Options{AssetRoot: root},
		NewCompressor: compressor.FromSettings,
	})
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(holder, logger, Options{}), configPath
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_ServesScriptPackage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/assets/app.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "var a = 1;\n") || !strings.Contains(body, "window.JST['row'] = '<li></li>';") {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestServer_ServesTemplates(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/assets/app.jst")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "var a = 1;") {
		t.Fatalf("template endpoint must not include scripts")
	}
}

func TestServer_ServesStyleVariants(t *testing.T) {
	s, _ := newTestServer(t)

	for _, target := range []string{"/assets/site.css", "/assets/site-datauri.css"} {
		rec := get(t, s, target)
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "body{color:red}") {
			t.Fatalf("%s: unexpected response %d %q", target, rec.Code, rec.Body)
		}
	}

	for _, target := range []string{
		"http://example.com/assets/site-legacyfallback.css?1700000000",
		"http://example.com/assets/site-mhtml.css?1700000000",
	} {
		rec := get(t, s, target)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", target, rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "multipart/related") {
			t.Fatalf("%s: expected MHTML header, got %q", target, rec.Body)
		}
	}
}

func TestServer_UnknownPackageIs404(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/assets/ghost.css")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != "package_not_found" || !strings.Contains(resp.Error, `"ghost" CSS`) {
		t.Fatalf("unexpected error response %+v", resp)
	}
}

func TestServer_OutsidePackagePathIs404(t *testing.T) {
	s, _ := newTestServer(t)
	for _, target := range []string{"/other/app.js", "/assets/app.txt", "/assets/nested/app.js"} {
		if rec := get(t, s, target); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
	}
}

func TestServer_HealthCheck(t *testing.T) {
	s, _ := newTestServer(t)
	if rec := get(t, s, "/health-check"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestServer_PicksUpManifestChanges(t *testing.T) {
	s, configPath := newTestServer(t)
	if rec := get(t, s, "/assets/extra.css"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the manifest change, got %d", rec.Code)
	}

	writeFile(t, configPath, manifest+"  extra: [public/css/*.css]\n")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(configPath, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if rec := get(t, s, "/assets/extra.css"); rec.Code != http.StatusOK {
		t.Fatalf("expected the new package to be served, got %d: %s", rec.Code, rec.Body)
	}
}

func TestSplitVariant(t *testing.T) {
	cases := map[string]string{
		"site":                "site|plain",
		"site-datauri":        "site|datauri",
		"site-legacyfallback": "site|legacyfallback",
		"site-mhtml":          "site|legacyfallback",
		"-mhtml":              "-mhtml|plain",
	}
	for in, expected := range cases {
		v, pkg := splitVariant(in)
		if got := pkg + "|" + v.String(); got != expected {
			t.Errorf("%s: expected %s, got %s", in, expected, got)
		}
	}
}
