package core

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Manifest maps package names to their ordered glob patterns for one
// artifact type.
type Manifest map[string][]string

// Package is a resolved, manifest-declared bundle of source files.
//
// A Package is immutable once its Registry is built; callers must not
// modify Paths or URLs.
type Package struct {
	Name string
	Type ArtifactType

	// Paths is the ordered, deduplicated list of source files. Sorted
	// within each pattern, concatenated in pattern order.
	Paths []string

	// URLs is the list of server-relative URLs for serving the sources
	// individually. Template files collapse into one synthesized URL.
	URLs []string
}

// HasTemplates reports whether any source path has the template extension.
func (p *Package) HasTemplates(templateExt string) bool {
	return len(p.TemplatePaths(templateExt)) > 0
}

// TemplatePaths returns the source paths carrying the template extension.
func (p *Package) TemplatePaths(templateExt string) []string {
	if templateExt == "" {
		return nil
	}
	var out []string
	for _, path := range p.Paths {
		if strings.HasSuffix(path, "."+templateExt) {
			out = append(out, path)
		}
	}
	return out
}

// URLMapper converts source paths under the asset root into public URLs.
type URLMapper struct {
	// AssetRoot is stripped from every path.
	AssetRoot string

	// PublicRoot is the served document root. When it lies under
	// AssetRoot, the difference between them is stripped too.
	PublicRoot string

	// PackagePath is the URL directory of packaged output ("assets").
	PackagePath string

	// TemplateExtension identifies template-dialect files ("jst").
	TemplateExtension string
}

// URL returns the server-relative URL for path.
func (m URLMapper) URL(path string) string {
	p := filepath.ToSlash(path)
	root := strings.TrimSuffix(filepath.ToSlash(m.AssetRoot), "/")
	if root == "" || !hasPathPrefix(p, root) {
		return p
	}
	rest := p[len(root):]

	public := strings.TrimSuffix(filepath.ToSlash(m.PublicRoot), "/")
	if hasPathPrefix(public, root) {
		diff := public[len(root):]
		if diff != "" && hasPathPrefix(rest, diff) {
			rest = rest[len(diff):]
		}
	}
	if rest == "" {
		return "/"
	}
	return rest
}

// TemplateURL is the synthesized dynamic URL serving a package's compiled templates.
func (m URLMapper) TemplateURL(pkg string) string {
	return "/" + strings.Trim(m.PackagePath, "/") + "/" + pkg + "." + m.TemplateExtension
}

func hasPathPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}

// Registry is the immutable name -> Package mapping for one artifact type.
//
// It is built once per loaded manifest; a manifest reload discards it.
type Registry struct {
	typ      ArtifactType
	packages map[string]*Package
	names    []string
}

// NewRegistry resolves every package in manifest.
//
// Per package the pattern list is deduplicated, each pattern is resolved in
// order, and the results are concatenated keeping the first occurrence of
// each path. That order is the byte order of concatenated output.
func NewRegistry(typ ArtifactType, manifest Manifest, resolver *GlobResolver, mapper URLMapper) (*Registry, error) {
	if resolver == nil {
		return nil, fmt.Errorf("nil resolver")
	}
	r := &Registry{
		typ:      typ,
		packages: make(map[string]*Package, len(manifest)),
		names:    make([]string, 0, len(manifest)),
	}

	for name := range manifest {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	for _, name := range r.names {
		paths, err := resolvePatterns(resolver, manifest[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s package %q: %w", typ, name, err)
		}
		r.packages[name] = &Package{
			Name:  name,
			Type:  typ,
			Paths: paths,
			URLs:  deriveURLs(name, paths, mapper),
		}
	}
	return r, nil
}

func resolvePatterns(resolver *GlobResolver, patterns []string) ([]string, error) {
	paths := []string{}
	seenPattern := make(map[string]struct{}, len(patterns))
	seenPath := make(map[string]struct{})

	for _, pattern := range patterns {
		if _, dup := seenPattern[pattern]; dup {
			continue
		}
		seenPattern[pattern] = struct{}{}

		matches, err := resolver.Resolve(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if _, dup := seenPath[m]; dup {
				continue
			}
			seenPath[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	return paths, nil
}

// deriveURLs maps paths to URLs. Template files are compiled on the fly
// into one script and are never served statically, so when any are present
// only the .js paths keep literal URLs, followed by the template URL.
func deriveURLs(name string, paths []string, mapper URLMapper) []string {
	hasTemplates := false
	if mapper.TemplateExtension != "" {
		for _, p := range paths {
			if strings.HasSuffix(p, "."+mapper.TemplateExtension) {
				hasTemplates = true
				break
			}
		}
	}

	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		if hasTemplates && !strings.HasSuffix(p, ".js") {
			continue
		}
		urls = append(urls, mapper.URL(p))
	}
	if hasTemplates {
		urls = append(urls, mapper.TemplateURL(name))
	}
	return urls
}

// Type returns the artifact type of every package in the registry.
func (r *Registry) Type() ArtifactType { return r.typ }

// Names returns the sorted package names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Has reports whether the registry declares name.
func (r *Registry) Has(name string) bool {
	_, ok := r.packages[name]
	return ok
}

// Lookup returns the named package or a *PackageNotFoundError.
func (r *Registry) Lookup(name string) (*Package, error) {
	if r != nil {
		if p, ok := r.packages[name]; ok {
			return p, nil
		}
	}
	var typ ArtifactType
	if r != nil {
		typ = r.typ
	}
	return nil, &PackageNotFoundError{Name: name, Type: typ}
}
