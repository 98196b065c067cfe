package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// EmbedMode selects which embedded-image stylesheet variants are produced.
type EmbedMode string

const (
	// EmbedNone disables asset embedding.
	EmbedNone EmbedMode = ""

	// EmbedDataURI produces only the data: URI variant.
	EmbedDataURI EmbedMode = "datauri"

	// EmbedMHTML produces the data: URI variant and the MHTML legacy fallback.
	EmbedMHTML EmbedMode = "mhtml"
)

// Enabled reports whether any embedded variant is produced.
func (m EmbedMode) Enabled() bool { return m != EmbedNone }

// LegacyFallback reports whether the MHTML variant is produced.
func (m EmbedMode) LegacyFallback() bool { return m == EmbedMHTML }

// VariantDescriptor describes one output file a package must produce.
type VariantDescriptor struct {
	Variant  Variant
	Filename string

	// RequiresBaseURL is set for variants whose content references
	// themselves by absolute URL.
	RequiresBaseURL bool
}

// BoundVariant is a descriptor with its build parameters resolved.
type BoundVariant struct {
	VariantDescriptor

	// Param is the extra compressor argument (the absolute asset URL for
	// the legacy fallback, empty otherwise).
	Param string

	// Mtime is the modification time every written file receives.
	Mtime time.Time
}

// VariantPlanner decides which variants a package produces.
type VariantPlanner struct {
	Embed       EmbedMode
	Gzip        bool
	PackagePath string
}

// Plan returns the ordered variant list for a package. Scripts always get
// exactly one plain variant.
func (p *VariantPlanner) Plan(name string, typ ArtifactType) []VariantDescriptor {
	ext := typ.Extension()
	plan := []VariantDescriptor{{Variant: VariantPlain, Filename: Filename(name, ext, VariantPlain)}}
	if typ != Style || !p.Embed.Enabled() {
		return plan
	}
	plan = append(plan, VariantDescriptor{Variant: VariantDataURI, Filename: Filename(name, ext, VariantDataURI)})
	if p.Embed.LegacyFallback() {
		plan = append(plan, VariantDescriptor{
			Variant:         VariantLegacyFallback,
			Filename:        Filename(name, ext, VariantLegacyFallback),
			RequiresBaseURL: true,
		})
	}
	return plan
}

// RequiresBaseURL reports whether any package of typ needs a base URL.
func (p *VariantPlanner) RequiresBaseURL(typ ArtifactType) bool {
	return typ == Style && p.Embed.LegacyFallback()
}

// ExpectedFiles lists every file a fresh build of the package leaves in
// outputDir: each planned variant plus its gzip sibling when gzip is on.
func (p *VariantPlanner) ExpectedFiles(outputDir, name string, typ ArtifactType) []string {
	plan := p.Plan(name, typ)
	files := make([]string, 0, len(plan)*2)
	for _, d := range plan {
		primary := filepath.Join(outputDir, d.Filename)
		files = append(files, primary)
		if p.Gzip {
			files = append(files, primary+".gz")
		}
	}
	return files
}

// Bind resolves a descriptor's parameters. mtime must already be computed
// from the package sources; the legacy fallback embeds it in its own URL,
// so a missing baseURL is a configuration error.
func (p *VariantPlanner) Bind(name string, typ ArtifactType, d VariantDescriptor, baseURL string, mtime time.Time) (BoundVariant, error) {
	bound := BoundVariant{VariantDescriptor: d, Mtime: mtime}
	if !d.RequiresBaseURL {
		return bound, nil
	}
	if strings.TrimSpace(baseURL) == "" {
		return BoundVariant{}, MissingConfigurationf("a base URL is required in order to generate MHTML")
	}
	if mtime.IsZero() {
		return BoundVariant{}, fmt.Errorf("binding %s variant of %q: mtime is required", d.Variant, name)
	}
	bound.Param = strings.TrimSuffix(baseURL, "/") + AssetURL(p.PackagePath, name, typ.Extension(), d.Variant, mtime)
	return bound, nil
}
