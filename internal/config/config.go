package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/davidrichards/ram/internal/core"
)

// Environment selects an override block of the manifest.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

const (
	DefaultConfigPath        = "config/assets.yml"
	DefaultPublicRoot        = "public"
	DefaultPackagePath       = "assets"
	DefaultTemplateFunction  = "template"
	DefaultTemplateNamespace = "window.JST"
	DefaultTemplateExtension = "jst"
)

// Settings is the resolved configuration of one manifest load.
type Settings struct {
	// ConfigPath is the absolute manifest path; its mtime invalidates every package.
	ConfigPath string

	// AssetRoot is the directory relative patterns are resolved against.
	AssetRoot string

	// PublicRoot is the absolute served document root.
	PublicRoot string

	// PackagePath is the directory under PublicRoot (and URL path) of packaged output.
	PackagePath string

	Embed          core.EmbedMode
	CompressAssets bool
	GzipAssets     bool

	// TemplateFunction compiles template sources at runtime; empty means
	// templates are emitted as plain strings.
	TemplateFunction  string
	TemplateNamespace string
	TemplateExtension string

	Javascripts core.Manifest
	Stylesheets core.Manifest

	Environment Environment
}

// Options control how a manifest file is turned into Settings.
type Options struct {
	// AssetRoot defaults to the process working directory.
	AssetRoot string

	// PublicRoot overrides the manifest's public_root when set.
	PublicRoot string

	// Environment selects the override block applied after the base values.
	Environment Environment
}

// Default returns Settings with every default applied and empty manifests.
func Default() *Settings {
	return &Settings{
		PackagePath:       DefaultPackagePath,
		CompressAssets:    true,
		GzipAssets:        true,
		TemplateFunction:  DefaultTemplateFunction,
		TemplateNamespace: DefaultTemplateNamespace,
		TemplateExtension: DefaultTemplateExtension,
		Javascripts:       core.Manifest{},
		Stylesheets:       core.Manifest{},
	}
}

// OutputDir is the default precache directory: {PublicRoot}/{PackagePath}.
func (s *Settings) OutputDir() string {
	return filepath.Join(s.PublicRoot, filepath.FromSlash(s.PackagePath))
}

// Manifest returns the package section for an artifact type.
func (s *Settings) Manifest(typ core.ArtifactType) core.Manifest {
	if typ == core.Style {
		return s.Stylesheets
	}
	return s.Javascripts
}

// URLMapper returns the path -> URL mapping for these settings.
func (s *Settings) URLMapper() core.URLMapper {
	return core.URLMapper{
		AssetRoot:         s.AssetRoot,
		PublicRoot:        s.PublicRoot,
		PackagePath:       s.PackagePath,
		TemplateExtension: s.TemplateExtension,
	}
}

// Load reads the manifest at path.
//
// A missing file is ErrMissingConfiguration; a "templates" section is
// ErrDeprecated; unknown keys and mistyped values are decode errors.
func Load(path string, opts Options) (*Settings, error) {
	if strings.TrimSpace(path) == "" {
		return nil, core.MissingConfigurationf("no configuration file given")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.MissingConfigurationf("could not find the %q configuration file", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	raw, err := decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if raw.Templates != nil {
		return nil, core.Deprecationf("separate packages for templates are no longer supported; " +
			"fold your templates into the appropriate 'javascripts' package instead")
	}

	s := Default()
	s.Environment = opts.Environment
	s.apply(&raw.values)
	if overrides := raw.overridesFor(opts.Environment); overrides != nil {
		s.apply(overrides)
	}
	s.expandVariables()

	if err := s.resolvePaths(path, opts); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadSoft is Load that tolerates a missing file, returning (nil, false, nil).
func LoadSoft(path string, opts Options) (*Settings, bool, error) {
	if strings.TrimSpace(path) == "" {
		return nil, false, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	s, err := Load(path, opts)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

func decode(path string, data []byte) (*file, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// YAML is a superset of JSON once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}

	var raw file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return &raw, nil
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &raw, nil
}

func (s *Settings) apply(v *values) {
	if v.PackagePath != nil {
		s.PackagePath = strings.Trim(*v.PackagePath, "/")
	}
	if v.PublicRoot != nil {
		s.PublicRoot = *v.PublicRoot
	}
	// embed_images is the deprecated spelling; it only fills in when
	// embed_assets is unset or disabled.
	switch {
	case v.EmbedAssets != nil && core.EmbedMode(*v.EmbedAssets) != core.EmbedNone:
		s.Embed = core.EmbedMode(*v.EmbedAssets)
	case v.EmbedImages != nil:
		s.Embed = core.EmbedMode(*v.EmbedImages)
	case v.EmbedAssets != nil:
		s.Embed = core.EmbedNone
	}
	if v.CompressAssets != nil {
		s.CompressAssets = *v.CompressAssets
	}
	if v.GzipAssets != nil {
		s.GzipAssets = *v.GzipAssets
	}
	if v.TemplateFunction != nil {
		s.TemplateFunction = v.TemplateFunction.orDefault(DefaultTemplateFunction)
	}
	if v.TemplateNamespace != nil {
		s.TemplateNamespace = v.TemplateNamespace.orDefault(DefaultTemplateNamespace)
	}
	if v.TemplateExtension != nil {
		ext := v.TemplateExtension.orDefault(DefaultTemplateExtension)
		s.TemplateExtension = strings.TrimPrefix(ext, ".")
	}
	if v.Javascripts != nil {
		s.Javascripts = v.Javascripts
	}
	if v.Stylesheets != nil {
		s.Stylesheets = v.Stylesheets
	}
}

func (s *Settings) resolvePaths(configPath string, opts Options) error {
	assetRoot := opts.AssetRoot
	if assetRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving asset root: %w", err)
		}
		assetRoot = wd
	}
	assetRoot, err := filepath.Abs(assetRoot)
	if err != nil {
		return fmt.Errorf("resolving asset root: %w", err)
	}
	s.AssetRoot = assetRoot

	if abs, err := filepath.Abs(configPath); err == nil {
		s.ConfigPath = abs
	} else {
		s.ConfigPath = configPath
	}

	public := s.PublicRoot
	if opts.PublicRoot != "" {
		public = opts.PublicRoot
	}
	if public == "" {
		public = DefaultPublicRoot
	}
	if !filepath.IsAbs(public) {
		public = filepath.Join(assetRoot, public)
	}
	s.PublicRoot = filepath.Clean(public)
	return nil
}

// Validate checks the settings for errors.
func (s *Settings) Validate() error {
	var errs []error

	if s.PackagePath == "" {
		errs = append(errs, fmt.Errorf("package_path must not be empty"))
	}
	if s.TemplateExtension == "" {
		errs = append(errs, fmt.Errorf("template_extension must not be empty"))
	}
	switch s.Embed {
	case core.EmbedNone, core.EmbedDataURI, core.EmbedMHTML:
	default:
		errs = append(errs, fmt.Errorf("invalid embed_assets value %q", s.Embed))
	}
	switch s.Environment {
	case "", Development, Staging, Production:
	default:
		errs = append(errs, fmt.Errorf("invalid environment: %s", s.Environment))
	}
	for _, section := range []struct {
		name     string
		manifest core.Manifest
	}{{"javascripts", s.Javascripts}, {"stylesheets", s.Stylesheets}} {
		for pkg, patterns := range section.manifest {
			if strings.TrimSpace(pkg) == "" {
				errs = append(errs, fmt.Errorf("%s: package name must not be empty", section.name))
			}
			for i, p := range patterns {
				if strings.TrimSpace(p) == "" {
					errs = append(errs, fmt.Errorf("%s.%s[%d]: pattern must not be empty", section.name, pkg, i))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// expandVariables expands ${VAR} and ${VAR:-default} in paths and patterns.
func (s *Settings) expandVariables() {
	s.PublicRoot = expandVars(s.PublicRoot)
	s.PackagePath = expandVars(s.PackagePath)
	for _, m := range []core.Manifest{s.Javascripts, s.Stylesheets} {
		for name, patterns := range m {
			expanded := make([]string, len(patterns))
			for i, p := range patterns {
				expanded[i] = expandVars(p)
			}
			m[name] = expanded
		}
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}
