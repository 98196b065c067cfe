package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/davidrichards/ram/internal/core"
)

// file is the on-disk manifest shape. Every scalar is a pointer so the
// loader can tell "absent" from "zero" when layering overrides.
type file struct {
	values `yaml:",inline"`

	// Templates is the removed standalone templates section.
	Templates *yaml.Node `yaml:"templates"`

	Development *values `yaml:"development"`
	Staging     *values `yaml:"staging"`
	Production  *values `yaml:"production"`
}

type values struct {
	PackagePath       *string       `yaml:"package_path"`
	PublicRoot        *string       `yaml:"public_root"`
	EmbedAssets       *embedValue   `yaml:"embed_assets"`
	EmbedImages       *embedValue   `yaml:"embed_images"`
	CompressAssets    *bool         `yaml:"compress_assets"`
	GzipAssets        *bool         `yaml:"gzip_assets"`
	TemplateFunction  *flexString   `yaml:"template_function"`
	TemplateNamespace *flexString   `yaml:"template_namespace"`
	TemplateExtension *flexString   `yaml:"template_extension"`
	Javascripts       core.Manifest `yaml:"javascripts"`
	Stylesheets       core.Manifest `yaml:"stylesheets"`
}

func (f *file) overridesFor(env Environment) *values {
	switch env {
	case Development:
		return f.Development
	case Staging:
		return f.Staging
	case Production:
		return f.Production
	}
	return nil
}

// embedValue accepts true, false, "datauri" and "mhtml". true enables both
// embedded variants, the same as "mhtml".
type embedValue string

func (e *embedValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: embed_assets must be a boolean or one of \"datauri\", \"mhtml\"", node.Line)
	}
	var b bool
	if node.Tag == "!!bool" {
		if err := node.Decode(&b); err != nil {
			return err
		}
		if b {
			*e = embedValue(core.EmbedMHTML)
		} else {
			*e = embedValue(core.EmbedNone)
		}
		return nil
	}
	switch v := strings.ToLower(strings.TrimSpace(node.Value)); v {
	case "", "none", "false":
		*e = embedValue(core.EmbedNone)
	case string(core.EmbedDataURI):
		*e = embedValue(core.EmbedDataURI)
	case "true", string(core.EmbedMHTML):
		*e = embedValue(core.EmbedMHTML)
	default:
		return fmt.Errorf("line %d: invalid embed_assets value %q", node.Line, node.Value)
	}
	return nil
}

// flexString is a string that may also be written as a boolean. false means
// empty; true means "use the default".
type flexString struct {
	value   string
	useDflt bool
}

func (f *flexString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a string or boolean", node.Line)
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*f = flexString{useDflt: b}
		return nil
	}
	*f = flexString{value: node.Value}
	return nil
}

func (f *flexString) orDefault(dflt string) string {
	if f.useDflt {
		return dflt
	}
	return f.value
}
