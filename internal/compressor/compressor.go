// Package compressor is the default content transform behind the packager:
// script and stylesheet concatenation with optional minification, image
// embedding for the data: URI and MHTML stylesheet variants, and template
// compilation into a namespaced script.
package compressor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/core"
)

const (
	mediaJS  = "application/javascript"
	mediaCSS = "text/css"

	// DefaultMaxEmbedSize is the largest asset inlined into a stylesheet.
	DefaultMaxEmbedSize = 32 * 1024
)

// Options configure a Compressor.
type Options struct {
	// Minify runs the concatenated output through the minifier.
	Minify bool

	// PublicRoot resolves server-absolute url() references to files.
	PublicRoot string

	TemplateFunction  string
	TemplateNamespace string
	TemplateExtension string

	// MaxEmbedSize caps inlined assets; zero means DefaultMaxEmbedSize.
	MaxEmbedSize int64
}

// Compressor implements core.Compressor.
type Compressor struct {
	opts Options
	m    *minify.M
}

var _ core.Compressor = (*Compressor)(nil)

// New creates a Compressor.
func New(opts Options) *Compressor {
	if opts.MaxEmbedSize <= 0 {
		opts.MaxEmbedSize = DefaultMaxEmbedSize
	}
	if opts.TemplateNamespace == "" {
		opts.TemplateNamespace = config.DefaultTemplateNamespace
	}
	if opts.TemplateExtension == "" {
		opts.TemplateExtension = config.DefaultTemplateExtension
	}
	m := minify.New()
	m.AddFunc(mediaCSS, css.Minify)
	m.AddFunc(mediaJS, js.Minify)
	return &Compressor{opts: opts, m: m}
}

// FromSettings creates a Compressor for loaded settings.
func FromSettings(s *config.Settings) core.Compressor {
	return New(Options{
		Minify:            s.CompressAssets,
		PublicRoot:        s.PublicRoot,
		TemplateFunction:  s.TemplateFunction,
		TemplateNamespace: s.TemplateNamespace,
		TemplateExtension: s.TemplateExtension,
	})
}

// CompressScript concatenates the script sources in order. Template files
// among them are compiled and appended after the scripts.
func (c *Compressor) CompressScript(paths []string) ([]byte, error) {
	var scripts, templates []string
	for _, p := range paths {
		if c.isTemplate(p) {
			templates = append(templates, p)
		} else {
			scripts = append(scripts, p)
		}
	}

	out, err := concat(scripts)
	if err != nil {
		return nil, err
	}
	if len(templates) > 0 {
		compiled, err := c.compileTemplates(templates)
		if err != nil {
			return nil, err
		}
		out = append(out, compiled...)
	}
	if !c.opts.Minify {
		return out, nil
	}
	return c.minify(mediaJS, out)
}

// CompressStyle concatenates the stylesheet sources, rewriting relative
// url() references to server-absolute ones. The data: URI and MHTML
// variants inline small local assets; param is the absolute URL of the
// MHTML file itself.
func (c *Compressor) CompressStyle(paths []string, variant core.Variant, param string) ([]byte, error) {
	if variant == core.VariantLegacyFallback && param == "" {
		return nil, fmt.Errorf("mhtml variant requires its asset URL")
	}
	var buf bytes.Buffer
	emb := newEmbedder(c.opts, variant, param)
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		rewritten, err := emb.rewrite(p, data)
		if err != nil {
			return nil, err
		}
		buf.Write(rewritten)
		buf.WriteByte('\n')
	}

	out := buf.Bytes()
	if c.opts.Minify {
		var err error
		if out, err = c.minify(mediaCSS, out); err != nil {
			return nil, err
		}
	}
	if variant == core.VariantLegacyFallback {
		// The header is a comment; it must be added after minification.
		out = append(emb.mhtmlHeader(), out...)
	}
	return out, nil
}

// CompileTemplates compiles template sources into a script assigning each
// template to the configured namespace.
func (c *Compressor) CompileTemplates(paths []string) ([]byte, error) {
	return c.compileTemplates(paths)
}

func (c *Compressor) isTemplate(path string) bool {
	return strings.HasSuffix(path, "."+c.opts.TemplateExtension)
}

func (c *Compressor) minify(media string, in []byte) ([]byte, error) {
	out, err := c.m.Bytes(media, in)
	if err != nil {
		return nil, fmt.Errorf("minify %s: %w", media, err)
	}
	return out, nil
}

func concat(paths []string) ([]byte, error) {
	var buf bytes.Buffer
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Base(p), err)
		}
		buf.Write(data)
		if len(data) > 0 && data[len(data)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}
