package compressor

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidrichards/ram/internal/config"
)

// templateJS defines the micro-templating function emitted when the
// configured template function is the built-in one.
//
//go:embed template.js
var templateJS string

var templateEscaper = strings.NewReplacer(
	`\`, `\\`,
	"'", `\'`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

func (c *Compressor) compileTemplates(paths []string) ([]byte, error) {
	ns := c.opts.TemplateNamespace
	base := commonDir(paths)

	var b strings.Builder
	b.WriteString("(function(){\n")
	fmt.Fprintf(&b, "%s = %s || {};\n", ns, ns)
	if c.opts.TemplateFunction == config.DefaultTemplateFunction {
		b.WriteString(templateJS)
		if !strings.HasSuffix(templateJS, "\n") {
			b.WriteByte('\n')
		}
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filepath.Base(p), err)
		}
		name := c.templateName(p, base)
		escaped := templateEscaper.Replace(string(data))
		if c.opts.TemplateFunction == "" {
			fmt.Fprintf(&b, "%s['%s'] = '%s';\n", ns, name, escaped)
		} else {
			fmt.Fprintf(&b, "%s['%s'] = %s('%s');\n", ns, name, c.opts.TemplateFunction, escaped)
		}
	}
	b.WriteString("})();\n")
	return []byte(b.String()), nil
}

// templateName is the path relative to base, slash separated, without the
// template extension.
func (c *Compressor) templateName(path, base string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, "."+c.opts.TemplateExtension)
}

// commonDir returns the deepest directory containing every path. A single
// path yields its own directory.
func commonDir(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	common := strings.Split(filepath.Dir(paths[0]), string(filepath.Separator))
	for _, p := range paths[1:] {
		parts := strings.Split(filepath.Dir(p), string(filepath.Separator))
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	dir := strings.Join(common, string(filepath.Separator))
	if dir == "" && len(paths[0]) > 0 && paths[0][0] == filepath.Separator {
		return string(filepath.Separator)
	}
	return dir
}
