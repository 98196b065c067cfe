package compressor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/davidrichards/ram/internal/core"
)

var urlPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")\s]+)(['"]?)\s*\)`)

const mhtmlBoundary = "MHTML_MARK"

type mhtmlPart struct {
	location int
	mime     string
	body     []byte
}

// embedder rewrites url() references of one stylesheet variant. MHTML parts
// are shared across every file of the package, numbered by first use.
type embedder struct {
	opts    Options
	variant core.Variant
	param   string

	parts     []mhtmlPart
	locations map[string]int
}

func newEmbedder(opts Options, variant core.Variant, param string) *embedder {
	return &embedder{opts: opts, variant: variant, param: param, locations: map[string]int{}}
}

func (e *embedder) rewrite(cssPath string, data []byte) ([]byte, error) {
	var firstErr error
	out := urlPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		sub := urlPattern.FindSubmatch(match)
		quote, ref := string(sub[1]), string(sub[2])
		if isExternal(ref) {
			return match
		}
		file, suffix := e.resolve(cssPath, ref)

		if e.variant != core.VariantPlain {
			replacement, ok, err := e.embed(file)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return match
			}
			if ok {
				return []byte(`url("` + replacement + `")`)
			}
		}
		if strings.HasPrefix(ref, "/") {
			return match
		}
		if u, ok := e.publicURL(file); ok {
			return []byte("url(" + quote + u + suffix + quote + ")")
		}
		return match
	})
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func isExternal(ref string) bool {
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"data:", "mhtml:", "http:", "https:", "//", "#"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// resolve maps a url() reference to a file, returning any query or
// fragment suffix separately.
func (e *embedder) resolve(cssPath, ref string) (string, string) {
	path, suffix := ref, ""
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		path, suffix = ref[:i], ref[i:]
	}
	if strings.HasPrefix(path, "/") {
		return filepath.Join(e.opts.PublicRoot, filepath.FromSlash(path)), suffix
	}
	return filepath.Join(filepath.Dir(cssPath), filepath.FromSlash(path)), suffix
}

func (e *embedder) publicURL(file string) (string, bool) {
	if e.opts.PublicRoot == "" {
		return "", false
	}
	rel, err := filepath.Rel(e.opts.PublicRoot, file)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

// embed returns the inline reference for file, or ok=false when the file is
// missing, too large or not an image or font.
func (e *embedder) embed(file string) (string, bool, error) {
	info, err := os.Stat(file)
	if err != nil || info.IsDir() || info.Size() > e.opts.MaxEmbedSize {
		return "", false, nil
	}
	mt, err := mimetype.DetectFile(file)
	if err != nil {
		return "", false, fmt.Errorf("detect type of %s: %w", filepath.Base(file), err)
	}
	mime, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(mime, "image/") && !strings.HasPrefix(mime, "font/") {
		return "", false, nil
	}

	if e.variant == core.VariantLegacyFallback {
		loc, seen := e.locations[file]
		if !seen {
			body, err := os.ReadFile(file)
			if err != nil {
				return "", false, fmt.Errorf("read %s: %w", filepath.Base(file), err)
			}
			loc = len(e.parts) + 1
			e.locations[file] = loc
			e.parts = append(e.parts, mhtmlPart{location: loc, mime: mime, body: body})
		}
		return fmt.Sprintf("mhtml:%s!%d", e.param, loc), true, nil
	}

	body, err := os.ReadFile(file)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", filepath.Base(file), err)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(body), true, nil
}

// mhtmlHeader renders the multipart comment holding every embedded part.
func (e *embedder) mhtmlHeader() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "/*\r\nContent-Type: multipart/related; boundary=%q\r\n\r\n", mhtmlBoundary)
	for _, p := range e.parts {
		fmt.Fprintf(&b, "--%s\r\n", mhtmlBoundary)
		fmt.Fprintf(&b, "Content-Location: %d\r\n", p.location)
		fmt.Fprintf(&b, "Content-Type: %s\r\n", p.mime)
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString(p.body))
		b.WriteString("\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n*/\r\n", mhtmlBoundary)
	return b.Bytes()
}
