package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ArtifactType is the output namespace of a package. Scripts and styles
// are independent namespaces: "app" may name both.
type ArtifactType string

const (
	Script ArtifactType = "js"
	Style  ArtifactType = "css"
)

// Extension returns the file extension used for packaged output.
func (t ArtifactType) Extension() string { return string(t) }

func (t ArtifactType) String() string { return string(t) }

// ParseArtifactType accepts "js"/"javascripts" and "css"/"stylesheets".
func ParseArtifactType(raw string) (ArtifactType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "js", "javascripts", "script":
		return Script, nil
	case "css", "stylesheets", "style":
		return Style, nil
	default:
		return "", fmt.Errorf("unknown artifact type %q (expected js|css)", raw)
	}
}

// Variant is an alternate rendering of a package's output.
type Variant int

const (
	// VariantPlain is the ordinary packaged output.
	VariantPlain Variant = iota

	// VariantDataURI embeds referenced images as data: URIs.
	VariantDataURI

	// VariantLegacyFallback embeds images as an MHTML multipart document
	// for engines without data: URI support. Requires an absolute base URL
	// and a timestamp baked into its own content.
	VariantLegacyFallback
)

// Suffix returns the file name suffix for the variant ("" for plain).
func (v Variant) Suffix() string {
	switch v {
	case VariantDataURI:
		return "datauri"
	case VariantLegacyFallback:
		return "legacyfallback"
	default:
		return ""
	}
}

func (v Variant) String() string {
	switch v {
	case VariantPlain:
		return "plain"
	case VariantDataURI:
		return "datauri"
	case VariantLegacyFallback:
		return "legacyfallback"
	default:
		return fmt.Sprintf("unknown(%d)", int(v))
	}
}

// ParseVariant parses a variant name. The empty string is VariantPlain.
func ParseVariant(raw string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "plain", "none":
		return VariantPlain, nil
	case "datauri":
		return VariantDataURI, nil
	case "mhtml", "legacyfallback", "legacy-fallback":
		return VariantLegacyFallback, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", raw)
	}
}

// Filename returns "{pkg}.{ext}" or "{pkg}-{suffix}.{ext}".
func Filename(pkg, ext string, v Variant) string {
	if s := v.Suffix(); s != "" {
		return pkg + "-" + s + "." + ext
	}
	return pkg + "." + ext
}

// AssetURL returns the server-absolute URL of a packaged file:
// "/{packagePath}/{filename}" with "?{unix mtime}" appended when mtime is set.
func AssetURL(packagePath, pkg, ext string, v Variant, mtime time.Time) string {
	url := "/" + strings.Trim(packagePath, "/") + "/" + Filename(pkg, ext, v)
	if !mtime.IsZero() {
		url += "?" + strconv.FormatInt(mtime.Unix(), 10)
	}
	return url
}
