package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrPackageNotFound      = errors.New("package not found")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrOutputNotWritable    = errors.New("output directory not writable")
	ErrDeprecated           = errors.New("deprecated feature")
	ErrTransform            = errors.New("transform failed")
)

// PackageNotFoundError reports a lookup of a name absent from the manifest.
// Type is empty when the name was absent from every namespace.
type PackageNotFoundError struct {
	Name string
	Type ArtifactType
}

func (e *PackageNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Type == "" {
		return fmt.Sprintf("assets manifest does not contain a %q package", e.Name)
	}
	return fmt.Sprintf("assets manifest does not contain a %q %s package", e.Name, strings.ToUpper(string(e.Type)))
}

func (e *PackageNotFoundError) Unwrap() error { return ErrPackageNotFound }

// ConfigError wraps fatal configuration failures: missing settings or
// use of a removed feature.
type ConfigError struct {
	Kind error
	Msg  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Kind }

// MissingConfigurationf builds a ConfigError of kind ErrMissingConfiguration.
func MissingConfigurationf(format string, args ...any) error {
	return &ConfigError{Kind: ErrMissingConfiguration, Msg: fmt.Sprintf(format, args...)}
}

// Deprecationf builds a ConfigError of kind ErrDeprecated.
func Deprecationf(format string, args ...any) error {
	return &ConfigError{Kind: ErrDeprecated, Msg: fmt.Sprintf(format, args...)}
}

// OutputNotWritableError reports an output directory that cannot be created
// or written.
type OutputNotWritableError struct {
	Dir string
	Err error
}

func (e *OutputNotWritableError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("no permission to write to %q", e.Dir)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OutputNotWritableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrOutputNotWritable}
	}
	return []error{ErrOutputNotWritable, e.Err}
}

// TransformError reports a Compressor failure for one package variant.
type TransformError struct {
	Package string
	Type    ArtifactType
	Variant Variant
	Err     error
}

func (e *TransformError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("compressing %s package %q (%s): %v", e.Type, e.Package, e.Variant, e.Err)
}

func (e *TransformError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransform}
	}
	return []error{ErrTransform, e.Err}
}
